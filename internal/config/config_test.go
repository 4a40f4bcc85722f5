package config

import "testing"

func TestFillDefaults(t *testing.T) {
	var c Config
	c.FillDefaults()

	if c.App.LogLevel != "info" {
		t.Errorf("log level=%q", c.App.LogLevel)
	}
	if c.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("model=%q", c.OpenAI.Model)
	}
	if c.Server.Addr != ":8080" {
		t.Errorf("addr=%q", c.Server.Addr)
	}
	if c.Sources.HN.Filter != "top" {
		t.Errorf("hn filter=%q", c.Sources.HN.Filter)
	}
	if len(c.Sources.Reddit.Subreddits) == 0 || c.Sources.Reddit.Sort != "hot" {
		t.Errorf("reddit defaults: %+v", c.Sources.Reddit)
	}
	if c.Feed.UnifiedFanout != 3 || c.Feed.CacheCapacity != 4096 {
		t.Errorf("feed defaults: %+v", c.Feed)
	}
	// Redis stays unset so the persistent scope defaults to memory.
	if c.Redis.Addr != "" {
		t.Errorf("redis addr=%q", c.Redis.Addr)
	}
}

func TestFillDefaultsKeepsExplicitValues(t *testing.T) {
	c := Config{}
	c.Sources.HN.Filter = "best"
	c.Sources.Reddit.Subreddits = []string{"golang"}
	c.Feed.UnifiedFanout = 5
	c.FillDefaults()

	if c.Sources.HN.Filter != "best" {
		t.Errorf("hn filter overwritten: %q", c.Sources.HN.Filter)
	}
	if len(c.Sources.Reddit.Subreddits) != 1 || c.Sources.Reddit.Subreddits[0] != "golang" {
		t.Errorf("subreddits overwritten: %v", c.Sources.Reddit.Subreddits)
	}
	if c.Feed.UnifiedFanout != 5 {
		t.Errorf("fanout overwritten: %d", c.Feed.UnifiedFanout)
	}
}
