package model

import "testing"

func TestPlatformFromItemID(t *testing.T) {
	cases := map[string]Platform{
		"hn_12345":         PlatformHN,
		"reddit_abc":       PlatformReddit,
		"substack_ZGlnZXN": PlatformSubstack,
		"twitter_1":        PlatformTwitter,
		"threads_9":        PlatformThreads,
		"myspace_1":        "",
		"noprefix":         "",
		"":                 "",
	}
	for id, want := range cases {
		if got := PlatformFromItemID(id); got != want {
			t.Errorf("PlatformFromItemID(%q)=%q, want %q", id, got, want)
		}
	}
}

func TestPlatformValid(t *testing.T) {
	for _, p := range Platforms() {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}
	if Platform("myspace").Valid() || Platform("").Valid() {
		t.Errorf("unknown platforms accepted")
	}
}
