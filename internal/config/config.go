package config

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig holds redis connection settings. An empty Addr keeps the
// persistent cache in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OpenAIConfig controls relevance scoring and summarization.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// ReaderConfig points at the text extraction service. When Endpoint is
// empty the built-in readability extractor is used instead.
type ReaderConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// HNConfig controls the Hacker News source.
type HNConfig struct {
	Filter string `mapstructure:"filter"` // top, new, best, ask, show
}

// RedditConfig controls the Reddit source.
type RedditConfig struct {
	Subreddits []string `mapstructure:"subreddits"`
	Sort       string   `mapstructure:"sort"` // hot, new, top, rising
}

// SubstackConfig controls the Substack RSS source.
type SubstackConfig struct {
	Publications []string `mapstructure:"publications"`
}

// TwitterConfig controls the Twitter search source.
type TwitterConfig struct {
	APIKey  string   `mapstructure:"api_key"`
	Queries []string `mapstructure:"queries"`
}

// ThreadsConfig controls the Threads keyword search source.
type ThreadsConfig struct {
	AccessToken string   `mapstructure:"access_token"`
	Keywords    []string `mapstructure:"keywords"`
}

// DataSources groups the platform sources.
type DataSources struct {
	HN       HNConfig       `mapstructure:"hn"`
	Reddit   RedditConfig   `mapstructure:"reddit"`
	Substack SubstackConfig `mapstructure:"substack"`
	Twitter  TwitterConfig  `mapstructure:"twitter"`
	Threads  ThreadsConfig  `mapstructure:"threads"`
}

// FeedConfig tunes aggregation behavior.
type FeedConfig struct {
	SummariesEnabled bool   `mapstructure:"summaries_enabled"`
	UnifiedFanout    int    `mapstructure:"unified_fanout"`
	PrewarmInterval  string `mapstructure:"prewarm_interval"` // duration string, e.g., "10m"; empty disables
	CacheCapacity    int    `mapstructure:"cache_capacity"`
}

// Config is the top-level configuration structure.
type Config struct {
	App     AppConfig    `mapstructure:"app"`
	Redis   RedisConfig  `mapstructure:"redis"`
	OpenAI  OpenAIConfig `mapstructure:"openai"`
	Reader  ReaderConfig `mapstructure:"reader"`
	Server  ServerConfig `mapstructure:"server"`
	Sources DataSources  `mapstructure:"sources"`
	Feed    FeedConfig   `mapstructure:"feed"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Sources.HN.Filter == "" {
		c.Sources.HN.Filter = "top"
	}
	if len(c.Sources.Reddit.Subreddits) == 0 {
		c.Sources.Reddit.Subreddits = []string{"technology", "programming", "webdev"}
	}
	if c.Sources.Reddit.Sort == "" {
		c.Sources.Reddit.Sort = "hot"
	}
	if c.Feed.UnifiedFanout == 0 {
		c.Feed.UnifiedFanout = 3
	}
	if c.Feed.CacheCapacity == 0 {
		c.Feed.CacheCapacity = 4096
	}
}
