package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// ChannelMap holds the destination channel IDs for the router, keyed by the
// fixed routing slots.
type ChannelMap struct {
	CryptoText    string
	CryptoCharts  string
	StocksText    string
	StocksCharts  string
	ForexText     string
	ForexCharts   string
	Images        string
	UnknownCharts string
	Other         string
	News          string
	CryptoNews    string

	// Overview channels per category, for the mention aggregator.
	CryptoOverview string
	StocksOverview string
	ForexOverview  string
}

type Config struct {
	DiscordBotToken string
	DatabaseURL     string
	RedisURL        string

	// ChannelWebhooks maps a channel ID to the webhook URL posting into it,
	// used for multi-image posts.
	ChannelWebhooks map[string]string

	TimelineRequestFile string
	TimelinePollSecs    int
	OverviewPollSecs    int

	MarketTimezone  string
	MarketOpenHHMM  string
	MarketCloseHHMM string

	Channels       ChannelMap
	NewsAccounts   map[string]bool
	AuthorChannels map[string]string

	OpenAIAPIKey string
	OpenAIModel  string

	// APIKey guards the HTTP API; empty disables auth.
	APIKey string
}

func Load() *Config {
	cfg := &Config{
		DiscordBotToken: os.Getenv("DISCORD_BOT_TOKEN"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ChannelWebhooks: parsePairs(os.Getenv("DISCORD_CHANNEL_WEBHOOKS")),
	}

	if cfg.DiscordBotToken == "" {
		log.Println("Warning: DISCORD_BOT_TOKEN not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.TimelineRequestFile = os.Getenv("TIMELINE_REQUEST_FILE")
	if cfg.TimelineRequestFile == "" {
		cfg.TimelineRequestFile = "timeline_request.json"
	}

	cfg.TimelinePollSecs = 300
	if v := os.Getenv("TIMELINE_POLL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimelinePollSecs = n
		}
	}

	cfg.OverviewPollSecs = 300
	if v := os.Getenv("OVERVIEW_POLL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OverviewPollSecs = n
		}
	}

	cfg.MarketTimezone = strings.TrimSpace(os.Getenv("MARKET_TIMEZONE"))
	if cfg.MarketTimezone == "" {
		cfg.MarketTimezone = "America/New_York"
	}
	cfg.MarketOpenHHMM = envOr("MARKET_OPEN", "09:30")
	cfg.MarketCloseHHMM = envOr("MARKET_CLOSE", "16:00")

	cfg.Channels = ChannelMap{
		CryptoText:     os.Getenv("CHANNEL_CRYPTO_TEXT"),
		CryptoCharts:   os.Getenv("CHANNEL_CRYPTO_CHARTS"),
		StocksText:     os.Getenv("CHANNEL_STOCKS_TEXT"),
		StocksCharts:   os.Getenv("CHANNEL_STOCKS_CHARTS"),
		ForexText:      os.Getenv("CHANNEL_FOREX_TEXT"),
		ForexCharts:    os.Getenv("CHANNEL_FOREX_CHARTS"),
		Images:         os.Getenv("CHANNEL_IMAGES"),
		UnknownCharts:  os.Getenv("CHANNEL_UNKNOWN_CHARTS"),
		Other:          os.Getenv("CHANNEL_OTHER"),
		News:           os.Getenv("CHANNEL_NEWS"),
		CryptoNews:     os.Getenv("CHANNEL_CRYPTO_NEWS"),
		CryptoOverview: os.Getenv("CHANNEL_CRYPTO_OVERVIEW"),
		StocksOverview: os.Getenv("CHANNEL_STOCKS_OVERVIEW"),
		ForexOverview:  os.Getenv("CHANNEL_FOREX_OVERVIEW"),
	}

	cfg.NewsAccounts = parseSet(os.Getenv("NEWS_ACCOUNTS"))
	if len(cfg.NewsAccounts) == 0 {
		cfg.NewsAccounts = parseSet("DeItaone,FirstSquawk,Tree_of_Alpha,WatcherGuru")
	}

	cfg.AuthorChannels = parsePairs(os.Getenv("AUTHOR_CHANNELS"))

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, using lexicon sentiment classifier")
	}
	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.APIKey = os.Getenv("API_KEY")

	return cfg
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// parseSet parses a comma-separated list into a lowercase membership set.
func parseSet(v string) map[string]bool {
	out := make(map[string]bool)
	for _, part := range strings.Split(v, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out[part] = true
		}
	}
	return out
}

// parsePairs parses "handle=channelID,handle=channelID" into a map keyed by
// lowercase handle.
func parsePairs(v string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(v, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])
		if key != "" && val != "" {
			out[key] = val
		}
	}
	return out
}
