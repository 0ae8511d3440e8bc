package config

import (
	"fmt"
	"runtime"

	"github.com/spf13/viper"
)

// Config is built once at startup and passed by reference. Nothing mutates
// it afterwards.
type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	MetricsPort string `mapstructure:"METRICS_PORT"`

	// Redis
	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     string `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Record store (Postgres)
	DatabaseDSN string `mapstructure:"DATABASE_DSN"`

	// Notification channel
	NotifyURL     string `mapstructure:"NOTIFY_URL"`
	NotifyToken   string `mapstructure:"NOTIFY_TOKEN"`
	RoomIDMsg     string `mapstructure:"ROOM_ID_MSG"`
	RoomIDWorks   string `mapstructure:"ROOM_ID_WORKS"`
	URLBoardAdmin string `mapstructure:"URL_BOARD_ADMIN"`
	URLUserAdmin  string `mapstructure:"URL_USER_ADMIN"`
	URLWorkDetail string `mapstructure:"URL_WORK_DETAIL"`

	// Score thresholds. Scores below ScoreThresholdMsgScrape are dropped,
	// scores in [ScoreThresholdMsgScrape, ScoreThresholdMsgSpam) trigger the
	// secondary scrape, and ScoreThresholdNotify gates the notification.
	ScoreThresholdWorks     float64 `mapstructure:"SCORE_THRESHOLD_WORKS"`
	ScoreThresholdMsgSpam   float64 `mapstructure:"SCORE_THRESHOLD_MSG_SPAM"`
	ScoreThresholdMsgScrape float64 `mapstructure:"SCORE_THRESHOLD_MSG_SCRAPE"`
	ScoreThresholdNotify    float64 `mapstructure:"SCORE_THRESHOLD_NOTIFY"`

	// Detection loop
	PollIntervalMs int `mapstructure:"POLL_INTERVAL_MS"`
	ScrapeTimeoutS int `mapstructure:"SCRAPE_TIMEOUT_S"`

	// Corpus refresh and retraining cadence.
	RetrainIntervalH int `mapstructure:"RETRAIN_INTERVAL_H"`

	// Curated word lists and patterns; populated from the package defaults
	// in words.go, not from the environment.
	URLPattern     string
	TrustedDomains []string
	RemoveWords    []string
	StopWords      []string
	Whitelists     Whitelists

	// Keyword scan for scraped pages. Matching is case-insensitive.
	BlacklistKeywords    []string
	BlacklistHeadPattern string

	// Redis key names.
	Keys Keys
}

// Whitelist configuration for the rule filter.
type Whitelists struct {
	RegexUsers     []string
	Users          []string
	Keywords       []string
	RegexHeadWords []string
}

// Redis key names shared by the queue, corpora, artifacts and side-effect
// channels.
type Keys struct {
	QueueMsg         string
	QueueNotifyRetry string

	// Versioned prefix for the {vectorizer, reducer, classifier} triple.
	ArtifactMsg string

	DatasetMsgPos    string
	DatasetMsgNeg    string
	DatasetPjtMlmPos string
	DatasetPjtMlmNeg string
	DatasetPjtVlPos  string
	DatasetPjtVlNeg  string

	DetectedUserIDs string
	URLBlacklist    string
}

func Load() (*Config, error) {
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("METRICS_PORT", "9090")

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("DATABASE_DSN", "postgres://localhost:5432/marketplace?sslmode=disable")

	viper.SetDefault("NOTIFY_URL", "https://api.chatwork.com/v2")
	viper.SetDefault("NOTIFY_TOKEN", "")
	viper.SetDefault("ROOM_ID_MSG", "84380698")
	viper.SetDefault("ROOM_ID_WORKS", "83551854")
	viper.SetDefault("URL_BOARD_ADMIN", "https://admin.example.jp/admin/messages/board/%d")
	viper.SetDefault("URL_USER_ADMIN", "https://admin.example.jp/admin/users/edit/%d")
	viper.SetDefault("URL_WORK_DETAIL", "https://www.example.jp/work/detail/%d")

	viper.SetDefault("SCORE_THRESHOLD_WORKS", 2.0)
	viper.SetDefault("SCORE_THRESHOLD_MSG_SPAM", 2.190)
	viper.SetDefault("SCORE_THRESHOLD_MSG_SCRAPE", 0.0)
	viper.SetDefault("SCORE_THRESHOLD_NOTIFY", 0.0)

	viper.SetDefault("POLL_INTERVAL_MS", 1000)
	viper.SetDefault("SCRAPE_TIMEOUT_S", 3)
	viper.SetDefault("RETRAIN_INTERVAL_H", 24)

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.URLPattern = urlPattern
	config.TrustedDomains = trustedDomains
	config.RemoveWords = removeWords
	config.StopWords = stopWords
	config.Whitelists = defaultWhitelists
	config.BlacklistKeywords = blacklistKeywords
	config.BlacklistHeadPattern = blacklistHeadPattern
	config.Keys = defaultKeys

	return &config, nil
}

// PoolProcs returns the curator worker-pool size: full parallelism in
// development, one less than the machine in production so the box stays
// responsive.
func (c *Config) PoolProcs() int {
	n := runtime.NumCPU()
	if c.Environment == "development" || n <= 1 {
		return n
	}
	return n - 1
}

// RedisAddr joins host and port for the go-redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
