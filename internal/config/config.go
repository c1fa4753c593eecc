package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone      = "UTC"
	defaultQuotaTimezone = "America/Los_Angeles"

	configPathEnv        = "VIDEO_SCANNER_CONFIG"
	databaseDriverEnv    = "DATABASE_DRIVER"
	databaseDSNEnv       = "DATABASE_DSN"
	youtubeAPIKeyEnv     = "YOUTUBE_API_KEY"
	telegramTokenEnv     = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv    = "TELEGRAM_CHAT_ID"
	telegramChannelEnv   = "TELEGRAM_CHANNEL_ID"
	monitoringIntervalEn = "MONITORING_INTERVAL"
	autoPostThresholdEnv = "AUTO_POST_THRESHOLD"
	quotaLimitEnv        = "QUOTA_DAILY_LIMIT"
	redisAddrEnv         = "REDIS_ADDR"
	httpAddrEnv          = "HTTP_ADDR"
	logLevelEnv          = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	HTTP          HTTPConfig         `yaml:"http"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Quota         QuotaConfig        `yaml:"quota"`
	Providers     ProviderConfig     `yaml:"providers"`
	Dispatch      DispatchConfig     `yaml:"dispatch"`
	Notifications NotificationConfig `yaml:"notifications"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Filter        FilterConfig       `yaml:"filter"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig selects slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the SQL store. Driver is "postgres" or "sqlite";
// an empty DSN selects the in-memory repository.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the shared quota tracker when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// HTTPConfig configures the operator API listener.
type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// SchedulerConfig defines when cycles run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	ErrorBackoff   time.Duration  `yaml:"errorBackoff"`
	RunOnStart     bool           `yaml:"runOnStart"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// QuotaConfig bounds daily API spend. The day boundary follows Timezone.
type QuotaConfig struct {
	DailyLimit int            `yaml:"dailyLimit"`
	Timezone   string         `yaml:"timezone"`
	location   *time.Location `yaml:"-"`
}

// Location resolves the quota reset timezone.
func (q QuotaConfig) Location() *time.Location {
	if q.location != nil {
		return q.location
	}
	loc, err := time.LoadLocation(defaultQuotaTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ProviderConfig groups settings for the search providers.
type ProviderConfig struct {
	YouTube        YouTubeConfig `yaml:"youtube"`
	Feed           FeedConfig    `yaml:"feed"`
	DefaultScanner string        `yaml:"defaultScanner"`
	SourceDelay    time.Duration `yaml:"sourceDelay"`
	CallTimeout    time.Duration `yaml:"callTimeout"`
	Lookback       time.Duration `yaml:"lookback"`
	MaxResults     int           `yaml:"maxResults"`
}

// YouTubeConfig holds Data API v3 credentials and request options.
type YouTubeConfig struct {
	APIKey            string        `yaml:"apiKey"`
	BaseURL           string        `yaml:"baseUrl"`
	RegionCode        string        `yaml:"regionCode"`
	RelevanceLanguage string        `yaml:"relevanceLanguage"`
	Timeout           time.Duration `yaml:"timeout"`
}

// FeedConfig points at the channel Atom feed endpoint.
type FeedConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

// DispatchConfig controls auto-posting and message layout.
type DispatchConfig struct {
	AutoPostThreshold int           `yaml:"autoPostThreshold"`
	SendDelay         time.Duration `yaml:"sendDelay"`
	RetryLimit        int           `yaml:"retryLimit"`
	Label             string        `yaml:"label"`
	Hashtags          []string      `yaml:"hashtags"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string        `yaml:"botToken"`
	ChatID   string        `yaml:"chatId"`
	BaseURL  string        `yaml:"baseUrl"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ClassifierConfig replaces the built-in rule table when Rules is non-empty.
type ClassifierConfig struct {
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig is one ordered classification rule.
type RuleConfig struct {
	Category     string   `yaml:"category"`
	Keywords     []string `yaml:"keywords"`
	BasePriority int      `yaml:"basePriority"`
	AutoEligible bool     `yaml:"autoEligible"`
}

// FilterConfig overrides the spam denylist and title quality keywords.
type FilterConfig struct {
	Denylist        []string `yaml:"denylist"`
	QualityKeywords []string `yaml:"qualityKeywords"`
}

// SourceConfig seeds the source registry.
type SourceConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Verified bool   `yaml:"verified"`
	Boost    int    `yaml:"boost"`
	Scanner  string `yaml:"scanner"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if fileCfg, err := Parse(raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezones()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultSources()
	}

	return cfg
}

// Parse decodes a YAML document without merging defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(youtubeAPIKeyEnv); v != "" {
		c.Providers.YouTube.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	} else if v := os.Getenv(telegramChannelEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(monitoringIntervalEn); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Scheduler.CronExpression = "@every " + (time.Duration(secs) * time.Second).String()
		} else {
			log.Printf("config: ignoring %s=%q", monitoringIntervalEn, v)
		}
	}

	if v := os.Getenv(autoPostThresholdEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dispatch.AutoPostThreshold = n
		} else {
			log.Printf("config: ignoring %s=%q", autoPostThresholdEnv, v)
		}
	}

	if v := os.Getenv(quotaLimitEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Quota.DailyLimit = n
		} else {
			log.Printf("config: ignoring %s=%q", quotaLimitEnv, v)
		}
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezones() {
	c.Scheduler.location = loadLocation(c.Scheduler.Timezone, defaultTimezone)
	c.Quota.location = loadLocation(c.Quota.Timezone, defaultQuotaTimezone)
}

func loadLocation(tz, fallback string) *time.Location {
	if tz == "" {
		tz = fallback
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, fallback)
		if loc, err = time.LoadLocation(fallback); err != nil {
			return time.UTC
		}
	}
	return loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Redis.Addr != "" {
		base.Redis = override.Redis
		if base.Redis.Prefix == "" {
			base.Redis.Prefix = defaultConfig().Redis.Prefix
		}
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}
	if override.HTTP.RequestTimeout > 0 {
		base.HTTP.RequestTimeout = override.HTTP.RequestTimeout
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.ErrorBackoff > 0 {
		base.Scheduler.ErrorBackoff = override.Scheduler.ErrorBackoff
	}
	if override.Scheduler.RunOnStart {
		base.Scheduler.RunOnStart = true
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Quota.DailyLimit > 0 {
		base.Quota.DailyLimit = override.Quota.DailyLimit
	}
	if override.Quota.Timezone != "" {
		base.Quota.Timezone = override.Quota.Timezone
	}

	base.Providers = mergeProviders(base.Providers, override.Providers)

	if override.Dispatch.AutoPostThreshold != 0 {
		base.Dispatch.AutoPostThreshold = override.Dispatch.AutoPostThreshold
	}
	if override.Dispatch.SendDelay > 0 {
		base.Dispatch.SendDelay = override.Dispatch.SendDelay
	}
	if override.Dispatch.RetryLimit > 0 {
		base.Dispatch.RetryLimit = override.Dispatch.RetryLimit
	}
	if override.Dispatch.Label != "" {
		base.Dispatch.Label = override.Dispatch.Label
	}
	if len(override.Dispatch.Hashtags) > 0 {
		base.Dispatch.Hashtags = override.Dispatch.Hashtags
	}

	tg := override.Notifications.Telegram
	if tg.BotToken != "" {
		base.Notifications.Telegram.BotToken = tg.BotToken
	}
	if tg.ChatID != "" {
		base.Notifications.Telegram.ChatID = tg.ChatID
	}
	if tg.BaseURL != "" {
		base.Notifications.Telegram.BaseURL = tg.BaseURL
	}
	if tg.Timeout > 0 {
		base.Notifications.Telegram.Timeout = tg.Timeout
	}

	if len(override.Classifier.Rules) > 0 {
		base.Classifier = override.Classifier
	}
	if len(override.Filter.Denylist) > 0 {
		base.Filter.Denylist = override.Filter.Denylist
	}
	if len(override.Filter.QualityKeywords) > 0 {
		base.Filter.QualityKeywords = override.Filter.QualityKeywords
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func mergeProviders(base, override ProviderConfig) ProviderConfig {
	yt := override.YouTube
	if yt.APIKey != "" {
		base.YouTube.APIKey = yt.APIKey
	}
	if yt.BaseURL != "" {
		base.YouTube.BaseURL = yt.BaseURL
	}
	if yt.RegionCode != "" {
		base.YouTube.RegionCode = yt.RegionCode
	}
	if yt.RelevanceLanguage != "" {
		base.YouTube.RelevanceLanguage = yt.RelevanceLanguage
	}
	if yt.Timeout > 0 {
		base.YouTube.Timeout = yt.Timeout
	}

	if override.Feed.BaseURL != "" {
		base.Feed.BaseURL = override.Feed.BaseURL
	}
	if override.Feed.Timeout > 0 {
		base.Feed.Timeout = override.Feed.Timeout
	}

	if override.DefaultScanner != "" {
		base.DefaultScanner = strings.ToLower(override.DefaultScanner)
	}
	if override.SourceDelay > 0 {
		base.SourceDelay = override.SourceDelay
	}
	if override.CallTimeout > 0 {
		base.CallTimeout = override.CallTimeout
	}
	if override.Lookback > 0 {
		base.Lookback = override.Lookback
	}
	if override.MaxResults > 0 {
		base.MaxResults = override.MaxResults
	}
	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "postgres", DSN: ""},
		Redis:    RedisConfig{Prefix: "videoscanner:quota"},
		HTTP:     HTTPConfig{Addr: ":8080", RequestTimeout: 60 * time.Second},
		Scheduler: SchedulerConfig{
			CronExpression: "@every 30m",
			ErrorBackoff:   5 * time.Minute,
			RunOnStart:     true,
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Quota: QuotaConfig{DailyLimit: 10000, Timezone: defaultQuotaTimezone},
		Providers: ProviderConfig{
			YouTube: YouTubeConfig{
				RegionCode:        "IN",
				RelevanceLanguage: "te",
				Timeout:           15 * time.Second,
			},
			Feed:           FeedConfig{Timeout: 15 * time.Second},
			DefaultScanner: "youtube",
			SourceDelay:    time.Second,
			CallTimeout:    20 * time.Second,
			Lookback:       24 * time.Hour,
			MaxResults:     10,
		},
		Dispatch: DispatchConfig{
			AutoPostThreshold: 4,
			SendDelay:         3 * time.Second,
			RetryLimit:        20,
			Label:             "Telugu Cinema",
			Hashtags:          []string{"TeluguCinema", "Tollywood"},
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{Timeout: 10 * time.Second},
		},
		Sources: defaultSources(),
	}
}

func defaultSources() []SourceConfig {
	channels := []struct{ id, name string }{
		{"UC_x5XG1OV2P6uZZ5FSM9Ttw", "Hombale Films"},
		{"UCjvgGbPPn-FgYeguc5nxG4A", "Mythri Movie Makers"},
		{"UC-BUw1VrHKdKOZgp1Rqmriw", "Sri Venkateswara Creations"},
		{"UCZZeT5u8GqR8HbQYWhjBXhw", "Geetha Arts"},
		{"UCzf38Rf8FY_DaT8wLZJa4-g", "UV Creations"},
		{"UC9EI99s4Zr_4zxHu7Qk6d9w", "Red Giant Movies"},
		{"UCq8LlzB3x7pNB5WD1U9WxnQ", "T-Series Telugu"},
		{"UC3tNpTOHsTnkmbwztCs30sA", "Sony Music South"},
		{"UCr6HBKTtBMd7LdaAOTN1xgw", "Saregama Telugu"},
		{"UCLwmGpYbpzDwelJNwFfT-Fg", "AHA Video"},
		{"UCNjjYDKQ1xOoF94-rttBrng", "Aha Telugu"},
	}

	out := make([]SourceConfig, 0, len(channels)+2)
	for _, ch := range channels {
		out = append(out, SourceConfig{
			ID:       ch.id,
			Name:     ch.name,
			Kind:     "channel",
			Verified: true,
			Boost:    1,
			Scanner:  "feed",
		})
	}
	out = append(out,
		SourceConfig{ID: "telugu movie official trailer", Name: "Telugu trailers", Kind: "query", Scanner: "youtube"},
		SourceConfig{ID: "telugu lyrical video song", Name: "Telugu songs", Kind: "query", Scanner: "youtube"},
	)
	return out
}
