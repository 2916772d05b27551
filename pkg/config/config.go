package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProviderConfig holds credentials and quota ceilings for one upstream source
type ProviderConfig struct {
	Name        string
	APIKey      string
	BaseURL     string
	Host        string
	PerMinute   int
	PerHour     int
	PerDay      int
	MinInterval time.Duration
}

type Config struct {
	// Server
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Redis (optional shared cache tier)
	RedisURL string `mapstructure:"REDIS_URL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// External APIs
	ExternalAPITimeout      time.Duration `mapstructure:"EXTERNAL_API_TIMEOUT"`
	CircuitBreakerThreshold int           `mapstructure:"CIRCUIT_BREAKER_THRESHOLD"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"CIRCUIT_BREAKER_TIMEOUT"`

	// SportMonks (premium)
	SportMonksAPIKey      string        `mapstructure:"SPORTMONKS_API_KEY"`
	SportMonksBaseURL     string        `mapstructure:"SPORTMONKS_BASE_URL"`
	SportMonksPerMinute   int           `mapstructure:"SPORTMONKS_PER_MINUTE"`
	SportMonksPerHour     int           `mapstructure:"SPORTMONKS_PER_HOUR"`
	SportMonksPerDay      int           `mapstructure:"SPORTMONKS_PER_DAY"`
	SportMonksMinInterval time.Duration `mapstructure:"SPORTMONKS_MIN_INTERVAL"`

	// CricketData.org (secondary)
	CricketDataAPIKey      string        `mapstructure:"CRICKETDATA_API_KEY"`
	CricketDataBaseURL     string        `mapstructure:"CRICKETDATA_BASE_URL"`
	CricketDataPerMinute   int           `mapstructure:"CRICKETDATA_PER_MINUTE"`
	CricketDataPerHour     int           `mapstructure:"CRICKETDATA_PER_HOUR"`
	CricketDataPerDay      int           `mapstructure:"CRICKETDATA_PER_DAY"`
	CricketDataMinInterval time.Duration `mapstructure:"CRICKETDATA_MIN_INTERVAL"`

	// Cricbuzz via RapidAPI (backup)
	CricbuzzAPIKey      string        `mapstructure:"CRICBUZZ_API_KEY"`
	CricbuzzBaseURL     string        `mapstructure:"CRICBUZZ_BASE_URL"`
	CricbuzzHost        string        `mapstructure:"CRICBUZZ_HOST"`
	CricbuzzPerMinute   int           `mapstructure:"CRICBUZZ_PER_MINUTE"`
	CricbuzzPerHour     int           `mapstructure:"CRICBUZZ_PER_HOUR"`
	CricbuzzPerDay      int           `mapstructure:"CRICBUZZ_PER_DAY"`
	CricbuzzMinInterval time.Duration `mapstructure:"CRICBUZZ_MIN_INTERVAL"`

	// Response cache lifetimes
	CacheTTLLive     time.Duration `mapstructure:"CACHE_TTL_LIVE"`
	CacheTTLFixtures time.Duration `mapstructure:"CACHE_TTL_FIXTURES"`
	CacheTTLPlayers  time.Duration `mapstructure:"CACHE_TTL_PLAYERS"`
	CacheTTLHistory  time.Duration `mapstructure:"CACHE_TTL_HISTORY"`
	CacheTTLTeams    time.Duration `mapstructure:"CACHE_TTL_TEAMS"`
	CacheTTLVenues   time.Duration `mapstructure:"CACHE_TTL_VENUES"`
	CacheTTLProfiles time.Duration `mapstructure:"CACHE_TTL_PROFILES"`
	CacheTTLDefault  time.Duration `mapstructure:"CACHE_TTL_DEFAULT"`

	// Routing. SourcePriority is keyed by capability name.
	SourcePriority    map[string][]string `mapstructure:"-"`
	MergeCapabilities []string            `mapstructure:"-"`

	// Background jobs
	UsageReportSchedule string `mapstructure:"USAGE_REPORT_SCHEDULE"`
	HistoryLimit        int    `mapstructure:"HISTORY_LIMIT"`
}

// priorityKeys maps capability names to their SOURCE_PRIORITY_* variables
var priorityKeys = map[string]string{
	"teams":         "SOURCE_PRIORITY_TEAMS",
	"players":       "SOURCE_PRIORITY_PLAYERS",
	"venues":        "SOURCE_PRIORITY_VENUES",
	"fixtures":      "SOURCE_PRIORITY_FIXTURES",
	"live_matches":  "SOURCE_PRIORITY_LIVE_MATCHES",
	"match_history": "SOURCE_PRIORITY_MATCH_HISTORY",

	"player_profile": "SOURCE_PRIORITY_PLAYER_PROFILE",
	"team_profile":   "SOURCE_PRIORITY_TEAM_PROFILE",
}

const defaultPriority = "sportmonks,cricketdata,cricbuzz"

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "")
	viper.SetDefault("REDIS_URL", "") // in-memory cache when empty
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("EXTERNAL_API_TIMEOUT", "15s")
	viper.SetDefault("CIRCUIT_BREAKER_THRESHOLD", 5)
	viper.SetDefault("CIRCUIT_BREAKER_TIMEOUT", "60s")

	viper.SetDefault("SPORTMONKS_API_KEY", "")
	viper.SetDefault("SPORTMONKS_BASE_URL", "https://cricket.sportmonks.com/api/v2.0")
	viper.SetDefault("SPORTMONKS_PER_MINUTE", 0)
	viper.SetDefault("SPORTMONKS_PER_HOUR", 180) // 180 calls/hour per plan
	viper.SetDefault("SPORTMONKS_PER_DAY", 0)
	viper.SetDefault("SPORTMONKS_MIN_INTERVAL", "2s")

	viper.SetDefault("CRICKETDATA_API_KEY", "")
	viper.SetDefault("CRICKETDATA_BASE_URL", "https://api.cricapi.com/v1")
	viper.SetDefault("CRICKETDATA_PER_MINUTE", 0)
	viper.SetDefault("CRICKETDATA_PER_HOUR", 0)
	viper.SetDefault("CRICKETDATA_PER_DAY", 100) // free tier
	viper.SetDefault("CRICKETDATA_MIN_INTERVAL", "1s")

	viper.SetDefault("CRICBUZZ_API_KEY", "")
	viper.SetDefault("CRICBUZZ_BASE_URL", "https://cricbuzz-cricket.p.rapidapi.com")
	viper.SetDefault("CRICBUZZ_HOST", "cricbuzz-cricket.p.rapidapi.com")
	viper.SetDefault("CRICBUZZ_PER_MINUTE", 10)
	viper.SetDefault("CRICBUZZ_PER_HOUR", 0)
	viper.SetDefault("CRICBUZZ_PER_DAY", 200)
	viper.SetDefault("CRICBUZZ_MIN_INTERVAL", "1s")

	viper.SetDefault("CACHE_TTL_LIVE", "30s")
	viper.SetDefault("CACHE_TTL_FIXTURES", "15m")
	viper.SetDefault("CACHE_TTL_PLAYERS", "1h")
	viper.SetDefault("CACHE_TTL_HISTORY", "1h")
	viper.SetDefault("CACHE_TTL_TEAMS", "24h")
	viper.SetDefault("CACHE_TTL_VENUES", "24h")
	viper.SetDefault("CACHE_TTL_PROFILES", "1h")
	viper.SetDefault("CACHE_TTL_DEFAULT", "1h")

	for _, key := range priorityKeys {
		viper.SetDefault(key, defaultPriority)
	}
	viper.SetDefault("MERGE_CAPABILITIES", "teams,players")

	viper.SetDefault("USAGE_REPORT_SCHEDULE", "@every 15m")
	viper.SetDefault("HISTORY_LIMIT", 20)

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse comma-separated lists
	config.CorsOrigins = splitList(viper.GetString("CORS_ORIGINS"))
	config.MergeCapabilities = splitList(viper.GetString("MERGE_CAPABILITIES"))

	config.SourcePriority = make(map[string][]string, len(priorityKeys))
	for capability, key := range priorityKeys {
		config.SourcePriority[capability] = splitList(viper.GetString(key))
	}

	if config.HistoryLimit <= 0 {
		return nil, fmt.Errorf("HISTORY_LIMIT must be positive, got %d", config.HistoryLimit)
	}

	return &config, nil
}

// Providers returns the upstream sources in default priority order
func (c *Config) Providers() []ProviderConfig {
	return []ProviderConfig{
		{
			Name:        "sportmonks",
			APIKey:      c.SportMonksAPIKey,
			BaseURL:     c.SportMonksBaseURL,
			PerMinute:   c.SportMonksPerMinute,
			PerHour:     c.SportMonksPerHour,
			PerDay:      c.SportMonksPerDay,
			MinInterval: c.SportMonksMinInterval,
		},
		{
			Name:        "cricketdata",
			APIKey:      c.CricketDataAPIKey,
			BaseURL:     c.CricketDataBaseURL,
			PerMinute:   c.CricketDataPerMinute,
			PerHour:     c.CricketDataPerHour,
			PerDay:      c.CricketDataPerDay,
			MinInterval: c.CricketDataMinInterval,
		},
		{
			Name:        "cricbuzz",
			APIKey:      c.CricbuzzAPIKey,
			BaseURL:     c.CricbuzzBaseURL,
			Host:        c.CricbuzzHost,
			PerMinute:   c.CricbuzzPerMinute,
			PerHour:     c.CricbuzzPerHour,
			PerDay:      c.CricbuzzPerDay,
			MinInterval: c.CricbuzzMinInterval,
		},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
