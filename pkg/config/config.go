package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	PostgresURL string `mapstructure:"POSTGRES_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Search provider
	GoogleAPIKey          string  `mapstructure:"GOOGLE_CSE_API_KEY"`
	GoogleEngineID        string  `mapstructure:"GOOGLE_CSE_ENGINE_ID"`
	GoogleEndpoint        string  `mapstructure:"GOOGLE_CSE_ENDPOINT"`
	SearchLanguage        string  `mapstructure:"SEARCH_LANGUAGE"`
	SearchRegion          string  `mapstructure:"SEARCH_REGION"`
	SearchCountryRestrict string  `mapstructure:"SEARCH_COUNTRY_RESTRICT"`
	ProviderRPS           float64 `mapstructure:"PROVIDER_RPS"`

	DailyQuotaLimit    int64         `mapstructure:"DAILY_QUOTA_LIMIT"`
	PageSize           int           `mapstructure:"PAGE_SIZE"`
	DefaultMaxPages    int           `mapstructure:"DEFAULT_MAX_PAGES"`
	SingleSiteMaxPages int           `mapstructure:"SINGLE_SITE_MAX_PAGES"`
	CampaignCacheTTL   time.Duration `mapstructure:"CAMPAIGN_CACHE_TTL"`
	SingleSiteCacheTTL time.Duration `mapstructure:"SINGLE_SITE_CACHE_TTL"`
	PageDelay          time.Duration `mapstructure:"PAGE_DELAY"`
	FetchTimeout       time.Duration `mapstructure:"FETCH_TIMEOUT"`
	FetchMaxRetries    int           `mapstructure:"FETCH_MAX_RETRIES"`

	ScraperEnabled    bool          `mapstructure:"SCRAPER_ENABLED"`
	ScrapeTimeout     time.Duration `mapstructure:"SCRAPE_TIMEOUT"`
	SimulationEnabled bool          `mapstructure:"SIMULATION_ENABLED"`

	AnalysisWorkers int           `mapstructure:"ANALYSIS_WORKERS"`
	JobTimeout      time.Duration `mapstructure:"JOB_TIMEOUT"`
	JobMaxAttempts  int           `mapstructure:"JOB_MAX_ATTEMPTS"`
	JobRetryDelay   time.Duration `mapstructure:"JOB_RETRY_DELAY"`
	JitterMin       time.Duration `mapstructure:"JITTER_MIN"`
	JitterMax       time.Duration `mapstructure:"JITTER_MAX"`

	QuotaStore string `mapstructure:"QUOTA_STORE"`
}

var defaults = map[string]any{
	"SERVER_PORT":             "8080",
	"LOG_LEVEL":               "info",
	"POSTGRES_URL":            "",
	"REDIS_ADDR":              "localhost:6379",
	"REDIS_PASSWORD":          "",
	"REDIS_DB":                0,
	"GOOGLE_CSE_API_KEY":      "",
	"GOOGLE_CSE_ENGINE_ID":    "",
	"GOOGLE_CSE_ENDPOINT":     "",
	"SEARCH_LANGUAGE":         "fr",
	"SEARCH_REGION":           "fr",
	"SEARCH_COUNTRY_RESTRICT": "countryFR",
	"PROVIDER_RPS":            1.0,
	"DAILY_QUOTA_LIMIT":       100,
	"PAGE_SIZE":               10,
	"DEFAULT_MAX_PAGES":       20,
	"SINGLE_SITE_MAX_PAGES":   1,
	"CAMPAIGN_CACHE_TTL":      6 * time.Hour,
	"SINGLE_SITE_CACHE_TTL":   4 * time.Hour,
	"PAGE_DELAY":              time.Second,
	"FETCH_TIMEOUT":           30 * time.Second,
	"FETCH_MAX_RETRIES":       2,
	"SCRAPER_ENABLED":         false,
	"SCRAPE_TIMEOUT":          30 * time.Second,
	"SIMULATION_ENABLED":      true,
	"ANALYSIS_WORKERS":        4,
	"JOB_TIMEOUT":             10 * time.Minute,
	"JOB_MAX_ATTEMPTS":        2,
	"JOB_RETRY_DELAY":         15 * time.Minute,
	"JITTER_MIN":              30 * time.Second,
	"JITTER_MAX":              2 * time.Minute,
	"QUOTA_STORE":             "redis",
}

// Load reads configuration from an optional env file and environment variables.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
	}
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// A missing file is fine: production configures purely through the environment.
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.clamp()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) clamp() {
	if c.PageSize <= 0 || c.PageSize > 10 {
		c.PageSize = 10
	}
	if c.FetchMaxRetries < 0 {
		c.FetchMaxRetries = 0
	}
}

// Validate rejects settings the resolvers and the dispatcher cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.AnalysisWorkers <= 0 {
		errs = append(errs, errors.New("ANALYSIS_WORKERS must be positive"))
	}
	if c.DailyQuotaLimit <= 0 {
		errs = append(errs, errors.New("DAILY_QUOTA_LIMIT must be positive"))
	}
	if c.DefaultMaxPages <= 0 {
		errs = append(errs, errors.New("DEFAULT_MAX_PAGES must be positive"))
	}
	if c.SingleSiteMaxPages <= 0 {
		errs = append(errs, errors.New("SINGLE_SITE_MAX_PAGES must be positive"))
	}
	if c.JobMaxAttempts <= 0 {
		errs = append(errs, errors.New("JOB_MAX_ATTEMPTS must be positive"))
	}
	if c.JitterMax < c.JitterMin {
		errs = append(errs, errors.New("JITTER_MAX must not be lower than JITTER_MIN"))
	}
	switch c.QuotaStore {
	case "redis", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("QUOTA_STORE %q is not one of redis, postgres, memory", c.QuotaStore))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ProviderConfigured reports whether search API credentials are present.
func (c *Config) ProviderConfigured() bool {
	return c.GoogleAPIKey != "" && c.GoogleEngineID != ""
}
