// Package config loads runtime settings from defaults, an optional config
// file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yolubot/boardnews/internal/pipeline"
	"github.com/yolubot/boardnews/internal/scoring"
	"github.com/yolubot/boardnews/internal/search"
	"github.com/yolubot/boardnews/internal/serp"
	"github.com/yolubot/boardnews/internal/storage/backend"
	"github.com/yolubot/boardnews/pkg/httpclient"
)

// EnvPrefix is prepended to every environment key, e.g.
// BOARDNEWS_SEARCH_MAXRESULTSPERKEYWORD.
const EnvPrefix = "BOARDNEWS"

// Config holds all application configuration.
type Config struct {
	Search    SearchConfig    `mapstructure:"search"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Log       LogConfig       `mapstructure:"log"`
}

type SearchConfig struct {
	MaxResultsPerKeyword int           `mapstructure:"maxResultsPerKeyword"`
	MaxKeywordsPerLayer  int           `mapstructure:"maxKeywordsPerLayer"`
	Timeout              time.Duration `mapstructure:"timeout"`
	InterLayerDelay      time.Duration `mapstructure:"interLayerDelay"`
	RequestsPerSecond    float64       `mapstructure:"requestsPerSecond"`
	Concurrency          int           `mapstructure:"concurrency"`
	CacheTTL             time.Duration `mapstructure:"cacheTTL"`
	RotateKeywords       bool          `mapstructure:"rotateKeywords"`
	Language             string        `mapstructure:"language"`
	Country              string        `mapstructure:"country"`
}

type ScoringConfig struct {
	CredibilityWeight float64 `mapstructure:"credibilityWeight"`
	RelevanceWeight   float64 `mapstructure:"relevanceWeight"`
	UrgencyWeight     float64 `mapstructure:"urgencyWeight"`
}

type PipelineConfig struct {
	ScheduledHours      int  `mapstructure:"scheduledHours"`
	ManualHours         int  `mapstructure:"manualHours"`
	MaxArticles         int  `mapstructure:"maxArticles"`
	FallbackEnabled     bool `mapstructure:"fallbackEnabled"`
	FallbackMaxArticles int  `mapstructure:"fallbackMaxArticles"`
}

type ProvidersConfig struct {
	Serper SerperConfig `mapstructure:"serper"`
	Google GoogleConfig `mapstructure:"google"`
	RSS    RSSConfig    `mapstructure:"rss"`
}

type SerperConfig struct {
	APIKey     string `mapstructure:"apiKey"`
	DailyQuota int    `mapstructure:"dailyQuota"`
}

type GoogleConfig struct {
	APIKey     string `mapstructure:"apiKey"`
	CSEID      string `mapstructure:"cseID"`
	DailyQuota int    `mapstructure:"dailyQuota"`
}

type RSSConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	DailyQuota int  `mapstructure:"dailyQuota"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps keys to the bare variable names older deployments use.
var legacyEnv = map[string]string{
	"providers.serper.apiKey": "SERPER_API_KEY",
	"providers.google.apiKey": "GOOGLE_CSE_API_KEY",
	"providers.google.cseID":  "GOOGLE_CSE_ID",
	"storage.dsn":             "DATABASE_URL",
}

func setDefaults(v *viper.Viper) {
	sd := search.DefaultConfig()
	v.SetDefault("search.maxResultsPerKeyword", sd.MaxResultsPerKeyword)
	v.SetDefault("search.maxKeywordsPerLayer", sd.MaxKeywordsPerLayer)
	v.SetDefault("search.timeout", serp.DefaultTimeout)
	v.SetDefault("search.interLayerDelay", sd.InterLayerDelay)
	v.SetDefault("search.requestsPerSecond", sd.RequestsPerSecond)
	v.SetDefault("search.concurrency", sd.Concurrency)
	v.SetDefault("search.cacheTTL", serp.DefaultCacheTTL)
	v.SetDefault("search.rotateKeywords", false)
	v.SetDefault("search.language", sd.Language)
	v.SetDefault("search.country", sd.Country)

	w := scoring.DefaultWeights()
	v.SetDefault("scoring.credibilityWeight", w.Credibility)
	v.SetDefault("scoring.relevanceWeight", w.Relevance)
	v.SetDefault("scoring.urgencyWeight", w.Urgency)

	pd := pipeline.DefaultConfig()
	v.SetDefault("pipeline.scheduledHours", pd.ScheduledHours)
	v.SetDefault("pipeline.manualHours", pd.ManualHours)
	v.SetDefault("pipeline.maxArticles", pd.MaxArticles)
	v.SetDefault("pipeline.fallbackEnabled", pd.FallbackEnabled)
	v.SetDefault("pipeline.fallbackMaxArticles", pd.FallbackMaxArticles)

	v.SetDefault("providers.serper.apiKey", "")
	v.SetDefault("providers.serper.dailyQuota", 100)
	v.SetDefault("providers.google.apiKey", "")
	v.SetDefault("providers.google.cseID", "")
	v.SetDefault("providers.google.dailyQuota", 100)
	v.SetDefault("providers.rss.enabled", false)
	v.SetDefault("providers.rss.dailyQuota", 200)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.dsn", "boardnews.db")
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("schedule.interval", 12*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load resolves configuration. Precedence, lowest first: defaults, the
// config file at path (if non-empty), variables from envFile (if it
// exists), and the process environment. envFile never overrides variables
// that are already set.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("config: load %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: stat %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that would make the service unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.Search.MaxResultsPerKeyword <= 0 || c.Search.MaxResultsPerKeyword > 10 {
		errs = append(errs, fmt.Errorf("search.maxResultsPerKeyword must be between 1 and 10, got %d", c.Search.MaxResultsPerKeyword))
	}
	if c.Search.MaxKeywordsPerLayer <= 0 {
		errs = append(errs, fmt.Errorf("search.maxKeywordsPerLayer must be positive, got %d", c.Search.MaxKeywordsPerLayer))
	}
	if c.Search.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("search.timeout must be positive, got %s", c.Search.Timeout))
	}
	if c.Search.InterLayerDelay < 0 {
		errs = append(errs, fmt.Errorf("search.interLayerDelay must not be negative, got %s", c.Search.InterLayerDelay))
	}
	if c.Search.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("search.concurrency must be positive, got %d", c.Search.Concurrency))
	}
	if err := c.Weights().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.PipelineConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	for name, q := range map[string]int{
		"serper": c.Providers.Serper.DailyQuota,
		"google": c.Providers.Google.DailyQuota,
		"rss":    c.Providers.RSS.DailyQuota,
	} {
		if q <= 0 {
			errs = append(errs, fmt.Errorf("providers.%s.dailyQuota must be positive, got %d", name, q))
		}
	}
	if !backend.Valid(c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of %s", c.Storage.Backend, strings.Join(backend.Names, ", ")))
	}
	if c.Schedule.Interval <= 0 {
		errs = append(errs, fmt.Errorf("schedule.interval must be positive, got %s", c.Schedule.Interval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

// Weights returns the scoring weights.
func (c *Config) Weights() scoring.Weights {
	return scoring.Weights{
		Credibility: c.Scoring.CredibilityWeight,
		Relevance:   c.Scoring.RelevanceWeight,
		Urgency:     c.Scoring.UrgencyWeight,
	}
}

// SearchConfig returns the orchestrator settings.
func (c *Config) SearchConfig() search.Config {
	sc := search.DefaultConfig()
	sc.MaxKeywordsPerLayer = c.Search.MaxKeywordsPerLayer
	sc.MaxResultsPerKeyword = c.Search.MaxResultsPerKeyword
	sc.Concurrency = c.Search.Concurrency
	sc.InterLayerDelay = c.Search.InterLayerDelay
	sc.RequestsPerSecond = c.Search.RequestsPerSecond
	sc.Language = c.Search.Language
	sc.Country = c.Search.Country
	sc.RotateKeywords = c.Search.RotateKeywords
	return sc
}

// PipelineConfig returns the façade settings.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		ScheduledHours:      c.Pipeline.ScheduledHours,
		ManualHours:         c.Pipeline.ManualHours,
		MaxArticles:         c.Pipeline.MaxArticles,
		FallbackEnabled:     c.Pipeline.FallbackEnabled,
		FallbackMaxArticles: c.Pipeline.FallbackMaxArticles,
	}
}

// RouterConfig returns the provider router settings without clock or logger.
func (c *Config) RouterConfig() serp.RouterConfig {
	return serp.RouterConfig{Timeout: c.Search.Timeout, CacheTTL: c.Search.CacheTTL}
}

// Routes builds the providers in priority order: Serper, Google CSE, then
// the keyless news RSS feed. Providers without credentials are included but
// report themselves disabled.
func (c *Config) Routes(client *httpclient.Client) []serp.Route {
	return []serp.Route{
		{Provider: serp.NewSerper(c.Providers.Serper.APIKey, client), DailyQuota: c.Providers.Serper.DailyQuota},
		{Provider: serp.NewGoogleCSE(c.Providers.Google.APIKey, c.Providers.Google.CSEID, client), DailyQuota: c.Providers.Google.DailyQuota},
		{Provider: serp.NewNewsRSS(c.Providers.RSS.Enabled, client), DailyQuota: c.Providers.RSS.DailyQuota},
	}
}
