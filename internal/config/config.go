package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Salesforce SalesforceConfig `yaml:"sf" mapstructure:"sf"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Apify      ApifyConfig      `yaml:"apify" mapstructure:"apify"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Review     ReviewConfig     `yaml:"review" mapstructure:"review"`
	CRM        CRMConfig        `yaml:"crm" mapstructure:"crm"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history and cache database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID  string `yaml:"client_id" mapstructure:"client_id"`
	Username  string `yaml:"username" mapstructure:"username"`
	KeyPath   string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string `yaml:"login_url" mapstructure:"login_url"`
	RateLimit int    `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds Anthropic API settings for structured extraction.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (fetch fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ApifyConfig holds the profile-scraping actor settings.
type ApifyConfig struct {
	Token       string `yaml:"token" mapstructure:"token"`
	Actor       string `yaml:"actor" mapstructure:"actor"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// NotionConfig holds the manual-review queue settings.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReviewDB string `yaml:"review_db" mapstructure:"review_db"`
}

// EnrichConfig configures the batch orchestrator and adapter chain.
type EnrichConfig struct {
	BatchSize            int    `yaml:"batch_size" mapstructure:"batch_size"`
	LeadTimeoutSecs      int    `yaml:"lead_timeout_secs" mapstructure:"lead_timeout_secs"`
	BatchDelaySecs       int    `yaml:"batch_delay_secs" mapstructure:"batch_delay_secs"`
	MaxLeads             int    `yaml:"max_leads" mapstructure:"max_leads"`
	LinkedInSearchPolicy string `yaml:"linkedin_search_policy" mapstructure:"linkedin_search_policy"`
	ProfileCacheTTLHours int    `yaml:"profile_cache_ttl_hours" mapstructure:"profile_cache_ttl_hours"`
}

// LeadTimeout returns the per-lead enrichment budget.
func (c EnrichConfig) LeadTimeout() time.Duration {
	return time.Duration(c.LeadTimeoutSecs) * time.Second
}

// BatchDelay returns the pause between batches.
func (c EnrichConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelaySecs) * time.Second
}

// ProfileCacheTTL returns how long scraped profiles stay fresh.
func (c EnrichConfig) ProfileCacheTTL() time.Duration {
	return time.Duration(c.ProfileCacheTTLHours) * time.Hour
}

// Search-policy values for EnrichConfig.LinkedInSearchPolicy.
const (
	PolicySkipOnDirect = "skip_on_direct"
	PolicyAlways       = "always"
)

// SearchConfig configures the multi-engine search client.
type SearchConfig struct {
	Engines           []string `yaml:"engines" mapstructure:"engines"`
	EngineTimeoutSecs int      `yaml:"engine_timeout_secs" mapstructure:"engine_timeout_secs"`
	JitterMS          int      `yaml:"jitter_ms" mapstructure:"jitter_ms"`
	MaxCandidates     int      `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// EngineTimeout returns the per-engine budget.
func (c SearchConfig) EngineTimeout() time.Duration {
	return time.Duration(c.EngineTimeoutSecs) * time.Second
}

// Jitter returns the maximum stagger before an engine call.
func (c SearchConfig) Jitter() time.Duration {
	return time.Duration(c.JitterMS) * time.Millisecond
}

// FetchConfig configures the page fetch chain.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyMB   int    `yaml:"max_body_mb" mapstructure:"max_body_mb"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// Timeout returns the per-fetch budget.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ReviewConfig configures low-score review flagging.
type ReviewConfig struct {
	Threshold int `yaml:"threshold" mapstructure:"threshold"`
}

// CRMConfig configures the lead-field mapping pushed back to Salesforce.
type CRMConfig struct {
	MappingPath string `yaml:"mapping_path" mapstructure:"mapping_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("enrich.batch_size", 5)
	v.SetDefault("enrich.lead_timeout_secs", 120)
	v.SetDefault("enrich.batch_delay_secs", 2)
	v.SetDefault("enrich.max_leads", 25)
	v.SetDefault("enrich.linkedin_search_policy", PolicySkipOnDirect)
	v.SetDefault("enrich.profile_cache_ttl_hours", 168)
	v.SetDefault("search.engines", []string{"duckduckgo", "bing", "brave"})
	v.SetDefault("search.engine_timeout_secs", 12)
	v.SetDefault("search.jitter_ms", 500)
	v.SetDefault("search.max_candidates", 10)
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("fetch.max_body_mb", 2)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; LeadEnrichBot/1.0)")
	v.SetDefault("review.threshold", 2)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("apify.timeout_secs", 90)
	v.SetDefault("sf.login_url", "https://login.salesforce.com")
	v.SetDefault("sf.rate_limit", 5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration can support the given mode
// ("enrich", "batch", "import", "serve"). All problems are reported at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Enrich.BatchSize < 1 || c.Enrich.BatchSize > 50 {
		problems = append(problems, "enrich.batch_size must be between 1 and 50")
	}
	if c.Enrich.LeadTimeoutSecs <= 0 {
		problems = append(problems, "enrich.lead_timeout_secs must be > 0")
	}
	switch c.Enrich.LinkedInSearchPolicy {
	case PolicySkipOnDirect, PolicyAlways:
	default:
		problems = append(problems, "enrich.linkedin_search_policy must be skip_on_direct or always")
	}
	if c.Search.EngineTimeoutSecs < 8 || c.Search.EngineTimeoutSecs > 15 {
		problems = append(problems, "search.engine_timeout_secs must be between 8 and 15")
	}

	switch mode {
	case "enrich", "import":
		// No credentials strictly required; adapters degrade per key.
	case "batch":
		if c.Salesforce.ClientID == "" {
			problems = append(problems, "sf.client_id is required")
		}
		if c.Salesforce.Username == "" {
			problems = append(problems, "sf.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			problems = append(problems, "sf.key_path is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		problems = append(problems, "unknown mode: "+mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
