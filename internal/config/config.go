// Package config loads quill settings from an optional YAML file, a .env file
// and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/FranksOps/quill/internal/fingerprint"
	"github.com/FranksOps/quill/internal/retry"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configuration validation errors.
var (
	ErrInvalidAttempts    = errors.New("retry attempts must be at least 1")
	ErrNegativeDelay      = errors.New("retry base_delay must be non-negative")
	ErrUnknownDriver      = errors.New("storage.driver must be one of: sqlite, postgres, json")
	ErrUnknownProvider    = errors.New("search.provider must be one of: google, serpapi, tavily")
	ErrMissingBaseURL     = errors.New("blog.base_url is required")
	ErrInvalidMaxLinks    = errors.New("search.max_links must be at least 1")
	ErrInvalidThreshold   = errors.New("thresholds must be positive")
	ErrInvalidLogLevel    = errors.New("log_level must be one of: debug, info, warn, error")
	ErrInvalidFingerprint = errors.New("fetch.fingerprint is not a known profile")
)

// EnvPrefix is prepended to every derived environment variable name.
const EnvPrefix = "QUILL"

// Config is the full set of quill settings.
type Config struct {
	LogLevel   string           `mapstructure:"log_level" yaml:"log_level"`
	LogFormat  string           `mapstructure:"log_format" yaml:"log_format"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds" yaml:"thresholds"`
	Search     SearchConfig     `mapstructure:"search" yaml:"search"`
	Retry      RetryConfig      `mapstructure:"retry" yaml:"retry"`
	Blog       BlogConfig       `mapstructure:"blog" yaml:"blog"`
	Fetch      FetchConfig      `mapstructure:"fetch" yaml:"fetch"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
}

// ThresholdsConfig holds the length gates used by ingestion, extraction and
// the update pipeline. All lengths count characters.
type ThresholdsConfig struct {
	MinIngestLength     int `mapstructure:"min_ingest_length" yaml:"min_ingest_length"`
	MinCompetitorLength int `mapstructure:"min_competitor_length" yaml:"min_competitor_length"`
	MinSiteChunk        int `mapstructure:"min_site_chunk" yaml:"min_site_chunk"`
	MinExternalChunk    int `mapstructure:"min_external_chunk" yaml:"min_external_chunk"`
	MinRewriteLength    int `mapstructure:"min_rewrite_length" yaml:"min_rewrite_length"`
	MaxExternalLength   int `mapstructure:"max_external_length" yaml:"max_external_length"`
	MinLinks            int `mapstructure:"min_links" yaml:"min_links"`
}

type SearchConfig struct {
	Provider          string   `mapstructure:"provider" yaml:"provider"`
	Blocklist         []string `mapstructure:"blocklist" yaml:"blocklist"`
	SelfDomain        string   `mapstructure:"self_domain" yaml:"self_domain"`
	Candidates        int      `mapstructure:"candidates" yaml:"candidates"`
	MaxLinks          int      `mapstructure:"max_links" yaml:"max_links"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	GoogleAPIKey      string   `mapstructure:"google_api_key" yaml:"-"`
	GoogleCX          string   `mapstructure:"google_cx" yaml:"-"`
	SerpAPIKey        string   `mapstructure:"serpapi_api_key" yaml:"-"`
	TavilyAPIKey      string   `mapstructure:"tavily_api_key" yaml:"-"`
	TavilyBaseURL     string   `mapstructure:"tavily_base_url" yaml:"tavily_base_url"`
}

// RetryPolicy is the per-stage attempt budget. The wait after attempt n is
// BaseDelay*n.
type RetryPolicy struct {
	Attempts  int           `mapstructure:"attempts" yaml:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
}

// Policy converts the setting into a retry.Policy.
func (p RetryPolicy) Policy() retry.Policy {
	return retry.Policy{Attempts: p.Attempts, BaseDelay: p.BaseDelay}
}

type RetryConfig struct {
	Search  RetryPolicy `mapstructure:"search" yaml:"search"`
	Scrape  RetryPolicy `mapstructure:"scrape" yaml:"scrape"`
	Rewrite RetryPolicy `mapstructure:"rewrite" yaml:"rewrite"`
}

type BlogConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	MaxPages       int           `mapstructure:"max_pages" yaml:"max_pages"`
	TargetCount    int           `mapstructure:"target_count" yaml:"target_count"`
	ListingTimeout time.Duration `mapstructure:"listing_timeout" yaml:"listing_timeout"`
	ArticleTimeout time.Duration `mapstructure:"article_timeout" yaml:"article_timeout"`
	Pause          time.Duration `mapstructure:"pause" yaml:"pause"`
}

type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects" yaml:"max_redirects"`
	Fingerprint  string        `mapstructure:"fingerprint" yaml:"fingerprint"`
	Robots       bool          `mapstructure:"robots" yaml:"robots"`
	UserAgents   []string      `mapstructure:"user_agents" yaml:"user_agents"`
	// RequestsPerSecond paces page fetches; 0 disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	// Proxies and ProxyFile list egress proxies; both may be set.
	Proxies   []string `mapstructure:"proxies" yaml:"proxies"`
	ProxyFile string   `mapstructure:"proxy_file" yaml:"proxy_file"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"-"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

type MetricsConfig struct {
	// Port 0 disables the metrics endpoint.
	Port int `mapstructure:"port" yaml:"port"`
}

type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key" yaml:"-"`
	Model   string        `mapstructure:"model" yaml:"model"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DefaultBlocklist lists hosts whose pages are forums, marketplaces or
// social feeds rather than articles.
var DefaultBlocklist = []string{
	"reddit.com", "medium.com", "amazon.", "quora.com", "youtube.com",
	"facebook.com", "twitter.com", "linkedin.com", "weforum.org",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("thresholds.min_ingest_length", 150)
	v.SetDefault("thresholds.min_competitor_length", 500)
	v.SetDefault("thresholds.min_site_chunk", 20)
	v.SetDefault("thresholds.min_external_chunk", 40)
	v.SetDefault("thresholds.min_rewrite_length", 100)
	v.SetDefault("thresholds.max_external_length", 8000)
	v.SetDefault("thresholds.min_links", 2)

	v.SetDefault("search.provider", "google")
	v.SetDefault("search.blocklist", DefaultBlocklist)
	v.SetDefault("search.self_domain", "beyondchats.com")
	v.SetDefault("search.candidates", 5)
	v.SetDefault("search.max_links", 2)
	v.SetDefault("search.requests_per_second", 0)
	v.SetDefault("search.google_api_key", "")
	v.SetDefault("search.google_cx", "")
	v.SetDefault("search.serpapi_api_key", "")
	v.SetDefault("search.tavily_api_key", "")
	v.SetDefault("search.tavily_base_url", "")

	v.SetDefault("retry.search.attempts", 2)
	v.SetDefault("retry.search.base_delay", time.Second)
	v.SetDefault("retry.scrape.attempts", 2)
	v.SetDefault("retry.scrape.base_delay", time.Second)
	v.SetDefault("retry.rewrite.attempts", 3)
	v.SetDefault("retry.rewrite.base_delay", 2*time.Second)

	v.SetDefault("blog.base_url", "https://beyondchats.com/blogs")
	v.SetDefault("blog.max_pages", 30)
	v.SetDefault("blog.target_count", 5)
	v.SetDefault("blog.listing_timeout", 8*time.Second)
	v.SetDefault("blog.article_timeout", 15*time.Second)
	v.SetDefault("blog.pause", time.Duration(0))

	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.max_redirects", 5)
	v.SetDefault("fetch.fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("fetch.robots", false)
	v.SetDefault("fetch.user_agents", []string{})
	v.SetDefault("fetch.requests_per_second", 0)
	v.SetDefault("fetch.proxies", []string{})
	v.SetDefault("fetch.proxy_file", "")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("server.port", 5000)
	v.SetDefault("metrics.port", 0)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 30*time.Second)
}

// legacyEnv maps keys onto the variable names the deployment already uses.
// The QUILL_ name is still honoured first.
var legacyEnv = map[string]string{
	"search.google_api_key":  "GOOGLE_API_KEY",
	"search.google_cx":       "GOOGLE_CSE_ID",
	"search.serpapi_api_key": "SERPAPI_API_KEY",
	"search.tavily_api_key":  "TAVILY_API_KEY",
	"llm.api_key":            "LLM_API_KEY",
	"storage.dsn":            "DATABASE_URL",
	"server.port":            "PORT",
}

// Load reads the configuration. An empty path looks for quill.yaml in the
// working directory and tolerates its absence; an explicit path must exist.
// A .env file in the working directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("quill")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = defaultDSN(cfg.Storage.Driver)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func defaultDSN(driver string) string {
	switch driver {
	case "sqlite":
		return "quill.db"
	case "json":
		return "quill.json"
	}
	return ""
}

// Validate checks the configuration for values no component can run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}

	for name, p := range map[string]RetryPolicy{
		"search":  c.Retry.Search,
		"scrape":  c.Retry.Scrape,
		"rewrite": c.Retry.Rewrite,
	} {
		if p.Attempts < 1 {
			return fmt.Errorf("%w: retry.%s", ErrInvalidAttempts, name)
		}
		if p.BaseDelay < 0 {
			return fmt.Errorf("%w: retry.%s", ErrNegativeDelay, name)
		}
	}

	t := c.Thresholds
	for _, n := range []int{t.MinIngestLength, t.MinCompetitorLength, t.MinSiteChunk, t.MinExternalChunk, t.MinRewriteLength, t.MaxExternalLength, t.MinLinks} {
		if n <= 0 {
			return ErrInvalidThreshold
		}
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres", "json":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Storage.Driver)
	}

	switch c.Search.Provider {
	case "google", "serpapi", "tavily":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Search.Provider)
	}
	if c.Search.MaxLinks < 1 {
		return ErrInvalidMaxLinks
	}

	if strings.TrimSpace(c.Blog.BaseURL) == "" {
		return ErrMissingBaseURL
	}

	if _, err := fingerprint.ParseProfile(c.Fetch.Fingerprint); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidFingerprint, c.Fetch.Fingerprint)
	}
	return nil
}
