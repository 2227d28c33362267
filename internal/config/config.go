package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/openqb/qantagen/internal/answer"
	"github.com/openqb/qantagen/internal/classify"
	"github.com/openqb/qantagen/internal/segment"
)

// AppName is used for default XDG directory paths.
const AppName = "qantagen"

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Cache    CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Wiki     WikiConfig      `yaml:"wiki" mapstructure:"wiki"`
	Resolve  ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Segment  segment.Config  `yaml:"segment" mapstructure:"segment"`
	Answer   answer.Config   `yaml:"answer" mapstructure:"answer"`
	Classify classify.Config `yaml:"classify" mapstructure:"classify"`
	Convert  ConvertConfig   `yaml:"convert" mapstructure:"convert"`
	Files    FilesConfig     `yaml:"files" mapstructure:"files"`
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the durable cache and run store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the in-memory cache tier.
type CacheConfig struct {
	TTLMinutes   int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	PurgeMinutes int `yaml:"purge_minutes" mapstructure:"purge_minutes"`
}

// WikiConfig holds MediaWiki API client settings.
type WikiConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SearchLimit int     `yaml:"search_limit" mapstructure:"search_limit"`
	RateRPS     float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	RateBurst   int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// ResolveConfig configures answer canonicalization.
type ResolveConfig struct {
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffMS  int `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	// FetchArticles controls whether article extracts are fetched and
	// cached alongside resolved titles.
	FetchArticles bool `yaml:"fetch_articles" mapstructure:"fetch_articles"`
	// MinTitleSimilarity gates acceptance of a non-exact top hit.
	// Zero keeps the default policy: the first candidate is accepted.
	MinTitleSimilarity float64 `yaml:"min_title_similarity" mapstructure:"min_title_similarity"`
}

// ConvertConfig configures conversion runs.
type ConvertConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	Fold        string `yaml:"fold" mapstructure:"fold"`
	Format      string `yaml:"format" mapstructure:"format"`
	OutDir      string `yaml:"out_dir" mapstructure:"out_dir"`
}

// FilesConfig points at optional YAML files that replace the inline
// taxonomy and synonym tables.
type FilesConfig struct {
	Taxonomy string `yaml:"taxonomy" mapstructure:"taxonomy"`
	Synonyms string `yaml:"synonyms" mapstructure:"synonyms"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultDataDir returns the default directory for the sqlite store.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// DefaultConfigDir returns the default directory for config.yaml.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(DefaultConfigDir())

	// Environment
	v.SetEnvPrefix("QANTAGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", filepath.Join(DefaultDataDir(), "qantagen.db"))
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("cache.purge_minutes", 10)
	v.SetDefault("wiki.base_url", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("wiki.user_agent", "qantagen/1.0 (https://github.com/openqb/qantagen)")
	v.SetDefault("wiki.timeout_secs", 10)
	v.SetDefault("wiki.search_limit", 5)
	v.SetDefault("wiki.rate_rps", 5)
	v.SetDefault("wiki.rate_burst", 5)
	v.SetDefault("resolve.max_retries", 3)
	v.SetDefault("resolve.backoff_ms", 500)
	v.SetDefault("resolve.fetch_articles", true)
	v.SetDefault("resolve.min_title_similarity", 0)
	v.SetDefault("segment.strip_giveaway", false)
	v.SetDefault("segment.abbreviations", segment.DefaultAbbreviations())
	v.SetDefault("classify.default", classify.DefaultLabel)
	v.SetDefault("convert.concurrency", 4)
	v.SetDefault("convert.fold", "test")
	v.SetDefault("convert.format", "csv")
	v.SetDefault("convert.out_dir", "data/output")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if err := cfg.loadExternalFiles(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadExternalFiles replaces the inline taxonomy and synonym tables
// with the contents of the configured YAML files, when set.
func (c *Config) loadExternalFiles() error {
	if c.Files.Taxonomy != "" {
		data, err := os.ReadFile(c.Files.Taxonomy)
		if err != nil {
			return eris.Wrapf(err, "config: read taxonomy file %s", c.Files.Taxonomy)
		}
		var tax classify.Config
		if err := yaml.Unmarshal(data, &tax); err != nil {
			return eris.Wrapf(err, "config: parse taxonomy file %s", c.Files.Taxonomy)
		}
		if len(tax.Rules) > 0 {
			c.Classify.Rules = tax.Rules
		}
		if tax.Default != "" {
			c.Classify.Default = tax.Default
		}
	}

	if c.Files.Synonyms != "" {
		data, err := os.ReadFile(c.Files.Synonyms)
		if err != nil {
			return eris.Wrapf(err, "config: read synonyms file %s", c.Files.Synonyms)
		}
		var syn struct {
			Synonyms map[string]string `yaml:"synonyms"`
		}
		if err := yaml.Unmarshal(data, &syn); err != nil {
			return eris.Wrapf(err, "config: parse synonyms file %s", c.Files.Synonyms)
		}
		if len(syn.Synonyms) > 0 {
			c.Answer.Synonyms = syn.Synonyms
		}
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
