package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Reports   ReportsConfig   `yaml:"reports" mapstructure:"reports"`
	Snapshot  SnapshotConfig  `yaml:"snapshot" mapstructure:"snapshot"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	WorkOS    WorkOSConfig    `yaml:"workos" mapstructure:"workos"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the relational backend holding users, entities and memberships.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ReportsConfig configures the document backend holding analysis reports.
type ReportsConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	MongoURI   string `yaml:"mongo_uri" mapstructure:"mongo_uri"`
	Database   string `yaml:"database" mapstructure:"database"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// SnapshotConfig configures raw HTML snapshot uploads to S3-compatible storage.
type SnapshotConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	Region    string `yaml:"region" mapstructure:"region"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// LLMConfig selects the provider and pins the sampling parameters per stage.
type LLMConfig struct {
	Provider              string  `yaml:"provider" mapstructure:"provider"`
	MaxTokens             int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	TestMaxTokens         int64   `yaml:"test_max_tokens" mapstructure:"test_max_tokens"`
	ExtractTemperature    float64 `yaml:"extract_temperature" mapstructure:"extract_temperature"`
	GenerateTemperature   float64 `yaml:"generate_temperature" mapstructure:"generate_temperature"`
	TestTemperature       float64 `yaml:"test_temperature" mapstructure:"test_temperature"`
	TimeoutSecs           int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BreakerFailThreshold  int     `yaml:"breaker_fail_threshold" mapstructure:"breaker_fail_threshold"`
	BreakerResetTimeoutMs int     `yaml:"breaker_reset_timeout_ms" mapstructure:"breaker_reset_timeout_ms"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// WorkOSConfig holds WorkOS user management credentials.
type WorkOSConfig struct {
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// FetchConfig configures the website fetcher.
type FetchConfig struct {
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	MaxBodyBytes     int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxTextChars     int     `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	HostRPS          float64 `yaml:"host_rps" mapstructure:"host_rps"`
}

// AnalysisConfig configures the per-stage budgets of the analysis pipeline.
type AnalysisConfig struct {
	QuestionsPerSet   int `yaml:"questions_per_set" mapstructure:"questions_per_set"`
	MinQuestions      int `yaml:"min_questions" mapstructure:"min_questions"`
	MaxQuestions      int `yaml:"max_questions" mapstructure:"max_questions"`
	PromptTextChars   int `yaml:"prompt_text_chars" mapstructure:"prompt_text_chars"`
	ExtractAttempts   int `yaml:"extract_attempts" mapstructure:"extract_attempts"`
	GenerateAttempts  int `yaml:"generate_attempts" mapstructure:"generate_attempts"`
	TestAttempts      int `yaml:"test_attempts" mapstructure:"test_attempts"`
	TestConcurrency   int `yaml:"test_concurrency" mapstructure:"test_concurrency"`
	InitialBackoffMs  int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	PersistTimeoutSec int `yaml:"persist_timeout_secs" mapstructure:"persist_timeout_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS     float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst   int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
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
	v.SetEnvPrefix("LUMARANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so AutomaticEnv overrides reach Unmarshal.
	for _, key := range []string{
		"store.database_url",
		"anthropic.key", "anthropic.base_url",
		"openai.key", "openai.base_url",
		"workos.api_key", "workos.client_id", "workos.endpoint",
		"snapshot.endpoint", "snapshot.access_key", "snapshot.secret_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("snapshot.use_ssl", true)

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("reports.driver", "mongo")
	v.SetDefault("reports.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("reports.database", "lumarank")
	v.SetDefault("reports.collection", "website_crawl_data")
	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.bucket", "lumarank-snapshots")
	v.SetDefault("snapshot.region", "us-east-1")
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.test_max_tokens", 500)
	v.SetDefault("llm.extract_temperature", 0.0)
	v.SetDefault("llm.generate_temperature", 0.3)
	v.SetDefault("llm.test_temperature", 0.1)
	v.SetDefault("llm.timeout_secs", 60)
	v.SetDefault("llm.breaker_fail_threshold", 5)
	v.SetDefault("llm.breaker_reset_timeout_ms", 30000)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("openai.model", "gpt-4.1-mini")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.initial_backoff_ms", 500)
	v.SetDefault("fetch.max_backoff_ms", 8000)
	v.SetDefault("fetch.max_body_bytes", 5<<20)
	v.SetDefault("fetch.max_text_chars", 50000)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; WebsiteAnalyzer/1.0)")
	v.SetDefault("fetch.host_rps", 2.0)
	v.SetDefault("analysis.questions_per_set", 5)
	v.SetDefault("analysis.min_questions", 3)
	v.SetDefault("analysis.max_questions", 8)
	v.SetDefault("analysis.prompt_text_chars", 10000)
	v.SetDefault("analysis.extract_attempts", 3)
	v.SetDefault("analysis.generate_attempts", 3)
	v.SetDefault("analysis.test_attempts", 3)
	v.SetDefault("analysis.test_concurrency", 4)
	v.SetDefault("analysis.initial_backoff_ms", 1000)
	v.SetDefault("analysis.max_backoff_ms", 15000)
	v.SetDefault("analysis.persist_timeout_secs", 10)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:8080"})
	v.SetDefault("server.rate_limit_rps", 100.0/60.0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("server.read_timeout_secs", 30)
	v.SetDefault("server.write_timeout_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that the keys required by the given command are present.
// Supported modes: "serve", "analyze", "store".
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				missing = append(missing, "store.database_url is required")
			}
		case "sqlite":
		default:
			missing = append(missing, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
		}
		switch c.Reports.Driver {
		case "mongo":
			if c.Reports.MongoURI == "" {
				missing = append(missing, "reports.mongo_uri is required")
			}
		case "sqlite":
		default:
			missing = append(missing, fmt.Sprintf("reports.driver %q is not supported", c.Reports.Driver))
		}
	}

	requireLLM := func() {
		switch c.LLM.Provider {
		case "anthropic":
			if c.Anthropic.Key == "" {
				missing = append(missing, "anthropic.key is required")
			}
		case "openai":
			if c.OpenAI.Key == "" {
				missing = append(missing, "openai.key is required")
			}
		default:
			missing = append(missing, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
		}
	}

	switch mode {
	case "serve":
		requireStore()
		requireLLM()
		if c.WorkOS.APIKey == "" {
			missing = append(missing, "workos.api_key is required")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			missing = append(missing, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
		}
	case "analyze":
		requireLLM()
	case "store":
		requireStore()
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if c.Snapshot.Enabled && c.Snapshot.Endpoint == "" {
		missing = append(missing, "snapshot.endpoint is required when snapshot.enabled is set")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
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
