// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.recall/config.yaml)
//  3. Default values
//
// Categories:
//   - AI: provider, model, embedder
//   - Storage: PostgreSQL connection (pgvector message index)
//   - Cache: response cache directory and TTL
//   - Chat: designated help channel and bot identity
//   - Observability: OTLP trace export
//
// Validation runs at Load time so a misconfigured process fails fast with a
// sentinel error instead of failing on the first request. Check sentinels
// with errors.Is().
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation. All of them wrap
// ErrConfiguration so callers can classify any config fault with a single
// errors.Is check.
var (
	// ErrConfiguration is the root classification for startup config faults.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = fmt.Errorf("%w: missing API key", ErrConfiguration)

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = fmt.Errorf("%w: invalid provider", ErrConfiguration)

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = fmt.Errorf("%w: invalid model name", ErrConfiguration)

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = fmt.Errorf("%w: invalid embedder model", ErrConfiguration)

	// ErrInvalidPostgres indicates the PostgreSQL connection settings are invalid.
	ErrInvalidPostgres = fmt.Errorf("%w: invalid PostgreSQL settings", ErrConfiguration)

	// ErrInvalidCacheTTL indicates the cache TTL is out of range.
	ErrInvalidCacheTTL = fmt.Errorf("%w: invalid cache TTL", ErrConfiguration)

	// ErrInvalidCacheDir indicates the cache directory is empty.
	ErrInvalidCacheDir = fmt.Errorf("%w: invalid cache directory", ErrConfiguration)

	// ErrInvalidChannel indicates the designated help channel ID is empty.
	ErrInvalidChannel = fmt.Errorf("%w: invalid help channel", ErrConfiguration)
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions, which is
	// what the pgvector schema uses; see index.VectorDimension.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultCacheTTLHours is the default response cache time-to-live.
	DefaultCacheTTLHours = 24

	// MaxCacheTTLHours bounds the TTL so a typo cannot pin answers forever.
	MaxCacheTTLHours = 24 * 30

	// DefaultHelpChannelID is the only channel the bot posts answers to.
	DefaultHelpChannelID = "help"

	// DefaultBotName is the user name bot messages are attributed to.
	DefaultBotName = "RAG Assistant"
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider  string `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName string `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "llama3.3", "gpt-4o"

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedder for the message index
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Storage configuration (message index + chat messages)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // never logged
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Response cache configuration
	CacheDir      string `mapstructure:"cache_dir" json:"cache_dir"`
	CacheTTLHours int    `mapstructure:"cache_ttl_hours" json:"cache_ttl_hours"`

	// Chat delivery configuration
	HelpChannelID string `mapstructure:"help_channel_id" json:"help_channel_id"`
	BotName       string `mapstructure:"bot_name" json:"bot_name"`

	// Trace export (optional; empty host disables)
	OTLPAgentHost string `mapstructure:"otlp_agent_host" json:"otlp_agent_host"`
	ServiceName   string `mapstructure:"service_name" json:"service_name"`
}

// Load loads configuration and validates it in full.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCache loads configuration but validates only the response cache
// settings. For commands that work purely on the cache directory and must
// not demand provider API keys or database settings they never use.
func LoadCache() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateCache(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// load reads the configuration sources without validating the result.
func load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".recall")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "recall")
	v.SetDefault("postgres_password", "recall_dev_password")
	v.SetDefault("postgres_db_name", "recall")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("cache_dir", ".cache")
	v.SetDefault("cache_ttl_hours", DefaultCacheTTLHours)

	v.SetDefault("help_channel_id", DefaultHelpChannelID)
	v.SetDefault("bot_name", DefaultBotName)

	v.SetDefault("otlp_agent_host", "")
	v.SetDefault("service_name", "recall")
}

// bindEnvVariables binds environment overrides explicitly.
// Provider API keys (GEMINI_API_KEY, OPENAI_API_KEY) are read directly by
// the genkit plugins, not via viper; Validate checks their presence.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "RECALL_PROVIDER")
	mustBind("model_name", "RECALL_MODEL_NAME")
	mustBind("ollama_host", "RECALL_OLLAMA_HOST")
	mustBind("embedder_model", "RECALL_EMBEDDER_MODEL")

	mustBind("postgres_host", "RECALL_POSTGRES_HOST")
	mustBind("postgres_port", "RECALL_POSTGRES_PORT")
	mustBind("postgres_user", "RECALL_POSTGRES_USER")
	mustBind("postgres_password", "RECALL_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "RECALL_POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "RECALL_POSTGRES_SSL_MODE")

	mustBind("cache_dir", "RECALL_CACHE_DIR")
	mustBind("cache_ttl_hours", "RECALL_CACHE_TTL_HOURS")

	mustBind("help_channel_id", "RECALL_HELP_CHANNEL_ID")
	mustBind("bot_name", "RECALL_BOT_NAME")

	mustBind("otlp_agent_host", "RECALL_OTLP_AGENT_HOST")
	mustBind("service_name", "RECALL_SERVICE_NAME")
}

// Validate checks the configuration and returns a sentinel error (wrapping
// ErrConfiguration) on the first problem found. No external collaborator is
// contacted here.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY not set for provider %q", ErrMissingAPIKey, c.Provider)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY not set for provider %q", ErrMissingAPIKey, c.Provider)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host is empty", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: %q (must be one of: gemini, ollama, openai)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model_name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model is empty", ErrInvalidEmbedderModel)
	}

	if c.PostgresHost == "" || c.PostgresDBName == "" || c.PostgresUser == "" {
		return fmt.Errorf("%w: host, user and db name are required", ErrInvalidPostgres)
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgres, c.PostgresPort)
	}

	if err := c.ValidateCache(); err != nil {
		return err
	}

	if strings.TrimSpace(c.HelpChannelID) == "" {
		return fmt.Errorf("%w: help_channel_id is empty", ErrInvalidChannel)
	}

	return nil
}

// ValidateCache checks only the response cache settings.
func (c *Config) ValidateCache() error {
	if strings.TrimSpace(c.CacheDir) == "" {
		return fmt.Errorf("%w: cache_dir is empty", ErrInvalidCacheDir)
	}
	if c.CacheTTLHours <= 0 || c.CacheTTLHours > MaxCacheTTLHours {
		return fmt.Errorf("%w: %d hours (must be 1..%d)", ErrInvalidCacheTTL, c.CacheTTLHours, MaxCacheTTLHours)
	}
	return nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return "googleai/" + c.ModelName
	}
}

// PostgresURL returns the connection string in URL form, suitable for both
// pgxpool and golang-migrate.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
