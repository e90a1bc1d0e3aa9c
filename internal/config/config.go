// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (config.yaml in the working directory or /etc/vibey)
//  3. Default values
//
// Secrets (provider API keys, postgres password, auth secret) are only read
// from the environment and are masked in MarshalJSON/String so the config can
// be logged safely. Validation is fail-fast with sentinel errors checkable
// via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrNoProviderKeys indicates no LLM provider API key is configured.
	ErrNoProviderKeys = errors.New("no LLM provider API keys configured")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidHistoryTurns indicates the history window is out of range.
	ErrInvalidHistoryTurns = errors.New("invalid max history turns")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidTimeout indicates the per-turn timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid agent timeout")
)

// Default endpoints and models for the two supported providers.
// DeepSeek is primary; Groq is the fallback.
const (
	DefaultPrimaryBaseURL  = "https://api.deepseek.com/v1"
	DefaultPrimaryModel    = "deepseek-chat"
	DefaultFallbackBaseURL = "https://api.groq.com/openai/v1"
	DefaultFallbackModel   = "llama-3.3-70b-versatile"
)

// Provider holds the connection settings for one OpenAI-compatible provider.
type Provider struct {
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	Model   string `mapstructure:"model" json:"model"`
	APIKey  string `mapstructure:"-" json:"-"` // env only, never from file
}

// Configured reports whether this provider can be called at all.
func (p Provider) Configured() bool {
	return p.APIKey != "" && p.BaseURL != ""
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// LLM provider configuration
	Primary     Provider `mapstructure:"primary" json:"primary"`
	Fallback    Provider `mapstructure:"fallback" json:"fallback"`
	Temperature float64  `mapstructure:"temperature" json:"temperature"`

	// Agent behavior
	MaxHistoryTurns int `mapstructure:"max_history_turns" json:"max_history_turns"`
	FileCharBudget  int `mapstructure:"file_char_budget" json:"file_char_budget"`
	AgentTimeoutSec int `mapstructure:"agent_timeout_sec" json:"agent_timeout_sec"`

	// HTTP server
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateLimit   float64  `mapstructure:"rate_limit" json:"rate_limit"` // tokens per second per IP
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Auth: HMAC secret for bearer-token verification. Empty disables
	// authenticated identities; every caller is then the guest identity.
	AuthSecret string `mapstructure:"auth_secret" json:"auth_secret"` // SENSITIVE: masked in MarshalJSON

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values.
// A .env file in the working directory is loaded first if present (dev only).
func Load() (*Config, error) {
	// Best-effort: missing .env is the normal production case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/vibey")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Provider API keys come straight from the environment.
	cfg.Primary.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	cfg.Fallback.APIKey = os.Getenv("GROQ_API_KEY")

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("primary.base_url", DefaultPrimaryBaseURL)
	v.SetDefault("primary.model", DefaultPrimaryModel)
	v.SetDefault("fallback.base_url", DefaultFallbackBaseURL)
	v.SetDefault("fallback.model", DefaultFallbackModel)
	v.SetDefault("temperature", 0.7)

	v.SetDefault("max_history_turns", 20)
	v.SetDefault("file_char_budget", 12000)
	v.SetDefault("agent_timeout_sec", 90)

	v.SetDefault("addr", "127.0.0.1:3001")
	v.SetDefault("cors_origins", []string{"http://localhost:9000"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_limit", 0.25) // 15 requests per minute
	v.SetDefault("rate_burst", 15)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "vibey")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "vibey")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds runtime overrides explicitly. Provider API keys and
// DATABASE_URL are read directly from the environment in Load, not via viper.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("addr", "VIBEY_ADDR")
	mustBind("cors_origins", "VIBEY_CORS_ORIGINS")
	mustBind("trust_proxy", "VIBEY_TRUST_PROXY")
	mustBind("rate_limit", "VIBEY_RATE_LIMIT")
	mustBind("rate_burst", "VIBEY_RATE_BURST")
	mustBind("auth_secret", "VIBEY_AUTH_SECRET")
	mustBind("primary.model", "VIBEY_PRIMARY_MODEL")
	mustBind("fallback.model", "VIBEY_FALLBACK_MODEL")
	mustBind("agent_timeout_sec", "VIBEY_AGENT_TIMEOUT_SEC")
}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if !c.Primary.Configured() && !c.Fallback.Configured() {
		return fmt.Errorf("%w: set DEEPSEEK_API_KEY and/or GROQ_API_KEY", ErrNoProviderKeys)
	}

	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxHistoryTurns < 1 || c.MaxHistoryTurns > 200 {
		return fmt.Errorf("%w: must be between 1 and 200, got %d", ErrInvalidHistoryTurns, c.MaxHistoryTurns)
	}

	if c.AgentTimeoutSec < 5 || c.AgentTimeoutSec > 600 {
		return fmt.Errorf("%w: must be between 5 and 600 seconds, got %d", ErrInvalidTimeout, c.AgentTimeoutSec)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	return nil
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 chars or
// fewer are fully masked to prevent substring matching; longer ones keep the
// first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.AuthSecret = maskSecret(a.AuthSecret)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// quoteDSNValue quotes a value for PostgreSQL key=value DSN format.
func quoteDSNValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// PostgresConnectionString returns the PostgreSQL DSN for the pgx driver.
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresUser,
		quoteDSNValue(c.PostgresPassword),
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}
