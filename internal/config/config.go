// Package config provides application configuration with multi-source
// priority: environment variables (ASKAQL_*) override the config file
// (~/.askaql/config.yaml), which overrides defaults.
//
// Sensitive fields (passwords, API keys) are masked in MarshalJSON;
// update it when adding new secret fields.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors, checked with errors.Is.
var (
	ErrInvalidServerAddr      = errors.New("invalid server address")
	ErrInvalidPostgresHost    = errors.New("invalid PostgreSQL host")
	ErrInvalidPostgresPort    = errors.New("invalid PostgreSQL port")
	ErrInvalidPostgresDBName  = errors.New("invalid PostgreSQL database name")
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
	ErrMissingAuthURL         = errors.New("missing auth service URL")
)

// Provider defaults. Both vendors speak the OpenAI chat protocol.
const (
	DefaultPrimaryBaseURL = "https://api.genspark.ai/v1"
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbedModel     = "text-embedding-3-small"
)

// ProviderConfig identifies one answer-generation vendor.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	APIKey  string `mapstructure:"api_key" json:"-"`
	Model   string `mapstructure:"model" json:"model"`
}

// Config stores application configuration.
type Config struct {
	// HTTP server
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`
	RateBurst  int    `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"`

	// PostgreSQL (document chunk store)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_dbname" json:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode" json:"postgres_sslmode"`

	// Auth service (Supabase-compatible)
	AuthURL        string `mapstructure:"auth_url" json:"auth_url"`
	AuthServiceKey string `mapstructure:"auth_service_key" json:"-"`

	// AI providers: primary answers, secondary is the fallback and the
	// embedder host.
	Primary    ProviderConfig `mapstructure:"primary" json:"primary"`
	Secondary  ProviderConfig `mapstructure:"secondary" json:"secondary"`
	EmbedModel string         `mapstructure:"embed_model" json:"embed_model"`

	// Tracing (OTLP to local agent; empty host disables)
	TraceAgentHost   string `mapstructure:"trace_agent_host" json:"trace_agent_host"`
	TraceEnvironment string `mapstructure:"trace_environment" json:"trace_environment"`
	TraceService     string `mapstructure:"trace_service" json:"trace_service"`
}

// Load reads configuration from all sources.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("ASKAQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".askaql"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key, including empty secrets: viper only
// surfaces env-only values through Unmarshal for keys it already knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", "127.0.0.1:8080")
	v.SetDefault("rate_burst", 0)
	v.SetDefault("trust_proxy", false)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "askaql")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_dbname", "askaql")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("auth_url", "")
	v.SetDefault("auth_service_key", "")

	v.SetDefault("primary.base_url", DefaultPrimaryBaseURL)
	v.SetDefault("primary.api_key", "")
	v.SetDefault("primary.model", DefaultModel)
	v.SetDefault("secondary.base_url", "") // empty = api.openai.com
	v.SetDefault("secondary.api_key", "")
	v.SetDefault("secondary.model", DefaultModel)
	v.SetDefault("embed_model", DefaultEmbedModel)

	v.SetDefault("trace_agent_host", "")
	v.SetDefault("trace_service", "askaql")
	v.SetDefault("trace_environment", "dev")
}

// MarshalJSON masks secrets so configs can be logged safely.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := struct {
		*alias
		PostgresPassword string `json:"postgres_password"`
		AuthServiceKey   string `json:"auth_service_key"`
	}{
		alias:            (*alias)(c),
		PostgresPassword: maskSecret(c.PostgresPassword),
		AuthServiceKey:   maskSecret(c.AuthServiceKey),
	}
	return json.Marshal(masked)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
