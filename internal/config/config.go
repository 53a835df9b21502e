// Package config loads contractcheck settings from an optional YAML file, a
// .env file, and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dshills/contractcheck/internal/llm"
	"github.com/dshills/contractcheck/internal/profile"
)

// EnvPrefix prefixes every environment override, e.g. CONTRACTCHECK_PROVIDER.
const EnvPrefix = "CONTRACTCHECK"

// Config is the complete contractcheck configuration.
type Config struct {
	Provider     string          `json:"provider" mapstructure:"provider"`
	Model        string          `json:"model" mapstructure:"model"`
	BaseURL      string          `json:"base_url" mapstructure:"base_url"`
	APIKey       string          `json:"-" mapstructure:"api_key"`
	Temperature  float64         `json:"temperature" mapstructure:"temperature"`
	StageTimeout time.Duration   `json:"stage_timeout" mapstructure:"stage_timeout"`
	Concurrency  int             `json:"concurrency" mapstructure:"concurrency"`
	Profile      string          `json:"profile" mapstructure:"profile"`
	RateLimit    RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`
	Server       ServerConfig    `json:"server" mapstructure:"server"`
}

// RateLimitConfig throttles model calls. RPS 0 disables throttling.
type RateLimitConfig struct {
	RPS   float64 `json:"rps" mapstructure:"rps"`
	Burst int     `json:"burst" mapstructure:"burst"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string `json:"addr" mapstructure:"addr"`
	MaxUploadMB int    `json:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// vendorKeys lists the vendor environment variables consulted, in order,
// when no api_key is configured.
var vendorKeys = map[string][]string{
	llm.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	llm.ProviderOpenAI:    {"OPENAI_API_KEY"},
	llm.ProviderGoogle:    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// Load reads configuration. A .env file in the working directory is loaded
// first if present. When path is empty, contractcheck.yaml is looked up in
// the working directory and $HOME/.config/contractcheck; a missing file is
// not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	// Load .env first (ignore error if not present)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("contractcheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/contractcheck")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if name, err := llm.CanonicalName(cfg.Provider); err == nil {
		cfg.Provider = name
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", llm.ProviderGoogle)
	v.SetDefault("model", "")
	v.SetDefault("base_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("temperature", 0.2)
	v.SetDefault("stage_timeout", "60s")
	v.SetDefault("concurrency", 4)
	v.SetDefault("profile", profile.Default)
	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_mb", 20)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := llm.CanonicalName(c.Provider); err != nil {
		return fmt.Errorf("config: provider: %w", err)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("config: temperature %v out of range [0, 2]", c.Temperature)
	}
	if c.StageTimeout <= 0 {
		return fmt.Errorf("config: stage_timeout must be positive, got %s", c.StageTimeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("config: rate_limit.rps must not be negative, got %v", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("config: rate_limit.burst must be at least 1, got %d", c.RateLimit.Burst)
	}
	if _, err := profile.Load(c.Profile); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("config: server.max_upload_mb must be at least 1, got %d", c.Server.MaxUploadMB)
	}
	return nil
}

// ResolvedAPIKey returns the configured API key, or the provider's vendor
// environment variable when none is configured.
func (c *Config) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	name, err := llm.CanonicalName(c.Provider)
	if err != nil {
		return ""
	}
	for _, k := range vendorKeys[name] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// LLM returns the provider settings.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		Provider: c.Provider,
		Model:    c.ResolvedModel(),
		APIKey:   c.ResolvedAPIKey(),
		BaseURL:  c.BaseURL,
	}
}

// ResolvedModel returns the configured model or the provider default.
func (c *Config) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	name, err := llm.CanonicalName(c.Provider)
	if err != nil {
		return ""
	}
	return llm.DefaultModel(name)
}

// MaxUploadBytes returns the HTTP upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}
