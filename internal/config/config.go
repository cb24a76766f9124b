// Package config loads gestor settings from defaults, an optional YAML file
// and GESTOR_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. GESTOR_ASAAS_API_KEY.
const EnvPrefix = "GESTOR"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Asaas     AsaasConfig     `yaml:"asaas" mapstructure:"asaas"`
	PagSeguro PagSeguroConfig `yaml:"pagseguro" mapstructure:"pagseguro"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp" mapstructure:"whatsapp"`
	Cron      CronConfig      `yaml:"cron" mapstructure:"cron"`
	App       AppConfig       `yaml:"app" mapstructure:"app"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory, sqlite or kuzu
	Path   string `yaml:"path" mapstructure:"path"`
}

// AsaasConfig holds Asaas credentials.
type AsaasConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	BaseURL     string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// PagSeguroConfig holds PagBank credentials.
type PagSeguroConfig struct {
	Token       string `yaml:"token" mapstructure:"token"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	BaseURL     string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// WhatsAppConfig holds WhatsApp Cloud API credentials.
type WhatsAppConfig struct {
	PhoneNumberID string `yaml:"phone_number_id" mapstructure:"phone_number_id"`
	AccessToken   string `yaml:"access_token" mapstructure:"access_token"`
	VerifyToken   string `yaml:"verify_token" mapstructure:"verify_token"`
	APIVersion    string `yaml:"api_version" mapstructure:"api_version"`
	BaseURL       string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// CronConfig holds the shared secret scheduled jobs present as a bearer token.
type CronConfig struct {
	Secret string `yaml:"secret" mapstructure:"secret"`
}

// AppConfig holds deployment facts.
type AppConfig struct {
	PublicURL      string `yaml:"public_url" mapstructure:"public_url"`
	UTCOffsetHours int    `yaml:"utc_offset_hours" mapstructure:"utc_offset_hours"`
}

// HTTPConfig configures outbound HTTP.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// NotifyConfig bounds outbound notification fan-out.
type NotifyConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file,omitempty" mapstructure:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:    ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Database:  DatabaseConfig{Driver: "sqlite", Path: "data/gestor.db"},
		Asaas:     AsaasConfig{Environment: "production"},
		PagSeguro: PagSeguroConfig{Environment: "sandbox"},
		WhatsApp:  WhatsAppConfig{APIVersion: "v21.0"},
		App:       AppConfig{PublicURL: "http://localhost:8080", UTCOffsetHours: -3},
		HTTP:      HTTPConfig{Timeout: 30 * time.Second},
		Notify:    NotifyConfig{Concurrency: 4},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration. An empty path, or a path that does not
// exist, yields defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("asaas.api_key", d.Asaas.APIKey)
	v.SetDefault("asaas.environment", d.Asaas.Environment)
	v.SetDefault("asaas.base_url", d.Asaas.BaseURL)
	v.SetDefault("pagseguro.token", d.PagSeguro.Token)
	v.SetDefault("pagseguro.environment", d.PagSeguro.Environment)
	v.SetDefault("pagseguro.base_url", d.PagSeguro.BaseURL)
	v.SetDefault("whatsapp.phone_number_id", d.WhatsApp.PhoneNumberID)
	v.SetDefault("whatsapp.access_token", d.WhatsApp.AccessToken)
	v.SetDefault("whatsapp.verify_token", d.WhatsApp.VerifyToken)
	v.SetDefault("whatsapp.api_version", d.WhatsApp.APIVersion)
	v.SetDefault("whatsapp.base_url", d.WhatsApp.BaseURL)
	v.SetDefault("cron.secret", d.Cron.Secret)
	v.SetDefault("app.public_url", d.App.PublicURL)
	v.SetDefault("app.utc_offset_hours", d.App.UTCOffsetHours)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("notify.concurrency", d.Notify.Concurrency)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "sqlite", "kuzu":
	default:
		return fmt.Errorf("config: database.driver must be memory, sqlite or kuzu, got %q", c.Database.Driver)
	}
	if c.Database.Driver != "memory" && c.Database.Path == "" {
		return fmt.Errorf("config: database.path is required for driver %q", c.Database.Driver)
	}
	if c.App.UTCOffsetHours < -12 || c.App.UTCOffsetHours > 14 {
		return fmt.Errorf("config: app.utc_offset_hours out of range: %d", c.App.UTCOffsetHours)
	}
	if c.Notify.Concurrency < 1 {
		return fmt.Errorf("config: notify.concurrency must be at least 1")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("config: http.timeout must be positive")
	}
	return nil
}

// WriteDefaults writes the default configuration as YAML to path. An
// existing file is only replaced when force is set.
func WriteDefaults(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %s: %w", path, os.ErrExist)
		}
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("config: marshal defaults: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	header := []byte("# gestor configuration. Every key can be overridden with GESTOR_<SECTION>_<KEY>.\n")
	return os.WriteFile(path, append(header, data...), 0o600)
}
