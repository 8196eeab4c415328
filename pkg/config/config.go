package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RESTRICTED_DOMAINS"

type TransportConfig struct {
	Type string `mapstructure:"type"` // "stdio" or "sse"
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type ExtensionConfig struct {
	ID      string   `mapstructure:"id"`
	Domains []string `mapstructure:"domains"`
}

type PrefsConfig struct {
	Backend string `mapstructure:"backend"` // "sqlite" or "memory"
	Path    string `mapstructure:"path"`
}

type NotificationsConfig struct {
	HelpURL string `mapstructure:"help_url"`
	Locale  string `mapstructure:"locale"`
	// Windows is the number of browser windows the host bridge starts with.
	Windows int `mapstructure:"windows"`
}

type ServerConfig struct {
	Transport       TransportConfig     `mapstructure:"transport"`
	LogLevel        string              `mapstructure:"log_level"`
	LogFormat       string              `mapstructure:"log_format"`
	LogBufferSize   int                 `mapstructure:"log_buffer_size"`
	ShutdownTimeout time.Duration       `mapstructure:"shutdown_timeout"`
	Extension       ExtensionConfig     `mapstructure:"extension"`
	Prefs           PrefsConfig         `mapstructure:"prefs"`
	Notifications   NotificationsConfig `mapstructure:"notifications"`
}

func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Transport: TransportConfig{
			Type: "stdio",
			Host: "localhost",
			Port: 8080,
		},
		LogLevel:        "info",
		LogFormat:       "json",
		LogBufferSize:   1000,
		ShutdownTimeout: 30 * time.Second,
		Extension: ExtensionConfig{
			ID:      "addons-restricted-domains@mozilla.com",
			Domains: []string{"example.com"},
		},
		Prefs: PrefsConfig{
			Backend: "sqlite",
			Path:    "data/prefs.db",
		},
		Notifications: NotificationsConfig{
			HelpURL: "https://support.mozilla.org/",
			Locale:  "en-US",
			Windows: 1,
		},
	}
}

func LoadConfig() (*ServerConfig, error) {
	return Load(NewViper())
}

// NewViper returns a viper instance looking for config.yaml in the standard
// locations.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/restricted-domains/")
	v.AddConfigPath("$HOME/.restricted-domains/")
	return v
}

// Load reads the configuration through v, applying defaults and the
// RESTRICTED_DOMAINS_ environment overrides.
func Load(v *viper.Viper) (*ServerConfig, error) {
	config := DefaultConfig()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server configuration defaults
	v.SetDefault("transport.type", config.Transport.Type)
	v.SetDefault("transport.host", config.Transport.Host)
	v.SetDefault("transport.port", config.Transport.Port)
	v.SetDefault("log_level", config.LogLevel)
	v.SetDefault("log_format", config.LogFormat)
	v.SetDefault("log_buffer_size", config.LogBufferSize)
	v.SetDefault("shutdown_timeout", config.ShutdownTimeout)

	// Extension defaults
	v.SetDefault("extension.id", config.Extension.ID)
	v.SetDefault("extension.domains", config.Extension.Domains)

	// Preference store defaults
	v.SetDefault("prefs.backend", config.Prefs.Backend)
	v.SetDefault("prefs.path", config.Prefs.Path)

	// Notification defaults
	v.SetDefault("notifications.help_url", config.Notifications.HelpURL)
	v.SetDefault("notifications.locale", config.Notifications.Locale)
	v.SetDefault("notifications.windows", config.Notifications.Windows)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	// Decode the configuration
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func validateConfig(config *ServerConfig) error {
	validTransports := map[string]bool{
		"stdio": true, "sse": true,
	}
	if !validTransports[config.Transport.Type] {
		return fmt.Errorf("invalid transport type: %s", config.Transport.Type)
	}

	if config.Transport.Port <= 0 || config.Transport.Port > 65535 {
		return fmt.Errorf("the port must be between 1 and 65535")
	}

	if config.ShutdownTimeout <= 0 {
		return fmt.Errorf("the shutdown timeout must be positive")
	}

	if config.Extension.ID == "" {
		return fmt.Errorf("the extension id cannot be empty")
	}

	if len(config.Extension.Domains) == 0 {
		return fmt.Errorf("at least one restricted domain is required")
	}
	for _, domain := range config.Extension.Domains {
		if strings.TrimSpace(domain) == "" || strings.ContainsAny(domain, ",/ ") {
			return fmt.Errorf("invalid domain: %q", domain)
		}
	}

	switch config.Prefs.Backend {
	case "memory":
	case "sqlite":
		if config.Prefs.Path == "" {
			return fmt.Errorf("the preference database path cannot be empty")
		}
	default:
		return fmt.Errorf("invalid preference backend: %s", config.Prefs.Backend)
	}

	if config.Notifications.HelpURL == "" {
		return fmt.Errorf("the help URL cannot be empty")
	}

	if config.Notifications.Windows < 0 {
		return fmt.Errorf("the window count cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validLogFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validLogFormats[config.LogFormat] {
		return fmt.Errorf("invalid log format: %s", config.LogFormat)
	}

	return nil
}
