package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/edgard/ion/internal/errs"
)

// EnvPrefix prefixes every environment override, e.g. ION_SESSION_TOKEN.
const EnvPrefix = "ION"

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path, if it exists
// 3. ION_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, errs.NewConfigError(fmt.Sprintf("failed to read config file %s", path), err)
			}
			slog.Debug("Configuration file loaded", "path", path)
		} else if errors.Is(err, os.ErrNotExist) {
			slog.Info("Configuration file not found, using defaults", "path", path)
		} else {
			return nil, errs.NewConfigError(fmt.Sprintf("failed to access config file %s", path), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.NewConfigError("failed to parse configuration", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errs.NewConfigError("configuration validation failed", err)
	}

	if c.Session.Backend == BackendBadger && c.SecretStore.Path == "" {
		return errs.NewConfigError("secretstore.path is required for the badger session backend", nil)
	}

	return nil
}

// Save writes the configuration as YAML. The file may hold credentials, so
// it is created readable by the owner only.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration to %s: %w", path, err)
	}
	return nil
}

// Default returns the configuration used when nothing is set.
func Default() (*Config, error) {
	return LoadConfig("")
}
