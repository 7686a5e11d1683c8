package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigFile is used when no path is given
const DefaultConfigFile = "config.json"

// EnvPrefix prefixes environment overrides, e.g. SKIN2_MODEL_API_KEY
const EnvPrefix = "SKIN2"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file, falling back to defaults when the
// file does not exist. Environment variables override file values.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return DefaultConfigFile
}

// bindEnv registers the keys that are commonly overridden from the
// environment. AutomaticEnv alone does not reach keys absent from the file.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"server.host",
		"server.port",
		"model.type",
		"model.name",
		"model.api_key",
		"model.base_url",
		"data.hospital_db",
		"data.skin_db",
		"data.hospital_source",
		"logging.level",
	} {
		_ = v.BindEnv(key)
	}
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
