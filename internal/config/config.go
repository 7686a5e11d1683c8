package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main skin2 configuration
type Config struct {
	// HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Conversation channel
	Chat ChatConfig `json:"chat" mapstructure:"chat"`

	// Reply engine
	Model ModelConfig `json:"model" mapstructure:"model"`

	// SQLite databases
	Data DataConfig `json:"data" mapstructure:"data"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host              string        `json:"host" mapstructure:"host"`
	Port              int           `json:"port" mapstructure:"port"`
	CookieName        string        `json:"cookie_name" mapstructure:"cookie_name"`
	CookieSecure      bool          `json:"cookie_secure" mapstructure:"cookie_secure"`
	RateLimitPerMin   int           `json:"rate_limit_per_min" mapstructure:"rate_limit_per_min"`
	MaxConcurrent     int           `json:"max_concurrent" mapstructure:"max_concurrent"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	WebSocketEnabled  bool          `json:"websocket_enabled" mapstructure:"websocket_enabled"`
	AllowedWSOrigins  []string      `json:"allowed_ws_origins" mapstructure:"allowed_ws_origins"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" mapstructure:"read_header_timeout"`
}

// ChatConfig holds conversation channel configuration
type ChatConfig struct {
	HistoryLimit   int           `json:"history_limit" mapstructure:"history_limit"`
	ReplyTimeout   time.Duration `json:"reply_timeout" mapstructure:"reply_timeout"`
	StrictOrdering bool          `json:"strict_ordering" mapstructure:"strict_ordering"`
	SessionIdleTTL time.Duration `json:"session_idle_ttl" mapstructure:"session_idle_ttl"` // 0 disables eviction
	SweepSchedule  string        `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// ModelConfig holds reply engine configuration
type ModelConfig struct {
	Type         string  `json:"type" mapstructure:"type"` // static, openai, anthropic
	Name         string  `json:"name" mapstructure:"name"`
	APIKey       string  `json:"api_key" mapstructure:"api_key"`
	BaseURL      string  `json:"base_url" mapstructure:"base_url"`
	Temperature  float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens    int     `json:"max_tokens" mapstructure:"max_tokens"`
	SystemPrompt string  `json:"system_prompt" mapstructure:"system_prompt"`
	StaticReply  string  `json:"static_reply" mapstructure:"static_reply"`
}

// DataConfig holds database paths
type DataConfig struct {
	HospitalDB string `json:"hospital_db" mapstructure:"hospital_db"`
	SkinDB     string `json:"skin_db" mapstructure:"skin_db"`

	// HospitalSource is a .xlsx workbook or CSV export imported into an
	// empty hospital database at startup
	HospitalSource string `json:"hospital_source" mapstructure:"hospital_source"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              5000,
			CookieName:        "skin2_session",
			RateLimitPerMin:   60,
			MaxConcurrent:     10,
			ShutdownTimeout:   30 * time.Second,
			WebSocketEnabled:  true,
			ReadHeaderTimeout: 10 * time.Second,
		},
		Chat: ChatConfig{
			HistoryLimit:   20,
			ReplyTimeout:   60 * time.Second,
			StrictOrdering: false,
			SessionIdleTTL: 0,
			SweepSchedule:  "@every 10m",
		},
		Model: ModelConfig{
			Type:        "static",
			Name:        "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		Data: DataConfig{
			HospitalDB: "data.db",
			SkinDB:     "data_skin.db",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Model.APIKey != "" {
		masked.Model.APIKey = "****"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Addr returns the server listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.CookieName == "" {
		return fmt.Errorf("server cookie_name is required")
	}

	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("chat history_limit must be positive, got %d", c.Chat.HistoryLimit)
	}
	if c.Chat.HistoryLimit%2 != 0 {
		return fmt.Errorf("chat history_limit must be even so exchanges stay paired, got %d", c.Chat.HistoryLimit)
	}
	if c.Chat.ReplyTimeout < 0 {
		return fmt.Errorf("chat reply_timeout must be >= 0")
	}
	if c.Chat.SessionIdleTTL < 0 {
		return fmt.Errorf("chat session_idle_ttl must be >= 0")
	}

	switch c.Model.Type {
	case "", "static":
	case "openai", "anthropic":
		if c.Model.APIKey == "" {
			return fmt.Errorf("model api_key is required for model type %s", c.Model.Type)
		}
		if c.Model.Name == "" {
			return fmt.Errorf("model name is required for model type %s", c.Model.Type)
		}
	default:
		return fmt.Errorf("invalid model type %s (must be: static, openai, anthropic)", c.Model.Type)
	}

	if c.Data.HospitalDB == "" {
		return fmt.Errorf("data hospital_db is required")
	}
	if c.Data.SkinDB == "" {
		return fmt.Errorf("data skin_db is required")
	}

	return nil
}
