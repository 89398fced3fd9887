package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Logging
	LogLevel string `json:"log_level"`

	// Storage
	StorePath string `json:"store_path"`
	UploadDir string `json:"upload_dir"`

	// Upload endpoint
	ListenAddr string `json:"listen_addr"`

	// Background workers
	HeartbeatSecs int           `json:"heartbeat_secs"`
	SweepSecs     int           `json:"sweep_secs"`
	Heartbeat     time.Duration `json:"-"`
	SweepInterval time.Duration `json:"-"`

	// Assistant
	AI AIConfig `json:"ai"`
}

// AIConfig holds assistant configuration. With no API key the assistant runs
// the canned keyword responder.
type AIConfig struct {
	Enabled         bool   `json:"enabled"`
	APIKey          string `json:"api_key"`
	BaseURL         string `json:"base_url"`
	Model           string `json:"model"`
	ThinkingDelayMs int    `json:"thinking_delay_ms"`
	HistoryLimit    int    `json:"history_limit"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultStore := filepath.Join(homeDir, ".regent-connect", "store")

	return &Config{
		LogLevel:      "INFO",
		StorePath:     defaultStore,
		UploadDir:     filepath.Join(defaultStore, "uploads"),
		ListenAddr:    "127.0.0.1:8090",
		HeartbeatSecs: 30,
		SweepSecs:     60,
		Heartbeat:     30 * time.Second,
		SweepInterval: 60 * time.Second,
		AI: AIConfig{
			Enabled:         true,
			ThinkingDelayMs: 500,
			HistoryLimit:    100,
		},
	}
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if file doesn't exist
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

// Load loads configuration from an optional file, then applies environment
// variable overrides.
func Load(configPath string) *Config {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			cfg = Default()
		}
	} else {
		cfg = Default()
	}

	if v := os.Getenv("RC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RC_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("RC_UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("RC_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("RC_HEARTBEAT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.HeartbeatSecs = secs
		}
	}
	if v := os.Getenv("RC_SWEEP_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.SweepSecs = secs
		}
	}
	if v := os.Getenv("RC_AI_ENABLED"); v != "" {
		cfg.AI.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("RC_AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("RC_AI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("RC_AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}

	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	if c.HeartbeatSecs > 0 {
		c.Heartbeat = time.Duration(c.HeartbeatSecs) * time.Second
	}
	if c.SweepSecs > 0 {
		c.SweepInterval = time.Duration(c.SweepSecs) * time.Second
	}
	if c.AI.HistoryLimit <= 0 {
		c.AI.HistoryLimit = 100
	}
	if c.AI.ThinkingDelayMs <= 0 {
		c.AI.ThinkingDelayMs = 500
	}
}

// EnsureStorePath creates the store and upload directories if needed.
func (c *Config) EnsureStorePath() error {
	if err := os.MkdirAll(c.StorePath, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.UploadDir, 0755)
}
