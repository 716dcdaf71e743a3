// internal/config/config.go
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Round depth accepted by the backend.
const (
	MinRounds     = 1
	MaxRounds     = 5
	DefaultRounds = 3
)

type Config struct {
	Backend struct {
		URL string `yaml:"url"`
	} `yaml:"backend"`
	Keys struct {
		OpenAI   string `yaml:"openai,omitempty"`
		Gemini   string `yaml:"gemini,omitempty"`
		DeepSeek string `yaml:"deepseek,omitempty"`
	} `yaml:"keys"`
	Defaults struct {
		MaxRounds     int  `yaml:"max_rounds"`
		ShowReasoning bool `yaml:"show_reasoning"`
	} `yaml:"defaults"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load() (*Config, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		// Return defaults if no config file
		return defaultConfig(), nil
	}

	// Expand environment variables, so provider keys can live in the
	// environment rather than on disk
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Backend.URL = "http://localhost:8000/api"
	cfg.Defaults.MaxRounds = DefaultRounds
	cfg.Defaults.ShowReasoning = true
	cfg.Log.Level = "info"
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = "http://localhost:8000/api"
	}
	if cfg.Defaults.MaxRounds == 0 {
		cfg.Defaults.MaxRounds = DefaultRounds
	}
	cfg.Defaults.MaxRounds = ClampRounds(cfg.Defaults.MaxRounds)
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// ClampRounds forces a deliberation depth into the backend's accepted range.
func ClampRounds(n int) int {
	if n < MinRounds {
		return MinRounds
	}
	if n > MaxRounds {
		return MaxRounds
	}
	return n
}

func ConfigPath() string {
	configDir, _ := os.UserConfigDir()
	if configDir == "" {
		configDir = os.ExpandEnv("$HOME/.config")
	}
	return filepath.Join(configDir, "agora", "config.yaml")
}
