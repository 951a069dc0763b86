package app

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	OpenAIAPIKey      string `yaml:"openai_api_key"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	ModelMini         string `yaml:"model_mini"`
	MaxAttempts       int    `yaml:"max_attempts"`
	SearchParallelism int    `yaml:"search_parallelism"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	Installed         bool   `yaml:"installed"`
}

const (
	defaultBaseURL   = "https://api.openai.com/v1/responses"
	defaultModel     = "gpt-4.1"
	defaultModelMini = "gpt-4.1-mini"
)

func DefaultConfig() Config {
	return Config{
		BaseURL:           defaultBaseURL,
		Model:             defaultModel,
		ModelMini:         defaultModelMini,
		MaxAttempts:       4,
		SearchParallelism: 1,
		RequestTimeoutSec: 120,
		Installed:         false,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	// Try binary directory first
	if execPath, err := os.Executable(); err == nil {
		binaryDir := filepath.Dir(execPath)
		binaryConfig := filepath.Join(binaryDir, "settings.yml")
		if data, err := os.ReadFile(binaryConfig); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err == nil {
				cfg.Installed = true
				return clampConfig(cfg), nil
			}
		}
	}

	// Fall back to provided path
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return clampConfig(cfg), nil
}

func clampConfig(cfg Config) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.ModelMini == "" {
		cfg.ModelMini = defaultModelMini
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.MaxAttempts > 25 {
		cfg.MaxAttempts = 25
	}
	if cfg.SearchParallelism <= 0 {
		cfg.SearchParallelism = 1
	}
	if cfg.SearchParallelism > 8 {
		cfg.SearchParallelism = 8
	}
	if cfg.RequestTimeoutSec <= 0 {
		cfg.RequestTimeoutSec = 120
	}
	return cfg
}

func SaveConfig(cfg Config, path string) error {
	// Try binary directory first
	if execPath, err := os.Executable(); err == nil {
		binaryDir := filepath.Dir(execPath)
		binaryConfig := filepath.Join(binaryDir, "settings.yml")
		cfg.Installed = true
		data, _ := yaml.Marshal(cfg)
		if err := os.WriteFile(binaryConfig, data, 0644); err == nil {
			return nil
		}
	}

	// Fall back to provided path
	if path == "" {
		return errors.New("no path provided for config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "deep-research", "config.yml")
}

func GetBinaryConfigPath() string {
	if execPath, err := os.Executable(); err == nil {
		binaryDir := filepath.Dir(execPath)
		return filepath.Join(binaryDir, "settings.yml")
	}
	return ""
}
