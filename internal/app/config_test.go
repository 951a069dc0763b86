package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Model != "gpt-4.1" {
		t.Fatalf("DefaultConfig().Model = %q, want %q", cfg.Model, "gpt-4.1")
	}
	if cfg.ModelMini != "gpt-4.1-mini" {
		t.Fatalf("DefaultConfig().ModelMini = %q, want %q", cfg.ModelMini, "gpt-4.1-mini")
	}
	if cfg.MaxAttempts != 4 {
		t.Fatalf("DefaultConfig().MaxAttempts = %d, want 4", cfg.MaxAttempts)
	}
	if cfg.SearchParallelism != 1 {
		t.Fatalf("DefaultConfig().SearchParallelism = %d, want 1", cfg.SearchParallelism)
	}
	if cfg.BaseURL == "" {
		t.Fatalf("DefaultConfig().BaseURL is empty")
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Model != "gpt-4.1" {
		t.Fatalf("missing file should default model, got %q", cfg.Model)
	}
	if cfg.OpenAIAPIKey != "" {
		t.Fatalf("missing file should leave api key empty, got %q", cfg.OpenAIAPIKey)
	}
}

func TestLoadConfigReadsValuesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	raw := "openai_api_key: sk-test\nmodel: gpt-4o\nmax_attempts: 99\nsearch_parallelism: 32\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("api key = %q, want sk-test", cfg.OpenAIAPIKey)
	}
	if cfg.Model != "gpt-4o" {
		t.Fatalf("model = %q, want gpt-4o", cfg.Model)
	}
	if cfg.MaxAttempts != 25 {
		t.Fatalf("max attempts should clamp to 25, got %d", cfg.MaxAttempts)
	}
	if cfg.SearchParallelism != 8 {
		t.Fatalf("search parallelism should clamp to 8, got %d", cfg.SearchParallelism)
	}
}

func TestClampConfigBounds(t *testing.T) {
	tests := []struct {
		name         string
		in           Config
		wantAttempts int
		wantParallel int
	}{
		{name: "zero values", in: Config{}, wantAttempts: 4, wantParallel: 1},
		{name: "negative values", in: Config{MaxAttempts: -3, SearchParallelism: -1}, wantAttempts: 4, wantParallel: 1},
		{name: "above limits", in: Config{MaxAttempts: 99, SearchParallelism: 50}, wantAttempts: 25, wantParallel: 8},
		{name: "in range", in: Config{MaxAttempts: 6, SearchParallelism: 3}, wantAttempts: 6, wantParallel: 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := clampConfig(tc.in)
			if got.MaxAttempts != tc.wantAttempts {
				t.Fatalf("MaxAttempts = %d, want %d", got.MaxAttempts, tc.wantAttempts)
			}
			if got.SearchParallelism != tc.wantParallel {
				t.Fatalf("SearchParallelism = %d, want %d", got.SearchParallelism, tc.wantParallel)
			}
		})
	}
}

func TestLoadConfigInvalidYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("model: [broken"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for invalid yaml")
	}
}
