package tui

import (
	"testing"

	"deep-research/internal/app"
)

func TestSetupWizardApplyConfigSelections_GPT41(t *testing.T) {
	cfg := app.DefaultConfig()
	w := NewSetupWizard(&cfg)
	w.apiKey = "sk-test-key"
	w.model = app.ModelGPT41

	w.applyConfigSelections()

	if cfg.OpenAIAPIKey != "sk-test-key" {
		t.Fatalf("API key = %q, want %q", cfg.OpenAIAPIKey, "sk-test-key")
	}
	if cfg.Model != app.ModelGPT41 {
		t.Fatalf("model = %q, want %q", cfg.Model, app.ModelGPT41)
	}
	if cfg.ModelMini != app.ModelGPT41Mini {
		t.Fatalf("mini model = %q, want %q", cfg.ModelMini, app.ModelGPT41Mini)
	}
	if !cfg.Installed {
		t.Fatal("expected Installed to be set after the wizard applies selections")
	}
}

func TestSetupWizardApplyConfigSelections_GPT4o(t *testing.T) {
	cfg := app.DefaultConfig()
	w := NewSetupWizard(&cfg)
	w.apiKey = "sk-test-key-4o"
	w.model = app.ModelGPT4o

	w.applyConfigSelections()

	if cfg.Model != app.ModelGPT4o {
		t.Fatalf("model = %q, want %q", cfg.Model, app.ModelGPT4o)
	}
	if cfg.ModelMini != app.ModelGPT4oMini {
		t.Fatalf("mini model = %q, want %q", cfg.ModelMini, app.ModelGPT4oMini)
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey("sk-abcdefghijklmnop"); got != "sk-a...mnop" {
		t.Fatalf("maskKey = %q, want %q", got, "sk-a...mnop")
	}
	if got := maskKey("short"); got != "****" {
		t.Fatalf("maskKey = %q, want %q", got, "****")
	}
}
