package app

import "strings"

// Models the setup flow offers. Research always pairs a full model for
// planning, searching and reporting with its mini sibling for the cheap
// clarifying call.
const (
	ModelGPT41     = "gpt-4.1"
	ModelGPT41Mini = "gpt-4.1-mini"
	ModelGPT4o     = "gpt-4o"
	ModelGPT4oMini = "gpt-4o-mini"
)

// MiniFor returns the mini sibling used for clarifying questions.
func MiniFor(model string) string {
	switch model {
	case ModelGPT4o:
		return ModelGPT4oMini
	default:
		return ModelGPT41Mini
	}
}

// LookupContextWindowTokens returns the known context window size (in tokens) for a model.
//
// This is used to warn before an evaluation payload outgrows the evaluator's
// window. Callers should still allow an explicit override via config/env
// because providers may change limits.
func LookupContextWindowTokens(model string) (int, bool) {
	m := strings.ToLower(strings.TrimSpace(model))
	if m == "" {
		return 0, false
	}

	// GPT-4.1 family, mini and nano included.
	if strings.HasPrefix(m, "gpt-4.1") {
		return 1_000_000, true
	}

	// GPT-4o family.
	if strings.HasPrefix(m, "gpt-4o") {
		return 128_000, true
	}

	// o-series reasoning models.
	if strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4-mini") {
		return 200_000, true
	}

	return 0, false
}
