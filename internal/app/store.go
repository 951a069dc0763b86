package app

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrRunNotFound reports a run id with no stored row behind it.
var ErrRunNotFound = errors.New("run not found")

// ResearchStore persists research runs so finished and abandoned sessions
// stay inspectable from the history commands.
type ResearchStore interface {
	// SaveRun upserts the full session state under its id.
	SaveRun(sess *ResearchSession) error
	// SaveArtifacts records one attempt's collected batch. Batches stay
	// stored after the engine discards them, which is what keeps a failed
	// attempt inspectable later.
	SaveArtifacts(runID string, attempt int, artifacts []SearchArtifact) error
	LoadRun(id string) (*ResearchSession, error)
	// ListRuns returns the most recently updated runs, newest first.
	ListRuns(limit int) ([]RunSummary, error)
	DeleteRun(id string) error
	Close() error
}

// RunSummary is the history-listing view of a stored run.
type RunSummary struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Goal      string    `json:"goal,omitempty"`
	Status    RunStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	Artifacts int       `json:"artifacts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultRunsRoot is where run history lives unless a caller overrides it.
func DefaultRunsRoot() string {
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, "deep-research", "runs")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".deep-research", "runs")
	}
	return filepath.Join(os.TempDir(), "deep-research", "runs")
}

// OpenRunStore opens the sqlite store under root and falls back to the JSON
// file layout when sqlite cannot initialize there.
func OpenRunStore(root string, logger *Logger) ResearchStore {
	st, err := NewSQLiteRunStore(root)
	if err == nil {
		return st
	}
	if logger != nil {
		logger.Warn("SQLite run store unavailable, using file store", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return NewFileRunStore(root)
}
