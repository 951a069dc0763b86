package app

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SearchArtifact is one entry of the collected set: the query that ran and
// the answer text extracted from its search response.
type SearchArtifact struct {
	Query     string `json:"query"`
	Reference string `json:"reference"`
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunConverged RunStatus = "converged"
	RunExhausted RunStatus = "exhausted"
	RunFailed    RunStatus = "failed"
)

// ResearchSession carries every piece of state one research run accumulates.
// All continuation ids live on the session so nothing leaks into package
// globals; two sessions can proceed side by side on the same Engine.
type ResearchSession struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`

	Questions []string `json:"questions,omitempty"`
	Answers   []string `json:"answers,omitempty"`

	// ClarifyToken is the response id of the clarifying-questions call; the
	// planning call continues from it.
	ClarifyToken string `json:"clarify_token,omitempty"`

	Goal    string   `json:"goal,omitempty"`
	Queries []string `json:"queries,omitempty"`

	// RootToken is the planning response id. Every search and every query
	// regeneration continues from this same id, so attempts stay siblings
	// of the plan instead of forming an ever-deeper chain.
	RootToken string `json:"root_token,omitempty"`

	Collected []SearchArtifact `json:"collected,omitempty"`
	Attempt   int              `json:"attempt"`

	Report string `json:"report,omitempty"`

	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewResearchSession(topic string) *ResearchSession {
	now := time.Now()
	return &ResearchSession{
		ID:        uuid.NewString(),
		Topic:     topic,
		Status:    RunRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *ResearchSession) touch() {
	s.UpdatedAt = time.Now()
}

// ResearchResult reports how the research loop ended. RunExhausted is a
// terminal outcome, not an error: the loop ran out of attempts without the
// evaluator accepting the collected set, and no report should be written.
type ResearchResult struct {
	Status    RunStatus
	Attempts  int
	Collected []SearchArtifact
}

type ResearchEventKind string

const (
	EventClarified   ResearchEventKind = "clarified"
	EventPlanned     ResearchEventKind = "planned"
	EventSearchStart ResearchEventKind = "search_start"
	EventSearchDone  ResearchEventKind = "search_done"
	EventEvaluated   ResearchEventKind = "evaluated"
	EventRegenerated ResearchEventKind = "regenerated"
	EventReportReady ResearchEventKind = "report_ready"
)

// ResearchEvent is a progress notification surfaced to the UI while a run
// executes in the background.
type ResearchEvent struct {
	Kind    ResearchEventKind
	Attempt int
	Query   string
	Detail  string
}

var (
	// ErrIncompleteAnswers rejects a planning request while any clarifying
	// question is still unanswered.
	ErrIncompleteAnswers = errors.New("every clarifying question needs an answer")
	// ErrNoQuestions means the clarifying reply contained no usable lines.
	ErrNoQuestions = errors.New("clarifying reply contained no questions")
)
