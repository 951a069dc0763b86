package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Application wires the gateway, engine, run store and logger together and
// adds persistence around each workflow phase. The TUI and the headless
// command both drive runs through it.
type Application struct {
	Config  Config
	Logger  *Logger
	Gateway Gateway
	Engine  *Engine
	Store   ResearchStore
}

// NewApplication builds the full stack for cfg. Without mockMode a missing
// API key is fatal here; there is no silent fallback to canned responses.
func NewApplication(cfg Config, mockMode bool) (*Application, error) {
	logger, err := NewFileLogger(DefaultLogDir())
	if err != nil {
		logger = NewLogger(io.Discard)
	}

	var gateway Gateway
	if mockMode {
		gateway = NewMockGateway()
	} else {
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, ErrMissingCredential
		}
		gateway = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.BaseURL, time.Duration(cfg.RequestTimeoutSec)*time.Second)
	}

	return &Application{
		Config:  cfg,
		Logger:  logger,
		Gateway: gateway,
		Engine:  NewEngine(gateway, logger, cfg),
		Store:   OpenRunStore("", logger),
	}, nil
}

// ReloadClient swaps the gateway after a config change, e.g. when the setup
// wizard saves a new API key mid-session.
func (a *Application) ReloadClient(cfg Config) {
	a.Config = cfg
	a.Gateway = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.BaseURL, time.Duration(cfg.RequestTimeoutSec)*time.Second)
	a.Engine = NewEngine(a.Gateway, a.Logger, cfg)
}

func (a *Application) store() ResearchStore {
	if a.Store == nil {
		a.Store = OpenRunStore("", a.Logger)
	}
	return a.Store
}

func (a *Application) saveRun(sess *ResearchSession) {
	if err := a.store().SaveRun(sess); err != nil {
		a.Logger.Error("Failed to persist run", map[string]interface{}{
			"run_id": sess.ID,
			"error":  err.Error(),
		})
	}
}

func (a *Application) failRun(sess *ResearchSession) {
	sess.Status = RunFailed
	a.saveRun(sess)
}

// StartSession opens a run for topic and fetches its clarifying questions.
func (a *Application) StartSession(ctx context.Context, topic string, sink EventSink) (*ResearchSession, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("missing research topic")
	}
	sess := NewResearchSession(topic)
	if err := a.Engine.Clarify(ctx, sess, sink); err != nil {
		return nil, err
	}
	a.saveRun(sess)
	return sess, nil
}

// PlanSession records the answers and produces the goal and initial query
// set. Incomplete answers leave the run untouched so the caller can collect
// the missing ones and try again; a malformed plan fails the run.
func (a *Application) PlanSession(ctx context.Context, sess *ResearchSession, answers []string, sink EventSink) error {
	if err := a.Engine.Plan(ctx, sess, answers, sink); err != nil {
		if !errors.Is(err, ErrIncompleteAnswers) {
			a.failRun(sess)
		}
		return err
	}
	a.saveRun(sess)
	return nil
}

// RunResearch drives the bounded search loop, persisting each attempt's
// batch as it gets evaluated so discarded sets survive in history.
func (a *Application) RunResearch(ctx context.Context, sess *ResearchSession, sink EventSink) (*ResearchResult, error) {
	wrapped := func(ev ResearchEvent) {
		if ev.Kind == EventEvaluated {
			if err := a.store().SaveArtifacts(sess.ID, ev.Attempt, sess.Collected); err != nil {
				a.Logger.Error("Failed to persist artifacts", map[string]interface{}{
					"run_id":  sess.ID,
					"attempt": ev.Attempt,
					"error":   err.Error(),
				})
			}
		}
		emit(sink, ev)
	}

	result, err := a.Engine.Research(ctx, sess, wrapped)
	if err != nil {
		a.failRun(sess)
		return nil, err
	}
	a.saveRun(sess)
	return result, nil
}

// GenerateReport writes the final report for a converged run.
func (a *Application) GenerateReport(ctx context.Context, sess *ResearchSession, sink EventSink) (string, error) {
	report, err := a.Engine.Report(ctx, sess, sink)
	if err != nil {
		if !errors.Is(err, ErrNotConverged) {
			a.failRun(sess)
		}
		return "", err
	}
	a.saveRun(sess)
	return report, nil
}

// ExecuteResearch drives a complete run: clarify, answer, plan, the search
// loop, and the report when the loop converges. answerFunc receives the
// clarifying questions and must return one answer per question.
func (a *Application) ExecuteResearch(ctx context.Context, topic string, answerFunc func([]string) ([]string, error), sink EventSink) (*ResearchSession, *ResearchResult, error) {
	sess, err := a.StartSession(ctx, topic, sink)
	if err != nil {
		return nil, nil, err
	}

	answers, err := answerFunc(sess.Questions)
	if err != nil {
		return sess, nil, err
	}
	if err := a.PlanSession(ctx, sess, answers, sink); err != nil {
		return sess, nil, err
	}

	result, err := a.RunResearch(ctx, sess, sink)
	if err != nil {
		return sess, nil, err
	}
	if result.Status == RunConverged {
		if _, err := a.GenerateReport(ctx, sess, sink); err != nil {
			return sess, result, err
		}
	}
	return sess, result, nil
}

func (a *Application) ListRuns(limit int) ([]RunSummary, error) {
	return a.store().ListRuns(limit)
}

func (a *Application) LoadRun(id string) (*ResearchSession, error) {
	return a.store().LoadRun(id)
}

func (a *Application) DeleteRun(id string) error {
	return a.store().DeleteRun(id)
}

// SaveReportFile writes the session report as a markdown file under dir and
// returns the full path. An empty dir writes to the working directory.
func (a *Application) SaveReportFile(sess *ResearchSession, dir string) (string, error) {
	if sess == nil || strings.TrimSpace(sess.Report) == "" {
		return "", errors.New("no report to save")
	}
	if dir == "" {
		dir = "."
	}
	name := fmt.Sprintf("research_report_%s.md", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(sess.Report), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Close releases the run store and the log file.
func (a *Application) Close() error {
	var firstErr error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			firstErr = err
		}
	}
	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
