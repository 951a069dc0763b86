package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestApplication(t *testing.T, gw Gateway, cfg Config) *Application {
	t.Helper()
	logger := NewLogger(io.Discard)
	store, err := NewSQLiteRunStore(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return &Application{
		Config:  cfg,
		Logger:  logger,
		Gateway: gw,
		Engine:  NewEngine(gw, logger, cfg),
		Store:   store,
	}
}

func allAnswered(questions []string) ([]string, error) {
	answers := make([]string, len(questions))
	for i := range questions {
		answers[i] = "whatever fits"
	}
	return answers, nil
}

func TestNewApplicationRequiresCredential(t *testing.T) {
	_, err := NewApplication(Config{Model: "gpt-4.1"}, false)
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
}

func TestNewApplicationMockModeNeedsNoKey(t *testing.T) {
	a, err := NewApplication(DefaultConfig(), true)
	if err != nil {
		t.Fatalf("mock application: %v", err)
	}
	defer a.Close()
	if _, ok := a.Gateway.(*MockGateway); !ok {
		t.Fatalf("expected mock gateway, got %T", a.Gateway)
	}
}

func TestExecuteResearchConvergesAndPersists(t *testing.T) {
	gw := NewMockGateway()
	gw.ConvergeAfter = 1 // first batch gets rejected
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	a := newTestApplication(t, gw, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var events []ResearchEvent
	sess, result, err := a.ExecuteResearch(ctx, "urban beekeeping", allAnswered, func(ev ResearchEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != RunConverged {
		t.Fatalf("status = %q, want %q", result.Status, RunConverged)
	}
	if result.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", result.Attempts)
	}
	if !strings.Contains(sess.Report, "References") {
		t.Fatalf("report should cite references, got: %q", sess.Report)
	}

	stored, err := a.LoadRun(sess.ID)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if stored.Status != RunConverged {
		t.Fatalf("stored status = %q, want %q", stored.Status, RunConverged)
	}
	if stored.Report == "" {
		t.Fatalf("stored run should carry the report")
	}

	sawRegenerated := false
	for _, ev := range events {
		if ev.Kind == EventRegenerated {
			sawRegenerated = true
		}
	}
	if !sawRegenerated {
		t.Fatalf("expected a regenerated event before convergence")
	}
}

func TestExecuteResearchExhaustedSkipsReport(t *testing.T) {
	gw := NewMockGateway()
	gw.ConvergeAfter = 99
	cfg := DefaultConfig()
	cfg.MaxAttempts = 2
	a := newTestApplication(t, gw, cfg)

	sess, result, err := a.ExecuteResearch(context.Background(), "perpetual motion", allAnswered, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != RunExhausted {
		t.Fatalf("status = %q, want %q", result.Status, RunExhausted)
	}
	if sess.Report != "" {
		t.Fatalf("exhausted run must not get a report, got: %q", sess.Report)
	}

	runs, err := a.ListRuns(0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != RunExhausted {
		t.Fatalf("stored status = %q, want %q", runs[0].Status, RunExhausted)
	}
	// Both attempts searched five queries; the discarded batch stays on
	// record too.
	if runs[0].Artifacts != 10 {
		t.Fatalf("artifacts = %d, want 10", runs[0].Artifacts)
	}
}

func TestPlanSessionIncompleteAnswersKeepsRunAlive(t *testing.T) {
	gw := NewMockGateway()
	a := newTestApplication(t, gw, DefaultConfig())

	sess, err := a.StartSession(context.Background(), "topic", nil)
	if err != nil {
		t.Fatal(err)
	}

	err = a.PlanSession(context.Background(), sess, []string{"too", "few"}, nil)
	if !errors.Is(err, ErrIncompleteAnswers) {
		t.Fatalf("err = %v, want ErrIncompleteAnswers", err)
	}

	stored, err := a.LoadRun(sess.ID)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if stored.Status != RunRunning {
		t.Fatalf("status = %q, want %q after recoverable input error", stored.Status, RunRunning)
	}
}

func TestStartSessionRejectsBlankTopic(t *testing.T) {
	a := newTestApplication(t, NewMockGateway(), DefaultConfig())
	if _, err := a.StartSession(context.Background(), "   ", nil); err == nil {
		t.Fatalf("expected error for blank topic")
	}
}

func TestSaveReportFileWritesMarkdown(t *testing.T) {
	a := newTestApplication(t, NewMockGateway(), DefaultConfig())
	sess := NewResearchSession("topic")
	sess.Report = "# Title\n\nbody\n"

	dir := t.TempDir()
	path, err := a.SaveReportFile(sess, dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("report saved to %q, want under %q", path, dir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != sess.Report {
		t.Fatalf("report content mismatch: %q", string(data))
	}

	empty := NewResearchSession("other")
	if _, err := a.SaveReportFile(empty, dir); err == nil {
		t.Fatalf("expected error when there is no report")
	}
}
