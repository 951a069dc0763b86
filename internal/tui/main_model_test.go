package tui

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"deep-research/internal/app"
)

func newTestModel() *MainModel {
	application := &app.Application{Config: app.DefaultConfig()}
	m := NewMainModel(application, true)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestMainModelClarifiedAdvancesToQuestions(t *testing.T) {
	m := newTestModel()

	sess := app.NewResearchSession("espresso grinders")
	sess.Questions = []string{"1. Budget?", "2. Burr type preference?"}

	m.Update(clarifiedMsg{sess: sess})

	if m.phase != phaseQuestions {
		t.Fatalf("phase = %v, want %v", m.phase, phaseQuestions)
	}
	if len(m.form.inputs) != 2 {
		t.Fatalf("form inputs = %d, want 2", len(m.form.inputs))
	}
	if m.running {
		t.Fatal("model should not report running after clarify finishes")
	}
}

func TestMainModelClarifyErrorStaysOnTopic(t *testing.T) {
	t.Setenv("DEEPR_TUI_ERROR_LOG", filepath.Join(t.TempDir(), "error.log"))
	m := newTestModel()

	m.Update(clarifiedMsg{err: errors.New("api unreachable")})

	if m.phase != phaseTopic {
		t.Fatalf("phase = %v, want %v", m.phase, phaseTopic)
	}
	if m.errText != "api unreachable" {
		t.Fatalf("errText = %q, want %q", m.errText, "api unreachable")
	}
}

func TestMainModelClarifiedDrainsBufferedEvents(t *testing.T) {
	m := newTestModel()
	events := make(chan app.ResearchEvent, 4)
	events <- app.ResearchEvent{Kind: app.EventClarified, Detail: "5 questions"}
	m.eventsCh = events

	sess := app.NewResearchSession("espresso grinders")
	sess.Questions = []string{"1. Budget?"}
	m.Update(clarifiedMsg{sess: sess})

	if m.phase != phaseQuestions {
		t.Fatalf("phase = %v, want %v", m.phase, phaseQuestions)
	}
	if len(m.events) != 1 || m.events[0].Kind != app.EventClarified {
		t.Fatalf("events = %+v, want the buffered clarified event drained into the timeline", m.events)
	}
	if timeline := FormatTimeline(m.events); !strings.Contains(timeline, "Clarified") {
		t.Fatalf("timeline should start at Clarified:\n%s", timeline)
	}
}

func TestMainModelEmptyTopicWarns(t *testing.T) {
	m := newTestModel()

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.phase != phaseTopic {
		t.Fatalf("phase = %v, want %v", m.phase, phaseTopic)
	}
	if m.running {
		t.Fatal("an empty topic must not start a run")
	}
	if !strings.Contains(m.errText, "topic is empty") {
		t.Fatalf("errText = %q, want an empty-topic warning", m.errText)
	}
	if view := m.View(); !strings.Contains(view, "topic is empty") {
		t.Fatalf("view does not surface the empty-topic warning:\n%s", view)
	}
}

func TestMainModelEventsUpdateRunInfo(t *testing.T) {
	m := newTestModel()
	m.phase = phaseResearch

	m.Update(researchEventMsg{ev: app.ResearchEvent{Kind: app.EventPlanned, Detail: "Compare burr grinders"}})
	m.Update(researchEventMsg{ev: app.ResearchEvent{Kind: app.EventSearchStart, Attempt: 1, Query: "grinder reviews"}})
	m.Update(researchEventMsg{ev: app.ResearchEvent{Kind: app.EventSearchDone, Attempt: 1, Query: "grinder reviews"}})
	m.Update(researchEventMsg{ev: app.ResearchEvent{Kind: app.EventEvaluated, Attempt: 1, Detail: "no"}})

	if m.info.Goal != "Compare burr grinders" {
		t.Fatalf("goal = %q, want %q", m.info.Goal, "Compare burr grinders")
	}
	if m.info.Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", m.info.Attempt)
	}
	if m.info.Searched != 1 {
		t.Fatalf("searched = %d, want 1", m.info.Searched)
	}
	if len(m.info.Verdicts) != 1 || m.info.Verdicts[0] != "attempt 1: goal not met" {
		t.Fatalf("verdicts = %v, want [attempt 1: goal not met]", m.info.Verdicts)
	}
}

func TestMainModelFlowDoneShowsReport(t *testing.T) {
	m := newTestModel()
	m.phase = phaseResearch
	m.running = true

	result := &app.ResearchResult{Status: app.RunConverged, Attempts: 1}
	m.Update(flowDoneMsg{result: result, report: "# Espresso Grinders\n\nFindings."})

	if m.phase != phaseReport {
		t.Fatalf("phase = %v, want %v", m.phase, phaseReport)
	}
	if m.running {
		t.Fatal("model should not report running after the flow finishes")
	}
	if m.reportText != "# Espresso Grinders\n\nFindings." {
		t.Fatalf("reportText = %q", m.reportText)
	}
	if view := m.View(); !strings.Contains(view, "Espresso Grinders") {
		t.Fatalf("view does not contain the rendered report:\n%s", view)
	}
}

func TestMainModelExhaustedOutcome(t *testing.T) {
	m := newTestModel()
	m.phase = phaseResearch

	m.Update(flowDoneMsg{result: &app.ResearchResult{Status: app.RunExhausted, Attempts: 4}})

	if m.phase != phaseReport {
		t.Fatalf("phase = %v, want %v", m.phase, phaseReport)
	}
	out := m.renderOutcome(80)
	if !strings.Contains(out, "No convergence after 4 attempts") {
		t.Fatalf("outcome missing exhaustion notice:\n%s", out)
	}
}

func TestMainModelHelpToggle(t *testing.T) {
	m := newTestModel()

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h"), Alt: true})

	if !m.showHelp {
		t.Fatal("alt+h should open the help screen")
	}
	view := m.View()
	if !strings.Contains(view, "deepr help") || !strings.Contains(view, "toggle help") {
		t.Fatalf("view does not show the help screen:\n%s", view)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.running || m.errText != "" {
		t.Fatal("phase keys should stay inert while help is open")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h"), Alt: true})
	if m.showHelp {
		t.Fatal("alt+h should close the help screen")
	}
}

func TestMainModelNewRunResets(t *testing.T) {
	m := newTestModel()
	m.phase = phaseReport
	m.sess = app.NewResearchSession("old topic")
	m.reportText = "# Old"
	m.events = []app.ResearchEvent{{Kind: app.EventReportReady}}
	m.info = runInfo{Goal: "old goal", Attempt: 2}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})

	if m.phase != phaseTopic {
		t.Fatalf("phase = %v, want %v", m.phase, phaseTopic)
	}
	if m.sess != nil {
		t.Fatal("session should be cleared for a new run")
	}
	if m.reportText != "" || len(m.events) != 0 || m.info.Goal != "" {
		t.Fatal("run state should be cleared for a new run")
	}
}
