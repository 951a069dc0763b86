package tui

import (
	"fmt"
	"strings"
	"testing"

	"deep-research/internal/app"
)

func TestFormatTimeline_GroupsWorkflowEvents(t *testing.T) {
	events := []app.ResearchEvent{
		{Kind: app.EventClarified, Detail: "5 questions"},
		{Kind: app.EventPlanned, Detail: "Find the best espresso grinders under $500"},
		{Kind: app.EventSearchStart, Attempt: 1, Query: "espresso grinder reviews 2025"},
		{Kind: app.EventSearchDone, Attempt: 1, Query: "espresso grinder reviews 2025"},
		{Kind: app.EventSearchStart, Attempt: 1, Query: "flat vs conical burr taste"},
		{Kind: app.EventSearchDone, Attempt: 1, Query: "flat vs conical burr taste"},
		{Kind: app.EventEvaluated, Attempt: 1, Detail: "no"},
		{Kind: app.EventRegenerated, Attempt: 2, Detail: "3 new queries"},
		{Kind: app.EventSearchDone, Attempt: 2, Query: "grinder retention comparison"},
		{Kind: app.EventEvaluated, Attempt: 2, Detail: "Yes"},
		{Kind: app.EventReportReady},
	}

	got := FormatTimeline(events)
	want := strings.Join([]string{
		"• Clarified",
		"  └ 5 questions",
		"• Planned",
		"  └ Find the best espresso grinders under $500",
		"• Searched",
		"  └ `espresso grinder reviews 2025`",
		"  └ `flat vs conical burr taste`",
		"• Evaluated",
		"  └ attempt 1: goal not met",
		"• Regenerated",
		"  └ 3 new queries",
		"• Searched",
		"  └ `grinder retention comparison`",
		"• Evaluated",
		"  └ attempt 2: goal met",
		"• Reported",
		"  └ final report drafted",
	}, "\n")

	if got != want {
		t.Fatalf("unexpected timeline output\nwant:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestFormatTimeline_EmptyWhenNoRenderableEvents(t *testing.T) {
	events := []app.ResearchEvent{
		{Kind: ""},
		{Kind: app.EventSearchStart, Attempt: 1, Query: "still running"},
	}

	if got := FormatTimeline(events); got != "" {
		t.Fatalf("expected empty timeline, got: %q", got)
	}
}

func TestFormatTimeline_DropsAdjacentDuplicates(t *testing.T) {
	events := []app.ResearchEvent{
		{Kind: app.EventSearchDone, Attempt: 1, Query: "same query"},
		{Kind: app.EventSearchDone, Attempt: 1, Query: "same query"},
	}

	got := FormatTimeline(events)
	want := strings.Join([]string{
		"• Searched",
		"  └ `same query`",
	}, "\n")

	if got != want {
		t.Fatalf("unexpected timeline output\nwant:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestFormatTimeline_TrimsLongRuns(t *testing.T) {
	events := []app.ResearchEvent{
		{Kind: app.EventClarified, Detail: "5 questions"},
		{Kind: app.EventPlanned, Detail: "Compare battery chemistries"},
	}
	for i := 0; i < 20; i++ {
		events = append(events, app.ResearchEvent{
			Kind:    app.EventSearchDone,
			Attempt: 1,
			Query:   fmt.Sprintf("query-%02d", i),
		})
	}

	got := FormatTimeline(events)
	if !strings.Contains(got, "• Clarified") {
		t.Fatalf("expected clarified entry to be preserved, got:\n%s", got)
	}
	if !strings.Contains(got, "• Planned") {
		t.Fatalf("expected planned entry to be preserved, got:\n%s", got)
	}
	if !strings.Contains(got, "`query-19`") {
		t.Fatalf("expected latest steps to be kept, got:\n%s", got)
	}
	if strings.Contains(got, "`query-00`") {
		t.Fatalf("expected old steps to be trimmed, got:\n%s", got)
	}
	if !strings.Contains(got, "earlier steps omitted") {
		t.Fatalf("expected truncation marker, got:\n%s", got)
	}
}
