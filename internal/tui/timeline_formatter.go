package tui

import (
	"fmt"
	"strings"

	"deep-research/internal/app"
)

const timelineMaxEntries = 14

type timelineEntry struct {
	Group  string
	Detail string
}

// FormatTimeline renders run progress as grouped bullets, one group per
// workflow stage (Clarified/Planned/Searched/Evaluated/Regenerated) with a
// detail line per step. Pending search events are skipped; only completed
// searches make the timeline.
func FormatTimeline(events []app.ResearchEvent) string {
	if len(events) == 0 {
		return ""
	}

	entries := make([]timelineEntry, 0, len(events))
	for _, ev := range events {
		var (
			entry timelineEntry
			ok    bool
		)

		switch ev.Kind {
		case app.EventClarified:
			detail := strings.TrimSpace(ev.Detail)
			if detail == "" {
				detail = "questions ready"
			}
			entry = timelineEntry{Group: "Clarified", Detail: detail}
			ok = true
		case app.EventPlanned:
			detail := strings.TrimSpace(ev.Detail)
			if detail == "" {
				detail = "goal set"
			}
			entry = timelineEntry{Group: "Planned", Detail: truncateForTimeline(detail, 96)}
			ok = true
		case app.EventSearchStart:
			continue
		case app.EventSearchDone:
			entry = timelineEntry{
				Group:  "Searched",
				Detail: timelineCode(truncateForTimeline(ev.Query, 80)),
			}
			ok = true
		case app.EventEvaluated:
			verdict := "goal not met"
			if strings.EqualFold(strings.TrimSpace(ev.Detail), "yes") {
				verdict = "goal met"
			}
			entry = timelineEntry{
				Group:  "Evaluated",
				Detail: fmt.Sprintf("attempt %d: %s", ev.Attempt, verdict),
			}
			ok = true
		case app.EventRegenerated:
			detail := strings.TrimSpace(ev.Detail)
			if detail == "" {
				detail = "new query set"
			}
			entry = timelineEntry{Group: "Regenerated", Detail: detail}
			ok = true
		case app.EventReportReady:
			entry = timelineEntry{Group: "Reported", Detail: "final report drafted"}
			ok = true
		default:
			detail := strings.TrimSpace(ev.Detail)
			if detail != "" {
				entry = timelineEntry{Group: "Progress", Detail: detail}
				ok = true
			}
		}

		if !ok || entry.Group == "" || entry.Detail == "" {
			continue
		}
		// De-noise duplicate adjacent events.
		if len(entries) > 0 && entries[len(entries)-1] == entry {
			continue
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return ""
	}

	entries, omitted := trimTimelineEntries(entries, timelineMaxEntries)
	return renderTimeline(entries, omitted)
}

// trimTimelineEntries keeps the leading Clarified/Planned head and the most
// recent steps so a long multi-attempt run still shows how it started.
func trimTimelineEntries(entries []timelineEntry, max int) ([]timelineEntry, int) {
	if len(entries) <= max || max <= 0 {
		return entries, 0
	}

	headCount := 0
	for _, e := range entries {
		if e.Group == "Clarified" || e.Group == "Planned" {
			headCount++
			continue
		}
		break
	}
	if headCount >= max {
		headCount = max - 1
	}
	tailCount := max - headCount
	if tailCount < 1 {
		tailCount = 1
	}

	trimmed := make([]timelineEntry, 0, max)
	if headCount > 0 {
		trimmed = append(trimmed, entries[:headCount]...)
	}
	trimmed = append(trimmed, entries[len(entries)-tailCount:]...)

	return trimmed, len(entries) - len(trimmed)
}

func renderTimeline(entries []timelineEntry, omitted int) string {
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	lastGroup := ""

	for _, entry := range entries {
		if entry.Group != lastGroup {
			b.WriteString("• ")
			b.WriteString(entry.Group)
			b.WriteString("\n")
			lastGroup = entry.Group
		}
		b.WriteString("  └ ")
		b.WriteString(entry.Detail)
		b.WriteString("\n")
	}

	if omitted > 0 {
		b.WriteString("• Progress\n")
		b.WriteString(fmt.Sprintf("  └ ... %d earlier steps omitted\n", omitted))
	}

	return strings.TrimSpace(b.String())
}

func timelineCode(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return "``"
	}
	input = strings.ReplaceAll(input, "`", "'")
	return "`" + input + "`"
}

func truncateForTimeline(input string, max int) string {
	input = strings.TrimSpace(input)
	if max <= 0 || len(input) <= max {
		return input
	}
	return strings.TrimSpace(input[:max]) + "..."
}
