package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockGateway simulates the Responses API for demos and tests. It detects
// the workflow phase from the request shape and answers with canned but
// well-formed payloads, so the full clarify, plan, search and report flow
// runs without network access or a credential.
type MockGateway struct {
	// ConvergeAfter is how many evaluations reply No before one replies
	// Yes. Zero accepts the first collected set.
	ConvergeAfter int

	mu    sync.Mutex
	calls int
	evals int
	topic string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// Calls reports how many requests the gateway has served.
func (g *MockGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *MockGateway) CreateResponse(ctx context.Context, req ResponseRequest) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	id := fmt.Sprintf("mockresp_%03d", g.calls)

	text, isSearch := g.replyFor(req)
	out := make([]OutputItem, 0, 2)
	if isSearch {
		// The live API emits the tool call before the message; keeping that
		// shape here means extraction is tested the same way in mock mode.
		out = append(out, OutputItem{
			ID:     fmt.Sprintf("ws_%03d", g.calls),
			Type:   OutputTypeWebSearchCall,
			Status: "completed",
		})
	}
	out = append(out, OutputItem{
		ID:     fmt.Sprintf("msg_%03d", g.calls),
		Type:   OutputTypeMessage,
		Role:   "assistant",
		Status: "completed",
		Content: []ContentPart{
			{Type: ContentTypeOutputText, Text: text},
		},
	})

	return &Response{
		ID:     id,
		Status: "completed",
		Model:  req.Model,
		Output: out,
	}, nil
}

func (g *MockGateway) replyFor(req ResponseRequest) (string, bool) {
	switch input := req.Input.(type) {
	case string:
		switch {
		case strings.HasPrefix(input, "search: "):
			return g.searchReply(strings.TrimPrefix(input, "search: ")), true
		case strings.Contains(input, "clarifying questions"):
			g.topic = extractBetween(input, "topic of research: ", ".")
			return g.questionsReply(), false
		case strings.Contains(input, "write a goal sentence"):
			if t := extractBetween(input, "for the research about ", "\n"); t != "" {
				g.topic = t
			}
			return g.planReply(), false
		}
	case []InputMessage:
		last := input[len(input)-1]
		switch {
		case last.Content == evaluateVerdictPrompt:
			g.evals++
			if g.evals > g.ConvergeAfter {
				return "Yes", false
			}
			return "No", false
		case strings.Contains(last.Content, "Write 5 other web searchs"):
			return g.regenerateReply(), false
		}
		if strings.Contains(input[0].Content, "report about research goal") {
			return g.reportReply(), false
		}
	}
	return "Understood.", false
}

func (g *MockGateway) describeTopic() string {
	if strings.TrimSpace(g.topic) == "" {
		return "the requested topic"
	}
	return g.topic
}

func (g *MockGateway) questionsReply() string {
	return strings.Join([]string{
		"1. What time period should the research cover?",
		"2. Who is the intended audience for the findings?",
		"3. Should the research focus on theory, practice, or both?",
		"4. Are there specific regions or markets to prioritize?",
		"5. How deep should the technical detail go?",
	}, "\n")
}

func (g *MockGateway) planReply() string {
	topic := g.describeTopic()
	return promptJSON(map[string]interface{}{
		"goal": fmt.Sprintf("Assemble a sourced overview of %s covering fundamentals, current developments and open problems", topic),
		"queries": []string{
			topic + " overview",
			topic + " latest developments",
			topic + " key challenges",
			topic + " practical applications",
			topic + " expert analysis",
		},
	})
}

func (g *MockGateway) searchReply(query string) string {
	return fmt.Sprintf(
		"Key findings for %q: recent coverage shows steady progress and a few unresolved debates. "+
			"Primary sources: https://example.com/research/%d and https://example.org/analysis/%d.",
		query, g.calls, g.calls)
}

func (g *MockGateway) regenerateReply() string {
	topic := g.describeTopic()
	return promptJSON([]string{
		topic + " survey paper",
		topic + " case studies",
		topic + " criticism and limitations",
		topic + " industry adoption",
		topic + " future outlook",
	})
}

func (g *MockGateway) reportReply() string {
	topic := g.describeTopic()
	return fmt.Sprintf(`# Research Report: %s

## Summary

The collected material gives a consistent picture of %s. Core ideas are well
established [1], while several practical questions remain open [2].

## Findings

Recent work shows steady progress across the field [1][3]. Adoption is
uneven and the main obstacles are organizational rather than technical [2].

## References

[1] https://example.com/research/1
[2] https://example.org/analysis/2
[3] https://example.com/research/3
`, topic, topic)
}

// extractBetween returns the text between the first occurrence of start and
// the next occurrence of end, or "" when either marker is missing.
func extractBetween(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	j := strings.Index(s, end)
	if j < 0 {
		return ""
	}
	return strings.TrimSpace(s[:j])
}
