package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrNotConverged rejects a report request for a run whose collected set was
// never accepted by the evaluator. An exhausted run produces no report.
var ErrNotConverged = errors.New("report requires a converged run")

// EventSink receives progress notifications while a phase executes. With
// SearchParallelism above one the engine may call it from several goroutines
// at once, so implementations must be safe for concurrent use.
type EventSink func(ResearchEvent)

// Engine drives the clarify, plan, research and report phases of a run
// against a Gateway. The engine itself is stateless across runs; everything
// a run accumulates lives on its ResearchSession.
type Engine struct {
	Gateway           Gateway
	Logger            *Logger
	Model             string
	ModelMini         string
	MaxAttempts       int
	SearchParallelism int
}

func NewEngine(gw Gateway, logger *Logger, cfg Config) *Engine {
	if logger == nil {
		logger = NewLogger(io.Discard)
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	parallelism := cfg.SearchParallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Engine{
		Gateway:           gw,
		Logger:            logger,
		Model:             cfg.Model,
		ModelMini:         cfg.ModelMini,
		MaxAttempts:       maxAttempts,
		SearchParallelism: parallelism,
	}
}

// Clarify asks for numbered clarifying questions about the session topic and
// records them on the session along with the response id the planning call
// will continue from.
func (e *Engine) Clarify(ctx context.Context, session *ResearchSession, sink EventSink) error {
	resp, err := e.Gateway.CreateResponse(ctx, ResponseRequest{
		Model:        e.ModelMini,
		Input:        clarifyPrompt(session.Topic),
		Instructions: researcherInstructions,
	})
	if err != nil {
		return fmt.Errorf("clarify: %w", err)
	}
	text, err := resp.MessageText()
	if err != nil {
		return fmt.Errorf("clarify: %w", err)
	}
	questions := ParseQuestionList(text)
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	session.Questions = questions
	session.ClarifyToken = resp.ID
	session.touch()

	e.Logger.Info("Clarifying questions generated", map[string]interface{}{
		"session_id": session.ID,
		"questions":  len(questions),
	})
	emit(sink, ResearchEvent{Kind: EventClarified, Detail: fmt.Sprintf("%d questions", len(questions))})
	return nil
}

// Plan turns the answered questions into a research goal and the initial
// query set. The planning response id becomes the session root token that
// every later search and regeneration continues from.
func (e *Engine) Plan(ctx context.Context, session *ResearchSession, answers []string, sink EventSink) error {
	if len(answers) != len(session.Questions) {
		return fmt.Errorf("%w: got %d answers for %d questions", ErrIncompleteAnswers, len(answers), len(session.Questions))
	}
	for i, a := range answers {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: question %d is unanswered", ErrIncompleteAnswers, i+1)
		}
	}

	resp, err := e.Gateway.CreateResponse(ctx, ResponseRequest{
		Model:              e.Model,
		Input:              planPrompt(session.Topic, session.Questions, answers),
		Instructions:       researcherInstructions,
		PreviousResponseID: session.ClarifyToken,
	})
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	text, err := resp.MessageText()
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	goal, queries, err := DecodePlan(text)
	if err != nil {
		return err
	}

	session.Answers = answers
	session.Goal = goal
	session.Queries = queries
	session.RootToken = resp.ID
	session.touch()

	e.Logger.Info("Research plan created", map[string]interface{}{
		"session_id": session.ID,
		"goal":       goal,
		"queries":    len(queries),
	})
	emit(sink, ResearchEvent{Kind: EventPlanned, Detail: goal})
	return nil
}

// Research runs bounded search attempts until the evaluator accepts the
// collected set or attempts run out. A rejected set is discarded whole; the
// next attempt starts from a regenerated query list and an empty set, with
// nothing carried over.
func (e *Engine) Research(ctx context.Context, session *ResearchSession, sink EventSink) (*ResearchResult, error) {
	if session.RootToken == "" {
		return nil, errors.New("research requires a planned session")
	}

	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		session.Attempt = attempt
		session.touch()

		collected, err := e.runSearches(ctx, session, sink)
		if err != nil {
			return nil, err
		}
		session.Collected = collected

		satisfied, err := e.evaluate(ctx, session.Goal, collected)
		if err != nil {
			return nil, err
		}
		verdict := "no"
		if satisfied {
			verdict = "yes"
		}
		e.Logger.Info("Collected set evaluated", map[string]interface{}{
			"session_id": session.ID,
			"attempt":    attempt,
			"verdict":    verdict,
			"artifacts":  len(collected),
		})
		emit(sink, ResearchEvent{Kind: EventEvaluated, Attempt: attempt, Detail: verdict})

		if satisfied {
			session.Status = RunConverged
			session.touch()
			return &ResearchResult{Status: RunConverged, Attempts: attempt, Collected: collected}, nil
		}
		if attempt == e.MaxAttempts {
			break
		}

		queries, err := e.regenerate(ctx, session)
		if err != nil {
			return nil, err
		}
		session.Queries = queries
		session.Collected = nil
		emit(sink, ResearchEvent{Kind: EventRegenerated, Attempt: attempt, Detail: fmt.Sprintf("%d new queries", len(queries))})
	}

	session.Status = RunExhausted
	session.touch()
	e.Logger.Warn("Research attempts exhausted", map[string]interface{}{
		"session_id": session.ID,
		"attempts":   e.MaxAttempts,
	})
	return &ResearchResult{Status: RunExhausted, Attempts: e.MaxAttempts}, nil
}

// runSearches executes the current query set and returns one artifact per
// query in query order. Evaluation always waits for the whole batch.
func (e *Engine) runSearches(ctx context.Context, session *ResearchSession, sink EventSink) ([]SearchArtifact, error) {
	queries := session.Queries
	if e.SearchParallelism <= 1 || len(queries) <= 1 {
		out := make([]SearchArtifact, 0, len(queries))
		for _, q := range queries {
			emit(sink, ResearchEvent{Kind: EventSearchStart, Attempt: session.Attempt, Query: q})
			art, err := e.search(ctx, session.RootToken, q)
			if err != nil {
				return nil, err
			}
			out = append(out, art)
			emit(sink, ResearchEvent{Kind: EventSearchDone, Attempt: session.Attempt, Query: q})
		}
		return out, nil
	}

	results := make([]SearchArtifact, len(queries))
	errs := make([]error, len(queries))
	sem := make(chan struct{}, e.SearchParallelism)
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			emit(sink, ResearchEvent{Kind: EventSearchStart, Attempt: session.Attempt, Query: q})
			art, err := e.search(ctx, session.RootToken, q)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = art
			emit(sink, ResearchEvent{Kind: EventSearchDone, Attempt: session.Attempt, Query: q})
		}(i, q)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// search issues one web search continued from the session root token, so
// every search in every attempt is a sibling of the plan rather than a link
// in a growing chain.
func (e *Engine) search(ctx context.Context, rootToken, query string) (SearchArtifact, error) {
	resp, err := e.Gateway.CreateResponse(ctx, ResponseRequest{
		Model:              e.Model,
		Input:              searchPrompt(query),
		Instructions:       researcherInstructions,
		PreviousResponseID: rootToken,
		Tools:              WebSearchTool(),
	})
	if err != nil {
		return SearchArtifact{}, fmt.Errorf("search %q: %w", query, err)
	}
	text, err := resp.MessageText()
	if err != nil {
		return SearchArtifact{}, fmt.Errorf("search %q: %w", query, err)
	}
	e.Logger.Info("Search completed", map[string]interface{}{
		"query":        query,
		"search_calls": resp.WebSearchCalls(),
	})
	return SearchArtifact{Query: query, Reference: text}, nil
}

// evaluate asks for a strict Yes/No verdict on whether the collected set
// answers the goal. Any reply containing "yes", in any casing, accepts.
func (e *Engine) evaluate(ctx context.Context, goal string, collected []SearchArtifact) (bool, error) {
	payload := promptJSON(collected)
	if window, ok := LookupContextWindowTokens(e.Model); ok {
		if est := EstimateTokens(payload); est > window {
			e.Logger.Warn("Collected set may exceed the model context window", map[string]interface{}{
				"estimated_tokens": est,
				"context_window":   window,
			})
		}
	}

	resp, err := e.Gateway.CreateResponse(ctx, ResponseRequest{
		Model:        e.Model,
		Input:        evaluateInput(goal, collected),
		Instructions: researcherInstructions,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate: %w", err)
	}
	text, err := resp.MessageText()
	if err != nil {
		return false, fmt.Errorf("evaluate: %w", err)
	}
	return strings.Contains(strings.ToLower(text), "yes"), nil
}

// regenerate asks for a replacement query set after a failed evaluation.
// Like every search, it continues from the session root token.
func (e *Engine) regenerate(ctx context.Context, session *ResearchSession) ([]string, error) {
	resp, err := e.Gateway.CreateResponse(ctx, ResponseRequest{
		Model:              e.Model,
		Input:              regenerateInput(session.Goal, session.Collected),
		Instructions:       researcherInstructions,
		PreviousResponseID: session.RootToken,
	})
	if err != nil {
		return nil, fmt.Errorf("regenerate: %w", err)
	}
	text, err := resp.MessageText()
	if err != nil {
		return nil, fmt.Errorf("regenerate: %w", err)
	}
	return DecodeQueryList(text)
}

// Report writes the final report from the converged collected set. The call
// carries no continuation token; the serialized set is the whole context.
func (e *Engine) Report(ctx context.Context, session *ResearchSession, sink EventSink) (string, error) {
	if session.Status != RunConverged || len(session.Collected) == 0 {
		return "", ErrNotConverged
	}

	resp, err := e.Gateway.CreateResponse(ctx, ResponseRequest{
		Model:        e.Model,
		Input:        reportInput(session.Goal, session.Collected),
		Instructions: researcherInstructions,
	})
	if err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	text, err := resp.MessageText()
	if err != nil {
		return "", fmt.Errorf("report: %w", err)
	}

	session.Report = text
	session.touch()
	e.Logger.Info("Report generated", map[string]interface{}{
		"session_id": session.ID,
		"length":     len(text),
	})
	emit(sink, ResearchEvent{Kind: EventReportReady})
	return text, nil
}

func emit(sink EventSink, ev ResearchEvent) {
	if sink != nil {
		sink(ev)
	}
}
