package libris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/libris-ai/libris/src/models"
)

const defaultSystemPrompt = `You are a knowledgeable and passionate library assistant. You help users discover, manage, and read books.

You have access to:
1. Open Library — search millions of real books from the internet
2. Project Gutenberg — search and fetch full text of thousands of free classic books
3. The personal library — the user's own collection with persistent reading progress and ratings

Guidelines:
- Search Open Library AND Gutenberg (for classics) when asked about books
- If a Gutenberg book is found, always mention it can be read for free
- When adding books found on Gutenberg, always include the gutenberg_id
- Use update_reading_progress to log status, pages, ratings and reviews
- When someone wants to read, use fetch_gutenberg_content
- Be warm, literary, and enthusiastic. Recommend related books proactively.`

const (
	defaultMaxRounds     = 16
	defaultModelAttempts = 2
	defaultRetryBackoff  = 2 * time.Second
	defaultWorkers       = 4
)

// Agent runs one conversational turn at a time: it sends the conversation
// and tool catalog to the model, executes requested tool batches, and
// repeats until the model answers in plain text or the turn fails.
type Agent struct {
	model         models.Model
	catalog       *ToolCatalog
	systemPrompt  string
	maxRounds     int
	modelAttempts int
	retryBackoff  time.Duration
	workers       int
	logger        *slog.Logger
}

// Options configure a new Agent.
type Options struct {
	Model        models.Model
	Catalog      *ToolCatalog
	SystemPrompt string

	// MaxRounds bounds tool-execution rounds per turn as a safety valve
	// against runaway loops. Zero means the default.
	MaxRounds int

	// ModelAttempts bounds calls per model round. Retries apply only to
	// rate-limited and network failures; tool calls are never retried.
	ModelAttempts int
	RetryBackoff  time.Duration

	// Workers bounds parallel tool execution within one batch. Results
	// are always returned to the model in request order.
	Workers int

	Logger *slog.Logger
}

// New creates an Agent with the provided options.
func New(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, errors.New("agent requires a language model")
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = NewToolCatalog()
	}

	systemPrompt := opts.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	attempts := opts.ModelAttempts
	if attempts <= 0 {
		attempts = defaultModelAttempts
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "agent")
	}

	return &Agent{
		model:         opts.Model,
		catalog:       catalog,
		systemPrompt:  systemPrompt,
		maxRounds:     maxRounds,
		modelAttempts: attempts,
		retryBackoff:  backoff,
		workers:       workers,
		logger:        logger,
	}, nil
}

// Catalog exposes the tool catalog for registration.
func (a *Agent) Catalog() *ToolCatalog { return a.catalog }

// Run executes one user turn and returns an ordered stream of incremental
// events. The user turn is committed to the session up front and rolled back
// if the turn fails, so failed turns never pollute future model context.
// Run is not safe for concurrent turns against the same session.
func (a *Agent) Run(ctx context.Context, sess *Session, userInput string) (<-chan Event, error) {
	input := strings.TrimSpace(userInput)
	if input == "" {
		return nil, errors.New("user input is empty")
	}
	if sess == nil {
		return nil, errors.New("session is nil")
	}

	history := sess.Turns()
	sess.appendTurn(models.RoleUser, input)

	events := make(chan Event, 16)
	go a.run(ctx, sess, history, input, events)
	return events, nil
}

func (a *Agent) run(ctx context.Context, sess *Session, history []models.Turn, input string, events chan<- Event) {
	defer close(events)

	fail := func(err error) {
		sess.rollbackUser()
		cat := classifyError(err)
		a.logger.Error("turn failed", "session", sess.ID, "category", string(cat), "error", err)
		events <- Event{Kind: EventError, Category: cat, Text: errorText(cat, err)}
	}

	chat := a.model.StartChat(a.systemPrompt, history, a.catalog.Decls())

	reply, err := a.callModel(ctx, func() (models.Reply, error) {
		return chat.Send(ctx, input)
	})

	for round := 0; ; round++ {
		if err != nil {
			fail(err)
			return
		}

		for _, text := range reply.Texts {
			events <- Event{Kind: EventText, Text: text}
		}

		if !reply.HasCalls() {
			if text := strings.Join(reply.Texts, "\n"); text != "" {
				sess.appendTurn(models.RoleAssistant, text)
			}
			a.logger.Info("turn done", "session", sess.ID, "rounds", round)
			return
		}

		if round >= a.maxRounds {
			fail(fmt.Errorf("tool round limit reached after %d rounds", a.maxRounds))
			return
		}

		results := a.runBatch(ctx, reply.Calls, events)
		reply, err = a.callModel(ctx, func() (models.Reply, error) {
			return chat.SendToolResults(ctx, results)
		})
	}
}

// runBatch executes one batch of requested invocations. Dispatch runs in
// parallel under a bounded worker count, but results land at their request
// index so the model is never shown them out of order.
func (a *Agent) runBatch(ctx context.Context, calls []models.ToolCall, events chan<- Event) []models.ToolResult {
	for _, call := range calls {
		a.logger.Debug("tool call", "tool", call.Name)
		events <- Event{Kind: EventToolCall, Tool: call.Name, Args: previewArgs(call.Args)}
	}

	results := make([]models.ToolResult, len(calls))
	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, call models.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = models.ToolResult{
				Name:    call.Name,
				Payload: a.catalog.Dispatch(ctx, call),
			}
		}(i, call)
	}
	wg.Wait()

	for _, res := range results {
		events <- Event{Kind: EventToolResult, Tool: res.Name, Size: payloadSize(res.Payload)}
	}
	return results
}

// callModel applies the bounded retry policy at the model-call boundary.
// Only rate-limited and network failures are retried.
func (a *Agent) callModel(ctx context.Context, fn func() (models.Reply, error)) (models.Reply, error) {
	var lastErr error
	for attempt := 1; attempt <= a.modelAttempts; attempt++ {
		reply, err := fn()
		if err == nil {
			return reply, nil
		}
		lastErr = err

		cat := classifyError(err)
		if cat != CategoryRateLimited && cat != CategoryNetwork {
			return models.Reply{}, err
		}
		if attempt == a.modelAttempts {
			break
		}
		a.logger.Warn("model call failed, retrying", "category", string(cat), "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return models.Reply{}, lastErr
		case <-time.After(a.retryBackoff):
		}
	}
	return models.Reply{}, lastErr
}
