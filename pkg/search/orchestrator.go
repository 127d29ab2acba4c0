package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/parametric-ai/searchdocs/pkg/assistant"
	"github.com/parametric-ai/searchdocs/pkg/cache"
	"github.com/parametric-ai/searchdocs/pkg/config"
	"github.com/parametric-ai/searchdocs/pkg/models"
)

// ErrQueryRequired is returned for an empty or whitespace-only query. The HTTP
// layer maps it to an ok:false envelope; every other domain outcome is a
// descriptive Answer, not an error.
var ErrQueryRequired = errors.New("query is required")

// Result is the outcome of one search. Usage is nil when no remote call was
// made or the backend reported none.
type Result struct {
	Answer     models.Answer
	TokensUsed int
	Cached     bool
	Usage      *models.Usage
}

// Orchestrator resolves documentation searches: cache first, then the remote
// agent, reshaping its reply into the fixed answer shape.
type Orchestrator struct {
	cfg       *config.Config
	cache     *cache.Cache
	registrar *assistant.Registrar
	client    *assistant.Client
	logger    zerolog.Logger
}

// New creates an Orchestrator. cache may be nil to disable caching.
func New(cfg *config.Config, c *cache.Cache, reg *assistant.Registrar, client *assistant.Client, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		cache:     c,
		registrar: reg,
		client:    client,
		logger:    logger,
	}
}

// Search runs one documentation search for a query and optional free-text
// context. TokensUsed is zero for cache hits and every early-return path.
//
// There is no per-key in-flight deduplication: two concurrent misses for the
// same key both call the backend and the second cache write wins. That wastes
// tokens but is harmless.
func (o *Orchestrator) Search(ctx context.Context, query, contextText string) (*Result, error) {
	if o.cfg.Backend.VectorStoreID == "" {
		return &Result{Answer: unconfiguredAnswer()}, nil
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return &Result{Answer: queryRequiredAnswer()}, ErrQueryRequired
	}

	key := cache.Key(query, contextText)
	if o.cache != nil {
		if answer, ok := o.cache.Get(key); ok {
			o.logger.Debug().Str("query", trimmed).Msg("cache hit")
			return &Result{Answer: answer, Cached: true}, nil
		}
	}

	assistantID, err := o.registrar.Ensure(ctx, o.cfg.Backend.VectorStoreID)
	if err != nil {
		return nil, fmt.Errorf("ensure assistant: %w", err)
	}

	prompt := buildPrompt(trimmed, contextText)
	thread, err := o.client.CreateThread(ctx, []assistant.ThreadMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	defer func() {
		// Best-effort cleanup, detached from the request's cancellation.
		if err := o.client.DeleteThread(context.WithoutCancel(ctx), thread.ID); err != nil {
			o.logger.Warn().Err(err).Str("thread_id", thread.ID).Msg("thread cleanup failed")
		}
	}()

	run, err := o.client.CreateRun(ctx, thread.ID, assistantID)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	run, err = o.client.WaitForRun(ctx, thread.ID, run.ID)
	if err != nil {
		return nil, fmt.Errorf("wait for run: %w", err)
	}

	tokens := 0
	if run.Usage != nil {
		tokens = run.Usage.TotalTokens
	}

	var answer models.Answer
	degraded := false
	if run.Status == assistant.RunStatusCompleted {
		text, err := o.firstAssistantMessage(ctx, thread.ID)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		answer, degraded = parseAnswer(text)
	} else {
		o.logger.Warn().Str("status", run.Status).Str("query", trimmed).Msg("run did not complete")
		answer = failedAnswer(run)
		degraded = true
	}

	if o.cache != nil && (o.cfg.Cache.StoreFailures || !degraded) {
		o.cache.Put(key, answer)
	}

	return &Result{Answer: answer, TokensUsed: tokens, Usage: run.Usage}, nil
}

// firstAssistantMessage returns the concatenated text of the newest
// assistant-authored message, or empty if the thread has none.
func (o *Orchestrator) firstAssistantMessage(ctx context.Context, threadID string) (string, error) {
	messages, err := o.client.ListMessages(ctx, threadID)
	if err != nil {
		return "", err
	}
	for _, m := range messages {
		if m.Role != "assistant" {
			continue
		}
		var sb strings.Builder
		for _, part := range m.Content {
			if part.Text != nil {
				sb.WriteString(part.Text.Value)
			}
		}
		return sb.String(), nil
	}
	return "", nil
}

func buildPrompt(query, contextText string) string {
	if strings.TrimSpace(contextText) == "" {
		return query
	}
	return query + "\n\nContext:\n" + contextText
}

func unconfiguredAnswer() models.Answer {
	return models.Answer{
		Signature: "Documentation search is not configured",
		Notes:     "No knowledge store is configured for this service. Set VECTOR_STORE_ID and restart; no search was attempted.",
		Sources:   []string{},
	}
}

func queryRequiredAnswer() models.Answer {
	return models.Answer{
		Signature: "Query is required",
		Notes:     "Provide a non-empty query describing the function or module to look up.",
		Sources:   []string{},
	}
}

func failedAnswer(run *assistant.Run) models.Answer {
	detail := fmt.Sprintf("The retrieval run finished with status %q.", run.Status)
	if run.LastError != nil && run.LastError.Message != "" {
		detail += " " + run.LastError.Message
	}
	return models.Answer{
		Signature:  "Search failed",
		Parameters: detail,
		Notes:      "The search did not complete. Retry, possibly with a different query.",
		Sources:    []string{},
	}
}
