package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parametric-ai/searchdocs/pkg/assistant"
	"github.com/parametric-ai/searchdocs/pkg/cache"
	"github.com/parametric-ai/searchdocs/pkg/config"
	"github.com/parametric-ai/searchdocs/pkg/models"
)

// fakeBackend doubles the full assistants surface the orchestrator touches.
type fakeBackend struct {
	mu sync.Mutex

	replyText    string
	runStatus    string
	lastErrorMsg string
	failDelete   bool

	listCalls      int
	createCalls    int
	threadCalls    int
	runCreateCalls int
	messageCalls   int
	deleteCalls    int

	lastPrompt string
}

func newFakeBackend(replyText string) *fakeBackend {
	return &fakeBackend{replyText: replyText, runStatus: assistant.RunStatusCompleted}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /assistants", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.listCalls++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []assistant.Assistant{}})
	})

	mux.HandleFunc("POST /assistants", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.createCalls++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(assistant.Assistant{ID: "asst_1"})
	})

	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []assistant.ThreadMessage `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.threadCalls++
		if len(req.Messages) > 0 {
			f.lastPrompt = req.Messages[0].Content
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(assistant.Thread{ID: "thread_1"})
	})

	mux.HandleFunc("POST /threads/thread_1/runs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.runCreateCalls++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(assistant.Run{ID: "run_1", Status: "queued"})
	})

	mux.HandleFunc("GET /threads/thread_1/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.runStatus
		errMsg := f.lastErrorMsg
		f.mu.Unlock()

		run := assistant.Run{
			ID:     "run_1",
			Status: status,
			Usage:  &models.Usage{PromptTokens: 100, CompletionTokens: 40, TotalTokens: 140},
		}
		if errMsg != "" {
			run.LastError = &assistant.RunError{Code: "server_error", Message: errMsg}
		}
		_ = json.NewEncoder(w).Encode(run)
	})

	mux.HandleFunc("GET /threads/thread_1/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.messageCalls++
		text := f.replyText
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{"data": []assistant.Message{{
			ID:   "msg_1",
			Role: "assistant",
			Content: []assistant.MessageContent{{
				Type: "text",
				Text: &assistant.MessageText{Value: text},
			}},
		}}})
	})

	mux.HandleFunc("DELETE /threads/thread_1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleteCalls++
		fail := f.failDelete
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "thread_1", "deleted": true})
	})

	return mux
}

func setupOrchestrator(t *testing.T, f *fakeBackend, tweak func(*config.Config)) *Orchestrator {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Backend.BaseURL = srv.URL
	cfg.Backend.APIKey = "sk-test"
	cfg.Backend.VectorStoreID = "vs_test"
	if tweak != nil {
		tweak(cfg)
	}

	client := assistant.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, zerolog.Nop())
	registrar := assistant.NewRegistrar(client, cfg.Backend.AssistantName, cfg.Backend.Model, zerolog.Nop())

	var answerCache *cache.Cache
	if cfg.Cache.Enabled {
		answerCache = cache.New(cfg.Cache.TTL)
	}

	return New(cfg, answerCache, registrar, client, zerolog.Nop())
}

const cuboidReply = `{"signature":"cuboid(size)","parameters":"size: vector","examples":"cuboid([10,10,10]);","notes":"","sources":["BOSL2/shapes.scad"]}`

func TestSearchSuccess(t *testing.T) {
	f := newFakeBackend(cuboidReply)
	o := setupOrchestrator(t, f, nil)

	result, err := o.Search(context.Background(), "BOSL2 cuboid", "")
	require.NoError(t, err)

	assert.Equal(t, "cuboid(size)", result.Answer.Signature)
	assert.Equal(t, "size: vector", result.Answer.Parameters)
	assert.Equal(t, []string{"BOSL2/shapes.scad"}, result.Answer.Sources)
	assert.Equal(t, 140, result.TokensUsed)
	assert.False(t, result.Cached)
	assert.Equal(t, 1, f.deleteCalls, "thread should be cleaned up")
}

func TestSearchFencedReply(t *testing.T) {
	f := newFakeBackend("Here is what I found:\n```json\n" + cuboidReply + "\n```\n")
	o := setupOrchestrator(t, f, nil)

	result, err := o.Search(context.Background(), "BOSL2 cuboid", "")
	require.NoError(t, err)
	assert.Equal(t, "cuboid(size)", result.Answer.Signature)
	assert.Equal(t, []string{"BOSL2/shapes.scad"}, result.Answer.Sources)
}

func TestSearchParseFallback(t *testing.T) {
	raw := "Sorry, I could not find anything about that module."
	f := newFakeBackend(raw)
	o := setupOrchestrator(t, f, nil)

	result, err := o.Search(context.Background(), "nonexistent module", "")
	require.NoError(t, err)

	assert.Equal(t, "Unable to parse search result", result.Answer.Signature)
	assert.Equal(t, raw, result.Answer.Parameters, "fallback must carry the raw reply verbatim")
	assert.Empty(t, result.Answer.Sources)
	assert.Equal(t, 140, result.TokensUsed, "token usage is reported even for unparseable replies")
}

func TestSearchRunFailed(t *testing.T) {
	f := newFakeBackend("")
	f.runStatus = assistant.RunStatusFailed
	f.lastErrorMsg = "rate limit exceeded"
	o := setupOrchestrator(t, f, nil)

	result, err := o.Search(context.Background(), "BOSL2 cuboid", "")
	require.NoError(t, err, "a non-completed run is a business outcome, not an error")

	assert.Equal(t, "Search failed", result.Answer.Signature)
	assert.Contains(t, result.Answer.Parameters, "failed")
	assert.Contains(t, result.Answer.Parameters, "rate limit exceeded")
	assert.Equal(t, 0, f.messageCalls, "no messages are read for a failed run")
}

func TestSearchUnconfigured(t *testing.T) {
	f := newFakeBackend(cuboidReply)
	o := setupOrchestrator(t, f, func(cfg *config.Config) {
		cfg.Backend.VectorStoreID = ""
	})

	result, err := o.Search(context.Background(), "BOSL2 cuboid", "")
	require.NoError(t, err)

	assert.Contains(t, result.Answer.Signature, "not configured")
	assert.Equal(t, 0, result.TokensUsed)
	assert.Equal(t, 0, f.listCalls, "no remote call may be attempted")
	assert.Equal(t, 0, f.threadCalls)
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFakeBackend(cuboidReply)
	o := setupOrchestrator(t, f, nil)

	_, err := o.Search(context.Background(), "   \t ", "")
	assert.ErrorIs(t, err, ErrQueryRequired)
	assert.Equal(t, 0, f.threadCalls, "no remote call may be attempted")
}

func TestSearchIdempotentWithinTTL(t *testing.T) {
	f := newFakeBackend(cuboidReply)
	o := setupOrchestrator(t, f, nil)
	ctx := context.Background()

	first, err := o.Search(ctx, "BOSL2 cuboid", "")
	require.NoError(t, err)
	second, err := o.Search(ctx, "  bosl2 CUBOID ", "")
	require.NoError(t, err)

	assert.Equal(t, 1, f.runCreateCalls, "second search within the TTL must not call the backend")
	assert.Equal(t, first.Answer, second.Answer)
	assert.True(t, second.Cached)
	assert.Equal(t, 0, second.TokensUsed, "cached results report zero cost")
}

func TestSearchContextSeparatesCacheEntries(t *testing.T) {
	f := newFakeBackend(cuboidReply)
	o := setupOrchestrator(t, f, nil)
	ctx := context.Background()

	_, err := o.Search(ctx, "cuboid", "using attachments")
	require.NoError(t, err)
	_, err = o.Search(ctx, "cuboid", "using anchors")
	require.NoError(t, err)

	assert.Equal(t, 2, f.runCreateCalls, "different context means a different cache key")
}

func TestSearchExpiry(t *testing.T) {
	f := newFakeBackend(cuboidReply)
	o := setupOrchestrator(t, f, func(cfg *config.Config) {
		cfg.Cache.TTL = 1 * time.Millisecond
	})
	ctx := context.Background()

	_, err := o.Search(ctx, "BOSL2 cuboid", "")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = o.Search(ctx, "BOSL2 cuboid", "")
	require.NoError(t, err)

	assert.Equal(t, 2, f.runCreateCalls, "an expired entry is treated as absent")
}

func TestSearchCachesFailuresByDefault(t *testing.T) {
	f := newFakeBackend("")
	f.runStatus = assistant.RunStatusExpired
	o := setupOrchestrator(t, f, nil)
	ctx := context.Background()

	_, err := o.Search(ctx, "BOSL2 cuboid", "")
	require.NoError(t, err)
	second, err := o.Search(ctx, "BOSL2 cuboid", "")
	require.NoError(t, err)

	assert.Equal(t, 1, f.runCreateCalls)
	assert.True(t, second.Cached)
}

func TestSearchStoreFailuresDisabled(t *testing.T) {
	f := newFakeBackend("")
	f.runStatus = assistant.RunStatusExpired
	o := setupOrchestrator(t, f, func(cfg *config.Config) {
		cfg.Cache.StoreFailures = false
	})
	ctx := context.Background()

	_, err := o.Search(ctx, "BOSL2 cuboid", "")
	require.NoError(t, err)
	_, err = o.Search(ctx, "BOSL2 cuboid", "")
	require.NoError(t, err)

	assert.Equal(t, 2, f.runCreateCalls, "failure answers must not poison the cache")
}

func TestSearchPromptIncludesContext(t *testing.T) {
	f := newFakeBackend(cuboidReply)
	o := setupOrchestrator(t, f, nil)

	_, err := o.Search(context.Background(), "cuboid", "I am building a parametric enclosure")
	require.NoError(t, err)

	f.mu.Lock()
	prompt := f.lastPrompt
	f.mu.Unlock()
	assert.Contains(t, prompt, "cuboid")
	assert.Contains(t, prompt, "Context:\nI am building a parametric enclosure")
}

func TestSearchCleanupFailureSwallowed(t *testing.T) {
	f := newFakeBackend(cuboidReply)
	f.failDelete = true
	o := setupOrchestrator(t, f, nil)

	result, err := o.Search(context.Background(), "BOSL2 cuboid", "")
	require.NoError(t, err, "cleanup failure never surfaces")
	assert.Equal(t, "cuboid(size)", result.Answer.Signature)
}
