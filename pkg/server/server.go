package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parametric-ai/searchdocs/pkg/config"
	"github.com/parametric-ai/searchdocs/pkg/models"
	"github.com/parametric-ai/searchdocs/pkg/search"
	"github.com/parametric-ai/searchdocs/pkg/tracker"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "search-docs-plugin"

// Server exposes the plugin HTTP surface.
type Server struct {
	cfg     *config.Config
	orch    *search.Orchestrator
	tracker tracker.Tracker
	logger  zerolog.Logger
	mux     *http.ServeMux
}

// New creates a Server wired with all dependencies. tracker may be nil to
// disable usage recording.
func New(cfg *config.Config, orch *search.Orchestrator, tr tracker.Tracker, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		orch:    orch,
		tracker: tr,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/search_docs", s.handleSearchDocs)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.cfg.Listen).Msg("search-docs plugin listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, healthResponse{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSearchDocs resolves a documentation search. Domain failures are
// reported with ok:false inside a 200 response; upstream callers key off the
// ok field and never see a non-2xx status for them.
func (s *Server) handleSearchDocs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()
	start := time.Now()

	var req models.PluginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, "invalid request body")
		return
	}

	result, err := s.orch.Search(r.Context(), req.Args.Query, req.Args.Context)
	if errors.Is(err, search.ErrQueryRequired) {
		s.writeFailure(w, "query is required")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID).Str("query", req.Args.Query).Msg("search failed")
		s.writeFailure(w, err.Error())
		return
	}

	s.logger.Info().
		Str("request_id", requestID).
		Str("session_id", req.Context.SessionID).
		Str("query", req.Args.Query).
		Bool("cached", result.Cached).
		Int("tokens", result.TokensUsed).
		Dur("latency", time.Since(start)).
		Msg("search resolved")

	rec := models.SearchRecord{
		RequestID:   requestID,
		Query:       req.Args.Query,
		Cached:      result.Cached,
		TotalTokens: result.TokensUsed,
		LatencyMS:   time.Since(start).Milliseconds(),
	}
	if result.Usage != nil {
		rec.PromptTokens = result.Usage.PromptTokens
		rec.CompletionTokens = result.Usage.CompletionTokens
	}
	s.record(r.Context(), rec)

	payload, err := json.Marshal(models.SearchResult{
		Query:   req.Args.Query,
		Context: req.Args.Context,
		Answer:  result.Answer,
	})
	if err != nil {
		s.writeFailure(w, "encode result: "+err.Error())
		return
	}

	writeJSON(w, models.PluginResponse{
		OK:         true,
		TokensUsed: result.TokensUsed,
		Artifacts:  []string{},
		Result:     string(payload),
	})
}

// record stores a usage record, best effort.
func (s *Server) record(ctx context.Context, rec models.SearchRecord) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.Record(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Msg("usage record failed")
	}
}

// writeFailure emits the ok:false envelope with a 200 status.
func (s *Server) writeFailure(w http.ResponseWriter, msg string) {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	writeJSON(w, models.PluginResponse{
		OK:        false,
		Artifacts: []string{},
		Result:    string(payload),
		Error:     msg,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
