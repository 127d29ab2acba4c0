package models

import "time"

// Usage represents token usage reported by a remote agent run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SearchRecord tracks a single resolved search for usage accounting.
type SearchRecord struct {
	ID               int64     `json:"id"`
	RequestID        string    `json:"request_id"`
	Query            string    `json:"query"`
	Cached           bool      `json:"cached"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMS        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageSummary aggregates usage across searches.
type UsageSummary struct {
	Searches        int64 `json:"searches"`
	CacheHits       int64 `json:"cache_hits"`
	TotalPrompt     int64 `json:"total_prompt"`
	TotalCompletion int64 `json:"total_completion"`
	TotalTokens     int64 `json:"total_tokens"`
}
