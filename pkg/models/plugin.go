package models

// CallContext identifies the upstream agent invocation that triggered a search.
type CallContext struct {
	SessionID string `json:"sessionId"`
	ProjectID string `json:"projectId,omitempty"`
	AccountID string `json:"accountId"`
	Step      string `json:"step"`
}

// SearchArgs carries the search inputs inside a plugin request.
type SearchArgs struct {
	Query   string `json:"query"`
	Context string `json:"context,omitempty"`
}

// PluginRequest is the envelope POSTed to /search_docs.
type PluginRequest struct {
	Context CallContext `json:"context"`
	Args    SearchArgs  `json:"args"`
}

// PluginResponse is the envelope returned to the caller. Domain failures are
// reported through OK and Error, never through the HTTP status code.
type PluginResponse struct {
	OK         bool     `json:"ok"`
	TokensUsed int      `json:"tokensUsed"`
	Artifacts  []string `json:"artifacts"`
	Result     string   `json:"result"`
	Error      string   `json:"error,omitempty"`
}
