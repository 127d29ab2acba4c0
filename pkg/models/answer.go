package models

// Answer is the fixed structured shape every documentation search resolves to,
// whether it came from the remote agent, the cache, or a fallback path.
type Answer struct {
	Signature  string   `json:"signature"`
	Parameters string   `json:"parameters"`
	Examples   string   `json:"examples"`
	Notes      string   `json:"notes"`
	Sources    []string `json:"sources"`
}

// SearchResult is the payload serialized into the plugin response's result field.
type SearchResult struct {
	Query   string `json:"query"`
	Context string `json:"context,omitempty"`
	Answer  Answer `json:"answer"`
}
