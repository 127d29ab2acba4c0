package assistant

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultAgentName is the well-known name of the documentation search agent.
const DefaultAgentName = "documentation-search-agent"

// instructions pins the agent to the structured answer shape. The orchestrator
// still tolerates non-JSON replies with a fallback answer.
const instructions = `You are a documentation search assistant for a DSL library.
Search the attached knowledge store and answer questions about how to use the library.
Respond with a single JSON object only, no prose and no markdown, with these fields:
"signature" (string): the function or module signature,
"parameters" (string): parameter names, types and meanings,
"examples" (string): one or more usage examples,
"notes" (string): caveats or related functionality,
"sources" (array of strings): the documentation files the answer came from.
If you cannot find an answer, say so in "notes" and leave the other fields empty.`

// Registrar ensures exactly one remote documentation search agent exists for
// the configured vector store, creating it on first use and reusing it for the
// life of the process. The handle is rebound when the store id changes.
type Registrar struct {
	client *Client
	name   string
	model  string
	logger zerolog.Logger

	mu     sync.Mutex
	handle *handle
}

type handle struct {
	assistantID   string
	vectorStoreID string
}

// NewRegistrar creates a Registrar using the given agent name and model.
func NewRegistrar(client *Client, name, model string, logger zerolog.Logger) *Registrar {
	if name == "" {
		name = DefaultAgentName
	}
	return &Registrar{
		client: client,
		name:   name,
		model:  model,
		logger: logger,
	}
}

// Ensure returns the id of the agent bound to vectorStoreID. The mutex is
// held across the remote calls so concurrent first requests cannot create
// duplicate agents.
func (r *Registrar) Ensure(ctx context.Context, vectorStoreID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handle != nil && r.handle.vectorStoreID == vectorStoreID {
		return r.handle.assistantID, nil
	}

	existing, err := r.client.ListAssistants(ctx)
	if err != nil {
		return "", fmt.Errorf("list assistants: %w", err)
	}
	for _, a := range existing {
		if a.Name == r.name {
			r.logger.Debug().Str("assistant_id", a.ID).Msg("reusing existing search agent")
			r.handle = &handle{assistantID: a.ID, vectorStoreID: vectorStoreID}
			return a.ID, nil
		}
	}

	created, err := r.client.CreateAssistant(ctx, CreateAssistantRequest{
		Name:         r.name,
		Model:        r.model,
		Instructions: instructions,
		Tools:        []Tool{{Type: "file_search"}},
		ToolResources: &ToolResources{
			FileSearch: &FileSearchResources{VectorStoreIDs: []string{vectorStoreID}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create assistant: %w", err)
	}

	r.logger.Info().Str("assistant_id", created.ID).Str("vector_store_id", vectorStoreID).Msg("created search agent")
	r.handle = &handle{assistantID: created.ID, vectorStoreID: vectorStoreID}
	return created.ID, nil
}
