package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/parametric-ai/searchdocs/pkg/models"
)

// Run terminal statuses. Anything other than completed is a failure outcome
// for a search; requires_action cannot occur for a file-search-only agent but
// is treated as terminal so a misconfigured backend cannot hang a request.
const (
	RunStatusCompleted      = "completed"
	RunStatusFailed         = "failed"
	RunStatusCancelled      = "cancelled"
	RunStatusExpired        = "expired"
	RunStatusIncomplete     = "incomplete"
	RunStatusRequiresAction = "requires_action"
)

var terminalStatuses = map[string]bool{
	RunStatusCompleted:      true,
	RunStatusFailed:         true,
	RunStatusCancelled:      true,
	RunStatusExpired:        true,
	RunStatusIncomplete:     true,
	RunStatusRequiresAction: true,
}

// Client is a minimal REST client for an OpenAI-compatible assistants backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Client for the given backend base URL and credential.
func NewClient(baseURL, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

// Assistant is a named remote agent.
type Assistant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Instructions string `json:"instructions,omitempty"`
}

// Tool declares a capability attached to an assistant.
type Tool struct {
	Type string `json:"type"`
}

// FileSearchResources binds a file-search tool to vector stores.
type FileSearchResources struct {
	VectorStoreIDs []string `json:"vector_store_ids"`
}

// ToolResources holds per-tool resource bindings.
type ToolResources struct {
	FileSearch *FileSearchResources `json:"file_search,omitempty"`
}

// CreateAssistantRequest is the payload for creating a remote agent.
type CreateAssistantRequest struct {
	Name          string         `json:"name"`
	Model         string         `json:"model"`
	Instructions  string         `json:"instructions"`
	Tools         []Tool         `json:"tools"`
	ToolResources *ToolResources `json:"tool_resources,omitempty"`
}

// ThreadMessage seeds a conversation with a single turn.
type ThreadMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Thread is an ephemeral remote conversation.
type Thread struct {
	ID string `json:"id"`
}

// RunError carries the backend's failure detail for a non-completed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is a single execution of an assistant against a thread.
type Run struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Usage     *models.Usage `json:"usage,omitempty"`
	LastError *RunError     `json:"last_error,omitempty"`
}

// Terminal reports whether the run has reached a terminal status.
func (r *Run) Terminal() bool {
	return terminalStatuses[r.Status]
}

// MessageText is the textual body of a message content part.
type MessageText struct {
	Value string `json:"value"`
}

// MessageContent is one content part of a message.
type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

// Message is a single turn in a thread.
type Message struct {
	ID      string           `json:"id"`
	Role    string           `json:"role"`
	Content []MessageContent `json:"content"`
}

type assistantList struct {
	Data []Assistant `json:"data"`
}

type messageList struct {
	Data []Message `json:"data"`
}

type createThreadRequest struct {
	Messages []ThreadMessage `json:"messages"`
}

type createRunRequest struct {
	AssistantID string `json:"assistant_id"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ListAssistants returns the remote agents visible to the credential.
func (c *Client) ListAssistants(ctx context.Context) ([]Assistant, error) {
	var list assistantList
	if err := c.do(ctx, http.MethodGet, "/assistants?limit=100", nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// CreateAssistant creates a remote agent.
func (c *Client) CreateAssistant(ctx context.Context, req CreateAssistantRequest) (*Assistant, error) {
	var a Assistant
	if err := c.do(ctx, http.MethodPost, "/assistants", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateThread creates a conversation seeded with the given messages.
func (c *Client) CreateThread(ctx context.Context, messages []ThreadMessage) (*Thread, error) {
	var t Thread
	if err := c.do(ctx, http.MethodPost, "/threads", createThreadRequest{Messages: messages}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateRun starts the assistant on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	var r Run
	path := fmt.Sprintf("/threads/%s/runs", threadID)
	if err := c.do(ctx, http.MethodPost, path, createRunRequest{AssistantID: assistantID}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var r Run
	path := fmt.Sprintf("/threads/%s/runs/%s", threadID, runID)
	if err := c.do(ctx, http.MethodGet, path, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// WaitForRun polls a run until it reaches a terminal status. There is no
// local deadline beyond ctx; the run lifecycle is bounded by the backend.
func (c *Client) WaitForRun(ctx context.Context, threadID, runID string) (*Run, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	for {
		run, err := c.GetRun(ctx, threadID, runID)
		if err != nil {
			return nil, err
		}
		if run.Terminal() {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.NextBackOff()):
		}
	}
}

// ListMessages returns the messages of a thread, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	var list messageList
	path := fmt.Sprintf("/threads/%s/messages?order=desc", threadID)
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// DeleteThread removes a conversation.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	return c.do(ctx, http.MethodDelete, "/threads/"+threadID, nil, nil)
}

// do sends one request to the backend and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Debug().Int("status", resp.StatusCode).Str("method", method).Str("path", path).Msg("backend error response")
		var apiErr apiError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("backend %s %s: %s", method, path, apiErr.Error.Message)
		}
		return fmt.Errorf("backend %s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
