// Package agentexec runs agent-job prompts against an OpenAI-compatible
// chat completions API and returns the response text as the job output.
package agentexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cronbox/cronbox/internal/cron"
)

// DefaultBaseURL is used when a job carries no base URL of its own.
const DefaultBaseURL = "https://api.openai.com/v1"

// Sentinel errors for callers that want to distinguish failure modes.
var (
	ErrRateLimit      = errors.New("agentexec: rate limited")
	ErrProviderDown   = errors.New("agentexec: provider unavailable")
	ErrAuthentication = errors.New("agentexec: authentication failed")
)

// Defaults supply values for agent jobs that omit them.
type Defaults struct {
	Model        string
	APIKey       string
	BaseURL      string
	SystemPrompt string
}

// Executor implements cron.AgentExecutor over HTTP.
type Executor struct {
	defaults Defaults
	client   *http.Client
	logger   *slog.Logger
}

var _ cron.AgentExecutor = (*Executor)(nil)

// New creates an Executor. A nil client selects http.DefaultClient;
// request deadlines come from the caller's context, not the client.
func New(defaults Defaults, client *http.Client, logger *slog.Logger) *Executor {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{defaults: defaults, client: client, logger: logger}
}

// openAI wire types for JSON serialization.

type oaiRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []struct {
		Message      oaiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
}

// Execute implements cron.AgentExecutor. Job-level config wins over
// the executor defaults field by field.
func (e *Executor) Execute(ctx context.Context, cfg cron.AgentJobConfig, prompt, workingDir string) (string, error) {
	model := pick(cfg.Model, e.defaults.Model)
	if model == "" {
		return "", errors.New("agentexec: no model configured")
	}
	apiKey := pick(cfg.APIKey, e.defaults.APIKey)
	baseURL := strings.TrimSuffix(pick(cfg.BaseURL, pick(e.defaults.BaseURL, DefaultBaseURL)), "/")

	messages := make([]oaiMessage, 0, 2)
	if system := pick(cfg.SystemPrompt, e.defaults.SystemPrompt); system != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: system})
	}
	user := prompt
	if workingDir != "" {
		user = fmt.Sprintf("Working directory: %s\n\n%s", workingDir, prompt)
	}
	messages = append(messages, oaiMessage{Role: "user", Content: user})

	payload, err := json.Marshal(oaiRequest{Model: model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("agentexec: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("agentexec: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		// Caller cancellation/timeout is not a provider failure.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %w", ErrProviderDown, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", handleErrorResponse(resp)
	}

	var parsed oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("agentexec: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("agentexec: response has no choices")
	}

	choice := parsed.Choices[0]
	e.logger.Debug("agentexec: completion finished", "model", model, "finish_reason", choice.FinishReason)
	return choice.Message.Content, nil
}

// maxErrorBodySize caps how much of an error response body is read.
const maxErrorBodySize = 4096

// handleErrorResponse maps HTTP error status codes to sentinel errors.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimit, body)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", ErrProviderDown, resp.StatusCode, body)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", ErrAuthentication, resp.StatusCode, body)
	default:
		return fmt.Errorf("agentexec: unexpected status %d: %s", resp.StatusCode, body)
	}
}

func pick(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
