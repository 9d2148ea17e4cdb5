// Package chat talks to one OpenAI-compatible chat completion endpoint.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tablechat/tablechat/internal/observability"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api"
	DefaultModel   = "meta-llama/llama-3.3-8b-instruct:free"
	DefaultTimeout = 30 * time.Second

	// APIKeyEnv is consulted when Config.APIKey is empty.
	APIKeyEnv = "OPENROUTER_API_KEY"
)

// UnexpectedResponseText replaces the reply when the endpoint answers 2xx
// without a choices[0].message.content field.
const UnexpectedResponseText = "Unexpected API response structure."

var (
	ErrAPIKeyRequired     = errors.New("chat api key is required")
	ErrUnexpectedResponse = errors.New("unexpected chat api response structure")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TransportError covers everything between sending the request and decoding
// the body: connection failures, timeouts, non-2xx statuses and invalid JSON.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv(APIKeyEnv))
	}
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Ask never fails: transport and shape failures come back as sentinel text
// that the caller stores as the assistant turn.
func (c *Client) Ask(ctx context.Context, messages []Message) string {
	start := time.Now()
	reply, err := c.Complete(ctx, messages)
	if err == nil {
		observability.ObserveChatCompletion(observability.OutcomeOK, time.Since(start))
		return reply
	}

	var transportErr *TransportError
	switch {
	case errors.As(err, &transportErr):
		observability.ObserveChatCompletion(observability.OutcomeTransportError, time.Since(start))
		c.logger.WarnContext(ctx, "chat_completion_failed",
			slog.String("kind", observability.OutcomeTransportError),
			slog.Int("status", transportErr.StatusCode),
			slog.String("error", err.Error()),
		)
		return fmt.Sprintf("Error communicating with chat API: %v", err)
	default:
		observability.ObserveChatCompletion(observability.OutcomeShapeError, time.Since(start))
		c.logger.WarnContext(ctx, "chat_completion_failed",
			slog.String("kind", observability.OutcomeShapeError),
			slog.String("error", err.Error()),
		)
		return UnexpectedResponseText
	}
}

// Complete sends the transcript and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(buildPayload(c.model, messages))
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read chat response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, truncate(string(rawRespBody), 512)),
		}
	}

	var parsed struct {
		Choices []struct {
			Message *struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return "", fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		return "", &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode chat completion response: %w", err)}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil || parsed.Choices[0].Message.Content == nil {
		return "", ErrUnexpectedResponse
	}
	return *parsed.Choices[0].Message.Content, nil
}

func buildPayload(model string, messages []Message) map[string]any {
	if messages == nil {
		messages = []Message{}
	}
	return map[string]any{
		"model":             model,
		"messages":          messages,
		"temperature":       0.2,
		"max_tokens":        1024,
		"top_p":             0.95,
		"frequency_penalty": 0,
		"presence_penalty":  0,
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
