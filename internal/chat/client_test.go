package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(Config{BaseURL: baseURL, APIKey: "test-key", Model: "test-model", Timeout: timeout})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	if _, err := NewClient(Config{}); !errors.Is(err, ErrAPIKeyRequired) {
		t.Fatalf("NewClient() error = %v, want ErrAPIKeyRequired", err)
	}
}

func TestNewClientFallsBackToEnvironmentKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "env-key")
	client, err := NewClient(Config{})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.apiKey != "env-key" || client.baseURL != DefaultBaseURL || client.Model() != DefaultModel {
		t.Fatalf("client = %+v", client)
	}
	if client.client.Timeout != DefaultTimeout {
		t.Fatalf("timeout = %s", client.client.Timeout)
	}
}

func TestAskSendsTranscriptAndReturnsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var payload struct {
			Model       string    `json:"model"`
			Messages    []Message `json:"messages"`
			Temperature float64   `json:"temperature"`
			MaxTokens   int       `json:"max_tokens"`
			TopP        float64   `json:"top_p"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Model != "test-model" || payload.Temperature != 0.2 || payload.MaxTokens != 1024 || payload.TopP != 0.95 {
			t.Errorf("payload = %+v", payload)
		}
		if len(payload.Messages) != 2 || payload.Messages[1].Role != RoleUser || payload.Messages[1].Content != "Hello" {
			t.Errorf("messages = %+v", payload.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Revenue grew 12%."}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/", time.Second)
	got := client.Ask(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are an intelligent data assistant."},
		{Role: RoleUser, Content: "Hello"},
	})
	if got != "Revenue grew 12%." {
		t.Fatalf("Ask() = %q", got)
	}
}

func TestAskMapsNon2xxToTransportSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, time.Second)
	got := client.Ask(context.Background(), nil)
	if !strings.HasPrefix(got, "Error communicating with chat API:") || !strings.Contains(got, "status=429") {
		t.Fatalf("Ask() = %q", got)
	}

	_, err := client.Complete(context.Background(), nil)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("Complete() error = %#v", err)
	}
}

func TestAskMapsMissingFieldsToShapeSentinel(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"choices":[]}`,
		`{"choices":[{}]}`,
		`{"choices":[{"message":{"role":"assistant"}}]}`,
		`{"choices":{}}`,
		`{"choices":[{"message":"hi"}]}`,
		`{"choices":[{"message":{"content":5}}]}`,
		`[]`,
	}
	for _, body := range bodies {
		body := body
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		client := newTestClient(t, server.URL, time.Second)
		if got := client.Ask(context.Background(), nil); got != UnexpectedResponseText {
			t.Fatalf("Ask() for body %s = %q", body, got)
		}
		if _, err := client.Complete(context.Background(), nil); !errors.Is(err, ErrUnexpectedResponse) {
			t.Fatalf("Complete() for body %s error = %v", body, err)
		}
		server.Close()
	}
}

func TestAskMapsInvalidJSONToTransportSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer server.Close()

	got := newTestClient(t, server.URL, time.Second).Ask(context.Background(), nil)
	if !strings.Contains(got, "decode chat completion response") {
		t.Fatalf("Ask() = %q", got)
	}
}

func TestAskReturnsErrorTextOnTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	got := newTestClient(t, server.URL, 20*time.Millisecond).Ask(context.Background(), []Message{{Role: RoleUser, Content: "Hello"}})
	if !strings.HasPrefix(got, "Error communicating with chat API:") {
		t.Fatalf("Ask() = %q", got)
	}
}

func TestAskReturnsErrorTextWhenServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	got := newTestClient(t, url, time.Second).Ask(context.Background(), nil)
	if !strings.HasPrefix(got, "Error communicating with chat API:") {
		t.Fatalf("Ask() = %q", got)
	}
}
