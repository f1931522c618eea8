package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/treeglot/treeglot/internal/shared"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	config := shared.TranslatorConfig{
		BaseURL:    url,
		APIKey:     "test-key",
		Model:      "test-model",
		MaxRetries: 2,
	}
	client, err := NewClient(config, nil, shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()

	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("failed to encode response: %v", err)
	}
}

func testRequest() Request {
	return Request{
		SourceLang: "en",
		TargetLang: "fr",
		Items: []Item{
			{Path: "greeting.hello", Text: "hello"},
			{Path: "greeting.bye", Text: "goodbye"},
		},
	}
}

func TestNewClient(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewClient(shared.TranslatorConfig{Model: "m"}, nil, shared.NewLogger(io.Discard))
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("requires model", func(t *testing.T) {
		_, err := NewClient(shared.TranslatorConfig{BaseURL: "https://x"}, nil, shared.NewLogger(io.Discard))
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestClientTranslate(t *testing.T) {
	t.Run("translates a batch in order", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")

			var req chatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			if req.Model != "test-model" {
				t.Errorf("model = %q, want test-model", req.Model)
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
				t.Errorf("expected system + user messages, got %+v", req.Messages)
			}

			chatReply(t, w, `["bonjour", "au revoir"]`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		translations, err := client.Translate(context.Background(), testRequest())
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}

		if len(translations) != 2 || translations[0] != "bonjour" || translations[1] != "au revoir" {
			t.Errorf("translations = %v", translations)
		}
		if gotAuth != "Bearer test-key" {
			t.Errorf("Authorization = %q", gotAuth)
		}
	})

	t.Run("strips markdown fences", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			chatReply(t, w, "```json\n[\"bonjour\", \"au revoir\"]\n```")
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		translations, err := client.Translate(context.Background(), testRequest())
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if translations[0] != "bonjour" {
			t.Errorf("translations = %v", translations)
		}
	})

	t.Run("count mismatch is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			chatReply(t, w, `["bonjour"]`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		if _, err := client.Translate(context.Background(), testRequest()); !errors.Is(err, shared.ErrTranslatorRequest) {
			t.Errorf("expected ErrTranslatorRequest, got %v", err)
		}
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		client := newTestClient(t, "https://unused.example.com")
		translations, err := client.Translate(context.Background(), Request{SourceLang: "en", TargetLang: "fr"})
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if translations != nil {
			t.Errorf("expected nil translations, got %v", translations)
		}
	})

	t.Run("retries 429 then succeeds", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			chatReply(t, w, `["bonjour", "au revoir"]`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		translations, err := client.Translate(context.Background(), testRequest())
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
		if translations[0] != "bonjour" {
			t.Errorf("translations = %v", translations)
		}
	})

	t.Run("exhausted 429 retries returns ErrRateLimited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		if _, err := client.Translate(context.Background(), testRequest()); !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("client error status does not retry", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error": {"message": "bad request"}}`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		if _, err := client.Translate(context.Background(), testRequest()); !errors.Is(err, shared.ErrTranslatorRequest) {
			t.Errorf("expected ErrTranslatorRequest, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call for a 4xx, got %d", calls)
		}
	})

	t.Run("API error body is surfaced", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"error": {"message": "model overloaded"}}`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.Translate(context.Background(), testRequest())
		if err == nil || !errors.Is(err, shared.ErrTranslatorRequest) {
			t.Errorf("expected ErrTranslatorRequest, got %v", err)
		}
	})
}

func TestParseTranslations(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected int
		want     []string
		wantErr  bool
	}{
		{"plain array", `["a", "b"]`, 2, []string{"a", "b"}, false},
		{"fenced array", "```json\n[\"a\"]\n```", 1, []string{"a"}, false},
		{"array inside prose", `Here you go: ["a", "b"] hope that helps`, 2, []string{"a", "b"}, false},
		{"count mismatch", `["a"]`, 2, nil, true},
		{"not json", `sorry, I cannot translate`, 1, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTranslations(tt.content, tt.expected)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTranslations() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPlaceholderOnly(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"{{count}}", true},
		{"{name}", true},
		{"%s", true},
		{"%d %s", true},
		{"<br/>", true},
		{"{{a}} {{b}}", true},
		{"hello", false},
		{"{{count}} items", false},
		{"hello %s", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := PlaceholderOnly(tt.text); got != tt.want {
				t.Errorf("PlaceholderOnly(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
