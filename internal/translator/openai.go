package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/treeglot/treeglot/internal/shared"
)

const systemPromptTemplate = `You are a professional translator specializing in software and product localization. You are translating UI strings from %s to %s.

IMPORTANT TRANSLATION PRINCIPLES:
- Translate for NATURALNESS and FLUENCY in the target language, not word-for-word
- Preserve all format specifiers and placeholders exactly as-is (%%s, %%d, {{name}}, {name})
- Preserve leading/trailing whitespace, newlines, and punctuation patterns
- Keep brand names and proper nouns unchanged

TECHNICAL REQUIREMENTS:
- Return ONLY a JSON array of translated strings, one for each numbered input entry, in the same order
- Return ONLY the JSON array, no explanations or markdown code blocks`

// Client is a Translator backed by an OpenAI-compatible chat completions
// endpoint.
//
// Authentication is either a static bearer key or, when a token URL is
// configured, the OAuth2 client credentials flow. Extra provider headers
// captured via setup can be replayed on every request.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	headers    map[string]string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a Client from translator configuration.
//
// When httpClient is nil one is built from the config, wrapping the OAuth2
// client credentials transport if a token URL is set.
func NewClient(config shared.TranslatorConfig, httpClient *http.Client, logger *log.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: translator base_url is required", shared.ErrInvalidConfig)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: translator model is required", shared.ErrInvalidConfig)
	}

	if httpClient == nil {
		if config.OAuthTokenURL != "" {
			oauth := clientcredentials.Config{
				ClientID:     config.OAuthClientID,
				ClientSecret: config.OAuthClientSecret,
				TokenURL:     config.OAuthTokenURL,
			}
			httpClient = oauth.Client(context.Background())
			httpClient.Timeout = config.Timeout()
		} else {
			httpClient = &http.Client{Timeout: config.Timeout()}
		}
	}

	headers := map[string]string{}
	if config.HeadersPath != "" {
		raw, err := os.ReadFile(config.HeadersPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read translator headers: %w", err)
		}
		headers = shared.ParseHeadersRaw(string(raw))
	}

	var limiter *rate.Limiter
	if config.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSec), 1)
	}

	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		model:      config.Model,
		maxRetries: maxRetries,
		headers:    headers,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// Name returns the provider identifier for logging.
func (c *Client) Name() string { return "openai" }

// Translate sends one chat completion request for the whole batch and returns
// the translations in item order.
func (c *Client) Translate(ctx context.Context, req Request) ([]string, error) {
	if len(req.Items) == 0 {
		return nil, nil
	}

	body, err := c.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build translation request: %w", err)
	}

	content, err := c.send(ctx, body)
	if err != nil {
		return nil, err
	}

	translations, err := parseTranslations(content, len(req.Items))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTranslatorRequest, err)
	}

	return translations, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) buildRequest(req Request) ([]byte, error) {
	var user strings.Builder
	user.WriteString("Translate these entries:\n\n")
	for i, item := range req.Items {
		fmt.Fprintf(&user, "%d. %s\n", i+1, item.Text)
	}
	if req.Context != "" {
		fmt.Fprintf(&user, "\nAdditional context: %s\n", req.Context)
	}
	fmt.Fprintf(&user, "\nReturn a JSON array with exactly %d strings.", len(req.Items))

	system := fmt.Sprintf(systemPromptTemplate, req.SourceLang, req.TargetLang)

	return json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user.String()},
		},
		Temperature: 0.3,
		Stream:      false,
	})
}

// send posts the request with rate limiting and bounded retries.
// 429 responses honor Retry-After; transport errors and 5xx responses back
// off exponentially.
func (c *Client) send(ctx context.Context, body []byte) (string, error) {
	endpoint := c.baseURL + "/chat/completions"

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if err := c.backoff(ctx, attempt); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("%w: %v", shared.ErrTranslatorUnavailable, err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			delay := retryAfter(resp, attempt)
			c.logger.Warn("rate limited by provider", "attempt", attempt+1, "wait", delay)
			if attempt < c.maxRetries {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return "", fmt.Errorf("%w after %d retries", shared.ErrRateLimited, c.maxRetries)

		case resp.StatusCode >= 500:
			c.logger.Warn("provider returned server error", "status", resp.StatusCode, "attempt", attempt+1)
			if attempt < c.maxRetries {
				if err := c.backoff(ctx, attempt); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("%w: status %d", shared.ErrTranslatorUnavailable, resp.StatusCode)

		case resp.StatusCode != http.StatusOK:
			return "", fmt.Errorf("%w: status %d: %s", shared.ErrTranslatorRequest, resp.StatusCode, truncate(string(respBody), 300))
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", fmt.Errorf("%w: invalid response JSON: %v", shared.ErrTranslatorRequest, err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("%w: %s", shared.ErrTranslatorRequest, parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("%w: response contained no choices", shared.ErrTranslatorRequest)
		}

		return parsed.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("%w: exhausted %d retries", shared.ErrTranslatorUnavailable, c.maxRetries)
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func retryAfter(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseTranslations extracts a JSON array of strings from the model response.
// Markdown fences and surrounding prose are tolerated; a count mismatch is an
// error because translations map to items by position.
func parseTranslations(content string, expected int) ([]string, error) {
	content = strings.TrimSpace(content)

	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	startIdx := strings.Index(content, "[")
	endIdx := strings.LastIndex(content, "]")
	if startIdx >= 0 && endIdx > startIdx {
		content = content[startIdx : endIdx+1]
	}

	var translations []string
	if err := json.Unmarshal([]byte(content), &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation response as JSON array: %v\nResponse: %s", err, truncate(content, 300))
	}

	if len(translations) != expected {
		return nil, fmt.Errorf("got %d translations, expected %d", len(translations), expected)
	}

	return translations, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
