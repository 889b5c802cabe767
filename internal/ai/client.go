// Package ai wraps the hosted model endpoint behind a small interface.
// The wire protocol is the OpenAI-compatible chat completions API; callers
// never see wire types, only the assistant's raw text. Parsing and validating
// that text is the caller's responsibility.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vamo-backend/internal/config"
)

// ChatMessage is one turn of model input.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client produces a completion for a system prompt plus message history.
type Client interface {
	Complete(ctx context.Context, system string, messages []ChatMessage) (string, error)
}

// ErrEmptyCompletion is returned when the model responds with no content.
var ErrEmptyCompletion = errors.New("model returned empty completion")

// HTTPClient talks to an OpenAI-compatible chat completions endpoint.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPClient creates a client from configuration.
func NewHTTPClient(cfg *config.AIConfig, logger zerolog.Logger) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("ai api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "ai_client").Logger(),
	}, nil
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends the system prompt and history and returns the raw assistant
// text. The HTTP client timeout bounds the call; a timeout surfaces as an
// ordinary error for the caller's fallback policy.
func (c *HTTPClient) Complete(ctx context.Context, system string, messages []ChatMessage) (string, error) {
	wire := make([]ChatMessage, 0, len(messages)+1)
	if system != "" {
		wire = append(wire, ChatMessage{Role: "system", Content: system})
	}
	wire = append(wire, messages...)

	reqBody := completionRequest{
		Model:       c.model,
		Messages:    wire,
		Temperature: 0.4,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("model endpoint returned non-200")
		return "", fmt.Errorf("model endpoint returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("model error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}

	c.logger.Debug().
		Dur("elapsed", time.Since(start)).
		Int("history_len", len(messages)).
		Msg("completion succeeded")

	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
