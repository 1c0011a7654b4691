package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

// Completer is the generative-text capability consumed by the fallback
// extractor. Deployments without a completion service wire Noop instead.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client is a lightweight OpenAI-compatible chat-completion client.
type Client struct {
	httpClient *http.Client
	cfg        config.LLMConfig
}

// NewClient creates a new completion client. Pass nil to use a default
// http.Client with the configured timeout.
func NewClient(httpClient *http.Client, cfg config.LLMConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{httpClient: httpClient, cfg: cfg}
}

// chatRequest is the chat completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the minimal chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatErrorResponse captures an API error from the provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends the prompt as a single user message and returns the raw
// completion text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", models.NewHarvestError(models.ErrCodeLLMFailure, "completion request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewHarvestError(models.ErrCodeLLMFailure, "failed to read completion response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatErrorResponse
		msg := "completion API error"
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return "", models.NewHarvestError(models.ErrCodeLLMFailure,
			fmt.Sprintf("completion API returned %d: %s", resp.StatusCode, msg), nil)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", models.NewHarvestError(models.ErrCodeLLMFailure, "failed to parse completion response", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", models.NewHarvestError(models.ErrCodeLLMFailure, "completion returned no choices", nil)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Noop is a Completer that always reports no extraction. It is wired when
// no completion service is configured.
type Noop struct{}

// Complete always fails with LLM_FAILURE so callers fall through to their
// own last-resort handling.
func (Noop) Complete(ctx context.Context, prompt string) (string, error) {
	return "", models.NewHarvestError(models.ErrCodeLLMFailure, "no completion service configured", nil)
}
