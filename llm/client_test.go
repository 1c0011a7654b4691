package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(nil, config.LLMConfig{
		BaseURL: ts.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
}

func TestComplete(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq chatRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `[{"title": "x"}]`}},
			},
		})
	})

	out, err := c.Complete(context.Background(), "extract the products")
	require.NoError(t, err)
	assert.Equal(t, `[{"title": "x"}]`, out)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "test-model", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
	assert.Equal(t, "extract the products", gotReq.Messages[0].Content)
	assert.Zero(t, gotReq.Temperature)
}

func TestComplete_APIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit"},
		})
	})

	_, err := c.Complete(context.Background(), "p")
	require.Error(t, err)

	var herr *models.HarvestError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, models.ErrCodeLLMFailure, herr.Code)
	assert.Contains(t, herr.Message, "rate limited")
}

func TestComplete_NoChoices(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := c.Complete(context.Background(), "p")
	require.Error(t, err)

	var herr *models.HarvestError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, models.ErrCodeLLMFailure, herr.Code)
}

func TestNoop(t *testing.T) {
	_, err := Noop{}.Complete(context.Background(), "p")
	require.Error(t, err)

	var herr *models.HarvestError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, models.ErrCodeLLMFailure, herr.Code)
}
