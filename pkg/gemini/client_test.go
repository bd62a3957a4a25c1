package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/decision-cli/internal/resilience"
)

func newTestClient(t *testing.T, url string) Client {
	t.Helper()
	c, err := NewClient(context.Background(), "test-key", WithBaseURL(url))
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(context.Background(), "")
	assert.True(t, errors.Is(err, resilience.ErrMissingCredentials))
}

func TestGenerateJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash:generateContent")

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		gen := req["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", gen["responseMimeType"])
		assert.NotNil(t, req["systemInstruction"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": `[{"query":"a"`}, {"text": `}]`}},
				},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{
				"promptTokenCount":     210,
				"candidatesTokenCount": 55,
			},
		})
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	resp, err := c.GenerateJSON(context.Background(), GenerateRequest{
		Model:       "gemini-2.5-flash",
		System:      "Respond with JSON only.",
		Prompt:      "Plan queries",
		Temperature: Float32(0.2),
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"query":"a"}]`, resp.Text)
	assert.Equal(t, 210, resp.InputTokens)
	assert.Equal(t, 55, resp.OutputTokens)
	assert.Equal(t, "STOP", resp.FinishReason)
}

func TestGenerateJSON_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"forbidden", http.StatusForbidden, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"code": tt.status, "message": "nope", "status": "ERR"},
				})
			}))
			defer ts.Close()

			c := newTestClient(t, ts.URL)
			_, err := c.GenerateJSON(context.Background(), GenerateRequest{Model: "gemini-2.5-flash", Prompt: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			assert.Equal(t, !tt.transient, resilience.IsPermanent(err))
		})
	}
}

func TestGenerateJSON_NoCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.GenerateJSON(context.Background(), GenerateRequest{Model: "gemini-2.5-flash", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}
