package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeminiTestClient(t *testing.T, status int, reply string, body *map[string]any) *GeminiClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-test:generateContent"), r.URL.Path)
		assert.Equal(t, "gm-test", r.Header.Get("X-Goog-Api-Key"))
		if body != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(body))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)

	client, err := NewGeminiClient(context.Background(), "gm-test", srv.URL, srv.Client())
	require.NoError(t, err)
	return client
}

var geminiRequest = ChatRequest{
	Model: "gemini-test",
	Messages: []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "question"},
	},
	Sampling: DefaultSampling(),
}

// TestGeminiClientChat проверяет ответ и передачу персоны в systemInstruction.
func TestGeminiClientChat(t *testing.T) {
	var body map[string]any
	client := newGeminiTestClient(t, http.StatusOK, `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "Start with a budget."}]}, "finishReason": "STOP"}]
	}`, &body)

	text, err := client.Chat(context.Background(), geminiRequest)
	require.NoError(t, err)
	assert.Equal(t, "Start with a budget.", text)

	instruction, ok := body["systemInstruction"].(map[string]any)
	require.True(t, ok, "systemInstruction: %v", body["systemInstruction"])
	parts, ok := instruction["parts"].([]any)
	require.True(t, ok)
	require.Len(t, parts, 1)
	assert.Equal(t, "persona", parts[0].(map[string]any)["text"])

	contents, ok := body["contents"].([]any)
	require.True(t, ok)
	assert.Len(t, contents, 1)
}

// TestGeminiClientStatusError проверяет перевод 5xx в StatusError.
func TestGeminiClientStatusError(t *testing.T) {
	client := newGeminiTestClient(t, http.StatusInternalServerError, `{"error": {"code": 500, "message": "backend unavailable", "status": "INTERNAL"}}`, nil)

	_, err := client.Chat(context.Background(), geminiRequest)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "got %v", err)
	assert.Equal(t, "gemini", statusErr.Provider)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "backend unavailable", statusErr.Message)
}

// TestGeminiClientEmpty проверяет ответ без текста.
func TestGeminiClientEmpty(t *testing.T) {
	client := newGeminiTestClient(t, http.StatusOK, `{"candidates": [{"content": {"role": "model", "parts": [{"text": ""}]}}]}`, nil)

	_, err := client.Chat(context.Background(), geminiRequest)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
