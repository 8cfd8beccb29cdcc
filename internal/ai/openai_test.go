package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenAIClientChat проверяет вызов совместимого chat completions API.
func TestOpenAIClientChat(t *testing.T) {
	var body map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4-0125-preview",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Automate your savings."}}]
		}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", srv.URL, srv.Client())
	text, err := client.Chat(context.Background(), ChatRequest{
		Model: "gpt-4-0125-preview",
		Messages: []Message{
			{Role: RoleSystem, Content: "persona"},
			{Role: RoleUser, Content: "question"},
		},
		Sampling: DefaultSampling(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Automate your savings.", text)
	assert.Equal(t, "gpt-4-0125-preview", body["model"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
	assert.EqualValues(t, 150, body["max_tokens"])
}

// TestOpenAIClientStatusError проверяет перевод ошибки SDK в StatusError.
func TestOpenAIClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit","code":"rate_limit"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", srv.URL, srv.Client())
	_, err := client.Chat(context.Background(), ChatRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}
