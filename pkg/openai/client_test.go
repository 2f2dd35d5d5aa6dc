package openai

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
)

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4.1-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19},
	})
}

func TestChat(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		writeCompletion(w, "Acme is great")
	}))
	defer ts.Close()

	temp := 0.1
	resp, err := NewClient("test-key", ts.URL).Chat(context.Background(), ChatRequest{
		Model:       "gpt-4.1-mini",
		User:        "Who is best?",
		Temperature: &temp,
		MaxTokens:   500,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme is great", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, int64(12), resp.Usage.PromptTokens)
	assert.Equal(t, int64(7), resp.Usage.CompletionTokens)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.InDelta(t, 0.1, body["temperature"], 1e-9)
	assert.Nil(t, body["response_format"])
}

func TestChat_WithSchema(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		writeCompletion(w, `{"name":"Acme"}`)
	}))
	defer ts.Close()

	_, err := NewClient("k", ts.URL).Chat(context.Background(), ChatRequest{
		Model:  "gpt-4.1-mini",
		System: "extract",
		User:   "page",
		Schema: &Schema{
			Name:        "company_info",
			Description: "Company profile",
			Definition:  map[string]any{"type": "object"},
		},
	})
	require.NoError(t, err)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	rf := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
	js := rf["json_schema"].(map[string]any)
	assert.Equal(t, "company_info", js["name"])
	assert.Equal(t, true, js["strict"])
}

func TestChat_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer ts.Close()

	_, err := NewClient("k", ts.URL).Chat(context.Background(), ChatRequest{Model: "gpt-4.1-mini", User: "x"})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate_limit_exceeded", apiErr.Code)
}

func TestChat_NoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer ts.Close()

	_, err := NewClient("k", ts.URL).Chat(context.Background(), ChatRequest{Model: "m", User: "x"})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestUsage_EstimateCost(t *testing.T) {
	u := Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}
	assert.InDelta(t, 2.0, u.EstimateCost("gpt-4.1-mini"), 1e-9)
	assert.Equal(t, 0.0, u.EstimateCost("nope"))
}
