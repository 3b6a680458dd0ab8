package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, chatMessage{Role: "system", Content: "sys"}, req.Messages[0])
		assert.Equal(t, chatMessage{Role: "user", Content: "usr"}, req.Messages[1])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"1. all good"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI("sk-test", srv.URL+"/v1/", "gpt-test", time.Second)
	text, err := c.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "1. all good", text)
}

func TestOpenAIFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		errMsg string
	}{
		{name: "Should surface http status", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down"}}`, errMsg: "429"},
		{name: "Should surface api error", status: http.StatusOK, body: `{"error":{"message":"bad model"}}`, errMsg: "bad model"},
		{name: "Should reject no choices", status: http.StatusOK, body: `{"choices":[]}`, errMsg: "no completion"},
		{name: "Should reject malformed body", status: http.StatusOK, body: `{"choices":`, errMsg: "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewOpenAI("sk-test", srv.URL, "", time.Second)
			_, err := c.Complete(context.Background(), "s", "u")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestOpenAIRequiresKey(t *testing.T) {
	c := NewOpenAI("", "", "", time.Second)
	assert.Equal(t, "https://api.openai.com/v1", c.BaseURL)
	_, err := c.Complete(context.Background(), "s", "u")
	assert.Error(t, err)
}

func TestGeminiComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req, "systemInstruction")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Water is stable."}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), "test-key", "gemini-test", srv.URL)
	require.NoError(t, err)

	text, err := g.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "Water is stable.", text)
}

func TestGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "", "")
	assert.Error(t, err)
}
