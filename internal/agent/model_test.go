package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelExecutor_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		var req modelRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Messages[0].Content, "Agent role: planner")
		assert.Contains(t, req.Messages[0].Content, "refactor the billing module")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]string{{"type": "text", "text": "plan produced"}},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	e, err := NewModelExecutor("test-key", server.URL, "")
	require.NoError(t, err)

	result, err := e.Execute(context.Background(), ExecContext{
		Phase:  "planning",
		Agent:  "planner",
		Intake: "refactor the billing module",
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "plan produced", result.Output)
}

func TestModelExecutor_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "rate_limit_error", "message": "rate limit exceeded"},
		})
	}))
	defer server.Close()

	e, err := NewModelExecutor("test-key", server.URL, "")
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), ExecContext{Phase: "planning", Agent: "planner"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestModelExecutor_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"content": []any{}})
	}))
	defer server.Close()

	e, err := NewModelExecutor("test-key", server.URL, "")
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), ExecContext{Agent: "planner"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestNewModelExecutor_RequiresKey(t *testing.T) {
	_, err := NewModelExecutor("", "", "")
	require.Error(t, err)
}
