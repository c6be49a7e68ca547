package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codewarden/internal/config"
)

// countingLimiter stands in for *ratelimit.Limiter, counting every permit
// acquired so tests can assert retries consume one per attempt.
type countingLimiter struct {
	acquired int
	err      error
}

func (l *countingLimiter) Acquire(_ context.Context) error {
	l.acquired++
	if l.err != nil {
		return l.err
	}
	return nil
}

func newTestCaller(t *testing.T, handler http.HandlerFunc, rl limiter) (*Caller, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	caller := NewCaller(config.LLMConfig{BaseURL: server.URL}, rl, slog.Default())
	return caller, server.Close
}

func TestCall_AcquiresOnePermitPerAttemptAcrossRetries(t *testing.T) {
	attempts := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Content: "ok"}}},
		})
	}
	rl := &countingLimiter{}
	caller, closeServer := newTestCaller(t, handler, rl)
	defer closeServer()

	result, err := call(t, caller)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, rl.acquired, "every retry attempt must acquire its own permit")
}

func TestCall_StopsRetryingWhenLimiterRefuses(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not issue an HTTP request when the limiter refuses a permit")
	}
	rl := &countingLimiter{err: errors.New("limiter closed")}
	caller, closeServer := newTestCaller(t, handler, rl)
	defer closeServer()

	_, err := call(t, caller)
	require.Error(t, err)
	assert.Equal(t, 1, rl.acquired)
}

func call(t *testing.T, caller *Caller) (Result, error) {
	t.Helper()
	return caller.Call(context.Background(), Request{
		Model:        "test-model",
		SystemPrompt: "system",
		UserPrompt:   "user",
	})
}
