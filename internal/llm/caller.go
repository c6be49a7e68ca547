package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/sevigo/codewarden/internal/config"
	"github.com/sevigo/codewarden/internal/core"
)

const apiKeyEnvVar = "CODEWARDEN_LLM_API_KEY"

const (
	maxAttempts      = 3
	initialDelay     = 1 * time.Second
	maxDelay         = 30 * time.Second
	defaultTotalWait = 120 * time.Second
)

// Usage reports the token counts a single LLM call consumed.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	CachedInput  int64
}

// Request is a single rendered prompt submitted to the LLM.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
}

// Result is a successful LLMCaller.Call response.
type Result struct {
	Text  string
	Usage Usage
}

// limiter is the subset of *ratelimit.Limiter that Caller depends on,
// narrowed so tests can substitute a stub without a real token bucket.
type limiter interface {
	Acquire(ctx context.Context) error
}

// Caller is a stateless adaptor over a single configured HTTPS chat-completion
// endpoint, classifying failures into transient/permanent/canceled and
// retrying transient ones with exponential backoff and jitter. Every attempt,
// including retries, acquires a permit from limiter before it is issued.
type Caller struct {
	httpClient *http.Client
	baseURL    string
	provider   string
	apiKey     string
	limiter    limiter
	logger     *slog.Logger
}

func NewCaller(cfg config.LLMConfig, rl limiter, logger *slog.Logger) *Caller {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTotalWait
	}
	return &Caller{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		provider:   cfg.Provider,
		apiKey:     os.Getenv(apiKeyEnvVar),
		limiter:    rl,
		logger:     logger,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		CachedTokens     int64 `json:"cached_tokens"`
	} `json:"usage"`
}

// Call submits req, retrying transient failures with exponential backoff and
// jitter up to maxAttempts, bounded by defaultTotalWait unless ctx carries a
// tighter deadline.
func (c *Caller) Call(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTotalWait)
	defer cancel()

	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			select {
			case <-ctx.Done():
				return Result{}, fmt.Errorf("%w: %v", core.ErrTransient, ctx.Err())
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return Result{}, fmt.Errorf("%w: %v", core.ErrTransient, err)
		}

		result, err := c.doCall(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		if !errors.Is(err, core.ErrTransient) {
			return Result{}, err
		}

		c.logger.Warn("llm call failed, retrying", "attempt", attempt+1, "error", err)
	}

	return Result{}, fmt.Errorf("%w: exhausted %d attempts: %v", core.ErrUpstream, maxAttempts, lastErr)
}

func (c *Caller) doCall(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: encoding request: %v", core.ErrInvalid, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: building request: %v", core.ErrInvalid, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, context.Canceled
		}
		return Result{}, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: reading response: %v", core.ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return Result{}, fmt.Errorf("%w: status %d", core.ErrTransient, resp.StatusCode)
	case resp.StatusCode >= 400:
		return Result{}, fmt.Errorf("%w: status %d: %s", core.ErrUpstream, resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("%w: malformed response: %v", core.ErrUpstream, err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("%w: empty choices", core.ErrUpstream)
	}

	return Result{
		Text: parsed.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			CachedInput:  parsed.Usage.CachedTokens,
		},
	}, nil
}

func backoffDelay(attempt int) time.Duration {
	base := float64(initialDelay) * math.Pow(2, float64(attempt-1))
	jittered := base * (0.5 + rand.Float64()/2)
	d := time.Duration(jittered)
	if d > maxDelay {
		d = maxDelay
	}
	return d
}
