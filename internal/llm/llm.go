// Package llm puts the chat providers behind one Complete call and classifies
// their failures for the retry policy.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lumarank/lumarank/internal/resilience"
)

// Request is one standalone chat turn.
type Request struct {
	// Stage labels usage logs, e.g. "extract".
	Stage       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
	Schema      *Schema
}

// Schema asks for a JSON reply of the given shape.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Usage is token consumption of a single call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Completion is the text reply of a provider.
type Completion struct {
	Text    string
	Model   string
	Usage   Usage
	Latency time.Duration
}

// Provider is a chat model backend. One call per Complete; callers retry.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// ErrContentPolicy is returned when the provider refused the request.
var ErrContentPolicy = eris.New("llm: request rejected by content policy")

// ErrEmptyCompletion is returned, marked transient, when the model produced
// no text.
var ErrEmptyCompletion = eris.New("llm: empty completion")

// classify marks a provider API failure as transient or permanent.
func classify(err error, status int, kind string) error {
	if isPolicyRejection(kind) {
		return resilience.Permanent(errors.Join(ErrContentPolicy, err))
	}
	// 529 is Anthropic's "overloaded".
	if resilience.IsTransientHTTPStatus(status) || status == 529 {
		return resilience.NewTransientError(err, status)
	}
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return resilience.Permanent(err)
	}
	return err
}

func isPolicyRejection(kind string) bool {
	k := strings.ToLower(kind)
	return strings.Contains(k, "content_filter") || strings.Contains(k, "content_policy")
}

// breakerProvider short-circuits calls while the upstream is failing.
type breakerProvider struct {
	next    Provider
	breaker *resilience.Breaker
}

// WithBreaker wraps p so repeated transient failures open b.
func WithBreaker(p Provider, b *resilience.Breaker) Provider {
	return &breakerProvider{next: p, breaker: b}
}

func (p *breakerProvider) Name() string { return p.next.Name() }

func (p *breakerProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	return resilience.Call(ctx, p.breaker, func(ctx context.Context) (*Completion, error) {
		return p.next.Complete(ctx, req)
	})
}
