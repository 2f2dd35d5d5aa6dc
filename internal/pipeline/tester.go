package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lumarank/lumarank/internal/llm"
	"github.com/lumarank/lumarank/internal/model"
	"github.com/lumarank/lumarank/internal/resilience"
)

// Answer is the outcome of submitting one question.
type Answer struct {
	Text    *string
	Latency time.Duration
	Err     error
}

// TestOptions tunes question testing.
type TestOptions struct {
	MaxTokens   int64
	Temperature float64
	Concurrency int
}

// Tester submits questions to the model as standalone chat turns.
type Tester struct {
	llm  llm.Provider
	opts TestOptions
}

// NewTester creates a Tester.
func NewTester(p llm.Provider, opts TestOptions) *Tester {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Tester{llm: p, opts: opts}
}

// Test sends q verbatim with no system prompt or prior turns. One attempt.
func (t *Tester) Test(ctx context.Context, q model.GeneratedQuestion) (Answer, error) {
	start := time.Now()
	resp, err := t.llm.Complete(ctx, llm.Request{
		Stage:       "test",
		Prompt:      q.Question,
		Temperature: t.opts.Temperature,
		MaxTokens:   t.opts.MaxTokens,
	})
	if err != nil {
		return Answer{Latency: time.Since(start)}, err
	}
	text := resp.Text
	return Answer{Text: &text, Latency: time.Since(start)}, nil
}

// TestAll tests every question under policy with bounded concurrency. The
// result at index i answers questions[i]. A failing question is recorded in
// its Answer and never cancels the others.
func (t *Tester) TestAll(ctx context.Context, questions []model.GeneratedQuestion, policy resilience.Policy) []Answer {
	answers := make([]Answer, len(questions))

	g := new(errgroup.Group)
	g.SetLimit(t.opts.Concurrency)
	for i, q := range questions {
		g.Go(func() error {
			start := time.Now()
			a, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (Answer, error) {
				return t.Test(ctx, q)
			})
			if err != nil {
				zap.L().Warn("test: question failed",
					zap.String("question", q.Question),
					zap.Error(err),
				)
				a = Answer{Err: err, Latency: time.Since(start)}
			}
			answers[i] = a
			return nil
		})
	}
	_ = g.Wait()
	return answers
}

// failureReason is the caller-facing note on a failed question. Upstream
// payloads stay in the logs.
func failureReason(err error) string {
	switch {
	case errors.Is(err, llm.ErrContentPolicy):
		return "Rejected by the model's content policy"
	case errors.Is(err, llm.ErrEmptyCompletion):
		return "Model returned an empty response"
	case errors.Is(err, context.Canceled):
		return "Request cancelled"
	case errors.Is(err, resilience.ErrBreakerOpen):
		return "Model temporarily unavailable"
	case resilience.StatusCode(err) == 429:
		return "Model rate limit exceeded"
	case resilience.IsTransient(err):
		return "Model call timed out or was unavailable"
	default:
		return "Model call failed"
	}
}
