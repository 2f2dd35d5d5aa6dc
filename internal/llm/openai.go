package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lumarank/lumarank/internal/resilience"
	"github.com/lumarank/lumarank/pkg/openai"
)

type openAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAI adapts an OpenAI client.
func NewOpenAI(client openai.Client, model string) Provider {
	return &openAIProvider{client: client, model: model}
}

func (p *openAIProvider) Name() string { return "openai" }

func (p *openAIProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	temp := req.Temperature
	chat := openai.ChatRequest{
		Model:       p.model,
		System:      req.System,
		User:        req.Prompt,
		Temperature: &temp,
		MaxTokens:   req.MaxTokens,
	}
	if req.Schema != nil {
		chat.Schema = &openai.Schema{
			Name:        req.Schema.Name,
			Description: req.Schema.Description,
			Definition:  req.Schema.Definition,
		}
	}

	start := time.Now()
	resp, err := p.client.Chat(ctx, chat)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			kind := apiErr.Code
			if kind == "" {
				kind = apiErr.Type
			}
			return nil, classify(err, apiErr.StatusCode, kind)
		}
		return nil, err
	}
	resp.Usage.LogCost(p.model, req.Stage)

	if resp.FinishReason == "content_filter" {
		return nil, resilience.Permanent(ErrContentPolicy)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, resilience.NewTransientError(ErrEmptyCompletion, 0)
	}
	return &Completion{
		Text:    resp.Content,
		Model:   resp.Model,
		Latency: time.Since(start),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
