package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lumarank/lumarank/internal/resilience"
	"github.com/lumarank/lumarank/pkg/anthropic"
)

type anthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropic adapts an Anthropic client.
func NewAnthropic(client anthropic.Client, model string) Provider {
	return &anthropicProvider{client: client, model: model}
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	temp := req.Temperature
	system := req.System
	if req.Schema != nil {
		system = withSchemaInstruction(system, req.Schema)
	}

	start := time.Now()
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   req.MaxTokens,
		System:      system,
		Temperature: &temp,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			return nil, classify(err, apiErr.StatusCode, apiErr.Type)
		}
		return nil, err
	}
	resp.Usage.LogCost(p.model, req.Stage)

	text := resp.Text()
	if strings.TrimSpace(text) == "" && resp.StopReason == "refusal" {
		return nil, resilience.Permanent(ErrContentPolicy)
	}
	if strings.TrimSpace(text) == "" {
		return nil, resilience.NewTransientError(ErrEmptyCompletion, 0)
	}
	return &Completion{
		Text:    text,
		Model:   resp.Model,
		Latency: time.Since(start),
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// withSchemaInstruction appends the JSON schema to the system prompt. The
// Messages API has no response_format, so the shape is requested in text.
func withSchemaInstruction(system string, s *Schema) string {
	def, err := json.Marshal(s.Definition)
	if err != nil {
		return system
	}
	var sb strings.Builder
	if system != "" {
		sb.WriteString(system)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Respond with a single JSON object and nothing else. It must validate against this JSON schema:\n")
	sb.Write(def)
	return sb.String()
}
