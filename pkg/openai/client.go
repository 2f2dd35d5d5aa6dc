// Package openai wraps the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client defines the chat operations used by the analyzer.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a single system+user exchange.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature *float64
	MaxTokens   int64
	// Schema, when set, constrains the reply to strict JSON.
	Schema *Schema
}

// Schema names a JSON schema response format.
type Schema struct {
	Name        string
	Description string
	Definition  any
}

// ChatResponse is the first choice of a completion.
type ChatResponse struct {
	ID           string
	Model        string
	Content      string
	FinishReason string
	Usage        Usage
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

var modelPricing = map[string][2]float64{
	"gpt-4.1-mini": {0.40, 1.60},
	"gpt-4.1":      {2.00, 8.00},
	"gpt-4o-mini":  {0.15, 0.60},
}

// EstimateCost computes an estimated cost in USD. Returns 0 for unknown models.
func (u Usage) EstimateCost(model string) float64 {
	p, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return (float64(u.PromptTokens)/1e6)*p[0] + (float64(u.CompletionTokens)/1e6)*p[1]
}

// LogCost logs token usage with structured zap fields.
func (u Usage) LogCost(model, stage string) {
	zap.L().Debug("llm usage",
		zap.String("provider", "openai"),
		zap.String("model", model),
		zap.String("stage", stage),
		zap.Int64("input_tokens", u.PromptTokens),
		zap.Int64("output_tokens", u.CompletionTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}

// APIError is returned when the API answered with a non-2xx status.
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: status %d: %s", e.StatusCode, e.Message)
}

// ErrNoChoices is returned when a completion carries no choices.
var ErrNoChoices = eris.New("openai: no choices returned")

type sdkClient struct {
	client sdk.Client
}

// NewClient builds a client. baseURL may be empty. SDK retries are off.
func NewClient(apiKey, baseURL string) Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &sdkClient{client: sdk.NewClient(opts...)}
}

func (c *sdkClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msgs := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		msgs = append(msgs, sdk.SystemMessage(req.System))
	}
	msgs = append(msgs, sdk.UserMessage(req.User))

	params := sdk.ChatCompletionNewParams{
		Messages: msgs,
		Model:    sdk.ChatModel(req.Model),
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(req.MaxTokens)
	}
	if req.Schema != nil {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &sdk.ResponseFormatJSONSchemaParam{
				JSONSchema: sdk.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Schema.Name,
					Description: sdk.String(req.Schema.Description),
					Schema:      req.Schema.Definition,
					Strict:      sdk.Bool(true),
				},
			},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{
				StatusCode: apiErr.StatusCode,
				Code:       apiErr.Code,
				Type:       apiErr.Type,
				Message:    apiErr.Message,
			}
		}
		return nil, eris.Wrap(err, "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
