package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lumarank/lumarank/internal/llm"
	"github.com/lumarank/lumarank/internal/model"
)

const generateSystemPrompt = "You are a marketing expert. Generate realistic search queries."

const generatePromptTemplate = `Based on the following company information, generate search questions that prospective customers might ask an AI assistant.

Company: %s
Description: %s
Target Customers: %s
Key Features: %s
Industry: %s

Generate two types of questions:

1. COMPANY-SPECIFIC QUESTIONS (%d questions that mention "%s"):
   - Reviews and comparisons
   - Features and capabilities
   - Pricing and plans
   - Security and reliability

2. PROBLEM-BASED QUESTIONS (%d questions that do NOT mention the company or its products):
   - Focus on problems the company solves
   - Use keywords customers would search for
   - Consider the customer's pain points

Give each question a short intent describing what the asker wants to learn.`

type questionPayload struct {
	Question string `json:"question" jsonschema_description:"The search question"`
	Intent   string `json:"intent" jsonschema_description:"What the asker wants to learn"`
}

type questionsPayload struct {
	CompanySpecific []questionPayload `json:"company_specific" jsonschema_description:"Questions that name the company"`
	ProblemBased    []questionPayload `json:"problem_based" jsonschema_description:"Questions that describe the problem without naming the company"`
}

var questionsSchema = llm.SchemaFor[questionsPayload]("search_questions", "Company-specific and problem-based search questions")

const defaultIntent = "Unknown intent"

// GenerateOptions tunes question generation.
type GenerateOptions struct {
	MaxTokens   int64
	Temperature float64
	// PerSet is the number of questions requested for each set.
	PerSet int
	// MinPerSet and MaxPerSet bound the expected band; counts outside it are
	// logged, never padded or trimmed.
	MinPerSet int
	MaxPerSet int
}

// Generator asks the model for the two question sets.
type Generator struct {
	llm  llm.Provider
	opts GenerateOptions
}

// NewGenerator creates a Generator.
func NewGenerator(p llm.Provider, opts GenerateOptions) *Generator {
	if opts.PerSet <= 0 {
		opts.PerSet = 5
	}
	if opts.MinPerSet <= 0 {
		opts.MinPerSet = 3
	}
	if opts.MaxPerSet < opts.MinPerSet {
		opts.MaxPerSet = opts.MinPerSet + 5
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	return &Generator{llm: p, opts: opts}
}

// Generate runs a single generation attempt.
func (g *Generator) Generate(ctx context.Context, info model.CompanyInfo) (model.QuestionSet, error) {
	industry := "Not specified"
	if info.Industry != nil {
		industry = *info.Industry
	}
	prompt := fmt.Sprintf(generatePromptTemplate,
		info.Name, info.Description, info.IdealCustomerProfile,
		strings.Join(info.KeyFeatures, ", "), industry,
		g.opts.PerSet, info.Name, g.opts.PerSet,
	)

	resp, err := g.llm.Complete(ctx, llm.Request{
		Stage:       "generate",
		System:      generateSystemPrompt,
		Prompt:      prompt,
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
		Schema:      questionsSchema,
	})
	if err != nil {
		return model.QuestionSet{}, err
	}

	set, err := parseQuestions(resp.Text)
	if err != nil {
		return model.QuestionSet{}, err
	}
	g.checkBand(info.Name, set)
	return set, nil
}

func parseQuestions(text string) (model.QuestionSet, error) {
	var p questionsPayload
	if err := json.Unmarshal([]byte(cleanJSON(text)), &p); err != nil {
		return model.QuestionSet{}, eris.Wrapf(ErrMalformedOutput, "generate: %v", err)
	}
	set := model.QuestionSet{
		CompanySpecific: toQuestions(p.CompanySpecific, model.QuestionCompanySpecific),
		ProblemBased:    toQuestions(p.ProblemBased, model.QuestionProblemBased),
	}
	if set.Len() == 0 {
		return model.QuestionSet{}, eris.Wrap(ErrMalformedOutput, "generate: no questions returned")
	}
	return set, nil
}

func toQuestions(in []questionPayload, qt model.QuestionType) []model.GeneratedQuestion {
	out := make([]model.GeneratedQuestion, 0, len(in))
	for _, q := range in {
		text := strings.TrimSpace(q.Question)
		if text == "" {
			continue
		}
		intent := strings.TrimSpace(q.Intent)
		if intent == "" {
			intent = defaultIntent
		}
		out = append(out, model.GeneratedQuestion{Question: text, QuestionType: qt, Intent: intent})
	}
	return out
}

func (g *Generator) checkBand(company string, set model.QuestionSet) {
	for _, s := range []struct {
		name string
		qs   []model.GeneratedQuestion
	}{
		{"company_specific", set.CompanySpecific},
		{"problem_based", set.ProblemBased},
	} {
		if n := len(s.qs); n < g.opts.MinPerSet || n > g.opts.MaxPerSet {
			zap.L().Warn("generate: question count outside expected band",
				zap.String("set", s.name),
				zap.Int("count", n),
				zap.Int("min", g.opts.MinPerSet),
				zap.Int("max", g.opts.MaxPerSet),
			)
		}
	}
	for _, q := range set.ProblemBased {
		if mentions(q.Question, company) {
			zap.L().Warn("generate: problem-based question names the company",
				zap.String("question", q.Question),
			)
		}
	}
}
