package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lumarank/lumarank/internal/llm"
	"github.com/lumarank/lumarank/internal/model"
)

const extractSystemPrompt = "You are a business analyst expert. Provide structured JSON responses."

const extractPromptTemplate = `Analyze the following website content and provide a structured analysis.

Website URL: %s

Website Content:
%s

Provide the following information:

1. Company Name: What is the company name?
2. Company Description: In 3-4 sentences, what does the company do?
3. Ideal Customer Profile (ICP): Who is the target customer?
4. Key Features: What are the main features or services offered?
5. Pricing: What is the pricing information, if available? Leave it empty if the page does not say.
6. Industry: What industry or sector does the company operate in? Leave it empty if unclear.`

// companyPayload is the shape the model is asked to return.
type companyPayload struct {
	Name                 string   `json:"name" jsonschema_description:"Company name"`
	Description          string   `json:"description" jsonschema_description:"What the company does in 3-4 sentences"`
	IdealCustomerProfile string   `json:"ideal_customer_profile" jsonschema_description:"Target customer description"`
	KeyFeatures          []string `json:"key_features" jsonschema_description:"Main features or services"`
	PricingInfo          string   `json:"pricing_info" jsonschema_description:"Pricing details, empty when not stated"`
	Industry             string   `json:"industry" jsonschema_description:"Industry or sector, empty when unclear"`
}

var companySchema = llm.SchemaFor[companyPayload]("company_info", "Structured company profile extracted from a website")

// ExtractOptions tunes the extraction call.
type ExtractOptions struct {
	MaxTokens   int64
	Temperature float64
	// PromptChars caps how much page text is sent to the model.
	PromptChars int
}

// Extractor turns page text into a CompanyInfo with one LLM call.
type Extractor struct {
	llm  llm.Provider
	opts ExtractOptions
}

// NewExtractor creates an Extractor.
func NewExtractor(p llm.Provider, opts ExtractOptions) *Extractor {
	if opts.PromptChars <= 0 {
		opts.PromptChars = 10000
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	return &Extractor{llm: p, opts: opts}
}

// Extract runs a single extraction attempt. A non-empty override replaces
// the model's company name; the other fields always come from the model.
func (e *Extractor) Extract(ctx context.Context, pageText, websiteURL, override string) (*model.CompanyInfo, error) {
	prompt := fmt.Sprintf(extractPromptTemplate, websiteURL, truncate(pageText, e.opts.PromptChars))

	resp, err := e.llm.Complete(ctx, llm.Request{
		Stage:       "extract",
		System:      extractSystemPrompt,
		Prompt:      prompt,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
		Schema:      companySchema,
	})
	if err != nil {
		return nil, err
	}

	info, err := parseCompanyInfo(resp.Text)
	if err != nil {
		zap.L().Warn("extract: unparseable model output",
			zap.String("url", websiteURL),
			zap.Int("reply_chars", len(resp.Text)),
			zap.Error(err),
		)
		return nil, err
	}

	switch {
	case strings.TrimSpace(override) != "":
		info.Name = strings.TrimSpace(override)
	case info.Name == "":
		info.Name = CompanyNameFromURL(websiteURL)
	}
	return info, nil
}

func parseCompanyInfo(text string) (*model.CompanyInfo, error) {
	var p companyPayload
	if err := json.Unmarshal([]byte(cleanJSON(text)), &p); err != nil {
		return nil, eris.Wrapf(ErrMalformedOutput, "extract: %v", err)
	}

	info := &model.CompanyInfo{
		Name:                 strings.TrimSpace(p.Name),
		Description:          strings.TrimSpace(p.Description),
		IdealCustomerProfile: strings.TrimSpace(p.IdealCustomerProfile),
		KeyFeatures:          make([]string, 0, len(p.KeyFeatures)),
		PricingSummary:       nonEmpty(p.PricingInfo),
		Industry:             nonEmpty(p.Industry),
	}
	if strings.EqualFold(info.Name, "Unknown Company") {
		info.Name = ""
	}
	if info.Description == "" {
		info.Description = "No description available"
	}
	if info.IdealCustomerProfile == "" {
		info.IdealCustomerProfile = "Not specified"
	}
	for _, f := range p.KeyFeatures {
		if f = strings.TrimSpace(f); f != "" {
			info.KeyFeatures = append(info.KeyFeatures, f)
		}
	}
	return info, nil
}

// CompanyNameFromURL guesses a display name from the first host label,
// e.g. "https://www.acme.io" yields "Acme".
func CompanyNameFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "Company"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return "Company"
	}
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:]
}

func nonEmpty(s string) *string {
	v := strings.TrimSpace(s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
