package model

import (
	"time"
)

// AnalysisStatus is the coarse lifecycle status of a report.
type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusInProgress AnalysisStatus = "in_progress"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// Stage is a step of the analysis state machine.
type Stage string

const (
	StagePending    Stage = "pending"
	StageFetching   Stage = "fetching"
	StageExtracting Stage = "extracting"
	StageGenerating Stage = "generating"
	StageTesting    Stage = "testing"
	StageScoring    Stage = "scoring"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// QuestionType separates brand-naming questions from brand-agnostic ones.
type QuestionType string

const (
	QuestionCompanySpecific QuestionType = "company_specific"
	QuestionProblemBased    QuestionType = "problem_based"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	return t == QuestionCompanySpecific || t == QuestionProblemBased
}

// CompanyInfo is the profile extracted from a company's website.
type CompanyInfo struct {
	Name                 string   `json:"name" bson:"name"`
	Description          string   `json:"description" bson:"description"`
	IdealCustomerProfile string   `json:"ideal_customer_profile" bson:"ideal_customer_profile"`
	KeyFeatures          []string `json:"key_features" bson:"key_features"`
	PricingSummary       *string  `json:"pricing_summary,omitempty" bson:"pricing_summary,omitempty"`
	Industry             *string  `json:"industry,omitempty" bson:"industry,omitempty"`
}

// GeneratedQuestion is a search question a prospect might ask an assistant.
type GeneratedQuestion struct {
	Question     string       `json:"question" bson:"question"`
	QuestionType QuestionType `json:"question_type" bson:"question_type"`
	Intent       string       `json:"intent" bson:"intent"`
}

// QuestionSet holds the two disjoint question sequences of one analysis.
type QuestionSet struct {
	CompanySpecific []GeneratedQuestion `json:"company_specific" bson:"company_specific"`
	ProblemBased    []GeneratedQuestion `json:"problem_based" bson:"problem_based"`
}

// All returns company-specific questions followed by problem-based ones.
func (s QuestionSet) All() []GeneratedQuestion {
	out := make([]GeneratedQuestion, 0, s.Len())
	out = append(out, s.CompanySpecific...)
	return append(out, s.ProblemBased...)
}

// Len is the total number of questions in both sets.
func (s QuestionSet) Len() int {
	return len(s.CompanySpecific) + len(s.ProblemBased)
}

// TestResult is the scored answer to one question.
type TestResult struct {
	Question        GeneratedQuestion `json:"question" bson:"question"`
	AnswerText      *string           `json:"answer_text" bson:"answer_text"`
	Score           int               `json:"score" bson:"score"`
	ScoringReason   string            `json:"scoring_reason" bson:"scoring_reason"`
	MentionsCompany bool              `json:"mentions_company" bson:"mentions_company"`
	LatencyMs       int64             `json:"latency_ms" bson:"latency_ms"`
	Error           string            `json:"error,omitempty" bson:"error,omitempty"`
}

// AnalysisReport is the aggregate root of one analysis request.
type AnalysisReport struct {
	ID              string         `json:"id"`
	RequestID       string         `json:"request_id"`
	WebsiteURL      string         `json:"website_url"`
	Domain          string         `json:"domain,omitempty"`
	CompanyInfo     *CompanyInfo   `json:"company_info"`
	Questions       QuestionSet    `json:"questions"`
	TestResults     []TestResult   `json:"test_results"`
	SuccessRate     *float64       `json:"success_rate"`
	Status          AnalysisStatus `json:"status"`
	Stage           Stage          `json:"stage"`
	FailedStage     Stage          `json:"failed_stage,omitempty"`
	ErrorCode       string         `json:"error_code,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	GenerationError string         `json:"generation_error,omitempty"`
	PageTitle       string         `json:"page_title,omitempty"`
	MetaDescription string         `json:"meta_description,omitempty"`
	StatusCode      int            `json:"status_code,omitempty"`
	ContentType     string         `json:"content_type,omitempty"`
	RawHTMLKey      string         `json:"raw_html_key,omitempty"`
	FetchDurationMs int64          `json:"fetch_duration_ms,omitempty"`
	DurationMs      int64          `json:"duration_ms,omitempty"`
	CreatedBy       string         `json:"created_by,omitempty"`
	EntityID        string         `json:"entity_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// NewReport creates a pending report attributed to the given user and entity.
func NewReport(id, requestID, websiteURL, createdBy, entityID string, now time.Time) *AnalysisReport {
	return &AnalysisReport{
		ID:          id,
		RequestID:   requestID,
		WebsiteURL:  websiteURL,
		TestResults: []TestResult{},
		Status:      StatusPending,
		Stage:       StagePending,
		CreatedBy:   createdBy,
		EntityID:    entityID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Advance moves the report into a working stage.
func (r *AnalysisReport) Advance(stage Stage, now time.Time) {
	r.Stage = stage
	r.Status = StatusInProgress
	r.UpdatedAt = now
}

// Fail moves the report into the absorbing failed state.
func (r *AnalysisReport) Fail(stage Stage, code, message string, now time.Time) {
	r.FailedStage = stage
	r.Stage = StageFailed
	r.Status = StatusFailed
	r.ErrorCode = code
	r.ErrorMessage = message
	r.UpdatedAt = now
	r.finish(now)
}

// Complete marks the report completed and derives its success rate.
func (r *AnalysisReport) Complete(now time.Time) {
	r.Stage = StageCompleted
	r.Status = StatusCompleted
	r.SuccessRate = SuccessRate(r.TestResults)
	r.UpdatedAt = now
	r.finish(now)
}

// Terminal reports whether the report reached completed or failed.
func (r *AnalysisReport) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// CompanyName returns the extracted company name or "".
func (r *AnalysisReport) CompanyName() string {
	if r.CompanyInfo == nil {
		return ""
	}
	return r.CompanyInfo.Name
}

func (r *AnalysisReport) finish(now time.Time) {
	t := now
	r.CompletedAt = &t
	r.DurationMs = now.Sub(r.CreatedAt).Milliseconds()
}

// SuccessRate is mean(score)/2 over results, or nil when there are none.
func SuccessRate(results []TestResult) *float64 {
	if len(results) == 0 {
		return nil
	}
	total := 0
	for _, r := range results {
		total += clampScore(r.Score)
	}
	rate := float64(total) / float64(2*len(results))
	return &rate
}

func clampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 2:
		return 2
	default:
		return s
	}
}
