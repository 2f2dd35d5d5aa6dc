// Package pipeline runs the website analysis: fetch, extract, generate,
// test and score, in that order.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumarank/lumarank/internal/apperr"
	"github.com/lumarank/lumarank/internal/fetcher"
	"github.com/lumarank/lumarank/internal/model"
	"github.com/lumarank/lumarank/internal/resilience"
	"github.com/lumarank/lumarank/internal/snapshot"
	"github.com/lumarank/lumarank/internal/store"
)

// Policies holds the retry budget of each stage.
type Policies struct {
	Fetch    resilience.Policy
	Extract  resilience.Policy
	Generate resilience.Policy
	Test     resilience.Policy
}

// Deps wires an Analyzer. Reports and Snapshots are optional.
type Deps struct {
	Fetcher        fetcher.Fetcher
	Extractor      *Extractor
	Generator      *Generator
	Tester         *Tester
	Reports        store.ReportStore
	Snapshots      snapshot.Store
	Policies       Policies
	PersistTimeout time.Duration
}

// AnalyzeRequest is the input of Analyze.
type AnalyzeRequest struct {
	WebsiteURL  string `json:"website_url"`
	CompanyName string `json:"company_name,omitempty"`
	// TestQuestions false is quick mode: stop after generation.
	TestQuestions bool `json:"test_questions"`
}

// Analyzer sequences the stages and owns their retry policies.
type Analyzer struct {
	fetcher        fetcher.Fetcher
	extractor      *Extractor
	generator      *Generator
	tester         *Tester
	scorer         Scorer
	reports        store.ReportStore
	snapshots      snapshot.Store
	policies       Policies
	persistTimeout time.Duration

	now   func() time.Time
	newID func() string
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(d Deps) *Analyzer {
	if d.PersistTimeout <= 0 {
		d.PersistTimeout = 10 * time.Second
	}
	return &Analyzer{
		fetcher:        d.Fetcher,
		extractor:      d.Extractor,
		generator:      d.Generator,
		tester:         d.Tester,
		reports:        d.Reports,
		snapshots:      d.Snapshots,
		policies:       d.Policies,
		persistTimeout: d.PersistTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// AnalyzeQuick runs fetch, extract and generate only.
func (a *Analyzer) AnalyzeQuick(ctx context.Context, sess model.SessionContext, websiteURL, companyName string) (*model.AnalysisReport, error) {
	return a.Analyze(ctx, sess, AnalyzeRequest{WebsiteURL: websiteURL, CompanyName: companyName})
}

// Analyze runs the pipeline for one URL on behalf of sess. The report is
// returned even on failure, with the failing stage recorded; the error is
// then an *apperr.Error. Invalid input fails before a report exists.
func (a *Analyzer) Analyze(ctx context.Context, sess model.SessionContext, req AnalyzeRequest) (*model.AnalysisReport, error) {
	u, err := fetcher.ValidateURL(req.WebsiteURL)
	if err != nil {
		return nil, err
	}
	websiteURL := u.String()

	report := model.NewReport(a.newID(), sess.RequestID, websiteURL, sess.User.ID, sess.Entity.ID, a.now())
	report.Domain = fetcher.DomainOf(websiteURL)
	log := zap.L().With(
		zap.String("request_id", sess.RequestID),
		zap.String("url", websiteURL),
		zap.Bool("quick", !req.TestQuestions),
	)
	log.Info("analysis: starting")

	// Fetching.
	page, err := runStage(ctx, a, report, log, model.StageFetching, a.policies.Fetch,
		func(ctx context.Context) (*fetcher.Page, error) {
			return a.fetcher.Fetch(ctx, websiteURL)
		})
	if err != nil {
		return a.fail(ctx, report, log, model.StageFetching, err)
	}
	report.PageTitle = page.Title
	report.MetaDescription = page.MetaDescription
	report.StatusCode = page.StatusCode
	report.ContentType = page.ContentType
	report.FetchDurationMs = page.Duration.Milliseconds()
	a.saveSnapshot(ctx, report, page, log)

	// Extracting.
	info, err := runStage(ctx, a, report, log, model.StageExtracting, a.policies.Extract,
		func(ctx context.Context) (*model.CompanyInfo, error) {
			return a.extractor.Extract(ctx, page.Text, websiteURL, req.CompanyName)
		})
	if err != nil {
		return a.fail(ctx, report, log, model.StageExtracting, err)
	}
	report.CompanyInfo = info

	// Generating.
	set, err := runStage(ctx, a, report, log, model.StageGenerating, a.policies.Generate,
		func(ctx context.Context) (model.QuestionSet, error) {
			return a.generator.Generate(ctx, *info)
		})
	if err != nil {
		if req.TestQuestions || ctx.Err() != nil {
			return a.fail(ctx, report, log, model.StageGenerating, err)
		}
		// Quick mode callers still get the company profile.
		report.GenerationError = apperr.PublicMessage(stageError(model.StageGenerating, err))
		log.Warn("analysis: question generation failed in quick mode", zap.Error(err))
	}
	if set.CompanySpecific == nil {
		set.CompanySpecific = []model.GeneratedQuestion{}
	}
	if set.ProblemBased == nil {
		set.ProblemBased = []model.GeneratedQuestion{}
	}
	report.Questions = set

	if req.TestQuestions {
		if err := a.testAndScore(ctx, report, info.Name, set.All(), log); err != nil {
			return report, err
		}
	}

	report.Complete(a.now())
	a.persist(ctx, report, log)
	log.Info("analysis: completed",
		zap.Int("questions", report.Questions.Len()),
		zap.Int("test_results", len(report.TestResults)),
		zap.Int64("duration_ms", report.DurationMs),
	)
	return report, nil
}

// TestQuestions tests and scores caller-supplied questions, skipping fetch,
// extraction and generation. The report is not persisted since it has no
// website URL.
func (a *Analyzer) TestQuestions(ctx context.Context, sess model.SessionContext, companyName string, questions []model.GeneratedQuestion) (*model.AnalysisReport, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, apperr.New(apperr.KindValidation, "company_name is required")
	}
	if len(questions) == 0 {
		return nil, apperr.New(apperr.KindValidation, "at least one question is required")
	}
	questions = append([]model.GeneratedQuestion(nil), questions...)
	set := model.QuestionSet{CompanySpecific: []model.GeneratedQuestion{}, ProblemBased: []model.GeneratedQuestion{}}
	for i, q := range questions {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			return nil, apperr.New(apperr.KindValidation, "question text must not be empty")
		}
		if !q.QuestionType.Valid() {
			return nil, apperr.New(apperr.KindValidation, "question_type must be company_specific or problem_based")
		}
		if strings.TrimSpace(q.Intent) == "" {
			q.Intent = defaultIntent
		}
		questions[i] = q
		if q.QuestionType == model.QuestionCompanySpecific {
			set.CompanySpecific = append(set.CompanySpecific, q)
		} else {
			set.ProblemBased = append(set.ProblemBased, q)
		}
	}

	report := model.NewReport(a.newID(), sess.RequestID, "", sess.User.ID, sess.Entity.ID, a.now())
	report.CompanyInfo = &model.CompanyInfo{Name: companyName, KeyFeatures: []string{}}
	report.Questions = set
	log := zap.L().With(zap.String("request_id", sess.RequestID), zap.String("company", companyName))

	// Keep caller order rather than regrouping by type.
	if err := a.testAndScore(ctx, report, companyName, questions, log); err != nil {
		return report, err
	}
	report.Complete(a.now())
	return report, nil
}

func (a *Analyzer) testAndScore(ctx context.Context, report *model.AnalysisReport, company string, questions []model.GeneratedQuestion, log *zap.Logger) error {
	report.Advance(model.StageTesting, a.now())
	start := time.Now()
	answers := a.tester.TestAll(ctx, questions, a.policies.Test)
	if err := ctx.Err(); err != nil {
		_, ferr := a.fail(ctx, report, log, model.StageTesting, err)
		return ferr
	}
	failed := 0
	for _, ans := range answers {
		if ans.Err != nil {
			failed++
		}
	}
	log.Info("analysis: stage complete",
		zap.String("stage", string(model.StageTesting)),
		zap.Int("questions", len(questions)),
		zap.Int("failed", failed),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	report.Advance(model.StageScoring, a.now())
	report.TestResults = a.scorer.ScoreAll(questions, answers, company)
	return nil
}

// runStage advances report to stage and runs fn under policy.
func runStage[T any](ctx context.Context, a *Analyzer, report *model.AnalysisReport, log *zap.Logger, stage model.Stage, policy resilience.Policy, fn func(context.Context) (T, error)) (T, error) {
	report.Advance(stage, a.now())
	start := time.Now()
	val, err := resilience.DoVal(ctx, policy, fn)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Error("analysis: stage failed",
			zap.String("stage", string(stage)),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return val, err
	}
	log.Info("analysis: stage complete",
		zap.String("stage", string(stage)),
		zap.Int64("duration_ms", duration),
	)
	return val, nil
}

// fail records the failure on report and persists it, unless the request
// itself was cancelled.
func (a *Analyzer) fail(ctx context.Context, report *model.AnalysisReport, log *zap.Logger, stage model.Stage, cause error) (*model.AnalysisReport, error) {
	err := stageError(stage, cause)
	if ctx.Err() != nil {
		err = apperr.Wrap(cause, apperr.KindInternal, "Request cancelled")
	}
	report.Fail(stage, apperr.KindOf(err).Code(), apperr.PublicMessage(err), a.now())
	if ctx.Err() == nil {
		a.persist(ctx, report, log)
	}
	return report, err
}

// stageError classifies an exhausted stage failure. Errors that already
// carry a kind (validation, parse) keep it.
func stageError(stage model.Stage, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch stage {
	case model.StageFetching:
		return apperr.Wrap(err, apperr.KindFetch, "Failed to fetch website content")
	case model.StageExtracting:
		return apperr.Wrap(err, apperr.KindAnalysis, "Failed to extract company information")
	case model.StageGenerating:
		return apperr.Wrap(err, apperr.KindAnalysis, "Failed to generate search questions")
	default:
		return apperr.Wrap(err, apperr.KindInternal, "Analysis failed")
	}
}

func (a *Analyzer) saveSnapshot(ctx context.Context, report *model.AnalysisReport, page *fetcher.Page, log *zap.Logger) {
	if a.snapshots == nil || page.HTML == "" {
		return
	}
	name := report.RequestID
	if name == "" {
		name = report.ID
	}
	key, err := a.snapshots.Put(ctx, report.Domain, name, []byte(page.HTML))
	if err != nil {
		log.Warn("analysis: snapshot upload failed", zap.Error(err))
		return
	}
	report.RawHTMLKey = key
}

// persist writes the terminal report. It outlives a client disconnect that
// happens after the report is final. Reports still in flight are never stored.
func (a *Analyzer) persist(ctx context.Context, report *model.AnalysisReport, log *zap.Logger) {
	if a.reports == nil || report.WebsiteURL == "" {
		return
	}
	if !report.Terminal() {
		log.Warn("analysis: refusing to persist unfinished report",
			zap.String("report_id", report.ID),
			zap.String("stage", string(report.Stage)),
		)
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.persistTimeout)
	defer cancel()
	if err := a.reports.SaveReport(pctx, report); err != nil {
		log.Error("analysis: persist report failed", zap.String("report_id", report.ID), zap.Error(err))
	}
}
