package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumarank/lumarank/internal/apperr"
	"github.com/lumarank/lumarank/internal/auth"
	"github.com/lumarank/lumarank/internal/model"
	"github.com/lumarank/lumarank/internal/pipeline"
	"github.com/lumarank/lumarank/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	services := make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			services[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		services[name] = "healthy"
	}
	ready := "ready"
	if status != http.StatusOK {
		ready = "not_ready"
	}
	writeJSON(w, status, map[string]any{"status": ready, "services": services})
}

// --- analysis ---

type analyzeBody struct {
	WebsiteURL    string `json:"website_url"`
	CompanyName   string `json:"company_name"`
	TestQuestions *bool  `json:"test_questions"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) error {
	return s.analyze(w, r, false)
}

func (s *Server) handleAnalyzeQuick(w http.ResponseWriter, r *http.Request) error {
	return s.analyze(w, r, true)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, quick bool) error {
	var body analyzeBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		return err
	}
	if strings.TrimSpace(body.WebsiteURL) == "" {
		return apperr.New(apperr.KindValidation, "website_url is required")
	}
	test := !quick
	if !quick && body.TestQuestions != nil {
		test = *body.TestQuestions
	}

	sess, _ := SessionFrom(r.Context())
	report, err := s.analyzer.Analyze(r.Context(), sess, pipeline.AnalyzeRequest{
		WebsiteURL:    body.WebsiteURL,
		CompanyName:   strings.TrimSpace(body.CompanyName),
		TestQuestions: test,
	})
	if err != nil {
		writeError(w, r, err, report)
		return nil
	}
	writeJSON(w, http.StatusOK, report)
	return nil
}

type testQuestionsBody struct {
	CompanyName string                    `json:"company_name"`
	Questions   []model.GeneratedQuestion `json:"questions"`
}

func (s *Server) handleTestQuestions(w http.ResponseWriter, r *http.Request) error {
	var body testQuestionsBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		return err
	}
	sess, _ := SessionFrom(r.Context())
	report, err := s.analyzer.TestQuestions(r.Context(), sess, body.CompanyName, body.Questions)
	if err != nil {
		writeError(w, r, err, report)
		return nil
	}
	writeJSON(w, http.StatusOK, report)
	return nil
}

// --- auth ---

type checkResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user,omitempty"`
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) error {
	u, ok := s.auth.Check(r.Context(), r.Header.Get(auth.HeaderEmail), r.Header.Get(auth.HeaderAuthID))
	writeJSON(w, http.StatusOK, checkResponse{Authenticated: ok, User: u})
	return nil
}

func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) error {
	u, err := s.auth.Me(r.Context(), r.Header.Get(auth.HeaderEmail), r.Header.Get(auth.HeaderAuthID))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, u)
	return nil
}

func (s *Server) handleAuthRegister(w http.ResponseWriter, r *http.Request) error {
	var req auth.RegisterRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return err
	}
	u, _, err := s.auth.Register(r.Context(), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, u)
	return nil
}

// --- reports ---

type listResponse struct {
	Reports []model.AnalysisReport `json:"reports"`
	Count   int                    `json:"count"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

func (s *Server) reportStore() (store.ReportStore, error) {
	if s.reports == nil {
		return nil, apperr.New(apperr.KindNotFound, "Report storage is not configured")
	}
	return s.reports, nil
}

// reportFilter reads paging and status from the query, scoped to the
// session's entity.
func reportFilter(r *http.Request, sess model.SessionContext) (store.ReportFilter, error) {
	q := r.URL.Query()
	f := store.ReportFilter{EntityID: sess.Entity.ID, Domain: strings.TrimSpace(q.Get("domain"))}

	if v := q.Get("status"); v != "" {
		st := model.AnalysisStatus(v)
		switch st {
		case model.StatusPending, model.StatusInProgress, model.StatusCompleted, model.StatusFailed:
			f.Status = st
		default:
			return f, apperr.New(apperr.KindValidation, "status must be pending, in_progress, completed or failed")
		}
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, apperr.New(apperr.KindValidation, p.name+" must be a non-negative integer")
		}
		*p.dst = n
	}
	return f, nil
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) error {
	reports, err := s.reportStore()
	if err != nil {
		return err
	}
	sess, _ := SessionFrom(r.Context())
	f, err := reportFilter(r, sess)
	if err != nil {
		return err
	}
	list, err := reports.ListReports(r.Context(), f)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, listResponse{Reports: list, Count: len(list), Limit: f.Limit, Offset: f.Offset})
	return nil
}

func (s *Server) handleSearchReports(w http.ResponseWriter, r *http.Request) error {
	reports, err := s.reportStore()
	if err != nil {
		return err
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		return apperr.New(apperr.KindValidation, "q is required")
	}
	sess, _ := SessionFrom(r.Context())
	f, err := reportFilter(r, sess)
	if err != nil {
		return err
	}
	list, err := reports.SearchReports(r.Context(), query, f)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, listResponse{Reports: list, Count: len(list), Limit: f.Limit, Offset: f.Offset})
	return nil
}

func (s *Server) handleReportStats(w http.ResponseWriter, r *http.Request) error {
	reports, err := s.reportStore()
	if err != nil {
		return err
	}
	sess, _ := SessionFrom(r.Context())
	stats, err := reports.ReportStats(r.Context(), sess.Entity.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"entity_id": sess.Entity.ID, "stats": stats})
	return nil
}

func (s *Server) handleLookupReport(w http.ResponseWriter, r *http.Request) error {
	reports, err := s.reportStore()
	if err != nil {
		return err
	}
	websiteURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if websiteURL == "" {
		return apperr.New(apperr.KindValidation, "url is required")
	}
	report, err := reports.GetReportByURL(r.Context(), websiteURL)
	return s.serveOwnedReport(w, r, report, err)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) error {
	reports, err := s.reportStore()
	if err != nil {
		return err
	}
	report, err := reports.GetReport(r.Context(), chi.URLParam(r, "id"))
	return s.serveOwnedReport(w, r, report, err)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) error {
	reports, err := s.reportStore()
	if err != nil {
		return err
	}
	id := chi.URLParam(r, "id")
	report, err := reports.GetReport(r.Context(), id)
	if err := ownedReport(r, report, err); err != nil {
		return err
	}
	if err := reports.DeleteReport(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "Report not found")
		}
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) serveOwnedReport(w http.ResponseWriter, r *http.Request, report *model.AnalysisReport, err error) error {
	if err := ownedReport(r, report, err); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, report)
	return nil
}

// ownedReport hides reports of other entities behind the same not-found
// answer as missing ones.
func ownedReport(r *http.Request, report *model.AnalysisReport, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "Report not found")
	}
	if err != nil {
		return err
	}
	sess, _ := SessionFrom(r.Context())
	if report.EntityID != sess.Entity.ID {
		return apperr.New(apperr.KindNotFound, "Report not found")
	}
	return nil
}
