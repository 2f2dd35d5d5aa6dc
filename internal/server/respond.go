package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/lumarank/lumarank/internal/apperr"
	"github.com/lumarank/lumarank/internal/model"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Success   bool                  `json:"success"`
	ErrorCode string                `json:"error_code"`
	Message   string                `json:"message"`
	RequestID string                `json:"request_id"`
	Report    *model.AnalysisReport `json:"report,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("http: write response", zap.Error(err))
	}
}

// writeError serves err as an errorBody. Causes are logged, never sent.
func writeError(w http.ResponseWriter, r *http.Request, err error, report *model.AnalysisReport) {
	kind := apperr.KindOf(err)
	reqID := RequestIDFrom(r.Context())

	log := zap.L().With(
		zap.String("request_id", reqID),
		zap.String("path", r.URL.Path),
		zap.String("error_code", kind.Code()),
	)
	if kind == apperr.KindInternal {
		log.Error("http: request failed", zap.Error(err))
	} else {
		log.Info("http: request rejected", zap.Error(err))
	}

	writeJSON(w, kind.HTTPStatus(), errorBody{
		Success:   false,
		ErrorCode: kind.Code(),
		Message:   apperr.PublicMessage(err),
		RequestID: reqID,
		Report:    report,
	})
}

// decodeJSON reads a bounded JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return apperr.Wrap(err, apperr.KindValidation, "Request body too large")
		case errors.Is(err, io.EOF):
			return apperr.Wrap(err, apperr.KindValidation, "Request body is required")
		default:
			return apperr.Wrap(err, apperr.KindValidation, "Invalid request body")
		}
	}
	return nil
}
