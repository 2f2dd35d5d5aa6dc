package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindCodesAndStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind   Kind
		code   string
		status int
	}{
		{KindValidation, "VALIDATION_ERROR", http.StatusBadRequest},
		{KindAuthHeaderMissing, "AUTH_HEADER_MISSING", http.StatusUnauthorized},
		{KindInvalidEntityID, "INVALID_ENTITY_ID", http.StatusBadRequest},
		{KindEntityNotFound, "ENTITY_NOT_FOUND", http.StatusNotFound},
		{KindEntityInactive, "ENTITY_INACTIVE", http.StatusForbidden},
		{KindAccessDenied, "ACCESS_DENIED", http.StatusForbidden},
		{KindInvalidCredentials, "INVALID_CREDENTIALS", http.StatusUnauthorized},
		{KindFetch, "FETCH_ERROR", http.StatusBadGateway},
		{KindParse, "PARSE_ERROR", http.StatusUnprocessableEntity},
		{KindAnalysis, "ANALYSIS_ERROR", http.StatusBadGateway},
		{KindRateLimited, "RATE_LIMIT_ERROR", http.StatusTooManyRequests},
		{KindConflict, "CONFLICT", http.StatusConflict},
		{KindInternal, "INTERNAL_ERROR", http.StatusInternalServerError},
		{Kind(999), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.code, tt.kind.Code())
			assert.Equal(t, tt.status, tt.kind.HTTPStatus())
		})
	}
}

func TestWrapAndKindOf(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(cause, KindFetch, "Failed to fetch website")

	assert.Equal(t, KindFetch, KindOf(err))
	assert.True(t, Is(err, KindFetch))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to fetch website", PublicMessage(err))

	outer := fmt.Errorf("pipeline: %w", err)
	assert.Equal(t, KindFetch, KindOf(outer))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindFetch, "x"))
}

func TestUnclassified(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.False(t, Is(nil, KindInternal))
	assert.Equal(t, "An unexpected error occurred", PublicMessage(err))
}

func TestNew(t *testing.T) {
	err := New(KindAccessDenied, "Access denied to this entity")
	assert.Equal(t, KindAccessDenied, KindOf(err))
	assert.Contains(t, err.Error(), "ACCESS_DENIED")
}
