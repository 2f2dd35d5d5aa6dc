package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/lumarank/lumarank/internal/model"
)

// ErrNotFound is returned when a lookup matches no row or document.
var ErrNotFound = eris.New("store: not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
// Callers that race to create the same record re-read on this error.
var ErrDuplicate = eris.New("store: duplicate key")

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByAuthID(ctx context.Context, authID string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
}

// EntityStore reads tenant organizations.
type EntityStore interface {
	CreateEntity(ctx context.Context, e *model.Entity) error
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
}

// MembershipStore reads user-to-entity links.
type MembershipStore interface {
	CreateMembership(ctx context.Context, m *model.Membership) error
	GetMembership(ctx context.Context, userID, entityID string) (*model.Membership, error)
}

// TenantStore is the relational side: users, entities and memberships.
type TenantStore interface {
	UserStore
	EntityStore
	MembershipStore
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	EntityID  string               `json:"entity_id,omitempty"`
	CreatedBy string               `json:"created_by,omitempty"`
	Domain    string               `json:"domain,omitempty"`
	Status    model.AnalysisStatus `json:"status,omitempty"`
	Limit     int                  `json:"limit,omitempty"`
	Offset    int                  `json:"offset,omitempty"`
}

// StatusStats aggregates reports sharing a status.
type StatusStats struct {
	Status         model.AnalysisStatus `json:"status"`
	Count          int64                `json:"count"`
	AvgDurationSec float64              `json:"avg_duration_seconds"`
	AvgSEOScore    *float64             `json:"avg_seo_score"`
}

// ReportStore persists analysis reports, one per website URL.
type ReportStore interface {
	// CreateReport inserts r and fails with ErrDuplicate if its URL exists.
	CreateReport(ctx context.Context, r *model.AnalysisReport) error
	// SaveReport inserts r or replaces the report stored under its URL.
	SaveReport(ctx context.Context, r *model.AnalysisReport) error
	UpdateReport(ctx context.Context, r *model.AnalysisReport) error
	GetReport(ctx context.Context, id string) (*model.AnalysisReport, error)
	GetReportByURL(ctx context.Context, websiteURL string) (*model.AnalysisReport, error)
	ListReports(ctx context.Context, f ReportFilter) ([]model.AnalysisReport, error)
	SearchReports(ctx context.Context, query string, f ReportFilter) ([]model.AnalysisReport, error)
	ReportStats(ctx context.Context, entityID string) ([]StatusStats, error)
	DeleteReport(ctx context.Context, id string) error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// normalize clamps Limit and Offset to sane bounds.
func (f ReportFilter) normalize() ReportFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
