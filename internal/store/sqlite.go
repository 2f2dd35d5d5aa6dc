package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/lumarank/lumarank/internal/model"
)

// SQLiteStore implements TenantStore and ReportStore in one file for
// local runs and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection; one connection keeps them in force and
	// serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL COLLATE NOCASE UNIQUE,
	workos_user_id TEXT UNIQUE,
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	is_active      INTEGER NOT NULL DEFAULT 1,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entity (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS user_membership (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	entity_id  TEXT NOT NULL REFERENCES entity(id) ON DELETE CASCADE,
	role       TEXT NOT NULL DEFAULT 'member',
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (user_id, entity_id)
);

CREATE TABLE IF NOT EXISTS website_crawl_data (
	id               TEXT PRIMARY KEY,
	request_id       TEXT NOT NULL DEFAULT '',
	website_url      TEXT NOT NULL UNIQUE,
	domain           TEXT NOT NULL DEFAULT '',
	company_name     TEXT NOT NULL DEFAULT '',
	page_title       TEXT NOT NULL DEFAULT '',
	meta_description TEXT NOT NULL DEFAULT '',
	crawl_status     TEXT NOT NULL,
	seo_score        REAL,
	duration_ms      INTEGER NOT NULL DEFAULT 0,
	entity_id        TEXT NOT NULL DEFAULT '',
	created_by       TEXT NOT NULL DEFAULT '',
	doc              TEXT NOT NULL,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_membership_entity_id ON user_membership(entity_id);
CREATE INDEX IF NOT EXISTS idx_crawl_domain ON website_crawl_data(domain);
CREATE INDEX IF NOT EXISTS idx_crawl_status_created ON website_crawl_data(crawl_status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_crawl_entity_created ON website_crawl_data(entity_id, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- tenants ---

const (
	sqliteSelectUser       = `SELECT id, email, coalesce(workos_user_id, ''), first_name, last_name, is_active, created_at, updated_at FROM users`
	sqliteSelectEntity     = `SELECT id, name, is_active, created_at, updated_at FROM entity`
	sqliteSelectMembership = `SELECT id, user_id, entity_id, role, is_active, created_at, updated_at FROM user_membership`
)

func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, workos_user_id, first_name, last_name, is_active, created_at, updated_at)
		 VALUES (?, ?, nullif(?, ''), ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.AuthID, u.FirstName, u.LastName, u.IsActive, u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "sqlite: insert user %s", u.Email)
	}
	return eris.Wrapf(err, "sqlite: insert user %s", u.Email)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, sqliteSelectUser+` WHERE email = ?`, email), "get user by email")
}

func (s *SQLiteStore) GetUserByAuthID(ctx context.Context, authID string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, sqliteSelectUser+` WHERE workos_user_id = ?`, authID), "get user by auth id")
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *model.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, workos_user_id = nullif(?, ''), first_name = ?, last_name = ?,
		 is_active = ?, updated_at = ? WHERE id = ?`,
		u.Email, u.AuthID, u.FirstName, u.LastName, u.IsActive, u.UpdatedAt.UTC(), u.ID,
	)
	if isUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "sqlite: update user %s", u.ID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: update user %s", u.ID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) CreateEntity(ctx context.Context, e *model.Entity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity (id, name, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.IsActive, e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "sqlite: insert entity %s", e.ID)
	}
	return eris.Wrapf(err, "sqlite: insert entity %s", e.ID)
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	var e model.Entity
	err := s.db.QueryRowContext(ctx, sqliteSelectEntity+` WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get entity %s", id)
	}
	return &e, nil
}

func (s *SQLiteStore) CreateMembership(ctx context.Context, m *model.Membership) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_membership (id, user_id, entity_id, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.EntityID, string(m.Role), m.IsActive, m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
	)
	switch {
	case isUniqueViolation(err):
		return eris.Wrapf(ErrDuplicate, "sqlite: insert membership %s/%s", m.UserID, m.EntityID)
	case isForeignKeyViolation(err):
		return eris.Wrapf(ErrNotFound, "sqlite: insert membership %s/%s", m.UserID, m.EntityID)
	}
	return eris.Wrapf(err, "sqlite: insert membership %s/%s", m.UserID, m.EntityID)
}

func (s *SQLiteStore) GetMembership(ctx context.Context, userID, entityID string) (*model.Membership, error) {
	var m model.Membership
	var role string
	err := s.db.QueryRowContext(ctx, sqliteSelectMembership+` WHERE user_id = ? AND entity_id = ?`, userID, entityID).
		Scan(&m.ID, &m.UserID, &m.EntityID, &role, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get membership %s/%s", userID, entityID)
	}
	m.Role = model.Role(role)
	return &m, nil
}

// --- reports ---

const reportColumns = `id, request_id, website_url, domain, company_name, page_title, meta_description,
	crawl_status, seo_score, duration_ms, entity_id, created_by, doc, created_at, updated_at`

func reportArgs(r *model.AnalysisReport) ([]any, error) {
	doc, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal report")
	}
	return []any{
		r.ID, r.RequestID, r.WebsiteURL, r.Domain, r.CompanyName(), r.PageTitle, r.MetaDescription,
		string(r.Status), r.SuccessRate, r.DurationMs, r.EntityID, r.CreatedBy, string(doc),
		r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	}, nil
}

func (s *SQLiteStore) CreateReport(ctx context.Context, r *model.AnalysisReport) error {
	args, err := reportArgs(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO website_crawl_data (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if isUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "sqlite: insert report %s", r.WebsiteURL)
	}
	return eris.Wrapf(err, "sqlite: insert report %s", r.WebsiteURL)
}

func (s *SQLiteStore) SaveReport(ctx context.Context, r *model.AnalysisReport) error {
	args, err := reportArgs(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO website_crawl_data (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (website_url) DO UPDATE SET
			id = excluded.id, request_id = excluded.request_id, domain = excluded.domain,
			company_name = excluded.company_name, page_title = excluded.page_title,
			meta_description = excluded.meta_description, crawl_status = excluded.crawl_status,
			seo_score = excluded.seo_score, duration_ms = excluded.duration_ms,
			entity_id = excluded.entity_id, created_by = excluded.created_by, doc = excluded.doc,
			created_at = excluded.created_at, updated_at = excluded.updated_at`,
		args...,
	)
	return eris.Wrapf(err, "sqlite: save report %s", r.WebsiteURL)
}

func (s *SQLiteStore) UpdateReport(ctx context.Context, r *model.AnalysisReport) error {
	args, err := reportArgs(r)
	if err != nil {
		return err
	}
	// Drop id from the SET list and append it for the WHERE clause.
	res, err := s.db.ExecContext(ctx,
		`UPDATE website_crawl_data SET request_id = ?, website_url = ?, domain = ?, company_name = ?,
			page_title = ?, meta_description = ?, crawl_status = ?, seo_score = ?, duration_ms = ?,
			entity_id = ?, created_by = ?, doc = ?, created_at = ?, updated_at = ?
		 WHERE id = ?`,
		append(args[1:], r.ID)...,
	)
	if isUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "sqlite: update report %s", r.ID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: update report %s", r.ID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.AnalysisReport, error) {
	return scanReport(s.db.QueryRowContext(ctx, `SELECT doc FROM website_crawl_data WHERE id = ?`, id))
}

func (s *SQLiteStore) GetReportByURL(ctx context.Context, websiteURL string) (*model.AnalysisReport, error) {
	return scanReport(s.db.QueryRowContext(ctx, `SELECT doc FROM website_crawl_data WHERE website_url = ?`, websiteURL))
}

func (s *SQLiteStore) ListReports(ctx context.Context, f ReportFilter) ([]model.AnalysisReport, error) {
	return s.queryReports(ctx, "", nil, f)
}

// SearchReports matches query against company name, domain, title and meta
// description.
func (s *SQLiteStore) SearchReports(ctx context.Context, query string, f ReportFilter) ([]model.AnalysisReport, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.AnalysisReport{}, nil
	}
	pattern := "%" + likeEscaper.Replace(query) + "%"
	return s.queryReports(ctx,
		` AND (company_name LIKE ? ESCAPE '\' OR domain LIKE ? ESCAPE '\' OR page_title LIKE ? ESCAPE '\' OR meta_description LIKE ? ESCAPE '\')`,
		[]any{pattern, pattern, pattern, pattern}, f)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *SQLiteStore) queryReports(ctx context.Context, extra string, extraArgs []any, f ReportFilter) ([]model.AnalysisReport, error) {
	f = f.normalize()
	query := `SELECT doc FROM website_crawl_data WHERE 1=1`
	var args []any

	if f.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, f.EntityID)
	}
	if f.CreatedBy != "" {
		query += ` AND created_by = ?`
		args = append(args, f.CreatedBy)
	}
	if f.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, f.Domain)
	}
	if f.Status != "" {
		query += ` AND crawl_status = ?`
		args = append(args, string(f.Status))
	}
	query += extra
	args = append(args, extraArgs...)
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	reports := []model.AnalysisReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) ReportStats(ctx context.Context, entityID string) ([]StatusStats, error) {
	query := `SELECT crawl_status, count(*), coalesce(avg(duration_ms), 0) / 1000.0, avg(seo_score)
		FROM website_crawl_data`
	var args []any
	if entityID != "" {
		query += ` WHERE entity_id = ?`
		args = append(args, entityID)
	}
	query += ` GROUP BY crawl_status ORDER BY crawl_status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: report stats")
	}
	defer rows.Close()

	stats := []StatusStats{}
	for rows.Next() {
		var st StatusStats
		var status string
		var avgScore sql.NullFloat64
		if err := rows.Scan(&status, &st.Count, &st.AvgDurationSec, &avgScore); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report stats")
		}
		st.Status = model.AnalysisStatus(status)
		if avgScore.Valid {
			v := avgScore.Float64
			st.AvgSEOScore = &v
		}
		stats = append(stats, st)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: report stats iterate")
}

func (s *SQLiteStore) DeleteReport(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM website_crawl_data WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete report %s", id)
	}
	return checkRowsAffected(res)
}

// helpers

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable, op string) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.AuthID, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	return &u, nil
}

func scanReport(row scannable) (*model.AnalysisReport, error) {
	var doc string
	err := row.Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan report")
	}
	var r model.AnalysisReport
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report")
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
