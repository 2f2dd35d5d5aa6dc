package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/lumarank/lumarank/internal/db"
	"github.com/lumarank/lumarank/internal/model"
)

// PostgresStore implements TenantStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	// Lookups run on every authenticated request; pgx caches their plans
	// per connection.
	pgxCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	email          TEXT NOT NULL,
	workos_user_id TEXT,
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	is_active      BOOLEAN NOT NULL DEFAULT true,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(lower(email));
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_workos_user_id ON users(workos_user_id) WHERE workos_user_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS entity (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name       TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_membership (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	entity_id  UUID NOT NULL REFERENCES entity(id) ON DELETE CASCADE,
	role       TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('member', 'admin', 'owner')),
	is_active  BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_user_membership_entity_id ON user_membership(entity_id);
`

const (
	selectUser       = `SELECT id::text, email, coalesce(workos_user_id, ''), first_name, last_name, is_active, created_at, updated_at FROM users`
	selectEntity     = `SELECT id::text, name, is_active, created_at, updated_at FROM entity`
	selectMembership = `SELECT id::text, user_id::text, entity_id::text, role, is_active, created_at, updated_at FROM user_membership`
)

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, workos_user_id, first_name, last_name, is_active, created_at, updated_at)
		 VALUES ($1::uuid, $2, nullif($3, ''), $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.AuthID, u.FirstName, u.LastName, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "postgres: insert user %s", u.Email)
	}
	return eris.Wrapf(err, "postgres: insert user %s", u.Email)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, "get user by email", selectUser+` WHERE lower(email) = lower($1)`, email)
}

func (s *PostgresStore) GetUserByAuthID(ctx context.Context, authID string) (*model.User, error) {
	return s.getUser(ctx, "get user by auth id", selectUser+` WHERE workos_user_id = $1`, authID)
}

func (s *PostgresStore) getUser(ctx context.Context, op, query string, arg string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.AuthID, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	return &u, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *model.User) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET email = $1, workos_user_id = nullif($2, ''), first_name = $3, last_name = $4,
		 is_active = $5, updated_at = $6 WHERE id = $7::uuid`,
		u.Email, u.AuthID, u.FirstName, u.LastName, u.IsActive, u.UpdatedAt, u.ID,
	)
	if db.IsUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "postgres: update user %s", u.ID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: update user %s", u.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateEntity(ctx context.Context, e *model.Entity) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO entity (id, name, is_active, created_at, updated_at) VALUES ($1::uuid, $2, $3, $4, $5)`,
		e.ID, e.Name, e.IsActive, e.CreatedAt, e.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "postgres: insert entity %s", e.ID)
	}
	return eris.Wrapf(err, "postgres: insert entity %s", e.ID)
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	var e model.Entity
	err := s.pool.QueryRow(ctx, selectEntity+` WHERE id = $1::uuid`, id).
		Scan(&e.ID, &e.Name, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get entity %s", id)
	}
	return &e, nil
}

func (s *PostgresStore) CreateMembership(ctx context.Context, m *model.Membership) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_membership (id, user_id, entity_id, role, is_active, created_at, updated_at)
		 VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7)`,
		m.ID, m.UserID, m.EntityID, string(m.Role), m.IsActive, m.CreatedAt, m.UpdatedAt,
	)
	switch {
	case db.IsUniqueViolation(err):
		return eris.Wrapf(ErrDuplicate, "postgres: insert membership %s/%s", m.UserID, m.EntityID)
	case db.IsForeignKeyViolation(err):
		return eris.Wrapf(ErrNotFound, "postgres: insert membership %s/%s", m.UserID, m.EntityID)
	}
	return eris.Wrapf(err, "postgres: insert membership %s/%s", m.UserID, m.EntityID)
}

func (s *PostgresStore) GetMembership(ctx context.Context, userID, entityID string) (*model.Membership, error) {
	var m model.Membership
	var role string
	err := s.pool.QueryRow(ctx, selectMembership+` WHERE user_id = $1::uuid AND entity_id = $2::uuid`, userID, entityID).
		Scan(&m.ID, &m.UserID, &m.EntityID, &role, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get membership %s/%s", userID, entityID)
	}
	m.Role = model.Role(role)
	return &m, nil
}
