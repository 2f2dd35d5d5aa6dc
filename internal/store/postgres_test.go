package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumarank/lumarank/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var (
	userCols       = []string{"id", "email", "workos_user_id", "first_name", "last_name", "is_active", "created_at", "updated_at"}
	entityCols     = []string{"id", "name", "is_active", "created_at", "updated_at"}
	membershipCols = []string{"id", "user_id", "entity_id", "role", "is_active", "created_at", "updated_at"}
)

func TestPostgresStore_GetUserByEmail(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id::text, email, .* FROM users WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("Ada@Example.com").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("u1", "ada@example.com", "user_01ADA", "Ada", "Lovelace", true, now, now))

	u, err := s.GetUserByEmail(context.Background(), "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "user_01ADA", u.AuthID)
	assert.True(t, u.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetUser_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM users WHERE workos_user_id = \$1`).
		WithArgs("user_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetUserByAuthID(context.Background(), "user_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateUser(t *testing.T) {
	now := time.Now().UTC()
	u := &model.User{ID: "11111111-1111-1111-1111-111111111111", Email: "ada@example.com", AuthID: "user_01ADA", IsActive: true, CreatedAt: now, UpdatedAt: now}

	t.Run("inserts", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(u.ID, u.Email, u.AuthID, "", "", true, now, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.CreateUser(context.Background(), u))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_users_email"})

		err := s.CreateUser(context.Background(), u)
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other failure", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection reset by peer"))

		err := s.CreateUser(context.Background(), u)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicate)
		assert.Contains(t, err.Error(), "insert user")
	})
}

func TestPostgresStore_UpdateUser_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`UPDATE users SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateUser(context.Background(), &model.User{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEntity(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	id := "22222222-2222-2222-2222-222222222222"

	mock.ExpectQuery(`FROM entity WHERE id = \$1::uuid`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(entityCols).AddRow(id, "Analytical Engines", false, now, now))
	mock.ExpectQuery(`FROM entity WHERE id = \$1::uuid`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	e, err := s.GetEntity(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Analytical Engines", e.Name)
	assert.False(t, e.IsActive)

	_, err = s.GetEntity(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMembership(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM user_membership WHERE user_id = \$1::uuid AND entity_id = \$2::uuid`).
		WithArgs("u1", "e1").
		WillReturnRows(pgxmock.NewRows(membershipCols).AddRow("m1", "u1", "e1", "owner", true, now, now))

	m, err := s.GetMembership(context.Background(), "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleOwner, m.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateMembership_MissingParent(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`INSERT INTO user_membership`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "member", true, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := s.CreateMembership(context.Background(), &model.Membership{ID: "m1", UserID: "u1", EntityID: "e1", Role: model.RoleMember, IsActive: true})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MigrateAndPing(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectPing()

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
