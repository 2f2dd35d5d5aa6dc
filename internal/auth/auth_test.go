package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lumarank/lumarank/internal/apperr"
	"github.com/lumarank/lumarank/internal/model"
	"github.com/lumarank/lumarank/internal/resilience"
	"github.com/lumarank/lumarank/internal/store"
	storemocks "github.com/lumarank/lumarank/internal/store/mocks"
	"github.com/lumarank/lumarank/pkg/workos"
	workosmocks "github.com/lumarank/lumarank/pkg/workos/mocks"
)

const (
	userID   = "11111111-1111-1111-1111-111111111111"
	entityID = "22222222-2222-2222-2222-222222222222"
	email    = "ada@example.com"
	authID   = "user_01ADA"
)

func fastPolicy() resilience.Policy {
	return resilience.NewPolicy("identity", 3, time.Millisecond, 2*time.Millisecond)
}

func creds() Credentials {
	return Credentials{Email: email, AuthID: authID, EntityID: entityID}
}

func ada() *model.User {
	return &model.User{ID: userID, Email: email, AuthID: authID, FirstName: "Ada", LastName: "Lovelace", IsActive: true}
}

func TestResolve_Success(t *testing.T) {
	st := storemocks.NewMockTenantStore(t)
	st.On("GetUserByEmail", mock.Anything, email).Return(ada(), nil).Once()
	st.On("GetEntity", mock.Anything, entityID).Return(&model.Entity{ID: entityID, Name: "Engines", IsActive: true}, nil).Once()
	st.On("GetMembership", mock.Anything, userID, entityID).
		Return(&model.Membership{ID: "m1", UserID: userID, EntityID: entityID, Role: model.RoleAdmin, IsActive: true}, nil).Once()

	r := NewResolver(st, workosmocks.NewMockClient(t), fastPolicy())
	sess, err := r.Resolve(context.Background(), creds(), "req_aaaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, userID, sess.User.ID)
	assert.Equal(t, entityID, sess.Entity.ID)
	assert.Equal(t, model.RoleAdmin, sess.Membership.Role)
	assert.Equal(t, "req_aaaaaaaaaaaa", sess.RequestID)
	assert.True(t, sess.IsAdmin())
}

func TestResolve_MissingHeaders(t *testing.T) {
	full := creds()
	subsets := []Credentials{
		{},
		{Email: full.Email},
		{AuthID: full.AuthID},
		{EntityID: full.EntityID},
		{Email: full.Email, AuthID: full.AuthID},
		{Email: full.Email, EntityID: full.EntityID},
		{AuthID: full.AuthID, EntityID: full.EntityID},
		{Email: "  ", AuthID: full.AuthID, EntityID: full.EntityID},
	}
	// No expectations: any store or provider call fails the test.
	r := NewResolver(storemocks.NewMockTenantStore(t), workosmocks.NewMockClient(t), fastPolicy())
	for _, c := range subsets {
		_, err := r.Resolve(context.Background(), c, "req")
		assert.Equal(t, apperr.KindAuthHeaderMissing, apperr.KindOf(err), "%+v", c)
		assert.Equal(t, MsgSessionHeadersMissing, apperr.PublicMessage(err))
	}
}

func TestResolve_InvalidEntityIDBeforeLookups(t *testing.T) {
	r := NewResolver(storemocks.NewMockTenantStore(t), workosmocks.NewMockClient(t), fastPolicy())
	c := creds()
	c.EntityID = "not-a-uuid"
	_, err := r.Resolve(context.Background(), c, "req")
	assert.Equal(t, apperr.KindInvalidEntityID, apperr.KindOf(err))
	assert.Equal(t, 400, apperr.KindOf(err).HTTPStatus())
}

func TestResolve_EntityAndMembershipFailures(t *testing.T) {
	tests := []struct {
		name       string
		entity     *model.Entity
		entityErr  error
		membership *model.Membership
		memberErr  error
		want       apperr.Kind
	}{
		{name: "entity missing", entityErr: store.ErrNotFound, want: apperr.KindEntityNotFound},
		{name: "entity inactive", entity: &model.Entity{ID: entityID, IsActive: false}, want: apperr.KindEntityInactive},
		{name: "entity store down", entityErr: errors.New("conn refused"), want: apperr.KindInternal},
		{name: "no membership", entity: &model.Entity{ID: entityID, IsActive: true}, memberErr: store.ErrNotFound, want: apperr.KindAccessDenied},
		{name: "inactive membership", entity: &model.Entity{ID: entityID, IsActive: true},
			membership: &model.Membership{ID: "m1", IsActive: false}, want: apperr.KindAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := storemocks.NewMockTenantStore(t)
			st.On("GetUserByEmail", mock.Anything, email).Return(ada(), nil)
			st.On("GetEntity", mock.Anything, entityID).Return(tt.entity, tt.entityErr)
			if tt.entity != nil && tt.entity.IsActive {
				st.On("GetMembership", mock.Anything, userID, entityID).Return(tt.membership, tt.memberErr)
			}
			r := NewResolver(st, workosmocks.NewMockClient(t), fastPolicy())
			sess, err := r.Resolve(context.Background(), creds(), "req")
			assert.Equal(t, tt.want, apperr.KindOf(err))
			assert.Empty(t, sess.User.ID)
			if tt.want == apperr.KindAccessDenied {
				assert.Equal(t, "Access denied to this entity", apperr.PublicMessage(err))
			}
		})
	}
}

func TestResolve_AuthIDMismatchIsInvalidCredentials(t *testing.T) {
	st := storemocks.NewMockTenantStore(t)
	other := ada()
	other.AuthID = "user_01SOMEONE"
	st.On("GetUserByEmail", mock.Anything, email).Return(other, nil)

	_, err := NewResolver(st, workosmocks.NewMockClient(t), fastPolicy()).Resolve(context.Background(), creds(), "req")
	assert.Equal(t, apperr.KindInvalidCredentials, apperr.KindOf(err))
}

func TestMe_ProvisionsFromIdentityProvider(t *testing.T) {
	st := storemocks.NewMockTenantStore(t)
	st.On("GetUserByEmail", mock.Anything, email).Return(nil, store.ErrNotFound).Once()
	st.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.Email == email && u.AuthID == authID && u.FirstName == "Ada" && u.IsActive
	})).Return(nil).Once()

	idp := workosmocks.NewMockClient(t)
	idp.On("GetUser", mock.Anything, authID).
		Return(nil, &workos.StatusError{StatusCode: 503, Err: errors.New("unavailable")}).Once()
	idp.On("GetUser", mock.Anything, authID).
		Return(&workos.Profile{ID: authID, Email: "Ada@Example.com", FirstName: "Ada", LastName: "Lovelace"}, nil).Once()

	r := NewResolver(st, idp, fastPolicy())
	r.newID = func() string { return userID }
	u, err := r.Me(context.Background(), email, authID)
	require.NoError(t, err)
	assert.Equal(t, userID, u.ID)
	assert.Equal(t, "Lovelace", u.LastName)
}

func TestMe_IdentityProviderRejections(t *testing.T) {
	tests := []struct {
		name    string
		profile *workos.Profile
		err     error
		want    apperr.Kind
	}{
		{name: "unknown user", err: workos.ErrUnknownUser, want: apperr.KindInvalidCredentials},
		{name: "email mismatch", profile: &workos.Profile{ID: authID, Email: "eve@example.com"}, want: apperr.KindInvalidCredentials},
		{name: "provider error", err: &workos.StatusError{StatusCode: 401, Err: errors.New("bad api key")}, want: apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := storemocks.NewMockTenantStore(t)
			st.On("GetUserByEmail", mock.Anything, email).Return(nil, store.ErrNotFound)
			idp := workosmocks.NewMockClient(t)
			idp.On("GetUser", mock.Anything, authID).Return(tt.profile, tt.err).Once()

			_, err := NewResolver(st, idp, fastPolicy()).Me(context.Background(), email, authID)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestMe_MissingHeaders(t *testing.T) {
	r := NewResolver(storemocks.NewMockTenantStore(t), workosmocks.NewMockClient(t), fastPolicy())
	_, err := r.Me(context.Background(), email, "")
	assert.Equal(t, apperr.KindAuthHeaderMissing, apperr.KindOf(err))
	assert.Equal(t, MsgUserHeadersMissing, apperr.PublicMessage(err))
}

func TestCheck(t *testing.T) {
	st := storemocks.NewMockTenantStore(t)
	st.On("GetUserByEmail", mock.Anything, email).Return(ada(), nil).Once()
	st.On("GetUserByEmail", mock.Anything, "eve@example.com").Return(nil, errors.New("db down")).Once()
	r := NewResolver(st, workosmocks.NewMockClient(t), fastPolicy())

	u, ok := r.Check(context.Background(), email, authID)
	assert.True(t, ok)
	assert.Equal(t, userID, u.ID)

	u, ok = r.Check(context.Background(), "eve@example.com", "x")
	assert.False(t, ok)
	assert.Nil(t, u)

	_, ok = r.Check(context.Background(), "", "")
	assert.False(t, ok)
}

func TestRegister(t *testing.T) {
	t.Run("creates", func(t *testing.T) {
		st := storemocks.NewMockTenantStore(t)
		st.On("GetUserByEmail", mock.Anything, email).Return(nil, store.ErrNotFound)
		st.On("GetUserByAuthID", mock.Anything, authID).Return(nil, store.ErrNotFound)
		st.On("CreateUser", mock.Anything, mock.Anything).Return(nil).Once()

		u, created, err := NewResolver(st, nil, fastPolicy()).Register(context.Background(),
			RegisterRequest{Email: email, AuthID: authID, FirstName: "Ada"})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "Ada", u.FirstName)
	})

	t.Run("rebinds auth id", func(t *testing.T) {
		st := storemocks.NewMockTenantStore(t)
		stale := ada()
		stale.AuthID = ""
		st.On("GetUserByEmail", mock.Anything, email).Return(stale, nil)
		st.On("UpdateUser", mock.Anything, mock.MatchedBy(func(u *model.User) bool { return u.AuthID == authID })).Return(nil).Once()

		u, created, err := NewResolver(st, nil, fastPolicy()).Register(context.Background(),
			RegisterRequest{Email: email, AuthID: authID})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, userID, u.ID)
	})

	t.Run("auth id owned by another user", func(t *testing.T) {
		st := storemocks.NewMockTenantStore(t)
		stale := ada()
		stale.AuthID = "user_other"
		st.On("GetUserByEmail", mock.Anything, email).Return(stale, nil)
		st.On("UpdateUser", mock.Anything, mock.Anything).Return(store.ErrDuplicate).Once()

		u, created, err := NewResolver(st, nil, fastPolicy()).Register(context.Background(),
			RegisterRequest{Email: email, AuthID: authID})
		require.Error(t, err)
		assert.Nil(t, u)
		assert.False(t, created)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		assert.Equal(t, http.StatusConflict, apperr.KindOf(err).HTTPStatus())
	})

	t.Run("validation", func(t *testing.T) {
		_, _, err := NewResolver(storemocks.NewMockTenantStore(t), nil, fastPolicy()).Register(context.Background(), RegisterRequest{Email: email})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

// memTenantStore enforces unique emails the way the SQL stores do.
type memTenantStore struct {
	mu      sync.Mutex
	users   map[string]model.User
	creates atomic.Int32
}

func newMemTenantStore() *memTenantStore {
	return &memTenantStore{users: map[string]model.User{}}
}

func (m *memTenantStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := m.users[key]; ok {
		return store.ErrDuplicate
	}
	m.creates.Add(1)
	m.users[key] = *u
	return nil
}

func (m *memTenantStore) GetUserByEmail(_ context.Context, e string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(e)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *memTenantStore) GetUserByAuthID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.AuthID == id {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memTenantStore) UpdateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[strings.ToLower(u.Email)] = *u
	return nil
}

func (m *memTenantStore) CreateEntity(context.Context, *model.Entity) error { return nil }
func (m *memTenantStore) GetEntity(context.Context, string) (*model.Entity, error) {
	return nil, store.ErrNotFound
}
func (m *memTenantStore) CreateMembership(context.Context, *model.Membership) error { return nil }
func (m *memTenantStore) GetMembership(context.Context, string, string) (*model.Membership, error) {
	return nil, store.ErrNotFound
}
func (m *memTenantStore) Migrate(context.Context) error { return nil }
func (m *memTenantStore) Ping(context.Context) error    { return nil }
func (m *memTenantStore) Close() error                  { return nil }

// slowIdentity holds every lookup so concurrent callers overlap.
type slowIdentity struct {
	calls atomic.Int32
}

func (s *slowIdentity) GetUser(ctx context.Context, id string) (*workos.Profile, error) {
	s.calls.Add(1)
	time.Sleep(20 * time.Millisecond)
	return &workos.Profile{ID: id, Email: email, FirstName: "Ada"}, nil
}

func TestResolveUser_ConcurrentProvisioningCreatesOneUser(t *testing.T) {
	st := newMemTenantStore()
	idp := &slowIdentity{}
	// Two resolvers stand in for two server processes sharing a database.
	resolvers := []*Resolver{NewResolver(st, idp, fastPolicy()), NewResolver(st, idp, fastPolicy())}

	const n = 16
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := resolvers[i%2].Me(context.Background(), email, authID)
			errs[i] = err
			if u != nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int32(1), st.creates.Load())
	assert.GreaterOrEqual(t, idp.calls.Load(), int32(1))
}

func TestRegister_Idempotent(t *testing.T) {
	st := newMemTenantStore()
	r := NewResolver(st, nil, fastPolicy())
	req := RegisterRequest{Email: email, AuthID: authID, FirstName: "Ada"}

	first, created, err := r.Register(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := r.Register(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int32(1), st.creates.Load())
}
