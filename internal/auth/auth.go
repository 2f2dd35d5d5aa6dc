// Package auth derives the per-request SessionContext from identity headers,
// provisioning users from WorkOS on first sight.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lumarank/lumarank/internal/apperr"
	"github.com/lumarank/lumarank/internal/model"
	"github.com/lumarank/lumarank/internal/resilience"
	"github.com/lumarank/lumarank/internal/store"
	"github.com/lumarank/lumarank/pkg/workos"
)

// Header names carrying the caller's identity.
const (
	HeaderEmail    = "x-email"
	HeaderAuthID   = "x-auth-id"
	HeaderEntityID = "x-entity-id"
)

// Caller-facing messages.
const (
	MsgSessionHeadersMissing = "Missing authentication headers (x-email, x-auth-id, and x-entity-id required)"
	MsgUserHeadersMissing    = "Missing authentication headers (x-email and x-auth-id required)"
	msgInvalidCredentials    = "Invalid authentication credentials"
	msgInvalidEntityID       = "Invalid entity ID format"
	msgEntityNotFound        = "Entity not found"
	msgEntityInactive        = "Entity is inactive"
	msgAccessDenied          = "Access denied to this entity"
	msgServiceError          = "Authentication service error"
)

// IdentityProvider looks up an identity by its provider ID. workos.Client
// satisfies it.
type IdentityProvider interface {
	GetUser(ctx context.Context, authID string) (*workos.Profile, error)
}

// Credentials are the raw identity headers of one request.
type Credentials struct {
	Email    string
	AuthID   string
	EntityID string
}

func (c Credentials) trimmed() Credentials {
	return Credentials{
		Email:    strings.TrimSpace(c.Email),
		AuthID:   strings.TrimSpace(c.AuthID),
		EntityID: strings.TrimSpace(c.EntityID),
	}
}

// RegisterRequest is the body of a registration.
type RegisterRequest struct {
	Email     string `json:"email"`
	AuthID    string `json:"auth_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Resolver runs the authentication state machine. It holds no per-request
// state and is safe for concurrent use.
type Resolver struct {
	store    store.TenantStore
	identity IdentityProvider
	policy   resilience.Policy
	group    singleflight.Group

	now   func() time.Time
	newID func() string
}

// NewResolver creates a Resolver. policy bounds identity-provider lookups.
func NewResolver(st store.TenantStore, identity IdentityProvider, policy resilience.Policy) *Resolver {
	return &Resolver{
		store:    st,
		identity: identity,
		policy:   policy,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Resolve validates creds and returns the session they authorize. It fails
// on the first failing step and never returns a partial session.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials, requestID string) (model.SessionContext, error) {
	creds = creds.trimmed()
	if creds.Email == "" || creds.AuthID == "" || creds.EntityID == "" {
		return model.SessionContext{}, apperr.New(apperr.KindAuthHeaderMissing, MsgSessionHeadersMissing)
	}
	entityID, err := uuid.Parse(creds.EntityID)
	if err != nil {
		return model.SessionContext{}, apperr.Wrap(err, apperr.KindInvalidEntityID, msgInvalidEntityID)
	}

	user, err := r.resolveUser(ctx, creds.Email, creds.AuthID)
	if err != nil {
		return model.SessionContext{}, err
	}

	entity, err := r.store.GetEntity(ctx, entityID.String())
	switch {
	case errors.Is(err, store.ErrNotFound):
		zap.L().Warn("auth: entity not found", zap.String("entity_id", creds.EntityID))
		return model.SessionContext{}, apperr.New(apperr.KindEntityNotFound, msgEntityNotFound)
	case err != nil:
		return model.SessionContext{}, apperr.Wrap(err, apperr.KindInternal, msgServiceError)
	case !entity.IsActive:
		return model.SessionContext{}, apperr.New(apperr.KindEntityInactive, msgEntityInactive)
	}

	m, err := r.store.GetMembership(ctx, user.ID, entity.ID)
	switch {
	case errors.Is(err, store.ErrNotFound) || (err == nil && !m.IsActive):
		zap.L().Warn("auth: no access to entity",
			zap.String("user_id", user.ID),
			zap.String("entity_id", entity.ID),
		)
		return model.SessionContext{}, apperr.New(apperr.KindAccessDenied, msgAccessDenied)
	case err != nil:
		return model.SessionContext{}, apperr.Wrap(err, apperr.KindInternal, msgServiceError)
	}

	return model.SessionContext{
		User:       *user,
		Entity:     *entity,
		Membership: *m,
		RequestID:  requestID,
	}, nil
}

// Me resolves the user behind email and authID without an entity.
func (r *Resolver) Me(ctx context.Context, email, authID string) (*model.User, error) {
	email, authID = strings.TrimSpace(email), strings.TrimSpace(authID)
	if email == "" || authID == "" {
		return nil, apperr.New(apperr.KindAuthHeaderMissing, MsgUserHeadersMissing)
	}
	return r.resolveUser(ctx, email, authID)
}

// Check is Me that never fails: it reports whether the headers identify a
// user.
func (r *Resolver) Check(ctx context.Context, email, authID string) (*model.User, bool) {
	u, err := r.Me(ctx, email, authID)
	if err != nil {
		if !apperr.Is(err, apperr.KindAuthHeaderMissing) {
			zap.L().Info("auth: check failed", zap.String("email", email), zap.Error(err))
		}
		return nil, false
	}
	return u, true
}

// resolveUser finds or provisions the user. Concurrent first-time requests
// in this process share one provisioning call; across processes the
// unique email constraint decides and the losers re-read.
func (r *Resolver) resolveUser(ctx context.Context, email, authID string) (*model.User, error) {
	u, err := r.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return checkUser(u, authID)
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Wrap(err, apperr.KindInternal, msgServiceError)
	}

	v, err, _ := r.group.Do(strings.ToLower(email)+"\x00"+authID, func() (any, error) {
		return r.provision(context.WithoutCancel(ctx), email, authID)
	})
	if err != nil {
		return nil, err
	}
	// Shared callers each get their own copy.
	cp := *v.(*model.User)
	return &cp, nil
}

func (r *Resolver) provision(ctx context.Context, email, authID string) (*model.User, error) {
	log := zap.L().With(zap.String("email", email))
	log.Info("auth: user not found locally, checking identity provider")

	profile, err := resilience.DoVal(ctx, r.policy, func(ctx context.Context) (*workos.Profile, error) {
		p, err := r.identity.GetUser(ctx, authID)
		var se *workos.StatusError
		if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
			return nil, &resilience.TransientError{Err: err, StatusCode: se.StatusCode}
		}
		return p, err
	})
	switch {
	case errors.Is(err, workos.ErrUnknownUser):
		log.Warn("auth: identity provider rejected credentials")
		return nil, apperr.Wrap(err, apperr.KindInvalidCredentials, msgInvalidCredentials)
	case err != nil:
		log.Error("auth: identity provider lookup failed", zap.Error(err))
		return nil, apperr.Wrap(err, apperr.KindInternal, msgServiceError)
	case !strings.EqualFold(strings.TrimSpace(profile.Email), email):
		log.Warn("auth: identity provider email mismatch")
		return nil, apperr.New(apperr.KindInvalidCredentials, msgInvalidCredentials)
	}

	now := r.now().UTC()
	u := &model.User{
		ID:        r.newID(),
		Email:     email,
		AuthID:    authID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = r.store.CreateUser(ctx, u)
	if errors.Is(err, store.ErrDuplicate) {
		log.Info("auth: user provisioned concurrently, re-reading")
		existing, gerr := r.store.GetUserByEmail(ctx, email)
		if gerr != nil {
			return nil, apperr.Wrap(gerr, apperr.KindInternal, msgServiceError)
		}
		return checkUser(existing, authID)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, msgServiceError)
	}
	log.Info("auth: user provisioned", zap.String("user_id", u.ID))
	return u, nil
}

// checkUser rejects inactive users and auth ID mismatches alike.
func checkUser(u *model.User, authID string) (*model.User, error) {
	if !u.IsActive || u.AuthID != authID {
		zap.L().Warn("auth: credentials do not match user", zap.String("user_id", u.ID))
		return nil, apperr.New(apperr.KindInvalidCredentials, msgInvalidCredentials)
	}
	return u, nil
}

// Register creates the user or, when the email or auth ID is already
// known, rebinds its auth ID. created reports whether a row was inserted.
func (r *Resolver) Register(ctx context.Context, req RegisterRequest) (u *model.User, created bool, err error) {
	req.Email = strings.TrimSpace(req.Email)
	req.AuthID = strings.TrimSpace(req.AuthID)
	if req.Email == "" || req.AuthID == "" {
		return nil, false, apperr.New(apperr.KindValidation, "email and auth_id are required")
	}

	for attempt := 0; attempt < 2; attempt++ {
		existing, err := r.findForRegister(ctx, req)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			if existing.AuthID != req.AuthID {
				existing.AuthID = req.AuthID
				existing.UpdatedAt = r.now().UTC()
				err := r.store.UpdateUser(ctx, existing)
				if errors.Is(err, store.ErrDuplicate) {
					return nil, false, apperr.Wrap(err, apperr.KindConflict, "auth_id is already registered to another user")
				}
				if err != nil {
					return nil, false, apperr.Wrap(err, apperr.KindInternal, "Failed to register user")
				}
				zap.L().Info("auth: rebound auth id", zap.String("user_id", existing.ID))
			}
			return existing, false, nil
		}

		now := r.now().UTC()
		u = &model.User{
			ID:        r.newID(),
			Email:     req.Email,
			AuthID:    req.AuthID,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = r.store.CreateUser(ctx, u)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, false, apperr.Wrap(err, apperr.KindInternal, "Failed to register user")
		}
		zap.L().Info("auth: user registered", zap.String("user_id", u.ID))
		return u, true, nil
	}
	return nil, false, apperr.Wrap(eris.New("auth: register kept colliding"), apperr.KindInternal, "Failed to register user")
}

func (r *Resolver) findForRegister(ctx context.Context, req RegisterRequest) (*model.User, error) {
	u, err := r.store.GetUserByEmail(ctx, req.Email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(err, apperr.KindInternal, "Failed to register user")
	}
	u, err = r.store.GetUserByAuthID(ctx, req.AuthID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(err, apperr.KindInternal, "Failed to register user")
	}
	return nil, nil
}
