// Package workos looks up identities in WorkOS User Management.
package workos

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"github.com/workos/workos-go/v4/pkg/usermanagement"
	"github.com/workos/workos-go/v4/pkg/workos_errors"
)

// Profile is the subset of a WorkOS user the resolver needs.
type Profile struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// Client resolves auth IDs to profiles.
type Client interface {
	GetUser(ctx context.Context, authID string) (*Profile, error)
}

// ErrUnknownUser means WorkOS rejected the auth ID.
var ErrUnknownUser = eris.New("workos: unknown user")

// StatusError carries the HTTP status of a failed lookup.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

type sdkClient struct {
	um *usermanagement.Client
}

// NewClient builds a client. endpoint may be empty for the public API.
func NewClient(apiKey, endpoint string) Client {
	um := usermanagement.NewClient(apiKey)
	if endpoint != "" {
		um.Endpoint = endpoint
	}
	return &sdkClient{um: um}
}

func (c *sdkClient) GetUser(ctx context.Context, authID string) (*Profile, error) {
	u, err := c.um.GetUser(ctx, usermanagement.GetUserOpts{User: authID})
	if err != nil {
		var httpErr workos_errors.HTTPError
		if errors.As(err, &httpErr) {
			switch httpErr.Code {
			case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
				return nil, ErrUnknownUser
			}
			return nil, &StatusError{StatusCode: httpErr.Code, Err: eris.Wrapf(err, "workos: get user %s", authID)}
		}
		return nil, eris.Wrapf(err, "workos: get user %s", authID)
	}
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}, nil
}
