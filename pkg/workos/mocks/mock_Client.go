// Package mocks provides test doubles for the workos client.
package mocks

import (
	"context"

	workos "github.com/lumarank/lumarank/pkg/workos"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GetUser provides a mock function with given fields: ctx, authID
func (_m *MockClient) GetUser(ctx context.Context, authID string) (*workos.Profile, error) {
	ret := _m.Called(ctx, authID)

	if len(ret) == 0 {
		panic("no return value specified for GetUser")
	}

	var r0 *workos.Profile
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*workos.Profile, error)); ok {
		return rf(ctx, authID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *workos.Profile); ok {
		r0 = rf(ctx, authID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*workos.Profile)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, authID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
