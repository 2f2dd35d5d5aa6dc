package mocks

import (
	"context"

	model "github.com/lumarank/lumarank/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockTenantStore is a mock type for the TenantStore interface.
type MockTenantStore struct {
	mock.Mock
}

// CreateUser provides a mock function with given fields: ctx, u
func (_m *MockTenantStore) CreateUser(ctx context.Context, u *model.User) error {
	ret := _m.Called(ctx, u)

	if len(ret) == 0 {
		panic("no return value specified for CreateUser")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.User) error); ok {
		r0 = rf(ctx, u)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetUserByEmail provides a mock function with given fields: ctx, email
func (_m *MockTenantStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	ret := _m.Called(ctx, email)

	if len(ret) == 0 {
		panic("no return value specified for GetUserByEmail")
	}

	var r0 *model.User
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.User, error)); ok {
		return rf(ctx, email)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.User); ok {
		r0 = rf(ctx, email)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.User)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, email)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetUserByAuthID provides a mock function with given fields: ctx, authID
func (_m *MockTenantStore) GetUserByAuthID(ctx context.Context, authID string) (*model.User, error) {
	ret := _m.Called(ctx, authID)

	if len(ret) == 0 {
		panic("no return value specified for GetUserByAuthID")
	}

	var r0 *model.User
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.User, error)); ok {
		return rf(ctx, authID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.User); ok {
		r0 = rf(ctx, authID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.User)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, authID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdateUser provides a mock function with given fields: ctx, u
func (_m *MockTenantStore) UpdateUser(ctx context.Context, u *model.User) error {
	ret := _m.Called(ctx, u)

	if len(ret) == 0 {
		panic("no return value specified for UpdateUser")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.User) error); ok {
		r0 = rf(ctx, u)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// CreateEntity provides a mock function with given fields: ctx, e
func (_m *MockTenantStore) CreateEntity(ctx context.Context, e *model.Entity) error {
	ret := _m.Called(ctx, e)

	if len(ret) == 0 {
		panic("no return value specified for CreateEntity")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.Entity) error); ok {
		r0 = rf(ctx, e)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetEntity provides a mock function with given fields: ctx, id
func (_m *MockTenantStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetEntity")
	}

	var r0 *model.Entity
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Entity, error)); ok {
		return rf(ctx, id)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.Entity); ok {
		r0 = rf(ctx, id)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Entity)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CreateMembership provides a mock function with given fields: ctx, m
func (_m *MockTenantStore) CreateMembership(ctx context.Context, m *model.Membership) error {
	ret := _m.Called(ctx, m)

	if len(ret) == 0 {
		panic("no return value specified for CreateMembership")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.Membership) error); ok {
		r0 = rf(ctx, m)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetMembership provides a mock function with given fields: ctx, userID, entityID
func (_m *MockTenantStore) GetMembership(ctx context.Context, userID string, entityID string) (*model.Membership, error) {
	ret := _m.Called(ctx, userID, entityID)

	if len(ret) == 0 {
		panic("no return value specified for GetMembership")
	}

	var r0 *model.Membership
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) (*model.Membership, error)); ok {
		return rf(ctx, userID, entityID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string) *model.Membership); ok {
		r0 = rf(ctx, userID, entityID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Membership)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, userID, entityID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockTenantStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Ping provides a mock function with given fields: ctx
func (_m *MockTenantStore) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Ping")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Close provides a mock function with no fields
func (_m *MockTenantStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockTenantStore creates a new instance of MockTenantStore.
func NewMockTenantStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockTenantStore {
	mock := &MockTenantStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
