// Package mocks provides test doubles for the fetcher.
package mocks

import (
	"context"

	fetcher "github.com/lumarank/lumarank/internal/fetcher"
	mock "github.com/stretchr/testify/mock"
)

// MockFetcher is a mock type for the Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

// Fetch provides a mock function with given fields: ctx, rawURL
func (_m *MockFetcher) Fetch(ctx context.Context, rawURL string) (*fetcher.Page, error) {
	ret := _m.Called(ctx, rawURL)

	if len(ret) == 0 {
		panic("no return value specified for Fetch")
	}

	var r0 *fetcher.Page
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*fetcher.Page, error)); ok {
		return rf(ctx, rawURL)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *fetcher.Page); ok {
		r0 = rf(ctx, rawURL)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*fetcher.Page)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, rawURL)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockFetcher creates a new instance of MockFetcher.
func NewMockFetcher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockFetcher {
	mock := &MockFetcher{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
