// Package mocks provides test doubles for the store interfaces.
package mocks

import (
	"context"

	model "github.com/lumarank/lumarank/internal/model"
	store "github.com/lumarank/lumarank/internal/store"
	mock "github.com/stretchr/testify/mock"
)

// MockReportStore is a mock type for the ReportStore interface.
type MockReportStore struct {
	mock.Mock
}

// CreateReport provides a mock function with given fields: ctx, r
func (_m *MockReportStore) CreateReport(ctx context.Context, r *model.AnalysisReport) error {
	ret := _m.Called(ctx, r)

	if len(ret) == 0 {
		panic("no return value specified for CreateReport")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.AnalysisReport) error); ok {
		r0 = rf(ctx, r)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// SaveReport provides a mock function with given fields: ctx, r
func (_m *MockReportStore) SaveReport(ctx context.Context, r *model.AnalysisReport) error {
	ret := _m.Called(ctx, r)

	if len(ret) == 0 {
		panic("no return value specified for SaveReport")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.AnalysisReport) error); ok {
		r0 = rf(ctx, r)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// UpdateReport provides a mock function with given fields: ctx, r
func (_m *MockReportStore) UpdateReport(ctx context.Context, r *model.AnalysisReport) error {
	ret := _m.Called(ctx, r)

	if len(ret) == 0 {
		panic("no return value specified for UpdateReport")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.AnalysisReport) error); ok {
		r0 = rf(ctx, r)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetReport provides a mock function with given fields: ctx, id
func (_m *MockReportStore) GetReport(ctx context.Context, id string) (*model.AnalysisReport, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetReport")
	}

	var r0 *model.AnalysisReport
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.AnalysisReport, error)); ok {
		return rf(ctx, id)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.AnalysisReport); ok {
		r0 = rf(ctx, id)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.AnalysisReport)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetReportByURL provides a mock function with given fields: ctx, websiteURL
func (_m *MockReportStore) GetReportByURL(ctx context.Context, websiteURL string) (*model.AnalysisReport, error) {
	ret := _m.Called(ctx, websiteURL)

	if len(ret) == 0 {
		panic("no return value specified for GetReportByURL")
	}

	var r0 *model.AnalysisReport
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.AnalysisReport, error)); ok {
		return rf(ctx, websiteURL)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.AnalysisReport); ok {
		r0 = rf(ctx, websiteURL)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.AnalysisReport)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, websiteURL)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListReports provides a mock function with given fields: ctx, f
func (_m *MockReportStore) ListReports(ctx context.Context, f store.ReportFilter) ([]model.AnalysisReport, error) {
	ret := _m.Called(ctx, f)

	if len(ret) == 0 {
		panic("no return value specified for ListReports")
	}

	var r0 []model.AnalysisReport
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, store.ReportFilter) ([]model.AnalysisReport, error)); ok {
		return rf(ctx, f)
	}
	if rf, ok := ret.Get(0).(func(context.Context, store.ReportFilter) []model.AnalysisReport); ok {
		r0 = rf(ctx, f)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.AnalysisReport)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, store.ReportFilter) error); ok {
		r1 = rf(ctx, f)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// SearchReports provides a mock function with given fields: ctx, query, f
func (_m *MockReportStore) SearchReports(ctx context.Context, query string, f store.ReportFilter) ([]model.AnalysisReport, error) {
	ret := _m.Called(ctx, query, f)

	if len(ret) == 0 {
		panic("no return value specified for SearchReports")
	}

	var r0 []model.AnalysisReport
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, store.ReportFilter) ([]model.AnalysisReport, error)); ok {
		return rf(ctx, query, f)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, store.ReportFilter) []model.AnalysisReport); ok {
		r0 = rf(ctx, query, f)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.AnalysisReport)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, store.ReportFilter) error); ok {
		r1 = rf(ctx, query, f)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ReportStats provides a mock function with given fields: ctx, entityID
func (_m *MockReportStore) ReportStats(ctx context.Context, entityID string) ([]store.StatusStats, error) {
	ret := _m.Called(ctx, entityID)

	if len(ret) == 0 {
		panic("no return value specified for ReportStats")
	}

	var r0 []store.StatusStats
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]store.StatusStats, error)); ok {
		return rf(ctx, entityID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []store.StatusStats); ok {
		r0 = rf(ctx, entityID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]store.StatusStats)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, entityID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// DeleteReport provides a mock function with given fields: ctx, id
func (_m *MockReportStore) DeleteReport(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for DeleteReport")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		r0 = rf(ctx, id)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockReportStore) Migrate(ctx context.Context) error {
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
func (_m *MockReportStore) Ping(ctx context.Context) error {
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
func (_m *MockReportStore) Close() error {
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

// NewMockReportStore creates a new instance of MockReportStore.
func NewMockReportStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockReportStore {
	mock := &MockReportStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
