package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/lumarank/lumarank/internal/model"
)

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func docOf(t testing.TB, r *model.AnalysisReport) bson.D {
	t.Helper()
	raw, err := bson.Marshal(toDoc(r))
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func mongoReport(id, url, status string) *model.AnalysisReport {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := testReport(id, url, "ent-1", model.AnalysisStatus(status), at)
	r.DurationMs = 4250
	return r
}

func TestMongoReportStore_CreateReport(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("inserts", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(t, s.CreateReport(context.Background(), mongoReport("r1", "https://acme.io", "completed")))
	})

	mt.Run("duplicate url", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: website_crawl_data index: website_url_1",
		}))

		err := s.CreateReport(context.Background(), mongoReport("r1", "https://acme.io", "completed"))
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestMongoReportStore_GetReport(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		want := mongoReport("r1", "https://acme.io", "completed")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, docOf(t, want)))

		got, err := s.GetReport(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, "r1", got.ID)
		assert.Equal(t, "https://acme.io", got.WebsiteURL)
		assert.Equal(t, model.StatusCompleted, got.Status)
		assert.Equal(t, int64(4250), got.DurationMs)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		require.NotNil(t, got.CompanyInfo)
		assert.Equal(t, want.CompanyInfo.Name, got.CompanyInfo.Name)
	})

	mt.Run("not found", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := s.GetReportByURL(context.Background(), "https://missing.example")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMongoReportStore_SaveAndUpdate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save upserts", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(t, s.SaveReport(context.Background(), mongoReport("r2", "https://acme.io", "failed")))
	})

	mt.Run("update missing", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := s.UpdateReport(context.Background(), mongoReport("nope", "https://acme.io", "failed"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	mt.Run("update matched", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(t, s.UpdateReport(context.Background(), mongoReport("r1", "https://acme.io", "completed")))
	})
}

func TestMongoReportStore_ListAndSearch(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("list", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			docOf(t, mongoReport("r1", "https://a.example", "completed")),
			docOf(t, mongoReport("r2", "https://b.example", "failed")),
		))

		got, err := s.ListReports(context.Background(), ReportFilter{EntityID: "ent-1", Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "r1", got[0].ID)
		assert.Equal(t, model.StatusFailed, got[1].Status)

		evt := mt.GetStartedEvent()
		require.NotNil(t, evt)
		assert.Equal(t, "find", evt.CommandName)
		assert.Equal(t, "ent-1", evt.Command.Lookup("filter", "entity_id").StringValue())
	})

	mt.Run("search uses text index", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			docOf(t, mongoReport("r1", "https://acme.io", "completed")),
		))

		got, err := s.SearchReports(context.Background(), "widgets", ReportFilter{})
		require.NoError(t, err)
		require.Len(t, got, 1)

		evt := mt.GetStartedEvent()
		require.NotNil(t, evt)
		assert.Equal(t, "widgets", evt.Command.Lookup("filter", "$text", "$search").StringValue())
	})

	mt.Run("blank search skips the server", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}

		got, err := s.SearchReports(context.Background(), "   ", ReportFilter{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMongoReportStore_ReportStats(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("groups by status", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "completed"}, {Key: "count", Value: int64(3)}, {Key: "avg_duration", Value: 12.5}, {Key: "avg_seo_score", Value: 0.5}},
			bson.D{{Key: "_id", Value: "failed"}, {Key: "count", Value: int64(1)}, {Key: "avg_duration", Value: 2.0}, {Key: "avg_seo_score", Value: nil}},
		))

		stats, err := s.ReportStats(context.Background(), "ent-1")
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, model.StatusCompleted, stats[0].Status)
		assert.Equal(t, int64(3), stats[0].Count)
		assert.InDelta(t, 12.5, stats[0].AvgDurationSec, 1e-9)
		require.NotNil(t, stats[0].AvgSEOScore)
		assert.InDelta(t, 0.5, *stats[0].AvgSEOScore, 1e-9)
		assert.Nil(t, stats[1].AvgSEOScore)
	})
}

func TestMongoReportStore_DeleteAndMigrate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("delete missing", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		assert.ErrorIs(t, s.DeleteReport(context.Background(), "nope"), ErrNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		assert.NoError(t, s.DeleteReport(context.Background(), "r1"))
	})

	mt.Run("migrate", func(mt *mtest.T) {
		s := &MongoReportStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(t, s.Migrate(context.Background()))
	})
}
