package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lumarank/lumarank/internal/model"
)

// DefaultReportCollection is where reports live unless configured otherwise.
const DefaultReportCollection = "website_crawl_data"

// MongoReportStore implements ReportStore on a MongoDB collection, one
// document per website URL.
type MongoReportStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects to uri and returns a store over database.collection.
func NewMongo(ctx context.Context, uri, database, collection string) (*MongoReportStore, error) {
	if collection == "" {
		collection = DefaultReportCollection
	}
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("lumarank").
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: connect")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, eris.Wrap(err, "mongo: ping")
	}
	return &MongoReportStore{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// reportDoc is the stored shape of a report.
type reportDoc struct {
	ObjectID             primitive.ObjectID  `bson:"_id,omitempty"`
	ReportID             string              `bson:"report_id"`
	RequestID            string              `bson:"request_id"`
	WebsiteURL           string              `bson:"website_url"`
	Domain               string              `bson:"domain"`
	CompanyName          string              `bson:"company_name"`
	PageTitle            string              `bson:"page_title"`
	MetaDescription      string              `bson:"meta_description"`
	StatusCode           int                 `bson:"status_code,omitempty"`
	ContentType          string              `bson:"content_type,omitempty"`
	RawHTMLKey           string              `bson:"raw_html_key,omitempty"`
	CompanyInfo          *model.CompanyInfo  `bson:"company_info"`
	Questions            model.QuestionSet   `bson:"questions"`
	TestResults          []model.TestResult  `bson:"test_results"`
	SEOScore             *float64            `bson:"seo_score"`
	CrawlStatus          string              `bson:"crawl_status"`
	Stage                string              `bson:"stage"`
	FailedStage          string              `bson:"failed_stage,omitempty"`
	ErrorCode            string              `bson:"error_code,omitempty"`
	ErrorMessage         string              `bson:"error_message,omitempty"`
	GenerationError      string              `bson:"generation_error,omitempty"`
	FetchDurationMs      int64               `bson:"fetch_duration_ms"`
	DurationMs           int64               `bson:"duration_ms"`
	CrawlDurationSeconds float64             `bson:"crawl_duration_seconds"`
	EntityID             string              `bson:"entity_id"`
	CreatedBy            string              `bson:"created_by"`
	CreatedAt            time.Time           `bson:"created_at"`
	UpdatedAt            time.Time           `bson:"updated_at"`
	CompletedAt          *time.Time          `bson:"crawl_completed_at,omitempty"`
}

func toDoc(r *model.AnalysisReport) reportDoc {
	return reportDoc{
		ReportID:             r.ID,
		RequestID:            r.RequestID,
		WebsiteURL:           r.WebsiteURL,
		Domain:               r.Domain,
		CompanyName:          r.CompanyName(),
		PageTitle:            r.PageTitle,
		MetaDescription:      r.MetaDescription,
		StatusCode:           r.StatusCode,
		ContentType:          r.ContentType,
		RawHTMLKey:           r.RawHTMLKey,
		CompanyInfo:          r.CompanyInfo,
		Questions:            r.Questions,
		TestResults:          r.TestResults,
		SEOScore:             r.SuccessRate,
		CrawlStatus:          string(r.Status),
		Stage:                string(r.Stage),
		FailedStage:          string(r.FailedStage),
		ErrorCode:            r.ErrorCode,
		ErrorMessage:         r.ErrorMessage,
		GenerationError:      r.GenerationError,
		FetchDurationMs:      r.FetchDurationMs,
		DurationMs:           r.DurationMs,
		CrawlDurationSeconds: float64(r.DurationMs) / 1000,
		EntityID:             r.EntityID,
		CreatedBy:            r.CreatedBy,
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
		CompletedAt:          r.CompletedAt,
	}
}

func (d reportDoc) toReport() model.AnalysisReport {
	r := model.AnalysisReport{
		ID:              d.ReportID,
		RequestID:       d.RequestID,
		WebsiteURL:      d.WebsiteURL,
		Domain:          d.Domain,
		CompanyInfo:     d.CompanyInfo,
		Questions:       d.Questions,
		TestResults:     d.TestResults,
		SuccessRate:     d.SEOScore,
		Status:          model.AnalysisStatus(d.CrawlStatus),
		Stage:           model.Stage(d.Stage),
		FailedStage:     model.Stage(d.FailedStage),
		ErrorCode:       d.ErrorCode,
		ErrorMessage:    d.ErrorMessage,
		GenerationError: d.GenerationError,
		PageTitle:       d.PageTitle,
		MetaDescription: d.MetaDescription,
		StatusCode:      d.StatusCode,
		ContentType:     d.ContentType,
		RawHTMLKey:      d.RawHTMLKey,
		FetchDurationMs: d.FetchDurationMs,
		DurationMs:      d.DurationMs,
		CreatedBy:       d.CreatedBy,
		EntityID:        d.EntityID,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		CompletedAt:     d.CompletedAt,
	}
	if r.TestResults == nil {
		r.TestResults = []model.TestResult{}
	}
	return r
}

// Migrate creates the collection's indexes.
func (s *MongoReportStore) Migrate(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "website_url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "report_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "domain", Value: 1}}},
		{Keys: bson.D{{Key: "entity_id", Value: 1}}},
		{Keys: bson.D{{Key: "crawl_status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "crawl_status", Value: 1}}},
		{Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{
			{Key: "company_name", Value: "text"},
			{Key: "page_title", Value: "text"},
			{Key: "meta_description", Value: "text"},
		}},
	})
	return eris.Wrap(err, "mongo: create indexes")
}

func (s *MongoReportStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return eris.Wrap(s.client.Ping(ctx, readpref.Primary()), "mongo: ping")
}

func (s *MongoReportStore) Close() error {
	if s.client == nil {
		return nil
	}
	return eris.Wrap(s.client.Disconnect(context.Background()), "mongo: disconnect")
}

func (s *MongoReportStore) CreateReport(ctx context.Context, r *model.AnalysisReport) error {
	_, err := s.coll.InsertOne(ctx, toDoc(r))
	if mongo.IsDuplicateKeyError(err) {
		return eris.Wrapf(ErrDuplicate, "mongo: insert report %s", r.WebsiteURL)
	}
	return eris.Wrapf(err, "mongo: insert report %s", r.WebsiteURL)
}

func (s *MongoReportStore) SaveReport(ctx context.Context, r *model.AnalysisReport) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"website_url": r.WebsiteURL},
		toDoc(r),
		options.Replace().SetUpsert(true),
	)
	return eris.Wrapf(err, "mongo: save report %s", r.WebsiteURL)
}

func (s *MongoReportStore) UpdateReport(ctx context.Context, r *model.AnalysisReport) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"report_id": r.ID}, toDoc(r))
	if mongo.IsDuplicateKeyError(err) {
		return eris.Wrapf(ErrDuplicate, "mongo: update report %s", r.ID)
	}
	if err != nil {
		return eris.Wrapf(err, "mongo: update report %s", r.ID)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoReportStore) GetReport(ctx context.Context, id string) (*model.AnalysisReport, error) {
	return s.findOne(ctx, bson.M{"report_id": id}, "get report "+id)
}

func (s *MongoReportStore) GetReportByURL(ctx context.Context, websiteURL string) (*model.AnalysisReport, error) {
	return s.findOne(ctx, bson.M{"website_url": websiteURL}, "get report by url "+websiteURL)
}

func (s *MongoReportStore) findOne(ctx context.Context, filter bson.M, op string) (*model.AnalysisReport, error) {
	var d reportDoc
	err := s.coll.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "mongo: %s", op)
	}
	r := d.toReport()
	return &r, nil
}

func (s *MongoReportStore) ListReports(ctx context.Context, f ReportFilter) ([]model.AnalysisReport, error) {
	return s.find(ctx, filterDoc(f), f, "list reports")
}

// SearchReports runs a $text query over company name, title and meta
// description.
func (s *MongoReportStore) SearchReports(ctx context.Context, query string, f ReportFilter) ([]model.AnalysisReport, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.AnalysisReport{}, nil
	}
	filter := filterDoc(f)
	filter["$text"] = bson.M{"$search": query}
	return s.find(ctx, filter, f, "search reports")
}

func filterDoc(f ReportFilter) bson.M {
	filter := bson.M{}
	if f.EntityID != "" {
		filter["entity_id"] = f.EntityID
	}
	if f.CreatedBy != "" {
		filter["created_by"] = f.CreatedBy
	}
	if f.Domain != "" {
		filter["domain"] = f.Domain
	}
	if f.Status != "" {
		filter["crawl_status"] = string(f.Status)
	}
	return filter
}

func (s *MongoReportStore) find(ctx context.Context, filter bson.M, f ReportFilter, op string) ([]model.AnalysisReport, error) {
	f = f.normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(f.Limit))

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "mongo: %s", op)
	}
	var docs []reportDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, eris.Wrapf(err, "mongo: %s decode", op)
	}
	reports := make([]model.AnalysisReport, 0, len(docs))
	for _, d := range docs {
		reports = append(reports, d.toReport())
	}
	return reports, nil
}

type statusGroup struct {
	Status      string   `bson:"_id"`
	Count       int64    `bson:"count"`
	AvgDuration *float64 `bson:"avg_duration"`
	AvgSEOScore *float64 `bson:"avg_seo_score"`
}

func (s *MongoReportStore) ReportStats(ctx context.Context, entityID string) ([]StatusStats, error) {
	pipeline := mongo.Pipeline{}
	if entityID != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"entity_id": entityID}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$crawl_status"},
			{Key: "count", Value: bson.M{"$sum": 1}},
			{Key: "avg_duration", Value: bson.M{"$avg": "$crawl_duration_seconds"}},
			{Key: "avg_seo_score", Value: bson.M{"$avg": "$seo_score"}},
		}}},
		bson.D{{Key: "$sort", Value: bson.M{"_id": 1}}},
	)

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, eris.Wrap(err, "mongo: report stats")
	}
	var groups []statusGroup
	if err := cur.All(ctx, &groups); err != nil {
		return nil, eris.Wrap(err, "mongo: report stats decode")
	}
	stats := make([]StatusStats, 0, len(groups))
	for _, g := range groups {
		st := StatusStats{Status: model.AnalysisStatus(g.Status), Count: g.Count, AvgSEOScore: g.AvgSEOScore}
		if g.AvgDuration != nil {
			st.AvgDurationSec = *g.AvgDuration
		}
		stats = append(stats, st)
	}
	return stats, nil
}

func (s *MongoReportStore) DeleteReport(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"report_id": id})
	if err != nil {
		return eris.Wrapf(err, "mongo: delete report %s", id)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
