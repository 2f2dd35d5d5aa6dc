// Package snapshot archives fetched HTML in S3-compatible object storage so a
// report can be audited against the exact page it was built from.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
)

// Store saves raw page snapshots.
type Store interface {
	Put(ctx context.Context, domain, requestID string, html []byte) (string, error)
}

// Config configures a MinIO-backed store.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinioStore writes snapshots to a bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// NewMinio connects to the endpoint and ensures the bucket exists.
func NewMinio(ctx context.Context, cfg Config) (*MinioStore, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: create client")
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: check bucket %s", cfg.Bucket)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, eris.Wrapf(err, "snapshot: create bucket %s", cfg.Bucket)
		}
	}

	return &MinioStore{client: cli, bucket: cfg.Bucket, now: time.Now}, nil
}

// Put uploads html and returns its object key.
func (s *MinioStore) Put(ctx context.Context, domain, requestID string, html []byte) (string, error) {
	key := ObjectKey(domain, requestID, s.now())
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(html), int64(len(html)), minio.PutObjectOptions{
		ContentType: "text/html; charset=utf-8",
	})
	if err != nil {
		return "", eris.Wrapf(err, "snapshot: put %s", key)
	}
	return key, nil
}

// ObjectKey lays snapshots out by domain and day.
func ObjectKey(domain, requestID string, at time.Time) string {
	if domain == "" {
		domain = "unknown"
	}
	return fmt.Sprintf("html/%s/%s/%s.html", domain, at.UTC().Format("2006/01/02"), requestID)
}
