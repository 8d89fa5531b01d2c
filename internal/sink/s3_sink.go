package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config names the bucket an S3Sink writes artifacts to. Adapted
// from the teacher's artifact.S3Config.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Sink is a ReportSink backed by an S3-compatible object store,
// grounded on the teacher's artifact.S3Store
// (internal/gateway/repository/artifact/s3_store.go) for the
// lazy-bucket-creation and presigned-URL plumbing. Unlike the
// teacher's generic artifact store, object keys live under a fixed
// "runs/<run_id>/artifacts/" prefix (so a bucket can be shared with
// other object kinds without a collision) and every upload carries the
// content type implied by sink.go's Path* vocabulary, so a presigned
// polished_article.md or url_to_info.json renders in a browser instead
// of force-downloading as an opaque blob.
type S3Sink struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
	appendMu   sync.Mutex
}

// NewS3Sink dials an S3-compatible endpoint and returns a sink that
// lazily ensures cfg.Bucket exists before the first write.
func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Sink{client: client, bucketName: bucket, region: region}, nil
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("sink is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Put uploads content as runID/path.
func (s *S3Sink) Put(ctx context.Context, runID, path string, content []byte) error {
	runID = strings.TrimSpace(runID)
	path = strings.TrimSpace(path)
	if runID == "" {
		return fmt.Errorf("run_id is required")
	}
	if path == "" {
		return fmt.Errorf("path is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if content == nil {
		content = []byte{}
	}

	key := objectKey(runID, path)
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentTypeFor(path),
	})
	return err
}

// Get downloads runID/path, returning ErrNotFound if it is absent.
func (s *S3Sink) Get(ctx context.Context, runID, path string) ([]byte, error) {
	runID = strings.TrimSpace(runID)
	path = strings.TrimSpace(path)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	key := objectKey(runID, path)
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// List returns every object path stored under runID, sorted.
func (s *S3Sink) List(ctx context.Context, runID string) ([]string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	prefix := runArtifactPrefix(runID)
	paths := make([]string, 0, 32)
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" {
			continue
		}
		paths = append(paths, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(paths)
	return paths, nil
}

// AppendLine downloads the current object (if any), appends line plus
// a trailing newline, and re-uploads it. S3-compatible object stores
// have no in-place append; this is a read-modify-write, same as the
// teacher's own Put. appendMu serializes appends made through this
// sink, since llm_call_history is appended to from concurrent worker
// goroutines; appends from another process are not coordinated.
func (s *S3Sink) AppendLine(ctx context.Context, runID, path string, line []byte) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	existing, err := s.Get(ctx, runID, path)
	if err != nil && err != ErrNotFound {
		return err
	}
	updated := append(append([]byte(nil), existing...), line...)
	updated = append(updated, '\n')
	return s.Put(ctx, runID, path, updated)
}

// GetURL returns a presigned, time-limited URL for runID/path.
func (s *S3Sink) GetURL(ctx context.Context, runID, path string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("sink is nil")
	}
	key := objectKey(runID, path)
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, time.Hour, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// runArtifactPrefix scopes every run's objects under a fixed
// namespace, distinct from the teacher's bare "<run_id>/" prefix, so a
// bucket shared across projects can't collide a run id with an
// unrelated top-level object.
func runArtifactPrefix(runID string) string {
	return "runs/" + strings.TrimSpace(runID) + "/artifacts/"
}

func objectKey(runID, path string) string {
	normalized := strings.TrimLeft(strings.TrimSpace(path), "/")
	return runArtifactPrefix(runID) + normalized
}

// contentTypeFor derives the object's Content-Type from sink.go's
// Path* artifact vocabulary (by extension, since every known path is
// .md, .json, or .jsonl) instead of the teacher's constant
// "application/octet-stream", so a presigned GetURL renders the
// artifact instead of forcing a download.
func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".jsonl"):
		return "application/x-ndjson"
	case strings.HasSuffix(path, ".md"):
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

var _ ReportSink = (*S3Sink)(nil)
