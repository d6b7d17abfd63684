package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/mfenderov/duyuru-watch/pkg/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const backendS3 = "s3"

// S3Config holds S3/MinIO store configuration.
type S3Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	SnapshotKey     string // Object name under Prefix, ".json" is appended
}

// S3 stores the snapshot as one JSON object; a PUT replaces it atomically.
type S3 struct {
	client *minio.Client
	bucket string
	object string
}

// NewS3 creates an S3/MinIO store.
func NewS3(config S3Config) (*S3, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if config.SnapshotKey == "" {
		return nil, fmt.Errorf("snapshot key is required")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &S3{
		client: client,
		bucket: config.Bucket,
		object: path.Join(config.Prefix, config.SnapshotKey+".json"),
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Object returns the object name holding the snapshot.
func (s *S3) Object() string {
	return s.object
}

func (s *S3) Load(ctx context.Context) (models.Snapshot, error) {
	data, err := s.get(ctx)
	if errors.Is(err, ErrNotFound) {
		return models.Snapshot{}, nil
	}
	if err != nil {
		return models.Snapshot{}, &StoreError{Op: "load", Backend: backendS3, Err: err}
	}
	snap, err := decodeDocument(data)
	if err != nil {
		return models.Snapshot{}, &StoreError{Op: "load", Backend: backendS3, Err: err}
	}
	return snap, nil
}

func (s *S3) get(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}

func notFound(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}

func (s *S3) Save(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(newDocument(snap))
	if err != nil {
		return &StoreError{Op: "save", Backend: backendS3, Err: fmt.Errorf("failed to marshal snapshot: %w", err)}
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return &StoreError{Op: "save", Backend: backendS3, Err: err}
	}
	return nil
}

func (s *S3) Reset(ctx context.Context) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.object, minio.RemoveObjectOptions{}); err != nil {
		return &StoreError{Op: "reset", Backend: backendS3, Err: err}
	}
	return nil
}

func (s *S3) Close() error {
	return nil
}
