package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"statcube/internal/domain"
)

// Compile-time check.
var _ domain.BlobStore = (*S3Store)(nil)

// S3Store stores buffers in an S3-compatible bucket under
// datasets/<datasetID>/<filename>. Path-style addressing is used so
// Hetzner/MinIO style endpoints work.
type S3Store struct {
	client *s3.Client
	bucket string
}

// S3Config holds the credentials and endpoint for an S3-compatible store.
type S3Config struct {
	KeyID    string
	Secret   string
	Endpoint string // host only, e.g. "fsn1.your-objectstorage.com"
	Region   string
	Bucket   string
}

// NewS3Store creates an S3-backed blob store.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.KeyID == "" || cfg.Secret == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 config is incomplete")
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.KeyID, cfg.Secret, "",
		),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String("https://" + cfg.Endpoint)
	}

	return &S3Store{client: s3.New(opts), bucket: cfg.Bucket}, nil
}

func s3Key(datasetID, filename string) string {
	return "datasets/" + datasetID + "/" + filename
}

// LoadBuffer reads the stored bytes for a key.
func (s *S3Store) LoadBuffer(ctx context.Context, datasetID, filename string) ([]byte, error) {
	rc, err := s.LoadStream(ctx, datasetID, filename)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.ErrTransientStorage(err, "read s3 object %s: %v", s3Key(datasetID, filename), err)
	}
	return data, nil
}

// SaveBuffer writes bytes for a key.
func (s *S3Store) SaveBuffer(ctx context.Context, datasetID, filename string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key(datasetID, filename)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return mapS3Error(err, datasetID, filename)
	}
	return nil
}

// Delete removes the stored bytes for a key.
func (s *S3Store) Delete(ctx context.Context, datasetID, filename string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key(datasetID, filename)),
	})
	if err != nil {
		return mapS3Error(err, datasetID, filename)
	}
	return nil
}

// LoadStream opens the stored bytes for streaming reads.
func (s *S3Store) LoadStream(ctx context.Context, datasetID, filename string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key(datasetID, filename)),
	})
	if err != nil {
		return nil, mapS3Error(err, datasetID, filename)
	}
	return out.Body, nil
}

func mapS3Error(err error, datasetID, filename string) error {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) || strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound") {
		return domain.ErrNotFound("file %q not found for dataset %q", filename, datasetID)
	}
	return domain.ErrTransientStorage(err, "s3 %s: %v", s3Key(datasetID, filename), err)
}
