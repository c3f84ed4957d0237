package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/savaki/batch-provisioner/internal/resource"
)

// S3API is the subset of the S3 client used by ObjectStore
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ObjectStore reads objects from S3
type ObjectStore struct {
	client S3API
}

func NewObjectStore(client S3API) *ObjectStore {
	return &ObjectStore{client: client}
}

// GetObjectBody returns the full body of bucket/key as a string
func (o *ObjectStore) GetObjectBody(ctx context.Context, bucket, key string) (s string, err error) {
	logger := zerolog.Ctx(ctx)

	defer func(begin time.Time) {
		logger.Debug().
			Int("length", len(s)).
			Err(err).
			Str("bucket", bucket).
			Str("key", key).
			Dur("duration", time.Since(begin)).
			Msg("Retrieved S3 object body")
	}(time.Now())

	body, err := o.open(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	//goland:noinspection GoUnhandledErrorResult
	defer body.Close()

	content, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read object content: %w", err)
	}

	return string(content), nil
}

// Download copies the object at loc into dir/<filename> and returns the path
func (o *ObjectStore) Download(ctx context.Context, loc resource.Location, dir string) (path string, err error) {
	logger := zerolog.Ctx(ctx)

	path = filepath.Join(dir, loc.Filename)

	defer func(begin time.Time) {
		logger.Info().
			Err(err).
			Str("uri", loc.URI()).
			Str("path", path).
			Dur("duration", time.Since(begin)).
			Msg("Downloaded S3 object")
	}(time.Now())

	body, err := o.open(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return "", err
	}
	//goland:noinspection GoUnhandledErrorResult
	defer body.Close()

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	return path, nil
}

func (o *ObjectStore) open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	result, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s from bucket %s: %w", key, bucket, err)
	}
	return result.Body, nil
}
