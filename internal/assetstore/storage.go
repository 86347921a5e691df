package assetstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage is the persistence backend SaveSnapshot/LoadSnapshot write
// to and read from, standing in for the upgrade hooks' serialization
// target. It's the same shape as the teacher's object-storage
// abstraction (one blob per key, existence check, nothing else),
// repurposed here to hold one key: the serialized snapshot.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}

// S3Storage persists snapshots to an S3-compatible bucket.
type S3Storage struct {
	client *s3.Client
	bucket string
}

// NewS3Storage builds an S3Storage from static credentials, the same
// construction the teacher's bucket.go uses for its CT log object
// store.
func NewS3Storage(region, bucket, endpoint, username, password string) *S3Storage {
	cfg := aws.Config{
		Credentials:  credentials.NewStaticCredentialsProvider(username, password, ""),
		BaseEndpoint: aws.String(endpoint),
		Region:       region,
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &S3Storage{client: client, bucket: bucket}
}

func (b *S3Storage) Get(ctx context.Context, key string) ([]byte, error) {
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer output.Body.Close()
	return io.ReadAll(output.Body)
}

func (b *S3Storage) Set(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (b *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var responseError *awshttp.ResponseError
		if errors.As(err, &responseError) && responseError.ResponseError.HTTPStatusCode() == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FsStorage persists snapshots under a local directory, for
// single-process or development deployments that don't need S3.
type FsStorage struct {
	root string
}

func NewFsStorage(rootDirectory string) *FsStorage {
	return &FsStorage{root: rootDirectory}
}

func (f *FsStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(f.root, key))
}

func (f *FsStorage) Set(ctx context.Context, key string, data []byte) error {
	path := filepath.Join(f.root, key)
	if err := os.WriteFile(path, data, 0644); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("assetstore: create snapshot directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (f *FsStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(f.root, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
