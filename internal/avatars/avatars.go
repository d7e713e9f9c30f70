// Package avatars stores user profile pictures, keyed by user id.
package avatars

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// Store holds one avatar blob per user. A Get for a user with no avatar
// returns (nil, nil).
type Store interface {
	Put(ctx context.Context, userID uuid.UUID, data []byte) error
	Get(ctx context.Context, userID uuid.UUID) ([]byte, error)
}

// DiskStore keeps avatars as files in a single directory, one per user.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the directory if needed and returns a disk-backed
// avatar store.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create avatar directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) path(userID uuid.UUID) string {
	return filepath.Join(s.dir, userID.String())
}

func (s *DiskStore) Put(ctx context.Context, userID uuid.UUID, data []byte) error {
	return os.WriteFile(s.path(userID), data, 0o644)
}

func (s *DiskStore) Get(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	data, err := os.ReadFile(s.path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// S3Store keeps avatars as objects in a bucket, named by user id.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates a bucket-backed avatar store. Credentials and region
// come from the default AWS config chain; endpoint may point at a
// S3-compatible service such as MinIO.
func NewS3Store(ctx context.Context, bucket, endpoint string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: bucket}, nil
}

func (s *S3Store) Put(ctx context.Context, userID uuid.UUID, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(userID.String()),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to store avatar: %w", err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(userID.String()),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch avatar: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
