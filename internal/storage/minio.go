package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ppiankov/claimgate/internal/model"
)

// MinioStore implements ObjectStore against a MinIO/S3 bucket
type MinioStore struct {
	client       *minio.Client
	bucket       string
	policyObject string
}

// NewMinioStore connects to the object store and ensures the claims
// bucket exists
func NewMinioStore(ctx context.Context, cfg model.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{
		client:       client,
		bucket:       cfg.Bucket,
		policyObject: cfg.PolicyObject,
	}, nil
}

// Put uploads an object under <claimID>/<name>
func (s *MinioStore) Put(ctx context.Context, claimID, name string, data []byte, contentType string) error {
	objectName := claimID + "/" + name
	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", objectName, err)
	}
	return nil
}

// Get downloads an object, mapping a missing key onto ErrNotFound
func (s *MinioStore) Get(ctx context.Context, claimID, name string) ([]byte, error) {
	return s.getObject(ctx, claimID+"/"+name)
}

// List returns the object names stored under a claim prefix
func (s *MinioStore) List(ctx context.Context, claimID string) ([]string, error) {
	prefix := claimID + "/"
	var names []string
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, object.Err)
		}
		names = append(names, object.Key[len(prefix):])
	}
	return names, nil
}

// GetPolicy downloads the shared policy document
func (s *MinioStore) GetPolicy(ctx context.Context) ([]byte, error) {
	return s.getObject(ctx, s.policyObject)
}

func (s *MinioStore) getObject(ctx context.Context, objectName string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", objectName, err)
	}
	defer func() { _ = object.Close() }()

	data, err := io.ReadAll(object)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", objectName, err)
	}
	return data, nil
}
