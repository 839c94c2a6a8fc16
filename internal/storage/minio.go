package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds configuration for a MinIO (or any S3-compatible) store.
type MinioConfig struct {
	// Endpoint is host:port or a full URL; an https scheme enables TLS
	Endpoint string
	// AccessKeyID and SecretAccessKey are static credentials
	AccessKeyID     string
	SecretAccessKey string
	// Region is optional
	Region string
	// UseSSL forces TLS when Endpoint carries no scheme
	UseSSL bool
}

// MinioStorage implements ObjectStorage on top of minio-go.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage creates a MinIO-backed storage for bucket.
func NewMinioStorage(bucket string, cfg MinioConfig) (*MinioStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio: endpoint is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("minio: bucket is required")
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: failed to create client: %w", err)
	}

	return &MinioStorage{client: client, bucket: bucket}, nil
}

// Get reads an object into memory.
func (m *MinioStorage) Get(ctx context.Context, objectPath string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinioError(err, ErrDownloadFailed)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinioError(err, ErrDownloadFailed)
	}
	return data, nil
}

// Put writes an object.
func (m *MinioStorage) Put(ctx context.Context, objectPath string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectPath, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return classifyMinioError(err, ErrUploadFailed)
	}
	return nil
}

// Delete removes an object.
func (m *MinioStorage) Delete(ctx context.Context, objectPath string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinioError(err, ErrDeleteFailed)
	}
	return nil
}

// Exists checks if an object exists.
func (m *MinioStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, objectPath, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, classifyMinioError(err, ErrDownloadFailed)
	}
	return true, nil
}

// ListObjects returns all objects under prefix (recursive).
func (m *MinioStorage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	objectCh := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objectCh {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return objects, nil
}

// classifyMinioError maps minio error responses onto the storage sentinels.
func classifyMinioError(err error, fallback error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey":
		return ErrObjectNotFound
	case "NoSuchBucket":
		return fmt.Errorf("%w: bucket does not exist: %v", fallback, err)
	}
	return fmt.Errorf("%w: %v", fallback, err)
}
