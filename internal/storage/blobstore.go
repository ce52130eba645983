// Package storage keeps original file bytes in object storage. Validated
// files wait under tmp/ until promotion moves them to uploads/.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"cymbalrag/internal/errs"
)

const (
	tempPrefix   = "tmp/"
	uploadPrefix = "uploads/"
)

// BlobStore reads and writes original file content.
type BlobStore interface {
	PutTemp(ctx context.Context, filename string, data []byte, contentType string) (string, error)
	PutUpload(ctx context.Context, filename string, data []byte, contentType string) (string, error)
	Promote(ctx context.Context, tempPath, filename string) (string, error)
	GetUpload(ctx context.Context, filename string) ([]byte, string, error)
	DeleteUpload(ctx context.Context, filename string) error
	DeleteTemp(ctx context.Context, tempPath string) error
}

// MinIOStore implements BlobStore on a single bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore creates a MinIOStore over the configured bucket.
func NewMinIOStore(client *minio.Client, bucket string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket}
}

// TempPath returns the object key a filename occupies while pending
// promotion.
func TempPath(filename string) string { return tempPrefix + filename }

// UploadPath returns the object key of a promoted file.
func UploadPath(filename string) string { return uploadPrefix + filename }

// PutTemp writes the file under tmp/ and returns its object key.
func (s *MinIOStore) PutTemp(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	return s.put(ctx, TempPath(filename), data, contentType)
}

// PutUpload writes the file under uploads/ and returns its object key.
func (s *MinIOStore) PutUpload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	return s.put(ctx, UploadPath(filename), data, contentType)
}

func (s *MinIOStore) put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", errs.Externalf("cannot store object '%s': %v", key, err)
	}
	return key, nil
}

// Promote moves a temp object to uploads/ by server-side copy then delete.
func (s *MinIOStore) Promote(ctx context.Context, tempPath, filename string) (string, error) {
	dst := UploadPath(filename)
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: s.bucket, Object: tempPath},
	)
	if err != nil {
		return "", errs.Externalf("cannot promote '%s' to '%s': %v", tempPath, dst, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, tempPath, minio.RemoveObjectOptions{}); err != nil {
		return "", errs.Externalf("cannot remove temp object '%s': %v", tempPath, err)
	}
	return dst, nil
}

// GetUpload reads a promoted file's bytes and content type.
func (s *MinIOStore) GetUpload(ctx context.Context, filename string) ([]byte, string, error) {
	key := UploadPath(filename)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", errs.Externalf("cannot open object '%s': %v", key, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, "", errs.NotFoundf("object '%s' not found", key)
		}
		return nil, "", errs.Externalf("cannot stat object '%s': %v", key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", errs.Externalf("cannot read object '%s': %v", key, err)
	}
	return data, stat.ContentType, nil
}

// DeleteUpload removes a promoted file.
func (s *MinIOStore) DeleteUpload(ctx context.Context, filename string) error {
	key := UploadPath(filename)
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errs.Externalf("cannot remove object '%s': %v", key, err)
	}
	return nil
}

// DeleteTemp removes a pending temp object. A missing object is not an
// error, cleanup must be idempotent.
func (s *MinIOStore) DeleteTemp(ctx context.Context, tempPath string) error {
	if tempPath == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, tempPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("cannot remove temp object '%s': %w", tempPath, err)
	}
	return nil
}

var _ BlobStore = (*MinIOStore)(nil)
