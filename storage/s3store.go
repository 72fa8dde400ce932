package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

/*
Storage provider for S3-compatible object storage, using the minio client
library. Useful for serving a prebuilt catalog octree from a bucket instead
of shipping the multi-gigabyte file with the application.
*/

////////////////////////////////////////////////////////////////////////////////

const minioErrObjectNotExist = "The specified key does not exist."

// S3Store is a storage provider backed by an S3-compatible bucket.
type S3Store struct {
	mc     *minio.Client
	bucket string
}

// NewS3Store returns a new S3Store over the given client and bucket.
func NewS3Store(mc *minio.Client, bucket string) *S3Store {
	return &S3Store{mc: mc, bucket: bucket}
}

// Put stores an object in the bucket.
func (s *S3Store) Put(ctx context.Context, object string, data []byte) error {
	_, err := s.mc.PutObject(
		ctx,
		s.bucket,
		object,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{},
	)
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// GetRange retrieves a byte range from an object in the bucket.
func (s *S3Store) GetRange(ctx context.Context, object string, offset int64, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, ErrInvalidRange
	}
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(offset, offset+length-1); err != nil {
		return nil, fmt.Errorf("failed to set range: %w", err)
	}
	obj, err := s.mc.GetObject(ctx, s.bucket, object, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()
	buf := make([]byte, length)
	if _, err := io.ReadFull(obj, buf); err != nil {
		if err.Error() == minioErrObjectNotExist {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to read object range: %w", err)
	}
	return buf, nil
}

// Delete removes an object from the bucket.
func (s *S3Store) Delete(ctx context.Context, object string) error {
	if err := s.mc.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		if err.Error() == minioErrObjectNotExist {
			return nil
		}
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

func (s *S3Store) String() string {
	return fmt.Sprintf("s3(%s)", s.bucket)
}
