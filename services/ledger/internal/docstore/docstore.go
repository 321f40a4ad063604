// Package docstore archives pact source documents in object storage. Records
// reference documents by content hash only; the archive is where auditors go
// to resolve a hash back to bytes.
package docstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"grantlane/pkg/canonhash"
	"grantlane/pkg/config"
)

const presignExpiry = 24 * time.Hour

type Store struct {
	client *minio.Client
	bucket string
}

func New(cfg config.DocsConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the archive bucket if missing. Safe on every startup.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Put stores a document under its own content hash and returns that hash.
// Re-uploading identical bytes lands on the same object, so the archive
// deduplicates by construction.
func (s *Store) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	hash := canonhash.SumBytes(data)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectName(hash), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("archive document: %w", err)
	}
	return hash, nil
}

// PresignedURL returns a time-limited retrieval URL for an archived hash.
func (s *Store) PresignedURL(ctx context.Context, contentHash string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName(contentHash), presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign document: %w", err)
	}
	return u.String(), nil
}

// Object keys drop the digest prefix; the bucket carries only hex names.
func objectName(contentHash string) string {
	const p = "sha256:"
	if len(contentHash) > len(p) && contentHash[:len(p)] == p {
		return contentHash[len(p):]
	}
	return contentHash
}
