package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// maxScreenshotBytes caps reads from the bucket.
const maxScreenshotBytes = 20 << 20

var ErrNotFound = errors.New("archive: screenshot not found")

// S3API is the subset of the S3 client used by ScreenshotStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ScreenshotStore keeps screenshot payloads in S3. When no bucket is
// configured it is disabled and callers inline the payload instead.
type ScreenshotStore struct {
	bucket   string
	s3Client S3API
	logger   *slog.Logger
}

// NewScreenshotStore creates a store. An empty bucket disables it.
func NewScreenshotStore(s3Client S3API, bucket string, logger *slog.Logger) *ScreenshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenshotStore{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if a bucket and client are configured.
func (s *ScreenshotStore) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// Put uploads data and returns its object key:
// screenshots/<user>/<conversation>/<uuid>.<ext>.
func (s *ScreenshotStore) Put(ctx context.Context, userID, conversationID string, data []byte, mimeType string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("archive: screenshot store is not configured")
	}
	key := fmt.Sprintf("screenshots/%s/%s/%s.%s", userID, conversationID, uuid.NewString(), extension(mimeType))

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Debug("stored screenshot", "s3_key", key, "bytes", len(data))
	return key, nil
}

// Get downloads the payload stored under key.
func (s *ScreenshotStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.Enabled() {
		return nil, errors.New("archive: screenshot store is not configured")
	}
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("archive: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxScreenshotBytes))
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the objects under keys. Failures are logged, not returned,
// since the owning records are already gone.
func (s *ScreenshotStore) Delete(ctx context.Context, keys []string) {
	if !s.Enabled() {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			s.logger.Warn("failed to delete screenshot", "error", err, "s3_key", key)
		}
	}
}

func extension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func isNotFoundErr(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "StatusCode: 404")
}
