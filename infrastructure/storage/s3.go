package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"blueprint-editor/application/ports"
	pkgerrors "blueprint-editor/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3Client is the subset of the S3 API the store uses
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps blueprints in a bucket under a key prefix
type S3Store struct {
	client  S3Client
	bucket  string
	prefix  string
	baseURL string
	logger  *zap.Logger
}

// NewS3Store creates a store. When baseURL is empty the virtual-hosted
// bucket URL for region is used.
func NewS3Store(client S3Client, bucket, prefix, region, baseURL string, logger *zap.Logger) *S3Store {
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", bucket, region)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix, baseURL: baseURL, logger: logger}
}

func (s *S3Store) key(pathname string) string { return s.prefix + pathname }

// Put uploads the body
func (s *S3Store) Put(ctx context.Context, pathname string, body io.Reader, size int64, contentType string) (string, error) {
	if err := checkPathname(pathname); err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(pathname)),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.logger.Error("Failed to upload blob", zap.String("key", s.key(pathname)), zap.Error(err))
		return "", fmt.Errorf("failed to upload blob %s: %w", pathname, err)
	}

	s.logger.Debug("Uploaded blob", zap.String("bucket", s.bucket), zap.String("key", s.key(pathname)))
	return s.baseURL + s.key(pathname), nil
}

// Delete removes an object. S3 reports success for missing keys.
func (s *S3Store) Delete(ctx context.Context, pathname string) error {
	if err := checkPathname(pathname); err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(pathname)),
	}); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", pathname, err)
	}
	return nil
}

// List walks every page under the prefix
func (s *S3Store) List(ctx context.Context) ([]ports.BlobObject, error) {
	out := []ports.BlobObject{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, s.prefix)
			if checkPathname(name) != nil {
				continue
			}
			out = append(out, ports.BlobObject{
				URL:         s.baseURL + key,
				Pathname:    name,
				Size:        aws.ToInt64(obj.Size),
				ContentType: contentTypeFor(name),
				UploadedAt:  aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Open streams an object
func (s *S3Store) Open(ctx context.Context, pathname string) (io.ReadCloser, error) {
	if err := checkPathname(pathname); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(pathname)),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, pkgerrors.NewNotFoundError("blob " + pathname)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", pathname, err)
	}
	return obj.Body, nil
}

// PathnameFromURL strips the base URL and key prefix
func (s *S3Store) PathnameFromURL(url string) (string, bool) {
	return trimBase(url, s.baseURL+s.prefix)
}
