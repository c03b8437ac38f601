// Package storage issues presigned S3 URLs for event media. Clients upload
// directly to the bucket; the API only hands out URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// DefaultPresignExpire is used when no expiry is configured.
const DefaultPresignExpire = 15 * time.Minute

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	PresignExpireMinutes int
}

// PresignExpire returns the configured presign duration.
func (c S3Config) PresignExpire() time.Duration {
	if c.PresignExpireMinutes <= 0 {
		return DefaultPresignExpire
	}
	return time.Duration(c.PresignExpireMinutes) * time.Minute
}

// S3 signs uploads and downloads against the media bucket.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     S3Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewS3 creates an S3 client. Static credentials are used when both keys are
// configured; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.Bucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Bucket returns the media bucket name.
func (s *S3) Bucket() string { return s.cfg.Bucket }

// PresignPut returns a pre-signed PUT URL for key and when it expires.
func (s *S3) PresignPut(ctx context.Context, key, contentType string) (string, time.Time, error) {
	expires := s.cfg.PresignExpire()
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign put: %w", err)
	}
	s.logger.Debug("presigned media upload", zap.String("key", key), zap.String("content_type", contentType))
	return req.URL, s.now().Add(expires).UTC(), nil
}

// PresignGet returns a pre-signed GET URL for key.
func (s *S3) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.cfg.PresignExpire()
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// ObjectURL returns the unsigned URL of key in the media bucket.
func (s *S3) ObjectURL(key string) string {
	return ObjectURL(s.cfg.Bucket, s.cfg.Region, key)
}

// ObjectURL builds a virtual-hosted style S3 URL.
func ObjectURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, strings.TrimPrefix(key, "/"))
}

// KeyFromURL returns the object key of a URL produced by ObjectURL, or "".
func KeyFromURL(bucket, region, url string) string {
	prefix := ObjectURL(bucket, region, "")
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

// DeleteObject removes key from the media bucket.
func (s *S3) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// DeleteURLs removes the objects behind media URLs that point into the
// bucket. Foreign URLs are skipped.
func (s *S3) DeleteURLs(ctx context.Context, urls ...string) error {
	var errs []error
	for _, u := range urls {
		key := KeyFromURL(s.cfg.Bucket, s.cfg.Region, u)
		if key == "" {
			continue
		}
		if err := s.DeleteObject(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
