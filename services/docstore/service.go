package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/upb/devportal/services"
	"go.uber.org/zap"
)

const (
	// DefaultMaxBytes caps document size at 5 MiB
	DefaultMaxBytes int64 = 5 << 20

	providerName = "s3"
)

// S3API is the subset of the S3 client used here
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config selects the bucket and document limits
type Config struct {
	Bucket     string
	DefaultKey string
	MaxBytes   int64
}

// Document is the text content of one object
type Document struct {
	Content string `json:"content"`
}

// Service reads documentation objects from S3
type Service struct {
	client   S3API
	config   Config
	timeout  time.Duration
	recorder services.UpstreamRecorder
	logger   *zap.Logger
}

// NewService creates a new Service. timeout bounds each GetObject call
// including the body read; zero disables it.
func NewService(client S3API, config Config, timeout time.Duration, recorder services.UpstreamRecorder, logger *zap.Logger) *Service {
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultMaxBytes
	}
	if config.DefaultKey == "" {
		config.DefaultKey = "README.md"
	}
	if recorder == nil {
		recorder = services.NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:   client,
		config:   config,
		timeout:  timeout,
		recorder: recorder,
		logger:   logger,
	}
}

// Bucket returns the configured bucket name, empty when unset
func (s *Service) Bucket() string {
	return s.config.Bucket
}

// Fetch returns the UTF-8 content of key, or of the default key when key is empty
func (s *Service) Fetch(ctx context.Context, key string) (*Document, error) {
	if s.config.Bucket == "" {
		return nil, services.NewConfiguration("DOCS_BUCKET not configured")
	}

	if key == "" {
		key = s.config.DefaultKey
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, services.NewNotFound(fmt.Sprintf("Document %s not found in %s", key, s.config.Bucket))
		}
		return nil, s.fetchError(key, err)
	}
	defer out.Body.Close()

	if out.ContentLength != nil && *out.ContentLength > s.config.MaxBytes {
		return nil, s.tooLarge(key, *out.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(out.Body, s.config.MaxBytes+1))
	if err != nil {
		return nil, s.fetchError(key, err)
	}
	if int64(len(body)) > s.config.MaxBytes {
		return nil, s.tooLarge(key, int64(len(body)))
	}
	if !utf8.Valid(body) {
		return nil, services.WrapInternal("Docs fetch failed", fmt.Errorf("document %s is not valid UTF-8", key))
	}

	s.logger.Debug("document fetched",
		zap.String("bucket", s.config.Bucket),
		zap.String("key", key),
		zap.Int("bytes", len(body)))

	return &Document{Content: string(body)}, nil
}

func (s *Service) fetchError(key string, err error) error {
	s.recorder.RecordUpstreamError(providerName)
	s.logger.Error("docs fetch failed",
		zap.String("bucket", s.config.Bucket),
		zap.String("key", key),
		zap.Error(err))
	return services.WrapInternal("Docs fetch failed", err)
}

func (s *Service) tooLarge(key string, size int64) error {
	return services.NewDomainError(services.ErrorTypeInternal, "Docs fetch failed",
		fmt.Errorf("document %s exceeds %d bytes", key, s.config.MaxBytes)).
		WithDetail("size", size)
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey"
}
