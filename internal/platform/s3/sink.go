package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/phrazzld/omnimedia-api/internal/domain"
)

// ErrUploadFailed is returned when an object cannot be written to the bucket.
var ErrUploadFailed = errors.New("result upload failed")

// Config holds the bucket settings.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint for MinIO/S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL, when set, is used to build object URLs instead of the
	// bucket's own address.
	PublicBaseURL string
	// PresignTTL, when positive and PublicBaseURL is empty, makes Store
	// return presigned GET URLs valid for this long.
	PresignTTL time.Duration
}

type objectPutter interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Sink uploads results and implements task.ResultSink.
type Sink struct {
	client    objectPutter
	presigner objectPresigner
	cfg       Config
	logger    *slog.Logger
}

// NewSink loads AWS configuration and creates a Sink. Static credentials
// are used when an access key is configured; otherwise the default
// credential chain applies.
func NewSink(ctx context.Context, cfg Config, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket cannot be empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required for MinIO
		}
	})

	return newSink(client, awss3.NewPresignClient(client), cfg, logger), nil
}

func newSink(client objectPutter, presigner objectPresigner, cfg Config, logger *slog.Logger) *Sink {
	return &Sink{
		client:    client,
		presigner: presigner,
		cfg:       cfg,
		logger:    logger.With("component", "s3_result_sink", "bucket", cfg.Bucket),
	}
}

// Store uploads data under a key derived from the task and returns its URL.
func (s *Sink) Store(ctx context.Context, taskID string, kind domain.MediaKind, mimeType string, data []byte) (string, error) {
	key := ObjectKey(taskID, kind, mimeType)

	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	url, err := s.objectURL(ctx, key)
	if err != nil {
		return "", err
	}

	s.logger.DebugContext(ctx, "result uploaded",
		"task_id", taskID,
		"key", key,
		"bytes", len(data))
	return url, nil
}

func (s *Sink) objectURL(ctx context.Context, key string) (string, error) {
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
	case s.cfg.PresignTTL > 0:
		req, err := s.presigner.PresignGetObject(ctx, &awss3.GetObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
		}, awss3.WithPresignExpires(s.cfg.PresignTTL))
		if err != nil {
			return "", fmt.Errorf("failed to presign %s: %w", key, err)
		}
		return req.URL, nil
	case s.cfg.Endpoint != "":
		// Format: <endpoint>/<bucket>/<key>
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key), nil
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key), nil
	}
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"audio/mpeg": ".mp3",
	"audio/wav":  ".wav",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
	"text/plain": ".txt",
}

// ObjectKey returns the bucket key for a task result:
// tasks/<media_type>/<task_id><ext>.
func ObjectKey(taskID string, kind domain.MediaKind, mimeType string) string {
	ext, ok := extensions[strings.ToLower(mimeType)]
	if !ok {
		ext = ".bin"
	}
	return fmt.Sprintf("tasks/%s/%s%s", kind, taskID, ext)
}
