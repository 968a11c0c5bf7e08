package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/renameio/v2"
)

// Publisher stores a generated file and returns a URL WhatsApp can download it from.
type Publisher interface {
	Publish(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// LocalPublisher writes files under dir; they are served by the /media route.
type LocalPublisher struct {
	dir     string
	baseURL string
}

// NewLocalPublisher creates dir if needed. baseURL is the public origin of the service.
func NewLocalPublisher(dir, baseURL string) (*LocalPublisher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalPublisher{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory files are written to.
func (p *LocalPublisher) Dir() string {
	return p.dir
}

func (p *LocalPublisher) Publish(_ context.Context, name, _ string, data []byte) (string, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("publish: invalid name")
	}
	if err := renameio.WriteFile(filepath.Join(p.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("publish %s: %w", name, err)
	}
	if p.baseURL == "" {
		return "file://" + filepath.Join(p.dir, name), nil
	}
	return p.baseURL + "/media/" + url.PathEscape(name), nil
}

// s3API is the part of the S3 client used to upload.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads to a bucket and hands out presigned GET links.
type S3Publisher struct {
	client  s3API
	presign func(ctx context.Context, bucket, key string) (string, error)
	bucket  string
	prefix  string
}

// PresignTTL is how long a quote link stays valid.
const PresignTTL = 7 * 24 * time.Hour

// NewS3Publisher uses the default AWS credential chain.
func NewS3Publisher(ctx context.Context, bucket, prefix string) (*S3Publisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	presigner := s3.NewPresignClient(client)
	return &S3Publisher{
		client: client,
		presign: func(ctx context.Context, bucket, key string) (string, error) {
			req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			}, s3.WithPresignExpires(PresignTTL))
			if err != nil {
				return "", err
			}
			return req.URL, nil
		},
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (p *S3Publisher) Publish(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := path.Join(p.prefix, path.Base(name))
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", p.bucket, key, err)
	}
	link, err := p.presign(ctx, p.bucket, key)
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", p.bucket, key, err)
	}
	return link, nil
}
