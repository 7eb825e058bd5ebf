package export

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

// Sink stores rendered exports and returns where each one landed.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Config selects the export sink. Sink is "fs" (default) or "s3".
type Config struct {
	Sink            string `yaml:"sink" mapstructure:"sink"`
	Dir             string `yaml:"dir" mapstructure:"dir"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix" mapstructure:"prefix"`
	Region          string `yaml:"region" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	PathStyle       bool   `yaml:"path_style" mapstructure:"path_style"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
}

// NewSink builds the sink named by cfg.Sink.
func NewSink(ctx context.Context, cfg Config) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Sink)) {
	case "", "fs", "dir":
		return NewDirSink(cfg.Dir), nil
	case "s3":
		return NewS3Sink(ctx, cfg)
	default:
		return nil, eris.Errorf("export: unknown sink %q", cfg.Sink)
	}
}

// DirSink writes exports into a local directory.
type DirSink struct {
	dir string
}

func NewDirSink(dir string) *DirSink {
	if dir == "" {
		dir = "."
	}
	return &DirSink{dir: dir}
}

func (s *DirSink) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "export: create dir %s", s.dir)
	}
	target := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "export: write %s", target)
	}
	return target, nil
}

// S3Sink uploads exports to an S3-compatible bucket (AWS S3 or MinIO).
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink loads the default AWS configuration for cfg.Region. Static keys,
// a custom endpoint and path-style addressing are applied when set.
func NewS3Sink(ctx context.Context, cfg Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, eris.New("export: s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "export: load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (s *S3Sink) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := path.Join(s.prefix, path.Base(name))
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", eris.Wrapf(err, "export: put s3://%s/%s", s.bucket, key)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
