package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"eumembership/internal/logger"
)

type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies exported series files into a bucket.
type Uploader struct {
	config Config
	client putObjectAPI
	log    *logger.Log
}

func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newWithClient(cfg, client), nil
}

func newWithClient(cfg Config, client putObjectAPI) *Uploader {
	return &Uploader{config: cfg, client: client, log: logger.GetLogger()}
}

// Upload puts each file under <prefix>/<basename> and returns the object keys.
func (u *Uploader) Upload(ctx context.Context, paths []string) ([]string, error) {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return keys, err
		}
		key := u.objectKey(p)
		_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(u.config.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(contentType(p)),
		})
		if err != nil {
			return keys, fmt.Errorf("upload %s: %w", key, err)
		}
		u.log.WithComponent("s3_publisher").WithFields(logger.Fields{
			"bucket": u.config.Bucket,
			"key":    key,
			"bytes":  len(data),
		}).Info("uploaded series file")
		keys = append(keys, key)
	}
	return keys, nil
}

func (u *Uploader) objectKey(p string) string {
	prefix := strings.Trim(u.config.Prefix, "/")
	if prefix == "" {
		return filepath.Base(p)
	}
	return path.Join(prefix, filepath.Base(p))
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
