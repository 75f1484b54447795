package backup

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cmsops/pkg/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies backup runs to an S3-compatible bucket.
type S3Uploader struct {
	client putObjectAPI
	bucket string
	prefix string
	log    *zap.Logger
}

// NewS3Uploader builds a client for AWS S3 or any compatible store
// (MinIO, RustFS) reachable at cfg.Endpoint.
func NewS3Uploader(ctx context.Context, cfg config.S3Config, log *zap.Logger) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3_BUCKET is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return newS3Uploader(client, cfg.Bucket, cfg.Prefix, log), nil
}

func newS3Uploader(client putObjectAPI, bucket, prefix string, log *zap.Logger) *S3Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &S3Uploader{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), log: log.Named("s3")}
}

// UploadDir puts every file under dir at <prefix>/<base of dir>/<relative
// path> and returns the object keys.
func (u *S3Uploader) UploadDir(ctx context.Context, dir string) ([]string, error) {
	base := filepath.Base(filepath.Clean(dir))
	var keys []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := path.Join(u.prefix, base, filepath.ToSlash(rel))
		if err := u.put(ctx, p, key); err != nil {
			return fmt.Errorf("upload %s: %w", rel, err)
		}
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

func (u *S3Uploader) put(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	ct := mime.TypeByExtension(filepath.Ext(file))
	if ct == "" {
		ct = "application/octet-stream"
	}
	if _, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ct),
	}); err != nil {
		return err
	}
	u.log.Debug("uploaded", zap.String("bucket", u.bucket), zap.String("key", key))
	return nil
}
