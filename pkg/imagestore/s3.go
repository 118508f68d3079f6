package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint targets an S3-compatible service such as MinIO.
	Endpoint string
	// Folder is the key prefix for uploaded images.
	Folder string
}

// S3 stores images in a bucket under Folder.
type S3 struct {
	client *s3.Client
	bucket string
	folder string
	now    func() time.Time
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	folder := cfg.Folder
	if folder == "" {
		folder = "menu-images"
	}
	return &S3{client: client, bucket: cfg.Bucket, folder: folder, now: time.Now}, nil
}

// GetObjectKeyFromLink extracts the object key from an s3:// reference.
func (s *S3) GetObjectKeyFromLink(ref string) (string, error) {
	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", fmt.Errorf("%w: not an s3 reference %q", ErrNotFound, ref)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" || bucket != s.bucket {
		return "", fmt.Errorf("%w: %q is not in bucket %s", ErrNotFound, ref, s.bucket)
	}
	return key, nil
}

func (s *S3) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := s.folder + "/" + ObjectName(name, s.now())
	ct, err := DetectImageType(data)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(ct),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func (s *S3) Open(ctx context.Context, ref string) ([]byte, error) {
	key, err := s.GetObjectKeyFromLink(ref)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
