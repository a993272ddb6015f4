package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"listingdesk/config"
)

// S3ObjectStore keeps every logical bucket as a key prefix inside one
// S3-compatible bucket: {bucket}/{path}.
type S3ObjectStore struct {
	client *s3.Client
	cfg    config.S3Config
}

func NewS3ObjectStore(ctx context.Context, cfg config.S3Config) (*S3ObjectStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3ObjectStore{client: client, cfg: cfg}, nil
}

func objectKey(bucket, path string) string {
	return bucket + "/" + strings.TrimLeft(path, "/")
}

func (u *S3ObjectStore) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error) {
	key := objectKey(bucket, path)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return S3PublicURL(u.cfg, key), nil
}

func (u *S3ObjectStore) Remove(ctx context.Context, bucket string, paths []string) error {
	// DeleteObjects accepts at most 1000 keys per call
	for start := 0; start < len(paths); start += 1000 {
		end := start + 1000
		if end > len(paths) {
			end = len(paths)
		}
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, p := range paths[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(objectKey(bucket, p))})
		}
		_, err := u.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(u.cfg.Bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete objects: %w", err)
		}
	}
	return nil
}

func (u *S3ObjectStore) List(ctx context.Context, bucket, prefix string) ([]ObjectEntry, error) {
	root := bucket + "/"
	paginator := s3.NewListObjectsV2Paginator(u.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(u.cfg.Bucket),
		Prefix: aws.String(root + strings.TrimLeft(prefix, "/")),
	})

	var entries []ObjectEntry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			entries = append(entries, ObjectEntry{
				Path: strings.TrimPrefix(aws.ToString(obj.Key), root),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	return entries, nil
}

// S3PublicURL returns the public URL for an S3 key
func S3PublicURL(cfg config.S3Config, key string) string {
	if cfg.Endpoint != "" && strings.Contains(cfg.Endpoint, "digitaloceanspaces.com") {
		// DO Spaces: https://{bucket}.{region}.digitaloceanspaces.com/{key}
		host := strings.TrimPrefix(cfg.Endpoint, "https://")
		return fmt.Sprintf("https://%s.%s/%s", cfg.Bucket, host, key)
	}
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket + "/" + key
	}
	// AWS S3: https://{bucket}.s3.{region}.amazonaws.com/{key}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", cfg.Bucket, cfg.Region, key)
}
