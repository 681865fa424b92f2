package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3Client is the subset of the S3 API the backend needs. Narrow on purpose
// so tests can substitute a double.
type s3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage is a Storage backend over an S3 bucket. Blobs are keyed as
// <prefix>/<fingerprint>.tar.gz.
type S3Storage struct {
	client s3Client
	bucket string
	prefix string
}

// NewS3Storage builds an S3 backend from the default AWS config chain
// (AWS_PROFILE, shared config, env, IMDS). region overrides the chain when
// non-empty.
func NewS3Storage(ctx context.Context, bucket, prefix, region string) (*S3Storage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 storage requires a bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Storage{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// NewS3StorageWithClient builds an S3 backend over an existing client.
func NewS3StorageWithClient(client s3Client, bucket, prefix string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, prefix: prefix}
}

// Store packs bundleDir and uploads it under the given fingerprint.
func (s *S3Storage) Store(ctx context.Context, fingerprint, bundleDir string) error {
	var buf bytes.Buffer
	if err := packBundle(bundleDir, &buf); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    s.key(fingerprint),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("failed to upload bundle: %w", err)
	}

	return nil
}

// Fetch downloads the bundle stored under fingerprint and unpacks it at
// destDir. Returns false when the bucket has no object for the fingerprint.
func (s *S3Storage) Fetch(ctx context.Context, fingerprint, destDir string) (bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    s.key(fingerprint),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return false, nil
		}

		return false, fmt.Errorf("failed to download bundle: %w", err)
	}
	defer out.Body.Close()

	if err := restoreBundle(out.Body, destDir); err != nil {
		return false, err
	}

	return true, nil
}

func (s *S3Storage) key(fingerprint string) *string {
	k := path.Join(s.prefix, fingerprint+".tar.gz")
	return &k
}
