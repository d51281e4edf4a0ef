package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
)

// MinioStore talks to S3-compatible services through minio-go.
type MinioStore struct {
	client *minio.Client
	region string
}

// NewMinioStore creates a client with static SigV4 credentials. The
// endpoint scheme decides TLS; PathStyle forces path addressing, otherwise
// minio-go picks per endpoint.
func NewMinioStore(cfg Config) (*MinioStore, error) {
	u, err := cfg.endpointURL()
	if err != nil {
		return nil, err
	}
	secure := u.Scheme == "https"

	lookup := minio.BucketLookupAuto
	if cfg.PathStyle {
		lookup = minio.BucketLookupPath
	}

	opts := &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.region(),
		BucketLookup: lookup,
	}
	if secure && cfg.Insecure {
		tr, err := minio.DefaultTransport(true)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 transport: %w", err)
		}
		// #nosec G402 -- explicitly requested for self-signed development endpoints
		tr.TLSClientConfig.InsecureSkipVerify = true
		opts.Transport = tr
	}

	client, err := minio.New(u.Host, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return &MinioStore{client: client, region: cfg.region()}, nil
}

func (s *MinioStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ctx, span := startSpan(ctx, "storage.bucket_exists", "minio", bucket)
	exists, err := s.client.BucketExists(ctx, bucket)
	err = classifyStorageError(err, "bucket exists")
	endSpan(span, err)
	return exists, err
}

func (s *MinioStore) MakeBucket(ctx context.Context, bucket string) error {
	ctx, span := startSpan(ctx, "storage.make_bucket", "minio", bucket)
	err := classifyStorageError(s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}), "make bucket")
	endSpan(span, err)
	return err
}

func (s *MinioStore) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64) (int64, error) {
	ctx, span := startSpan(ctx, "storage.put_object", "minio", bucket,
		attribute.String("storage.key", key),
		attribute.Int64("file.size", size))
	info, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	err = classifyStorageError(err, "upload")
	endSpan(span, err)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (s *MinioStore) ListObjects(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	ctx, span := startSpan(ctx, "storage.list_objects", "minio", bucket)

	var out []ObjectInfo
	var err error
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			err = classifyStorageError(obj.Err, "list objects")
			break
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size})
	}
	span.SetAttributes(attribute.Int("storage.object_count", len(out)))
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetObject stats the object first so a missing key fails here rather than
// on the first Read.
func (s *MinioStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	ctx, span := startSpan(ctx, "storage.get_object", "minio", bucket, attribute.String("storage.key", key))
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err == nil {
		if _, statErr := obj.Stat(); statErr != nil {
			_ = obj.Close()
			err = statErr
		}
	}
	err = classifyStorageError(err, "download")
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

var _ Store = (*MinioStore)(nil)
