package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
)

// AWSStore talks to S3-compatible services through aws-sdk-go-v2.
type AWSStore struct {
	client *s3.Client
	region string
}

// NewAWSStore builds an SDK client against cfg.Endpoint. Loading the SDK
// config reads local files and environment only.
func NewAWSStore(ctx context.Context, cfg Config) (*AWSStore, error) {
	u, err := cfg.endpointURL()
	if err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.region()),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	}
	if cfg.Insecure {
		httpClient := awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
			// #nosec G402 -- explicitly requested for self-signed development endpoints
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		})
		opts = append(opts, awsconfig.WithHTTPClient(httpClient))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := u.String()
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.PathStyle
	})
	return &AWSStore{client: client, region: cfg.region()}, nil
}

func (s *AWSStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ctx, span := startSpan(ctx, "storage.bucket_exists", "aws", bucket)
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) || errors.Is(classifyStorageError(err, ""), ErrObjectNotFound) {
			endSpan(span, nil)
			return false, nil
		}
		err = classifyStorageError(err, "bucket exists")
		endSpan(span, err)
		return false, err
	}
	endSpan(span, nil)
	return true, nil
}

func (s *AWSStore) MakeBucket(ctx context.Context, bucket string) error {
	ctx, span := startSpan(ctx, "storage.make_bucket", "aws", bucket)
	in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	_, err := s.client.CreateBucket(ctx, in)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			err = fmt.Errorf("make bucket: %w: %w", ErrBucketExists, err)
		} else {
			err = classifyStorageError(err, "make bucket")
		}
	}
	endSpan(span, err)
	return err
}

// PutObject needs a seekable body on plain-HTTP endpoints so the SDK can
// hash the payload for SigV4; *os.File satisfies that.
func (s *AWSStore) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64) (int64, error) {
	ctx, span := startSpan(ctx, "storage.put_object", "aws", bucket,
		attribute.String("storage.key", key),
		attribute.Int64("file.size", size))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
	})
	err = classifyStorageError(err, "upload")
	endSpan(span, err)
	if err != nil {
		return 0, err
	}
	return size, nil
}

func (s *AWSStore) ListObjects(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	ctx, span := startSpan(ctx, "storage.list_objects", "aws", bucket)

	var out []ObjectInfo
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			err = classifyStorageError(err, "list objects")
			endSpan(span, err)
			return nil, err
		}
		for _, obj := range page.Contents {
			out = append(out, ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
		}
	}
	span.SetAttributes(attribute.Int("storage.object_count", len(out)))
	endSpan(span, nil)
	return out, nil
}

func (s *AWSStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	ctx, span := startSpan(ctx, "storage.get_object", "aws", bucket, attribute.String("storage.key", key))
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	err = classifyStorageError(err, "download")
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

var _ Store = (*AWSStore)(nil)
