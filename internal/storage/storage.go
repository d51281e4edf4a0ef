// Package storage is the object-store side of the smoke test: a minimal
// capability interface over S3-compatible services and the helpers the
// scenario builds on it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/loykin/s3smoke/internal/common"
	"github.com/loykin/s3smoke/internal/constants"
	"github.com/loykin/s3smoke/internal/util"
)

// ObjectInfo is one entry of a bucket listing.
type ObjectInfo struct {
	Key  string `json:"key" yaml:"key"`
	Size int64  `json:"size" yaml:"size"`
}

// ObjectStore is everything the scenario needs from the object store.
type ObjectStore interface {
	// BucketExists reports false with a nil error when the bucket is absent.
	BucketExists(ctx context.Context, bucket string) (bool, error)
	// MakeBucket returns an error wrapping ErrBucketExists when the bucket
	// is already there.
	MakeBucket(ctx context.Context, bucket string) error
	// PutObject streams size bytes from r and returns the stored size.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64) (int64, error)
	ListObjects(ctx context.Context, bucket string) ([]ObjectInfo, error)
}

// ObjectReader fetches stored objects. Only the stub parser needs it.
type ObjectReader interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Store is implemented by every driver.
type Store interface {
	ObjectStore
	ObjectReader
}

// Config selects and configures a driver.
type Config struct {
	Driver    string        `mapstructure:"driver" yaml:"driver"` // minio (default) or aws
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string        `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string        `mapstructure:"secret_key" yaml:"secret_key"`
	Region    string        `mapstructure:"region" yaml:"region"`
	Bucket    string        `mapstructure:"bucket" yaml:"bucket"`
	PathStyle bool          `mapstructure:"path_style" yaml:"path_style"`
	Insecure  bool          `mapstructure:"insecure" yaml:"insecure"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// endpointURL parses Endpoint, accepting a bare host:port as http.
func (c Config) endpointURL() (*url.URL, error) {
	raw, ok := util.TrimEmptyCheck(c.Endpoint)
	if !ok {
		return nil, errors.New("storage: endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid endpoint %q: %w", c.Endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("storage: endpoint %q has no host", c.Endpoint)
	}
	return u, nil
}

func (c Config) region() string {
	return util.TrimWithDefault(c.Region, constants.DefaultRegion)
}

// HealthURL is the liveness endpoint MinIO exposes next to the S3 API.
func (c Config) HealthURL() string {
	if u, err := c.endpointURL(); err == nil {
		return util.JoinURL(u.String(), constants.StorageHealthPath)
	}
	return util.JoinURL(c.Endpoint, constants.StorageHealthPath)
}

// Factory builds a driver. Construction must not touch the network.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var drivers = map[string]Factory{
	"minio": func(_ context.Context, cfg Config) (Store, error) { return NewMinioStore(cfg) },
	"aws":   func(ctx context.Context, cfg Config) (Store, error) { return NewAWSStore(ctx, cfg) },
}

// Drivers lists the registered driver names.
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}

// HasDriver reports whether name is a registered driver.
func HasDriver(name string) bool {
	_, ok := drivers[util.TrimAndLower(name)]
	return ok
}

// New builds the driver named by cfg.Driver.
func New(ctx context.Context, cfg Config) (Store, error) {
	name := util.TrimWithDefault(util.TrimAndLower(cfg.Driver), constants.DefaultStorageDriver)
	f, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
	common.GetLogger().WithComponent("storage").Debug("storage client configured",
		common.GetLogger().Masked(
			"driver", name,
			"endpoint", cfg.Endpoint,
			"access_key", cfg.AccessKey,
			"secret_key", cfg.SecretKey,
			"path_style", cfg.PathStyle,
		)...)
	return f(ctx, cfg)
}

// EnsureResult tells which branch EnsureBucket took.
type EnsureResult struct {
	Existed bool
	Created bool
	// ProbeErr is the existence-check error that was treated as "absent".
	ProbeErr error
}

// EnsureBucket makes sure bucket exists, creating it when the existence
// probe says it does not.
//
// Any error from the existence probe is treated as "absent", so
// authorization and transient network failures fall through to a create
// attempt. This mirrors the long-standing behavior of the harness; the
// create call then surfaces the real error if there is one. The probe error
// is logged and returned in EnsureResult.ProbeErr.
func EnsureBucket(ctx context.Context, store ObjectStore, bucket string) (EnsureResult, error) {
	logger := common.GetLogger().WithComponent("storage").WithBucket(bucket)

	var res EnsureResult
	exists, err := store.BucketExists(ctx, bucket)
	switch {
	case err != nil:
		res.ProbeErr = err
		logger.Warn("bucket existence check failed, treating bucket as absent", "error", err)
	case exists:
		res.Existed = true
		return res, nil
	}

	if err := store.MakeBucket(ctx, bucket); err != nil {
		if errors.Is(err, ErrBucketExists) {
			res.Existed = true
			return res, nil
		}
		return res, err
	}
	res.Created = true
	logger.Info("bucket created")
	return res, nil
}
