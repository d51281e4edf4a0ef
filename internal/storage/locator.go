package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/loykin/s3smoke/internal/constants"
)

// ErrInvalidLocator is returned for strings that are not s3://bucket/key.
var ErrInvalidLocator = errors.New("invalid S3 URL format, expected s3://bucket-name/key")

// Locator addresses one object: the composite of bucket and key.
type Locator struct {
	Bucket string
	Key    string
}

// String renders the s3://bucket/key form handed to external consumers.
func (l Locator) String() string {
	return constants.S3Scheme + l.Bucket + "/" + l.Key
}

// IsS3URL reports whether s uses the s3:// scheme.
func IsS3URL(s string) bool {
	return strings.HasPrefix(s, constants.S3Scheme)
}

// ParseLocator splits s3://bucket/key at the first slash after the bucket.
// The key keeps any further slashes.
func ParseLocator(s string) (Locator, error) {
	if !IsS3URL(s) {
		return Locator{}, fmt.Errorf("%w: %q", ErrInvalidLocator, s)
	}
	rest := strings.TrimPrefix(s, constants.S3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return Locator{}, fmt.Errorf("%w: %q", ErrInvalidLocator, s)
	}
	return Locator{Bucket: bucket, Key: key}, nil
}

// ObjectKey places the base name of a local file under prefix.
func ObjectKey(prefix, path string) string {
	return prefix + filepath.Base(path)
}
