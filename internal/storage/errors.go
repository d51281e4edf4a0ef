package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
)

// Sentinel errors for storage operations
var (
	// ErrObjectNotFound indicates the requested object or bucket does not exist
	ErrObjectNotFound = errors.New("object not found")

	// ErrAccessDenied indicates insufficient permissions for the operation
	ErrAccessDenied = errors.New("access denied")

	// ErrNetworkError indicates a network connectivity issue
	ErrNetworkError = errors.New("network error")

	// ErrBucketExists indicates a create call for a bucket that is already there
	ErrBucketExists = errors.New("bucket already exists")
)

// classifyCode maps an S3 error code to a sentinel.
func classifyCode(code string) error {
	switch code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return ErrObjectNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden":
		return ErrAccessDenied
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return ErrBucketExists
	}
	return nil
}

// errorCode extracts the S3 error code from either client library.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		return minioErr.Code
	}
	return ""
}

// classifyStorageError wraps err with the matching sentinel so callers can
// use errors.Is while the original message is preserved.
func classifyStorageError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if sentinel := classifyCode(errorCode(err)); sentinel != nil {
		return fmt.Errorf("%s: %w: %w", operation, sentinel, err)
	}
	if containsAny(strings.ToLower(err.Error()), "connection", "timeout", "network", "dial", "refused", "no such host") {
		return fmt.Errorf("%s: %w: %w", operation, ErrNetworkError, err)
	}
	return fmt.Errorf("%s failed: %w", operation, err)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
