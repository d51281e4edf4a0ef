package constants

import (
	"net/http"
	"time"
)

// Scenario defaults. They reproduce the local docker-compose development
// stack so that `s3smoke` with no flags exercises it.
const (
	DefaultStorageEndpoint = "http://localhost:9000"
	DefaultAccessKey       = "minioadmin"
	DefaultSecretKey       = "minioadmin"
	DefaultRegion          = "us-east-1"
	DefaultBucket          = "dota-replays"
	DefaultFixturePath     = "test-data/7503212404.dem"
	DefaultParserURL       = "http://localhost:5600"
	DefaultConsoleURL      = "http://localhost:9001"
	DefaultStorageDriver   = "minio"

	// DefaultKeyPrefix is the logical folder uploaded fixtures land in.
	DefaultKeyPrefix = "replays/"
)

// Endpoint paths
const (
	StorageHealthPath = "/minio/health/live"
	ParserHealthPath  = "/healthz"
	ParserBlobPath    = "/blob"
	ReplayURLParam    = "replay_url"
	S3Scheme          = "s3://"
)

// Readiness probe defaults
const (
	DefaultProbeAttempts = 30
	DefaultProbeTimeout  = 2 * time.Second
	DefaultProbeInterval = 2 * time.Second
	DefaultProbeMethod   = http.MethodGet
)

// Timeouts for the remaining network calls
const (
	DefaultParserTimeout  = 300 * time.Second
	DefaultStorageTimeout = 30 * time.Second
)

// Output
const (
	DefaultPreviewLimit = 500
	PreviewMarker       = "..."
)

// Run journal defaults
const (
	DefaultHistoryType      = "sqlite"
	DefaultHistorySQLiteDSN = "s3smoke.db"
	DefaultHistoryTable     = "smoke_runs"
	DefaultHistoryLimit     = 20
)

// Operator guidance printed when a dependency never becomes ready.
const (
	StartStorageHint = "Please start MinIO: docker-compose -f docker-compose.dev.yml up minio"
	StartParserHint  = "Please start Parser: docker-compose -f docker-compose.dev.yml up parser"
)
