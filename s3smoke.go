// Package s3smoke exposes the smoke harness for embedding in other Go
// programs, for example a CI job that builds its own configuration.
package s3smoke

import (
	"context"
	"io"

	"github.com/loykin/s3smoke/internal/auth"
	"github.com/loykin/s3smoke/internal/common"
	"github.com/loykin/s3smoke/internal/config"
	"github.com/loykin/s3smoke/internal/harness"
	"github.com/loykin/s3smoke/internal/history"
	"github.com/loykin/s3smoke/internal/storage"
)

// Re-export commonly used types for public API

// Config is the full run configuration.
type Config = config.Config

// Outcome is what a run observed.
type Outcome = harness.Outcome

// StepError is returned by Run on failure.
type StepError = harness.StepError

// ErrorKind classifies a StepError.
type ErrorKind = harness.Kind

const (
	KindPrecondition = harness.KindPrecondition
	KindNotReady     = harness.KindNotReady
	KindStorage      = harness.KindStorage
	KindProtocol     = harness.KindProtocol
	KindTransport    = harness.KindTransport
	KindUnexpected   = harness.KindUnexpected
)

// Option customizes a run.
type Option = harness.Option

// ObjectStore is the storage capability the scenario needs.
type ObjectStore = storage.ObjectStore

// ObjectInfo is one bucket listing entry.
type ObjectInfo = storage.ObjectInfo

// Locator addresses one stored object.
type Locator = storage.Locator

// DefaultConfig returns the configuration of the local docker-compose stack.
func DefaultConfig() *Config { return config.Default() }

// Run executes the scenario once.
func Run(ctx context.Context, cfg *Config, opts ...Option) (*Outcome, error) {
	return harness.New(cfg, opts...).Run(ctx)
}

// Console prints the colored run transcript.
type Console = common.Console

// NewConsole writes the transcript to w (stdout when nil).
func NewConsole(w io.Writer) *Console { return common.NewConsole(w) }

// WithConsole directs the transcript to c.
func WithConsole(c *Console) Option { return harness.WithConsole(c) }

// WithRecorder journals runs.
func WithRecorder(r history.Recorder) Option { return harness.WithRecorder(r) }

// WithObjectStore replaces the configured storage driver.
func WithObjectStore(s ObjectStore) Option {
	return harness.WithStoreFactory(func(context.Context, storage.Config) (storage.ObjectStore, error) {
		return s, nil
	})
}

// AuthMethod Plugin-style provider interface and registration
type AuthMethod = auth.Method

type AuthFactory = auth.Factory

// RegisterAuthProvider exposes custom parser auth provider registration.
func RegisterAuthProvider(typ string, f AuthFactory) { auth.Register(typ, f) }

// ParseLocator splits an s3://bucket/key URL.
func ParseLocator(s string) (Locator, error) { return storage.ParseLocator(s) }
