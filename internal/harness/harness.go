// Package harness runs the smoke scenario: fixture check, readiness
// waits, bucket setup, upload, one parser call, listing and a summary.
// Steps run strictly in order and the first failure ends the run.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/loykin/s3smoke/internal/common"
	"github.com/loykin/s3smoke/internal/config"
	"github.com/loykin/s3smoke/internal/constants"
	"github.com/loykin/s3smoke/internal/history"
	"github.com/loykin/s3smoke/internal/httpc"
	"github.com/loykin/s3smoke/internal/parser"
	"github.com/loykin/s3smoke/internal/probe"
	"github.com/loykin/s3smoke/internal/storage"
	"github.com/loykin/s3smoke/internal/util"
)

// Outcome collects what a run observed, including partial results of a
// failed run.
type Outcome struct {
	FixtureSize     int64
	StorageAttempts int
	ParserAttempts  int
	Bucket          storage.EnsureResult
	Locator         storage.Locator
	Uploaded        int64
	Response        *parser.Response
	Objects         []storage.ObjectInfo
}

// StoreFactory builds the object store client.
type StoreFactory func(ctx context.Context, cfg storage.Config) (storage.ObjectStore, error)

// Option customizes a Harness.
type Option func(*Harness)

// WithConsole replaces the stdout console.
func WithConsole(c *common.Console) Option {
	return func(h *Harness) { h.console = c }
}

// WithStoreFactory replaces storage.New.
func WithStoreFactory(f StoreFactory) Option {
	return func(h *Harness) { h.newStore = f }
}

// WithRecorder journals every run.
func WithRecorder(r history.Recorder) Option {
	return func(h *Harness) { h.recorder = r }
}

// WithClock overrides time.Now for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) { h.now = now }
}

// Harness runs one scenario per Run call.
type Harness struct {
	cfg      *config.Config
	console  *common.Console
	newStore StoreFactory
	recorder history.Recorder
	now      func() time.Time
	logger   *common.Logger
}

// New applies opts over the defaults. A nil cfg means config.Default().
func New(cfg *config.Config, opts ...Option) *Harness {
	if cfg == nil {
		cfg = config.Default()
	}
	h := &Harness{
		cfg:     cfg,
		console: common.NewConsole(nil),
		newStore: func(ctx context.Context, c storage.Config) (storage.ObjectStore, error) {
			return storage.New(ctx, c)
		},
		now:    time.Now,
		logger: common.GetLogger().WithComponent("harness"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes the scenario. It returns a *StepError on failure; the
// Outcome is never nil.
func (h *Harness) Run(ctx context.Context) (out *Outcome, err error) {
	out = &Outcome{}
	started := h.now()
	step := StepFixture

	defer func() {
		if r := recover(); r != nil {
			h.console.Error("✗ Error: %v", r)
			err = fail(step, KindUnexpected, fmt.Errorf("panic: %v", r))
		}
		h.record(ctx, started, out, err)
	}()

	h.banner()

	fixture := h.cfg.Fixture.Path
	if err := h.checkFixture(fixture, out); err != nil {
		return out, err
	}

	step = StepStorageReady
	h.console.Info("Step 2: Checking MinIO availability...")
	res := h.waitFor(ctx, "MinIO", h.cfg.Storage.HealthURL(), h.storageTLS())
	out.StorageAttempts = res.Attempts
	if !res.Ready {
		h.console.Error(constants.StartStorageHint)
		return out, fail(step, KindNotReady, notReady("MinIO", res))
	}

	step = StepParserReady
	client := parser.New(h.cfg.Parser)
	h.console.Info("Step 3: Checking Parser availability...")
	res = h.waitFor(ctx, "Parser", client.HealthURL(), client.TLS())
	out.ParserAttempts = res.Attempts
	if !res.Ready {
		h.console.Error(constants.StartParserHint)
		return out, fail(step, KindNotReady, notReady("Parser", res))
	}

	step = StepClient
	h.console.Info("Step 4: Setting up S3 client...")
	store, err := h.newStore(ctx, h.cfg.Storage)
	if err != nil {
		h.console.Error("✗ Error: %v", err)
		return out, fail(step, KindStorage, err)
	}
	h.console.Success("✓ S3 client configured")

	step = StepBucket
	bucket := h.cfg.Storage.Bucket
	h.console.Info("Step 5: Creating bucket '%s'...", bucket)
	if err := h.ensureBucket(ctx, store, bucket, out); err != nil {
		h.console.Error("✗ Error: %v", err)
		return out, fail(step, KindStorage, err)
	}

	step = StepUpload
	h.console.Info("Step 6: Uploading test replay to MinIO...")
	out.Locator = storage.Locator{
		Bucket: bucket,
		Key:    storage.ObjectKey(util.TrimWithDefault(h.cfg.Fixture.KeyPrefix, constants.DefaultKeyPrefix), fixture),
	}
	if err := h.upload(ctx, store, fixture, out); err != nil {
		h.console.Error("✗ Error: %v", err)
		return out, fail(step, KindStorage, err)
	}
	h.console.Success("✓ File uploaded to %s", out.Locator)

	step = StepParser
	if err := h.invokeParser(ctx, client, out); err != nil {
		return out, err
	}

	step = StepListing
	h.console.Blank()
	h.console.Info("Files in MinIO bucket:")
	if err := h.listBucket(ctx, store, bucket, out); err != nil {
		h.console.Error("✗ Error: %v", err)
		return out, fail(step, KindStorage, err)
	}

	step = StepSummary
	h.summary()
	return out, nil
}

func (h *Harness) banner() {
	h.console.Rule()
	h.console.Printf("S3/MinIO Smoke Test for Parser")
	h.console.Rule()
	h.console.Blank()
}

func (h *Harness) checkFixture(path string, out *Outcome) error {
	h.console.Info("Step 1: Checking test file...")
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		err = fmt.Errorf("%s is a directory", path)
	}
	if err != nil {
		h.console.Error("✗ Test file not found: %s", path)
		return fail(StepFixture, KindPrecondition, fmt.Errorf("test file not found: %w", err))
	}
	out.FixtureSize = info.Size()
	h.console.Success("✓ Test file found: %s", path)
	return nil
}

func (h *Harness) waitFor(ctx context.Context, name, url string, tlsCfg *httpc.Httpc) probe.Result {
	h.console.Info("Waiting for %s to be ready...", name)
	res := probe.Probe{
		Name:        name,
		URL:         url,
		Method:      h.cfg.Probe.Method,
		MaxAttempts: h.cfg.Probe.Attempts,
		Timeout:     h.cfg.Probe.Timeout,
		Interval:    h.cfg.Probe.Interval,
		HTTP:        tlsCfg,
	}.Wait(ctx)
	if res.Ready {
		h.console.Success("✓ %s is ready", name)
	} else {
		h.console.Error("✗ %s is not responding", name)
	}
	return res
}

func notReady(name string, res probe.Result) error {
	if res.LastErr != nil {
		return fmt.Errorf("%s not ready after %d attempts: %w", name, res.Attempts, res.LastErr)
	}
	return fmt.Errorf("%s not ready after %d attempts", name, res.Attempts)
}

func (h *Harness) storageTLS() *httpc.Httpc {
	return &httpc.Httpc{TlsConfig: httpc.TLSConfig(h.cfg.Storage.Insecure, "", "")}
}

// adminContext bounds one administrative storage call.
func (h *Harness) adminContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := h.cfg.Storage.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultStorageTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (h *Harness) ensureBucket(ctx context.Context, store storage.ObjectStore, bucket string, out *Outcome) error {
	actx, cancel := h.adminContext(ctx)
	defer cancel()

	res, err := storage.EnsureBucket(actx, store, bucket)
	out.Bucket = res
	if err != nil {
		return err
	}
	if res.Existed {
		h.console.Info("Bucket already exists")
	} else {
		h.console.Success("✓ Bucket created")
	}
	return nil
}

func (h *Harness) upload(ctx context.Context, store storage.ObjectStore, path string, out *Outcome) error {
	// #nosec G304 -- the fixture path is operator supplied
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	h.console.Printf("Uploading %s (%d bytes)...", path, size)
	h.logger.Info("uploading fixture", "key", out.Locator.Key, "size", humanize.IBytes(uint64(size)))

	n, err := store.PutObject(ctx, out.Locator.Bucket, out.Locator.Key, f, size)
	if err != nil {
		return err
	}
	out.Uploaded = n
	return nil
}

func (h *Harness) invokeParser(ctx context.Context, client *parser.Client, out *Outcome) error {
	h.console.Info("Step 7: Testing parser with S3 URL...")
	h.console.Printf("S3 URL: %s", out.Locator)
	h.console.Printf("Requesting: %s", client.BlobURL(out.Locator))

	resp, err := client.Blob(ctx, out.Locator)
	out.Response = resp

	var statusErr *parser.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.HTTPError():
		h.console.Error("✗ HTTP Error: %d", statusErr.StatusCode)
		h.console.Printf("%s", statusErr.Body)
		return fail(StepParser, KindProtocol, err)
	case errors.As(err, &statusErr):
		h.console.Printf("HTTP Status Code: %d", statusErr.StatusCode)
		h.console.Error("✗ Parser returned status: %d", statusErr.StatusCode)
		h.console.Printf("Response: %s", statusErr.Body)
		return fail(StepParser, KindProtocol, err)
	case err != nil:
		h.console.Error("✗ Error: %v", err)
		return fail(StepParser, KindTransport, err)
	}

	h.console.Printf("HTTP Status Code: %d", resp.StatusCode)
	h.console.Success("✓ Parser successfully processed S3 replay!")
	h.console.Blank()

	limit := h.cfg.Preview.Limit
	h.console.Printf("Response preview (first %d chars):", limit)
	head, cut := parser.Preview(resp.Body, limit)
	h.console.Printf("%s", head)
	if cut {
		h.console.Printf(constants.PreviewMarker)
	}
	for _, line := range parser.Summarize(resp.Body, h.cfg.Parser.SummaryPaths) {
		h.console.Printf("  %s = %s", line.Path, line.Value)
	}
	h.console.Blank()
	h.console.Success("SUCCESS: S3 integration is working!")
	return nil
}

func (h *Harness) listBucket(ctx context.Context, store storage.ObjectStore, bucket string, out *Outcome) error {
	actx, cancel := h.adminContext(ctx)
	defer cancel()

	objects, err := store.ListObjects(actx, bucket)
	if err != nil {
		return err
	}
	out.Objects = objects
	for _, obj := range objects {
		h.console.Printf("  - %s (%d bytes)", obj.Key, obj.Size)
	}
	return nil
}

func (h *Harness) summary() {
	h.console.Blank()
	h.console.Rule()
	h.console.Success("All tests passed!")
	h.console.Rule()
	h.console.Blank()
	h.console.Printf("You can access MinIO console at: %s", util.TrimWithDefault(h.cfg.Console.URL, constants.DefaultConsoleURL))
	h.console.Printf("Username: %s", h.cfg.Storage.AccessKey)
	h.console.Printf("Password: %s", h.cfg.Storage.SecretKey)
	h.console.Blank()
}

// record journals the run. Journal failures are logged, never fatal.
func (h *Harness) record(ctx context.Context, started time.Time, out *Outcome, err error) {
	if h.recorder == nil {
		return
	}
	run := history.Run{
		StartedAt:  started,
		FinishedAt: h.now(),
		Bucket:     h.cfg.Storage.Bucket,
		ObjectKey:  out.Locator.Key,
		Passed:     err == nil,
	}
	if out.Response != nil {
		run.StatusCode = out.Response.StatusCode
	}
	var se *StepError
	if errors.As(err, &se) {
		run.FailedStep = int(se.Step)
		run.ErrorKind = string(se.Kind)
		run.Error = common.MaskSensitiveData(se.Err.Error())
	}
	// The run context may already be cancelled; the journal write still goes through.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if rerr := h.recorder.Record(rctx, run); rerr != nil {
		h.logger.Warn("failed to record run", "error", rerr)
	}
}
