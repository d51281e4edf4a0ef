package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/loykin/s3smoke/internal/harness"
	"github.com/loykin/s3smoke/internal/storage"
	"github.com/loykin/s3smoke/internal/stub"
	"github.com/loykin/s3smoke/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(viper.New())
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(args, "--env-file", ""))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestConfigCmd_MasksSecrets(t *testing.T) {
	out, _, err := execute(t, "config", "--secret-key", "topsecret", "--bucket", "from-flag")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if strings.Contains(out, "topsecret") {
		t.Fatalf("secret leaked:\n%s", out)
	}
	for _, want := range []string{"***MASKED***", "bucket: from-flag", "endpoint: http://localhost:9000", "timeout: 5m0s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestConfigCmd_Environment(t *testing.T) {
	t.Setenv("S3_ENDPOINT", "http://minio.internal:9000")
	t.Setenv("S3_PATH_STYLE_ACCESS", "false")
	t.Setenv("S3SMOKE_STORAGE_BUCKET", "env-bucket")
	t.Setenv("S3SMOKE_PROBE_INTERVAL", "750ms")

	out, _, err := execute(t, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for _, want := range []string{"endpoint: http://minio.internal:9000", "path_style: false", "bucket: env-bucket", "interval: 750ms"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestConfigCmd_PrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("S3_ENDPOINT", "http://legacy:9000")
	t.Setenv("S3SMOKE_STORAGE_ENDPOINT", "http://prefixed:9000")
	out, _, err := execute(t, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, "endpoint: http://prefixed:9000") {
		t.Fatalf("prefixed variable should win:\n%s", out)
	}
}

func TestConfigCmd_FileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "s3smoke.yaml", `storage:
  bucket: yaml-bucket
  region: eu-west-1
parser:
  summary_paths: [match_id, duration]
`)
	envPath := writeFile(t, dir, "test.env", "S3SMOKE_FIXTURE_PATH=from-dotenv.dem\n")
	t.Cleanup(func() { _ = os.Unsetenv("S3SMOKE_FIXTURE_PATH") })

	var stdout bytes.Buffer
	root := newRootCmd(viper.New())
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--config", cfgPath, "--env-file", envPath})
	if err := root.Execute(); err != nil {
		t.Fatalf("config: %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"bucket: yaml-bucket", "region: eu-west-1", "- match_id", "path: from-dotenv.dem"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestConfigCmd_MissingExplicitEnvFile(t *testing.T) {
	root := newRootCmd(viper.New())
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--env-file", filepath.Join(t.TempDir(), "nope.env")})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	_, _, err := execute(t, "run", "--probe-attempts", "0")
	if err == nil || !strings.Contains(err.Error(), "probe.attempts") {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, _, err = execute(t, "run", "--driver", "ftp")
	if err == nil || !strings.Contains(err.Error(), "storage.driver") {
		t.Fatalf("expected driver validation error, got %v", err)
	}
}

func TestRun_MissingFixture(t *testing.T) {
	out, _, err := execute(t, "--fixture", filepath.Join(t.TempDir(), "missing.dem"))
	var se *harness.StepError
	if !errors.As(err, &se) || se.Kind != harness.KindPrecondition {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if !strings.Contains(out, "✗ Test file not found") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRun_EndToEndWithHistory(t *testing.T) {
	fake := testutil.NewFakeS3(t)
	dir := t.TempDir()
	fixture := writeFile(t, dir, "7503212404.dem", "replay bytes")

	reader, err := storage.New(context.Background(), storage.Config{
		Endpoint:  fake.URL(),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		PathStyle: true,
	})
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	parserSrv := httptest.NewServer(stub.NewServer(reader).Handler())
	t.Cleanup(parserSrv.Close)

	t.Setenv("S3SMOKE_HISTORY_DSN", filepath.Join(dir, "runs.db"))
	common := []string{"--endpoint", fake.URL(), "--parser-url", parserSrv.URL, "--fixture", fixture, "--probe-interval", "0s"}

	out, _, err := execute(t, append([]string{"run", "--history"}, common...)...)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "All tests passed!") {
		t.Fatalf("missing summary:\n%s", out)
	}

	out, _, err = execute(t, "history", "--limit", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "passed") || !strings.Contains(out, "200") {
		t.Fatalf("unexpected history output:\n%s", out)
	}
}

type recordingExitHandler struct {
	code int
	msg  string
}

func (r *recordingExitHandler) Exit(code int) { r.code = code }
func (r *recordingExitHandler) LogFatalError(err error, msg string, keyvals ...any) {
	r.msg = msg
	r.Exit(1)
}

func TestExitHandler_Replaceable(t *testing.T) {
	orig := exitHandler
	rec := &recordingExitHandler{}
	exitHandler = rec
	defer func() { exitHandler = orig }()

	exitHandler.LogFatalError(errors.New("boom"), "s3smoke failed")
	if rec.code != 1 || rec.msg != "s3smoke failed" {
		t.Fatalf("unexpected %+v", rec)
	}
}
