// Package testutil holds in-process stand-ins for the services the smoke
// test talks to.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"

	"github.com/loykin/s3smoke/internal/constants"
)

// FakeS3 is an in-memory S3 API that also answers the MinIO liveness path.
type FakeS3 struct {
	Server  *httptest.Server
	Backend *s3mem.Backend

	requests atomic.Int64
}

// NewFakeS3 starts the server and closes it when the test ends.
func NewFakeS3(t testing.TB) *FakeS3 {
	t.Helper()
	f := &FakeS3{Backend: s3mem.New()}
	faker := gofakes3.New(f.Backend)

	mux := http.NewServeMux()
	mux.HandleFunc(constants.StorageHealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/", faker.Server())

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		dropEmptyDelimiter(r)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Server.Close)
	return f
}

// dropEmptyDelimiter removes "delimiter=" from listing requests. minio-go
// always sends it and gofakes3 would otherwise treat "" as a delimiter and
// hide every key.
func dropEmptyDelimiter(r *http.Request) {
	q := r.URL.Query()
	if vals, ok := q["delimiter"]; !ok || len(vals) != 1 || vals[0] != "" {
		return
	}
	q.Del("delimiter")
	r.URL.RawQuery = q.Encode()
}

// URL is the endpoint to configure storage with.
func (f *FakeS3) URL() string {
	return f.Server.URL
}

// Requests counts every request received, health checks included.
func (f *FakeS3) Requests() int64 {
	return f.requests.Load()
}
