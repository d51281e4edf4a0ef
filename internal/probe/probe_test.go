package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loykin/s3smoke/internal/retry"
)

func TestWait_ReadyOnKthAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := Probe{Name: "MinIO", URL: srv.URL + "/minio/health/live", MaxAttempts: 5, Interval: 10 * time.Millisecond}.Wait(context.Background())
	if !res.Ready {
		t.Fatalf("expected ready, got %+v", res)
	}
	if res.Attempts != 4 || atomic.LoadInt32(&calls) != 4 {
		t.Fatalf("attempts=%d calls=%d, want 4", res.Attempts, calls)
	}
}

func TestWait_NeverReadyMakesExactlyMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	interval := 15 * time.Millisecond
	start := time.Now()
	res := Probe{Name: "Parser", URL: srv.URL + "/healthz", MaxAttempts: 5, Interval: interval}.Wait(context.Background())
	elapsed := time.Since(start)

	if res.Ready {
		t.Fatal("expected not ready")
	}
	if got := atomic.LoadInt32(&calls); got != 5 || res.Attempts != 5 {
		t.Fatalf("calls=%d attempts=%d, want 5", got, res.Attempts)
	}
	if elapsed < 4*interval {
		t.Errorf("elapsed %v shorter than 4 intervals", elapsed)
	}
	if res.LastStatus != http.StatusInternalServerError {
		t.Errorf("LastStatus = %d", res.LastStatus)
	}
	var se *StatusError
	if !errors.As(res.LastErr, &se) {
		t.Errorf("LastErr should wrap StatusError, got %v", res.LastErr)
	}
	var ex *retry.ExhaustedError
	if !errors.As(res.LastErr, &ex) {
		t.Errorf("LastErr should be ExhaustedError, got %T", res.LastErr)
	}
}

func TestWait_AnyTwoXXIsReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	res := Probe{Name: "x", URL: srv.URL, MaxAttempts: 1}.Wait(context.Background())
	if !res.Ready || res.Attempts != 1 {
		t.Fatalf("unexpected %+v", res)
	}
}

func TestWait_TransportErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := Probe{Name: "gone", URL: url, MaxAttempts: 3, Interval: time.Millisecond}.Wait(context.Background())
	if res.Ready || res.Attempts != 3 {
		t.Fatalf("unexpected %+v", res)
	}
	if res.LastStatus != 0 {
		t.Errorf("transport failure should leave LastStatus 0, got %d", res.LastStatus)
	}
}

func TestWait_PerAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := Probe{Name: "slow", URL: srv.URL, MaxAttempts: 2, Timeout: 20 * time.Millisecond, Interval: time.Millisecond}.Wait(context.Background())
	if res.Ready {
		t.Fatal("slow endpoint should not count as ready")
	}
}

func TestWait_HEADMethod(t *testing.T) {
	var gotHEAD int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			atomic.AddInt32(&gotHEAD, 1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := Probe{Name: "head", URL: srv.URL, Method: "head", MaxAttempts: 1}.Wait(context.Background())
	if !res.Ready || atomic.LoadInt32(&gotHEAD) != 1 {
		t.Fatalf("HEAD not used: %+v", res)
	}
}

func TestNormalized_Defaults(t *testing.T) {
	p := Probe{}.normalized()
	if p.Method != "GET" || p.MaxAttempts != 30 || p.Timeout != 2*time.Second {
		t.Fatalf("unexpected defaults %+v", p)
	}
}
