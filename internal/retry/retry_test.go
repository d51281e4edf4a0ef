package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()
	if config.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts to be 3, got %d", config.MaxAttempts)
	}
	if config.BackoffFactor != 2.0 {
		t.Errorf("Expected BackoffFactor to be 2.0, got %f", config.BackoffFactor)
	}
}

func TestConfig_isRetryableError(t *testing.T) {
	config := DefaultRetryConfig()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:9000: connect: connection refused"), true},
		{"timeout", errors.New("Client.Timeout exceeded"), true},
		{"slow down", errors.New("SlowDown: please reduce your request rate"), true},
		{"access denied", errors.New("Access Denied"), false},
		{"context canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := config.isRetryableError(tt.err); got != tt.expected {
				t.Errorf("isRetryableError(%v) = %t, want %t", tt.err, got, tt.expected)
			}
		})
	}

	if !FixedConfig(3, 0).isRetryableError(errors.New("anything")) {
		t.Error("FixedConfig should retry every error")
	}
}

func TestConfig_calculateDelay(t *testing.T) {
	config := &Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second}
	for i, w := range want {
		if got := config.calculateDelay(i); got != w {
			t.Errorf("attempt %d: got %v want %v", i, got, w)
		}
	}

	fixed := FixedConfig(30, 2*time.Second)
	for i := 0; i < 5; i++ {
		if got := fixed.calculateDelay(i); got != 2*time.Second {
			t.Errorf("fixed attempt %d: got %v", i, got)
		}
	}
}

func TestDo_SucceedsOnKthAttempt(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), FixedConfig(5, time.Millisecond), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("not ready")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 3 || calls != 3 {
		t.Fatalf("attempts=%d calls=%d, want 3", attempts, calls)
	}
}

func TestDo_ExhaustsExactlyMaxAttempts(t *testing.T) {
	calls := 0
	start := time.Now()
	attempts, err := Do(context.Background(), FixedConfig(4, 20*time.Millisecond), func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("not ready")
	})
	elapsed := time.Since(start)

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if attempts != 4 || calls != 4 || ex.Attempts != 4 {
		t.Fatalf("attempts=%d calls=%d ex=%d, want 4", attempts, calls, ex.Attempts)
	}
	// three sleeps between four attempts, none after the last
	if elapsed < 60*time.Millisecond {
		t.Errorf("elapsed %v, expected at least 3 delays", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("elapsed %v is far beyond 3 delays", elapsed)
	}
}

func TestDo_NonRetryableStops(t *testing.T) {
	calls := 0
	sentinel := errors.New("access denied")
	_, err := Do(context.Background(), DefaultRetryConfig(), func(ctx context.Context, attempt int) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Do(ctx, FixedConfig(10, time.Hour), func(ctx context.Context, attempt int) error {
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
