package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/s3smoke/internal/auth"
	"github.com/loykin/s3smoke/internal/config"
	"github.com/loykin/s3smoke/internal/storage"
)

var replayLoc = storage.Locator{Bucket: "dota-replays", Key: "replays/7503212404.dem"}

func newFakeParser(t *testing.T, handler gin.HandlerFunc) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/blob", handler)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestBlobURL_EncodesLocator(t *testing.T) {
	c := New(config.ParserConfig{URL: "http://localhost:5600/"})
	want := "http://localhost:5600/blob?replay_url=s3%3A%2F%2Fdota-replays%2Freplays%2F7503212404.dem"
	if got := c.BlobURL(replayLoc); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if got := c.HealthURL(); got != "http://localhost:5600/healthz" {
		t.Fatalf("unexpected health url %s", got)
	}
}

func TestBlob_OK(t *testing.T) {
	var rawQuery string
	srv := newFakeParser(t, func(c *gin.Context) {
		rawQuery = c.Request.URL.RawQuery
		if c.Query("replay_url") != "s3://dota-replays/replays/7503212404.dem" {
			c.String(http.StatusBadRequest, "bad locator")
			return
		}
		c.JSON(http.StatusOK, gin.H{"match_id": 7503212404})
	})

	resp, err := New(config.ParserConfig{URL: srv.URL}).Blob(context.Background(), replayLoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Body, "7503212404") {
		t.Fatalf("unexpected response %+v", resp)
	}
	if rawQuery != "replay_url=s3%3A%2F%2Fdota-replays%2Freplays%2F7503212404.dem" {
		t.Fatalf("unexpected raw query %q", rawQuery)
	}
}

func TestBlob_StatusErrors(t *testing.T) {
	cases := []struct {
		status    int
		httpError bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadRequest, true},
		{http.StatusAccepted, false},
		{http.StatusNoContent, false},
	}
	for _, tc := range cases {
		srv := newFakeParser(t, func(c *gin.Context) {
			c.String(tc.status, "body-%d", tc.status)
		})
		resp, err := New(config.ParserConfig{URL: srv.URL}).Blob(context.Background(), replayLoc)
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("status %d: expected StatusError, got %v", tc.status, err)
		}
		if se.StatusCode != tc.status || se.HTTPError() != tc.httpError {
			t.Fatalf("status %d: unexpected %+v", tc.status, se)
		}
		if resp == nil || resp.StatusCode != tc.status {
			t.Fatalf("status %d: response should be returned alongside the error", tc.status)
		}
	}
}

func TestBlob_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := New(config.ParserConfig{URL: base, Timeout: time.Second}).Blob(context.Background(), replayLoc)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestBlob_Timeout(t *testing.T) {
	srv := newFakeParser(t, func(c *gin.Context) {
		time.Sleep(300 * time.Millisecond)
		c.String(http.StatusOK, "late")
	})
	_, err := New(config.ParserConfig{URL: srv.URL, Timeout: 50 * time.Millisecond}).Blob(context.Background(), replayLoc)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError on timeout, got %v", err)
	}
}

func TestBlob_AuthHeader(t *testing.T) {
	srv := newFakeParser(t, func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer abc" {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.String(http.StatusOK, "ok")
	})
	cfg := config.ParserConfig{URL: srv.URL, Auth: auth.Config{Type: "bearer", Config: map[string]any{"token": "abc"}}}
	if _, err := New(cfg).Blob(context.Background(), replayLoc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Auth.Config = map[string]any{}
	_, err := New(cfg).Blob(context.Background(), replayLoc)
	if err == nil || !strings.Contains(err.Error(), "acquire parser credentials") {
		t.Fatalf("expected credential error, got %v", err)
	}
}

func TestPreview(t *testing.T) {
	if got, cut := Preview("short", 500); got != "short" || cut {
		t.Fatalf("got %q %v", got, cut)
	}
	got, cut := Preview(strings.Repeat("a", 600), 500)
	if got != strings.Repeat("a", 500) || !cut {
		t.Fatalf("unexpected preview length %d cut=%v", len(got), cut)
	}
	exact := strings.Repeat("b", 500)
	if got, cut := Preview(exact, 500); got != exact || cut {
		t.Fatal("exactly limit characters must not be reported as truncated")
	}
	if got, _ := Preview("héllo wörld", 4); got != "héll" {
		t.Fatalf("preview should count characters, got %q", got)
	}
}

func TestSummarize(t *testing.T) {
	body := `{"match":{"id":7503212404,"duration":2400},"players":[{"hero":"axe"}]}`
	lines := Summarize(body, []string{"match.id", "players.0.hero", "missing", " "})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %+v", lines)
	}
	if lines[0] != (SummaryLine{Path: "match.id", Value: "7503212404"}) || lines[1].Value != "axe" {
		t.Fatalf("unexpected lines %+v", lines)
	}
	if Summarize("not json", []string{"a"}) != nil {
		t.Fatal("non-JSON bodies should not be summarized")
	}
}
