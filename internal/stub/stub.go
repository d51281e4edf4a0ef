// Package stub serves a stand-in for the replay parser: it resolves the
// s3:// locator it is given, reads the object and reports what it read.
// It lets the smoke test run end to end without the real parser.
package stub

import (
	"compress/bzip2"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/s3smoke/internal/common"
	"github.com/loykin/s3smoke/internal/constants"
	"github.com/loykin/s3smoke/internal/storage"
)

// BlobResult is the JSON body of a successful /blob call.
type BlobResult struct {
	ReplayURL   string `json:"replay_url"`
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
	Compression string `json:"compression"`
}

// Server wires the stub routes to an object reader.
type Server struct {
	reader storage.ObjectReader
	engine *gin.Engine
}

// NewServer builds the gin engine. Gin runs in release mode.
func NewServer(reader storage.ObjectReader) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{reader: reader, engine: engine}
	engine.GET(constants.ParserHealthPath, s.healthz)
	engine.GET(constants.ParserBlobPath, s.blob)
	return s
}

// Handler exposes the engine for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.engine.Handler()
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	logger := common.GetLogger().WithComponent("stub")
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stub parser listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("stub parser shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) blob(c *gin.Context) {
	logger := common.GetLogger().WithComponent("stub")

	replayURL := c.Query(constants.ReplayURLParam)
	if replayURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "replay_url query parameter is required"})
		return
	}
	loc, err := storage.ParseLocator(replayURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.Info("processing replay", "replay_url", replayURL)
	res, err := s.digest(c.Request.Context(), loc)
	if err != nil {
		logger.Error("replay download failed", "replay_url", replayURL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	res.ReplayURL = replayURL
	c.JSON(http.StatusOK, res)
}

// digest streams the object through sha256, decompressing .bz2 replays
// first so size and hash describe the replay itself.
func (s *Server) digest(ctx context.Context, loc storage.Locator) (*BlobResult, error) {
	rc, err := s.reader.GetObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var src io.Reader = rc
	compression := "none"
	if strings.HasSuffix(loc.Key, ".bz2") {
		src = bzip2.NewReader(rc)
		compression = "bzip2"
	}

	h := sha256.New()
	n, err := io.Copy(h, src)
	if err != nil {
		return nil, err
	}
	return &BlobResult{
		Bucket:      loc.Bucket,
		Key:         loc.Key,
		Size:        n,
		SHA256:      hex.EncodeToString(h.Sum(nil)),
		Compression: compression,
	}, nil
}
