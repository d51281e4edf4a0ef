// Package parser is the client side of the replay parsing service under
// test.
package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/loykin/s3smoke/internal/auth"
	"github.com/loykin/s3smoke/internal/common"
	"github.com/loykin/s3smoke/internal/config"
	"github.com/loykin/s3smoke/internal/constants"
	"github.com/loykin/s3smoke/internal/httpc"
	"github.com/loykin/s3smoke/internal/storage"
	"github.com/loykin/s3smoke/internal/util"
)

// Response is what the parser answered.
type Response struct {
	StatusCode int
	Body       string
}

// TransportError means no HTTP response was received.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is returned for any answer other than 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("parser returned status %d", e.StatusCode)
}

// HTTPError reports statuses of 400 and above, which are printed as HTTP
// errors rather than unexpected statuses.
func (e *StatusError) HTTPError() bool {
	return e.StatusCode >= http.StatusBadRequest
}

// Client calls the parser's blob endpoint.
type Client struct {
	baseURL string
	http    *httpc.Httpc
	auth    auth.Config
}

// New builds a client from the parser section of the configuration.
func New(cfg config.ParserConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultParserTimeout
	}
	return &Client{
		baseURL: util.TrimWithDefault(cfg.URL, constants.DefaultParserURL),
		http: &httpc.Httpc{
			Timeout:   timeout,
			TlsConfig: httpc.TLSConfig(cfg.Insecure, cfg.MinTLSVersion, cfg.MaxTLSVersion),
		},
		auth: cfg.Auth,
	}
}

// HealthURL is probed before the scenario starts.
func (c *Client) HealthURL() string {
	return util.JoinURL(c.baseURL, constants.ParserHealthPath)
}

// TLS exposes the client TLS settings so the health probe can share them.
func (c *Client) TLS() *httpc.Httpc {
	return &httpc.Httpc{TlsConfig: c.http.TlsConfig}
}

// BlobURL builds GET /blob?replay_url=<locator>. The locator is encoded
// with QueryEscape, so "/" and ":" are percent-encoded too.
func (c *Client) BlobURL(loc storage.Locator) string {
	return util.JoinURL(c.baseURL, constants.ParserBlobPath) + "?" +
		constants.ReplayURLParam + "=" + url.QueryEscape(loc.String())
}

// Blob asks the parser to fetch and process loc. A non-nil Response is
// returned whenever the parser answered, together with a *StatusError when
// the status is not 200.
func (c *Client) Blob(ctx context.Context, loc storage.Locator) (*Response, error) {
	target := c.BlobURL(loc)
	logger := common.GetLogger().WithComponent("parser").WithRequest(http.MethodGet, target)

	req := c.http.New().R().SetContext(ctx)
	if c.auth.Enabled() {
		header, value, err := auth.Acquire(ctx, c.auth)
		if err != nil {
			return nil, fmt.Errorf("acquire parser credentials: %w", err)
		}
		req.SetHeader(header, value)
	}

	resp, err := req.Get(target)
	if err != nil {
		logger.Debug("parser request failed", "error", err)
		return nil, &TransportError{URL: target, Err: err}
	}

	out := &Response{StatusCode: resp.StatusCode(), Body: resp.String()}
	logger.Debug("parser responded", "status", out.StatusCode, "bytes", len(resp.Body()))
	if out.StatusCode != http.StatusOK {
		return out, &StatusError{StatusCode: out.StatusCode, Body: out.Body}
	}
	return out, nil
}
