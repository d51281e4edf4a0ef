// Package probe gates the scenario on dependencies answering their health
// endpoints.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/s3smoke/internal/common"
	"github.com/loykin/s3smoke/internal/constants"
	"github.com/loykin/s3smoke/internal/httpc"
	"github.com/loykin/s3smoke/internal/retry"
	"github.com/loykin/s3smoke/internal/util"
)

// Probe describes one readiness check.
type Probe struct {
	Name        string
	URL         string
	Method      string        // GET (default) or HEAD
	MaxAttempts int           // default 30
	Timeout     time.Duration // per attempt, default 2s
	Interval    time.Duration // between attempts, default 2s
	HTTP        *httpc.Httpc  // TLS settings; Timeout is overridden per attempt
}

// Result is the outcome of Wait.
type Result struct {
	Ready      bool
	Attempts   int
	LastStatus int
	LastErr    error
}

// StatusError is returned by an attempt that got a non-2xx answer.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.Status)
}

func (p Probe) normalized() Probe {
	p.Method = strings.ToUpper(util.TrimWithDefault(p.Method, constants.DefaultProbeMethod))
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = constants.DefaultProbeAttempts
	}
	if p.Timeout <= 0 {
		p.Timeout = constants.DefaultProbeTimeout
	}
	if p.Interval < 0 {
		p.Interval = constants.DefaultProbeInterval
	}
	return p
}

// Wait issues requests until one answers 2xx or MaxAttempts is exhausted,
// sleeping Interval between attempts. Transport errors and non-2xx
// statuses are both retried.
func (p Probe) Wait(ctx context.Context) Result {
	p = p.normalized()
	logger := common.GetLogger().WithComponent("probe").WithRequest(p.Method, p.URL)

	hc := httpc.Httpc{Timeout: p.Timeout}
	if p.HTTP != nil {
		hc.TlsConfig = p.HTTP.TlsConfig
	}
	client := hc.New()

	var res Result
	attempts, err := retry.Do(ctx, retry.FixedConfig(p.MaxAttempts, p.Interval), func(ctx context.Context, attempt int) error {
		req := client.R().SetContext(ctx)
		var (
			status int
			err    error
		)
		if p.Method == "HEAD" {
			resp, e := req.Head(p.URL)
			err = e
			if resp != nil {
				status = resp.StatusCode()
			}
		} else {
			resp, e := req.Get(p.URL)
			err = e
			if resp != nil {
				status = resp.StatusCode()
			}
		}
		res.LastStatus = status
		if err != nil {
			logger.Debug("probe attempt failed", "name", p.Name, "attempt", attempt, "error", err)
			return err
		}
		if status < 200 || status > 299 {
			logger.Debug("probe attempt not ready", "name", p.Name, "attempt", attempt, "status", status)
			return &StatusError{URL: p.URL, Status: status}
		}
		return nil
	})

	res.Attempts = attempts
	res.Ready = err == nil
	res.LastErr = err
	if res.Ready {
		logger.Info("dependency ready", "name", p.Name, "attempts", attempts)
	} else {
		logger.Warn("dependency not ready", "name", p.Name, "attempts", attempts, "error", err)
	}
	return res
}
