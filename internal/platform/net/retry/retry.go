// Package retry wraps outbound HTTP calls with bounded exponential-backoff
// retry on transient status codes and transport errors
package retry

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	perr "stakegate/internal/platform/errors"
	"stakegate/internal/platform/logger"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 200 * time.Millisecond
	defaultTimeout   = 15 * time.Second
)

// Options configures the Client
type Options struct {
	Attempts  int
	BaseDelay time.Duration
	Timeout   time.Duration
}

// Client issues requests with retry. Bodies are held as byte slices so an
// attempt can always be replayed
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	sleep func(time.Duration)
}

// New creates a Client with sane defaults
func New(o Options) *Client {
	if o.Attempts <= 0 {
		o.Attempts = defaultAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("retry"),
		sleep: time.Sleep,
	}
}

// Retryable reports whether a status code is worth another attempt
func Retryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}

// Do issues the request up to Attempts times. A non-retryable status is
// returned immediately and is authoritative even when not 2xx. After
// exhausting attempts the last response is returned as-is; after
// exhausting attempts on transport errors the wrapped error surfaces
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.opts.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, perr.Wrapf(ctx.Err(), perr.ErrorCodeUnavailable, "request cancelled")
		default:
		}

		var rd io.Reader
		if len(body) > 0 {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "build request")
		}
		for k, vv := range header {
			for _, v := range vv {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt == c.opts.Attempts-1 {
				break
			}
			back := c.backoff(attempt)
			c.log.Warn().Str("url", url).Int("attempt", attempt).Dur("retry_in", back).
				Err(err).Msg("transport error retrying")
			c.sleep(back)
			continue
		}

		if !Retryable(resp.StatusCode) || attempt == c.opts.Attempts-1 {
			return resp, nil
		}

		back := c.backoff(attempt)
		c.log.Warn().Str("url", url).Int("status", resp.StatusCode).Int("attempt", attempt).
			Dur("retry_in", back).Msg("retryable status retrying")
		drain(resp.Body)
		c.sleep(back)
	}
	return nil, perr.Wrapf(lastErr, perr.ErrorCodeUnavailable, "%s %s failed after %d attempts", method, url, c.opts.Attempts)
}

// backoff is deterministic exponential: base * 2^attempt, no jitter
func (c *Client) backoff(attempt int) time.Duration {
	return c.opts.BaseDelay << uint(attempt)
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1<<16))
	_ = rc.Close()
}
