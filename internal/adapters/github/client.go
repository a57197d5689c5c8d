// Package github provides the GitHub REST client used by the bot: App
// authentication, installation token minting with stale-id recovery, and
// the idempotent PR side effects the outbox executes
package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"time"

	perr "stakegate/internal/platform/errors"
	"stakegate/internal/platform/logger"
	"stakegate/internal/platform/net/retry"
	"stakegate/internal/platform/signing"
)

const (
	baseURLDefault    = "https://api.github.com"
	defaultUA         = "stakegate-bot"
	defaultAPIVersion = "2022-11-28"
)

// Options configures the Client
type Options struct {
	BaseURL    string
	UserAgent  string
	APIVersion string

	AppID      string
	PrivateKey *rsa.PrivateKey

	Retry retry.Options
}

// Client is a minimal GitHub REST client authenticated as a GitHub App
type Client struct {
	rt   *retry.Client
	opts Options
	log  logger.Logger
	now  func() time.Time
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.APIVersion == "" {
		o.APIVersion = defaultAPIVersion
	}
	return &Client{
		rt:   retry.New(o.Retry),
		opts: o,
		log:  *logger.Named("github"),
		now:  time.Now,
	}
}

// appJWT mints a fresh App JWT; tokens are not cached, each operation
// mints on demand
func (c *Client) appJWT() (string, error) {
	return signing.AppJWT(c.opts.AppID, c.opts.PrivateKey, c.now())
}

// do issues one call through the retrying transport and maps non-2xx
// statuses to typed errors at the point of origin
func (c *Client) do(ctx context.Context, method, path, bearer string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "encode request body")
		}
		payload = b
	}

	h := http.Header{}
	h.Set("User-Agent", c.opts.UserAgent)
	h.Set("Accept", "application/vnd.github+json")
	h.Set("X-GitHub-Api-Version", c.opts.APIVersion)
	h.Set("Authorization", "Bearer "+bearer)
	if payload != nil {
		h.Set("Content-Type", "application/json")
	}

	resp, err := c.rt.Do(ctx, method, c.opts.BaseURL+path, h, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	_ = resp.Body.Close()
	c.log.Debug().Str("method", method).Str("path", path).
		Int("status", resp.StatusCode).Msg("github non-2xx")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, perr.NotFoundf("github %s %s returned 404", method, path)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, perr.Unauthorizedf("github rejected credentials for %s", path)
	case resp.StatusCode == http.StatusForbidden:
		return nil, perr.Newf(perr.ErrorCodeForbidden, "github forbade %s", path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, perr.Newf(perr.ErrorCodeTooManyRequests, "github rate limited %s", path)
	case resp.StatusCode >= 500:
		return nil, perr.Unavailablef("github server error %d on %s", resp.StatusCode, path)
	default:
		return nil, perr.Newf(perr.ErrorCodeUnknown,
			"github unexpected status %d on %s body %s", resp.StatusCode, path, string(tail))
	}
}

// decode reads and JSON-decodes a response body, then closes it
func decode(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "read github response")
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "decode github response")
	}
	return nil
}
