// Package backend is the signed client for the staking backend's internal
// API: webhook event ingest, the bot action outbox, and deadline checks
package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	perr "stakegate/internal/platform/errors"
	"stakegate/internal/platform/logger"
	"stakegate/internal/platform/net/retry"
	"stakegate/internal/platform/signing"
)

const (
	headerKeyID     = "X-Internal-Key-Id"
	headerTimestamp = "X-Internal-Timestamp"
	headerSignature = "X-Internal-Signature"
)

// Options configures the Client
type Options struct {
	BaseURL string
	KeyID   string
	Secret  string
	Retry   retry.Options
}

// Client calls the backend's internal endpoints. Every request carries a
// timestamped HMAC over a message canonical to the endpoint, so signatures
// cannot be replayed across endpoints
type Client struct {
	rt     *retry.Client
	base   string
	signer signing.InternalSigner
	log    logger.Logger
	now    func() time.Time
}

// NewClient creates a Client for the given backend base URL
func NewClient(o Options) *Client {
	return &Client{
		rt:     retry.New(o.Retry),
		base:   o.BaseURL,
		signer: signing.NewInternalSigner(o.KeyID, o.Secret),
		log:    *logger.Named("backend"),
		now:    time.Now,
	}
}

// PushPullRequestEvent forwards a normalized pull_request event. The
// backend dedupes on delivery id; DUPLICATE is a normal outcome
func (c *Client) PushPullRequestEvent(ctx context.Context, req PullRequestEventRequest) (IngestStatus, error) {
	var out prEventResponse
	err := c.post(ctx, "/internal/v1/github/events/pull-request", req.DeliveryID, req, &out)
	if err != nil {
		return "", err
	}
	if out.ChallengeID != "" || out.EnqueuedActions > 0 {
		c.log.Debug().Str("delivery_id", req.DeliveryID).Str("challenge_id", out.ChallengeID).
			Int("enqueued_actions", out.EnqueuedActions).Msg("event accepted")
	}
	return out.IngestStatus, nil
}

// PushInstallationSync forwards a normalized installation lifecycle event
func (c *Client) PushInstallationSync(ctx context.Context, req InstallationSyncRequest) (IngestStatus, error) {
	var out installationSyncResponse
	err := c.post(ctx, "/internal/v1/github/events/installation-sync", req.DeliveryID, req, &out)
	if err != nil {
		return "", err
	}
	return out.IngestStatus, nil
}

// ClaimActions leases up to limit pending actions for this worker. The
// backend re-leases unacked claims after a visibility timeout, so losing
// a claim is safe
func (c *Client) ClaimActions(ctx context.Context, workerID string, limit int) ([]BotAction, error) {
	var out claimResponse
	msg := "bot-actions-claim:" + workerID
	err := c.post(ctx, "/internal/v1/bot-actions/claim", msg, claimRequest{WorkerID: workerID, Limit: limit}, &out)
	if err != nil {
		return nil, err
	}
	return out.Actions, nil
}

// ReportActionResult acks one claimed action with its terminal outcome
func (c *Client) ReportActionResult(ctx context.Context, actionID string, req ActionResultRequest) error {
	path := "/internal/v1/bot-actions/" + actionID + "/result"
	return c.post(ctx, path, "bot-actions-result:"+actionID, req, nil)
}

// DeadlineCheck asks the backend to evaluate a challenge whose stake
// deadline has passed
func (c *Client) DeadlineCheck(ctx context.Context, challengeID string) error {
	path := "/internal/v1/challenges/" + challengeID + "/deadline-check"
	var out deadlineCheckResponse
	if err := c.post(ctx, path, challengeID, nil, &out); err != nil {
		return err
	}
	c.log.Debug().Str("challenge_id", challengeID).Str("status", out.Status).Msg("deadline check")
	return nil
}

func (c *Client) post(ctx context.Context, path, message string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeJSON, "encode backend request")
		}
		payload = b
	}

	ts := c.now().Unix()
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(headerKeyID, c.signer.KeyID)
	h.Set(headerTimestamp, strconv.FormatInt(ts, 10))
	h.Set(headerSignature, c.signer.Sign(ts, message))

	resp, err := c.rt.Do(ctx, http.MethodPost, c.base+path, h, payload)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "read backend response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusErr(resp.StatusCode, path, b)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "decode backend response")
	}
	return nil
}

func (c *Client) statusErr(status int, path string, body []byte) error {
	tail := body
	if len(tail) > 2048 {
		tail = tail[:2048]
	}
	c.log.Debug().Str("path", path).Int("status", status).Msg("backend non-2xx")

	switch {
	case status == http.StatusNotFound:
		return perr.NotFoundf("backend %s returned 404", path)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return perr.Unauthorizedf("backend rejected internal signature for %s", path)
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return perr.InvalidArgf("backend rejected payload for %s: %s", path, string(tail))
	case status == http.StatusTooManyRequests:
		return perr.Newf(perr.ErrorCodeTooManyRequests, "backend rate limited %s", path)
	case status >= 500:
		return perr.Unavailablef("backend server error %d on %s", status, path)
	default:
		return perr.Newf(perr.ErrorCodeUnknown, "backend unexpected status %d on %s", status, path)
	}
}
