package service

import (
	"context"
	"sync/atomic"
	"time"

	"stakegate/internal/adapters/backend"
	"stakegate/internal/platform/logger"
	"stakegate/internal/platform/metrics"
	dom "stakegate/internal/services/outbox/domain"

	"github.com/rs/zerolog"
)

// WorkerConfig tunes the poll loop
type WorkerConfig struct {
	WorkerID   string
	Interval   time.Duration
	ClaimLimit int
}

// Worker runs the poll, claim, execute, ack loop. Ticks are single
// flight: a tick that overruns the interval causes the next tick to be
// skipped rather than overlap, so claim batches never race for one
// worker. Within a tick actions run sequentially, bounding outbound
// GitHub concurrency to one call at a time
type Worker struct {
	cfg    WorkerConfig
	source dom.ActionSource
	exec   *Svc
	met    *metrics.Metrics
	log    logger.Logger

	inFlight atomic.Bool
}

// NewWorker constructs the poll worker
func NewWorker(cfg WorkerConfig, source dom.ActionSource, exec *Svc, met *metrics.Metrics) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = 5
	}
	return &Worker{
		cfg:    cfg,
		source: source,
		exec:   exec,
		met:    met,
		log:    *logger.Named("outbox"),
	}
}

// Run ticks until ctx is cancelled. Tick failures are logged and
// counted; the loop itself never dies
func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()

	w.log.Info().Str("worker_id", w.cfg.WorkerID).Dur("interval", w.cfg.Interval).
		Int("claim_limit", w.cfg.ClaimLimit).Msg("outbox poll loop started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one claim cycle. It returns immediately when a previous
// tick is still in flight
func (w *Worker) Tick(ctx context.Context) {
	if !w.inFlight.CompareAndSwap(false, true) {
		w.log.Debug().Msg("tick skipped, previous still running")
		return
	}
	defer w.inFlight.Store(false)

	w.met.OutboxClaims.Inc()
	actions, err := w.source.ClaimActions(ctx, w.cfg.WorkerID, w.cfg.ClaimLimit)
	if err != nil {
		w.met.Errors.Inc()
		w.log.Warn().Err(err).Msg("claim failed, skipping tick")
		return
	}
	if len(actions) == 0 {
		return
	}
	w.met.OutboxActionsClaimed.Add(float64(len(actions)))

	for _, a := range actions {
		w.runOne(ctx, a)
	}
}

// runOne executes and acks a single action; its failure never aborts
// the rest of the batch
func (w *Worker) runOne(ctx context.Context, a backend.BotAction) {
	out := w.exec.Execute(ctx, a)

	switch out.Outcome {
	case backend.OutcomeSucceeded:
		w.met.ActionsSucceeded.Inc()
	case backend.OutcomeRetryableFailure:
		w.met.ActionsRetryable.Inc()
	default:
		w.met.ActionsFailed.Inc()
	}

	lvl := zerolog.InfoLevel
	if out.Outcome != backend.OutcomeSucceeded {
		lvl = zerolog.WarnLevel
	}
	w.log.WithLevel(lvl).Str("action_id", a.ID).Str("action_type", a.ActionType).
		Str("outcome", string(out.Outcome)).Str("failure_code", out.FailureCode).
		Msg("action executed")

	err := w.source.ReportActionResult(ctx, a.ID, backend.ActionResultRequest{
		WorkerID:       w.cfg.WorkerID,
		Outcome:        out.Outcome,
		FailureCode:    out.FailureCode,
		FailureMessage: out.FailureMessage,
	})
	if err != nil {
		// the backend reclaims unacked actions after lease expiry, so
		// no local ack retry
		w.met.Errors.Inc()
		w.log.Warn().Str("action_id", a.ID).Err(err).Msg("ack failed")
	}
}
