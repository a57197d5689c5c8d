// Package service implements the legacy in-process deadline scheduler.
// It predates the backend-owned outbox and is kept behind a flag for
// single-instance deployments: pending deadlines live in a priority
// queue drained by one goroutine and survive restarts via the state file
package service

import (
	"container/heap"
	"context"
	"strconv"
	"sync"
	"time"

	"stakegate/internal/platform/logger"
	"stakegate/internal/platform/metrics"
	"stakegate/internal/platform/statefile"
)

// Trigger is invoked when a deadline fires
type Trigger interface {
	DeadlineCheck(ctx context.Context, challengeID string) error
}

// Scheduler arms one-shot deadlines keyed by challenge id. Ensure is
// idempotent, Cancel is a no-op for unknown ids, and a fired entry is
// removed whether or not its trigger succeeds
type Scheduler struct {
	mu    sync.Mutex
	queue deadlineHeap
	armed map[string]bool
	wake  chan struct{}

	trigger Trigger
	file    *statefile.File
	met     *metrics.Metrics
	log     logger.Logger

	now func() time.Time
}

// New constructs a Scheduler. file may be nil for a memory-only
// scheduler; when set, deadlines persisted by a previous process are
// re-armed immediately
func New(trigger Trigger, file *statefile.File, met *metrics.Metrics) *Scheduler {
	s := &Scheduler{
		armed:   make(map[string]bool),
		wake:    make(chan struct{}, 1),
		trigger: trigger,
		file:    file,
		met:     met,
		log:     *logger.Named("deadline"),
		now:     time.Now,
	}
	if file != nil {
		file.View(func(st statefile.State) {
			for _, d := range st.Deadlines {
				s.push(d)
			}
		})
		if n := len(s.queue); n > 0 {
			s.log.Info().Int("count", n).Msg("re-armed persisted deadlines")
		}
	}
	return s
}

// Ensure arms a deadline unless one is already armed for the challenge
func (s *Scheduler) Ensure(d statefile.Deadline) error {
	s.mu.Lock()
	if s.armed[d.ChallengeID] {
		s.mu.Unlock()
		return nil
	}
	s.push(d)
	s.mu.Unlock()

	s.kick()
	return s.persist(func(st *statefile.State) {
		st.Deadlines[d.ChallengeID] = d
	})
}

// Cancel disarms a pending deadline; unknown ids are a no-op
func (s *Scheduler) Cancel(challengeID string) error {
	s.mu.Lock()
	if !s.armed[challengeID] {
		s.mu.Unlock()
		return nil
	}
	delete(s.armed, challengeID)
	s.mu.Unlock()

	s.kick()
	return s.persist(func(st *statefile.State) {
		delete(st.Deadlines, challengeID)
	})
}

// CacheRepoInstallation records which installation owns a repository so
// a restarted process can resolve repos without waiting for a webhook
func (s *Scheduler) CacheRepoInstallation(repoID int64, installationID int64, fullName string) error {
	return s.persist(func(st *statefile.State) {
		st.RepoInstallations[strconv.FormatInt(repoID, 10)] = statefile.RepoInstallation{
			InstallationID: installationID,
			FullName:       fullName,
		}
	})
}

// Run drains the queue until ctx is cancelled. A single goroutine owns
// all firing, so deadlines fire in deterministic order even when many
// expire at once
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		d, ok := s.nextDue()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
				continue
			}
		}

		wait := d.DeadlineAt.Sub(s.now())
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-s.wake:
				t.Stop()
				continue
			case <-t.C:
			}
		}

		s.fire(ctx, d)
	}
}

// nextDue peeks the earliest armed deadline, discarding cancelled
// entries left in the heap
func (s *Scheduler) nextDue() (statefile.Deadline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 {
		d := s.queue[0]
		if s.armed[d.ChallengeID] {
			return d, true
		}
		heap.Pop(&s.queue)
	}
	return statefile.Deadline{}, false
}

func (s *Scheduler) fire(ctx context.Context, d statefile.Deadline) {
	s.mu.Lock()
	// the head may have changed while we slept
	if len(s.queue) == 0 || s.queue[0].ChallengeID != d.ChallengeID || !s.armed[d.ChallengeID] {
		s.mu.Unlock()
		return
	}
	heap.Pop(&s.queue)
	delete(s.armed, d.ChallengeID)
	s.mu.Unlock()

	// removed before triggering: a failing trigger must not leave a
	// dangling timer
	if err := s.persist(func(st *statefile.State) {
		delete(st.Deadlines, d.ChallengeID)
	}); err != nil {
		s.met.Errors.Inc()
		s.log.Warn().Str("challenge_id", d.ChallengeID).Err(err).Msg("persist after fire failed")
	}

	s.log.Info().Str("challenge_id", d.ChallengeID).Str("repo", d.RepoFullName).
		Int("pr", d.PRNumber).Msg("deadline fired")
	if err := s.trigger.DeadlineCheck(ctx, d.ChallengeID); err != nil {
		s.met.Errors.Inc()
		s.log.Warn().Str("challenge_id", d.ChallengeID).Err(err).Msg("deadline trigger failed")
	}
}

// push arms an entry; callers hold the lock or own the scheduler
func (s *Scheduler) push(d statefile.Deadline) {
	heap.Push(&s.queue, d)
	s.armed[d.ChallengeID] = true
}

func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) persist(fn func(*statefile.State)) error {
	if s.file == nil {
		return nil
	}
	return s.file.Update(fn)
}

// deadlineHeap is a min-heap ordered by DeadlineAt
type deadlineHeap []statefile.Deadline

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].DeadlineAt.Before(h[j].DeadlineAt) }
func (h deadlineHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x any)        { *h = append(*h, x.(statefile.Deadline)) }
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
