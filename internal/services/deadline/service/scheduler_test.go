package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stakegate/internal/platform/metrics"
	"stakegate/internal/platform/statefile"
)

type fakeTrigger struct {
	mu    sync.Mutex
	fired []string
	err   error
	ch    chan string
}

func newFakeTrigger() *fakeTrigger {
	return &fakeTrigger{ch: make(chan string, 16)}
}

func (f *fakeTrigger) DeadlineCheck(_ context.Context, challengeID string) error {
	f.mu.Lock()
	f.fired = append(f.fired, challengeID)
	f.mu.Unlock()
	f.ch <- challengeID
	return f.err
}

func (f *fakeTrigger) firedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fired...)
}

func waitFired(t *testing.T, trig *fakeTrigger, want string) {
	t.Helper()
	select {
	case got := <-trig.ch:
		if got != want {
			t.Fatalf("fired %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("deadline %q never fired", want)
	}
}

func deadlineIn(id string, d time.Duration) statefile.Deadline {
	return statefile.Deadline{
		ChallengeID:    id,
		InstallationID: 42,
		RepoFullName:   "acme/widgets",
		PRNumber:       7,
		DeadlineAt:     time.Now().Add(d),
	}
}

func runScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSchedulerFiresInOrder(t *testing.T) {
	trig := newFakeTrigger()
	s := New(trig, nil, metrics.New())
	runScheduler(t, s)

	// armed out of order on purpose
	if err := s.Ensure(deadlineIn("ch-late", 60*time.Millisecond)); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := s.Ensure(deadlineIn("ch-early", 10*time.Millisecond)); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	waitFired(t, trig, "ch-early")
	waitFired(t, trig, "ch-late")
}

func TestSchedulerEnsureIsIdempotent(t *testing.T) {
	trig := newFakeTrigger()
	s := New(trig, nil, metrics.New())
	runScheduler(t, s)

	d := deadlineIn("ch-1", 20*time.Millisecond)
	if err := s.Ensure(d); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := s.Ensure(d); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}

	waitFired(t, trig, "ch-1")
	select {
	case extra := <-trig.ch:
		t.Fatalf("deadline fired twice: %q", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerCancel(t *testing.T) {
	trig := newFakeTrigger()
	s := New(trig, nil, metrics.New())
	runScheduler(t, s)

	if err := s.Ensure(deadlineIn("ch-cancel", 30*time.Millisecond)); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := s.Cancel("ch-cancel"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := s.Cancel("ch-unknown"); err != nil {
		t.Fatalf("Cancel unknown: %v", err)
	}

	select {
	case got := <-trig.ch:
		t.Fatalf("cancelled deadline fired: %q", got)
	case <-time.After(120 * time.Millisecond):
	}
}

func TestSchedulerTriggerErrorStillRemovesEntry(t *testing.T) {
	trig := newFakeTrigger()
	trig.err = context.DeadlineExceeded
	s := New(trig, nil, metrics.New())
	runScheduler(t, s)

	if err := s.Ensure(deadlineIn("ch-err", 10*time.Millisecond)); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	waitFired(t, trig, "ch-err")

	select {
	case got := <-trig.ch:
		t.Fatalf("entry left dangling, fired again: %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerRearmsFromStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	f1, err := statefile.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	first := New(newFakeTrigger(), f1, metrics.New())
	if err := first.Ensure(deadlineIn("ch-persist", time.Hour)); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	// first scheduler never runs; the process "crashes" here

	f2, err := statefile.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	trig := newFakeTrigger()
	second := New(trig, f2, metrics.New())
	second.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	runScheduler(t, second)

	waitFired(t, trig, "ch-persist")

	// fired entries must leave the file so a third start re-arms nothing
	f3, err := statefile.Open(path)
	if err != nil {
		t.Fatalf("third open: %v", err)
	}
	f3.View(func(st statefile.State) {
		if len(st.Deadlines) != 0 {
			t.Fatalf("deadlines left in file: %+v", st.Deadlines)
		}
	})
}

func TestSchedulerPersistsCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	f, err := statefile.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s := New(newFakeTrigger(), f, metrics.New())

	if err := s.Ensure(deadlineIn("ch-1", time.Hour)); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := s.Cancel("ch-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	re, err := statefile.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	re.View(func(st statefile.State) {
		if len(st.Deadlines) != 0 {
			t.Fatalf("cancelled deadline persisted: %+v", st.Deadlines)
		}
	})
}
