package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// stubService blocks in Start until stopped, recording its stop order
// in a shared journal.
type stubService struct {
	name    string
	journal *stopJournal
	startFn func() error

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

type stopJournal struct {
	mu    sync.Mutex
	order []string
}

func (j *stopJournal) record(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.order = append(j.order, name)
}

func (j *stopJournal) names() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.order...)
}

func newStubService(name string, journal *stopJournal) *stubService {
	return &stubService{name: name, journal: journal, done: make(chan struct{})}
}

func (s *stubService) Start() error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	if s.startFn != nil {
		return s.startFn()
	}
	<-s.done
	return nil
}

func (s *stubService) Stop() {
	if s.journal != nil {
		s.journal.record(s.name)
	}
	close(s.done)
}

func (s *stubService) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func TestLifecycle_StopsInReverseOrderOnCancel(t *testing.T) {
	journal := &stopJournal{}
	listener := newStubService("listener", journal)
	db := newStubService("postgres", journal)

	lc := NewLifecycle(zaptest.NewLogger(t))
	lc.Add("listener", listener)
	lc.Add("postgres", db)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	require.Eventually(t, func() bool { return listener.Started() && db.Started() },
		2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	assert.Equal(t, []string{"postgres", "listener"}, journal.names(),
		"services stop in reverse registration order")
}

func TestLifecycle_ServiceFailureSurfacesAndStopsTheRest(t *testing.T) {
	journal := &stopJournal{}
	healthy := newStubService("listener", journal)
	broken := newStubService("postgres", journal)
	broken.startFn = func() error { return errors.New("connection refused") }

	lc := NewLifecycle(zaptest.NewLogger(t))
	lc.Add("listener", healthy)
	lc.Add("postgres", broken)

	done := make(chan error, 1)
	go func() { done <- lc.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "postgres")
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down after the failure")
	}
	assert.Contains(t, journal.names(), "listener",
		"healthy services still get stopped")
}

func TestFuncService(t *testing.T) {
	var started, stopped bool
	svc := &FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() { stopped = true },
	}

	require.NoError(t, svc.Start())
	assert.True(t, started)

	svc.Stop()
	assert.True(t, stopped)
}
