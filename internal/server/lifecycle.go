package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// stopGrace bounds how long one service may take to stop before
// shutdown moves on and flags it.
const stopGrace = 10 * time.Second

// Service is a long-running server component (the game listener, the
// database health loop). Start blocks for the life of the service;
// Stop asks it to wind down.
type Service interface {
	Start() error
	Stop()
}

// FuncService lifts a start/stop closure pair into a Service.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

func (f *FuncService) Start() error { return f.StartFn() }
func (f *FuncService) Stop()        { f.StopFn() }

// Lifecycle starts the server's services in registration order and
// stops them in reverse on SIGINT/SIGTERM, a service failure, or
// context cancellation — the listener always goes down before the
// database pool it persists through.
type Lifecycle struct {
	logger *zap.Logger

	mu      sync.Mutex
	members []member
}

type member struct {
	name string
	svc  Service
}

// NewLifecycle creates an empty lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a service under the name used in lifecycle logs.
// Registration order is start order.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.members = append(l.members, member{name: name, svc: svc})
}

// Run starts every registered service and blocks until a termination
// signal arrives, a service fails, or ctx is cancelled, then stops
// them in reverse order. A service failure is returned to the caller.
//
// Postcondition: every registered Stop has been invoked when Run
// returns.
func (l *Lifecycle) Run(ctx context.Context) error {
	begin := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failed := make(chan error, len(l.members))
	for _, m := range l.members {
		m := m
		go func() {
			l.logger.Info("service starting", zap.String("service", m.name))
			if err := m.svc.Start(); err != nil {
				failed <- fmt.Errorf("service %s: %w", m.name, err)
				cancel()
			}
		}()
	}
	l.logger.Info("server up", zap.Int("services", len(l.members)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("signal received, shutting down", zap.String("signal", sig.String()))
	case err := <-failed:
		l.logger.Error("service failed, shutting down", zap.Error(err))
		runErr = err
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}

	l.stopAll()
	l.logger.Info("server down", zap.Duration("uptime", time.Since(begin)))
	return runErr
}

// stopAll winds services down in reverse start order, bounding each
// Stop so one stuck service cannot wedge the whole shutdown.
func (l *Lifecycle) stopAll() {
	for i := len(l.members) - 1; i >= 0; i-- {
		m := l.members[i]
		l.logger.Info("service stopping", zap.String("service", m.name))

		stopped := make(chan struct{})
		go func() {
			m.svc.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(stopGrace):
			l.logger.Warn("service did not stop in time, moving on",
				zap.String("service", m.name), zap.Duration("grace", stopGrace))
		}
	}
}
