package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/config"
	"github.com/jianghu-games/wuxia/internal/game/session"
)

// Listener accepts game connections and starts the round loop exactly
// once, as soon as the configured number of players is bound. It
// implements the lifecycle Service interface.
type Listener struct {
	cfg        config.Config
	registry   *session.Registry
	accounts   AccountStore
	characters CharacterStore
	// startGame is invoked on its own goroutine when expected_players
	// entities are bound.
	startGame func()
	logger    *zap.Logger

	mu      sync.Mutex
	ln      net.Listener
	bound   int
	started bool
	closed  bool

	handlers sync.WaitGroup
}

// NewListener creates the acceptor.
//
// Precondition: startGame must be non-nil.
func NewListener(cfg config.Config, registry *session.Registry, accounts AccountStore, characters CharacterStore, startGame func(), logger *zap.Logger) *Listener {
	return &Listener{
		cfg:        cfg,
		registry:   registry,
		accounts:   accounts,
		characters: characters,
		startGame:  startGame,
		logger:     logger,
	}
}

// Start listens and accepts until Stop is called. Blocks, per the
// lifecycle Service contract.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.cfg.Server.Addr(), err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		ln.Close()
		return nil
	}
	l.ln = ln
	l.mu.Unlock()

	l.logger.Info("game listener started",
		zap.String("addr", l.cfg.Server.Addr()),
		zap.Int("expected_players", l.cfg.Server.ExpectedPlayers))

	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn("accept failed", zap.Error(err))
			continue
		}

		conn := NewConn(nc, l.cfg.Server.WriteTimeout, l.logger)
		h := NewHandler(conn, l.registry, l.accounts, l.characters,
			l.cfg.Game, l.playerBound, l.logger)

		l.handlers.Add(1)
		go func() {
			defer l.handlers.Done()
			h.Run(context.Background())
		}()
	}
}

// Addr returns the bound listen address, nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Stop closes the listening socket. In-flight handlers finish on their
// own liveness terms.
func (l *Listener) Stop() {
	l.mu.Lock()
	l.closed = true
	ln := l.ln
	l.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
}

// playerBound counts bound entities and fires the game start once the
// table is full. Later bindings (reconnections) never re-trigger it.
func (l *Listener) playerBound() {
	l.mu.Lock()
	l.bound++
	shouldStart := !l.started && l.bound >= l.cfg.Server.ExpectedPlayers
	if shouldStart {
		l.started = true
	}
	bound := l.bound
	l.mu.Unlock()

	l.logger.Info("player bound",
		zap.Int("bound", bound),
		zap.Int("expected", l.cfg.Server.ExpectedPlayers))

	if shouldStart {
		l.logger.Info("all players bound, starting game")
		go l.startGame()
	}
}
