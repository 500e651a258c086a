// Package main provides the game server binary: it accepts player
// connections over TCP, runs the round loop once every expected seat is
// filled, and persists characters to PostgreSQL.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/config"
	"github.com/jianghu-games/wuxia/internal/game/ai"
	"github.com/jianghu-games/wuxia/internal/game/arena"
	"github.com/jianghu-games/wuxia/internal/game/combat"
	"github.com/jianghu-games/wuxia/internal/game/dice"
	"github.com/jianghu-games/wuxia/internal/game/entity"
	"github.com/jianghu-games/wuxia/internal/game/npcfight"
	"github.com/jianghu-games/wuxia/internal/game/session"
	"github.com/jianghu-games/wuxia/internal/game/training"
	"github.com/jianghu-games/wuxia/internal/game/turn"
	"github.com/jianghu-games/wuxia/internal/observability"
	"github.com/jianghu-games/wuxia/internal/server"
	"github.com/jianghu-games/wuxia/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	skillsPath := flag.String("skills", "content/skills.yaml", "path to technique table YAML; empty = built-in table")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("expected_players", cfg.Server.ExpectedPlayers),
	)

	matchup := entity.DefaultMatchup()
	if *skillsPath != "" {
		if _, statErr := os.Stat(*skillsPath); statErr == nil {
			matchup, err = entity.LoadMatchup(*skillsPath)
			if err != nil {
				logger.Fatal("loading technique table", zap.Error(err))
			}
			logger.Info("technique table loaded", zap.String("path", *skillsPath))
		} else {
			logger.Info("technique table file not found, using built-in table",
				zap.String("path", *skillsPath))
		}
	}

	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	accounts := postgres.NewAccountRepository(pool.DB())
	snapshots := postgres.NewSnapshotRepository(pool.DB())

	registry := session.NewRegistry()

	resolver := combat.NewStatResolver(roller, matchup)
	policy := ai.NewWeightedPolicy(roller)

	arenaSvc := arena.NewService(registry, resolver, policy, roller, matchup, cfg.Game.ArenaMaxSubRounds, logger)
	trainingSvc := training.NewService(roller, matchup, logger)
	pveSvc := npcfight.NewService(npcfight.NewFactory(roller), resolver, roller, matchup, logger)

	engine := turn.NewEngine(registry, arenaSvc, trainingSvc, pveSvc, matchup, snapshots, cfg.Game.MaxRounds, logger)

	lifecycle := server.NewLifecycle(logger)

	startGame := func() {
		gameStart := time.Now()
		engine.Run(ctx)
		logger.Info("game finished",
			zap.Int("rounds", engine.Round()),
			zap.Duration("elapsed", time.Since(gameStart)),
		)
	}

	listener := server.NewListener(cfg, registry, accounts, snapshots, startGame, logger)
	lifecycle.Add("listener", listener)

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
