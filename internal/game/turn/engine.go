// Package turn drives the round cadence: every round it snapshots the
// human entities, runs one concurrent turn task per entity, waits for
// the round barrier, settles the arena, and advances until an end
// condition is met.
package turn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/game/arena"
	"github.com/jianghu-games/wuxia/internal/game/entity"
	"github.com/jianghu-games/wuxia/internal/game/npcfight"
	"github.com/jianghu-games/wuxia/internal/game/session"
	"github.com/jianghu-games/wuxia/internal/game/training"
	"github.com/jianghu-games/wuxia/internal/netio"
)

// maxMenuIterations bounds the non-consuming menu loop per turn so a
// client spamming the status view cannot hold its task forever.
const maxMenuIterations = 20

// Saver persists entity snapshots at game end and on save-and-quit.
type Saver interface {
	Save(ctx context.Context, snap entity.Snapshot) error
}

// Engine is the round loop. One Engine runs one game to completion.
type Engine struct {
	registry *session.Registry
	arena    *arena.Service
	training *training.Service
	pve      *npcfight.Service
	matchup  *entity.Matchup
	saver    Saver
	logger   *zap.Logger

	maxRounds int
	round     int
}

// NewEngine creates a round engine.
//
// Precondition: maxRounds must be positive; saver may be nil when
// persistence is disabled.
func NewEngine(registry *session.Registry, arenaSvc *arena.Service, trainingSvc *training.Service, pveSvc *npcfight.Service, matchup *entity.Matchup, saver Saver, maxRounds int, logger *zap.Logger) *Engine {
	return &Engine{
		registry:  registry,
		arena:     arenaSvc,
		training:  trainingSvc,
		pve:       pveSvc,
		matchup:   matchup,
		saver:     saver,
		logger:    logger,
		maxRounds: maxRounds,
	}
}

// Round returns the number of completed rounds.
func (e *Engine) Round() int { return e.round }

// Run drives rounds until the round ceiling is reached, no human
// entities remain, or ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	for ctx.Err() == nil && e.round < e.maxRounds {
		humans := e.registry.HumanEntities()
		if len(humans) == 0 {
			break
		}
		e.roundStart(humans)
		e.turnsInFlight(humans)
		e.roundSettle()
	}
	e.gameEnded(ctx)
}

// roundStart resets per-round state: the turn barrier is rebuilt for
// the scheduled humans, everyone is healed for the new round, and any
// stale waiting exemption on their ports is cleared.
func (e *Engine) roundStart(humans []*entity.Player) {
	names := make([]string, len(humans))
	for i, p := range humans {
		names[i] = p.Name
		p.Stats.RestoreFullHP()
		if port, ok := e.registry.Port(p.Name); ok {
			port.SetWaiting(false)
		}
	}
	e.registry.BeginRound(names)
	e.logger.Info("round started",
		zap.Int("round", e.round+1), zap.Int("humans", len(humans)))
}

// turnsInFlight runs one task per human and blocks until every task
// reports. An entity that times out or disconnects is AI-flagged by
// its own task, which also marks its turn complete, so the barrier
// never waits on a gone player.
func (e *Engine) turnsInFlight(humans []*entity.Player) {
	var wg sync.WaitGroup
	for _, p := range humans {
		wg.Add(1)
		go func(p *entity.Player) {
			defer wg.Done()
			res := e.runTurn(p)
			e.logger.Info("turn finished",
				zap.String("player", p.Name), zap.String("result", res.String()))
		}(p)
	}
	wg.Wait()
}

// runTurn presents the action menu until a round-consuming action is
// chosen. All error paths flip the entity to AI control so the round
// barrier is released.
func (e *Engine) runTurn(p *entity.Player) Result {
	port, ok := e.registry.Port(p.Name)
	if !ok || !port.Alive() {
		e.takeover(p.Name, "no live connection")
		return Disconnected()
	}

	port.PrintTitle(fmt.Sprintf("第 %d 回合", e.round+1))

	for i := 0; i < maxMenuIterations; i++ {
		choice, err := port.ReadInt(menuPrompt, 1, 5)
		if err != nil {
			return e.failTurn(p, err)
		}

		switch choice {
		case 1:
			// Status view does not consume the round.
			port.Println(p.Status(e.matchup))
		case 2:
			consumed, err := e.training.Train(p, port)
			if err != nil {
				return e.failTurn(p, err)
			}
			if consumed {
				return e.completeTurn(p)
			}
		case 3:
			consumed, err := e.pve.Challenge(p, port)
			if err != nil {
				return e.failTurn(p, err)
			}
			if consumed {
				return e.completeTurn(p)
			}
		case 4:
			return e.joinArena(p, port)
		case 5:
			return e.saveAndQuit(p, port)
		}
	}

	e.takeover(p.Name, "menu retries exhausted")
	return Errorf("player %s: menu retries exhausted", p.Name)
}

// joinArena marks the turn complete immediately and parks the task
// until the round's collection phase ends or a concurrent resolution
// drops the entity from the pool. The parked connection is flagged
// waiting so the liveness monitor leaves it alone.
func (e *Engine) joinArena(p *entity.Player, port netio.Port) Result {
	e.registry.AddToArena(p.Name)
	p.RoundCount++
	port.SetWaiting(true)
	e.registry.MarkTurnComplete(p.Name)
	port.Println("你进入了竞技场，等待其他侠客行动……")

	if e.registry.WaitArenaRelease(p.Name) {
		port.Println("对手已就位！")
	}
	return Completed()
}

func (e *Engine) saveAndQuit(p *entity.Player, port netio.Port) Result {
	if e.saver != nil {
		if err := e.saver.Save(context.Background(), p.ToSnapshot()); err != nil {
			e.logger.Error("save on quit failed",
				zap.String("player", p.Name), zap.Error(err))
			port.Println("存档失败，请稍后再试。")
			return Errorf("save %s: %w", p.Name, err)
		}
	}
	port.Println("侠客就此别过，江湖再见！")
	if err := e.registry.RemoveEntity(p.Name); err != nil {
		e.logger.Warn("remove on quit failed",
			zap.String("player", p.Name), zap.Error(err))
	}
	return Escaped()
}

// completeTurn records the consumed round and flags the connection as
// waiting for the rest of the table, exempting it from liveness checks
// until the next round clears the flag.
func (e *Engine) completeTurn(p *entity.Player) Result {
	p.RoundCount++
	if port, ok := e.registry.Port(p.Name); ok {
		port.SetWaiting(true)
	}
	e.registry.MarkTurnComplete(p.Name)
	return Completed()
}

// failTurn maps a port failure to the right tag. Either way the entity
// goes to AI control until it reconnects and is explicitly handed back.
func (e *Engine) failTurn(p *entity.Player, err error) Result {
	if errors.Is(err, netio.ErrClosed) {
		e.takeover(p.Name, "disconnected")
		return Disconnected()
	}
	e.takeover(p.Name, err.Error())
	return Errorf("player %s: %w", p.Name, err)
}

func (e *Engine) takeover(name, reason string) {
	e.registry.SetAIControlled(name, true)
	e.registry.MarkTurnComplete(name)
	e.logger.Info("ai takeover",
		zap.String("player", name), zap.String("reason", reason))
}

// roundSettle runs the arena if anyone opted in, then advances the
// round counter.
func (e *Engine) roundSettle() {
	if len(e.registry.ArenaMembers()) > 0 {
		e.arena.Run()
	}
	e.round++
	e.logger.Info("round settled", zap.Int("round", e.round))
}

// gameEnded broadcasts the final ranking to every reachable port and
// persists all entities.
func (e *Engine) gameEnded(ctx context.Context) {
	all := e.registry.AllEntities()
	ranked := entity.RankByPower(all)

	sb := "\n========== 最终排名 ==========\n"
	for i, p := range ranked {
		sb += fmt.Sprintf("第 %d 名：【%s】%s（战力 %d）\n", i+1, p.Title, p.Name, p.Power)
	}
	sb += "=============================="

	for _, p := range all {
		// Each send is guarded on its own so one dead connection never
		// hides the ranking from the rest.
		if port, ok := e.registry.Port(p.Name); ok && port.Alive() {
			port.Println(sb)
		}
		if e.saver != nil {
			if err := e.saver.Save(ctx, p.ToSnapshot()); err != nil {
				e.logger.Error("final save failed",
					zap.String("player", p.Name), zap.Error(err))
			}
		}
	}
	e.logger.Info("game ended",
		zap.Int("rounds", e.round), zap.Int("entities", len(all)))
}

const menuPrompt = `
请选择行动：
1. 查看状态
2. 修炼武学
3. 挑战对手
4. 进入竞技场
5. 保存并退出
请输入选择 (1-5): `
