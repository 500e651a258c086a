// Package arena runs the free-for-all: every round in which at least
// one entity opted into the pool, the round loop hands control here.
// Sub-rounds collect one action per participant behind a simultaneity
// barrier, resolve all of them against pre-sub-round state, and only
// then apply damage.
package arena

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/game/ai"
	"github.com/jianghu-games/wuxia/internal/game/combat"
	"github.com/jianghu-games/wuxia/internal/game/dice"
	"github.com/jianghu-games/wuxia/internal/game/entity"
	"github.com/jianghu-games/wuxia/internal/game/session"
	"github.com/jianghu-games/wuxia/internal/netio"
)

// reward and penalty ranges, in attribute points
const (
	winRewardMin   = 3
	winRewardMax   = 7
	escapeDrainMin = 5
	escapeDrainMax = 10
)

// Action is one participant's choice for a single sub-round. It lives
// only until that sub-round resolves.
type Action struct {
	Actor  *entity.Player
	Escape bool
	Move   entity.SkillType
	Target *entity.Player
}

// Service runs the arena sub-protocol against the shared registry.
type Service struct {
	registry     *session.Registry
	resolver     combat.Resolver
	policy       ai.Policy
	src          dice.Source
	matchup      *entity.Matchup
	maxSubRounds int
	logger       *zap.Logger
}

// NewService creates an arena service.
//
// Precondition: maxSubRounds must be positive; all other arguments
// non-nil.
func NewService(registry *session.Registry, resolver combat.Resolver, policy ai.Policy, src dice.Source, matchup *entity.Matchup, maxSubRounds int, logger *zap.Logger) *Service {
	return &Service{
		registry:     registry,
		resolver:     resolver,
		policy:       policy,
		src:          src,
		matchup:      matchup,
		maxSubRounds: maxSubRounds,
		logger:       logger,
	}
}

// Run executes the sub-protocol to completion for the current pool.
//
// Postcondition: The pool is empty. Called only from the round loop's
// single settling task; all damage application happens on that task.
func (s *Service) Run() {
	participants := s.livePool()

	if len(participants) <= 1 {
		if len(participants) == 1 {
			s.rewardWinner(participants[0])
		}
		s.registry.ClearArena()
		return
	}

	s.broadcast(participants, fmt.Sprintf("\n竞技场开战！本场共有 %d 名参战者。", len(participants)))
	s.logger.Info("arena started", zap.Int("participants", len(participants)))

	for subRound := 1; subRound <= s.maxSubRounds; subRound++ {
		participants = s.livePool()
		if len(participants) <= 1 {
			break
		}

		s.broadcast(participants, fmt.Sprintf("\n—— 第 %d 轮交锋 ——", subRound))
		actions := s.collect(participants)
		s.applyEscapes(actions, participants)
		remaining := s.resolve(actions, participants)
		s.eliminate(remaining)
	}

	survivors := s.livePool()
	switch len(survivors) {
	case 1:
		s.rewardWinner(survivors[0])
	case 0:
		s.logger.Info("arena ended with mutual elimination")
	default:
		// Sub-round cap hit with several fighters standing. Nobody wins.
		s.broadcast(survivors, "双方筋疲力尽，本场竞技不分胜负。")
		s.logger.Warn("arena hit sub-round cap", zap.Int("survivors", len(survivors)))
	}
	s.registry.ClearArena()
}

// livePool returns the current pool filtered to entities that still
// exist and are alive. Membership can shrink between phases, so every
// phase re-reads it instead of trusting an earlier snapshot.
func (s *Service) livePool() []*entity.Player {
	var live []*entity.Player
	for _, name := range s.registry.ArenaMembers() {
		p, ok := s.registry.Entity(name)
		if !ok || !p.Stats.Alive() {
			s.registry.RemoveFromArena(name)
			continue
		}
		live = append(live, p)
	}
	return live
}

// collect obtains one action per participant, concurrently, and does
// not return until every participant has committed.
func (s *Service) collect(participants []*entity.Player) []Action {
	actions := make([]Action, len(participants))
	var wg sync.WaitGroup
	for i, p := range participants {
		wg.Add(1)
		go func(i int, p *entity.Player) {
			defer wg.Done()
			actions[i] = s.collectOne(p, participants)
		}(i, p)
	}
	wg.Wait()
	return actions
}

func (s *Service) collectOne(p *entity.Player, participants []*entity.Player) Action {
	others := make([]*entity.Player, 0, len(participants)-1)
	for _, o := range participants {
		if o != p {
			others = append(others, o)
		}
	}

	port, bound := s.registry.Port(p.Name)
	if s.registry.IsAIControlled(p.Name) || !bound || !port.Alive() {
		return s.aiAction(p, others)
	}

	action, err := s.promptAction(p, port, others)
	if err != nil {
		// A dying connection flips the entity to AI permanently; a
		// timeout only costs it this action.
		if err == netio.ErrClosed {
			s.registry.SetAIControlled(p.Name, true)
		}
		s.logger.Info("arena action fell back to ai",
			zap.String("player", p.Name), zap.Error(err))
		return s.aiAction(p, others)
	}
	return action
}

func (s *Service) aiAction(p *entity.Player, others []*entity.Player) Action {
	target := s.policy.ChooseTarget(others)
	if target == nil {
		return Action{Actor: p, Escape: true}
	}
	return Action{Actor: p, Move: s.policy.ChooseSkill(p), Target: target}
}

func (s *Service) promptAction(p *entity.Player, port netio.Port, others []*entity.Player) (Action, error) {
	prompt := "选择你的目标：\n"
	for i, o := range others {
		prompt += fmt.Sprintf("%d. 【%s】%s（生命 %d/%d）\n",
			i+1, o.Title, o.Name, o.Stats.HPCurrent, o.Stats.HPMax)
	}
	prompt += fmt.Sprintf("%d. 逃离竞技场\n请输入选择 (1-%d): ", len(others)+1, len(others)+1)

	choice, err := port.ReadInt(prompt, 1, len(others)+1)
	if err != nil {
		return Action{}, err
	}
	if choice == len(others)+1 {
		return Action{Actor: p, Escape: true}, nil
	}
	target := others[choice-1]

	move, err := s.promptMove(p, port)
	if err != nil {
		return Action{}, err
	}
	return Action{Actor: p, Move: move, Target: target}, nil
}

func (s *Service) promptMove(p *entity.Player, port netio.Port) (entity.SkillType, error) {
	var learned []entity.SkillType
	for _, t := range entity.SkillTypes {
		if p.HasSkill(t) {
			learned = append(learned, t)
		}
	}
	if len(learned) == 1 {
		return learned[0], nil
	}

	prompt := "选择出手武学：\n"
	for i, t := range learned {
		prompt += fmt.Sprintf("%d. %s Lv%d\n", i+1, s.matchup.DisplayName(t), p.SkillLevel(t))
	}
	prompt += fmt.Sprintf("请输入选择 (1-%d): ", len(learned))

	choice, err := port.ReadInt(prompt, 1, len(learned))
	if err != nil {
		return "", err
	}
	return learned[choice-1], nil
}

// applyEscapes removes escapees from the pool and drains them. They
// take no part in this sub-round's damage phase.
func (s *Service) applyEscapes(actions []Action, participants []*entity.Player) {
	for _, a := range actions {
		if !a.Escape {
			continue
		}
		s.registry.RemoveFromArena(a.Actor.Name)
		penalty := dice.Between(s.src, escapeDrainMin, escapeDrainMax)
		a.Actor.GainRandomAttribute(s.src, -penalty)

		s.tell(a.Actor, fmt.Sprintf("你逃离了竞技场，狼狈之下损失了 %d 点属性。", penalty))
		s.broadcast(participants, a.Actor.Name+" 逃离了竞技场！")
		s.logger.Info("arena escape",
			zap.String("player", a.Actor.Name), zap.Int("penalty", penalty))
	}
}

// resolve computes every attacker→target outcome against pre-sub-round
// state, then applies the summed damage per victim. Returns the set of
// non-escaped participants for the elimination phase.
func (s *Service) resolve(actions []Action, participants []*entity.Player) []*entity.Player {
	// Who attacked whom this sub-round; the matchup counter applies
	// only when two fighters chose each other.
	attackedBy := make(map[string]Action)
	for _, a := range actions {
		if !a.Escape && a.Target != nil {
			attackedBy[a.Actor.Name] = a
		}
	}

	type strike struct {
		action  Action
		outcome combat.Outcome
	}
	var strikes []strike
	damage := make(map[string]int)

	for _, a := range actions {
		if a.Escape || a.Target == nil {
			continue
		}
		// An escapee is out of the damage phase entirely, as attacker
		// and as victim.
		if !s.registry.InArena(a.Actor.Name) || !s.registry.InArena(a.Target.Name) {
			continue
		}
		var defenderMove *entity.Skill
		if back, mutual := attackedBy[a.Target.Name]; mutual && back.Target == a.Actor {
			defenderMove = a.Target.Skill(back.Move)
		}
		out := s.resolver.Attack(a.Actor, a.Actor.Skill(a.Move), a.Target, defenderMove)
		strikes = append(strikes, strike{action: a, outcome: out})
		if out.Hit {
			damage[a.Target.Name] += out.Damage
		}
	}

	// Damage lands only after every pair has been computed.
	remaining := make([]*entity.Player, 0, len(participants))
	for _, p := range participants {
		if s.registry.InArena(p.Name) {
			remaining = append(remaining, p)
		}
	}
	for _, p := range remaining {
		if dmg := damage[p.Name]; dmg > 0 {
			p.Stats.TakeDamage(dmg)
		}
	}

	for _, st := range strikes {
		s.narrate(st.action, st.outcome, remaining)
	}
	for _, p := range remaining {
		s.tell(p, fmt.Sprintf("你的生命：%d/%d", p.Stats.HPCurrent, p.Stats.HPMax))
	}
	return remaining
}

func (s *Service) narrate(a Action, out combat.Outcome, audience []*entity.Player) {
	if !out.Hit {
		s.broadcast(audience, fmt.Sprintf("%s 攻向 %s，却被闪开了！", a.Actor.Name, a.Target.Name))
		return
	}
	line := fmt.Sprintf("%s 使出%s，对 %s 造成 %d 点伤害！",
		a.Actor.Name, s.matchup.DisplayName(a.Move), a.Target.Name, out.Damage)
	if out.Crit {
		line += "（暴击！）"
	}
	if out.Countered {
		line += "（克制！）"
	}
	s.broadcast(audience, line)
}

// eliminate drops anyone at zero HP from the pool and tells them.
func (s *Service) eliminate(participants []*entity.Player) {
	for _, p := range participants {
		if p.Stats.Alive() {
			continue
		}
		s.registry.RemoveFromArena(p.Name)
		s.tell(p, "你被击倒，退出了竞技场！")
		s.broadcast(participants, p.Name+" 被淘汰出局！")
		s.logger.Info("arena elimination", zap.String("player", p.Name))
	}
}

func (s *Service) rewardWinner(p *entity.Player) {
	points := dice.Between(s.src, winRewardMin, winRewardMax)
	p.GainRandomAttribute(s.src, points)
	p.Stats.RestoreFullHP()

	s.tell(p, fmt.Sprintf("\n你赢得了竞技场！获得 %d 点随机属性！", points))
	s.logger.Info("arena winner",
		zap.String("player", p.Name), zap.Int("reward", points))
}

// tell sends to one participant; a dead port drops the message.
func (s *Service) tell(p *entity.Player, msg string) {
	if port, ok := s.registry.Port(p.Name); ok && port.Alive() {
		port.Println(msg)
	}
}

// broadcast sends to every listed participant independently, so one
// dead connection never blocks the rest.
func (s *Service) broadcast(participants []*entity.Player, msg string) {
	for _, p := range participants {
		s.tell(p, msg)
	}
}
