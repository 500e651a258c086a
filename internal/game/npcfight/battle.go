package npcfight

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/game/combat"
	"github.com/jianghu-games/wuxia/internal/game/dice"
	"github.com/jianghu-games/wuxia/internal/game/entity"
	"github.com/jianghu-games/wuxia/internal/netio"
)

// Result is the outcome of a PvE challenge.
type Result int

const (
	Win Result = iota
	Lose
)

// Service runs PvE challenges.
type Service struct {
	factory  *Factory
	resolver combat.Resolver
	src      dice.Source
	matchup  *entity.Matchup
	logger   *zap.Logger
}

// NewService creates a PvE service.
//
// Precondition: all arguments must be non-nil.
func NewService(factory *Factory, resolver combat.Resolver, src dice.Source, matchup *entity.Matchup, logger *zap.Logger) *Service {
	return &Service{factory: factory, resolver: resolver, src: src, matchup: matchup, logger: logger}
}

// Challenge shows the difficulty menu and, unless the player backs
// out, runs one full fight.
//
// Postcondition: Returns (consumed, err); err is non-nil only for
// port-level failures.
func (s *Service) Challenge(p *entity.Player, port netio.Port) (bool, error) {
	port.PrintTitle("挑战对手")
	prompt := "选择难度：\n"
	for i, d := range Difficulties {
		prompt += fmt.Sprintf("%d. %s\n", i+1, d.Name())
	}
	prompt += fmt.Sprintf("%d. 返回\n请输入选择 (1-%d): ", len(Difficulties)+1, len(Difficulties)+1)

	choice, err := port.ReadInt(prompt, 1, len(Difficulties)+1)
	if err != nil {
		return false, err
	}
	if choice == len(Difficulties)+1 {
		return false, nil
	}

	difficulty := Difficulties[choice-1]
	npc := s.factory.Create(difficulty, p.Power)
	s.fight(p, npc, port)
	return true, nil
}

// fight runs the alternating exchange until one side drops. Both
// sides start at full HP; the player keeps post-fight HP.
func (s *Service) fight(p *entity.Player, npc *NPC, port netio.Port) {
	p.Stats.RestoreFullHP()
	npc.Stats.RestoreFullHP()

	port.PrintTitle("战斗开始！")
	port.Println("你遇到了 " + npc.DisplayName(s.matchup))
	port.Println(npc.Difficulty.Description())

	round := 1
	for p.Stats.Alive() && npc.Stats.Alive() {
		port.Println(fmt.Sprintf("\n回合 %d：", round))

		first, second := orderBySpeed(p, npc.Player)
		if first == p {
			port.Println("你抢先出手！")
		} else {
			port.Println(npc.Name + " 抢先出手！")
		}

		s.exchange(first, second, port)
		if second.Stats.Alive() {
			s.exchange(second, first, port)
		}

		port.Println(fmt.Sprintf("\n战斗状态：\n%s HP: %d/%d\n%s HP: %d/%d",
			p.Name, p.Stats.HPCurrent, p.Stats.HPMax,
			npc.Name, npc.Stats.HPCurrent, npc.Stats.HPMax))
		round++
	}

	if p.Stats.Alive() {
		s.reward(p, npc, port)
	} else {
		s.penalize(p, port)
	}
	s.logger.Info("pve fight finished",
		zap.String("player", p.Name),
		zap.String("npc", npc.Name),
		zap.String("difficulty", npc.Difficulty.Name()),
		zap.Bool("player_won", p.Stats.Alive()),
	)
}

// exchange is one strike; both sides committed a technique, so the
// counter relation applies.
func (s *Service) exchange(attacker, defender *entity.Player, port netio.Port) {
	out := s.resolver.Attack(attacker, attacker.ActiveSkill(), defender, defender.ActiveSkill())
	if !out.Hit {
		port.Println(fmt.Sprintf("%s 的攻击落空了！", attacker.Name))
		return
	}
	defender.Stats.TakeDamage(out.Damage)

	line := fmt.Sprintf("%s 使出%s，对 %s 造成 %d 点伤害！",
		attacker.Name, s.matchup.DisplayName(attacker.MainStyle), defender.Name, out.Damage)
	if out.Crit {
		line += "（暴击！）"
	}
	if out.Countered {
		line += "（克制！）"
	}
	port.Println(line)

	if !defender.Stats.Alive() {
		port.Println(defender.Name + " 倒下了！")
	}
}

func (s *Service) reward(p *entity.Player, npc *NPC, port netio.Port) {
	port.Println("\n战斗结束！你获胜了！")

	points := dice.Between(s.src, 2, 4)
	p.GainRandomAttribute(s.src, points)
	if p.GainSkillExp(p.MainStyle, entity.RollExpGain(s.src)) {
		port.Println(fmt.Sprintf("%s提升到了 Lv%d！",
			s.matchup.DisplayName(p.MainStyle), p.SkillLevel(p.MainStyle)))
	}
	// Flat tier bonus lands after the last power recalculation.
	bonus := npc.Difficulty.RewardPower()
	p.Power += bonus

	port.Println("\n战斗奖励：")
	port.Println(fmt.Sprintf("人物战力 +%d", bonus))
	port.Println(fmt.Sprintf("获得了 %d 点随机属性！", points))
}

func (s *Service) penalize(p *entity.Player, port netio.Port) {
	port.Println("\n战斗结束！你失败了...")
	penalty := dice.Between(s.src, 5, 10)
	p.GainRandomAttribute(s.src, -penalty)
	port.Println(fmt.Sprintf("失败惩罚：损失了%d点属性", penalty))
}

func orderBySpeed(a, b *entity.Player) (*entity.Player, *entity.Player) {
	if a.Stats.Speed() >= b.Stats.Speed() {
		return a, b
	}
	return b, a
}
