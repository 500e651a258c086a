// Package training implements the round-consuming practice action: a
// player picks a technique, rolls against an INT-scaled success rate,
// and gains or loses attribute points.
package training

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/game/dice"
	"github.com/jianghu-games/wuxia/internal/game/entity"
	"github.com/jianghu-games/wuxia/internal/netio"
)

// success rate tuning
const (
	baseSuccessRate  = 70
	intBonusPerPoint = 2
	mainStyleBonus   = 10
	minSuccessRate   = 30
	maxSuccessRate   = 95
	hpBonusChance    = 30
)

// Service runs training sessions.
type Service struct {
	src     dice.Source
	matchup *entity.Matchup
	logger  *zap.Logger
}

// NewService creates a training service.
//
// Precondition: all arguments must be non-nil.
func NewService(src dice.Source, matchup *entity.Matchup, logger *zap.Logger) *Service {
	return &Service{src: src, matchup: matchup, logger: logger}
}

// Train runs one training session for the player: technique selection
// followed by a single practice attempt. Selecting "back" returns
// without consuming the round.
//
// Postcondition: Returns (consumed, err); err is non-nil only for
// port-level failures (timeout, disconnect).
func (s *Service) Train(p *entity.Player, port netio.Port) (bool, error) {
	port.PrintTitle("后山竹林 · 练功")
	port.Println(fmt.Sprintf("当前主流派：%s", s.matchup.DisplayName(p.MainStyle)))

	prompt := fmt.Sprintf(
		"选择要修炼的武学：\n1. %s\n2. %s\n3. %s\n4. 返回\n请输入选择 (1-4): ",
		s.matchup.DisplayName(entity.Saber),
		s.matchup.DisplayName(entity.Sword),
		s.matchup.DisplayName(entity.Fist),
	)
	choice, err := port.ReadInt(prompt, 1, 4)
	if err != nil {
		return false, err
	}
	if choice == 4 {
		return false, nil
	}
	skill := entity.SkillTypes[choice-1]

	s.perform(p, skill, port)
	return true, nil
}

func (s *Service) perform(p *entity.Player, skill entity.SkillType, port netio.Port) {
	switch skill {
	case entity.Saber:
		port.Println("你抽出腰间佩刀，开始练习刀法招式...")
	case entity.Sword:
		port.Println("你开始默念剑谱，闭目挥剑...")
	case entity.Fist:
		port.Println("你扎稳马步，一拳一式地练习拳法...")
	}

	rate := s.successRate(p, skill)
	if !dice.Chance(s.src, rate) {
		penalty := dice.Between(s.src, 5, 10)
		p.GainRandomAttribute(s.src, -penalty)
		port.Println("\n练功结果：失败！今天似乎不在状态...")
		port.Println(fmt.Sprintf("练功受挫，损失了%d点属性...", penalty))
		s.logger.Debug("training failed",
			zap.String("player", p.Name),
			zap.String("skill", string(skill)),
			zap.Int("penalty", penalty),
		)
		return
	}

	points := dice.Between(s.src, 1, 5)
	if p.MainStyle == skill {
		// Main-style practice is 20% more effective, rounded up.
		points = (points*12 + 9) / 10
	}
	p.GainRandomAttribute(s.src, points)
	port.Println(fmt.Sprintf("\n练功结果：成功！获得%d点属性点！", points))

	// Practicing an unknown technique far enough teaches its basics.
	if !p.HasSkill(skill) {
		p.LearnSkill(skill)
		port.Println(fmt.Sprintf("你领悟了%s的入门要诀！", s.matchup.DisplayName(skill)))
	} else if p.GainSkillExp(skill, entity.RollExpGain(s.src)) {
		port.Println(fmt.Sprintf("%s提升到了 Lv%d！", s.matchup.DisplayName(skill), p.SkillLevel(skill)))
	}

	if dice.Chance(s.src, hpBonusChance) {
		p.Stats.Con++
		p.Stats.RecalcHPMax()
		p.RecalcPower()
		port.Println("身体得到锻炼，体质增强，生命值上限提升了！")
	}

	s.logger.Debug("training succeeded",
		zap.String("player", p.Name),
		zap.String("skill", string(skill)),
		zap.Int("points", points),
	)
}

func (s *Service) successRate(p *entity.Player, skill entity.SkillType) int {
	rate := baseSuccessRate + p.Stats.Int*intBonusPerPoint
	if p.MainStyle == skill {
		rate += mainStyleBonus
	}
	if rate < minSuccessRate {
		rate = minSuccessRate
	}
	if rate > maxSuccessRate {
		rate = maxSuccessRate
	}
	return rate
}
