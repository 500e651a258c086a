// Package npcfight implements the PvE challenge: difficulty menu, NPC
// generation scaled to the challenger's power, and an alternating
// exchange until one side drops.
package npcfight

import (
	"fmt"

	"github.com/jianghu-games/wuxia/internal/game/dice"
	"github.com/jianghu-games/wuxia/internal/game/entity"
)

// Difficulty scales NPC generation and rewards.
type Difficulty int

const (
	Easy Difficulty = iota
	Normal
	Hard
	Hell
)

// Difficulties lists all difficulties in menu order.
var Difficulties = []Difficulty{Easy, Normal, Hard, Hell}

type difficultySpec struct {
	name string
	// statsPct scales NPC attributes, in percent.
	statsPct int
	// baseSkillLevel is the NPC's main technique level before power
	// adjustment.
	baseSkillLevel int
	// rewardPower is the flat power bonus for beating this tier.
	rewardPower int
	description string
}

var difficultySpecs = map[Difficulty]difficultySpec{
	Easy:   {"简单", 80, 2, 5, "他看起来实力不强，应该是个好对付的对手。"},
	Normal: {"普通", 100, 3, 10, "他的气息看起来不弱……"},
	Hard:   {"困难", 130, 4, 15, "此人身上散发着强大的气息，小心应对！"},
	Hell:   {"地狱", 180, 5, 25, "天啊！这股气息让人窒息，难道是传说中的高手？！"},
}

// Name returns the difficulty display name.
func (d Difficulty) Name() string { return difficultySpecs[d].name }

// RewardPower returns the flat power bonus for a win at this tier.
func (d Difficulty) RewardPower() int { return difficultySpecs[d].rewardPower }

// Description returns the flavor line shown when the NPC appears.
func (d Difficulty) Description() string { return difficultySpecs[d].description }

// NPC is a generated opponent: a player-shaped combatant with a
// difficulty tier and a flavor title.
type NPC struct {
	*entity.Player
	Difficulty  Difficulty
	FlavorTitle string
}

// DisplayName renders the NPC's full styled name.
func (n *NPC) DisplayName(m *entity.Matchup) string {
	return fmt.Sprintf("【%s】%s%s（%s）",
		n.Difficulty.Name(), n.FlavorTitle, n.Name, m.DisplayName(n.MainStyle))
}

var npcNames = map[entity.SkillType][]string{
	entity.Saber: {"刀客", "刀王五", "菜刀师傅", "独行刀客", "落魄刀客", "醉酒刀客"},
	entity.Sword: {"剑侠", "书生剑客", "白衣剑师", "青衫剑手", "中年剑客", "逍遥剑仙"},
	entity.Fist:  {"拳师", "武痴", "肉掌王", "铁拳老人", "少林俗家弟子", "丐帮弟子"},
}

var npcTitles = map[Difficulty][]string{
	Easy:   {"初出茅庐的", "学艺不精的", "江湖新手", "普通的", "无名的"},
	Normal: {"经验丰富的", "有些实力的", "江湖老手", "厉害的", "小有名气的"},
	Hard:   {"声名远扬的", "威震一方的", "江湖高手", "强大的", "令人畏惧的"},
	Hell:   {"传说中的", "武林至尊", "无敌的", "恐怖的", "鬼神莫测的"},
}

// Factory generates NPCs relative to a challenger's power.
type Factory struct {
	src dice.Source
}

// NewFactory creates an NPC factory.
//
// Precondition: src must be non-nil.
func NewFactory(src dice.Source) *Factory {
	return &Factory{src: src}
}

// Create generates an NPC for the given difficulty and player power.
//
// Postcondition: The NPC has all three techniques learned, its main
// one at the tier's level (power-adjusted) and the others 1-3 levels
// below, floored at 1.
func (f *Factory) Create(difficulty Difficulty, playerPower int) *NPC {
	spec := difficultySpecs[difficulty]
	base := f.baseAttribute(playerPower, spec)
	stats := f.rollStats(base, spec)

	mainStyle := entity.SkillTypes[f.src.Intn(len(entity.SkillTypes))]
	mainLevel := f.mainSkillLevel(spec, playerPower)

	name := pick(f.src, npcNames[mainStyle])
	title := pick(f.src, npcTitles[difficulty])

	p := entity.NewPlayer(name, "NPC_"+name, stats, mainStyle)
	raiseTo(p.Skill(mainStyle), mainLevel)

	otherLevel := mainLevel - dice.Between(f.src, 1, 3)
	if otherLevel < 1 {
		otherLevel = 1
	}
	for _, t := range entity.SkillTypes {
		if t == mainStyle {
			continue
		}
		p.LearnSkill(t)
		raiseTo(p.Skill(t), otherLevel)
	}
	p.RecalcPower()

	return &NPC{Player: p, Difficulty: difficulty, FlavorTitle: title}
}

func (f *Factory) baseAttribute(playerPower int, spec difficultySpec) int {
	// NPC strength stops scaling past 1100 power so a capped player
	// can always beat the hell tier.
	if playerPower > 1100 {
		playerPower = 1100
	}
	base := playerPower / 10 * spec.statsPct * 60 / (100 * 100)
	if base < 5 {
		base = 5
	}
	if base > 50 {
		base = 50
	}
	return base
}

func (f *Factory) rollStats(base int, spec difficultySpec) *entity.Stats {
	roll := func() int {
		v := (base + dice.Between(f.src, -2, 3)) * spec.statsPct * 60 / (100 * 100)
		if v < 1 {
			v = 1
		}
		return v
	}
	attrs := []int{roll(), roll(), roll(), roll(), roll()}
	// One randomly favored main attribute.
	attrs[f.src.Intn(5)] += dice.Between(f.src, 2, 5)
	return entity.NewStats(attrs[0], attrs[1], attrs[2], attrs[3], attrs[4])
}

func (f *Factory) mainSkillLevel(spec difficultySpec, playerPower int) int {
	adjust := playerPower / 200
	if adjust > 3 {
		adjust = 3
	}
	return spec.baseSkillLevel + adjust
}

func raiseTo(s *entity.Skill, level int) {
	for s.Level < level {
		s.AddExp(s.ExpNeeded())
	}
}

func pick(src dice.Source, options []string) string {
	return options[src.Intn(len(options))]
}
