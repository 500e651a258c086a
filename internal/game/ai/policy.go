// Package ai chooses actions for entities under AI takeover: players
// who disconnected or timed out keep fighting through this policy.
package ai

import (
	"github.com/jianghu-games/wuxia/internal/game/dice"
	"github.com/jianghu-games/wuxia/internal/game/entity"
)

// Policy decides an AI-controlled entity's combat choices.
type Policy interface {
	// ChooseSkill picks the technique to attack with.
	ChooseSkill(p *entity.Player) entity.SkillType
	// ChooseTarget picks a victim among the living candidates.
	// Returns nil when no candidate is alive.
	ChooseTarget(candidates []*entity.Player) *entity.Player
}

// WeightedPolicy weights technique choice by skill level (a practiced
// technique is favored) and picks targets uniformly.
type WeightedPolicy struct {
	src dice.Source
}

// NewWeightedPolicy creates the default policy.
//
// Precondition: src must be non-nil.
func NewWeightedPolicy(src dice.Source) *WeightedPolicy {
	return &WeightedPolicy{src: src}
}

// ChooseSkill implements Policy. Unlearned techniques carry zero
// weight; if nothing is learned, the choice is uniform over all
// techniques.
func (w *WeightedPolicy) ChooseSkill(p *entity.Player) entity.SkillType {
	weights := make([]int, len(entity.SkillTypes))
	total := 0
	for i, t := range entity.SkillTypes {
		weights[i] = p.SkillLevel(t)
		total += weights[i]
	}
	if total == 0 {
		return entity.SkillTypes[w.src.Intn(len(entity.SkillTypes))]
	}
	return entity.SkillTypes[dice.WeightedIndex(w.src, weights)]
}

// ChooseTarget implements Policy.
func (w *WeightedPolicy) ChooseTarget(candidates []*entity.Player) *entity.Player {
	var living []*entity.Player
	for _, c := range candidates {
		if c.Stats.Alive() {
			living = append(living, c)
		}
	}
	if len(living) == 0 {
		return nil
	}
	return living[w.src.Intn(len(living))]
}
