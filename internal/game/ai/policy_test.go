package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jianghu-games/wuxia/internal/game/dice"
	"github.com/jianghu-games/wuxia/internal/game/entity"
)

// seqSource replays scripted values.
type seqSource struct {
	values []int
	pos    int
}

func (s *seqSource) Intn(n int) int {
	if s.pos >= len(s.values) {
		return 0
	}
	v := s.values[s.pos] % n
	s.pos++
	return v
}

func TestChooseSkill_WeightedByLevel(t *testing.T) {
	p := entity.NewPlayer("a", "a", entity.NewBaseStats(), entity.Saber)
	p.LearnSkill(entity.Sword)
	// saber level 1, sword level 3, fist unlearned
	p.GainSkillExp(entity.Sword, 100)
	p.GainSkillExp(entity.Sword, 100)
	require.Equal(t, 3, p.SkillLevel(entity.Sword))

	// Weights are [saber=1, sword=3, fist=0] over SkillTypes order:
	// pick 0 → saber, picks 1..3 → sword.
	assert.Equal(t, entity.Saber, NewWeightedPolicy(&seqSource{values: []int{0}}).ChooseSkill(p))
	assert.Equal(t, entity.Sword, NewWeightedPolicy(&seqSource{values: []int{1}}).ChooseSkill(p))
	assert.Equal(t, entity.Sword, NewWeightedPolicy(&seqSource{values: []int{3}}).ChooseSkill(p))
}

func TestChooseSkill_NeverPicksUnlearned(t *testing.T) {
	p := entity.NewPlayer("a", "a", entity.NewBaseStats(), entity.Fist)
	policy := NewWeightedPolicy(dice.NewCryptoSource())

	for i := 0; i < 100; i++ {
		assert.Equal(t, entity.Fist, policy.ChooseSkill(p))
	}
}

func TestChooseTarget_OnlyLiving(t *testing.T) {
	policy := NewWeightedPolicy(dice.NewCryptoSource())

	alive := entity.NewPlayer("alive", "alive", entity.NewBaseStats(), entity.Sword)
	dead := entity.NewPlayer("dead", "dead", entity.NewBaseStats(), entity.Sword)
	dead.Stats.TakeDamage(dead.Stats.HPMax)

	for i := 0; i < 50; i++ {
		target := policy.ChooseTarget([]*entity.Player{dead, alive, dead})
		require.NotNil(t, target)
		assert.Equal(t, "alive", target.Name)
	}
}

func TestChooseTarget_NoneAlive(t *testing.T) {
	policy := NewWeightedPolicy(dice.NewCryptoSource())

	dead := entity.NewPlayer("dead", "dead", entity.NewBaseStats(), entity.Sword)
	dead.Stats.TakeDamage(dead.Stats.HPMax)

	assert.Nil(t, policy.ChooseTarget([]*entity.Player{dead}))
	assert.Nil(t, policy.ChooseTarget(nil))
}
