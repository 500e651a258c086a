package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jianghu-games/wuxia/internal/game/dice"
	"github.com/jianghu-games/wuxia/internal/game/entity"
)

// seqSource replays scripted values; exhausted, it returns 0.
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

func fighter(name string, str, agi, con, luk int, style entity.SkillType) *entity.Player {
	return entity.NewPlayer(name, name, entity.NewStats(str, agi, con, 3, luk), style)
}

func TestAttack_Miss(t *testing.T) {
	r := NewStatResolver(&seqSource{values: []int{99}}, entity.DefaultMatchup())
	a := fighter("a", 5, 3, 3, 3, entity.Sword)
	d := fighter("d", 5, 3, 3, 3, entity.Saber)

	out := r.Attack(a, a.ActiveSkill(), d, nil)
	assert.False(t, out.Hit)
	assert.Zero(t, out.Damage)
}

func TestAttack_HitDealsAtLeastOne(t *testing.T) {
	// Weak attacker against a tank: mitigation floors at 1 damage.
	// Rolls: hit check 0 (hit), crit check 99 (no crit), damage pct 0.
	r := NewStatResolver(&seqSource{values: []int{0, 99, 0}}, entity.DefaultMatchup())
	a := fighter("a", 1, 3, 3, 1, entity.Sword)
	d := fighter("d", 1, 3, 30, 1, entity.Saber)

	out := r.Attack(a, a.ActiveSkill(), d, nil)
	require.True(t, out.Hit)
	assert.Equal(t, 1, out.Damage)
}

func TestAttack_DamageCappedAtMaxHPShare(t *testing.T) {
	// Monster attacker against a frail defender: the 35% cap binds.
	// Rolls: hit 0, crit 0 (crit), crit pct max.
	r := NewStatResolver(&seqSource{values: []int{0, 0, 50}}, entity.DefaultMatchup())
	a := fighter("a", 100, 3, 3, 25, entity.Sword)
	d := fighter("d", 1, 3, 1, 1, entity.Saber)

	out := r.Attack(a, a.ActiveSkill(), d, nil)
	require.True(t, out.Hit)
	assert.Equal(t, d.FighterStats().HPMax*35/100, out.Damage)
}

func TestAttack_CounterOnlyInMutualExchange(t *testing.T) {
	m := entity.DefaultMatchup()
	a := fighter("a", 10, 3, 3, 1, entity.Saber)
	d := fighter("d", 10, 3, 3, 1, entity.Fist)

	// Same scripted rolls for both calls: hit, no crit, mid damage pct.
	oneWay := NewStatResolver(&seqSource{values: []int{0, 99, 20}}, m).
		Attack(a, a.ActiveSkill(), d, nil)
	mutual := NewStatResolver(&seqSource{values: []int{0, 99, 20}}, m).
		Attack(a, a.ActiveSkill(), d, d.ActiveSkill())

	require.True(t, oneWay.Hit)
	require.True(t, mutual.Hit)
	assert.False(t, oneWay.Countered)
	assert.True(t, mutual.Countered, "saber counters fist")
	assert.Greater(t, mutual.Damage, oneWay.Damage)
}

func TestAttack_NoCounterWhenMovesDoNotCounter(t *testing.T) {
	m := entity.DefaultMatchup()
	a := fighter("a", 10, 3, 3, 1, entity.Fist)
	d := fighter("d", 10, 3, 3, 1, entity.Saber)

	out := NewStatResolver(&seqSource{values: []int{0, 99, 20}}, m).
		Attack(a, a.ActiveSkill(), d, d.ActiveSkill())
	require.True(t, out.Hit)
	assert.False(t, out.Countered, "fist does not counter saber")
}

func TestAttack_LowHPWeakensAttack(t *testing.T) {
	m := entity.DefaultMatchup()
	a := fighter("a", 20, 3, 3, 1, entity.Sword)
	d := fighter("d", 5, 3, 5, 1, entity.Saber)

	full := NewStatResolver(&seqSource{values: []int{0, 99, 20}}, m).
		Attack(a, a.ActiveSkill(), d, nil)

	a.FighterStats().TakeDamage(a.FighterStats().HPMax - 1)
	hurt := NewStatResolver(&seqSource{values: []int{0, 99, 20}}, m).
		Attack(a, a.ActiveSkill(), d, nil)

	assert.Greater(t, full.Damage, hurt.Damage)
}

func TestAttack_NeverMutatesFighters(t *testing.T) {
	r := NewStatResolver(dice.NewCryptoSource(), entity.DefaultMatchup())
	a := fighter("a", 10, 5, 5, 5, entity.Sword)
	d := fighter("d", 10, 5, 5, 5, entity.Saber)

	for i := 0; i < 20; i++ {
		r.Attack(a, a.ActiveSkill(), d, d.ActiveSkill())
	}
	assert.Equal(t, a.FighterStats().HPMax, a.FighterStats().HPCurrent)
	assert.Equal(t, d.FighterStats().HPMax, d.FighterStats().HPCurrent)
}

// Property-based tests

func TestPropertyDamageWithinBounds(t *testing.T) {
	src := dice.NewCryptoSource()
	m := entity.DefaultMatchup()
	r := NewStatResolver(src, m)

	rapid.Check(t, func(t *rapid.T) {
		a := fighter("a",
			rapid.IntRange(1, 60).Draw(t, "astr"),
			rapid.IntRange(1, 30).Draw(t, "aagi"),
			rapid.IntRange(1, 30).Draw(t, "acon"),
			rapid.IntRange(1, 30).Draw(t, "aluk"),
			entity.Sword)
		d := fighter("d",
			rapid.IntRange(1, 60).Draw(t, "dstr"),
			rapid.IntRange(1, 30).Draw(t, "dagi"),
			rapid.IntRange(1, 30).Draw(t, "dcon"),
			rapid.IntRange(1, 30).Draw(t, "dluk"),
			entity.Saber)

		out := r.Attack(a, a.ActiveSkill(), d, d.ActiveSkill())
		if !out.Hit {
			if out.Damage != 0 {
				t.Fatalf("miss with damage %d", out.Damage)
			}
			return
		}
		maxDamage := d.FighterStats().HPMax * 35 / 100
		if out.Damage < 1 || out.Damage > maxDamage {
			t.Fatalf("damage %d outside [1, %d]", out.Damage, maxDamage)
		}
	})
}
