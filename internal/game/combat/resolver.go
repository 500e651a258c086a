// Package combat computes attack outcomes between fighters. Resolvers
// never mutate the fighters; callers decide when damage lands so
// simultaneous exchanges can be applied against a common snapshot.
package combat

import (
	"github.com/jianghu-games/wuxia/internal/game/dice"
	"github.com/jianghu-games/wuxia/internal/game/entity"
)

// combat tuning constants
const (
	attackPerStr    = 3
	baseHitRate     = 80
	minHitRate      = 5
	maxHitRate      = 95
	baseCritRate    = 5
	critPerLuk      = 2
	maxCritRate     = 50
	minCritPct      = 150
	maxCritPct      = 200
	minNormalPct    = 80
	maxNormalPct    = 120
	maxDamageHPPct  = 35
	defenseMitigate = 2
)

// Outcome is the result of one attack computation. Damage is not yet
// applied to the defender.
type Outcome struct {
	Hit       bool
	Crit      bool
	Countered bool
	Damage    int
}

// Resolver computes the outcome of one attack.
type Resolver interface {
	// Attack resolves attacker striking defender with attackerSkill.
	// defenderSkill is the move the defender committed this exchange;
	// nil means the defender did not attack back, and the counter
	// bonus never applies.
	Attack(attacker entity.Fighter, attackerSkill *entity.Skill, defender entity.Fighter, defenderSkill *entity.Skill) Outcome
}

// StatResolver derives outcomes from attribute stats and technique
// levels.
type StatResolver struct {
	src     dice.Source
	matchup *entity.Matchup
}

// NewStatResolver creates the default resolver.
//
// Precondition: src and matchup must be non-nil.
func NewStatResolver(src dice.Source, matchup *entity.Matchup) *StatResolver {
	return &StatResolver{src: src, matchup: matchup}
}

// Attack implements Resolver.
//
// Postcondition: On a hit, Damage is in [1, 35% of the defender's max
// HP]. On a miss, Damage is 0.
func (r *StatResolver) Attack(attacker entity.Fighter, attackerSkill *entity.Skill, defender entity.Fighter, defenderSkill *entity.Skill) Outcome {
	as := attacker.FighterStats()
	ds := defender.FighterStats()

	hitRate := clamp(baseHitRate+as.Agi-ds.Agi, minHitRate, maxHitRate)
	if !dice.Chance(r.src, hitRate) {
		return Outcome{}
	}

	// Attack power scales with remaining HP: 50% at death's door,
	// 100% at full health.
	attack := as.Str*attackPerStr + attackerSkill.AttackBonus(r.matchup)
	attack = attack * (50 + 50*as.HPCurrent/as.HPMax) / 100

	reduced := attack - ds.Defense()*defenseMitigate
	if reduced < 1 {
		reduced = 1
	}
	baseDamage := reduced / 2

	critRate := baseCritRate + as.Luk*critPerLuk
	if critRate > maxCritRate {
		critRate = maxCritRate
	}
	crit := dice.Chance(r.src, critRate)

	var dmgPct int
	if crit {
		dmgPct = dice.Between(r.src, minCritPct, maxCritPct)
	} else {
		dmgPct = dice.Between(r.src, minNormalPct, maxNormalPct)
	}

	// The counter edge only applies in a mutual exchange.
	counterPct := 100
	countered := false
	if defenderSkill != nil && r.matchup.Counters(attackerSkill.Type, defenderSkill.Type) {
		counterPct += r.matchup.CounterBonusPct
		countered = true
	}

	damage := baseDamage * dmgPct * counterPct / (100 * 100)

	// Cap a single strike so nobody gets deleted in one exchange.
	maxDamage := ds.HPMax * maxDamageHPPct / 100
	if damage > maxDamage {
		damage = maxDamage
	}
	if damage < 1 {
		damage = 1
	}

	return Outcome{Hit: true, Crit: crit, Countered: countered, Damage: damage}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
