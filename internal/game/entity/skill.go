package entity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jianghu-games/wuxia/internal/game/dice"
)

// SkillType identifies one of the three martial techniques.
type SkillType string

const (
	Saber SkillType = "saber"
	Sword SkillType = "sword"
	Fist  SkillType = "fist"
)

// SkillTypes lists all techniques in display order.
var SkillTypes = []SkillType{Saber, Sword, Fist}

// Valid reports whether t is a known technique.
func (t SkillType) Valid() bool {
	return t == Saber || t == Sword || t == Fist
}

// skill progression constants
const (
	baseExpForLevel = 10
	expPerLevel     = 5
)

// SkillSpec describes one technique as loaded from the matchup table.
type SkillSpec struct {
	// DisplayName is the in-game name shown to players.
	DisplayName string `yaml:"display_name"`
	// BonusPerLevel is the flat attack bonus each skill level grants.
	BonusPerLevel int `yaml:"bonus_per_level"`
	// Counters names the technique this one has an edge against.
	Counters SkillType `yaml:"counters"`
}

// Matchup holds the per-technique specs and the circular counter
// relation: saber beats fist, fist beats sword, sword beats saber.
type Matchup struct {
	Skills map[SkillType]SkillSpec `yaml:"skills"`
	// CounterBonusPct is the damage bonus (percent) applied when the
	// attacker's move counters the defender's move.
	CounterBonusPct int `yaml:"counter_bonus_pct"`
}

// DefaultMatchup returns the built-in technique table, used when no
// content file overrides it.
func DefaultMatchup() *Matchup {
	return &Matchup{
		Skills: map[SkillType]SkillSpec{
			Saber: {DisplayName: "刀法", BonusPerLevel: 5, Counters: Fist},
			Sword: {DisplayName: "剑法", BonusPerLevel: 6, Counters: Saber},
			Fist:  {DisplayName: "拳法", BonusPerLevel: 4, Counters: Sword},
		},
		CounterBonusPct: 15,
	}
}

// LoadMatchup reads a technique table from a YAML file.
//
// Precondition: path must be a readable YAML file.
// Postcondition: Returns a validated Matchup or a non-nil error.
func LoadMatchup(path string) (*Matchup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var m Matchup
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing matchup file %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("matchup file %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks that the table covers all three techniques and that
// the counter relation is a single cycle.
func (m *Matchup) Validate() error {
	for _, t := range SkillTypes {
		spec, ok := m.Skills[t]
		if !ok {
			return fmt.Errorf("missing technique %q", t)
		}
		if spec.BonusPerLevel < 1 {
			return fmt.Errorf("technique %q: bonus_per_level must be >= 1", t)
		}
		if !spec.Counters.Valid() || spec.Counters == t {
			return fmt.Errorf("technique %q: invalid counter target %q", t, spec.Counters)
		}
	}
	// Each technique must be countered by exactly one other.
	countered := make(map[SkillType]int)
	for _, t := range SkillTypes {
		countered[m.Skills[t].Counters]++
	}
	for _, t := range SkillTypes {
		if countered[t] != 1 {
			return fmt.Errorf("technique %q countered by %d techniques, want 1", t, countered[t])
		}
	}
	if m.CounterBonusPct < 0 {
		return fmt.Errorf("counter_bonus_pct must be >= 0, got %d", m.CounterBonusPct)
	}
	return nil
}

// Counters reports whether attacker has the counter edge over defender.
func (m *Matchup) Counters(attacker, defender SkillType) bool {
	return m.Skills[attacker].Counters == defender
}

// BonusPerLevel returns the flat attack bonus per level of t.
func (m *Matchup) BonusPerLevel(t SkillType) int {
	return m.Skills[t].BonusPerLevel
}

// DisplayName returns the in-game name of t.
func (m *Matchup) DisplayName(t SkillType) string {
	return m.Skills[t].DisplayName
}

// Skill is one learned technique with its progression state.
type Skill struct {
	Type  SkillType
	Level int
	Exp   int
}

// NewSkill creates a level-1 skill of the given type.
func NewSkill(t SkillType) *Skill {
	return &Skill{Type: t, Level: 1}
}

// ExpNeeded returns the experience required to advance past the
// current level.
func (s *Skill) ExpNeeded() int {
	return baseExpForLevel + s.Level*expPerLevel
}

// AddExp adds experience and applies at most one level-up. Experience
// resets to zero on level-up.
//
// Postcondition: Returns true if the skill leveled up.
func (s *Skill) AddExp(exp int) bool {
	s.Exp += exp
	if s.Exp >= s.ExpNeeded() {
		s.Level++
		s.Exp = 0
		return true
	}
	return false
}

// AttackBonus returns the flat attack bonus this skill grants under
// the given matchup table.
func (s *Skill) AttackBonus(m *Matchup) int {
	return s.Level * m.BonusPerLevel(s.Type)
}

// RollExpGain returns a random battle experience gain of 1-3 points.
func RollExpGain(src dice.Source) int {
	return dice.Between(src, 1, 3)
}
