// Package entity defines the combatant domain model: attribute stats,
// martial techniques, players, and NPCs.
package entity

import "github.com/jianghu-games/wuxia/internal/game/dice"

// attribute and HP derivation constants
const (
	BaseAttributeValue = 3
	baseHP             = 50
	hpPerCon           = 10
)

// Stats holds a combatant's five attributes and hit points. HPMax is
// derived from CON and recalculated whenever CON changes.
type Stats struct {
	Str int `json:"str"`
	Agi int `json:"agi"`
	Con int `json:"con"`
	Int int `json:"int"`
	Luk int `json:"luk"`

	HPMax     int `json:"hp_max"`
	HPCurrent int `json:"hp_current"`
}

// NewStats creates stats with the given attribute values and full HP.
func NewStats(str, agi, con, intel, luk int) *Stats {
	s := &Stats{Str: str, Agi: agi, Con: con, Int: intel, Luk: luk}
	s.RecalcHPMax()
	s.HPCurrent = s.HPMax
	return s
}

// NewBaseStats creates stats with every attribute at the base value.
func NewBaseStats() *Stats {
	return NewStats(BaseAttributeValue, BaseAttributeValue, BaseAttributeValue, BaseAttributeValue, BaseAttributeValue)
}

// RecalcHPMax recomputes HPMax from CON, clamping HPCurrent to it.
func (s *Stats) RecalcHPMax() {
	s.HPMax = baseHP + s.Con*hpPerCon
	if s.HPCurrent > s.HPMax {
		s.HPCurrent = s.HPMax
	}
}

// TakeDamage reduces HPCurrent, never below zero.
func (s *Stats) TakeDamage(dmg int) {
	s.HPCurrent -= dmg
	if s.HPCurrent < 0 {
		s.HPCurrent = 0
	}
}

// RestoreFullHP sets HPCurrent back to HPMax.
func (s *Stats) RestoreFullHP() {
	s.HPCurrent = s.HPMax
}

// SetHP sets HPCurrent clamped to [0, HPMax].
func (s *Stats) SetHP(hp int) {
	if hp < 0 {
		hp = 0
	}
	if hp > s.HPMax {
		hp = s.HPMax
	}
	s.HPCurrent = hp
}

// Alive reports whether the combatant has hit points left.
func (s *Stats) Alive() bool {
	return s.HPCurrent > 0
}

// Defense returns the flat defense value derived from CON.
func (s *Stats) Defense() int {
	return s.Con * 2
}

// Speed returns the turn-order speed derived from AGI.
func (s *Stats) Speed() int {
	return s.Agi * 3
}

// AttributeSum returns the sum of the five attributes.
func (s *Stats) AttributeSum() int {
	return s.Str + s.Agi + s.Con + s.Int + s.Luk
}

// AddRandomAttribute adds points to one randomly chosen attribute.
// Negative points drain; an attribute never drops below 1. HPMax is
// recalculated afterwards.
//
// Postcondition: Returns the name of the attribute changed.
func (s *Stats) AddRandomAttribute(src dice.Source, points int) string {
	clamp := func(v int) int {
		if v < 1 {
			return 1
		}
		return v
	}

	var name string
	switch src.Intn(5) {
	case 0:
		s.Str = clamp(s.Str + points)
		name = "力量"
	case 1:
		s.Agi = clamp(s.Agi + points)
		name = "敏捷"
	case 2:
		s.Con = clamp(s.Con + points)
		name = "体质"
	case 3:
		s.Int = clamp(s.Int + points)
		name = "智力"
	case 4:
		s.Luk = clamp(s.Luk + points)
		name = "幸运"
	}
	s.RecalcHPMax()
	return name
}

// Clone returns a fresh copy with full HP, preserving attributes only.
func (s *Stats) Clone() *Stats {
	return NewStats(s.Str, s.Agi, s.Con, s.Int, s.Luk)
}
