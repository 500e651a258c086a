package entity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jianghu-games/wuxia/internal/game/dice"
)

// power calculation constants
const (
	powerAttributeWeight = 2
	powerSkillWeight     = 10
)

// Fighter is the combat-facing surface shared by players and NPCs.
type Fighter interface {
	FighterName() string
	FighterStats() *Stats
	// ActiveSkill returns the technique used when the fighter does not
	// choose a move explicitly.
	ActiveSkill() *Skill
}

// Player is a human-controlled (or AI-taken-over) combatant with
// persistent progression state.
type Player struct {
	Name     string
	SaveName string
	Stats    *Stats

	// Skills holds learned techniques only; unlearned ones are absent.
	Skills    map[SkillType]*Skill
	MainStyle SkillType

	Power      int
	Title      string
	RoundCount int
}

// NewPlayer creates a fresh player knowing only the chosen main style.
//
// Precondition: mainStyle must be a valid technique; stats must be non-nil.
func NewPlayer(name, saveName string, stats *Stats, mainStyle SkillType) *Player {
	p := &Player{
		Name:      name,
		SaveName:  saveName,
		Stats:     stats,
		Skills:    map[SkillType]*Skill{mainStyle: NewSkill(mainStyle)},
		MainStyle: mainStyle,
	}
	p.RecalcPower()
	return p
}

// FighterName implements Fighter.
func (p *Player) FighterName() string { return p.Name }

// FighterStats implements Fighter.
func (p *Player) FighterStats() *Stats { return p.Stats }

// ActiveSkill implements Fighter: the main-style technique.
func (p *Player) ActiveSkill() *Skill { return p.Skills[p.MainStyle] }

// HasSkill reports whether the technique has been learned.
func (p *Player) HasSkill(t SkillType) bool {
	return p.Skills[t] != nil
}

// Skill returns the learned technique, or nil if unlearned.
func (p *Player) Skill(t SkillType) *Skill {
	return p.Skills[t]
}

// SkillLevel returns the level of t, or 0 if unlearned.
func (p *Player) SkillLevel(t SkillType) int {
	if s := p.Skills[t]; s != nil {
		return s.Level
	}
	return 0
}

// LearnSkill adds a new level-1 technique.
//
// Postcondition: Returns false if the technique was already learned.
func (p *Player) LearnSkill(t SkillType) bool {
	if p.HasSkill(t) {
		return false
	}
	p.Skills[t] = NewSkill(t)
	p.RecalcPower()
	return true
}

// SetMainStyle switches the active technique.
//
// Precondition: t must already be learned.
func (p *Player) SetMainStyle(t SkillType) error {
	if !p.HasSkill(t) {
		return fmt.Errorf("technique %q not learned", t)
	}
	p.MainStyle = t
	return nil
}

// GainSkillExp adds battle experience to a learned technique.
//
// Postcondition: Returns true if the technique leveled up. Power is
// recalculated either way.
func (p *Player) GainSkillExp(t SkillType, exp int) bool {
	s := p.Skills[t]
	if s == nil {
		return false
	}
	up := s.AddExp(exp)
	p.RecalcPower()
	return up
}

// GainRandomAttribute adds (or drains, for negative points) one random
// attribute and recalculates power.
//
// Postcondition: Returns the display name of the changed attribute.
func (p *Player) GainRandomAttribute(src dice.Source, points int) string {
	name := p.Stats.AddRandomAttribute(src, points)
	p.RecalcPower()
	return name
}

// RecalcPower recomputes the power score from attributes and learned
// skill levels, then updates the title.
func (p *Player) RecalcPower() {
	skillLevels := 0
	for _, t := range SkillTypes {
		skillLevels += p.SkillLevel(t)
	}
	p.Power = p.Stats.AttributeSum()*powerAttributeWeight + skillLevels*powerSkillWeight
	p.Title = titleFor(p.Power)
}

func titleFor(power int) string {
	switch {
	case power >= 1200:
		return "武林霸主"
	case power >= 800:
		return "一代宗师"
	case power >= 400:
		return "江湖豪侠"
	case power >= 200:
		return "武林新秀"
	default:
		return "初入江湖"
	}
}

// Status renders the player's full status sheet.
func (p *Player) Status(m *Matchup) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "【%s】%s\n", p.Title, p.Name)
	fmt.Fprintf(&sb, "战力: %d\n", p.Power)
	fmt.Fprintf(&sb, "生命: %d/%d\n", p.Stats.HPCurrent, p.Stats.HPMax)
	sb.WriteString("属性:\n")
	fmt.Fprintf(&sb, "  力量: %d\n", p.Stats.Str)
	fmt.Fprintf(&sb, "  敏捷: %d\n", p.Stats.Agi)
	fmt.Fprintf(&sb, "  体质: %d\n", p.Stats.Con)
	fmt.Fprintf(&sb, "  智力: %d\n", p.Stats.Int)
	fmt.Fprintf(&sb, "  幸运: %d\n", p.Stats.Luk)
	sb.WriteString("武学:\n")
	for _, t := range SkillTypes {
		mainMark := ""
		if t == p.MainStyle {
			mainMark = " (主)"
		}
		if s := p.Skills[t]; s != nil {
			fmt.Fprintf(&sb, "  %s Lv%d%s - 经验: %d/%d\n",
				m.DisplayName(t), s.Level, mainMark, s.Exp, s.ExpNeeded())
		} else {
			fmt.Fprintf(&sb, "  %s%s - 未掌握\n", m.DisplayName(t), mainMark)
		}
	}
	return sb.String()
}

// Snapshot is the serializable form of a player, stored as jsonb.
type Snapshot struct {
	Name       string              `json:"name"`
	SaveName   string              `json:"save_name"`
	Stats      Stats               `json:"stats"`
	Skills     map[SkillType]Skill `json:"skills"`
	MainStyle  SkillType           `json:"main_style"`
	Power      int                 `json:"power"`
	Title      string              `json:"title"`
	RoundCount int                 `json:"round_count"`
}

// ToSnapshot captures the player's current state.
func (p *Player) ToSnapshot() Snapshot {
	skills := make(map[SkillType]Skill, len(p.Skills))
	for t, s := range p.Skills {
		skills[t] = *s
	}
	return Snapshot{
		Name:       p.Name,
		SaveName:   p.SaveName,
		Stats:      *p.Stats,
		Skills:     skills,
		MainStyle:  p.MainStyle,
		Power:      p.Power,
		Title:      p.Title,
		RoundCount: p.RoundCount,
	}
}

// FromSnapshot restores a player from a stored snapshot.
//
// Postcondition: Returns an error if the snapshot is structurally
// invalid (unknown main style or no learned skills).
func FromSnapshot(snap Snapshot) (*Player, error) {
	if !snap.MainStyle.Valid() {
		return nil, fmt.Errorf("snapshot %q: invalid main style %q", snap.SaveName, snap.MainStyle)
	}
	if len(snap.Skills) == 0 {
		return nil, fmt.Errorf("snapshot %q: no learned skills", snap.SaveName)
	}

	stats := snap.Stats
	skills := make(map[SkillType]*Skill, len(snap.Skills))
	for t, s := range snap.Skills {
		if !t.Valid() {
			return nil, fmt.Errorf("snapshot %q: unknown technique %q", snap.SaveName, t)
		}
		sc := s
		skills[t] = &sc
	}
	if skills[snap.MainStyle] == nil {
		return nil, fmt.Errorf("snapshot %q: main style %q not among learned skills", snap.SaveName, snap.MainStyle)
	}

	p := &Player{
		Name:       snap.Name,
		SaveName:   snap.SaveName,
		Stats:      &stats,
		Skills:     skills,
		MainStyle:  snap.MainStyle,
		Power:      snap.Power,
		Title:      snap.Title,
		RoundCount: snap.RoundCount,
	}
	p.RecalcPower()
	return p, nil
}

// RankByPower returns the players sorted by power descending, ties
// broken by name for a stable ranking display.
func RankByPower(players []*Player) []*Player {
	ranked := make([]*Player, len(players))
	copy(ranked, players)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Power != ranked[j].Power {
			return ranked[i].Power > ranked[j].Power
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}
