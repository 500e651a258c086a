package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/game/combat"
	"github.com/jianghu-games/wuxia/internal/game/entity"
	"github.com/jianghu-games/wuxia/internal/game/session"
	"github.com/jianghu-games/wuxia/internal/testutil"
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

// call records one resolver invocation.
type call struct {
	attacker, defender string
	defenderMove       *entity.Skill
}

// tableResolver deals fixed damage per attacker name and records every
// call for assertions.
type tableResolver struct {
	damage map[string]int
	calls  []call
}

func (r *tableResolver) Attack(attacker entity.Fighter, _ *entity.Skill, defender entity.Fighter, defenderSkill *entity.Skill) combat.Outcome {
	r.calls = append(r.calls, call{
		attacker:     attacker.FighterName(),
		defender:     defender.FighterName(),
		defenderMove: defenderSkill,
	})
	return combat.Outcome{Hit: true, Damage: r.damage[attacker.FighterName()]}
}

// hpResolver deals damage equal to the attacker's current HP, which
// exposes any ordering bias in the resolve phase.
type hpResolver struct{}

func (hpResolver) Attack(attacker entity.Fighter, _ *entity.Skill, _ entity.Fighter, _ *entity.Skill) combat.Outcome {
	return combat.Outcome{Hit: true, Damage: attacker.FighterStats().HPCurrent}
}

// fixedPolicy prefers a named target and always uses the main style.
type fixedPolicy struct {
	want string
}

func (f *fixedPolicy) ChooseSkill(p *entity.Player) entity.SkillType { return p.MainStyle }

func (f *fixedPolicy) ChooseTarget(candidates []*entity.Player) *entity.Player {
	for _, c := range candidates {
		if f.want == c.Name {
			return c
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return nil
}

type fixture struct {
	registry *session.Registry
	ports    map[string]*testutil.ScriptPort
}

// addFighter registers a player with HP 100 (CON 5) and a bound port.
func (f *fixture) addFighter(t *testing.T, name string, inputs ...string) *entity.Player {
	t.Helper()
	p := entity.NewPlayer(name, name, entity.NewStats(3, 3, 5, 3, 3), entity.Sword)
	require.NoError(t, f.registry.AddEntity(p))
	port := testutil.NewScriptPort(inputs...)
	_, err := f.registry.BindPort(name, port)
	require.NoError(t, err)
	f.ports[name] = port
	f.registry.AddToArena(name)
	return p
}

func newFixture() *fixture {
	return &fixture{registry: session.NewRegistry(), ports: map[string]*testutil.ScriptPort{}}
}

func newService(f *fixture, resolver combat.Resolver, policy *fixedPolicy) *Service {
	if policy == nil {
		policy = &fixedPolicy{}
	}
	return NewService(f.registry, resolver, policy, &seqSource{}, entity.DefaultMatchup(), 50, zap.NewNop())
}

func TestRun_SingleParticipantWinsImmediately(t *testing.T) {
	f := newFixture()
	resolver := &tableResolver{}
	p := f.addFighter(t, "a")
	before := p.Stats.AttributeSum()

	newService(f, resolver, nil).Run()

	assert.Empty(t, resolver.calls, "no combat for a walkover")
	assert.Greater(t, p.Stats.AttributeSum(), before)
	assert.Empty(t, f.registry.ArenaMembers())
	assert.Contains(t, f.ports["a"].Output(), "你赢得了竞技场")
}

func TestRun_TwoFighterScenario(t *testing.T) {
	f := newFixture()
	// 100/100 HP; a deals 40 per sub-round, b deals 25. b drops on
	// sub-round 3 (100→60→20→-20); a ends at 100-75=25.
	a := f.addFighter(t, "a", "1", "1", "1")
	b := f.addFighter(t, "b", "1", "1", "1")
	resolver := &tableResolver{damage: map[string]int{"a": 40, "b": 25}}

	newService(f, resolver, nil).Run()

	assert.False(t, b.Stats.Alive())
	assert.Equal(t, 6, len(resolver.calls), "three mutual sub-rounds")
	assert.True(t, a.Stats.Alive())
	assert.Empty(t, f.registry.ArenaMembers())
	assert.Contains(t, f.ports["a"].Output(), "你赢得了竞技场")
	assert.Contains(t, f.ports["b"].Output(), "你被击倒")
}

func TestRun_SimultaneityUsesPreSubRoundHP(t *testing.T) {
	f := newFixture()
	// a→b→c→a in a cycle; damage equals the attacker's current HP, so
	// with a consistent snapshot all three deal exactly 100 and the
	// sub-round ends in mutual elimination.
	a := f.addFighter(t, "a", "1") // others sorted: b, c → "1" targets b
	b := f.addFighter(t, "b", "2") // others: a, c → "2" targets c
	c := f.addFighter(t, "c", "1") // others: a, b → "1" targets a

	newService(f, hpResolver{}, nil).Run()

	assert.Equal(t, 0, a.Stats.HPCurrent)
	assert.Equal(t, 0, b.Stats.HPCurrent)
	assert.Equal(t, 0, c.Stats.HPCurrent)
	assert.Empty(t, f.registry.ArenaMembers())
}

func TestRun_EscapeeExemptFromDamage(t *testing.T) {
	f := newFixture()
	// With one opponent the menu is: 1. opponent, 2. escape.
	a := f.addFighter(t, "a", "2")
	b := f.addFighter(t, "b", "1")
	resolver := &tableResolver{damage: map[string]int{"b": 40}}
	attrsBefore := a.Stats.AttributeSum()

	newService(f, resolver, nil).Run()

	assert.Equal(t, a.Stats.HPMax, a.Stats.HPCurrent, "escapee takes no damage")
	assert.Less(t, a.Stats.AttributeSum(), attrsBefore, "escape drains attributes")
	assert.Empty(t, resolver.calls, "strike against an escapee is dropped")
	assert.True(t, b.Stats.Alive())
	assert.Empty(t, f.registry.ArenaMembers())
	assert.Contains(t, f.ports["b"].Output(), "你赢得了竞技场")
}

func TestRun_CounterOnlyOnMutualAttack(t *testing.T) {
	f := newFixture()
	// a and b attack each other; c attacks a one-directionally.
	f.addFighter(t, "a", "1") // others: b, c → targets b
	f.addFighter(t, "b", "1") // others: a, c → targets a
	f.addFighter(t, "c", "1") // others: a, b → targets a
	resolver := &tableResolver{damage: map[string]int{"a": 1000, "b": 1000, "c": 1000}}

	newService(f, resolver, nil).Run()

	require.Equal(t, 3, len(resolver.calls))
	for _, cl := range resolver.calls {
		mutual := (cl.attacker == "a" && cl.defender == "b") ||
			(cl.attacker == "b" && cl.defender == "a")
		if mutual {
			assert.NotNil(t, cl.defenderMove, "%s→%s is mutual", cl.attacker, cl.defender)
		} else {
			assert.Nil(t, cl.defenderMove, "%s→%s is one-directional", cl.attacker, cl.defender)
		}
	}
}

func TestRun_DeadPortFallsBackToAI(t *testing.T) {
	f := newFixture()
	a := f.addFighter(t, "a")
	b := f.addFighter(t, "b", "1", "1")
	f.ports["a"].Kill()
	resolver := &tableResolver{damage: map[string]int{"a": 0, "b": 1000}}

	newService(f, resolver, &fixedPolicy{want: "b"}).Run()

	assert.False(t, a.Stats.Alive())
	assert.True(t, b.Stats.Alive())
	// The scripted policy still produced an attack for the dead port.
	found := false
	for _, cl := range resolver.calls {
		if cl.attacker == "a" {
			found = true
		}
	}
	assert.True(t, found)
	assert.Empty(t, f.registry.ArenaMembers())
}

func TestRun_TimeoutActionFallsBackToAIWithoutTakeover(t *testing.T) {
	f := newFixture()
	// Port alive but scripted inputs exhausted: reads time out.
	a := f.addFighter(t, "a")
	f.addFighter(t, "b", "1", "1")
	resolver := &tableResolver{damage: map[string]int{"a": 0, "b": 1000}}

	newService(f, resolver, &fixedPolicy{want: "b"}).Run()

	assert.False(t, a.Stats.Alive())
	assert.False(t, f.registry.IsAIControlled("a"),
		"a timeout costs the action, not human control")
}
