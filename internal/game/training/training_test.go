package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/game/entity"
	"github.com/jianghu-games/wuxia/internal/netio"
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

func newService(src *seqSource) *Service {
	return NewService(src, entity.DefaultMatchup(), zap.NewNop())
}

func TestTrain_BackDoesNotConsumeRound(t *testing.T) {
	svc := newService(&seqSource{})
	p := entity.NewPlayer("a", "a", entity.NewBaseStats(), entity.Sword)
	port := testutil.NewScriptPort("4")

	consumed, err := svc.Train(p, port)
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestTrain_SuccessGrantsAttributes(t *testing.T) {
	// Rolls: success check (0 < rate), points Between(1,5) → pick 2
	// (=3 points), attribute index, exp gain, levelup..., hp chance 99
	// (fail). Script generously; trailing zeros keep it deterministic
	// enough to assert on the attribute sum.
	src := &seqSource{values: []int{0, 2, 0, 0, 99}}
	svc := newService(src)
	p := entity.NewPlayer("a", "a", entity.NewBaseStats(), entity.Sword)
	before := p.Stats.AttributeSum()

	port := testutil.NewScriptPort("2") // train sword (main style)
	consumed, err := svc.Train(p, port)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Greater(t, p.Stats.AttributeSum(), before)
	assert.Contains(t, port.Output(), "成功")
}

func TestTrain_FailureDrainsAttributes(t *testing.T) {
	// INT 3 → rate 70+6+10 = 86 for main style. Success roll 90 fails.
	src := &seqSource{values: []int{90, 0, 0}}
	svc := newService(src)
	p := entity.NewPlayer("a", "a", entity.NewBaseStats(), entity.Sword)
	before := p.Stats.AttributeSum()

	port := testutil.NewScriptPort("2")
	consumed, err := svc.Train(p, port)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Less(t, p.Stats.AttributeSum(), before)
	assert.Contains(t, port.Output(), "失败")
}

func TestTrain_LearnsUnknownTechnique(t *testing.T) {
	src := &seqSource{values: []int{0, 0, 0, 99}}
	svc := newService(src)
	p := entity.NewPlayer("a", "a", entity.NewBaseStats(), entity.Sword)
	require.False(t, p.HasSkill(entity.Saber))

	port := testutil.NewScriptPort("1") // train saber
	consumed, err := svc.Train(p, port)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.True(t, p.HasSkill(entity.Saber))
}

func TestTrain_PortTimeoutBubbles(t *testing.T) {
	svc := newService(&seqSource{})
	p := entity.NewPlayer("a", "a", entity.NewBaseStats(), entity.Sword)
	port := testutil.NewScriptPort() // no inputs: reads time out

	_, err := svc.Train(p, port)
	assert.ErrorIs(t, err, netio.ErrTimeout)
}

func TestSuccessRate_Bounds(t *testing.T) {
	svc := newService(&seqSource{})

	smart := entity.NewPlayer("a", "a", entity.NewStats(3, 3, 3, 50, 3), entity.Sword)
	assert.Equal(t, maxSuccessRate, svc.successRate(smart, entity.Sword))

	dull := entity.NewPlayer("b", "b", entity.NewStats(3, 3, 3, 1, 3), entity.Sword)
	rate := svc.successRate(dull, entity.Fist)
	assert.GreaterOrEqual(t, rate, minSuccessRate)
	assert.LessOrEqual(t, rate, maxSuccessRate)
	assert.Equal(t, rate+mainStyleBonus, svc.successRate(dull, entity.Sword))
}
