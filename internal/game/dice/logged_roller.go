package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger so every consequential roll leaves
// an audit trail at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each
// roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Intn returns a random int in [0, n). Plain rolls are not logged;
// use the named helpers for rolls worth auditing.
func (r *Roller) Intn(n int) int {
	return r.src.Intn(n)
}

// Between returns a random int in [lo, hi] and logs it with a label
// naming what the roll decides.
func (r *Roller) Between(label string, lo, hi int) int {
	v := Between(r.src, lo, hi)
	r.logger.Debug("roll",
		zap.String("label", label),
		zap.Int("lo", lo),
		zap.Int("hi", hi),
		zap.Int("result", v),
	)
	return v
}

// Chance rolls a percentage check and logs the outcome.
func (r *Roller) Chance(label string, pct int) bool {
	ok := Chance(r.src, pct)
	r.logger.Debug("chance roll",
		zap.String("label", label),
		zap.Int("pct", pct),
		zap.Bool("success", ok),
	)
	return ok
}

// WeightedIndex picks a weighted index and logs the pick.
func (r *Roller) WeightedIndex(label string, weights []int) int {
	i := WeightedIndex(r.src, weights)
	r.logger.Debug("weighted roll",
		zap.String("label", label),
		zap.Ints("weights", weights),
		zap.Int("index", i),
	)
	return i
}
