package combat

import (
	"context"

	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
	"github.com/pokebot/pokebot/internal/scripting"
)

// activityBonus multiplies catch odds while hunting or fishing.
const activityBonus = 5.0

// ModifierEvaluator computes a ball's catch modifier.
type ModifierEvaluator interface {
	Evaluate(ctx context.Context, ball string, t scripting.Throw) (float64, error)
}

// ActivityMultiplier returns the catch multiplier for an encounter context.
func ActivityMultiplier(encounter string) float64 {
	switch encounter {
	case ContextHunt, ContextFishing:
		return activityBonus
	}
	return 1.0
}

// LevelModifier returns max(0.1, 1 - level/100 * 0.5).
func LevelModifier(level int) float64 {
	return max(0.1, 1-float64(level)/100*0.5)
}

// CatchProbability is clamp01(rate * ball * levelMod * activity / 255).
//
// Postcondition: Returns a value in [0, 1].
func CatchProbability(captureRate int, ballMod float64, level int, encounter string) float64 {
	p := float64(captureRate) * ballMod * LevelModifier(level) * ActivityMultiplier(encounter) / 255
	return clamp01(p)
}

// FleeProbability is clamp(0.5 + 0.01*(player - wild), 0.1, 0.9).
func FleeProbability(playerSpeed, wildSpeed int) float64 {
	return min(0.9, max(0.1, 0.5+0.01*float64(playerSpeed-wildSpeed)))
}

func clamp01(p float64) float64 {
	return min(1, max(0, p))
}

// Catcher rolls catch attempts. Wild battles and safari sessions share it.
type Catcher struct {
	mods   ModifierEvaluator
	src    dice.Source
	logger *zap.Logger
}

// NewCatcher creates a Catcher.
//
// Precondition: all arguments must be non-nil.
func NewCatcher(mods ModifierEvaluator, src dice.Source, logger *zap.Logger) *Catcher {
	return &Catcher{mods: mods, src: src, logger: logger}
}

// BallModifier evaluates the ball's script for target. Script failures fall
// back to 1.0 so a broken ball behaves like a plain one.
func (c *Catcher) BallModifier(ctx context.Context, ball string, sp *catalog.Species, target *creature.Creature, encounter string, turn int) float64 {
	mod, err := c.mods.Evaluate(ctx, catalog.NormalizeName(ball), scripting.Throw{
		Target: scripting.Target{
			Level:     target.Level,
			Types:     target.Types,
			Weight:    sp.Weight,
			BaseSpeed: sp.BaseStats.Speed,
			Legendary: sp.Legendary,
		},
		Context: encounter,
		Turn:    turn,
	})
	if err != nil {
		c.logger.Warn("ball modifier unavailable, using 1.0", zap.String("ball", ball), zap.Error(err))
		return 1.0
	}
	return mod
}

// Attempt rolls one throw.
//
// Postcondition: Returns success and the probability that was rolled against.
func (c *Catcher) Attempt(ctx context.Context, ball string, sp *catalog.Species, target *creature.Creature, encounter string, turn int) (bool, float64) {
	mod := c.BallModifier(ctx, ball, sp, target, encounter, turn)
	p := CatchProbability(sp.CaptureRate, mod, target.Level, encounter)
	return c.src.Float64() < p, p
}
