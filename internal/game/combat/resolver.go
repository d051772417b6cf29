package combat

import (
	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
)

// Damage random factor bounds, in percent.
const (
	minRandomPercent = 85
	maxRandomPercent = 100
)

// Struggle is used when a creature has no usable move at all.
var Struggle = catalog.Move{
	Name:     "struggle",
	Type:     "normal",
	Category: catalog.Physical,
	Power:    50,
	Accuracy: intPtr(100),
	PP:       1,
}

func intPtr(v int) *int { return &v }

// MoveResult is the outcome of one move application.
type MoveResult struct {
	Move          string
	Damage        int
	Missed        bool
	Effectiveness float64
	// Label is the effectiveness line shown to users; empty when neutral.
	Label string
	STAB  bool
	// Roll is the random factor in percent, 0 when no damage was rolled.
	Roll int
}

// Resolver applies moves. It never mutates the creatures it is given.
type Resolver struct {
	cat *catalog.Catalog
	src dice.Source
}

// NewResolver creates a Resolver.
//
// Precondition: cat and src must be non-nil.
func NewResolver(cat *catalog.Catalog, src dice.Source) *Resolver {
	return &Resolver{cat: cat, src: src}
}

// Damaging reports whether the engine treats move as dealing damage.
func (r *Resolver) Damaging(move catalog.Move) bool {
	if move.Category == catalog.Status || move.Power <= 0 {
		return false
	}
	return move.Name == Struggle.Name || r.cat.IsDamaging(move.Name)
}

// ApplyMove resolves move from attacker against defender.
//
// Hit roll: a nil accuracy never misses; otherwise a uniform roll in [1,100]
// above the accuracy misses. Damage follows
//
//	base = floor(floor(floor(2*L/5 + 2) * power * A / D) / 50) + 2
//
// then the random factor (85..100 percent), STAB (x1.5) and type
// effectiveness, flooring after each step. A hit on a non-immune target
// deals at least 1.
//
// Precondition: attacker and defender must be non-nil.
// Postcondition: Damage >= 0; neither creature is modified.
func (r *Resolver) ApplyMove(attacker, defender *creature.Creature, move catalog.Move) MoveResult {
	res := MoveResult{Move: move.Name, Effectiveness: 1}

	if move.Accuracy != nil {
		if roll := r.src.Intn(100) + 1; roll > *move.Accuracy {
			res.Missed = true
			return res
		}
	}
	if !r.Damaging(move) {
		return res
	}

	eff := catalog.Effectiveness(move.Type, defender.Types)
	res.Effectiveness = eff
	res.Label = catalog.EffectivenessLabel(eff)

	atk, def := attacker.Stats.Attack, defender.Stats.Defense
	if move.Category == catalog.Special {
		atk, def = attacker.Stats.SpAttack, defender.Stats.SpDefense
	}
	if def < 1 {
		def = 1
	}

	levelFactor := 2*attacker.Level/5 + 2
	base := levelFactor*move.Power*atk/def/50 + 2

	res.Roll = r.src.Intn(maxRandomPercent-minRandomPercent+1) + minRandomPercent
	dmg := base * res.Roll / 100

	for _, t := range attacker.Types {
		if t == move.Type {
			res.STAB = true
			dmg = dmg * 3 / 2
			break
		}
	}

	dmg = int(float64(dmg) * eff)
	if eff > 0 && dmg < 1 {
		dmg = 1
	}
	res.Damage = dmg
	return res
}
