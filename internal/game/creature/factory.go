package creature

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/dice"
	"github.com/pokebot/pokebot/internal/game/stats"
)

// ShinyOdds is the denominator of the shiny probability.
const ShinyOdds = 8192

// ivBonus is added to each uniform IV roll before clamping to MaxIV.
const ivBonus = 7

// ErrUnknownSpecies is returned when creation names a species the catalog lacks.
var ErrUnknownSpecies = errors.New("unknown species")

// Factory creates creatures and applies progression rules against the catalog.
// It is safe for concurrent use when its Source is.
type Factory struct {
	cat *catalog.Catalog
	src dice.Source
}

// NewFactory builds a Factory.
//
// Precondition: cat and src must be non-nil.
func NewFactory(cat *catalog.Catalog, src dice.Source) *Factory {
	return &Factory{cat: cat, src: src}
}

// Catalog returns the catalog the factory was built with.
func (f *Factory) Catalog() *catalog.Catalog {
	return f.cat
}

// Options override the random parts of creation.
type Options struct {
	// Nature forces a nature by name when non-empty.
	Nature string
	// IVs forces the IV block when non-nil.
	IVs *stats.Block
	// Shiny forces the shiny flag when non-nil.
	Shiny *bool
}

// Create instantiates speciesID at level with random IVs, nature and shiny flag.
//
// Precondition: 1 <= level <= 100.
// Postcondition: Returns a full-HP creature with a fresh UUID or ErrUnknownSpecies.
func (f *Factory) Create(speciesID, level int) (*Creature, error) {
	return f.CreateWith(speciesID, level, Options{})
}

// CreateByName resolves a species case-insensitively and creates it.
func (f *Factory) CreateByName(name string, level int, opts Options) (*Creature, error) {
	sp, ok := f.cat.SpeciesByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpecies, name)
	}
	return f.CreateWith(sp.ID, level, opts)
}

// CreateWith instantiates a creature, taking any forced values from opts.
//
// Precondition: 1 <= level <= 100.
// Postcondition: Returns a full-HP creature with a fresh UUID or ErrUnknownSpecies.
func (f *Factory) CreateWith(speciesID, level int, opts Options) (*Creature, error) {
	sp, ok := f.cat.Species(speciesID)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownSpecies, speciesID)
	}
	level = clampLevel(level)

	var ivs stats.Block
	if opts.IVs != nil {
		ivs = *opts.IVs
		for _, s := range stats.All {
			ivs.Set(s, stats.ClampIV(ivs.Get(s)))
		}
	} else {
		for _, s := range stats.All {
			ivs.Set(s, stats.ClampIV(f.src.Intn(stats.MaxIV+1)+ivBonus))
		}
	}

	nature := stats.Natures[f.src.Intn(len(stats.Natures))]
	if opts.Nature != "" {
		nature, _ = stats.NatureByName(opts.Nature)
	}

	shiny := f.src.Intn(ShinyOdds) == 0
	if opts.Shiny != nil {
		shiny = *opts.Shiny
	}

	c := &Creature{
		UUID:       uuid.NewString(),
		SpeciesID:  sp.ID,
		Name:       sp.Name,
		Types:      append([]string(nil), sp.Types...),
		GrowthRate: sp.GrowthRate,
		Shiny:      shiny,
		Level:      level,
		Experience: stats.Threshold(sp.GrowthRate, level),
		Nature:     nature.Name,
		IVs:        ivs,
		Image:      sp.Image(shiny),
	}
	f.recompute(c, sp)
	c.HealFull()
	c.Moves = f.cat.LearnableUpTo(sp.ID, level)
	c.ActiveMoves = f.DefaultActiveMoves(c)
	return c, nil
}

// DefaultActiveMoves picks the last four known moves on the damaging whitelist.
func (f *Factory) DefaultActiveMoves(c *Creature) []string {
	var out []string
	for i := len(c.Moves) - 1; i >= 0 && len(out) < MaxActiveMoves; i-- {
		if f.cat.IsDamaging(c.Moves[i].Name) {
			out = append(out, c.Moves[i].Name)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Recompute refreshes derived stats and MaxHP from the creature's species.
//
// Postcondition: MaxHP == Stats.HP and CurrentHP <= MaxHP.
func (f *Factory) Recompute(c *Creature) error {
	sp, ok := f.cat.Species(c.SpeciesID)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownSpecies, c.SpeciesID)
	}
	f.recompute(c, sp)
	return nil
}

func (f *Factory) recompute(c *Creature, sp *catalog.Species) {
	c.Stats = stats.Compute(sp.BaseStats, c.IVs, c.EVs, c.Level, c.NatureValue())
	c.MaxHP = c.Stats.HP
	if c.CurrentHP > c.MaxHP {
		c.CurrentHP = c.MaxHP
	}
	if c.CurrentHP < 0 {
		c.CurrentHP = 0
	}
}

func clampLevel(l int) int {
	return max(stats.MinLevel, min(stats.MaxLevel, l))
}
