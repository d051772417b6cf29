package creature

import (
	"errors"
	"fmt"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/stats"
)

// Progression errors.
var (
	ErrMaxLevel        = errors.New("already at max level")
	ErrCannotEvolve    = errors.New("cannot evolve")
	ErrTMIncompatible  = errors.New("tm is not compatible")
	ErrAlreadyKnown    = errors.New("move already known")
	ErrTooManyMoves    = errors.New("too many active moves")
	ErrMoveNotKnown    = errors.New("move not known")
	ErrMoveNotDamaging = errors.New("move does not deal damage")
	ErrVitaminCap      = errors.New("vitamin limit reached")
)

// VitaminStep is the EV change applied by one vitamin or berry.
const VitaminStep = 10

// VitaminCap is the most EVs vitamins may add to one stat.
const VitaminCap = 100

// LevelUp records one level gained during an XP grant.
type LevelUp struct {
	Level    int
	NewMoves []string
}

// GrantXP adds xp to c and applies every level-up it earns.
//
// Each level gained heals a quarter of MaxHP, recomputes stats and refreshes
// the known move list. New moves are not added to the active set.
//
// Precondition: xp >= 0.
// Postcondition: Experience >= Threshold(Level); Level <= 100.
func (f *Factory) GrantXP(c *Creature, xp int) ([]LevelUp, error) {
	sp, ok := f.cat.Species(c.SpeciesID)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownSpecies, c.SpeciesID)
	}
	if floor := stats.Threshold(c.GrowthRate, c.Level); c.Experience < floor {
		c.Experience = floor
	}
	if xp > 0 {
		c.Experience += xp
	}

	var ups []LevelUp
	for c.Level < stats.MaxLevel && c.Experience >= stats.Threshold(c.GrowthRate, c.Level+1) {
		c.Level++
		c.Heal(c.MaxHP / 4)
		f.recompute(c, sp)
		added := f.refreshMoves(c)
		ups = append(ups, LevelUp{Level: c.Level, NewMoves: added})
	}
	return ups, nil
}

// ApplyCandy raises c by n levels, one candy per level. Candies beyond level
// 100 are not consumed.
//
// Postcondition: Returns the number of candies used.
func (f *Factory) ApplyCandy(c *Creature, n int) (int, error) {
	used := 0
	for ; used < n && c.Level < stats.MaxLevel; used++ {
		need := stats.Threshold(c.GrowthRate, c.Level+1) - max(c.Experience, stats.Threshold(c.GrowthRate, c.Level))
		if _, err := f.GrantXP(c, max(need, 0)); err != nil {
			return used, err
		}
	}
	if used == 0 && n > 0 {
		return 0, ErrMaxLevel
	}
	return used, nil
}

// CanEvolve reports the evolution c may take now. Level evolutions need the
// creature at or above the threshold; item evolutions need the named item.
func (f *Factory) CanEvolve(c *Creature, item string) (catalog.Evolution, bool) {
	evo, ok := f.cat.EvolutionOf(c.Name)
	if !ok {
		return evo, false
	}
	switch evo.Method {
	case catalog.MethodLevelUp:
		return evo, c.Level >= evo.Level
	case catalog.MethodItem:
		return evo, item != "" && catalog.NormalizeName(item) == catalog.NormalizeName(evo.Item)
	}
	return evo, false
}

// Evolve transforms c into its evolution target in place.
//
// Postcondition: UUID, IVs, EVs, nature, level, experience, shiny flag, known
// and active moves are preserved; CurrentHP == min(old CurrentHP, new MaxHP).
func (f *Factory) Evolve(c *Creature, item string) (*catalog.Species, error) {
	evo, ok := f.CanEvolve(c, item)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCannotEvolve, c.Name)
	}
	target, ok := f.cat.SpeciesByName(evo.Target)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpecies, evo.Target)
	}

	hp := c.CurrentHP
	c.SpeciesID = target.ID
	c.Name = target.Name
	c.Types = append([]string(nil), target.Types...)
	c.GrowthRate = target.GrowthRate
	c.Image = target.Image(c.Shiny)
	if floor := stats.Threshold(c.GrowthRate, c.Level); c.Experience < floor {
		c.Experience = floor
	}
	f.recompute(c, target)
	c.CurrentHP = min(hp, c.MaxHP)
	f.refreshMoves(c)
	return target, nil
}

// TeachTM adds the TM's move to the known moves.
func (f *Factory) TeachTM(c *Creature, tmID string) (*catalog.TM, error) {
	tm, ok := f.cat.TM(tmID)
	if !ok {
		return nil, fmt.Errorf("unknown tm %q", tmID)
	}
	if !tm.Compatible(c.Name) {
		return nil, fmt.Errorf("%w: %s cannot learn %s", ErrTMIncompatible, c.Name, tm.Move)
	}
	if _, known := c.Knows(tm.Move); known {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyKnown, tm.Move)
	}
	m, ok := f.cat.Move(tm.Move)
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownMove, tm.Move)
	}
	c.Moves = append(c.Moves, catalog.LearnedMove{Move: *m, Level: 0})
	return tm, nil
}

// GrantEVs adds a defeat yield to c, honouring the EV caps, and recomputes stats.
func (f *Factory) GrantEVs(c *Creature, yield stats.Block) error {
	for _, s := range stats.All {
		if v := yield.Get(s); v > 0 {
			stats.AddEV(&c.EVs, s, v)
		}
	}
	return f.Recompute(c)
}

// ApplyVitamin adds VitaminStep EVs to stat s, limited to VitaminCap per stat
// from vitamins and to the global EV caps.
//
// Postcondition: Returns the EVs applied, or ErrVitaminCap when none could be.
func (f *Factory) ApplyVitamin(c *Creature, s stats.Stat) (int, error) {
	room := min(VitaminStep, VitaminCap-c.VitaminEVs.Get(s))
	if room <= 0 {
		return 0, ErrVitaminCap
	}
	applied := stats.AddEV(&c.EVs, s, room)
	if applied <= 0 {
		return 0, ErrVitaminCap
	}
	c.VitaminEVs.Set(s, c.VitaminEVs.Get(s)+applied)
	return applied, f.Recompute(c)
}

// ApplyBerry removes VitaminStep EVs from stat s, flooring at zero.
//
// Postcondition: Returns the EVs removed.
func (f *Factory) ApplyBerry(c *Creature, s stats.Stat) (int, error) {
	removed := -stats.AddEV(&c.EVs, s, -VitaminStep)
	if v := c.VitaminEVs.Get(s) - removed; v >= 0 {
		c.VitaminEVs.Set(s, v)
	} else {
		c.VitaminEVs.Set(s, 0)
	}
	return removed, f.Recompute(c)
}

// SetActiveMoves replaces the active move set.
//
// Precondition: at most four names, each known and on the damaging whitelist.
// Postcondition: On error c is unchanged.
func (f *Factory) SetActiveMoves(c *Creature, names []string) error {
	if len(names) > MaxActiveMoves {
		return fmt.Errorf("%w: %d > %d", ErrTooManyMoves, len(names), MaxActiveMoves)
	}
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		key := catalog.NormalizeName(n)
		if seen[key] {
			continue
		}
		if _, ok := c.Knows(key); !ok {
			return fmt.Errorf("%w: %s", ErrMoveNotKnown, n)
		}
		if !f.cat.IsDamaging(key) {
			return fmt.Errorf("%w: %s", ErrMoveNotDamaging, n)
		}
		seen[key] = true
		out = append(out, key)
	}
	c.ActiveMoves = out
	return nil
}

// refreshMoves adds every move the current species learns up to the current
// level. Moves already known are kept, whatever species taught them, so the
// active set never loses an entry.
//
// Postcondition: Returns the names that were not known before.
func (f *Factory) refreshMoves(c *Creature) []string {
	known := make(map[string]bool, len(c.Moves))
	for _, m := range c.Moves {
		known[m.Name] = true
	}
	var added []string
	for _, m := range f.cat.LearnableUpTo(c.SpeciesID, c.Level) {
		if known[m.Name] {
			continue
		}
		known[m.Name] = true
		c.Moves = append(c.Moves, m)
		added = append(added, m.Name)
	}
	return added
}
