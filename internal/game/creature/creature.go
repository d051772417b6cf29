// Package creature implements creature instances: creation from a species
// template and every progression rule that mutates one (experience, candy,
// evolution, TMs, EVs and the active move set).
package creature

import (
	"time"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/stats"
)

// MaxActiveMoves is the most moves a creature can carry into battle.
const MaxActiveMoves = 4

// Creature is one collectible instance. It is stored verbatim inside the
// trainer document, so field names are part of the persisted format.
//
// Invariant: 0 <= CurrentHP <= MaxHP; MaxHP == Stats.HP.
// Invariant: Experience >= stats.Threshold(GrowthRate, Level).
type Creature struct {
	UUID         string                `json:"uuid"`
	SpeciesID    int                   `json:"species_id"`
	Name         string                `json:"name"`
	Types        []string              `json:"types"`
	GrowthRate   stats.GrowthRate      `json:"growth_rate"`
	Shiny        bool                  `json:"is_shiny"`
	Level        int                   `json:"level"`
	Experience   int                   `json:"experience"`
	Nature       string                `json:"nature"`
	IVs          stats.Block           `json:"ivs"`
	EVs          stats.Block           `json:"evs"`
	VitaminEVs   stats.Block           `json:"vitamin_evs"`
	Stats        stats.Block           `json:"derived_stats"`
	CurrentHP    int                   `json:"current_hp"`
	MaxHP        int                   `json:"max_hp"`
	Moves        []catalog.LearnedMove `json:"moves"`
	ActiveMoves  []string              `json:"active_moves"`
	Image        string                `json:"image"`
	TrainerID    *int64                `json:"trainer_id"`
	CapturedWith string                `json:"captured_with,omitempty"`
	CaughtAt     *time.Time            `json:"caught_at,omitempty"`
}

// NatureValue returns the nature record, falling back to Hardy for unknown names.
func (c *Creature) NatureValue() stats.Nature {
	n, _ := stats.NatureByName(c.Nature)
	return n
}

// Fainted reports whether the creature has no HP left.
func (c *Creature) Fainted() bool {
	return c.CurrentHP <= 0
}

// Usable reports whether the creature can be sent into battle.
func (c *Creature) Usable() bool {
	return c.CurrentHP > 0 && len(c.ActiveMoves) > 0
}

// TakeDamage subtracts dmg from CurrentHP, clamping at 0.
//
// Postcondition: Returns the HP actually lost.
func (c *Creature) TakeDamage(dmg int) int {
	if dmg < 0 {
		dmg = 0
	}
	if dmg > c.CurrentHP {
		dmg = c.CurrentHP
	}
	c.CurrentHP -= dmg
	return dmg
}

// Heal restores up to amount HP without exceeding MaxHP.
//
// Postcondition: Returns the HP actually restored.
func (c *Creature) Heal(amount int) int {
	if amount < 0 {
		amount = 0
	}
	before := c.CurrentHP
	c.CurrentHP = min(c.MaxHP, c.CurrentHP+amount)
	return c.CurrentHP - before
}

// HealFull sets CurrentHP to MaxHP.
func (c *Creature) HealFull() {
	c.CurrentHP = c.MaxHP
}

// Knows returns the known move with the given name.
func (c *Creature) Knows(name string) (*catalog.LearnedMove, bool) {
	key := catalog.NormalizeName(name)
	for i := range c.Moves {
		if c.Moves[i].Name == key {
			return &c.Moves[i], true
		}
	}
	return nil, false
}

// HasActive reports whether name is in the active move set.
func (c *Creature) HasActive(name string) bool {
	key := catalog.NormalizeName(name)
	for _, m := range c.ActiveMoves {
		if m == key {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (c *Creature) Clone() *Creature {
	cp := *c
	cp.Types = append([]string(nil), c.Types...)
	cp.Moves = append([]catalog.LearnedMove(nil), c.Moves...)
	for i := range cp.Moves {
		if acc := c.Moves[i].Accuracy; acc != nil {
			v := *acc
			cp.Moves[i].Accuracy = &v
		}
	}
	cp.ActiveMoves = append([]string(nil), c.ActiveMoves...)
	if c.TrainerID != nil {
		id := *c.TrainerID
		cp.TrainerID = &id
	}
	if c.CaughtAt != nil {
		at := *c.CaughtAt
		cp.CaughtAt = &at
	}
	return &cp
}

// DisplayName renders the species name for chat output, with a star when shiny.
func (c *Creature) DisplayName() string {
	name := catalog.DisplayName(c.Name)
	if c.Shiny {
		return name + " ✨"
	}
	return name
}
