package combat

import (
	"errors"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
	"github.com/pokebot/pokebot/internal/game/stats"
)

// ErrNoEncounter is returned when a region has no eligible species.
var ErrNoEncounter = errors.New("nothing to encounter here")

// defaultTeamLevel is used for wild level rolls when the team is empty.
const defaultTeamLevel = 5

// WildLevel draws a level uniformly in [max(2, L-5), min(100, L+2)], where L
// is the highest level on team.
func WildLevel(src dice.Source, team []*creature.Creature) int {
	top := 0
	for _, c := range team {
		top = max(top, c.Level)
	}
	if top == 0 {
		top = defaultTeamLevel
	}
	lo := max(2, top-5)
	hi := min(stats.MaxLevel, top+2)
	if hi < lo {
		hi = lo
	}
	return lo + src.Intn(hi-lo+1)
}

// PickWildSpecies draws a species for an encounter in region. Hunting draws
// non-legendary, non-mythical members; fishing draws water types; safari
// draws legendaries.
func PickWildSpecies(cat *catalog.Catalog, src dice.Source, region, encounter string) (*catalog.Species, error) {
	var pool []*catalog.Species
	for _, id := range cat.RegionMembers(region) {
		sp, _ := cat.Species(id)
		switch encounter {
		case ContextFishing:
			if sp.HasType("water") {
				pool = append(pool, sp)
			}
		case ContextSafari:
			if sp.Legendary {
				pool = append(pool, sp)
			}
		default:
			if !sp.Legendary && !sp.Mythical {
				pool = append(pool, sp)
			}
		}
	}
	if len(pool) == 0 {
		return nil, ErrNoEncounter
	}
	return pool[src.Intn(len(pool))], nil
}
