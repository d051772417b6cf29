package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pokebot/pokebot/internal/game/stats"
)

// ErrUnknownMove is returned when a move name is not in the move table.
var ErrUnknownMove = errors.New("unknown move")

// ErrUnknownSpecies is returned when a species lookup fails.
var ErrUnknownSpecies = errors.New("unknown species")

// Catalog exposes O(1) lookups over the static game content.
// All methods are safe for concurrent use because the Catalog is never mutated after Load.
type Catalog struct {
	species    map[int]*Species
	byName     map[string]*Species
	speciesIDs []int
	moves      map[string]*Move
	damaging   map[string]bool
	learnsets  map[string][]learnEntry
	special    map[string][]learnEntry
	tms        map[string]*TM
	evolutions map[string]Evolution
	regions    map[string]*Region
	evYield    map[string]stats.Block
	gyms       map[string]*GymLeader
	balls      map[string]*Ball
	ballOrder  []string
}

// Species returns the species with the given id.
//
// Postcondition: Returns (species, true) or (nil, false).
func (c *Catalog) Species(id int) (*Species, bool) {
	s, ok := c.species[id]
	return s, ok
}

// SpeciesByName looks a species up case-insensitively.
func (c *Catalog) SpeciesByName(name string) (*Species, bool) {
	s, ok := c.byName[NormalizeName(name)]
	return s, ok
}

// SpeciesNames returns every species name in id order.
func (c *Catalog) SpeciesNames() []string {
	out := make([]string, 0, len(c.speciesIDs))
	for _, id := range c.speciesIDs {
		out = append(out, c.species[id].Name)
	}
	return out
}

// Move returns the move record for a name under move-name normalisation.
func (c *Catalog) Move(name string) (*Move, bool) {
	m, ok := c.moves[NormalizeName(name)]
	return m, ok
}

// IsDamaging reports whether name is on the damaging-move whitelist.
func (c *Catalog) IsDamaging(name string) bool {
	return c.damaging[NormalizeName(name)]
}

// TM returns a TM by id (case-insensitive, e.g. "tm24").
func (c *Catalog) TM(id string) (*TM, bool) {
	t, ok := c.tms[strings.ToUpper(strings.TrimSpace(id))]
	return t, ok
}

// TMs returns all TMs sorted by id.
func (c *Catalog) TMs() []*TM {
	out := make([]*TM, 0, len(c.tms))
	for _, t := range c.tms {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EvolutionOf returns the evolution rule for the named species.
func (c *Catalog) EvolutionOf(name string) (Evolution, bool) {
	e, ok := c.evolutions[NormalizeName(name)]
	return e, ok
}

// Effectiveness returns the type multiplier of attackType against defenderTypes.
func (c *Catalog) Effectiveness(attackType string, defenderTypes []string) float64 {
	return Effectiveness(attackType, defenderTypes)
}

// LearnableUpTo returns the moves the species knows at level, sorted by learn
// level. Duplicate moves keep their highest learn level not above level; moves
// without metadata are skipped.
//
// Precondition: speciesID must exist.
// Postcondition: Every returned entry has Level <= level.
func (c *Catalog) LearnableUpTo(speciesID, level int) []LearnedMove {
	sp, ok := c.species[speciesID]
	if !ok {
		return nil
	}
	entries := c.learnsetFor(sp.Name)

	best := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.Level > level {
			continue
		}
		key := NormalizeName(e.Move)
		if cur, seen := best[key]; !seen || e.Level > cur {
			best[key] = e.Level
		}
	}

	out := make([]LearnedMove, 0, len(best))
	for name, lvl := range best {
		m, ok := c.moves[name]
		if !ok {
			continue
		}
		out = append(out, LearnedMove{Move: *m, Level: lvl})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// learnsetFor returns the special learnset whose key is contained in the
// species name, falling back to the generic learnset.
func (c *Catalog) learnsetFor(name string) []learnEntry {
	norm := NormalizeName(name)
	for key, entries := range c.special {
		if strings.Contains(norm, key) {
			return entries
		}
	}
	return c.learnsets[norm]
}

// RegionMembers returns the species ids in region.
func (c *Catalog) RegionMembers(region string) []int {
	r, ok := c.regions[NormalizeName(region)]
	if !ok {
		return nil
	}
	var out []int
	for id := r.Start; id <= r.End; id++ {
		if _, ok := c.species[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Region returns a region by name.
func (c *Catalog) Region(name string) (*Region, bool) {
	r, ok := c.regions[NormalizeName(name)]
	return r, ok
}

// RegionNames returns every region name sorted by first species id.
func (c *Catalog) RegionNames() []string {
	out := make([]string, 0, len(c.regions))
	for name := range c.regions {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return c.regions[out[i]].Start < c.regions[out[j]].Start })
	return out
}

// EVYield returns the EVs granted for defeating the named species.
func (c *Catalog) EVYield(name string) stats.Block {
	return c.evYield[NormalizeName(name)]
}

// GymLeader returns a gym leader by name.
func (c *Catalog) GymLeader(name string) (*GymLeader, bool) {
	g, ok := c.gyms[NormalizeName(name)]
	return g, ok
}

// GymLeaderTeam returns the roster of the named gym leader.
//
// Postcondition: Returns the roster or an error naming the unknown leader.
func (c *Catalog) GymLeaderTeam(name string) ([]GymMember, error) {
	g, ok := c.GymLeader(name)
	if !ok {
		return nil, fmt.Errorf("unknown gym leader %q", name)
	}
	out := make([]GymMember, len(g.Team))
	copy(out, g.Team)
	return out, nil
}

// GymLeaders returns the leaders of region sorted by name.
func (c *Catalog) GymLeaders(region string) []*GymLeader {
	var out []*GymLeader
	for _, g := range c.gyms {
		if region == "" || strings.EqualFold(g.Region, region) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Ball returns the ball definition by name.
func (c *Catalog) Ball(name string) (*Ball, bool) {
	b, ok := c.balls[NormalizeName(name)]
	return b, ok
}

// Balls returns every ball in file order.
func (c *Catalog) Balls() []*Ball {
	out := make([]*Ball, 0, len(c.ballOrder))
	for _, n := range c.ballOrder {
		out = append(out, c.balls[n])
	}
	return out
}
