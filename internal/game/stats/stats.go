// Package stats implements the creature stat model: derived stats from base
// values, IVs, EVs, level and nature, plus the six experience growth curves.
package stats

import "fmt"

// Limits on the stat model.
const (
	MinLevel   = 1
	MaxLevel   = 100
	MaxIV      = 31
	MaxEV      = 252
	MaxEVTotal = 510
)

// Stat names one of the six stats.
type Stat int

const (
	HP Stat = iota
	Attack
	Defense
	SpAttack
	SpDefense
	Speed
	// None marks the absence of a stat, used by neutral natures.
	None Stat = -1
)

// All lists the six stats in canonical order.
var All = [6]Stat{HP, Attack, Defense, SpAttack, SpDefense, Speed}

var statKeys = map[Stat]string{
	HP:        "hp",
	Attack:    "attack",
	Defense:   "defense",
	SpAttack:  "special-attack",
	SpDefense: "special-defense",
	Speed:     "speed",
}

// String returns the catalog key for the stat.
func (s Stat) String() string {
	if k, ok := statKeys[s]; ok {
		return k
	}
	return "none"
}

// ParseStat resolves a stat from its catalog key or a common short alias.
//
// Postcondition: Returns (stat, nil) or (None, error) for unknown names.
func ParseStat(name string) (Stat, error) {
	switch name {
	case "hp":
		return HP, nil
	case "attack", "atk":
		return Attack, nil
	case "defense", "def":
		return Defense, nil
	case "special-attack", "spatk", "spa", "sp_attack":
		return SpAttack, nil
	case "special-defense", "spdef", "spd", "sp_defense":
		return SpDefense, nil
	case "speed", "spe":
		return Speed, nil
	}
	return None, fmt.Errorf("unknown stat %q", name)
}

// Block holds one integer per stat.
type Block struct {
	HP        int `json:"hp" yaml:"hp"`
	Attack    int `json:"attack" yaml:"attack"`
	Defense   int `json:"defense" yaml:"defense"`
	SpAttack  int `json:"special-attack" yaml:"special-attack"`
	SpDefense int `json:"special-defense" yaml:"special-defense"`
	Speed     int `json:"speed" yaml:"speed"`
}

// Uniform returns a Block with every stat set to v.
func Uniform(v int) Block {
	return Block{HP: v, Attack: v, Defense: v, SpAttack: v, SpDefense: v, Speed: v}
}

// Get returns the value of stat s.
//
// Precondition: s is one of All.
func (b Block) Get(s Stat) int {
	switch s {
	case HP:
		return b.HP
	case Attack:
		return b.Attack
	case Defense:
		return b.Defense
	case SpAttack:
		return b.SpAttack
	case SpDefense:
		return b.SpDefense
	case Speed:
		return b.Speed
	}
	return 0
}

// Set assigns v to stat s.
//
// Precondition: s is one of All.
func (b *Block) Set(s Stat, v int) {
	switch s {
	case HP:
		b.HP = v
	case Attack:
		b.Attack = v
	case Defense:
		b.Defense = v
	case SpAttack:
		b.SpAttack = v
	case SpDefense:
		b.SpDefense = v
	case Speed:
		b.Speed = v
	}
}

// Total returns the sum of all six stats.
func (b Block) Total() int {
	return b.HP + b.Attack + b.Defense + b.SpAttack + b.SpDefense + b.Speed
}

// Compute derives the six stats for a creature.
//
// HP = floor((2*base + IV + floor(EV/4)) * level / 100) + level + 10
// other = (floor((2*base + IV + floor(EV/4)) * level / 100) + 5) * nature multiplier, floored.
//
// Precondition: 1 <= level <= 100.
// Postcondition: Returned HP >= level + 10.
func Compute(base, iv, ev Block, level int, n Nature) Block {
	var out Block
	for _, s := range All {
		core := (2*base.Get(s) + iv.Get(s) + ev.Get(s)/4) * level / 100
		if s == HP {
			out.HP = core + level + 10
			continue
		}
		out.Set(s, n.Apply(s, core+5))
	}
	return out
}

// ClampIV limits v to [0, MaxIV].
func ClampIV(v int) int {
	return clamp(v, 0, MaxIV)
}

// AddEV adds delta to stat s of evs, honouring the per-stat and total caps.
//
// Postcondition: Every stat stays in [0, MaxEV]; Total() <= MaxEVTotal.
// Returns the amount actually applied.
func AddEV(evs *Block, s Stat, delta int) int {
	cur := evs.Get(s)
	next := clamp(cur+delta, 0, MaxEV)
	if room := MaxEVTotal - evs.Total(); next-cur > room {
		next = cur + room
	}
	evs.Set(s, next)
	return next - cur
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
