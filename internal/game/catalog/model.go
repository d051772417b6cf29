// Package catalog holds the read-only game content: species, moves, TMs,
// evolutions, regions, gym rosters, EV yields, balls and the type chart.
// A Catalog is loaded once at startup and is immutable afterwards.
package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pokebot/pokebot/internal/game/stats"
)

// Category is the damage class of a move.
type Category string

const (
	Physical Category = "physical"
	Special  Category = "special"
	Status   Category = "status"
)

// Species is the read-only template for creatures.
type Species struct {
	ID          int              `json:"id"`
	Name        string           `json:"name"`
	Types       []string         `json:"types"`
	BaseStats   stats.Block      `json:"base_stats"`
	GrowthRate  stats.GrowthRate `json:"growth_rate"`
	CaptureRate int              `json:"capture_rate"`
	Weight      int              `json:"weight"`
	Legendary   bool             `json:"is_legendary"`
	Mythical    bool             `json:"is_mythical"`
	Sprite      string           `json:"sprite"`
	ShinySprite string           `json:"shiny_sprite"`
}

// HasType reports whether the species carries element t.
func (s *Species) HasType(t string) bool {
	for _, have := range s.Types {
		if strings.EqualFold(have, t) {
			return true
		}
	}
	return false
}

// Image returns the sprite reference for the regular or shiny form.
func (s *Species) Image(shiny bool) string {
	if shiny && s.ShinySprite != "" {
		return s.ShinySprite
	}
	return s.Sprite
}

// Move is the per-name move record. A nil Accuracy never misses.
type Move struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Category Category `json:"category"`
	Power    int      `json:"power"`
	Accuracy *int     `json:"accuracy"`
	PP       int      `json:"pp"`
}

// LearnedMove is a move as known by a creature, tagged with its learn level.
type LearnedMove struct {
	Move
	Level int `json:"level"`
}

// learnEntry is one row of a learnset file.
type learnEntry struct {
	Move  string `json:"move"`
	Level int    `json:"level"`
}

// TM is a teachable move record.
type TM struct {
	ID      string   `json:"id"`
	Move    string   `json:"move"`
	Species []string `json:"species"`
	Price   int      `json:"price"`
}

// Compatible reports whether the TM can be taught to the named species.
// An empty species list means every species can learn it.
func (t *TM) Compatible(species string) bool {
	if len(t.Species) == 0 {
		return true
	}
	for _, s := range t.Species {
		if strings.EqualFold(s, species) {
			return true
		}
	}
	return false
}

// Evolution methods.
const (
	MethodLevelUp = "level-up"
	MethodItem    = "use-item"
)

// Evolution describes how a species evolves.
type Evolution struct {
	Target string `json:"evolves_to"`
	Method string `json:"method"`
	Level  int    `json:"level"`
	Item   string `json:"item"`
}

// Region is a named slice of the species catalog.
type Region struct {
	Name     string   `json:"-"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Starters []string `json:"starters"`
}

// GymMember is one creature template on a gym leader's roster.
type GymMember struct {
	Name  string   `json:"name"`
	Level int      `json:"level"`
	Moves []string `json:"moves"`
}

// GymLeader is a trainer that can be challenged with /gym.
type GymLeader struct {
	Name   string      `json:"-"`
	Region string      `json:"region"`
	Badge  string      `json:"badge"`
	Reward int         `json:"reward"`
	Team   []GymMember `json:"team"`
}

// Ball is a capture device. Script is a Lua chunk returning the catch modifier.
type Ball struct {
	Name    string `yaml:"name"`
	Display string `yaml:"display"`
	Price   int    `yaml:"price"`
	Script  string `yaml:"script"`
}

// NormalizeName lowercases name and replaces spaces with hyphens.
//
// Postcondition: NormalizeName(NormalizeName(x)) == NormalizeName(x).
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// DisplayName renders a catalog key such as "mr-mime" as "Mr Mime".
func DisplayName(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
}
