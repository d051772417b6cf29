package stats

import (
	"fmt"
	"strings"
)

// GrowthRate names one of the six experience curves.
type GrowthRate string

const (
	Fast        GrowthRate = "fast"
	MediumFast  GrowthRate = "medium-fast"
	MediumSlow  GrowthRate = "medium-slow"
	Slow        GrowthRate = "slow"
	Erratic     GrowthRate = "erratic"
	Fluctuating GrowthRate = "fluctuating"
)

// Valid reports whether g is one of the six known curves.
func (g GrowthRate) Valid() bool {
	switch g {
	case Fast, MediumFast, MediumSlow, Slow, Erratic, Fluctuating:
		return true
	}
	return false
}

// Threshold returns the total experience needed to reach level on curve g.
//
// Precondition: g.Valid().
// Postcondition: Threshold(g, 1) == 0; the result is non-decreasing in level.
func Threshold(g GrowthRate, level int) int {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	n := level
	cube := n * n * n
	switch g {
	case Fast:
		return 4 * cube / 5
	case MediumFast:
		return cube
	case MediumSlow:
		return 6*cube/5 - 15*n*n + 100*n - 140
	case Slow:
		return 5 * cube / 4
	case Erratic:
		switch {
		case n <= 50:
			return cube * (100 - n) / 50
		case n <= 68:
			return cube * (150 - n) / 100
		case n <= 98:
			return cube * ((1911 - 10*n) / 3) / 500
		default:
			return cube * (160 - n) / 100
		}
	case Fluctuating:
		switch {
		case n <= 15:
			return cube * ((n+1)/3 + 24) / 50
		case n <= 36:
			return cube * (n + 14) / 50
		default:
			return cube * (n/2 + 32) / 50
		}
	}
	panic(fmt.Sprintf("stats: unknown growth rate %q", string(g)))
}

// LevelFor returns the highest level whose threshold does not exceed exp.
//
// Postcondition: 1 <= result <= MaxLevel.
func LevelFor(g GrowthRate, exp int) int {
	level := MinLevel
	for level < MaxLevel && exp >= Threshold(g, level+1) {
		level++
	}
	return level
}

// barWidth is the number of cells in an EXP bar.
const barWidth = 10

// ExpBar renders progress from Threshold(level) to Threshold(level+1) as a
// ten-cell bar and returns the experience still needed for the next level.
//
// Postcondition: At MaxLevel the bar is full and remaining is 0.
func ExpBar(g GrowthRate, level, exp int) (bar string, remaining int) {
	if level >= MaxLevel {
		return strings.Repeat("█", barWidth), 0
	}
	lo := Threshold(g, level)
	hi := Threshold(g, level+1)
	span := hi - lo
	progress := exp - lo
	if progress < 0 {
		progress = 0
	}
	if span <= 0 {
		return strings.Repeat("█", barWidth), 0
	}
	filled := progress * barWidth / span
	if filled > barWidth {
		filled = barWidth
	}
	remaining = hi - exp
	if remaining < 0 {
		remaining = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled), remaining
}
