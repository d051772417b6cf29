package stats

import "strings"

// Nature raises one stat by 10% and lowers another by 10%; neutral natures
// leave both as None.
type Nature struct {
	Name    string
	Raised  Stat
	Lowered Stat
}

// Apply scales value by the nature multiplier for s, flooring the product.
func (n Nature) Apply(s Stat, value int) int {
	switch {
	case n.Raised == n.Lowered:
		return value
	case s == n.Raised:
		return value * 110 / 100
	case s == n.Lowered:
		return value * 90 / 100
	}
	return value
}

// Natures is the fixed table of 25 natures.
var Natures = [25]Nature{
	{"Hardy", None, None},
	{"Lonely", Attack, Defense},
	{"Brave", Attack, Speed},
	{"Adamant", Attack, SpAttack},
	{"Naughty", Attack, SpDefense},
	{"Bold", Defense, Attack},
	{"Docile", None, None},
	{"Relaxed", Defense, Speed},
	{"Impish", Defense, SpAttack},
	{"Lax", Defense, SpDefense},
	{"Timid", Speed, Attack},
	{"Hasty", Speed, Defense},
	{"Serious", None, None},
	{"Jolly", Speed, SpAttack},
	{"Naive", Speed, SpDefense},
	{"Modest", SpAttack, Attack},
	{"Mild", SpAttack, Defense},
	{"Quiet", SpAttack, Speed},
	{"Bashful", None, None},
	{"Rash", SpAttack, SpDefense},
	{"Calm", SpDefense, Attack},
	{"Gentle", SpDefense, Defense},
	{"Sassy", SpDefense, Speed},
	{"Careful", SpDefense, SpAttack},
	{"Quirky", None, None},
}

// NatureByName looks up a nature case-insensitively.
//
// Postcondition: Returns (nature, true) when found; otherwise the Hardy nature and false.
func NatureByName(name string) (Nature, bool) {
	for _, n := range Natures {
		if strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return Natures[0], false
}
