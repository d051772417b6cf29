package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/catalog/catalogtest"
	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
	"github.com/pokebot/pokebot/internal/game/stats"
)

func fighter(name string, level int, types []string, s stats.Block) *creature.Creature {
	return &creature.Creature{
		UUID:      name,
		Name:      name,
		Types:     types,
		Level:     level,
		Stats:     s,
		MaxHP:     s.HP,
		CurrentHP: s.HP,
	}
}

func mustMove(t *testing.T, cat *catalog.Catalog, name string) catalog.Move {
	t.Helper()
	m, ok := cat.Move(name)
	require.True(t, ok, name)
	return *m
}

func TestApplyMove_WaterGunOnCharmanderBounds(t *testing.T) {
	cat := catalogtest.Load(t)
	squirtle := fighter("squirtle", 10, []string{"water"}, stats.Block{HP: 30, SpAttack: 20, Speed: 10})
	charmander := fighter("charmander", 10, []string{"fire"}, stats.Block{HP: 30, SpDefense: 20, Speed: 12})
	waterGun := mustMove(t, cat, "water gun")

	low := combat.NewResolver(cat, dice.NewScripted().PushInts(0, 0)).ApplyMove(squirtle, charmander, waterGun)
	high := combat.NewResolver(cat, dice.NewScripted().PushInts(0, 15)).ApplyMove(squirtle, charmander, waterGun)

	assert.False(t, low.Missed)
	assert.True(t, low.STAB)
	assert.Equal(t, 2.0, low.Effectiveness)
	assert.Equal(t, "It's super effective!", low.Label)
	assert.Equal(t, 85, low.Roll)
	assert.Equal(t, 14, low.Damage)
	assert.Equal(t, 100, high.Roll)
	assert.Equal(t, 18, high.Damage)
	assert.Equal(t, 30, charmander.CurrentHP, "resolver does not apply damage")
}

func TestApplyMove_Property_DamageWithinRandomBounds(t *testing.T) {
	cat := catalogtest.Load(t)
	waterGun := mustMove(t, cat, "water gun")
	rapid.Check(t, func(rt *rapid.T) {
		a := fighter("a", 10, []string{"water"}, stats.Block{HP: 30, SpAttack: 20})
		d := fighter("d", 10, []string{"fire"}, stats.Block{HP: 30, SpDefense: 20})
		r := combat.NewResolver(cat, dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")))
		res := r.ApplyMove(a, d, waterGun)
		if res.Damage < 14 || res.Damage > 18 {
			rt.Fatalf("damage %d outside [14,18]", res.Damage)
		}
	})
}

func TestApplyMove_AccuracyRoll(t *testing.T) {
	cat := catalogtest.Load(t)
	a := fighter("a", 20, []string{"grass"}, stats.Block{HP: 50, Attack: 30})
	d := fighter("d", 20, []string{"water"}, stats.Block{HP: 50, Defense: 30})
	razor := mustMove(t, cat, "razor-leaf")

	miss := combat.NewResolver(cat, dice.NewScripted().PushInts(95)).ApplyMove(a, d, razor)
	assert.True(t, miss.Missed)
	assert.Zero(t, miss.Damage)

	hit := combat.NewResolver(cat, dice.NewScripted().PushInts(94, 0)).ApplyMove(a, d, razor)
	assert.False(t, hit.Missed)
	assert.Positive(t, hit.Damage)
}

func TestApplyMove_NilAccuracyNeverMisses(t *testing.T) {
	cat := catalogtest.Load(t)
	a := fighter("a", 30, []string{"electric"}, stats.Block{HP: 50, SpAttack: 40})
	d := fighter("d", 30, []string{"water"}, stats.Block{HP: 50, SpDefense: 40})
	src := dice.NewScripted().PushInts(15)
	res := combat.NewResolver(cat, src).ApplyMove(a, d, mustMove(t, cat, "swift"))
	assert.False(t, res.Missed)
	assert.Equal(t, 100, res.Roll, "the only roll consumed is the random factor")
}

func TestApplyMove_StatusAndImmunity(t *testing.T) {
	cat := catalogtest.Load(t)
	a := fighter("a", 30, []string{"normal"}, stats.Block{HP: 50, Attack: 40})
	d := fighter("d", 30, []string{"water"}, stats.Block{HP: 50, Defense: 40})
	ghost := fighter("g", 30, []string{"ghost"}, stats.Block{HP: 50, Defense: 40})
	r := combat.NewResolver(cat, dice.NewScripted())

	growl := r.ApplyMove(a, d, mustMove(t, cat, "growl"))
	assert.False(t, growl.Missed)
	assert.Zero(t, growl.Damage)
	assert.Empty(t, growl.Label)

	immune := r.ApplyMove(a, ghost, mustMove(t, cat, "tackle"))
	assert.Zero(t, immune.Damage)
	assert.Equal(t, "It had no effect...", immune.Label)
}

func TestApplyMove_MinimumOneDamage(t *testing.T) {
	cat := catalogtest.Load(t)
	weak := fighter("w", 1, []string{"normal"}, stats.Block{HP: 11, Attack: 1})
	wall := fighter("x", 100, []string{"rock"}, stats.Block{HP: 300, Defense: 999})
	res := combat.NewResolver(cat, dice.NewScripted()).ApplyMove(weak, wall, mustMove(t, cat, "tackle"))
	assert.Equal(t, 1, res.Damage)
}

func TestApplyMove_Struggle(t *testing.T) {
	cat := catalogtest.Load(t)
	r := combat.NewResolver(cat, dice.NewScripted())
	assert.True(t, r.Damaging(combat.Struggle))
	a := fighter("a", 10, []string{"water"}, stats.Block{HP: 30, Attack: 20})
	d := fighter("d", 10, []string{"water"}, stats.Block{HP: 30, Defense: 20})
	assert.Positive(t, r.ApplyMove(a, d, combat.Struggle).Damage)
}
