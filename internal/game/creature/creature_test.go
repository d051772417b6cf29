package creature_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pokebot/pokebot/internal/game/catalog/catalogtest"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
	"github.com/pokebot/pokebot/internal/game/stats"
)

func newFactory(t testing.TB, src dice.Source) *creature.Factory {
	t.Helper()
	if src == nil {
		src = dice.NewSeededSource(7)
	}
	return creature.NewFactory(catalogtest.Load(t), src)
}

func fixed(iv int, nature string) creature.Options {
	ivs := stats.Uniform(iv)
	shiny := false
	return creature.Options{Nature: nature, IVs: &ivs, Shiny: &shiny}
}

func TestCreate_UnknownSpecies(t *testing.T) {
	f := newFactory(t, nil)
	_, err := f.Create(9999, 5)
	assert.ErrorIs(t, err, creature.ErrUnknownSpecies)
	_, err = f.CreateByName("agumon", 5, creature.Options{})
	assert.ErrorIs(t, err, creature.ErrUnknownSpecies)
}

func TestCreate_ScriptedRolls(t *testing.T) {
	src := dice.NewScripted().PushInts(0, 31, 10, 24, 30, 5, 15, 1)
	f := newFactory(t, src)
	c, err := f.Create(7, 10)
	require.NoError(t, err)

	assert.Equal(t, stats.Block{HP: 7, Attack: 31, Defense: 17, SpAttack: 31, SpDefense: 31, Speed: 12}, c.IVs)
	assert.Equal(t, "Modest", c.Nature)
	assert.False(t, c.Shiny)
	assert.Equal(t, stats.Block{}, c.EVs)
	assert.Equal(t, c.Stats.HP, c.MaxHP)
	assert.Equal(t, c.MaxHP, c.CurrentHP)
	assert.Equal(t, stats.Threshold(stats.MediumSlow, 10), c.Experience)
	assert.NotEmpty(t, c.UUID)
	assert.Nil(t, c.TrainerID)
	assert.Contains(t, c.Image, "/7.png")
	assert.NotContains(t, c.Image, "shiny")
}

func TestCreate_ShinyOnZeroRoll(t *testing.T) {
	f := newFactory(t, dice.NewScripted())
	c, err := f.Create(25, 5)
	require.NoError(t, err)
	assert.True(t, c.Shiny)
	assert.Contains(t, c.Image, "shiny")
	assert.Equal(t, "Pikachu ✨", c.DisplayName())
}

func TestCreate_MovesAndDefaultActive(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.CreateWith(7, 10, fixed(15, "Hardy"))
	require.NoError(t, err)

	var names []string
	for _, m := range c.Moves {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"tackle", "tail-whip", "water-gun", "withdraw"}, names)
	assert.Equal(t, []string{"tackle", "water-gun"}, c.ActiveMoves)
}

func TestCreate_Property_Invariants(t *testing.T) {
	f := newFactory(t, nil)
	ids := []int{1, 4, 7, 16, 19, 25, 74, 95, 129, 133, 144, 151, 646}
	rapid.Check(t, func(rt *rapid.T) {
		id := rapid.SampledFrom(ids).Draw(rt, "id")
		lvl := rapid.IntRange(1, 100).Draw(rt, "lvl")
		c, err := f.Create(id, lvl)
		if err != nil {
			rt.Fatal(err)
		}
		for _, s := range stats.All {
			if v := c.IVs.Get(s); v < ivFloor || v > stats.MaxIV {
				rt.Fatalf("iv %s=%d out of range", s, v)
			}
		}
		if c.MaxHP != c.Stats.HP || c.CurrentHP != c.MaxHP {
			rt.Fatalf("hp %d/%d stats %d", c.CurrentHP, c.MaxHP, c.Stats.HP)
		}
		if len(c.ActiveMoves) > creature.MaxActiveMoves {
			rt.Fatalf("too many active moves: %v", c.ActiveMoves)
		}
		for _, m := range c.ActiveMoves {
			if !f.Catalog().IsDamaging(m) {
				rt.Fatalf("non-damaging active move %s", m)
			}
		}
	})
}

const ivFloor = 7

func TestCreature_DamageAndHeal(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.CreateWith(4, 10, fixed(15, "Hardy"))
	require.NoError(t, err)
	maxHP := c.MaxHP

	assert.Equal(t, 5, c.TakeDamage(5))
	assert.Equal(t, maxHP-5, c.CurrentHP)
	assert.Equal(t, maxHP-5, c.TakeDamage(1000))
	assert.True(t, c.Fainted())
	assert.False(t, c.Usable())
	assert.Equal(t, maxHP, c.Heal(1000))
	c.TakeDamage(3)
	c.HealFull()
	assert.Equal(t, maxHP, c.CurrentHP)
}

func TestCreature_CloneIsDeep(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.Create(1, 10)
	require.NoError(t, err)
	cp := c.Clone()
	cp.ActiveMoves[0] = "changed"
	cp.Types[0] = "fire"
	assert.NotEqual(t, "changed", c.ActiveMoves[0])
	assert.Equal(t, "grass", c.Types[0])
	assert.Equal(t, c.UUID, cp.UUID)
}
