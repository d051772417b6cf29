package creature_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/stats"
)

func TestApplyCandy_BulbasaurToFifteen(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.CreateWith(1, 5, fixed(15, "Hardy"))
	require.NoError(t, err)

	used, err := f.ApplyCandy(c, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, used)
	assert.Equal(t, 15, c.Level)
	assert.Equal(t, 40, c.Stats.HP)
	assert.Equal(t, 40, c.MaxHP)
}

func TestApplyCandy_Property_ExactLevels(t *testing.T) {
	f := newFactory(t, nil)
	rapid.Check(t, func(rt *rapid.T) {
		lvl := rapid.IntRange(1, 99).Draw(rt, "lvl")
		n := rapid.IntRange(1, 100-lvl).Draw(rt, "n")
		c, err := f.Create(129, lvl)
		if err != nil {
			rt.Fatal(err)
		}
		used, err := f.ApplyCandy(c, n)
		if err != nil {
			rt.Fatal(err)
		}
		if used != n || c.Level != lvl+n {
			rt.Fatalf("level %d + %d candies gave level %d (used %d)", lvl, n, c.Level, used)
		}
		if c.Experience < stats.Threshold(c.GrowthRate, c.Level) {
			rt.Fatalf("experience %d below threshold", c.Experience)
		}
	})
}

func TestApplyCandy_AtMaxLevelIsNoOp(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.Create(151, 100)
	require.NoError(t, err)
	before := *c
	used, err := f.ApplyCandy(c, 3)
	assert.ErrorIs(t, err, creature.ErrMaxLevel)
	assert.Zero(t, used)
	assert.Equal(t, before.Level, c.Level)
	assert.Equal(t, before.Experience, c.Experience)
}

func TestGrantXP_LevelUpAddsMovesButNotActive(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.CreateWith(7, 15, fixed(15, "Hardy"))
	require.NoError(t, err)
	c.TakeDamage(10)
	hpBefore := c.CurrentHP

	need := stats.Threshold(c.GrowthRate, 16) - c.Experience
	ups, err := f.GrantXP(c, need)
	require.NoError(t, err)
	require.Len(t, ups, 1)
	assert.Equal(t, 16, ups[0].Level)
	assert.Equal(t, []string{"bite"}, ups[0].NewMoves)
	assert.False(t, c.HasActive("bite"))
	assert.Greater(t, c.CurrentHP, hpBefore)
	assert.LessOrEqual(t, c.CurrentHP, c.MaxHP)
}

func TestGrantXP_Property_Invariants(t *testing.T) {
	f := newFactory(t, nil)
	rapid.Check(t, func(rt *rapid.T) {
		id := rapid.SampledFrom([]int{1, 7, 16, 25, 129, 150}).Draw(rt, "id")
		lvl := rapid.IntRange(1, 100).Draw(rt, "lvl")
		xp := rapid.IntRange(0, 2_000_000).Draw(rt, "xp")
		c, err := f.Create(id, lvl)
		if err != nil {
			rt.Fatal(err)
		}
		c.TakeDamage(rapid.IntRange(0, c.MaxHP).Draw(rt, "dmg"))
		if _, err := f.GrantXP(c, xp); err != nil {
			rt.Fatal(err)
		}
		if c.Level < lvl || c.Level > stats.MaxLevel {
			rt.Fatalf("level %d out of range", c.Level)
		}
		if c.Experience < stats.Threshold(c.GrowthRate, c.Level) {
			rt.Fatalf("experience %d below threshold of level %d", c.Experience, c.Level)
		}
		if c.Level < stats.MaxLevel && c.Experience >= stats.Threshold(c.GrowthRate, c.Level+1) {
			rt.Fatalf("level %d not advanced with %d xp", c.Level, c.Experience)
		}
		if c.CurrentHP < 0 || c.CurrentHP > c.MaxHP || c.MaxHP != c.Stats.HP {
			rt.Fatalf("hp %d/%d (stats %d)", c.CurrentHP, c.MaxHP, c.Stats.HP)
		}
	})
}

func TestEvolve_PreservesIdentity(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.CreateWith(1, 16, fixed(20, "Modest"))
	require.NoError(t, err)
	c.EVs.SpAttack = 40
	require.NoError(t, f.Recompute(c))
	c.TakeDamage(7)
	before := c.Clone()

	_, ok := f.CanEvolve(c, "")
	require.True(t, ok)
	target, err := f.Evolve(c, "")
	require.NoError(t, err)

	assert.Equal(t, "ivysaur", target.Name)
	assert.Equal(t, 2, c.SpeciesID)
	assert.Equal(t, "ivysaur", c.Name)
	assert.Equal(t, before.UUID, c.UUID)
	assert.Equal(t, before.IVs, c.IVs)
	assert.Equal(t, before.EVs, c.EVs)
	assert.Equal(t, before.Nature, c.Nature)
	assert.Equal(t, before.Level, c.Level)
	assert.Equal(t, before.Experience, c.Experience)
	assert.Equal(t, before.Shiny, c.Shiny)
	assert.Equal(t, c.Stats.HP, c.MaxHP)
	assert.Greater(t, c.MaxHP, before.MaxHP)
	assert.Equal(t, min(before.CurrentHP, c.MaxHP), c.CurrentHP)
	assert.Contains(t, c.Image, "/2.png")
}

func TestEvolve_KeepsKnownMoves(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.CreateByName("charmander", 17, fixed(15, "Hardy"))
	require.NoError(t, err)
	require.NoError(t, f.SetActiveMoves(c, []string{"fire-spin"}))
	known := len(c.Moves)

	_, err = f.Evolve(c, "")
	require.NoError(t, err)

	assert.Equal(t, "charmeleon", c.Name)
	_, ok := c.Knows("fire-spin")
	assert.True(t, ok, "charmeleon learns fire-spin later but keeps it")
	assert.Equal(t, []string{"fire-spin"}, c.ActiveMoves)
	assert.True(t, c.Usable())
	assert.Len(t, c.Moves, known)

	used, err := f.ApplyCandy(c, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, used)
	assert.Equal(t, []string{"fire-spin"}, c.ActiveMoves)
	assert.Len(t, c.Moves, known, "relearning at level 19 adds no duplicate")
}

func TestEvolve_BelowThreshold(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.Create(1, 15)
	require.NoError(t, err)
	_, ok := f.CanEvolve(c, "")
	assert.False(t, ok)
	_, err = f.Evolve(c, "")
	assert.ErrorIs(t, err, creature.ErrCannotEvolve)
	assert.Equal(t, "bulbasaur", c.Name)
}

func TestEvolve_ItemMethod(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.Create(133, 30)
	require.NoError(t, err)
	_, err = f.Evolve(c, "")
	assert.ErrorIs(t, err, creature.ErrCannotEvolve)
	_, err = f.Evolve(c, "fire-stone")
	assert.ErrorIs(t, err, creature.ErrCannotEvolve)

	_, err = f.Evolve(c, "Water Stone")
	require.NoError(t, err)
	assert.Equal(t, "vaporeon", c.Name)
	assert.Equal(t, []string{"water"}, c.Types)
}

func TestTeachTM(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.CreateWith(7, 15, fixed(15, "Hardy"))
	require.NoError(t, err)

	tm, err := f.TeachTM(c, "tm13")
	require.NoError(t, err)
	assert.Equal(t, "ice-beam", tm.Move)
	_, ok := c.Knows("Ice Beam")
	assert.True(t, ok)

	_, err = f.TeachTM(c, "TM13")
	assert.ErrorIs(t, err, creature.ErrAlreadyKnown)
	_, err = f.TeachTM(c, "TM24")
	assert.ErrorIs(t, err, creature.ErrTMIncompatible)
	_, err = f.TeachTM(c, "TM99")
	assert.Error(t, err)

	require.NoError(t, f.SetActiveMoves(c, []string{"ice-beam", "water-gun"}))
	_, err = f.GrantXP(c, stats.Threshold(c.GrowthRate, 17)-c.Experience)
	require.NoError(t, err)
	_, ok = c.Knows("ice-beam")
	assert.True(t, ok, "taught moves survive level-up")
	assert.True(t, c.HasActive("ice-beam"))
}

func TestSetActiveMoves(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.CreateWith(7, 40, fixed(15, "Hardy"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.SetActiveMoves(c, []string{"tackle", "water-gun", "bubble", "bite", "surf"}), creature.ErrTooManyMoves)
	assert.ErrorIs(t, f.SetActiveMoves(c, []string{"withdraw"}), creature.ErrMoveNotDamaging)
	assert.ErrorIs(t, f.SetActiveMoves(c, []string{"thunderbolt"}), creature.ErrMoveNotKnown)
	before := append([]string(nil), c.ActiveMoves...)
	assert.Equal(t, before, c.ActiveMoves, "failed edits leave the set unchanged")

	require.NoError(t, f.SetActiveMoves(c, []string{"Surf", "hydro pump", "surf"}))
	assert.Equal(t, []string{"surf", "hydro-pump"}, c.ActiveMoves)

	require.NoError(t, f.SetActiveMoves(c, nil))
	assert.Empty(t, c.ActiveMoves)
	assert.False(t, c.Usable())
}

func TestVitaminsAndBerries(t *testing.T) {
	f := newFactory(t, nil)
	c, err := f.CreateWith(25, 50, fixed(15, "Hardy"))
	require.NoError(t, err)
	speed := c.Stats.Speed

	for i := 0; i < creature.VitaminCap/creature.VitaminStep; i++ {
		n, err := f.ApplyVitamin(c, stats.Speed)
		require.NoError(t, err)
		assert.Equal(t, creature.VitaminStep, n)
	}
	_, err = f.ApplyVitamin(c, stats.Speed)
	assert.ErrorIs(t, err, creature.ErrVitaminCap)
	assert.Equal(t, 100, c.EVs.Speed)
	assert.Greater(t, c.Stats.Speed, speed)

	n, err := f.ApplyBerry(c, stats.Speed)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 90, c.EVs.Speed)
	assert.Equal(t, 90, c.VitaminEVs.Speed)

	n, err = f.ApplyBerry(c, stats.Attack)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, c.EVs.Attack)
}

func TestGrantEVs_Property_Caps(t *testing.T) {
	f := newFactory(t, nil)
	rapid.Check(t, func(rt *rapid.T) {
		c, err := f.Create(1, 30)
		if err != nil {
			rt.Fatal(err)
		}
		rounds := rapid.IntRange(1, 200).Draw(rt, "rounds")
		for i := 0; i < rounds; i++ {
			y := stats.Block{
				HP:    rapid.IntRange(0, 3).Draw(rt, "hp"),
				Speed: rapid.IntRange(0, 3).Draw(rt, "spd"),
			}
			if err := f.GrantEVs(c, y); err != nil {
				rt.Fatal(err)
			}
		}
		if c.EVs.Total() > stats.MaxEVTotal {
			rt.Fatalf("ev total %d", c.EVs.Total())
		}
		for _, s := range stats.All {
			if c.EVs.Get(s) > stats.MaxEV {
				rt.Fatalf("ev %s=%d", s, c.EVs.Get(s))
			}
		}
	})
}
