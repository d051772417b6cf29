package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/pokebot/pokebot/internal/game/dice"
)

func TestCryptoSource_Property_IntnInRange(t *testing.T) {
	src := dice.NewCryptoSource()
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 10_000).Draw(rt, "n")
		v := src.Intn(n)
		assert.GreaterOrEqual(rt, v, 0)
		assert.Less(rt, v, n)
	})
}

func TestCryptoSource_Property_FloatInUnitInterval(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Float64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestCryptoSource_IntnPanicsOnNonPositive(t *testing.T) {
	src := dice.NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
}

func TestSeededSource_Reproducible(t *testing.T) {
	a := dice.NewSeededSource(42)
	b := dice.NewSeededSource(42)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Intn(100), b.Intn(100))
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestLoggedSource_LogsDraws(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	src := dice.NewLoggedSource(dice.NewSeededSource(1), zap.New(core))

	v := src.Intn(6)
	assert.GreaterOrEqual(t, v, 0)
	_ = src.Float64()

	entries := logs.FilterMessage("random draw").All()
	assert.Len(t, entries, 2)
	assert.Equal(t, int64(6), entries[0].ContextMap()["n"])
}

func TestChance_Bounds(t *testing.T) {
	src := dice.NewSeededSource(7)
	for i := 0; i < 100; i++ {
		assert.False(t, dice.Chance(src, 0))
		assert.True(t, dice.Chance(src, 1))
	}
}

func TestScripted_ReplaysThenFallsBack(t *testing.T) {
	s := dice.NewScripted().PushInts(3, 99, -4).PushFloats(0.25)
	s.FloatFallback = 0.5
	assert.Equal(t, 3, s.Intn(10))
	assert.Equal(t, 9, s.Intn(10), "clamped to n-1")
	assert.Equal(t, 0, s.Intn(10), "negative clamps to 0")
	assert.Equal(t, 0, s.Intn(10), "fallback")
	assert.Equal(t, 0.25, s.Float64())
	assert.Equal(t, 0.5, s.Float64())
	assert.Panics(t, func() { s.Intn(0) })
}
