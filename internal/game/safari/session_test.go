package safari_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/game/catalog/catalogtest"
	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
	"github.com/pokebot/pokebot/internal/game/safari"
	"github.com/pokebot/pokebot/internal/scripting"
	"github.com/pokebot/pokebot/internal/storage/memory"
)

type fixture struct {
	svc     *safari.Service
	src     *dice.Scripted
	store   *memory.Store
	factory *creature.Factory
	catcher *combat.Catcher
	clock   time.Time
}

func newFixture(t *testing.T, balls int) *fixture {
	t.Helper()
	cat := catalogtest.Load(t)
	mods := scripting.NewModifiers(scripting.DefaultInstructionLimit, zap.NewNop())
	for _, b := range cat.Balls() {
		require.NoError(t, mods.Compile(b.Name, b.Script))
	}
	t.Cleanup(mods.Close)

	f := &fixture{
		src:     dice.NewScripted(),
		store:   memory.New(),
		factory: creature.NewFactory(cat, dice.NewSeededSource(11)),
		clock:   at(2, 12, 0),
	}
	f.catcher = combat.NewCatcher(mods, f.src, zap.NewNop())
	f.svc = f.newService(balls)
	return f
}

func (f *fixture) newService(balls int) *safari.Service {
	svc := safari.NewService(safari.Config{Balls: balls, ResetHour: 5, Location: time.UTC}, f.factory, f.catcher, f.src, f.store, zap.NewNop())
	svc.SetClock(func() time.Time { return f.clock })
	return svc
}

func (f *fixture) team(t *testing.T, level int) []*creature.Creature {
	t.Helper()
	c, err := f.factory.CreateByName("charmander", level, creature.Options{})
	require.NoError(t, err)
	return []*creature.Creature{c}
}

func TestEnter_DrawsRegionLegendary(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	sess, err := f.svc.Enter(ctx, 1, "kanto", f.team(t, 50), nil)
	require.NoError(t, err)
	assert.Equal(t, safari.DefaultBalls, sess.BallsLeft)
	assert.Equal(t, 45, sess.TeamLevel)
	require.NotNil(t, sess.Encounter)
	assert.Equal(t, "articuno", sess.Encounter.Name)
	assert.Equal(t, 45, sess.Encounter.Level)

	_, err = f.svc.Enter(ctx, 1, "kanto", nil, nil)
	assert.ErrorIs(t, err, safari.ErrSessionActive)

	stored, err := f.store.LoadSafariSessions(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "articuno", stored[0].Encounter.Name)
}

func TestEnter_NoLegendariesKeepsEntry(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.svc.Enter(ctx, 1, "johto", nil, nil)
	assert.ErrorIs(t, err, combat.ErrNoEncounter)
	_, err = f.svc.Enter(ctx, 1, "kanto", nil, nil)
	assert.NoError(t, err)
}

func TestEnter_RespectsPersistedEntry(t *testing.T) {
	f := newFixture(t, 0)
	last := at(2, 6, 0)
	_, err := f.svc.Enter(context.Background(), 1, "kanto", nil, &last)
	assert.ErrorIs(t, err, safari.ErrAlreadyEntered)
}

func TestThrow_CatchDrawsNextEncounter(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.svc.Enter(ctx, 1, "kanto", nil, nil)
	require.NoError(t, err)

	f.src.PushFloats(0.0)
	res, err := f.svc.Throw(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, res.Caught)
	assert.Equal(t, safari.Ball, res.Caught.CapturedWith)
	require.NotNil(t, res.Caught.TrainerID)
	assert.Equal(t, int64(1), *res.Caught.TrainerID)
	assert.Equal(t, safari.DefaultBalls-1, res.BallsLeft)
	require.NotNil(t, res.Next)
	assert.NotEqual(t, res.Caught.UUID, res.Next.UUID)
	assert.False(t, res.Ended)

	sess, ok := f.svc.Get(1)
	require.True(t, ok)
	assert.Equal(t, []string{res.Caught.UUID}, sess.Caught)
	assert.Equal(t, 1, sess.Throws)
}

func TestThrow_BudgetEndsSession(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	_, err := f.svc.Enter(ctx, 1, "kanto", nil, nil)
	require.NoError(t, err)

	f.src.PushFloats(0.999, 0.999)
	res, err := f.svc.Throw(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, res.Caught)
	assert.Equal(t, 1, res.BallsLeft)
	res, err = f.svc.Throw(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.Ended)
	assert.Nil(t, res.Next)

	_, ok := f.svc.Get(1)
	assert.False(t, ok)
	_, err = f.svc.Throw(ctx, 1)
	assert.ErrorIs(t, err, safari.ErrNoSession)
	stored, err := f.store.LoadSafariSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	_, err = f.svc.Enter(ctx, 1, "kanto", nil, nil)
	assert.ErrorIs(t, err, safari.ErrAlreadyEntered, "leaving does not refund the day's entry")
}

func TestSkipAndLeave(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	first, err := f.svc.Enter(ctx, 1, "kanto", nil, nil)
	require.NoError(t, err)

	f.src.PushInts(3)
	next, err := f.svc.Skip(ctx, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.Encounter.UUID, next.UUID)
	assert.Equal(t, "mewtwo", next.Name)

	sess, err := f.svc.Leave(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, safari.DefaultBalls, sess.BallsLeft)
	_, err = f.svc.Leave(ctx, 1)
	assert.ErrorIs(t, err, safari.ErrNoSession)
	_, err = f.svc.Skip(ctx, 1)
	assert.ErrorIs(t, err, safari.ErrNoSession)
}

func TestRestore_ResumesSessionsAndGate(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.svc.Enter(ctx, 1, "kanto", nil, nil)
	require.NoError(t, err)

	restarted := f.newService(0)
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	sess, ok := restarted.Get(1)
	require.True(t, ok)
	assert.Equal(t, "articuno", sess.Encounter.Name)

	_, err = restarted.Leave(ctx, 1)
	require.NoError(t, err)
	_, err = restarted.Enter(ctx, 1, "kanto", nil, nil)
	assert.ErrorIs(t, err, safari.ErrAlreadyEntered)

	f.clock = at(3, 5, 1)
	_, err = restarted.Enter(ctx, 1, "kanto", nil, nil)
	assert.NoError(t, err)
}
