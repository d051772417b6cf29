package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokebot/pokebot/internal/game/safari"
	"github.com/pokebot/pokebot/internal/game/trainer"
	"github.com/pokebot/pokebot/internal/storage/memory"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestStore_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_, err := s.Load(ctx, 1)
	assert.ErrorIs(t, err, trainer.ErrNotFound)

	first := trainer.New(1, "ash", "", epoch)
	first.Currency = 10
	got, created, err := s.Create(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 10, got.Currency)

	again, created, err := s.Create(ctx, trainer.New(1, "other", "", epoch))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "ash", again.Username)
}

func TestStore_LoadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_, _, err := s.Create(ctx, trainer.New(1, "ash", "", epoch))
	require.NoError(t, err)

	a, err := s.Load(ctx, 1)
	require.NoError(t, err)
	a.Currency = 999
	b, err := s.Load(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, b.Currency)
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_, _, err := s.Create(ctx, trainer.New(1, "ash", "", epoch))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.Update(ctx, 1, func(t *trainer.Trainer) error {
		t.Currency = 50
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Update(ctx, 1, func(t *trainer.Trainer) error {
		t.Team = []string{"ghost"}
		return nil
	})
	assert.ErrorContains(t, err, "not in collection")

	got, err := s.Load(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, got.Currency)
	assert.Empty(t, got.Team)

	_, err = s.Update(ctx, 2, func(*trainer.Trainer) error { return nil })
	assert.ErrorIs(t, err, trainer.ErrNotFound)
}

func TestStore_UpdatePairIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	for _, id := range []int64{1, 2} {
		tr := trainer.New(id, "", "", epoch)
		tr.Currency = 100
		_, _, err := s.Create(ctx, tr)
		require.NoError(t, err)
	}

	err := s.UpdatePair(ctx, 1, 2, func(a, b *trainer.Trainer) error {
		return trainer.Transfer(a, b, 500)
	})
	assert.ErrorIs(t, err, trainer.ErrInsufficientFunds)

	require.NoError(t, s.UpdatePair(ctx, 1, 2, func(a, b *trainer.Trainer) error {
		return trainer.Transfer(a, b, 40)
	}))
	a, _ := s.Load(ctx, 1)
	b, _ := s.Load(ctx, 2)
	assert.Equal(t, 60, a.Currency)
	assert.Equal(t, 140, b.Currency)

	assert.Error(t, s.UpdatePair(ctx, 1, 1, func(a, b *trainer.Trainer) error { return nil }))
	assert.ErrorIs(t, s.UpdatePair(ctx, 1, 3, func(a, b *trainer.Trainer) error { return nil }), trainer.ErrNotFound)
	assert.Equal(t, []int64{1, 2}, s.IDs())
}

func TestStore_IsKilled(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	killed, err := s.IsKilled(ctx, 5)
	require.NoError(t, err)
	assert.False(t, killed)

	tr := trainer.New(5, "", "", epoch)
	tr.Killed = true
	_, _, err = s.Create(ctx, tr)
	require.NoError(t, err)
	killed, err = s.IsKilled(ctx, 5)
	require.NoError(t, err)
	assert.True(t, killed)
}

func TestStore_SafariSessions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.SaveSafariSession(ctx, &safari.Session{UserID: 2, Region: "kanto", BallsLeft: 50, StartedAt: epoch}))
	require.NoError(t, s.SaveSafariSession(ctx, &safari.Session{UserID: 1, Region: "unova", BallsLeft: 3, StartedAt: epoch}))
	require.NoError(t, s.SaveSafariSession(ctx, &safari.Session{UserID: 1, Region: "unova", BallsLeft: 2, StartedAt: epoch}))

	list, err := s.LoadSafariSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].UserID)
	assert.Equal(t, 2, list[0].BallsLeft)
	assert.True(t, list[1].StartedAt.Equal(epoch))

	require.NoError(t, s.DeleteSafariSession(ctx, 1))
	require.NoError(t, s.DeleteSafariSession(ctx, 99))
	list, err = s.LoadSafariSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
