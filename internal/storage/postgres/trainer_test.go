package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pokebot/pokebot/internal/game/catalog/catalogtest"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
	"github.com/pokebot/pokebot/internal/game/safari"
	"github.com/pokebot/pokebot/internal/game/trainer"
	"github.com/pokebot/pokebot/internal/storage/postgres"
	"github.com/pokebot/pokebot/internal/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// nextID hands out user ids so subtests sharing one database never collide.
var nextID atomic.Int64

func newTrainer(t *testing.T, repo *postgres.TrainerRepository, currency int) int64 {
	t.Helper()
	id := nextID.Add(1)
	tr := trainer.New(id, "", "Red", epoch)
	tr.Currency = currency
	_, created, err := repo.Create(context.Background(), tr)
	require.NoError(t, err)
	require.True(t, created)
	return id
}

func TestTrainerRepository(t *testing.T) {
	repo := postgres.NewTrainerRepository(testutil.NewPool(t))
	ctx := context.Background()

	t.Run("create is idempotent", func(t *testing.T) {
		id := nextID.Add(1)
		_, err := repo.Load(ctx, id)
		assert.ErrorIs(t, err, trainer.ErrNotFound)
		assert.ErrorIs(t, err, postgres.ErrTrainerNotFound)

		first := trainer.New(id, "ash", "Ash", epoch)
		first.GrantStarterKit()
		got, created, err := repo.Create(ctx, first)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, trainer.StarterCurrency, got.Currency)

		again, created, err := repo.Create(ctx, trainer.New(id, "other", "", epoch))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "ash", again.Username)
		assert.Equal(t, 10, again.Inventory.Count(trainer.BucketBalls, "pokeball"))
	})

	t.Run("document round trips creatures", func(t *testing.T) {
		id := newTrainer(t, repo, 0)
		factory := creature.NewFactory(catalogtest.Load(t), dice.NewSeededSource(3))
		shiny := true
		c, err := factory.CreateByName("Pikachu", 12, creature.Options{Shiny: &shiny})
		require.NoError(t, err)

		_, err = repo.Update(ctx, id, func(tr *trainer.Trainer) error {
			tr.AddCreature(c)
			return nil
		})
		require.NoError(t, err)

		got, err := repo.Load(ctx, id)
		require.NoError(t, err)
		require.Len(t, got.Collection, 1)
		assert.Equal(t, c.UUID, got.Collection[0].UUID)
		assert.Equal(t, c.Level, got.Collection[0].Level)
		assert.True(t, got.Collection[0].Shiny)
		assert.Equal(t, []string{c.UUID}, got.Team)
	})

	t.Run("update rolls back on error", func(t *testing.T) {
		id := newTrainer(t, repo, 0)
		boom := errors.New("boom")
		_, err := repo.Update(ctx, id, func(tr *trainer.Trainer) error {
			tr.Currency = 50
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = repo.Update(ctx, id, func(tr *trainer.Trainer) error {
			tr.Team = []string{"ghost"}
			return nil
		})
		assert.ErrorContains(t, err, "not in collection")

		got, err := repo.Load(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, got.Currency)
		assert.Empty(t, got.Team)

		_, err = repo.Update(ctx, nextID.Add(1), func(*trainer.Trainer) error { return nil })
		assert.ErrorIs(t, err, trainer.ErrNotFound)
	})

	t.Run("concurrent updates serialize", func(t *testing.T) {
		id := newTrainer(t, repo, 0)
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Update(ctx, id, func(tr *trainer.Trainer) error {
					return tr.AddCurrency(5)
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		got, err := repo.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Currency)
	})

	t.Run("update pair is all or nothing", func(t *testing.T) {
		a := newTrainer(t, repo, 100)
		b := newTrainer(t, repo, 100)

		err := repo.UpdatePair(ctx, b, a, func(from, to *trainer.Trainer) error {
			return trainer.Transfer(from, to, 500)
		})
		assert.ErrorIs(t, err, trainer.ErrInsufficientFunds)

		require.NoError(t, repo.UpdatePair(ctx, b, a, func(from, to *trainer.Trainer) error {
			return trainer.Transfer(from, to, 40)
		}))
		ta, _ := repo.Load(ctx, a)
		tb, _ := repo.Load(ctx, b)
		assert.Equal(t, 140, ta.Currency)
		assert.Equal(t, 60, tb.Currency)

		assert.Error(t, repo.UpdatePair(ctx, a, a, func(x, y *trainer.Trainer) error { return nil }))
		assert.ErrorIs(t, repo.UpdatePair(ctx, a, nextID.Add(1), func(x, y *trainer.Trainer) error { return nil }), trainer.ErrNotFound)
	})

	t.Run("opposing pair updates do not deadlock", func(t *testing.T) {
		a := newTrainer(t, repo, 1000)
		b := newTrainer(t, repo, 1000)
		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				from, to := a, b
				if i%2 == 1 {
					from, to = b, a
				}
				assert.NoError(t, repo.UpdatePair(ctx, from, to, func(x, y *trainer.Trainer) error {
					return trainer.Transfer(x, y, 10)
				}))
			}()
		}
		wg.Wait()
		ta, _ := repo.Load(ctx, a)
		tb, _ := repo.Load(ctx, b)
		assert.Equal(t, 2000, ta.Currency+tb.Currency)
	})

	t.Run("transfers conserve currency", func(t *testing.T) {
		a := newTrainer(t, repo, 500)
		b := newTrainer(t, repo, 500)
		rapid.Check(t, func(rt *rapid.T) {
			amount := rapid.IntRange(1, 800).Draw(rt, "amount")
			forward := rapid.Bool().Draw(rt, "forward")
			from, to := a, b
			if !forward {
				from, to = b, a
			}
			err := repo.UpdatePair(ctx, from, to, func(x, y *trainer.Trainer) error {
				return trainer.Transfer(x, y, amount)
			})
			if err != nil && !errors.Is(err, trainer.ErrInsufficientFunds) {
				rt.Fatalf("transfer %d: %v", amount, err)
			}
			ta, _ := repo.Load(ctx, a)
			tb, _ := repo.Load(ctx, b)
			if ta.Currency+tb.Currency != 1000 || ta.Currency < 0 || tb.Currency < 0 {
				rt.Fatalf("balances %d + %d", ta.Currency, tb.Currency)
			}
		})
	})

	t.Run("kill flag is mirrored", func(t *testing.T) {
		killed, err := repo.IsKilled(ctx, nextID.Add(1))
		require.NoError(t, err)
		assert.False(t, killed)

		id := newTrainer(t, repo, 0)
		_, err = repo.Update(ctx, id, func(tr *trainer.Trainer) error {
			tr.Killed = true
			return nil
		})
		require.NoError(t, err)
		killed, err = repo.IsKilled(ctx, id)
		require.NoError(t, err)
		assert.True(t, killed)
	})

	t.Run("safari sessions", func(t *testing.T) {
		u1, u2 := nextID.Add(1), nextID.Add(1)
		require.NoError(t, repo.SaveSafariSession(ctx, &safari.Session{UserID: u2, Region: "kanto", BallsLeft: 50, StartedAt: epoch}))
		require.NoError(t, repo.SaveSafariSession(ctx, &safari.Session{UserID: u1, Region: "unova", BallsLeft: 3, StartedAt: epoch}))
		require.NoError(t, repo.SaveSafariSession(ctx, &safari.Session{UserID: u1, Region: "unova", BallsLeft: 2, StartedAt: epoch}))

		list, err := repo.LoadSafariSessions(ctx)
		require.NoError(t, err)
		byUser := make(map[int64]*safari.Session)
		for _, s := range list {
			byUser[s.UserID] = s
		}
		require.Contains(t, byUser, u1)
		assert.Equal(t, 2, byUser[u1].BallsLeft)
		assert.True(t, byUser[u2].StartedAt.Equal(epoch))

		require.NoError(t, repo.DeleteSafariSession(ctx, u1))
		require.NoError(t, repo.DeleteSafariSession(ctx, nextID.Add(1)))
		list, err = repo.LoadSafariSessions(ctx)
		require.NoError(t, err)
		for _, s := range list {
			assert.NotEqual(t, u1, s.UserID)
		}
	})
}

func TestMigrate_DownAndUp(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)

	res, err := postgres.Migrate(pc.DSN(), "up", 0)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, uint(2), res.Version)

	res, err = postgres.Migrate(pc.DSN(), "down", 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.Version)

	_, err = postgres.Migrate(pc.DSN(), "sideways", 0)
	assert.Error(t, err)

	require.NoError(t, pc.Pool.Health(context.Background(), time.Second))
}
