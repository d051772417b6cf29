package bot_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokebot/pokebot/internal/bot"
)

const sprite = "https://img.example/pikachu.png"

func TestImageCache_ReusesUploadedID(t *testing.T) {
	cache, err := bot.NewImageCache(4)
	require.NoError(t, err)

	var uploads, reuses int
	send := func(ref string, cached bool) (string, error) {
		if cached {
			reuses++
			assert.Equal(t, "file-1", ref)
			return ref, nil
		}
		uploads++
		assert.Equal(t, sprite, ref)
		return "file-1", nil
	}
	require.NoError(t, cache.Send(context.Background(), sprite, send))
	require.NoError(t, cache.Send(context.Background(), sprite, send))

	assert.Equal(t, 1, uploads)
	assert.Equal(t, 1, reuses)
	id, ok := cache.Lookup(sprite)
	assert.True(t, ok)
	assert.Equal(t, "file-1", id)
}

func TestImageCache_FailedUploadIsNotCached(t *testing.T) {
	cache, err := bot.NewImageCache(4)
	require.NoError(t, err)
	boom := errors.New("boom")

	err = cache.Send(context.Background(), sprite, func(string, bool) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	_, ok := cache.Lookup(sprite)
	assert.False(t, ok)
	assert.Zero(t, cache.Len())
}

func TestImageCache_EvictsOldest(t *testing.T) {
	cache, err := bot.NewImageCache(2)
	require.NoError(t, err)
	for _, url := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Send(context.Background(), url, func(ref string, _ bool) (string, error) {
			return "id-" + ref, nil
		}))
	}
	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Lookup("a")
	assert.False(t, ok)
}
