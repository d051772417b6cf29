// Package catalogtest loads the shipped content for use in tests.
package catalogtest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pokebot/pokebot/data"
	"github.com/pokebot/pokebot/internal/game/catalog"
)

var (
	once   sync.Once
	shared *catalog.Catalog
	err    error
)

// Load returns the catalog built from the embedded content. The result is
// shared across tests because a Catalog is immutable.
func Load(t testing.TB) *catalog.Catalog {
	t.Helper()
	once.Do(func() {
		shared, err = catalog.Load(data.FS)
	})
	require.NoError(t, err)
	return shared
}
