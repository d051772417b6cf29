package flow_test

import (
	"context"
	"testing"
	"time"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokebot/pokebot/internal/flow"
)

type addPoke struct {
	Species string
	Level   int
	Nature  string
}

var addPokeDef = flow.Definition{
	Initial: "waiting_for_nature",
	Events: fsm.Events{
		{Name: "choose_nature", Src: []string{"waiting_for_nature"}, Dst: "confirming"},
		{Name: "back", Src: []string{"confirming"}, Dst: "waiting_for_nature"},
		{Name: "confirm", Src: []string{"confirming"}, Dst: "done"},
	},
}

func TestRegistry_FlowLifecycle(t *testing.T) {
	ctx := context.Background()
	r := flow.NewRegistry[addPoke]("addpoke", addPokeDef)
	assert.Equal(t, "addpoke", r.Kind())

	_, err := r.Get(1)
	assert.ErrorIs(t, err, flow.ErrStateConflict)

	f := r.Start(1, addPoke{Species: "mew", Level: 30})
	assert.Equal(t, flow.Key{UserID: 1, Kind: "addpoke"}, f.Key)
	assert.True(t, f.Is("waiting_for_nature"))

	err = f.Fire(ctx, "confirm")
	assert.ErrorIs(t, err, flow.ErrStateConflict)
	assert.Equal(t, "waiting_for_nature", f.State())
	assert.ErrorIs(t, f.Fire(ctx, "explode"), flow.ErrStateConflict)

	f.Data.Nature = "Modest"
	require.NoError(t, f.Fire(ctx, "choose_nature"))
	assert.True(t, f.Can("confirm"))

	got, err := r.Get(1)
	require.NoError(t, err)
	assert.Same(t, f, got)
	assert.Equal(t, "Modest", got.Data.Nature)

	require.NoError(t, f.Fire(ctx, "confirm"))
	require.NoError(t, f.MarkDone())
	assert.ErrorIs(t, f.MarkDone(), flow.ErrStateConflict)
	assert.True(t, f.Done())

	r.End(1)
	assert.Zero(t, r.Len())
}

func TestRegistry_StartReplaces(t *testing.T) {
	r := flow.NewRegistry[addPoke]("addpoke", addPokeDef)
	first := r.Start(1, addPoke{Species: "mew"})
	require.NoError(t, first.Fire(context.Background(), "choose_nature"))
	second := r.Start(1, addPoke{Species: "mewtwo"})
	got, err := r.Get(1)
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, "waiting_for_nature", got.State())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Sweep(t *testing.T) {
	r := flow.NewRegistry[addPoke]("addpoke", addPokeDef)
	r.Start(1, addPoke{})
	assert.Zero(t, r.Sweep(time.Hour))
	assert.Equal(t, 1, r.Sweep(-time.Second))
}
