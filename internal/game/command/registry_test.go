package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r)
	assert.Len(t, r.Commands(), len(BuiltinCommands()))
}

func TestResolve_CanonicalName(t *testing.T) {
	r := DefaultRegistry()

	cmd, ok := r.Resolve("hunt")
	assert.True(t, ok)
	assert.Equal(t, "hunt", cmd.Name)
	assert.Equal(t, HandlerHunt, cmd.Handler)
}

func TestResolve_Alias(t *testing.T) {
	r := DefaultRegistry()

	cmd, ok := r.Resolve("inv")
	assert.True(t, ok)
	assert.Equal(t, "myinventory", cmd.Name)
}

func TestResolve_NotFound(t *testing.T) {
	r := DefaultRegistry()

	_, ok := r.Resolve("teleport")
	assert.False(t, ok)
}

func TestResolve_CanonicalSurface(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{
		"start", "myinventory", "mypokemons", "myteam", "sort", "display",
		"hunt", "fish", "rods", "safari", "explore", "close",
		"show", "release", "candy", "evolve", "tm", "berry", "vitamin",
		"duel", "gym", "travel", "trade", "give", "xpin",
		"addpoke", "addpd", "additems", "kill",
	} {
		cmd, ok := r.Resolve(name)
		require.True(t, ok, "command %q not found", name)
		assert.Equal(t, name, cmd.Handler, "command %q wrong handler", name)
	}
}

func TestAdminAndReplyFlags(t *testing.T) {
	r := DefaultRegistry()
	for _, cmd := range r.CommandsByCategory()[CategoryAdmin] {
		assert.True(t, cmd.Admin, cmd.Name)
		assert.True(t, cmd.Reply, cmd.Name)
	}
	for _, name := range []string{"duel", "trade", "give", "xpin"} {
		cmd, _ := r.Resolve(name)
		assert.True(t, cmd.Reply, name)
		assert.False(t, cmd.Admin, name)
	}
	hunt, _ := r.Resolve("hunt")
	assert.False(t, hunt.Reply)
}

func TestNewRegistry_DuplicateName(t *testing.T) {
	cmds := []Command{
		{Name: "test", Handler: "a"},
		{Name: "test", Handler: "b"},
	}
	_, err := NewRegistry(cmds)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate command name")
}

func TestNewRegistry_DuplicateAlias(t *testing.T) {
	cmds := []Command{
		{Name: "test1", Aliases: []string{"t"}, Handler: "a"},
		{Name: "test2", Aliases: []string{"t"}, Handler: "b"},
	}
	_, err := NewRegistry(cmds)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate alias")
}

func TestNewRegistry_MissingHandler(t *testing.T) {
	_, err := NewRegistry([]Command{{Name: "x"}})
	assert.Error(t, err)
}

func TestCommandsByCategory(t *testing.T) {
	r := DefaultRegistry()
	cats := r.CommandsByCategory()

	for _, c := range []string{CategoryTrainer, CategoryWild, CategoryManagement, CategoryBattle, CategorySocial, CategoryAdmin} {
		assert.Contains(t, cats, c)
	}
	assert.Len(t, cats[CategoryAdmin], 4)
}

func TestNames_IncludesAliases(t *testing.T) {
	names := DefaultRegistry().Names()
	assert.Contains(t, names, "hunt")
	assert.Contains(t, names, "pc")
	assert.IsIncreasing(t, names)
}

func TestResolve_IgnoresCase(t *testing.T) {
	r := DefaultRegistry()
	cmd, ok := r.Resolve("HUNT")
	require.True(t, ok)
	assert.Equal(t, "hunt", cmd.Name)
}

func TestMenu_HidesAdminCommandsAndKeepsOrder(t *testing.T) {
	menu := DefaultRegistry().Menu()
	require.NotEmpty(t, menu)
	assert.Equal(t, "start", menu[0].Name)
	for _, cmd := range menu {
		assert.False(t, cmd.Admin, "%s is admin-only", cmd.Name)
		assert.NotEmpty(t, cmd.Help, "%s has no help text", cmd.Name)
	}
}

func TestPropertyAllAliasesResolveToCanonical(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := DefaultRegistry()
		cmds := r.Commands()
		idx := rapid.IntRange(0, len(cmds)-1).Draw(t, "cmd_idx")
		cmd := cmds[idx]

		resolved, ok := r.Resolve(cmd.Name)
		if !ok {
			t.Fatalf("canonical name %q did not resolve", cmd.Name)
		}
		if resolved.Name != cmd.Name {
			t.Fatalf("canonical name %q resolved to %q", cmd.Name, resolved.Name)
		}

		for _, alias := range cmd.Aliases {
			aliasResolved, ok := r.Resolve(alias)
			if !ok {
				t.Fatalf("alias %q did not resolve", alias)
			}
			if aliasResolved.Name != cmd.Name {
				t.Fatalf("alias %q resolved to %q, expected %q", alias, aliasResolved.Name, cmd.Name)
			}
		}
	})
}
