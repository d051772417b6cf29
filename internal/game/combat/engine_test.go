package combat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/catalog/catalogtest"
	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
	"github.com/pokebot/pokebot/internal/game/stats"
)

const (
	ash   int64 = 100
	gary  int64 = 200
	brock int64 = 300
)

type fixture struct {
	cat     *catalog.Catalog
	factory *creature.Factory
	src     *dice.Scripted
	engine  *combat.Engine
	ended   chan *combat.Report
}

func newFixture(t *testing.T, cfg combat.Config) *fixture {
	t.Helper()
	cat := catalogtest.Load(t)
	factory := creature.NewFactory(cat, dice.NewSeededSource(42))
	src := dice.NewScripted()
	catcher := combat.NewCatcher(newModifiers(t, cat), src, zap.NewNop())
	eng := combat.NewEngine(factory, catcher, src, cfg, zap.NewNop())
	f := &fixture{cat: cat, factory: factory, src: src, engine: eng, ended: make(chan *combat.Report, 4)}
	eng.SetEndHandler(func(r *combat.Report) { f.ended <- r })
	t.Cleanup(eng.Shutdown)
	return f
}

func (f *fixture) mon(t *testing.T, species string, level int) *creature.Creature {
	t.Helper()
	ivs := stats.Uniform(15)
	shiny := false
	c, err := f.factory.CreateByName(species, level, creature.Options{Nature: "Hardy", IVs: &ivs, Shiny: &shiny})
	require.NoError(t, err)
	return c
}

func (f *fixture) wild(t *testing.T, species string, level int, team ...*creature.Creature) *combat.Report {
	t.Helper()
	rep, err := f.engine.StartWild(ash, "Ash", team, f.mon(t, species, level), combat.ContextHunt)
	require.NoError(t, err)
	return rep
}

func kinds(events []combat.Event) []combat.EventKind {
	out := make([]combat.EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func allFull(t *testing.T, team []*creature.Creature) {
	t.Helper()
	for _, c := range team {
		assert.Equal(t, c.MaxHP, c.CurrentHP, c.Name)
	}
}

func TestStartWild_RequiresUsableTeam(t *testing.T) {
	f := newFixture(t, combat.Config{})
	karp := f.mon(t, "magikarp", 5)
	require.Empty(t, karp.ActiveMoves)
	_, err := f.engine.StartWild(ash, "Ash", []*creature.Creature{karp}, f.mon(t, "pidgey", 3), combat.ContextHunt)
	assert.ErrorIs(t, err, combat.ErrNoUsableTeam)
	assert.Zero(t, f.engine.Count())
}

func TestStartWild_SkipsFaintedAndMovelessMembers(t *testing.T) {
	f := newFixture(t, combat.Config{})
	fainted := f.mon(t, "rattata", 10)
	fainted.TakeDamage(fainted.MaxHP)
	karp := f.mon(t, "magikarp", 5)
	char := f.mon(t, "charmander", 20)
	rep := f.wild(t, "pidgey", 3, fainted, karp, char)
	assert.Equal(t, 2, rep.Battle.Sides[0].ActiveIndex)
	assert.Equal(t, combat.PhaseAction, rep.Battle.Phase)

	_, err := f.engine.StartWild(ash, "Ash", []*creature.Creature{char}, f.mon(t, "pidgey", 3), combat.ContextHunt)
	assert.ErrorIs(t, err, combat.ErrAlreadyInBattle)
}

func TestWild_VictoryGrantsXPAndEVsAndHeals(t *testing.T) {
	f := newFixture(t, combat.Config{})
	char := f.mon(t, "charmander", 50)
	char.TakeDamage(10)
	team := []*creature.Creature{char}
	rep := f.wild(t, "bulbasaur", 5, team...)

	out, err := f.engine.Submit(context.Background(), rep.Battle.ID, ash, combat.Action{Kind: combat.ActAttack, Move: "flamethrower"})
	require.NoError(t, err)
	require.True(t, out.Ended())
	assert.Equal(t, combat.EndVictory, out.Result.Reason)
	assert.Equal(t, 0, out.Result.Winner)
	assert.Equal(t, []combat.EventKind{combat.EvMove, combat.EvFaint, combat.EvXP}, kinds(out.Events))

	require.Len(t, out.Result.Grants, 1)
	assert.Equal(t, combat.VictoryXP(combat.BaseXP(5, 50)), out.Result.Grants[0].Amount)
	assert.Equal(t, 1, char.EVs.SpAttack, "defeat yield goes to the finisher")
	allFull(t, out.Result.Teams[0])

	_, ok := f.engine.ForUser(ash)
	assert.False(t, ok)
	_, err = f.engine.Submit(context.Background(), rep.Battle.ID, ash, combat.Action{Kind: combat.ActAttack, Move: "ember"})
	assert.ErrorIs(t, err, combat.ErrBattleNotFound)
}

func TestWild_DefeatGrantsReducedXP(t *testing.T) {
	f := newFixture(t, combat.Config{})
	rat := f.mon(t, "rattata", 2)
	rep := f.wild(t, "onix", 60, rat)

	out, err := f.engine.Submit(context.Background(), rep.Battle.ID, ash, combat.Action{Kind: combat.ActAttack, Move: "tackle"})
	require.NoError(t, err)
	require.True(t, out.Ended())
	assert.Equal(t, combat.EndDefeat, out.Result.Reason)
	assert.Equal(t, 1, out.Result.Winner)
	require.Len(t, out.Result.Grants, 1)
	assert.Equal(t, 45, out.Result.Grants[0].Amount)
	allFull(t, out.Result.Teams[0])
}

func TestWild_ForcedSwitchDoesNotConsumeTurn(t *testing.T) {
	f := newFixture(t, combat.Config{})
	rat := f.mon(t, "rattata", 2)
	char := f.mon(t, "charmander", 50)
	rep := f.wild(t, "onix", 60, rat, char)
	ctx := context.Background()
	id := rep.Battle.ID

	out, err := f.engine.Submit(ctx, id, ash, combat.Action{Kind: combat.ActAttack, Move: "tackle"})
	require.NoError(t, err)
	assert.False(t, out.Ended())
	assert.Equal(t, combat.PhaseSwitch, out.Battle.Phase)
	assert.Equal(t, []int{1}, out.Battle.Sides[0].SwitchTarget)

	_, err = f.engine.Submit(ctx, id, ash, combat.Action{Kind: combat.ActAttack, Move: "tackle"})
	assert.ErrorIs(t, err, combat.ErrInvalidAction)
	_, err = f.engine.Submit(ctx, id, ash, combat.Action{Kind: combat.ActSwitch, Target: 0})
	assert.ErrorIs(t, err, combat.ErrInvalidSwitch)

	out, err = f.engine.Submit(ctx, id, ash, combat.Action{Kind: combat.ActSwitch, Target: 1})
	require.NoError(t, err)
	assert.Equal(t, []combat.EventKind{combat.EvSwitch}, kinds(out.Events))
	assert.Equal(t, combat.PhaseAction, out.Battle.Phase)
	assert.Equal(t, char.MaxHP, out.Battle.Sides[0].Active.CurrentHP)
}

func TestWild_VoluntarySwitchGivesWildAFreeHit(t *testing.T) {
	f := newFixture(t, combat.Config{})
	char := f.mon(t, "charmander", 50)
	squirt := f.mon(t, "squirtle", 50)
	rep := f.wild(t, "pidgey", 5, char, squirt)

	out, err := f.engine.Submit(context.Background(), rep.Battle.ID, ash, combat.Action{Kind: combat.ActSwitch, Target: 1})
	require.NoError(t, err)
	assert.Equal(t, []combat.EventKind{combat.EvSwitch, combat.EvMove}, kinds(out.Events))
	assert.Equal(t, 2, out.Battle.Turn)
	assert.Less(t, squirt.CurrentHP, squirt.MaxHP)
}

func TestWild_CatchSuccess(t *testing.T) {
	f := newFixture(t, combat.Config{})
	char := f.mon(t, "charmander", 20)
	rep := f.wild(t, "pidgey", 5, char)
	used := 0
	f.src.PushFloats(0.0)

	out, err := f.engine.Submit(context.Background(), rep.Battle.ID, ash, combat.Action{
		Kind:    combat.ActCatch,
		Item:    "greatball",
		Consume: func(context.Context) error { used++; return nil },
	})
	require.NoError(t, err)
	require.True(t, out.Ended())
	assert.Equal(t, 1, used)
	assert.Equal(t, combat.EndCaught, out.Result.Reason)
	caught := out.Result.Caught
	require.NotNil(t, caught)
	require.NotNil(t, caught.TrainerID)
	assert.Equal(t, ash, *caught.TrainerID)
	assert.Equal(t, "greatball", caught.CapturedWith)
	assert.NotNil(t, caught.CaughtAt)
	assert.Equal(t, "pidgey", caught.Name)
	assert.NotEmpty(t, out.Result.Grants, "catching counts as a win for XP")
}

func TestWild_CatchFailurePassesTurn(t *testing.T) {
	f := newFixture(t, combat.Config{})
	char := f.mon(t, "charmander", 20)
	rep := f.wild(t, "pidgey", 5, char)
	f.src.PushFloats(0.999)

	out, err := f.engine.Submit(context.Background(), rep.Battle.ID, ash, combat.Action{Kind: combat.ActCatch, Item: "pokeball"})
	require.NoError(t, err)
	assert.False(t, out.Ended())
	assert.Equal(t, []combat.EventKind{combat.EvCatchFail, combat.EvMove}, kinds(out.Events))
	assert.Equal(t, 2, out.Battle.Turn)
}

func TestWild_ConsumeErrorLeavesBattleUnchanged(t *testing.T) {
	f := newFixture(t, combat.Config{})
	char := f.mon(t, "charmander", 20)
	rep := f.wild(t, "pidgey", 5, char)
	noBalls := errors.New("no balls left")

	_, err := f.engine.Submit(context.Background(), rep.Battle.ID, ash, combat.Action{
		Kind:    combat.ActCatch,
		Item:    "pokeball",
		Consume: func(context.Context) error { return noBalls },
	})
	assert.ErrorIs(t, err, noBalls)
	b, ok := f.engine.Get(rep.Battle.ID)
	require.True(t, ok)
	snap := b.Snapshot()
	assert.Equal(t, 1, snap.Turn)
	assert.Equal(t, char.MaxHP, char.CurrentHP)
}

func TestWild_Flee(t *testing.T) {
	f := newFixture(t, combat.Config{})
	char := f.mon(t, "charmander", 20)
	rep := f.wild(t, "pidgey", 5, char)
	ctx := context.Background()

	f.src.PushFloats(0.95)
	out, err := f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActFlee})
	require.NoError(t, err)
	assert.Equal(t, []combat.EventKind{combat.EvFleeFail, combat.EvMove}, kinds(out.Events))

	f.src.PushFloats(0.0)
	out, err = f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActFlee})
	require.NoError(t, err)
	require.True(t, out.Ended())
	assert.Equal(t, combat.EndFled, out.Result.Reason)
	assert.Empty(t, out.Result.Grants)
	allFull(t, out.Result.Teams[0])
}

func TestWild_Potion(t *testing.T) {
	f := newFixture(t, combat.Config{})
	char := f.mon(t, "charmander", 20)
	rep := f.wild(t, "pidgey", 5, char)
	ctx := context.Background()

	_, err := f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActItem, Item: "potion"})
	assert.ErrorIs(t, err, combat.ErrNothingToHeal)
	char.TakeDamage(30)
	_, err = f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActItem, Item: "elixir"})
	assert.ErrorIs(t, err, combat.ErrUnknownItem)

	out, err := f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActItem, Item: "Super Potion"})
	require.NoError(t, err)
	require.Equal(t, combat.EvItem, out.Events[0].Kind)
	assert.Equal(t, 30, out.Events[0].Amount)
}

func TestWild_InvalidActions(t *testing.T) {
	f := newFixture(t, combat.Config{})
	char := f.mon(t, "charmander", 20)
	rep := f.wild(t, "pidgey", 5, char)
	ctx := context.Background()

	_, err := f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActAttack, Move: "growl"})
	assert.ErrorIs(t, err, combat.ErrMoveNotActive)
	_, err = f.engine.Submit(ctx, rep.Battle.ID, gary, combat.Action{Kind: combat.ActAttack, Move: "ember"})
	assert.ErrorIs(t, err, combat.ErrNotParticipant)

	out, err := f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActForfeit})
	require.NoError(t, err)
	assert.Equal(t, combat.EndForfeit, out.Result.Reason)
	assert.Equal(t, 1, out.Result.Winner)
}

func TestGym_AutoSwitchAndReward(t *testing.T) {
	f := newFixture(t, combat.Config{})
	char := f.mon(t, "charmander", 50)
	ctx := context.Background()
	rep, err := f.engine.StartGym(ash, "Ash", []*creature.Creature{char}, "Brock")
	require.NoError(t, err)
	assert.Equal(t, combat.ModeGym, rep.Battle.Mode)

	_, err = f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActCatch, Item: "pokeball"})
	assert.ErrorIs(t, err, combat.ErrInvalidAction)
	_, err = f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActFlee})
	assert.ErrorIs(t, err, combat.ErrInvalidAction)

	out, err := f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActAttack, Move: "flamethrower"})
	require.NoError(t, err)
	require.False(t, out.Ended())
	assert.Equal(t, []combat.EventKind{combat.EvMove, combat.EvFaint, combat.EvXP, combat.EvSwitch}, kinds(out.Events))
	assert.Equal(t, "Onix", out.Battle.Sides[1].Active.DisplayName())

	out, err = f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActAttack, Move: "flamethrower"})
	require.NoError(t, err)
	require.True(t, out.Ended())
	assert.Equal(t, combat.EndVictory, out.Result.Reason)
	assert.Equal(t, 1000, out.Result.Reward)
	assert.Len(t, out.Result.Grants, 2)

	_, err = f.engine.StartGym(ash, "Ash", []*creature.Creature{char}, "giovanni")
	assert.Error(t, err)
}

func TestGym_LossStillReportsEarlierGrants(t *testing.T) {
	f := newFixture(t, combat.Config{})
	char := f.mon(t, "charmander", 50)
	ctx := context.Background()
	rep, err := f.engine.StartGym(ash, "Ash", []*creature.Creature{char}, "Brock")
	require.NoError(t, err)

	out, err := f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActAttack, Move: "flamethrower"})
	require.NoError(t, err)
	require.False(t, out.Ended())

	// A weak move leaves Onix standing and its reply knocks out Charmander.
	require.NoError(t, f.factory.SetActiveMoves(char, []string{"scratch"}))
	char.CurrentHP = 1
	out, err = f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActAttack, Move: "scratch"})
	require.NoError(t, err)
	require.True(t, out.Ended())
	assert.Equal(t, combat.EndDefeat, out.Result.Reason)
	assert.Zero(t, out.Result.Reward)

	require.Len(t, out.Result.Grants, 2)
	assert.Equal(t, combat.VictoryXP(combat.BaseXP(12, 50)), out.Result.Grants[0].Amount, "geodude victory")
	for _, g := range out.Result.Grants {
		assert.Equal(t, char.UUID, g.UUID)
	}
}

func TestGym_ForfeitKeepsEarlierGrants(t *testing.T) {
	f := newFixture(t, combat.Config{})
	char := f.mon(t, "charmander", 50)
	ctx := context.Background()
	rep, err := f.engine.StartGym(ash, "Ash", []*creature.Creature{char}, "Brock")
	require.NoError(t, err)

	_, err = f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActAttack, Move: "flamethrower"})
	require.NoError(t, err)
	out, err := f.engine.Submit(ctx, rep.Battle.ID, ash, combat.Action{Kind: combat.ActForfeit})
	require.NoError(t, err)
	assert.Equal(t, combat.EndForfeit, out.Result.Reason)
	require.Len(t, out.Result.Grants, 1)
	assert.Equal(t, char.UUID, out.Result.Grants[0].UUID)
}

func TestEngine_IdleTimeoutForfeitsWildBattle(t *testing.T) {
	f := newFixture(t, combat.Config{IdleTimeout: 20 * time.Millisecond, AcceptTimeout: time.Hour})
	char := f.mon(t, "charmander", 20)
	char.TakeDamage(5)
	f.wild(t, "pidgey", 5, char)

	select {
	case rep := <-f.ended:
		assert.Equal(t, combat.EndTimeout, rep.Result.Reason)
		assert.Equal(t, []int{0}, rep.Result.IdleSides)
		assert.Equal(t, 1, rep.Result.Winner)
		allFull(t, rep.Result.Teams[0])
	case <-time.After(2 * time.Second):
		t.Fatal("idle timeout never fired")
	}
	assert.Zero(t, f.engine.Count())
}

func TestEngine_ActionResetsIdleTimer(t *testing.T) {
	f := newFixture(t, combat.Config{IdleTimeout: 200 * time.Millisecond, AcceptTimeout: time.Hour})
	char := f.mon(t, "charmander", 50)
	squirt := f.mon(t, "squirtle", 50)
	rep := f.wild(t, "pidgey", 5, char, squirt)

	time.Sleep(120 * time.Millisecond)
	_, err := f.engine.Submit(context.Background(), rep.Battle.ID, ash, combat.Action{Kind: combat.ActSwitch, Target: 1})
	require.NoError(t, err)
	time.Sleep(120 * time.Millisecond)
	_, ok := f.engine.Get(rep.Battle.ID)
	assert.True(t, ok, "battle should survive past the original deadline")
}
