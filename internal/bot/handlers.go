package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pokebot/pokebot/internal/flow"
	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/command"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

func (b *Bot) commandHandlers() map[string]commandFunc {
	return map[string]commandFunc{
		command.HandlerStart:       b.handleStart,
		command.HandlerInventory:   b.handleInventory,
		command.HandlerCollection:  b.handleCollection,
		command.HandlerTeam:        b.handleTeam,
		command.HandlerSort:        b.handleSort,
		command.HandlerDisplay:     b.handleDisplay,
		command.HandlerHelp:        b.handleHelp,
		command.HandlerHunt:        b.handleHunt,
		command.HandlerFish:        b.handleFish,
		command.HandlerRods:        b.handleRods,
		command.HandlerSafari:      b.handleSafari,
		command.HandlerExplore:     b.handleExplore,
		command.HandlerClose:       b.handleClose,
		command.HandlerShow:        b.handleShow,
		command.HandlerRelease:     b.handleRelease,
		command.HandlerCandy:       b.handleCandy,
		command.HandlerEvolve:      b.handleEvolve,
		command.HandlerTM:          b.handleTM,
		command.HandlerBerry:       b.handleBerry,
		command.HandlerVitamin:     b.handleVitamin,
		command.HandlerDuel:        b.handleDuel,
		command.HandlerGym:         b.handleGym,
		command.HandlerTravel:      b.handleTravel,
		command.HandlerTrade:       b.handleTrade,
		command.HandlerGive:        b.handleGive,
		command.HandlerXPIn:        b.handleXPin,
		command.HandlerAddPoke:     b.handleAddPoke,
		command.HandlerAddCurrency: b.handleAddCurrency,
		command.HandlerAddItems:    b.handleAddItems,
		command.HandlerKill:        b.handleKill,
	}
}

func (b *Bot) callbackHandlers() map[string]callbackFunc {
	return map[string]callbackFunc{
		flow.NSStart:         b.onStart,
		flow.NSSort:          b.onSort,
		flow.NSDisplay:       b.onDisplay,
		flow.NSStats:         b.onStats,
		flow.NSTravel:        b.onTravel,
		flow.NSSafari:        b.onSafari,
		flow.NSWild:          b.onBattle,
		flow.NSGym:           b.onGym,
		flow.NSDuel:          b.onDuel,
		flow.NSSelectPokemon: b.onSelectPokemon,
		flow.NSSuggest:       b.onSuggest,
		flow.NSRelease:       b.onRelease,
		flow.NSEvolve:        b.onEvolve,
		flow.NSCandy:         b.onCandy,
		flow.NSSetMoves:      b.onSetMoves,
		flow.NSToggleMove:    b.onToggleMove,
		flow.NSSaveMoves:     b.onSaveMoves,
		flow.NSTeam:          b.onTeamToggle,
		flow.NSTrade:         b.onTrade,
		flow.NSXPin:          b.onXPin,
		flow.NSAddPoke:       b.onAddPoke,
	}
}

// started loads the requester's document.
//
// Postcondition: Returns errNotStarted when the trainer has not picked a starter.
func (b *Bot) started(ctx context.Context, r *request) (*trainer.Trainer, error) {
	t, _, err := b.trainers.GetOrCreate(ctx, r.user.ID, r.user.Username, r.user.FirstName)
	if err != nil {
		return nil, err
	}
	if !t.Started {
		return nil, errNotStarted
	}
	return t, nil
}

// startedTarget loads another user's document for a social or admin command.
func (b *Bot) startedTarget(ctx context.Context, u User) (*trainer.Trainer, error) {
	if u.IsBot {
		return nil, flow.Inputf("Bots don't play.")
	}
	t, err := b.trainers.Get(ctx, u.ID)
	switch {
	case errors.Is(err, trainer.ErrNotFound):
		return nil, flow.Inputf("%s hasn't started their journey yet.", u.Name())
	case err != nil:
		return nil, fmt.Errorf("loading trainer %d: %w", u.ID, err)
	case !t.Started:
		return nil, flow.Inputf("%s hasn't started their journey yet.", u.Name())
	}
	return t, nil
}

// notBusy rejects changes to creatures while the user is battling.
func (b *Bot) notBusy(userID int64) error {
	if _, ok := b.engine.ForUser(userID); ok {
		return flow.Inputf("Finish your current battle first.")
	}
	return nil
}

// replyTarget is the author of the message a reply command answers.
func replyTarget(r *request) User {
	return r.msg.ReplyTo.From
}

// rerun dispatches a command again from a button press, for example after a
// suggestion was accepted. The caller already holds the user's lock.
func (b *Bot) rerun(ctx context.Context, r *request, name string, args []string) error {
	cmd, ok := b.commands.Resolve(name)
	if !ok {
		return flow.Conflict("unknown command " + name)
	}
	h, ok := b.onCommand[cmd.Handler]
	if !ok {
		return fmt.Errorf("no handler for command %q", name)
	}
	r.cmd = cmd
	r.parsed = command.ParseResult{Command: cmd.Name, Args: args, RawArgs: strings.Join(args, " ")}
	return h(ctx, r)
}

// creatureRef marks a command argument that names a creature by id prefix.
const creatureRef = "#"

// resolveCreature finds the creature named by argument i of a command.
// Unknown names get a yes/no suggestion and several matches get a picker;
// in both cases a prompt is sent and (nil, nil) is returned.
func (b *Bot) resolveCreature(ctx context.Context, r *request, t *trainer.Trainer, i int) (*creature.Creature, error) {
	arg := r.parsed.Arg(i)
	if arg == "" {
		return nil, flow.Inputf("Which creature? Usage: /%s %s", r.cmd.Name, r.cmd.Usage)
	}
	if prefix, ok := strings.CutPrefix(arg, creatureRef); ok {
		c, _ := t.FindPrefix(prefix)
		if c == nil {
			return nil, flow.Conflict("that creature is no longer yours")
		}
		return c, nil
	}

	matches := t.FindByName(arg)
	switch {
	case len(matches) == 1:
		return matches[0], nil
	case len(matches) > 1:
		b.pickCreature(ctx, r, matches, i)
		return nil, nil
	}

	guess, ok := flow.ClosestMatch(catalog.NormalizeName(arg), t.SpeciesNames())
	if !ok {
		return nil, flow.Inputf("You don't have any creature called %s.", arg)
	}
	args := append([]string(nil), r.parsed.Args...)
	args[i] = guess
	b.suggests.Start(r.user.ID, suggestion{Command: r.cmd.Name, Args: args})
	b.reply(ctx, r, Outgoing{
		Text: fmt.Sprintf("You don't have %s. Did you mean %s?", arg, catalog.DisplayName(guess)),
		Keyboard: Keyboard{Row(
			button("Yes", r.user.ID, flow.NSSuggest, "yes"),
			button("No", r.user.ID, flow.NSSuggest, "no"),
		)},
	})
	return nil, nil
}

// pickCreature asks which of several same-named creatures a command means.
func (b *Bot) pickCreature(ctx context.Context, r *request, matches []*creature.Creature, argIndex int) {
	b.suggests.Start(r.user.ID, suggestion{Command: r.cmd.Name, Args: append([]string(nil), r.parsed.Args...), ArgIndex: argIndex})
	var buttons []Button
	for _, c := range matches {
		label := fmt.Sprintf("%s Lv%d", c.DisplayName(), c.Level)
		buttons = append(buttons, button(label, r.user.ID, flow.NSSelectPokemon, "pick", trainer.ShortID(c.UUID)))
	}
	b.reply(ctx, r, Outgoing{
		Text:     fmt.Sprintf("You have %d of those. Which one?", len(matches)),
		Keyboard: chunk(buttons, 2),
	})
}

// onSelectPokemon runs a command for a creature picked from a list.
// Verbs: pick answers pickCreature, show opens a creature card.
func (b *Bot) onSelectPokemon(ctx context.Context, r *request) error {
	ref := creatureRef + r.payload.Arg(0)
	if r.payload.Verb == "show" {
		return b.rerun(ctx, r, command.HandlerShow, []string{ref})
	}
	f, err := b.suggests.Get(r.user.ID)
	if err != nil {
		return err
	}
	if err := f.Fire(ctx, eventConfirm); err != nil {
		return err
	}
	b.suggests.End(r.user.ID)
	args := f.Data.Args
	if f.Data.ArgIndex < len(args) {
		args[f.Data.ArgIndex] = ref
	}
	return b.rerun(ctx, r, f.Data.Command, args)
}

// onSuggest handles the yes/no answer to a name suggestion.
func (b *Bot) onSuggest(ctx context.Context, r *request) error {
	f, err := b.suggests.Get(r.user.ID)
	if err != nil {
		return err
	}
	if r.payload.Verb != "yes" {
		b.suggests.End(r.user.ID)
		b.reply(ctx, r, Outgoing{Text: "Okay, never mind."})
		return nil
	}
	if err := f.Fire(ctx, eventConfirm); err != nil {
		return err
	}
	b.suggests.End(r.user.ID)
	return b.rerun(ctx, r, f.Data.Command, f.Data.Args)
}
