package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/flow"
	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/safari"
	"github.com/pokebot/pokebot/internal/game/stats"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

// randomNature is the nature index meaning "roll one".
const randomNature = -1

// adminTarget loads or creates the document of the user an admin command
// replies to.
func (b *Bot) adminTarget(ctx context.Context, r *request) (User, *trainer.Trainer, error) {
	u := replyTarget(r)
	if u.IsBot {
		return u, nil, flow.Inputf("Bots don't play.")
	}
	t, _, err := b.trainers.GetOrCreate(ctx, u.ID, u.Username, u.FirstName)
	return u, t, err
}

func (b *Bot) handleAddPoke(ctx context.Context, r *request) error {
	name := r.parsed.Arg(0)
	if name == "" {
		return flow.Inputf("Usage: /addpoke %s", r.cmd.Usage)
	}
	sp, ok := b.cat.SpeciesByName(name)
	if !ok {
		if guess, found := flow.ClosestMatch(catalog.NormalizeName(name), b.cat.SpeciesNames()); found {
			return flow.Inputf("Unknown species %s. Did you mean %s?", name, catalog.DisplayName(guess))
		}
		return flow.Inputf("Unknown species %s.", name)
	}
	level := StarterLevel
	if arg := r.parsed.Arg(1); arg != "" {
		l, err := strconv.Atoi(arg)
		if err != nil || l < stats.MinLevel || l > stats.MaxLevel {
			return flow.Inputf("The level must be between %d and %d.", stats.MinLevel, stats.MaxLevel)
		}
		level = l
	}
	u, t, err := b.adminTarget(ctx, r)
	if err != nil {
		return err
	}
	f := b.addPoke.Start(r.user.ID, addPokeDraft{
		Target:     u.ID,
		TargetName: t.DisplayName(),
		Species:    sp.Name,
		Level:      level,
	})
	b.reply(ctx, r, b.natureMenu(r.user.ID, f.Data))
	return nil
}

func (b *Bot) natureMenu(owner int64, d addPokeDraft) Outgoing {
	buttons := []Button{button("🎲 Random", owner, flow.NSAddPoke, "nature", strconv.Itoa(randomNature))}
	for i, n := range stats.Natures {
		buttons = append(buttons, button(n.Name, owner, flow.NSAddPoke, "nature", strconv.Itoa(i)))
	}
	kb := chunk(buttons, 5)
	kb = append(kb, Row(button("Cancel", owner, flow.NSAddPoke, "cancel")))
	return Outgoing{
		Text:     fmt.Sprintf("Granting a Lv%d %s to %s. Choose a nature:", d.Level, catalog.DisplayName(d.Species), d.TargetName),
		Keyboard: kb,
	}
}

// onAddPoke drives the grant. Verbs: nature, back, confirm, cancel.
func (b *Bot) onAddPoke(ctx context.Context, r *request) error {
	f, err := b.addPoke.Get(r.user.ID)
	if err != nil {
		return err
	}
	if !b.IsAdmin(r.user.ID) {
		return flow.ErrNotAuthorized
	}
	switch r.payload.Verb {
	case "nature":
		i, err := r.payload.IntArg(0)
		if err != nil || i < randomNature || i >= len(stats.Natures) {
			return flow.Conflict("this button has expired")
		}
		if err := f.Fire(ctx, eventChooseNature); err != nil {
			return err
		}
		f.Data.Nature = ""
		nature := "a random nature"
		if i != randomNature {
			f.Data.Nature = stats.Natures[i].Name
			nature = f.Data.Nature
		}
		b.reply(ctx, r, Outgoing{
			Text: fmt.Sprintf("Give a Lv%d %s with %s to %s?", f.Data.Level, catalog.DisplayName(f.Data.Species), nature, f.Data.TargetName),
			Keyboard: Keyboard{
				Row(button("✅ Confirm", r.user.ID, flow.NSAddPoke, "confirm")),
				Row(
					button("⬅ Back", r.user.ID, flow.NSAddPoke, "back"),
					button("Cancel", r.user.ID, flow.NSAddPoke, "cancel"),
				),
			},
		})
		return nil
	case "back":
		if err := f.Fire(ctx, eventBack); err != nil {
			return err
		}
		b.reply(ctx, r, b.natureMenu(r.user.ID, f.Data))
		return nil
	case "cancel":
		if err := f.Fire(ctx, eventCancel); err != nil {
			return err
		}
		b.addPoke.End(r.user.ID)
		b.reply(ctx, r, Outgoing{Text: "Grant cancelled."})
		return nil
	case "confirm":
		return b.confirmAddPoke(ctx, r, f)
	}
	return flow.Conflict("this button has expired")
}

func (b *Bot) confirmAddPoke(ctx context.Context, r *request, f *flow.Flow[addPokeDraft]) error {
	if !b.guard.Acquire(r.user.ID, flow.NSAddPoke) {
		return flow.Conflict("already processing")
	}
	defer b.guard.Release(r.user.ID, flow.NSAddPoke)
	if err := f.MarkDone(); err != nil {
		return err
	}
	if err := f.Fire(ctx, eventConfirm); err != nil {
		return err
	}
	defer b.addPoke.End(r.user.ID)
	d := f.Data
	c, err := b.factory.CreateByName(d.Species, d.Level, creature.Options{Nature: d.Nature})
	if err != nil {
		return err
	}
	c.CapturedWith = "gift"
	inTeam, err := b.trainers.AddCreature(ctx, d.Target, c)
	if err != nil {
		return err
	}
	b.logger.Info("admin granted creature",
		zap.Int64("admin_id", r.user.ID),
		zap.Int64("user_id", d.Target),
		zap.String("species", d.Species),
		zap.Int("level", d.Level),
	)
	where := "collection"
	if inTeam {
		where = "team"
	}
	b.reply(ctx, r, Outgoing{
		Text:  fmt.Sprintf("🎁 %s received a Lv%d %s (%s). It joined their %s.", d.TargetName, c.Level, c.DisplayName(), c.Nature, where),
		Photo: c.Image,
	})
	return nil
}

func (b *Bot) handleAddCurrency(ctx context.Context, r *request) error {
	amount, err := strconv.Atoi(r.parsed.Arg(0))
	if err != nil || amount == 0 {
		return flow.Inputf("Usage: /addpd <amount>, a non-zero number.")
	}
	u, t, err := b.adminTarget(ctx, r)
	if err != nil {
		return err
	}
	balance, err := b.trainers.IncrCurrency(ctx, u.ID, amount)
	if err != nil {
		return err
	}
	b.logger.Info("admin changed currency", zap.Int64("admin_id", r.user.ID), zap.Int64("user_id", u.ID), zap.Int("delta", amount))
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("💰 %s now has %d PokéDollars.", t.DisplayName(), balance)})
	return nil
}

func (b *Bot) handleAddItems(ctx context.Context, r *request) error {
	bucket, ok := trainer.ParseBucket(r.parsed.Arg(0))
	if !ok {
		names := make([]string, len(trainer.Buckets))
		for i, bk := range trainer.Buckets {
			names[i] = string(bk)
		}
		return flow.Inputf("Unknown bucket. Use one of: %s.", strings.Join(names, ", "))
	}
	item := catalog.NormalizeName(r.parsed.Arg(1))
	count, err := strconv.Atoi(r.parsed.Arg(2))
	if item == "" || err != nil || count <= 0 {
		return flow.Inputf("Usage: /additems %s", r.cmd.Usage)
	}
	if err := b.knownItem(bucket, item); err != nil {
		return err
	}
	u, t, err := b.adminTarget(ctx, r)
	if err != nil {
		return err
	}
	_, err = b.trainers.Update(ctx, u.ID, func(t *trainer.Trainer) error {
		if t.Inventory == nil {
			t.Inventory = trainer.Inventory{}
		}
		t.Inventory.Add(bucket, item, count)
		return nil
	})
	if err != nil {
		return err
	}
	b.logger.Info("admin granted items",
		zap.Int64("admin_id", r.user.ID),
		zap.Int64("user_id", u.ID),
		zap.String("bucket", string(bucket)),
		zap.String("item", item),
		zap.Int("count", count),
	)
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("🎁 %s received %d %s.", t.DisplayName(), count, catalog.DisplayName(item))})
	return nil
}

// knownItem rejects items the game could never use from buckets with a
// fixed item list.
func (b *Bot) knownItem(bucket trainer.Bucket, item string) error {
	ok := true
	switch bucket {
	case trainer.BucketBalls:
		_, ok = b.cat.Ball(item)
	case trainer.BucketPotions:
		_, ok = combat.Potions[item]
	case trainer.BucketTMs:
		_, ok = b.cat.TM(item)
	case trainer.BucketCandy:
		ok = item == trainer.RareCandy
	}
	if !ok {
		return flow.Inputf("%s is not a known %s item.", item, bucket)
	}
	return nil
}

// handleKill toggles the kill flag. A killed user's flows, battle and
// safari session end at once.
func (b *Bot) handleKill(ctx context.Context, r *request) error {
	u := replyTarget(r)
	switch {
	case u.ID == r.user.ID:
		return flow.Inputf("You can't kill yourself.")
	case b.IsAdmin(u.ID):
		return flow.Inputf("Admins can't be killed.")
	}
	u, _, err := b.adminTarget(ctx, r)
	if err != nil {
		return err
	}
	t, err := b.trainers.Update(ctx, u.ID, func(t *trainer.Trainer) error {
		t.Killed = !t.Killed
		return nil
	})
	if err != nil {
		return err
	}
	b.logger.Info("admin toggled kill flag", zap.Int64("admin_id", r.user.ID), zap.Int64("user_id", u.ID), zap.Bool("killed", t.Killed))
	if !t.Killed {
		b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("%s can play again.", t.DisplayName())})
		return nil
	}

	b.cancelFlows(u.ID)
	if battle, ok := b.engine.ForUser(u.ID); ok {
		if rep, err := b.engine.Abort(battle.ID); err == nil {
			b.showReport(ctx, rep, 0)
		}
	}
	if _, err := b.safari.Leave(ctx, u.ID); err != nil && !errors.Is(err, safari.ErrNoSession) {
		b.logger.Warn("closing safari session of killed user", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("%s is blocked from the bot.", t.DisplayName())})
	return nil
}
