package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/flow"
	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/safari"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

// Explore odds, in percent: currency, then a ball, then a potion.
const (
	exploreCurrencyChance = 60
	exploreBallChance     = 25
	exploreMinCurrency    = 50
	exploreMaxCurrency    = 200
)

func (b *Bot) handleHunt(ctx context.Context, r *request) error {
	return b.encounter(ctx, r, combat.ContextHunt)
}

func (b *Bot) handleFish(ctx context.Context, r *request) error {
	return b.encounter(ctx, r, combat.ContextFishing)
}

// encounter starts a wild battle in the trainer's region.
func (b *Bot) encounter(ctx context.Context, r *request, encounter string) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	if encounter == combat.ContextFishing && !t.Inventory.HasAny(trainer.BucketRods) {
		return flow.Inputf("You need a fishing rod to fish. Check /rods.")
	}
	if _, active := b.safari.Get(r.user.ID); active {
		return flow.Inputf("You're in the safari zone. Throw, skip or leave first.")
	}
	team := t.TeamCreatures()
	sp, err := combat.PickWildSpecies(b.cat, b.src, t.Region, encounter)
	if err != nil {
		return err
	}
	wild, err := b.factory.Create(sp.ID, combat.WildLevel(b.src, team))
	if err != nil {
		return err
	}
	rep, err := b.engine.StartWild(r.user.ID, t.DisplayName(), team, wild, encounter)
	if err != nil {
		return err
	}

	intro := fmt.Sprintf("A wild %s (Lv%d) appeared!", wild.DisplayName(), wild.Level)
	if encounter == combat.ContextFishing {
		intro = fmt.Sprintf("Something's biting! A wild %s (Lv%d) took the bait!", wild.DisplayName(), wild.Level)
	}
	ref := b.reply(ctx, r, Outgoing{
		Text:     intro + "\n\n" + battleText(rep),
		Photo:    wild.Image,
		Keyboard: b.actionKeyboard(rep.Battle, 0),
	})
	b.setView(rep.Battle.ID, r.user.ID, ref)
	return nil
}

func (b *Bot) handleRods(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	rods := t.Inventory.Items(trainer.BucketRods)
	if len(rods) == 0 {
		b.reply(ctx, r, Outgoing{Text: "You don't own a fishing rod."})
		return nil
	}
	lines := make([]string, len(rods))
	for i, it := range rods {
		lines[i] = fmt.Sprintf("🎣 %s x%d", catalog.DisplayName(it.Name), it.Count)
	}
	b.reply(ctx, r, Outgoing{Text: "Your rods:\n" + strings.Join(lines, "\n") + "\n\nUse /fish to cast."})
	return nil
}

func (b *Bot) handleExplore(ctx context.Context, r *request) error {
	if _, err := b.started(ctx, r); err != nil {
		return err
	}
	var found string
	roll := b.src.Intn(100)
	_, err := b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		switch {
		case roll < exploreCurrencyChance:
			amount := exploreMinCurrency + b.src.Intn(exploreMaxCurrency-exploreMinCurrency+1)
			t.Currency += amount
			found = fmt.Sprintf("%d PokéDollars", amount)
		case roll < exploreCurrencyChance+exploreBallChance:
			t.Inventory.Add(trainer.BucketBalls, "pokeball", 1)
			found = "a Poké Ball"
		default:
			t.Inventory.Add(trainer.BucketPotions, "potion", 1)
			found = "a Potion"
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("You explored the tall grass and found %s!", found)})
	return nil
}

func (b *Bot) handleSafari(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	sess, err := b.safari.Enter(ctx, r.user.ID, t.Region, t.TeamCreatures(), t.LastSafari)
	switch {
	case errors.Is(err, safari.ErrAlreadyEntered):
		next := b.safari.Gate().NextReset(b.now())
		return flow.Inputf("You've already visited the safari today. It reopens at %s.", next.Format("15:04"))
	case errors.Is(err, combat.ErrNoEncounter):
		return flow.Inputf("No legendary creatures roam %s.", catalog.DisplayName(t.Region))
	case err != nil:
		return err
	}
	entered := sess.StartedAt
	if _, err := b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		t.LastSafari = &entered
		return nil
	}); err != nil {
		return err
	}
	b.logger.Info("safari session started", zap.Int64("user_id", r.user.ID), zap.Time("entered", entered))
	b.reply(ctx, r, b.safariView(r.user.ID, "Welcome to the safari zone!", sess.Encounter, sess.BallsLeft))
	return nil
}

func (b *Bot) safariView(owner int64, headline string, enc *creature.Creature, balls int) Outgoing {
	text := fmt.Sprintf("%s\nA wild %s (Lv%d) is nearby.\nSafari Balls left: %d", headline, enc.DisplayName(), enc.Level, balls)
	return Outgoing{
		Text:  text,
		Photo: enc.Image,
		Keyboard: Keyboard{
			Row(
				button("Throw ball", owner, flow.NSSafari, "throw"),
				button("Skip", owner, flow.NSSafari, "skip"),
			),
			Row(button("Leave", owner, flow.NSSafari, "leave")),
		},
	}
}

// onSafari handles throw, skip and leave. A new encounter is sent as a new
// photo and the previous message loses its buttons.
func (b *Bot) onSafari(ctx context.Context, r *request) error {
	sess, ok := b.safari.Get(r.user.ID)
	if !ok {
		return flow.Conflict("no safari session")
	}
	switch r.payload.Verb {
	case "throw":
		target := sess.Encounter
		res, err := b.safari.Throw(ctx, r.user.ID)
		if err != nil {
			return err
		}
		headline := fmt.Sprintf("%s broke free!", target.DisplayName())
		if res.Caught != nil {
			if _, err := b.trainers.AddCreature(ctx, r.user.ID, res.Caught); err != nil {
				return err
			}
			headline = fmt.Sprintf("Gotcha! %s was caught!", res.Caught.DisplayName())
		}
		if res.Ended {
			b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("%s\nYou're out of Safari Balls. Come back after the next reset!", headline)})
			return nil
		}
		if res.Caught == nil {
			b.reply(ctx, r, b.safariView(r.user.ID, headline, res.Next, res.BallsLeft))
			return nil
		}
		b.nextSafariEncounter(ctx, r, headline, res.Next, res.BallsLeft)
	case "skip":
		next, err := b.safari.Skip(ctx, r.user.ID)
		if err != nil {
			return err
		}
		b.nextSafariEncounter(ctx, r, "You moved on.", next, sess.BallsLeft)
	case "leave":
		left, err := b.safari.Leave(ctx, r.user.ID)
		if err != nil {
			return err
		}
		b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("You left the safari zone with %d catches.", len(left.Caught))})
	default:
		return flow.Conflict("unknown safari action")
	}
	return nil
}

func (b *Bot) nextSafariEncounter(ctx context.Context, r *request, headline string, next *creature.Creature, balls int) {
	_ = b.edit(ctx, r.cb.Message, Outgoing{Text: headline})
	b.send(ctx, b.withChat(r, b.safariView(r.user.ID, headline, next, balls)))
}

func (b *Bot) withChat(r *request, out Outgoing) Outgoing {
	out.ChatID = r.chatID
	return out
}
