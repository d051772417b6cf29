package bot

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pokebot/pokebot/internal/flow"
	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/stats"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

func cardKeyboard(c *creature.Creature, owner int64, inTeam bool) Keyboard {
	sid := trainer.ShortID(c.UUID)
	team := "➕ Add to team"
	if inTeam {
		team = "➖ Remove from team"
	}
	return Keyboard{Row(
		button("⚔ Moves", owner, flow.NSSetMoves, "open", sid),
		button(team, owner, flow.NSTeam, "toggle", sid),
	)}
}

func (b *Bot) handleShow(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	c, err := b.resolveCreature(ctx, r, t, 0)
	if c == nil {
		return err
	}
	out := Outgoing{
		ChatID:   r.chatID,
		Text:     creatureCard(c, t.InTeam(c.UUID)),
		Photo:    c.Image,
		Keyboard: cardKeyboard(c, r.user.ID, t.InTeam(c.UUID)),
	}
	if r.cb != nil {
		// Keep the list that was pressed; a card is its own message.
		b.send(ctx, out)
		return nil
	}
	b.reply(ctx, r, out)
	return nil
}

// onTeamToggle adds or removes the carded creature from the team.
func (b *Bot) onTeamToggle(ctx context.Context, r *request) error {
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	sid := r.payload.Arg(0)
	var (
		c      *creature.Creature
		inTeam bool
	)
	_, err := b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		c, _ = t.FindPrefix(sid)
		if c == nil {
			return flow.Conflict("that creature is no longer yours")
		}
		var err error
		inTeam, err = t.ToggleTeam(c.UUID)
		return err
	})
	if err != nil {
		return err
	}
	_ = b.edit(ctx, r.cb.Message, Outgoing{Text: creatureCard(c, inTeam), Keyboard: cardKeyboard(c, r.user.ID, inTeam)})
	return nil
}

func (b *Bot) handleRelease(ctx context.Context, r *request) error {
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	c, err := b.resolveCreature(ctx, r, t, 0)
	if c == nil {
		return err
	}
	if len(t.Collection) == 1 {
		return trainer.ErrLastCreature
	}
	b.releases.Start(r.user.ID, confirmDraft{UUID: c.UUID, Name: c.DisplayName()})
	sid := trainer.ShortID(c.UUID)
	b.reply(ctx, r, Outgoing{
		Text: fmt.Sprintf("Release %s (Lv%d)? This can't be undone.", c.DisplayName(), c.Level),
		Keyboard: Keyboard{Row(
			button("Release", r.user.ID, flow.NSRelease, "confirm", sid),
			button("Cancel", r.user.ID, flow.NSRelease, "cancel", sid),
		)},
	})
	return nil
}

// confirmFor returns the flow a confirm button belongs to, rejecting
// buttons from an older prompt.
func confirmFor(reg *flow.Registry[confirmDraft], r *request) (*flow.Flow[confirmDraft], error) {
	f, err := reg.Get(r.user.ID)
	if err != nil {
		return nil, err
	}
	if trainer.ShortID(f.Data.UUID) != r.payload.Arg(0) {
		return nil, flow.Conflict("this button has expired")
	}
	return f, nil
}

// cancelConfirm ends a yes/no flow on its cancel button.
func (b *Bot) cancelConfirm(ctx context.Context, r *request, reg *flow.Registry[confirmDraft], f *flow.Flow[confirmDraft], text string) error {
	if err := f.Fire(ctx, eventCancel); err != nil {
		return err
	}
	reg.End(r.user.ID)
	b.reply(ctx, r, Outgoing{Text: text})
	return nil
}

func (b *Bot) onRelease(ctx context.Context, r *request) error {
	f, err := confirmFor(b.releases, r)
	if err != nil {
		return err
	}
	if r.payload.Verb == "cancel" {
		return b.cancelConfirm(ctx, r, b.releases, f, fmt.Sprintf("%s stays with you.", f.Data.Name))
	}
	if !b.guard.Acquire(r.user.ID, flow.NSRelease) {
		return flow.Conflict("already processing")
	}
	defer b.guard.Release(r.user.ID, flow.NSRelease)
	if err := f.MarkDone(); err != nil {
		return err
	}
	if err := f.Fire(ctx, eventConfirm); err != nil {
		return err
	}
	defer b.releases.End(r.user.ID)
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	_, err = b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		_, err := t.Release(f.Data.UUID)
		return err
	})
	if err != nil {
		return err
	}
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("Bye bye, %s! 👋", f.Data.Name)})
	return nil
}

func (b *Bot) handleCandy(ctx context.Context, r *request) error {
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	count := 1
	if arg := r.parsed.Arg(1); arg != "" {
		count, err = strconv.Atoi(arg)
		if err != nil || count <= 0 {
			return flow.Inputf("The candy count must be a positive number.")
		}
	}
	have := t.Inventory.Count(trainer.BucketCandy, trainer.RareCandy)
	switch {
	case have == 0:
		return flow.Inputf("You have no Rare Candy.")
	case count > have:
		return flow.Inputf("You only have %d Rare Candy.", have)
	}
	c, err := b.resolveCreature(ctx, r, t, 0)
	if c == nil {
		return err
	}
	if c.Level >= stats.MaxLevel {
		return creature.ErrMaxLevel
	}
	b.candies.Start(r.user.ID, confirmDraft{UUID: c.UUID, Name: c.DisplayName(), Count: count})
	sid := trainer.ShortID(c.UUID)
	b.reply(ctx, r, Outgoing{
		Text: fmt.Sprintf("Feed %d Rare Candy to %s (Lv%d)?", count, c.DisplayName(), c.Level),
		Keyboard: Keyboard{Row(
			button("🍬 Feed", r.user.ID, flow.NSCandy, "use", sid),
			button("Cancel", r.user.ID, flow.NSCandy, "cancel", sid),
		)},
	})
	return nil
}

// onCandy drives the candy flow. Verbs: use, evolve, keep, cancel.
func (b *Bot) onCandy(ctx context.Context, r *request) error {
	f, err := confirmFor(b.candies, r)
	if err != nil {
		return err
	}
	switch r.payload.Verb {
	case "cancel", "keep":
		text := "No candy was used."
		if r.payload.Verb == "keep" {
			text = fmt.Sprintf("%s stays as it is.", f.Data.Name)
		}
		return b.cancelConfirm(ctx, r, b.candies, f, text)
	case "use":
		return b.feedCandy(ctx, r, f)
	case "evolve":
		return b.candyEvolve(ctx, r, f)
	}
	return flow.Conflict("this button has expired")
}

func (b *Bot) feedCandy(ctx context.Context, r *request, f *flow.Flow[confirmDraft]) error {
	if !b.guard.Acquire(r.user.ID, flow.NSCandy) {
		return flow.Conflict("already processing")
	}
	defer b.guard.Release(r.user.ID, flow.NSCandy)
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	if err := f.Fire(ctx, eventUse); err != nil {
		return err
	}
	var (
		c    *creature.Creature
		used int
		from int
	)
	_, err := b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		c, _ = t.Find(f.Data.UUID)
		if c == nil {
			return trainer.ErrCreatureNotFound
		}
		from = c.Level
		var err error
		if used, err = b.factory.ApplyCandy(c, f.Data.Count); err != nil {
			return err
		}
		return t.Inventory.Take(trainer.BucketCandy, trainer.RareCandy, used)
	})
	if err != nil {
		b.candies.End(r.user.ID)
		return err
	}

	text := fmt.Sprintf("%s ate %d Rare Candy and grew from Lv%d to Lv%d!", c.DisplayName(), used, from, c.Level)
	if evo, ok := b.factory.CanEvolve(c, ""); ok && evo.Method == catalog.MethodLevelUp {
		if err := f.Fire(ctx, eventOffer); err != nil {
			return err
		}
		sid := trainer.ShortID(c.UUID)
		b.reply(ctx, r, Outgoing{
			Text: fmt.Sprintf("%s\n\n%s can evolve into %s. Evolve now?", text, c.DisplayName(), catalog.DisplayName(evo.Target)),
			Keyboard: Keyboard{Row(
				button("✨ Evolve", r.user.ID, flow.NSCandy, "evolve", sid),
				button("Not now", r.user.ID, flow.NSCandy, "keep", sid),
			)},
		})
		return nil
	}
	if err := f.Fire(ctx, eventFinish); err != nil {
		return err
	}
	b.candies.End(r.user.ID)
	b.reply(ctx, r, Outgoing{Text: text})
	return nil
}

func (b *Bot) candyEvolve(ctx context.Context, r *request, f *flow.Flow[confirmDraft]) error {
	if err := f.Fire(ctx, eventEvolve); err != nil {
		return err
	}
	defer b.candies.End(r.user.ID)
	return b.evolve(ctx, r, f.Data.UUID, f.Data.Name, "")
}

// evolve applies an evolution and reports it, taking the stone if one is used.
func (b *Bot) evolve(ctx context.Context, r *request, uuid, name, stone string) error {
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	var (
		target *catalog.Species
		shiny  bool
	)
	_, err := b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		c, _ := t.Find(uuid)
		if c == nil {
			return trainer.ErrCreatureNotFound
		}
		shiny = c.Shiny
		if stone != "" {
			if err := t.Inventory.Take(trainer.BucketStones, stone, 1); err != nil {
				return err
			}
		}
		var err error
		target, err = b.factory.Evolve(c, stone)
		return err
	})
	if err != nil {
		return err
	}
	b.reply(ctx, r, Outgoing{
		Text:  fmt.Sprintf("✨ Congratulations! %s evolved into %s!", name, catalog.DisplayName(target.Name)),
		Photo: target.Image(shiny),
	})
	return nil
}

func (b *Bot) handleEvolve(ctx context.Context, r *request) error {
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	c, err := b.resolveCreature(ctx, r, t, 0)
	if c == nil {
		return err
	}
	stone := catalog.NormalizeName(r.parsed.Arg(1))
	evo, ok := b.cat.EvolutionOf(c.Name)
	if !ok {
		return flow.Inputf("%s doesn't evolve.", c.DisplayName())
	}
	if evo.Method == catalog.MethodItem && stone == "" && t.Inventory.Count(trainer.BucketStones, evo.Item) > 0 {
		stone = catalog.NormalizeName(evo.Item)
	}
	if stone != "" && t.Inventory.Count(trainer.BucketStones, stone) == 0 {
		return flow.Inputf("You don't have a %s.", catalog.DisplayName(stone))
	}
	if _, ok := b.factory.CanEvolve(c, stone); !ok {
		if evo.Method == catalog.MethodItem {
			return flow.Inputf("%s needs a %s to evolve.", c.DisplayName(), catalog.DisplayName(evo.Item))
		}
		return flow.Inputf("%s evolves at level %d.", c.DisplayName(), evo.Level)
	}
	if evo.Method != catalog.MethodItem {
		stone = ""
	}
	b.evolves.Start(r.user.ID, confirmDraft{UUID: c.UUID, Name: c.DisplayName(), Item: stone})
	sid := trainer.ShortID(c.UUID)
	text := fmt.Sprintf("Evolve %s into %s?", c.DisplayName(), catalog.DisplayName(evo.Target))
	if stone != "" {
		text = fmt.Sprintf("Use a %s to evolve %s into %s?", catalog.DisplayName(stone), c.DisplayName(), catalog.DisplayName(evo.Target))
	}
	b.reply(ctx, r, Outgoing{
		Text: text,
		Keyboard: Keyboard{Row(
			button("✨ Evolve", r.user.ID, flow.NSEvolve, "confirm", sid),
			button("Cancel", r.user.ID, flow.NSEvolve, "cancel", sid),
		)},
	})
	return nil
}

func (b *Bot) onEvolve(ctx context.Context, r *request) error {
	f, err := confirmFor(b.evolves, r)
	if err != nil {
		return err
	}
	if r.payload.Verb == "cancel" {
		return b.cancelConfirm(ctx, r, b.evolves, f, fmt.Sprintf("%s stays as it is.", f.Data.Name))
	}
	if !b.guard.Acquire(r.user.ID, flow.NSEvolve) {
		return flow.Conflict("already processing")
	}
	defer b.guard.Release(r.user.ID, flow.NSEvolve)
	if err := f.MarkDone(); err != nil {
		return err
	}
	if err := f.Fire(ctx, eventConfirm); err != nil {
		return err
	}
	defer b.evolves.End(r.user.ID)
	return b.evolve(ctx, r, f.Data.UUID, f.Data.Name, f.Data.Item)
}

func (b *Bot) handleTM(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	if r.parsed.Arg(0) == "" {
		items := t.Inventory.Items(trainer.BucketTMs)
		if len(items) == 0 {
			return flow.Inputf("You have no TMs.")
		}
		var sb strings.Builder
		sb.WriteString("Your TMs:\n")
		for _, it := range items {
			move := ""
			if tm, ok := b.cat.TM(it.Name); ok {
				move = " " + catalog.DisplayName(tm.Move)
			}
			fmt.Fprintf(&sb, "%s%s x%d\n", strings.ToUpper(it.Name), move, it.Count)
		}
		sb.WriteString("\nUse /tm <tm> <name> to teach one.")
		b.reply(ctx, r, Outgoing{Text: sb.String()})
		return nil
	}
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	tm, ok := b.cat.TM(catalog.NormalizeName(r.parsed.Arg(0)))
	if !ok {
		return flow.Inputf("There is no TM called %s.", r.parsed.Arg(0))
	}
	if t.Inventory.Count(trainer.BucketTMs, tm.ID) == 0 {
		return flow.Inputf("You don't have %s.", strings.ToUpper(tm.ID))
	}
	c, err := b.resolveCreature(ctx, r, t, 1)
	if c == nil {
		return err
	}
	_, err = b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		c, _ := t.Find(c.UUID)
		if c == nil {
			return trainer.ErrCreatureNotFound
		}
		if _, err := b.factory.TeachTM(c, tm.ID); err != nil {
			return err
		}
		return t.Inventory.Take(trainer.BucketTMs, tm.ID, 1)
	})
	if err != nil {
		return err
	}
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("%s learned %s! Make it active from /show.", c.DisplayName(), catalog.DisplayName(tm.Move))})
	return nil
}

func (b *Bot) handleVitamin(ctx context.Context, r *request) error {
	return b.adjustEVs(ctx, r, true)
}

func (b *Bot) handleBerry(ctx context.Context, r *request) error {
	return b.adjustEVs(ctx, r, false)
}

// adjustEVs feeds a vitamin (raise) or a berry (lower) for one stat.
func (b *Bot) adjustEVs(ctx context.Context, r *request, raise bool) error {
	itemFor, verb := trainer.BerryFor, "lowers"
	bucket := trainer.BucketBerries
	if raise {
		itemFor, verb = trainer.VitaminFor, "raises"
		bucket = trainer.BucketVitamins
	}
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	if r.parsed.Arg(1) == "" {
		var sb strings.Builder
		for _, s := range stats.All {
			item := itemFor(s)
			fmt.Fprintf(&sb, "%s %s %s (you have %d)\n", catalog.DisplayName(item), verb, statLabel(s), t.Inventory.Count(bucket, item))
		}
		fmt.Fprintf(&sb, "\nUse /%s <name> <stat>.", r.cmd.Name)
		b.reply(ctx, r, Outgoing{Text: sb.String()})
		return nil
	}
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	s, err := stats.ParseStat(strings.ToLower(r.parsed.Arg(1)))
	if err != nil {
		return flow.Inputf("Unknown stat %s. Try hp, atk, def, spa, spd or spe.", r.parsed.Arg(1))
	}
	item := itemFor(s)
	if t.Inventory.Count(bucket, item) == 0 {
		return flow.Inputf("You don't have any %s.", catalog.DisplayName(item))
	}
	c, err := b.resolveCreature(ctx, r, t, 0)
	if c == nil {
		return err
	}
	var changed int
	_, err = b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		c, _ := t.Find(c.UUID)
		if c == nil {
			return trainer.ErrCreatureNotFound
		}
		var err error
		if raise {
			changed, err = b.factory.ApplyVitamin(c, s)
		} else {
			changed, err = b.factory.ApplyBerry(c, s)
		}
		if err != nil {
			return err
		}
		return t.Inventory.Take(bucket, item, 1)
	})
	if err != nil {
		return err
	}
	dir := "rose"
	if !raise {
		dir = "fell"
	}
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("%s's %s EVs %s by %d.", c.DisplayName(), statLabel(s), dir, changed)})
	return nil
}

// movesView is the active move editor for c.
func movesView(c *creature.Creature, owner int64, selected []string, isDamaging func(string) bool) Outgoing {
	sid := trainer.ShortID(c.UUID)
	var (
		sb      strings.Builder
		buttons []Button
	)
	fmt.Fprintf(&sb, "Choose up to %d moves for %s (%d/%d):\n", creature.MaxActiveMoves, c.DisplayName(), len(selected), creature.MaxActiveMoves)
	for i, m := range c.Moves {
		if !isDamaging(m.Name) {
			continue
		}
		label := catalog.DisplayName(m.Name)
		if slices.Contains(selected, m.Name) {
			label = "✅ " + label
		}
		fmt.Fprintf(&sb, "%s: %s, power %d\n", catalog.DisplayName(m.Name), m.Type, m.Power)
		buttons = append(buttons, button(label, owner, flow.NSToggleMove, "pick", sid, strconv.Itoa(i)))
	}
	kb := chunk(buttons, 2)
	kb = append(kb, Row(
		button("💾 Save", owner, flow.NSSaveMoves, "save", sid),
		button("Cancel", owner, flow.NSSetMoves, "cancel", sid),
	))
	return Outgoing{Text: strings.TrimRight(sb.String(), "\n"), Keyboard: kb}
}

// movesFor returns the editor flow and its creature for a moves button.
func (b *Bot) movesFor(ctx context.Context, r *request) (*flow.Flow[movesDraft], *creature.Creature, *trainer.Trainer, error) {
	f, err := b.moves.Get(r.user.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	if trainer.ShortID(f.Data.UUID) != r.payload.Arg(0) {
		return nil, nil, nil, flow.Conflict("this button has expired")
	}
	t, err := b.trainers.Get(ctx, r.user.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	c, _ := t.Find(f.Data.UUID)
	if c == nil {
		b.moves.End(r.user.ID)
		return nil, nil, nil, flow.Conflict("that creature is no longer yours")
	}
	return f, c, t, nil
}

// onSetMoves opens or cancels the move editor from a creature card.
func (b *Bot) onSetMoves(ctx context.Context, r *request) error {
	if r.payload.Verb == "cancel" {
		f, c, t, err := b.movesFor(ctx, r)
		if err != nil {
			return err
		}
		if err := f.Fire(ctx, eventCancel); err != nil {
			return err
		}
		b.moves.End(r.user.ID)
		_ = b.edit(ctx, r.cb.Message, Outgoing{Text: creatureCard(c, t.InTeam(c.UUID)), Keyboard: cardKeyboard(c, r.user.ID, t.InTeam(c.UUID))})
		return nil
	}
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	t, err := b.trainers.Get(ctx, r.user.ID)
	if err != nil {
		return err
	}
	c, _ := t.FindPrefix(r.payload.Arg(0))
	if c == nil {
		return flow.Conflict("that creature is no longer yours")
	}
	f := b.moves.Start(r.user.ID, movesDraft{UUID: c.UUID, Selected: slices.Clone(c.ActiveMoves)})
	_ = b.edit(ctx, r.cb.Message, movesView(c, r.user.ID, f.Data.Selected, b.cat.IsDamaging))
	return nil
}

func (b *Bot) onToggleMove(ctx context.Context, r *request) error {
	f, c, _, err := b.movesFor(ctx, r)
	if err != nil {
		return err
	}
	i, err := r.payload.IntArg(1)
	if err != nil || i < 0 || i >= len(c.Moves) || !b.cat.IsDamaging(c.Moves[i].Name) {
		return flow.Conflict("this button has expired")
	}
	name := c.Moves[i].Name
	if at := slices.Index(f.Data.Selected, name); at >= 0 {
		f.Data.Selected = slices.Delete(f.Data.Selected, at, at+1)
	} else {
		if len(f.Data.Selected) >= creature.MaxActiveMoves {
			return flow.Inputf("A creature can carry at most %d moves.", creature.MaxActiveMoves)
		}
		f.Data.Selected = append(f.Data.Selected, name)
	}
	_ = b.edit(ctx, r.cb.Message, movesView(c, r.user.ID, f.Data.Selected, b.cat.IsDamaging))
	return nil
}

func (b *Bot) onSaveMoves(ctx context.Context, r *request) error {
	f, c, t, err := b.movesFor(ctx, r)
	if err != nil {
		return err
	}
	if len(f.Data.Selected) == 0 {
		return flow.Inputf("Pick at least one move.")
	}
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	if err := f.Fire(ctx, eventSave); err != nil {
		return err
	}
	defer b.moves.End(r.user.ID)
	selected := f.Data.Selected
	err = b.trainers.UpdateMoves(ctx, r.user.ID, c.UUID, func(c *creature.Creature) error {
		return b.factory.SetActiveMoves(c, selected)
	})
	if err != nil {
		return err
	}
	c.ActiveMoves = selected
	_ = b.edit(ctx, r.cb.Message, Outgoing{Text: creatureCard(c, t.InTeam(c.UUID)), Keyboard: cardKeyboard(c, r.user.ID, t.InTeam(c.UUID))})
	return nil
}
