package bot

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/flow"
	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/command"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

// StarterLevel is the level of the creature picked with /start.
const StarterLevel = 5

// collectionPageSize is the number of creatures per /mypokemons page.
const collectionPageSize = 10

func (b *Bot) handleStart(ctx context.Context, r *request) error {
	t, created, err := b.trainers.GetOrCreate(ctx, r.user.ID, r.user.Username, r.user.FirstName)
	if err != nil {
		return err
	}
	if created {
		b.logger.Info("trainer created", zap.Int64("user_id", r.user.ID), zap.String("username", r.user.Username))
	}
	if t.Started {
		b.reply(ctx, r, Outgoing{Text: fmt.Sprintf(
			"Welcome back, %s! You own %d creatures and %d PokéDollars. Try /hunt or /help.",
			t.DisplayName(), len(t.Collection), t.Currency)})
		return nil
	}
	region, ok := b.cat.Region(t.Region)
	if !ok || len(region.Starters) == 0 {
		return fmt.Errorf("region %q has no starters", t.Region)
	}
	var row []Button
	for _, name := range region.Starters {
		row = append(row, button(catalog.DisplayName(name), r.user.ID, flow.NSStart, "pick", name))
	}
	b.reply(ctx, r, Outgoing{
		Text:     fmt.Sprintf("Welcome to %s, %s! Choose your first partner:", catalog.DisplayName(t.Region), t.DisplayName()),
		Keyboard: Keyboard{row},
	})
	return nil
}

// onStart grants the chosen starter and the starter kit.
func (b *Bot) onStart(ctx context.Context, r *request) error {
	name := r.payload.Arg(0)
	var starter *creature.Creature
	_, err := b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		if t.Started {
			return flow.Conflict("already started")
		}
		region, ok := b.cat.Region(t.Region)
		if !ok || !slices.Contains(region.Starters, name) {
			return flow.Conflict("that starter is not offered here")
		}
		c, err := b.factory.CreateByName(name, StarterLevel, creature.Options{})
		if err != nil {
			return err
		}
		t.AddCreature(c)
		t.GrantStarterKit()
		starter = c
		return nil
	})
	if err != nil {
		return err
	}
	b.logger.Info("starter chosen", zap.Int64("user_id", r.user.ID), zap.String("species", starter.Name))
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf(
		"You chose %s! Your starter kit: 10 Poké Balls, 3 Great Balls, 5 Potions, a Rare Candy, an Old Rod and %d PokéDollars.\nUse /hunt to find wild creatures.",
		starter.DisplayName(), trainer.StarterCurrency)})
	return nil
}

func (b *Bot) handleInventory(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	b.reply(ctx, r, Outgoing{Text: inventoryText(t)})
	return nil
}

func (b *Bot) handleCollection(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	b.reply(ctx, r, b.collectionPage(t, r.user.ID, 0))
	return nil
}

// onStats turns /mypokemons pages. Payload: stats:page:<n>.
func (b *Bot) onStats(ctx context.Context, r *request) error {
	page, err := r.payload.IntArg(0)
	if err != nil {
		return flow.Conflict("bad page")
	}
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	b.reply(ctx, r, b.collectionPage(t, r.user.ID, page))
	return nil
}

func (b *Bot) collectionPage(t *trainer.Trainer, owner int64, page int) Outgoing {
	list := t.Sorted()
	pages := max(1, (len(list)+collectionPageSize-1)/collectionPageSize)
	page = min(max(page, 0), pages-1)
	lo := page * collectionPageSize
	hi := min(lo+collectionPageSize, len(list))

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s's collection (%d), sorted by %s. Page %d/%d\n\n", t.DisplayName(), len(list), t.Preferences.Sort, page+1, pages)
	detailed := t.Preferences.Display == trainer.DisplayDetailed
	for i, c := range list[lo:hi] {
		fmt.Fprintf(&sb, "%d. %s\n", lo+i+1, creatureLine(c, t.InTeam(c.UUID), detailed))
	}
	var nav []Button
	if page > 0 {
		nav = append(nav, button("◀ Prev", owner, flow.NSStats, "page", strconv.Itoa(page-1)))
	}
	if page < pages-1 {
		nav = append(nav, button("Next ▶", owner, flow.NSStats, "page", strconv.Itoa(page+1)))
	}
	out := Outgoing{Text: strings.TrimRight(sb.String(), "\n")}
	if len(nav) > 0 {
		out.Keyboard = Keyboard{nav}
	}
	return out
}

func (b *Bot) handleTeam(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	team := t.TeamCreatures()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s's team (%d/%d)\n\n", t.DisplayName(), len(team), trainer.MaxTeam)
	var buttons []Button
	for i, c := range team {
		fmt.Fprintf(&sb, "%d. %s Lv%d\n   %s\n", i+1, c.DisplayName(), c.Level, hpLine(c))
		buttons = append(buttons, button(c.DisplayName(), r.user.ID, flow.NSSelectPokemon, "show", trainer.ShortID(c.UUID)))
	}
	sb.WriteString("\nTap a member to view it. Use /show <name> to add or remove team members.")
	b.reply(ctx, r, Outgoing{Text: sb.String(), Keyboard: chunk(buttons, 3)})
	return nil
}

func (b *Bot) handleSort(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	var row []Button
	for _, k := range trainer.SortKeys {
		label := catalog.DisplayName(string(k))
		if k == t.Preferences.Sort {
			label = "✅ " + label
		}
		row = append(row, button(label, r.user.ID, flow.NSSort, "set", string(k)))
	}
	b.reply(ctx, r, Outgoing{Text: "Sort your collection by:", Keyboard: chunk(row, 2)})
	return nil
}

func (b *Bot) onSort(ctx context.Context, r *request) error {
	key := trainer.SortKey(r.payload.Arg(0))
	if !slices.Contains(trainer.SortKeys, key) {
		return flow.Conflict("unknown sort order")
	}
	if _, err := b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		t.Preferences.Sort = key
		return nil
	}); err != nil {
		return err
	}
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("Your collection is now sorted by %s.", key)})
	return nil
}

func (b *Bot) handleDisplay(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	var row []Button
	for _, m := range []trainer.DisplayMode{trainer.DisplayCompact, trainer.DisplayDetailed} {
		label := catalog.DisplayName(string(m))
		if m == t.Preferences.Display {
			label = "✅ " + label
		}
		row = append(row, button(label, r.user.ID, flow.NSDisplay, "set", string(m)))
	}
	b.reply(ctx, r, Outgoing{Text: "Choose how listings look:", Keyboard: Keyboard{row}})
	return nil
}

func (b *Bot) onDisplay(ctx context.Context, r *request) error {
	mode := trainer.DisplayMode(r.payload.Arg(0))
	if mode != trainer.DisplayCompact && mode != trainer.DisplayDetailed {
		return flow.Conflict("unknown display mode")
	}
	if _, err := b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		t.Preferences.Display = mode
		return nil
	}); err != nil {
		return err
	}
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("Listings are now %s.", mode)})
	return nil
}

// helpOrder is the order categories appear in /help.
var helpOrder = []string{
	command.CategoryTrainer,
	command.CategoryWild,
	command.CategoryManagement,
	command.CategoryBattle,
	command.CategorySocial,
	command.CategoryAdmin,
}

func (b *Bot) handleHelp(ctx context.Context, r *request) error {
	byCat := b.commands.CommandsByCategory()
	var sb strings.Builder
	for _, cat := range helpOrder {
		if cat == command.CategoryAdmin && !b.IsAdmin(r.user.ID) {
			continue
		}
		cmds := byCat[cat]
		if len(cmds) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s\n", catalog.DisplayName(cat))
		for _, c := range cmds {
			usage := "/" + c.Name
			if c.Usage != "" {
				usage += " " + c.Usage
			}
			fmt.Fprintf(&sb, "  %s - %s\n", usage, c.Help)
		}
		sb.WriteByte('\n')
	}
	b.reply(ctx, r, Outgoing{Text: strings.TrimRight(sb.String(), "\n")})
	return nil
}

func (b *Bot) handleClose(ctx context.Context, r *request) error {
	b.cancelFlows(r.user.ID)
	b.reply(ctx, r, Outgoing{Text: "Closed your open menus."})
	return nil
}

func (b *Bot) handleTravel(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	if dest := r.parsed.Arg(0); dest != "" {
		return b.travel(ctx, r, dest)
	}
	var buttons []Button
	for _, name := range b.cat.RegionNames() {
		if name == t.Region {
			continue
		}
		buttons = append(buttons, button(catalog.DisplayName(name), r.user.ID, flow.NSTravel, "go", name))
	}
	b.reply(ctx, r, Outgoing{
		Text:     fmt.Sprintf("You are in %s. Where to?", catalog.DisplayName(t.Region)),
		Keyboard: chunk(buttons, 3),
	})
	return nil
}

func (b *Bot) onTravel(ctx context.Context, r *request) error {
	return b.travel(ctx, r, r.payload.Arg(0))
}

func (b *Bot) travel(ctx context.Context, r *request, dest string) error {
	region, ok := b.cat.Region(dest)
	if !ok {
		if guess, found := flow.ClosestMatch(catalog.NormalizeName(dest), b.cat.RegionNames()); found {
			return flow.Inputf("Unknown region %s. Did you mean %s?", dest, catalog.DisplayName(guess))
		}
		return flow.Inputf("Unknown region %s.", dest)
	}
	if err := b.notBusy(r.user.ID); err != nil {
		return err
	}
	if _, active := b.safari.Get(r.user.ID); active {
		return flow.Inputf("Leave the safari before travelling.")
	}
	name := catalog.NormalizeName(dest)
	if _, err := b.trainers.Update(ctx, r.user.ID, func(t *trainer.Trainer) error {
		if !t.Started {
			return errNotStarted
		}
		t.Region = name
		return nil
	}); err != nil {
		return err
	}
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("Welcome to %s! Species #%d to #%d live here.", catalog.DisplayName(name), region.Start, region.End)})
	return nil
}
