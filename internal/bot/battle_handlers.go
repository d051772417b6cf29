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
	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

// potionOrder is the order potions are offered in battle.
var potionOrder = []string{"potion", "super-potion", "hyper-potion", "max-potion"}

func (b *Bot) setView(battleID, userID int64, ref MessageRef) {
	if ref.MessageID == 0 {
		return
	}
	b.viewMu.Lock()
	defer b.viewMu.Unlock()
	m := b.views[battleID]
	if m == nil {
		m = make(map[int64]MessageRef, 2)
		b.views[battleID] = m
	}
	m[userID] = ref
}

func (b *Bot) view(battleID, userID int64) (MessageRef, bool) {
	b.viewMu.Lock()
	defer b.viewMu.Unlock()
	ref, ok := b.views[battleID][userID]
	return ref, ok
}

func (b *Bot) dropViews(battleID int64) {
	b.viewMu.Lock()
	defer b.viewMu.Unlock()
	delete(b.views, battleID)
}

func nsFor(mode combat.Mode) string {
	switch mode {
	case combat.ModeGym:
		return flow.NSGym
	case combat.ModeDuel:
		return flow.NSDuel
	}
	return flow.NSWild
}

func sideOf(snap combat.Snapshot, userID int64) int {
	for i, s := range snap.Sides {
		if !s.AI && s.UserID == userID {
			return i
		}
	}
	return -1
}

// actionKeyboard is the main battle menu for side, or nil when the side has
// nothing to do.
func (b *Bot) actionKeyboard(snap combat.Snapshot, side int) Keyboard {
	s := snap.Sides[side]
	owner := s.UserID
	ns := nsFor(snap.Mode)
	bid := id(snap.ID)
	quit := button("🏳 Forfeit", owner, ns, "forfeit", bid)
	if snap.Mode == combat.ModeWild {
		quit = button("🏃 Run", owner, ns, "flee", bid)
	}

	switch snap.Phase {
	case combat.PhaseSwitch:
		if !s.NeedsSwitch {
			return nil
		}
		kb := b.switchButtons(snap, side, false)
		return append(kb, Row(button("🏳 Forfeit", owner, ns, "forfeit", bid)))
	case combat.PhaseAction:
		if s.Submitted || s.Active == nil {
			return nil
		}
	default:
		return nil
	}

	kb := moveButtons(s.Active, owner, ns, snap.ID)
	var row []Button
	if snap.Mode == combat.ModeWild {
		row = append(row, button("🎯 Balls", owner, ns, "balls", bid))
	}
	row = append(row, button("🎒 Bag", owner, ns, "items", bid))
	if len(s.SwitchTarget) > 0 {
		row = append(row, button("🔁 Switch", owner, ns, "team", bid))
	}
	return append(kb, row, Row(quit))
}

func (b *Bot) switchButtons(snap combat.Snapshot, side int, back bool) Keyboard {
	s := snap.Sides[side]
	ns := nsFor(snap.Mode)
	var buttons []Button
	for _, i := range s.SwitchTarget {
		c := s.Team[i]
		label := fmt.Sprintf("%s %d/%d", c.DisplayName(), c.CurrentHP, c.MaxHP)
		buttons = append(buttons, button(label, s.UserID, ns, "switch", id(snap.ID), strconv.Itoa(i)))
	}
	kb := chunk(buttons, 2)
	if back {
		kb = append(kb, Row(button("⬅ Back", s.UserID, ns, "back", id(snap.ID))))
	}
	return kb
}

func (b *Bot) ballButtons(ctx context.Context, snap combat.Snapshot, side int) (Keyboard, error) {
	s := snap.Sides[side]
	balls, err := b.trainers.Balls(ctx, s.UserID)
	if err != nil {
		return nil, err
	}
	if len(balls) == 0 {
		return nil, flow.Inputf("You're out of balls! Try /explore.")
	}
	var buttons []Button
	for _, it := range balls {
		label := fmt.Sprintf("%s x%d", ballLabel(b.cat, it.Name), it.Count)
		buttons = append(buttons, button(label, s.UserID, flow.NSWild, "ball", id(snap.ID), it.Name))
	}
	kb := chunk(buttons, 2)
	return append(kb, Row(button("⬅ Back", s.UserID, flow.NSWild, "back", id(snap.ID)))), nil
}

func ballLabel(cat *catalog.Catalog, name string) string {
	if ball, ok := cat.Ball(name); ok && ball.Display != "" {
		return ball.Display
	}
	return catalog.DisplayName(name)
}

func (b *Bot) potionButtons(ctx context.Context, snap combat.Snapshot, side int) (Keyboard, error) {
	s := snap.Sides[side]
	inv, err := b.trainers.Inventory(ctx, s.UserID)
	if err != nil {
		return nil, err
	}
	ns := nsFor(snap.Mode)
	var buttons []Button
	for _, p := range potionOrder {
		if n := inv.Count(trainer.BucketPotions, p); n > 0 {
			label := fmt.Sprintf("%s x%d", catalog.DisplayName(p), n)
			buttons = append(buttons, button(label, s.UserID, ns, "item", id(snap.ID), p))
		}
	}
	if len(buttons) == 0 {
		return nil, flow.Inputf("You have no potions.")
	}
	kb := chunk(buttons, 2)
	return append(kb, Row(button("⬅ Back", s.UserID, ns, "back", id(snap.ID)))), nil
}

// onBattle handles in-battle buttons of every mode.
// Payload: <ns>:<verb>:<battle id>[:<arg>].
func (b *Bot) onBattle(ctx context.Context, r *request) error {
	bid, err := r.payload.Int64Arg(0)
	if err != nil {
		return flow.Conflict("bad battle id")
	}
	battle, ok := b.engine.Get(bid)
	if !ok {
		return flow.Conflict("this battle is over")
	}
	snap := battle.Snapshot()
	side := sideOf(snap, r.user.ID)
	if side < 0 {
		return flow.ErrNotAuthorized
	}
	b.setView(bid, r.user.ID, r.cb.Message)

	var kb Keyboard
	switch r.payload.Verb {
	case "balls":
		kb, err = b.ballButtons(ctx, snap, side)
	case "items":
		kb, err = b.potionButtons(ctx, snap, side)
	case "team":
		kb = b.switchButtons(snap, side, true)
	case "back":
		kb = b.actionKeyboard(snap, side)
	default:
		a, err := b.action(r, snap, side)
		if err != nil {
			return err
		}
		rep, err := b.engine.Submit(ctx, bid, r.user.ID, a)
		if err != nil {
			return err
		}
		b.showReport(ctx, rep, r.user.ID)
		return nil
	}
	if err != nil {
		return err
	}
	_ = b.edit(ctx, r.cb.Message, Outgoing{Text: battleText(&combat.Report{Battle: snap}), Keyboard: kb})
	return nil
}

// action builds the engine action for a battle button.
func (b *Bot) action(r *request, snap combat.Snapshot, side int) (combat.Action, error) {
	uid := r.user.ID
	switch r.payload.Verb {
	case "move":
		i, err := r.payload.IntArg(1)
		active := snap.Sides[side].Active
		if err != nil || active == nil || i < 0 || i >= len(active.ActiveMoves) {
			return combat.Action{}, flow.Conflict("that move is no longer available")
		}
		return combat.Action{Kind: combat.ActAttack, Move: active.ActiveMoves[i]}, nil
	case "ball":
		ball := r.payload.Arg(1)
		return combat.Action{
			Kind: combat.ActCatch,
			Item: ball,
			Consume: func(ctx context.Context) error {
				return b.trainers.TakeItem(ctx, uid, trainer.BucketBalls, ball)
			},
		}, nil
	case "item":
		potion := r.payload.Arg(1)
		return combat.Action{
			Kind: combat.ActItem,
			Item: potion,
			Consume: func(ctx context.Context) error {
				return b.trainers.TakeItem(ctx, uid, trainer.BucketPotions, potion)
			},
		}, nil
	case "switch":
		i, err := r.payload.IntArg(1)
		if err != nil {
			return combat.Action{}, flow.Conflict("bad switch target")
		}
		return combat.Action{Kind: combat.ActSwitch, Target: i}, nil
	case "flee":
		return combat.Action{Kind: combat.ActFlee}, nil
	case "forfeit":
		return combat.Action{Kind: combat.ActForfeit}, nil
	}
	return combat.Action{}, flow.Conflict("unknown battle action")
}

// showReport updates every participant's battle message and settles a
// finished battle. A duel step without events only touches actor's view.
func (b *Bot) showReport(ctx context.Context, rep *combat.Report, actor int64) {
	snap := rep.Battle
	text := battleText(rep)
	for i, s := range snap.Sides {
		if s.AI || s.UserID == 0 {
			continue
		}
		if rep.Result == nil && len(rep.Events) == 0 && s.UserID != actor {
			continue
		}
		ref, ok := b.view(snap.ID, s.UserID)
		if !ok {
			continue
		}
		out := Outgoing{ChatID: ref.ChatID, Text: text}
		if rep.Result == nil {
			out.Keyboard = b.actionKeyboard(snap, i)
			if out.Keyboard == nil && snap.Mode == combat.ModeDuel {
				out.Text += fmt.Sprintf("\n\nWaiting for %s...", snap.Sides[1-i].Name)
			}
		}
		_ = b.edit(ctx, ref, out)
	}
	if rep.Result != nil {
		b.settle(ctx, rep)
		b.dropViews(snap.ID)
	}
}

// settle persists a finished battle: healed teams with their experience,
// the caught creature, the reward and any badge.
func (b *Bot) settle(ctx context.Context, rep *combat.Report) {
	res := rep.Result
	snap := rep.Battle
	for i, team := range res.Teams {
		side := snap.Sides[i]
		if side.AI || side.UserID == 0 {
			continue
		}
		_, err := b.trainers.Update(ctx, side.UserID, func(t *trainer.Trainer) error {
			t.ReplaceCreatures(team)
			if i == 0 {
				if res.Caught != nil {
					t.AddCreature(res.Caught)
				}
				if res.Reward > 0 {
					t.Currency += res.Reward
				}
				if snap.Mode == combat.ModeGym && res.Winner == 0 {
					if leader, ok := b.cat.GymLeader(snap.GymLeader); ok {
						t.AwardBadge(leader.Badge)
					}
				}
			}
			t.HealTeam()
			return nil
		})
		if err != nil {
			b.logger.Error("saving battle result",
				zap.Int64("battle_id", snap.ID),
				zap.Int64("user_id", side.UserID),
				zap.String("reason", string(res.Reason)),
				zap.Error(err),
			)
		}
	}
	if snap.Mode == combat.ModeDuel {
		for _, s := range snap.Sides {
			b.duels.End(s.UserID)
		}
	}
}

// battleTimedOut receives battles the engine ended on a timer.
func (b *Bot) battleTimedOut(rep *combat.Report) {
	b.showReport(context.Background(), rep, 0)
}

func (b *Bot) handleGym(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	if name := r.parsed.Arg(0); name != "" {
		return b.startGym(ctx, r, t, name)
	}
	leaders := b.cat.GymLeaders(t.Region)
	if len(leaders) == 0 {
		return flow.Inputf("There are no gyms in %s.", catalog.DisplayName(t.Region))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Gyms of %s:\n", catalog.DisplayName(t.Region))
	var buttons []Button
	for _, g := range leaders {
		mark := ""
		if slices.Contains(t.Badges, g.Badge) {
			mark = " 🏅"
		}
		fmt.Fprintf(&sb, "%s: %s, reward %d%s\n", catalog.DisplayName(g.Name), g.Badge, g.Reward, mark)
		buttons = append(buttons, button(catalog.DisplayName(g.Name), r.user.ID, flow.NSGym, "fight", g.Name))
	}
	b.reply(ctx, r, Outgoing{Text: strings.TrimRight(sb.String(), "\n"), Keyboard: chunk(buttons, 3)})
	return nil
}

// onGym starts a gym battle from the leader list or forwards battle buttons.
func (b *Bot) onGym(ctx context.Context, r *request) error {
	if r.payload.Verb != "fight" {
		return b.onBattle(ctx, r)
	}
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	return b.startGym(ctx, r, t, r.payload.Arg(0))
}

func (b *Bot) startGym(ctx context.Context, r *request, t *trainer.Trainer, name string) error {
	leader, ok := b.cat.GymLeader(name)
	if !ok {
		names := make([]string, 0)
		for _, g := range b.cat.GymLeaders("") {
			names = append(names, g.Name)
		}
		if guess, found := flow.ClosestMatch(catalog.NormalizeName(name), names); found {
			return flow.Inputf("There's no gym leader called %s. Did you mean %s?", name, catalog.DisplayName(guess))
		}
		return flow.Inputf("There's no gym leader called %s.", name)
	}
	if _, active := b.safari.Get(r.user.ID); active {
		return flow.Inputf("You're in the safari zone. Leave it first.")
	}
	rep, err := b.engine.StartGym(r.user.ID, t.DisplayName(), t.TeamCreatures(), leader.Name)
	if err != nil {
		return err
	}
	photo := ""
	if a := rep.Battle.Sides[1].Active; a != nil {
		photo = a.Image
	}
	ref := b.reply(ctx, r, Outgoing{
		Text:     fmt.Sprintf("%s wants to battle! Win the %s and %d PokéDollars.\n\n%s", rep.Battle.Sides[1].Name, leader.Badge, leader.Reward, battleText(rep)),
		Photo:    photo,
		Keyboard: b.actionKeyboard(rep.Battle, 0),
	})
	b.setView(rep.Battle.ID, r.user.ID, ref)
	return nil
}

func (b *Bot) handleDuel(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	opp := replyTarget(r)
	if opp.ID == r.user.ID {
		return flow.Inputf("You can't duel yourself.")
	}
	ot, err := b.startedTarget(ctx, opp)
	if err != nil {
		return err
	}
	if ot.Killed {
		return flow.Inputf("%s can't duel right now.", ot.DisplayName())
	}
	rep, err := b.engine.Challenge(r.user.ID, t.DisplayName(), opp.ID, ot.DisplayName())
	if err != nil {
		return err
	}
	bid := id(rep.Battle.ID)
	ref := b.reply(ctx, r, Outgoing{
		Text: fmt.Sprintf("⚔️ %s challenges %s to a duel! Each side brings up to %d creatures.", t.DisplayName(), ot.DisplayName(), combat.DuelTeamSize),
		Keyboard: Keyboard{
			Row(
				button("Accept", opp.ID, flow.NSDuel, "accept", bid),
				button("Decline", opp.ID, flow.NSDuel, "decline", bid),
			),
			Row(button("Withdraw", r.user.ID, flow.NSDuel, "decline", bid)),
		},
	})
	b.setView(rep.Battle.ID, r.user.ID, ref)
	b.setView(rep.Battle.ID, opp.ID, ref)
	return nil
}

// onDuel handles the challenge and team selection; turn buttons go to onBattle.
func (b *Bot) onDuel(ctx context.Context, r *request) error {
	bid, err := r.payload.Int64Arg(0)
	if err != nil {
		return flow.Conflict("bad battle id")
	}
	switch r.payload.Verb {
	case "accept":
		rep, err := b.engine.Accept(bid, r.user.ID)
		if err != nil {
			return err
		}
		snap := rep.Battle
		_ = b.edit(ctx, r.cb.Message, Outgoing{Text: fmt.Sprintf("⚔️ %s vs %s! Pick your teams below.", snap.Sides[0].Name, snap.Sides[1].Name)})
		for _, s := range snap.Sides {
			f := b.duels.Start(s.UserID, duelDraft{BattleID: bid})
			out, err := b.pickView(ctx, s.UserID, f.Data)
			if err != nil {
				return err
			}
			out.ChatID = r.chatID
			b.setView(bid, s.UserID, b.send(ctx, out))
		}
		return nil
	case "decline":
		rep, err := b.engine.Decline(bid, r.user.ID)
		if err != nil {
			return err
		}
		b.showReport(ctx, rep, r.user.ID)
		return nil
	case "pick":
		f, err := b.duelFlow(r.user.ID, bid)
		if err != nil {
			return err
		}
		sid := r.payload.Arg(1)
		if i := slices.Index(f.Data.Picks, sid); i >= 0 {
			f.Data.Picks = slices.Delete(f.Data.Picks, i, i+1)
		} else {
			if len(f.Data.Picks) >= combat.DuelTeamSize {
				return flow.Inputf("You can bring at most %d creatures.", combat.DuelTeamSize)
			}
			f.Data.Picks = append(f.Data.Picks, sid)
		}
		out, err := b.pickView(ctx, r.user.ID, f.Data)
		if err != nil {
			return err
		}
		_ = b.edit(ctx, r.cb.Message, out)
		return nil
	case "ready":
		return b.duelReady(ctx, r, bid)
	}
	return b.onBattle(ctx, r)
}

func (b *Bot) duelFlow(userID, bid int64) (*flow.Flow[duelDraft], error) {
	f, err := b.duels.Get(userID)
	if err != nil {
		return nil, err
	}
	if f.Data.BattleID != bid {
		return nil, flow.Conflict("that duel is over")
	}
	return f, nil
}

// pickView lists the usable team members a duelist may bring.
func (b *Bot) pickView(ctx context.Context, userID int64, d duelDraft) (Outgoing, error) {
	team, err := b.trainers.Team(ctx, userID)
	if err != nil {
		return Outgoing{}, err
	}
	bid := id(d.BattleID)
	var buttons []Button
	for _, c := range team {
		if !c.Usable() {
			continue
		}
		sid := trainer.ShortID(c.UUID)
		label := fmt.Sprintf("%s Lv%d", c.DisplayName(), c.Level)
		if slices.Contains(d.Picks, sid) {
			label = "✅ " + label
		}
		buttons = append(buttons, button(label, userID, flow.NSDuel, "pick", bid, sid))
	}
	kb := chunk(buttons, 2)
	kb = append(kb, Row(
		button(fmt.Sprintf("Ready (%d/%d)", len(d.Picks), combat.DuelTeamSize), userID, flow.NSDuel, "ready", bid),
		button("Decline", userID, flow.NSDuel, "decline", bid),
	))
	return Outgoing{Text: fmt.Sprintf("Choose up to %d creatures for the duel, in battle order.", combat.DuelTeamSize), Keyboard: kb}, nil
}

func (b *Bot) duelReady(ctx context.Context, r *request, bid int64) error {
	f, err := b.duelFlow(r.user.ID, bid)
	if err != nil {
		return err
	}
	if len(f.Data.Picks) == 0 {
		return flow.Inputf("Pick at least one creature.")
	}
	t, err := b.trainers.Get(ctx, r.user.ID)
	if err != nil {
		return err
	}
	team := make([]*creature.Creature, 0, len(f.Data.Picks))
	for _, sid := range f.Data.Picks {
		c, _ := t.FindPrefix(sid)
		if c == nil {
			return flow.Inputf("One of your picks is no longer yours. Pick again.")
		}
		team = append(team, c)
	}
	rep, err := b.engine.SelectTeam(bid, r.user.ID, team)
	if err != nil {
		return err
	}
	if err := f.Fire(ctx, eventReady); err != nil {
		return err
	}
	b.duels.End(r.user.ID)
	b.setView(bid, r.user.ID, r.cb.Message)
	if rep.Battle.Phase == combat.PhaseAction {
		rep.Events = append([]combat.Event{{Narrative: "The duel begins!"}}, rep.Events...)
		b.showReport(ctx, rep, r.user.ID)
		return nil
	}
	_ = b.edit(ctx, r.cb.Message, Outgoing{Text: "Team locked in. Waiting for your opponent..."})
	return nil
}
