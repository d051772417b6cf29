package bot

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/flow"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

const tradePageSize = 10

func (b *Bot) handleTrade(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	opp := replyTarget(r)
	if opp.ID == r.user.ID {
		return flow.Inputf("You can't trade with yourself.")
	}
	ot, err := b.startedTarget(ctx, opp)
	if err != nil {
		return err
	}
	if ot.Killed {
		return flow.Inputf("%s can't trade right now.", ot.DisplayName())
	}
	for _, uid := range []int64{r.user.ID, opp.ID} {
		if err := b.notBusy(uid); err != nil {
			return err
		}
		if _, err := b.trades.Get(uid); err == nil {
			return flow.Inputf("A trade with %s is already open. /close cancels yours.", ot.DisplayName())
		}
	}

	st := &tradeState{
		ID:    int64(r.msg.MessageID),
		Users: [2]int64{r.user.ID, opp.ID},
		Names: [2]string{t.DisplayName(), ot.DisplayName()},
	}
	st.machine = b.trades.Start(r.user.ID, st)
	b.trades.Start(opp.ID, st)
	tid := id(st.ID)
	b.reply(ctx, r, Outgoing{
		Text: fmt.Sprintf("🤝 %s wants to trade with %s!", st.Names[0], st.Names[1]),
		Keyboard: Keyboard{
			Row(
				button("Accept", opp.ID, flow.NSTrade, "accept", tid),
				button("Decline", opp.ID, flow.NSTrade, "cancel", tid),
			),
			Row(button("Withdraw", r.user.ID, flow.NSTrade, "cancel", tid)),
		},
	})
	return nil
}

// tradeFor returns the shared trade a button belongs to.
func (b *Bot) tradeFor(r *request) (*tradeState, error) {
	f, err := b.trades.Get(r.user.ID)
	if err != nil {
		return nil, err
	}
	if id(f.Data.ID) != r.payload.Arg(0) {
		return nil, flow.Conflict("this trade is over")
	}
	return f.Data, nil
}

// onTrade drives a trade. Verbs: accept, page, pick, confirm, cancel.
func (b *Bot) onTrade(ctx context.Context, r *request) error {
	st, err := b.tradeFor(r)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	side := st.side(r.user.ID)
	if side < 0 {
		return flow.ErrNotAuthorized
	}

	switch r.payload.Verb {
	case "cancel":
		if err := st.machine.Fire(ctx, eventCancel); err != nil {
			return err
		}
		b.endTrade(st)
		b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("The trade was cancelled by %s.", st.Names[side])})
		return nil
	case "accept":
		if side != 1 {
			return flow.ErrNotAuthorized
		}
		if err := st.machine.Fire(ctx, eventOfferTrade); err != nil {
			return err
		}
		b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("🤝 %s and %s are trading. Pick a creature to offer below.", st.Names[0], st.Names[1])})
		for i := range st.Users {
			out, err := b.tradePicker(ctx, st, i, 0)
			if err != nil {
				return err
			}
			out.ChatID = r.chatID
			b.send(ctx, out)
		}
		return nil
	case "page":
		page, err := r.payload.IntArg(1)
		if err != nil {
			return flow.Conflict("this button has expired")
		}
		out, err := b.tradePicker(ctx, st, side, page)
		if err != nil {
			return err
		}
		_ = b.edit(ctx, r.cb.Message, out)
		return nil
	case "pick":
		return b.tradePick(ctx, r, st, side)
	case "confirm":
		return b.tradeConfirm(ctx, r, st, side)
	}
	return flow.Conflict("this button has expired")
}

// tradePicker lists one page of side's collection as offer buttons.
func (b *Bot) tradePicker(ctx context.Context, st *tradeState, side, page int) (Outgoing, error) {
	uid := st.Users[side]
	t, err := b.trainers.Get(ctx, uid)
	if err != nil {
		return Outgoing{}, err
	}
	all := t.Sorted()
	pages := max(1, (len(all)+tradePageSize-1)/tradePageSize)
	page = min(max(page, 0), pages-1)
	tid := id(st.ID)
	var buttons []Button
	for _, c := range all[page*tradePageSize : min(len(all), (page+1)*tradePageSize)] {
		label := fmt.Sprintf("%s Lv%d", c.DisplayName(), c.Level)
		buttons = append(buttons, button(label, uid, flow.NSTrade, "pick", tid, trainer.ShortID(c.UUID)))
	}
	kb := chunk(buttons, 2)
	var nav []Button
	if page > 0 {
		nav = append(nav, button("⬅ Prev", uid, flow.NSTrade, "page", tid, strconv.Itoa(page-1)))
	}
	if page < pages-1 {
		nav = append(nav, button("Next ➡", uid, flow.NSTrade, "page", tid, strconv.Itoa(page+1)))
	}
	if len(nav) > 0 {
		kb = append(kb, nav)
	}
	kb = append(kb, Row(button("Cancel trade", uid, flow.NSTrade, "cancel", tid)))
	return Outgoing{Text: fmt.Sprintf("%s, what do you offer? (page %d/%d)", st.Names[side], page+1, pages), Keyboard: kb}, nil
}

func (b *Bot) tradePick(ctx context.Context, r *request, st *tradeState, side int) error {
	if !st.machine.Is(statePicking) {
		return flow.Conflict("offers are locked in")
	}
	if st.Offers[side] != "" {
		return flow.Conflict("you already made your offer")
	}
	t, err := b.trainers.Get(ctx, r.user.ID)
	if err != nil {
		return err
	}
	c, _ := t.FindPrefix(r.payload.Arg(1))
	if c == nil {
		return flow.Conflict("that creature is no longer yours")
	}
	st.Offers[side] = c.UUID
	_ = b.edit(ctx, r.cb.Message, Outgoing{Text: fmt.Sprintf("%s offers %s (Lv%d).", st.Names[side], c.DisplayName(), c.Level)})
	if st.Offers[0] == "" || st.Offers[1] == "" {
		return nil
	}
	if err := st.machine.Fire(ctx, eventPickTrade); err != nil {
		return err
	}
	out, err := b.tradeSummary(ctx, st)
	if err != nil {
		return err
	}
	out.ChatID = r.chatID
	b.send(ctx, out)
	return nil
}

// tradeSummary shows both offers with a confirm button for each side that
// has not confirmed yet.
func (b *Bot) tradeSummary(ctx context.Context, st *tradeState) (Outgoing, error) {
	var offered [2]*creature.Creature
	for i, uid := range st.Users {
		t, err := b.trainers.Get(ctx, uid)
		if err != nil {
			return Outgoing{}, err
		}
		offered[i], _ = t.Find(st.Offers[i])
		if offered[i] == nil {
			return Outgoing{}, flow.Conflict("an offered creature is gone")
		}
	}
	tid := id(st.ID)
	var kb Keyboard
	for i, uid := range st.Users {
		if st.Confirmed[i] {
			continue
		}
		kb = append(kb, Row(
			button("✅ Confirm ("+st.Names[i]+")", uid, flow.NSTrade, "confirm", tid),
			button("Cancel", uid, flow.NSTrade, "cancel", tid),
		))
	}
	text := fmt.Sprintf("%s gives %s (Lv%d)\n%s gives %s (Lv%d)\n\nBoth trainers must confirm.",
		st.Names[0], offered[0].DisplayName(), offered[0].Level,
		st.Names[1], offered[1].DisplayName(), offered[1].Level)
	return Outgoing{Text: text, Keyboard: kb}, nil
}

func (b *Bot) tradeConfirm(ctx context.Context, r *request, st *tradeState, side int) error {
	if !st.machine.Is(stateConfirming) {
		return flow.Conflict("this trade is not ready")
	}
	if st.Confirmed[side] {
		return flow.Conflict("you already confirmed")
	}
	st.Confirmed[side] = true
	if !st.Confirmed[0] || !st.Confirmed[1] {
		out, err := b.tradeSummary(ctx, st)
		if err != nil {
			return err
		}
		_ = b.edit(ctx, r.cb.Message, out)
		return nil
	}

	if !b.guard.Acquire(st.Users[0], flow.NSTrade) {
		return flow.Conflict("already processing")
	}
	defer b.guard.Release(st.Users[0], flow.NSTrade)
	if err := st.machine.MarkDone(); err != nil {
		return err
	}
	if err := st.machine.Fire(ctx, eventConfirm); err != nil {
		return err
	}
	defer b.endTrade(st)
	for _, uid := range st.Users {
		if err := b.notBusy(uid); err != nil {
			return err
		}
	}
	err := b.trainers.UpdatePair(ctx, st.Users[0], st.Users[1], func(a, c *trainer.Trainer) error {
		return trainer.Swap(a, c, st.Offers[0], st.Offers[1])
	})
	if err != nil {
		return err
	}
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("🤝 Trade complete! %s and %s swapped creatures.", st.Names[0], st.Names[1])})
	return nil
}

func (b *Bot) endTrade(st *tradeState) {
	for _, uid := range st.Users {
		if f, err := b.trades.Get(uid); err == nil && f.Data == st {
			b.trades.End(uid)
		}
	}
}

func (b *Bot) handleGive(ctx context.Context, r *request) error {
	t, err := b.started(ctx, r)
	if err != nil {
		return err
	}
	amount, err := strconv.Atoi(r.parsed.Arg(0))
	if err != nil || amount <= 0 {
		return flow.Inputf("Usage: reply with /give <amount>, a positive number.")
	}
	opp := replyTarget(r)
	if opp.ID == r.user.ID {
		return flow.Inputf("You can't give to yourself.")
	}
	ot, err := b.startedTarget(ctx, opp)
	if err != nil {
		return err
	}
	err = b.trainers.UpdatePair(ctx, r.user.ID, opp.ID, func(from, to *trainer.Trainer) error {
		return trainer.Transfer(from, to, amount)
	})
	if err != nil {
		return err
	}
	b.reply(ctx, r, Outgoing{Text: fmt.Sprintf("💸 %s gave %d PokéDollars to %s.", t.DisplayName(), amount, ot.DisplayName())})
	return nil
}

// handleXPin pins the bot message the command replies to.
func (b *Bot) handleXPin(ctx context.Context, r *request) error {
	target := r.msg.ReplyTo
	if !target.From.IsBot || (b.cfg.BotName != "" && target.From.Username != b.cfg.BotName) {
		return flow.Inputf("I can only pin my own messages.")
	}
	ref := MessageRef{ChatID: r.chatID, MessageID: target.MessageID}
	if err := b.tx.Pin(ctx, ref); err != nil {
		if flow.Classify(err) == flow.KindTransient {
			return err
		}
		b.logger.Debug("pin failed", zap.Int64("chat_id", r.chatID), zap.Error(err))
		return flow.Inputf("I couldn't pin that. Am I allowed to pin messages here?")
	}
	b.reply(ctx, r, Outgoing{
		Text:     "📌 Pinned.",
		Keyboard: Keyboard{Row(button("Unpin", r.user.ID, flow.NSXPin, "unpin", strconv.Itoa(target.MessageID)))},
	})
	return nil
}

func (b *Bot) onXPin(ctx context.Context, r *request) error {
	msgID, err := r.payload.IntArg(0)
	if err != nil || r.payload.Verb != "unpin" {
		return flow.Conflict("this button has expired")
	}
	if err := b.tx.Unpin(ctx, MessageRef{ChatID: r.chatID, MessageID: msgID}); err != nil {
		if flow.Classify(err) == flow.KindTransient {
			return err
		}
		return flow.Inputf("I couldn't unpin that message.")
	}
	_ = b.edit(ctx, r.cb.Message, Outgoing{Text: "Unpinned."})
	return nil
}
