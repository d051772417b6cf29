package combat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/game/creature"
)

// submitSolo handles wild and gym battles: the human acts, then the AI side
// answers, strictly alternating.
//
// Precondition: b.mu is held; side 0 is the submitting user.
func (e *Engine) submitSolo(ctx context.Context, b *Battle, a Action) ([]Event, *Result, error) {
	human := b.Sides[0]

	if b.Phase == PhaseSwitch {
		switch a.Kind {
		case ActSwitch:
			if !human.CanSwitchTo(a.Target) {
				return nil, nil, ErrInvalidSwitch
			}
			human.setActive(a.Target)
			human.NeedsSwitch = false
			b.Phase = PhaseAction
			return []Event{switchEvent(0, human)}, nil, nil
		case ActForfeit:
			return e.forfeit(b, 0)
		}
		return nil, nil, fmt.Errorf("%w: choose a creature to switch in", ErrInvalidAction)
	}
	if b.Phase != PhaseAction {
		return nil, nil, ErrNotYourTurn
	}

	var events []Event
	switch a.Kind {
	case ActAttack:
		move, err := selectMove(human.ActiveCreature(), a.Move)
		if err != nil {
			return nil, nil, err
		}
		ev, fainted := e.strike(b, 0, move)
		events = append(events, ev)
		if fainted {
			more, res := e.aiFainted(b)
			events = append(events, more...)
			if res != nil || b.Mode == ModeGym {
				b.Turn++
				return events, res, nil
			}
		}

	case ActCatch:
		if b.Mode != ModeWild {
			return nil, nil, fmt.Errorf("%w: you can't catch a trainer's creature", ErrInvalidAction)
		}
		if err := consume(ctx, a); err != nil {
			return nil, nil, err
		}
		wild := b.Sides[1].ActiveCreature()
		sp, _ := e.cat.Species(wild.SpeciesID)
		ok, p := e.catcher.Attempt(ctx, a.Item, sp, wild, b.Context, b.Turn)
		e.logger.Debug("catch attempt", zap.Int64("battle_id", b.ID), zap.String("ball", a.Item), zap.Float64("p", p), zap.Bool("caught", ok))
		if ok {
			return e.caught(b, a.Item)
		}
		events = append(events, Event{
			Kind:      EvCatchFail,
			Side:      0,
			Target:    name(wild),
			Narrative: fmt.Sprintf("Oh no! %s broke free!", name(wild)),
		})

	case ActFlee:
		if b.Mode != ModeWild {
			return nil, nil, fmt.Errorf("%w: there's no running from a trainer battle", ErrInvalidAction)
		}
		p := FleeProbability(human.ActiveCreature().Stats.Speed, b.Sides[1].ActiveCreature().Stats.Speed)
		if e.src.Float64() < p {
			ev := Event{Kind: EvFlee, Side: 0, Narrative: "Got away safely!"}
			return []Event{ev}, e.finish(b, EndFled, NoWinner), nil
		}
		events = append(events, Event{Kind: EvFleeFail, Side: 0, Narrative: "Couldn't get away!"})

	case ActItem:
		c := human.ActiveCreature()
		amount, err := validatePotion(c, a.Item)
		if err != nil {
			return nil, nil, err
		}
		if err := consume(ctx, a); err != nil {
			return nil, nil, err
		}
		events = append(events, usePotion(0, c, a.Item, amount))

	case ActSwitch:
		if !human.CanSwitchTo(a.Target) {
			return nil, nil, ErrInvalidSwitch
		}
		human.setActive(a.Target)
		events = append(events, switchEvent(0, human))

	case ActForfeit:
		return e.forfeit(b, 0)

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidAction, a.Kind)
	}

	more, res := e.aiTurn(b)
	events = append(events, more...)
	b.Turn++
	return events, res, nil
}

// aiTurn lets the AI side attack the human's active creature.
func (e *Engine) aiTurn(b *Battle) ([]Event, *Result) {
	ai := b.Sides[1].ActiveCreature()
	ev, fainted := e.strike(b, 1, e.chooseAIMove(ai))
	events := []Event{ev}
	if !fainted {
		return events, nil
	}
	human := b.Sides[0]
	events = append(events, faintEvent(0, human.ActiveCreature()))
	if human.HasUsable() {
		human.NeedsSwitch = true
		b.Phase = PhaseSwitch
		return events, nil
	}
	grants, xpEvents := e.grantDefeat(b, ai.Level)
	events = append(events, xpEvents...)
	res := e.finish(b, EndDefeat, 1)
	res.Grants = append(b.pendingGrants, grants...)
	return events, res
}

// aiFainted handles the AI's active creature fainting: XP for the human side,
// then either the leader's next creature or the end of the battle.
func (e *Engine) aiFainted(b *Battle) ([]Event, *Result) {
	aiSide := b.Sides[1]
	defeated := aiSide.ActiveCreature()
	events := []Event{faintEvent(1, defeated)}

	grants, xpEvents := e.grantVictory(b, defeated)
	events = append(events, xpEvents...)

	if b.Mode == ModeWild {
		if sp, ok := e.cat.Species(defeated.SpeciesID); ok {
			finisher := b.Sides[0].ActiveCreature()
			_ = e.factory.GrantEVs(finisher, e.cat.EVYield(sp.Name))
		}
	}

	if b.Mode == ModeGym {
		if next := firstUsable(aiSide.Team); next >= 0 {
			aiSide.setActive(next)
			events = append(events, switchEvent(1, aiSide))
			b.pendingGrants = append(b.pendingGrants, grants...)
			return events, nil
		}
	}

	res := e.finish(b, EndVictory, 0)
	res.Grants = append(b.pendingGrants, grants...)
	if b.Mode == ModeGym {
		res.Reward = b.Reward
	}
	return events, res
}

// caught ends a wild battle with the wild creature joining side 0.
func (e *Engine) caught(b *Battle, ball string) ([]Event, *Result, error) {
	wild := b.Sides[1].ActiveCreature()
	events := []Event{{
		Kind:      EvCatch,
		Side:      0,
		Target:    name(wild),
		Narrative: fmt.Sprintf("Gotcha! %s was caught!", name(wild)),
	}}
	grants, xpEvents := e.grantVictory(b, wild)
	events = append(events, xpEvents...)

	c := wild.Clone()
	uid := b.Sides[0].UserID
	at := e.now()
	c.TrainerID = &uid
	c.CapturedWith = ball
	c.CaughtAt = &at
	c.HealFull()

	res := e.finish(b, EndCaught, 0)
	res.Caught = c
	res.Grants = grants
	return events, res, nil
}

func (e *Engine) forfeit(b *Battle, side int) ([]Event, *Result, error) {
	ev := Event{
		Kind:      EvForfeit,
		Side:      side,
		Actor:     b.Sides[side].Name,
		Narrative: fmt.Sprintf("%s forfeited the battle.", b.Sides[side].Name),
	}
	res := e.finish(b, EndForfeit, other(side))
	res.Grants = b.pendingGrants
	return []Event{ev}, res, nil
}

// grantVictory gives the finisher the victory grant and every other
// participant the participation grant.
func (e *Engine) grantVictory(b *Battle, defeated *creature.Creature) ([]Grant, []Event) {
	side := b.Sides[0]
	finisher := side.ActiveCreature()
	return e.grant(side, func(c *creature.Creature) int {
		base := BaseXP(defeated.Level, c.Level)
		if c == finisher {
			return VictoryXP(base)
		}
		return ParticipationXP(base)
	})
}

// grantDefeat gives every participant the defeat grant.
func (e *Engine) grantDefeat(b *Battle, wildLevel int) ([]Grant, []Event) {
	return e.grant(b.Sides[0], func(c *creature.Creature) int {
		return DefeatXP(BaseXP(wildLevel, c.Level))
	})
}

func (e *Engine) grant(side *Side, amount func(*creature.Creature) int) ([]Grant, []Event) {
	var (
		grants []Grant
		events []Event
	)
	for _, uuid := range side.Participants {
		c := findByUUID(side.Team, uuid)
		if c == nil {
			continue
		}
		xp := amount(c)
		ups, err := e.factory.GrantXP(c, xp)
		if err != nil {
			e.logger.Error("granting experience", zap.String("uuid", uuid), zap.Error(err))
			continue
		}
		grants = append(grants, Grant{Side: 0, UUID: uuid, Name: c.Name, Amount: xp, Levels: ups})
		events = append(events, Event{
			Kind:      EvXP,
			Actor:     name(c),
			Amount:    xp,
			Narrative: fmt.Sprintf("%s gained %d XP.", name(c), xp),
		})
		for _, up := range ups {
			events = append(events, Event{
				Kind:      EvLevelUp,
				Actor:     name(c),
				Amount:    up.Level,
				Narrative: fmt.Sprintf("%s grew to level %d!", name(c), up.Level),
			})
		}
	}
	return grants, events
}

func findByUUID(team []*creature.Creature, uuid string) *creature.Creature {
	for _, c := range team {
		if c.UUID == uuid {
			return c
		}
	}
	return nil
}
