package combat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/game/creature"
)

// Challenge opens a duel invitation from challenger to opponent. The
// invitation expires after the accept timeout.
//
// Postcondition: Both users are reserved for the duel until it ends.
func (e *Engine) Challenge(challengerID int64, challenger string, opponentID int64, opponent string) (*Report, error) {
	if challengerID == opponentID {
		return nil, fmt.Errorf("%w: you can't duel yourself", ErrInvalidAction)
	}
	b := &Battle{
		Mode:      ModeDuel,
		Context:   ContextDuel,
		Phase:     PhaseChallenge,
		Winner:    NoWinner,
		StartedAt: e.now(),
	}
	b.Sides[0] = &Side{UserID: challengerID, Name: challenger, Active: -1}
	b.Sides[1] = &Side{UserID: opponentID, Name: opponent, Active: -1}
	if err := e.register(b, challengerID, opponentID); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e.armIdle(b)
	e.logger.Info("duel challenge", zap.Int64("battle_id", b.ID), zap.Int64("challenger", challengerID), zap.Int64("opponent", opponentID))
	return e.report(b, nil, nil), nil
}

// Accept moves a challenge to team selection.
//
// Precondition: userID is the challenged side.
func (e *Engine) Accept(id, userID int64) (*Report, error) {
	b, err := e.lockDuel(id, userID)
	if err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	if b.Phase != PhaseChallenge {
		return nil, fmt.Errorf("%w: challenge already answered", ErrInvalidAction)
	}
	if b.Sides[1].UserID != userID {
		return nil, ErrNotYourTurn
	}
	b.Phase = PhaseTeamSelect
	e.armIdle(b)
	return e.report(b, nil, nil), nil
}

// Decline cancels a challenge or a duel still in team selection. Either side may decline.
func (e *Engine) Decline(id, userID int64) (*Report, error) {
	b, err := e.lockDuel(id, userID)
	if err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	if b.Phase != PhaseChallenge && b.Phase != PhaseTeamSelect {
		return nil, fmt.Errorf("%w: the duel has started, forfeit instead", ErrInvalidAction)
	}
	res := e.finish(b, EndDeclined, NoWinner)
	return e.report(b, nil, res), nil
}

// SelectTeam locks in userID's duel team. Once both sides are ready the
// first turn opens.
//
// Precondition: 1 <= len(team) <= DuelTeamSize, every member usable and distinct.
func (e *Engine) SelectTeam(id, userID int64, team []*creature.Creature) (*Report, error) {
	b, err := e.lockDuel(id, userID)
	if err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	if b.Phase != PhaseTeamSelect {
		return nil, fmt.Errorf("%w: not choosing teams", ErrInvalidAction)
	}
	side := b.Sides[b.sideOf(userID)]
	if side.Ready {
		return nil, ErrAlreadySubmitted
	}
	if err := validateDuelTeam(team); err != nil {
		return nil, err
	}
	side.Team = team
	side.Ready = true

	if !b.Sides[0].Ready || !b.Sides[1].Ready {
		e.armIdle(b)
		return e.report(b, nil, nil), nil
	}
	var events []Event
	for i, s := range b.Sides {
		s.setActive(0)
		events = append(events, switchEvent(i, s))
	}
	b.Phase = PhaseAction
	b.Turn = 1
	e.armIdle(b)
	return e.report(b, events, nil), nil
}

func validateDuelTeam(team []*creature.Creature) error {
	if len(team) == 0 || len(team) > DuelTeamSize {
		return fmt.Errorf("%w: pick 1 to %d creatures", ErrInvalidTeam, DuelTeamSize)
	}
	seen := make(map[string]bool, len(team))
	for _, c := range team {
		if seen[c.UUID] {
			return fmt.Errorf("%w: %s picked twice", ErrInvalidTeam, c.Name)
		}
		seen[c.UUID] = true
		if !c.Usable() {
			return fmt.Errorf("%w: %s can't fight", ErrInvalidTeam, c.Name)
		}
	}
	return nil
}

// lockDuel returns the duel id locked, after checking userID takes part.
func (e *Engine) lockDuel(id, userID int64) (*Battle, error) {
	b, ok := e.Get(id)
	if !ok {
		return nil, ErrBattleNotFound
	}
	b.mu.Lock()
	if b.Mode != ModeDuel {
		b.mu.Unlock()
		return nil, ErrInvalidAction
	}
	if b.sideOf(userID) < 0 {
		b.mu.Unlock()
		return nil, ErrNotParticipant
	}
	if b.Phase == PhaseEnded {
		b.mu.Unlock()
		return nil, ErrBattleOver
	}
	return b, nil
}

// submitDuel records a turn action; the turn resolves once both are in.
//
// Precondition: b.mu is held.
func (e *Engine) submitDuel(ctx context.Context, b *Battle, side int, a Action) ([]Event, *Result, error) {
	s := b.Sides[side]

	switch b.Phase {
	case PhaseSwitch:
		if !s.NeedsSwitch {
			return nil, nil, ErrNotYourTurn
		}
		switch a.Kind {
		case ActSwitch:
			if !s.CanSwitchTo(a.Target) {
				return nil, nil, ErrInvalidSwitch
			}
			s.setActive(a.Target)
			s.NeedsSwitch = false
			events := []Event{switchEvent(side, s)}
			if !b.Sides[0].NeedsSwitch && !b.Sides[1].NeedsSwitch {
				b.Phase = PhaseAction
				b.Turn++
			}
			return events, nil, nil
		case ActForfeit:
			return e.forfeit(b, side)
		}
		return nil, nil, fmt.Errorf("%w: choose a creature to switch in", ErrInvalidAction)
	case PhaseAction:
	default:
		return nil, nil, ErrNotYourTurn
	}

	if s.Pending != nil {
		return nil, nil, ErrAlreadySubmitted
	}
	switch a.Kind {
	case ActAttack:
		if _, err := selectMove(s.ActiveCreature(), a.Move); err != nil {
			return nil, nil, err
		}
	case ActSwitch:
		if !s.CanSwitchTo(a.Target) {
			return nil, nil, ErrInvalidSwitch
		}
	case ActItem:
		if _, err := validatePotion(s.ActiveCreature(), a.Item); err != nil {
			return nil, nil, err
		}
		if err := consume(ctx, a); err != nil {
			return nil, nil, err
		}
	case ActForfeit:
		return e.forfeit(b, side)
	default:
		return nil, nil, fmt.Errorf("%w: %s is not possible in a duel", ErrInvalidAction, a.Kind)
	}
	act := a
	act.Consume = nil
	s.Pending = &act

	if b.Sides[other(side)].Pending == nil {
		return nil, nil, nil
	}
	events, res := e.resolveDuelTurn(b)
	return events, res, nil
}

// resolveDuelTurn applies both pending actions: switches, then items, then
// attacks by active Speed with a coin flip on ties. A side whose active
// faints loses its remaining attack and must switch; a side with nothing
// left loses.
func (e *Engine) resolveDuelTurn(b *Battle) ([]Event, *Result) {
	b.Phase = PhaseResolving
	var events []Event
	defer func() {
		for _, s := range b.Sides {
			s.Pending = nil
		}
	}()

	for i, s := range b.Sides {
		if s.Pending.Kind == ActSwitch && s.CanSwitchTo(s.Pending.Target) {
			s.setActive(s.Pending.Target)
			events = append(events, switchEvent(i, s))
		}
	}
	for i, s := range b.Sides {
		if s.Pending.Kind != ActItem {
			continue
		}
		c := s.ActiveCreature()
		if amount, err := validatePotion(c, s.Pending.Item); err == nil {
			events = append(events, usePotion(i, c, s.Pending.Item, amount))
		}
	}

	order := e.attackOrder(b)
	for _, i := range order {
		s := b.Sides[i]
		if s.NeedsSwitch {
			events = append(events, Event{
				Kind:      EvCancelled,
				Side:      i,
				Narrative: fmt.Sprintf("%s's attack was cancelled.", s.Name),
			})
			continue
		}
		move, err := selectMove(s.ActiveCreature(), s.Pending.Move)
		if err != nil {
			continue
		}
		ev, fainted := e.strike(b, i, move)
		events = append(events, ev)
		if !fainted {
			continue
		}
		loser := b.Sides[other(i)]
		events = append(events, faintEvent(other(i), loser.ActiveCreature()))
		if !loser.HasUsable() {
			return events, e.finish(b, EndVictory, i)
		}
		loser.NeedsSwitch = true
	}

	if b.Sides[0].NeedsSwitch || b.Sides[1].NeedsSwitch {
		b.Phase = PhaseSwitch
	} else {
		b.Phase = PhaseAction
		b.Turn++
	}
	return events, nil
}

// attackOrder returns the sides attacking this turn, fastest first.
func (e *Engine) attackOrder(b *Battle) []int {
	var order []int
	for i, s := range b.Sides {
		if s.Pending.Kind == ActAttack {
			order = append(order, i)
		}
	}
	if len(order) < 2 {
		return order
	}
	s0 := b.Sides[0].ActiveCreature().Stats.Speed
	s1 := b.Sides[1].ActiveCreature().Stats.Speed
	first := 0
	switch {
	case s1 > s0:
		first = 1
	case s1 == s0:
		first = e.src.Intn(2)
	}
	return []int{first, other(first)}
}
