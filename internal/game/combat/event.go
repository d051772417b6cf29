package combat

import (
	"fmt"

	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/creature"
)

// EventKind classifies an Event.
type EventKind string

const (
	EvMove      EventKind = "move"
	EvMiss      EventKind = "miss"
	EvFaint     EventKind = "faint"
	EvSwitch    EventKind = "switch"
	EvItem      EventKind = "item"
	EvCatch     EventKind = "catch"
	EvCatchFail EventKind = "catch_fail"
	EvFlee      EventKind = "flee"
	EvFleeFail  EventKind = "flee_fail"
	EvXP        EventKind = "xp"
	EvLevelUp   EventKind = "level_up"
	EvForfeit   EventKind = "forfeit"
	EvTimeout   EventKind = "timeout"
	EvCancelled EventKind = "cancelled"
)

// Event records one thing that happened while resolving actions.
type Event struct {
	Kind   EventKind
	Side   int
	Actor  string
	Target string
	Move   string
	Damage int
	Amount int
	Label  string
	// Narrative is the chat line describing the event.
	Narrative string
}

// EndReason explains why a battle ended.
type EndReason string

const (
	EndVictory  EndReason = "victory"
	EndDefeat   EndReason = "defeat"
	EndCaught   EndReason = "caught"
	EndFled     EndReason = "fled"
	EndForfeit  EndReason = "forfeit"
	EndTimeout  EndReason = "timeout"
	EndDeclined EndReason = "declined"
	EndExpired  EndReason = "expired"
	EndAborted  EndReason = "aborted"
)

// Grant is the experience given to one creature when a battle ends.
type Grant struct {
	Side   int
	UUID   string
	Name   string
	Amount int
	Levels []creature.LevelUp
}

// Result summarises a finished battle for persistence.
type Result struct {
	Reason EndReason
	// Winner is the winning side index or NoWinner.
	Winner int
	// Caught is the captured creature, already owned by side 0.
	Caught *creature.Creature
	Grants []Grant
	// Teams holds the final (healed) battle teams of human sides; AI sides are nil.
	Teams [2][]*creature.Creature
	// Reward is currency earned by side 0.
	Reward int
	// IdleSides lists the sides that timed out.
	IdleSides []int
}

// Report is returned from every engine call that changes a battle.
type Report struct {
	Battle Snapshot
	Events []Event
	// Result is non-nil once the battle has ended.
	Result *Result
}

// Ended reports whether the battle finished during this call.
func (r *Report) Ended() bool { return r.Result != nil }

func name(c *creature.Creature) string {
	if c == nil {
		return ""
	}
	return c.DisplayName()
}

func moveEvent(side int, atk, def *creature.Creature, res MoveResult) Event {
	ev := Event{
		Side:   side,
		Actor:  name(atk),
		Target: name(def),
		Move:   res.Move,
		Damage: res.Damage,
		Label:  res.Label,
	}
	mv := catalog.DisplayName(res.Move)
	if res.Missed {
		ev.Kind = EvMiss
		ev.Narrative = fmt.Sprintf("%s used %s, but it missed!", ev.Actor, mv)
		return ev
	}
	ev.Kind = EvMove
	ev.Narrative = fmt.Sprintf("%s used %s!", ev.Actor, mv)
	if res.Label != "" {
		ev.Narrative += " " + res.Label
	}
	if res.Damage > 0 {
		ev.Narrative += fmt.Sprintf(" %s took %d damage.", ev.Target, res.Damage)
	}
	return ev
}

func faintEvent(side int, c *creature.Creature) Event {
	return Event{Kind: EvFaint, Side: side, Actor: name(c), Narrative: fmt.Sprintf("%s fainted!", name(c))}
}

func switchEvent(side int, s *Side) Event {
	c := s.ActiveCreature()
	return Event{Kind: EvSwitch, Side: side, Actor: name(c), Narrative: fmt.Sprintf("%s sent out %s!", s.Name, name(c))}
}
