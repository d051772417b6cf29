package combat

import (
	"sync"
	"time"

	"github.com/pokebot/pokebot/internal/game/creature"
)

// Mode distinguishes the kinds of battle.
type Mode string

const (
	ModeWild Mode = "wild"
	ModeDuel Mode = "duel"
	ModeGym  Mode = "gym"
)

// Phase is the battle state machine position.
type Phase string

const (
	PhaseChallenge  Phase = "awaiting_accept"
	PhaseTeamSelect Phase = "selecting_team"
	PhaseAction     Phase = "awaiting_action"
	PhaseResolving  Phase = "resolving"
	PhaseSwitch     Phase = "awaiting_switch"
	PhaseEnded      Phase = "ended"
)

// Encounter contexts that affect catch odds.
const (
	ContextHunt    = "hunt"
	ContextFishing = "fishing"
	ContextSafari  = "safari"
	ContextGym     = "gym"
	ContextDuel    = "duel"
)

// NoWinner marks a battle that ended without a winning side.
const NoWinner = -1

// Side is one participant of a battle. AI sides have UserID 0.
type Side struct {
	UserID int64
	Name   string
	AI     bool
	Team   []*creature.Creature
	Active int
	// Participants lists every team UUID that has been active, in order.
	Participants []string
	// Pending is the action submitted for the current duel turn.
	Pending *Action
	// NeedsSwitch is set when the active creature fainted and a replacement is due.
	NeedsSwitch bool
	// Ready is set once a duel team has been chosen.
	Ready bool
}

// ActiveCreature returns the creature currently in battle, or nil.
func (s *Side) ActiveCreature() *creature.Creature {
	if s.Active < 0 || s.Active >= len(s.Team) {
		return nil
	}
	return s.Team[s.Active]
}

// CanSwitchTo reports whether team index i is a valid switch target.
func (s *Side) CanSwitchTo(i int) bool {
	return i >= 0 && i < len(s.Team) && i != s.Active && s.Team[i].Usable()
}

// SwitchTargets returns every valid switch index.
func (s *Side) SwitchTargets() []int {
	var out []int
	for i := range s.Team {
		if s.CanSwitchTo(i) {
			out = append(out, i)
		}
	}
	return out
}

// HasUsable reports whether any team member can still fight.
func (s *Side) HasUsable() bool {
	for _, c := range s.Team {
		if c.Usable() {
			return true
		}
	}
	return false
}

func (s *Side) setActive(i int) {
	s.Active = i
	uuid := s.Team[i].UUID
	for _, p := range s.Participants {
		if p == uuid {
			return
		}
	}
	s.Participants = append(s.Participants, uuid)
}

func firstUsable(team []*creature.Creature) int {
	for i, c := range team {
		if c.Usable() {
			return i
		}
	}
	return -1
}

// Battle is the live state of one encounter. All mutation happens through the
// Engine while mu is held.
type Battle struct {
	mu sync.Mutex

	ID      int64
	Mode    Mode
	Context string
	// Sides[0] is always the initiating user.
	Sides     [2]*Side
	Turn      int
	Phase     Phase
	Winner    int
	GymLeader string
	Reward    int
	StartedAt time.Time

	timer *RoundTimer
	gen   uint64
	// pendingGrants accumulates gym XP until the battle ends.
	pendingGrants []Grant
}

// Snapshot is a read-only copy of the fields a renderer needs.
type Snapshot struct {
	ID        int64
	Mode      Mode
	Context   string
	Turn      int
	Phase     Phase
	Winner    int
	GymLeader string
	Sides     [2]SideView
}

// SideView is a read-only view of a Side.
type SideView struct {
	UserID       int64
	Name         string
	AI           bool
	Active       *creature.Creature
	ActiveIndex  int
	Team         []*creature.Creature
	Submitted    bool
	NeedsSwitch  bool
	Ready        bool
	SwitchTarget []int
}

// Snapshot copies the battle state under its lock. Creatures are cloned.
func (b *Battle) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

func (b *Battle) snapshot() Snapshot {
	s := Snapshot{
		ID: b.ID, Mode: b.Mode, Context: b.Context, Turn: b.Turn,
		Phase: b.Phase, Winner: b.Winner, GymLeader: b.GymLeader,
	}
	for i, side := range b.Sides {
		if side == nil {
			continue
		}
		v := SideView{
			UserID:       side.UserID,
			Name:         side.Name,
			AI:           side.AI,
			ActiveIndex:  side.Active,
			Submitted:    side.Pending != nil,
			NeedsSwitch:  side.NeedsSwitch,
			Ready:        side.Ready,
			SwitchTarget: side.SwitchTargets(),
		}
		for _, c := range side.Team {
			v.Team = append(v.Team, c.Clone())
		}
		if a := side.ActiveCreature(); a != nil {
			v.Active = v.Team[side.Active]
		}
		s.Sides[i] = v
	}
	return s
}

// sideOf returns the index of the side controlled by userID, or -1.
func (b *Battle) sideOf(userID int64) int {
	for i, s := range b.Sides {
		if s != nil && !s.AI && s.UserID == userID {
			return i
		}
	}
	return -1
}

// Users returns the human user ids in the battle.
func (b *Battle) Users() []int64 {
	var out []int64
	for _, s := range b.Sides {
		if s != nil && !s.AI {
			out = append(out, s.UserID)
		}
	}
	return out
}

func other(side int) int { return 1 - side }
