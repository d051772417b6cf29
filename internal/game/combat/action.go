package combat

import "context"

// ActionKind identifies what a side does on its turn.
type ActionKind string

const (
	ActAttack  ActionKind = "attack"
	ActSwitch  ActionKind = "switch"
	ActItem    ActionKind = "item"
	ActCatch   ActionKind = "catch"
	ActFlee    ActionKind = "flee"
	ActForfeit ActionKind = "forfeit"
)

// Action is one submitted choice.
type Action struct {
	Kind ActionKind
	// Move is the active move name for ActAttack.
	Move string
	// Target is the team index for ActSwitch.
	Target int
	// Item is the potion name for ActItem or the ball name for ActCatch.
	Item string
	// Consume removes the used item from the trainer's inventory. It runs
	// after the action has been validated and before it takes effect; an
	// error aborts the action with the battle unchanged.
	Consume func(ctx context.Context) error
}

// Potions maps potion names to the HP they restore; 0 means full.
var Potions = map[string]int{
	"potion":       20,
	"super-potion": 60,
	"hyper-potion": 120,
	"max-potion":   0,
}

