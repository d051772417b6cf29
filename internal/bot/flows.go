package bot

import (
	"sync"

	"github.com/looplab/fsm"

	"github.com/pokebot/pokebot/internal/flow"
)

// Flow states and events.
const (
	stateConfirming         = "confirming"
	stateDone               = "done"
	stateCancelled          = "cancelled"
	stateWaitingForNature   = "waiting_for_nature"
	stateSelecting          = "selecting"
	stateUsingCandy         = "using_candy"
	stateConfirmingEvolving = "confirming_evolution"
	stateEditing            = "editing"
	stateOffering           = "offering"
	statePicking            = "picking"
	stateReady              = "ready"

	eventConfirm      = "confirm"
	eventCancel       = "cancel"
	eventChooseNature = "choose_nature"
	eventBack         = "back"
	eventUse          = "use"
	eventOffer        = "offer_evolution"
	eventFinish       = "finish"
	eventEvolve       = "evolve"
	eventSave         = "save"
	eventOfferTrade   = "offer"
	eventPickTrade    = "pick"
	eventReady        = "ready"
)

// confirmFlow is a single yes/no step.
var confirmFlow = flow.Definition{
	Initial: stateConfirming,
	Events: fsm.Events{
		{Name: eventConfirm, Src: []string{stateConfirming}, Dst: stateDone},
		{Name: eventCancel, Src: []string{stateConfirming}, Dst: stateCancelled},
	},
}

// addPokeFlow is the admin grant: pick a nature, then confirm.
var addPokeFlow = flow.Definition{
	Initial: stateWaitingForNature,
	Events: fsm.Events{
		{Name: eventChooseNature, Src: []string{stateWaitingForNature}, Dst: stateConfirming},
		{Name: eventBack, Src: []string{stateConfirming}, Dst: stateWaitingForNature},
		{Name: eventConfirm, Src: []string{stateConfirming}, Dst: stateDone},
		{Name: eventCancel, Src: []string{stateWaitingForNature, stateConfirming}, Dst: stateCancelled},
	},
}

// candyFlow feeds candies and may offer the evolution they unlocked.
var candyFlow = flow.Definition{
	Initial: stateSelecting,
	Events: fsm.Events{
		{Name: eventUse, Src: []string{stateSelecting}, Dst: stateUsingCandy},
		{Name: eventOffer, Src: []string{stateUsingCandy}, Dst: stateConfirmingEvolving},
		{Name: eventFinish, Src: []string{stateUsingCandy}, Dst: stateDone},
		{Name: eventEvolve, Src: []string{stateConfirmingEvolving}, Dst: stateDone},
		{Name: eventCancel, Src: []string{stateSelecting, stateConfirmingEvolving}, Dst: stateCancelled},
	},
}

// movesFlow edits the active move set until it is saved.
var movesFlow = flow.Definition{
	Initial: stateEditing,
	Events: fsm.Events{
		{Name: eventSave, Src: []string{stateEditing}, Dst: stateDone},
		{Name: eventCancel, Src: []string{stateEditing}, Dst: stateCancelled},
	},
}

// tradeFlow runs on the initiator; the partner's entry shares its state.
var tradeFlow = flow.Definition{
	Initial: stateOffering,
	Events: fsm.Events{
		{Name: eventOfferTrade, Src: []string{stateOffering}, Dst: statePicking},
		{Name: eventPickTrade, Src: []string{statePicking}, Dst: stateConfirming},
		{Name: eventConfirm, Src: []string{stateConfirming}, Dst: stateDone},
		{Name: eventCancel, Src: []string{stateOffering, statePicking, stateConfirming}, Dst: stateCancelled},
	},
}

// duelPickFlow collects one duelist's team.
var duelPickFlow = flow.Definition{
	Initial: statePicking,
	Events: fsm.Events{
		{Name: eventReady, Src: []string{statePicking}, Dst: stateReady},
	},
}

// addPokeDraft is an admin grant being prepared.
type addPokeDraft struct {
	Target     int64
	TargetName string
	Species    string
	Level      int
	// Nature is empty for a random nature.
	Nature string
}

// confirmDraft names the creature a yes/no step acts on.
type confirmDraft struct {
	UUID  string
	Name  string
	Count int
	Item  string
}

// movesDraft is an active move set being edited.
type movesDraft struct {
	UUID     string
	Selected []string
}

// suggestion re-runs a command with a corrected name once accepted.
type suggestion struct {
	Command string
	Args    []string
	// ArgIndex is the argument a picked creature replaces.
	ArgIndex int
}

// tradeState is shared by both traders' flows.
type tradeState struct {
	mu    sync.Mutex
	ID    int64
	Users [2]int64
	Names [2]string
	// Offers holds each side's creature UUID.
	Offers    [2]string
	Confirmed [2]bool
	machine   *flow.Flow[*tradeState]
}

// side returns userID's index, or -1.
func (s *tradeState) side(userID int64) int {
	switch userID {
	case s.Users[0]:
		return 0
	case s.Users[1]:
		return 1
	}
	return -1
}

// duelDraft is one duelist's team selection.
type duelDraft struct {
	BattleID int64
	Picks    []string
}
