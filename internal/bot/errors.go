package bot

import (
	"errors"
	"strings"
	"unicode"

	"github.com/pokebot/pokebot/internal/flow"
	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/safari"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

// errNotStarted is shown to users without a started trainer.
var errNotStarted = flow.Inputf("You haven't started your journey yet. Use /start first.")

// inputErrors are domain errors whose text is safe to show the user.
var inputErrors = []error{
	combat.ErrAlreadyInBattle,
	combat.ErrInvalidSwitch,
	combat.ErrInvalidAction,
	combat.ErrMoveNotActive,
	combat.ErrNothingToHeal,
	combat.ErrUnknownItem,
	combat.ErrInvalidTeam,
	combat.ErrNoEncounter,
	creature.ErrMaxLevel,
	creature.ErrCannotEvolve,
	creature.ErrTMIncompatible,
	creature.ErrAlreadyKnown,
	creature.ErrTooManyMoves,
	creature.ErrMoveNotKnown,
	creature.ErrMoveNotDamaging,
	creature.ErrVitaminCap,
	creature.ErrUnknownSpecies,
	catalog.ErrUnknownMove,
	trainer.ErrInsufficientFunds,
	trainer.ErrNoBalls,
	trainer.ErrNoItem,
	trainer.ErrCreatureNotFound,
	trainer.ErrInvalidTeam,
	trainer.ErrLastCreature,
	trainer.ErrInvalidAmount,
	safari.ErrSessionActive,
	safari.ErrAlreadyEntered,
	safari.ErrOutOfBalls,
}

// conflictErrors are domain errors that mean a button or step is stale.
var conflictErrors = []error{
	combat.ErrNotYourTurn,
	combat.ErrAlreadySubmitted,
	combat.ErrBattleOver,
	combat.ErrBattleNotFound,
	safari.ErrNoSession,
}

// explain maps domain errors into the flow taxonomy. Errors already in the
// taxonomy and unknown errors pass through unchanged.
func explain(err error) error {
	if err == nil || flow.Classify(err) != flow.KindFatal {
		return err
	}
	switch {
	case errors.Is(err, combat.ErrNoUsableTeam):
		return flow.Inputf("None of your team can fight. Heal up or set active moves with /show.")
	case errors.Is(err, combat.ErrNotParticipant):
		return flow.ErrNotAuthorized
	case errors.Is(err, trainer.ErrNotFound):
		return errNotStarted
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return flow.Conflict(err.Error())
		}
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return &flow.InputError{Msg: sentence(err.Error())}
		}
	}
	return err
}

// sentence capitalizes s and ends it with a period.
func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	s = string(r)
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "!") && !strings.HasSuffix(s, "?") {
		s += "."
	}
	return s
}
