package agent

import "github.com/tbxark/flowagent/types"

// DerivePhase reports where a stored conversation sits. It looks only at
// the flow id, the missing list and the two flags.
//
// Validation is transient: a conversation with nothing missing that has not
// been confirmed was last shown a confirmation prompt, and its next turn
// starts by validating again.
func DerivePhase(state *types.ConversationState) types.Phase {
	switch {
	case state == nil || state.FlowID == "":
		return types.PhaseIntentUnresolved
	case state.Completed:
		return types.PhaseCompleted
	case state.Confirmed:
		return types.PhaseExecuting
	case len(state.Missing) > 0:
		return types.PhaseCollectingInputs
	default:
		return types.PhaseAwaitingConfirmation
	}
}
