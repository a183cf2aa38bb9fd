package agent_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/flowagent/agent"
	"github.com/tbxark/flowagent/intent"
	"github.com/tbxark/flowagent/slots"
	"github.com/tbxark/flowagent/structured"
	"github.com/tbxark/flowagent/testutil"
	"github.com/tbxark/flowagent/types"
	"github.com/tbxark/flowagent/validate"
)

func intentReply(flow string, inputs map[string]any, missing []string) testutil.Handler {
	return testutil.ToolReply(intent.ToolName, map[string]any{
		"intent":     flow,
		"inputs":     inputs,
		"missing":    missing,
		"confidence": 0.9,
	})
}

func slotsReply(values map[string]any) testutil.Handler {
	return testutil.ToolReply(slots.ToolName, map[string]any{"values": values})
}

func TestBookFlightConversation(t *testing.T) {
	h := newHarness(t, nil)
	h.model.
		On(intent.ToolName, intentReply("book-flight", map[string]any{"destination": "Paris"}, []string{"passengers"})).
		On(slots.ToolName, slotsReply(map[string]any{"passengers": 2})).
		On("", testutil.Sequence(
			testutil.TextReply("DENIED\nThe user did not agree."),
			testutil.TextReply("CONFIRMED\nThe user agreed."),
		))

	resp := h.turn(t, "c1", "book flight to Paris for 2 people")
	assert.Equal(t, types.KindNeedMoreInfo, resp.Kind)
	assert.True(t, resp.NeedMoreInfo)
	assert.Equal(t, "book-flight", resp.Intent)
	assert.Equal(t, []string{"passengers"}, resp.Missing)
	assert.Equal(t, map[string]any{"destination": "Paris"}, resp.Inputs)
	assert.Equal(t, types.PhaseCollectingInputs, resp.Phase)
	assert.Equal(t, `I understood you want to run the flow "Book flight". I still need a few details: Passengers (How many people travel).`, resp.Message)

	resp = h.turn(t, "c1", "two of us")
	assert.Equal(t, types.KindNeedConfirmation, resp.Kind)
	assert.True(t, resp.NeedConfirmation)
	assert.Equal(t, "I will run the flow \"Book flight\" with the following parameters:\n- Destination: Paris\n- Passengers: 2\n\nDo you confirm?", resp.Message)
	assert.Equal(t, types.PhaseAwaitingConfirmation, resp.Phase)
	assert.False(t, h.state(t, "c1").Confirmed)
	assert.Zero(t, h.registry.executionCount())

	resp = h.turn(t, "c1", "yes, go ahead")
	assert.Equal(t, types.KindCompleted, resp.Kind)
	assert.True(t, resp.Completed)
	assert.Equal(t, "Flow \"Book flight\" executed successfully!\n\nResults:\n- Booking reference: ABC123", resp.Message)
	assert.Equal(t, map[string]any{"status": "executed", "bookingRef": "ABC123"}, resp.Result)
	assert.Equal(t, 1, h.registry.executionCount())
	assert.Equal(t, map[string]any{"destination": "Paris", "passengers": 2.0}, h.registry.executions[0].Inputs)

	st := h.state(t, "c1")
	assert.True(t, st.Confirmed)
	assert.True(t, st.Completed)
	assert.Empty(t, st.Missing)
	assert.Equal(t, types.PhaseCompleted, agent.DerivePhase(st))
}

func TestCompletedConversationIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.model.
		On(intent.ToolName, intentReply("book-flight", map[string]any{"destination": "Rome", "passengers": 3}, nil)).
		On("", testutil.TextReply("CONFIRMED"))

	first := h.turn(t, "c1", "book Rome for 3, confirmed")
	require.Equal(t, types.KindCompleted, first.Kind)

	for _, msg := range []string{"again please", "cancel", "CONFIRMED", "book another flight"} {
		resp := h.turn(t, "c1", msg)
		assert.Equal(t, types.KindCompleted, resp.Kind)
		assert.Equal(t, first.Result, resp.Result)
		assert.Equal(t, first.Message, resp.Message)
	}
	assert.Equal(t, 1, h.registry.executionCount())
	assert.Equal(t, 1, h.model.CallCount(intent.ToolName))
	assert.Equal(t, 1, h.model.CallCount(""))
}

func TestFirstTurnCreatesFreshState(t *testing.T) {
	h := newHarness(t, nil)
	h.model.
		On(intent.ToolName, intentReply("book-flight", map[string]any{"destination": "Rome", "passengers": 1}, []string{})).
		On("", testutil.TextReply("AMBIGUOUS"))

	resp := h.turn(t, "new", "fly me to Rome")
	assert.Equal(t, types.KindNeedConfirmation, resp.Kind)

	st := h.state(t, "new")
	assert.Equal(t, "book-flight", st.FlowID)
	assert.False(t, st.Confirmed)
	assert.False(t, st.Completed)
	assert.Empty(t, st.Missing)
	assert.Equal(t, fixedNow, st.CreatedAt)
}

func TestGeneratedConversationID(t *testing.T) {
	h := newHarness(t, nil, agent.WithIDGenerator(func() string { return "generated-1" }))
	h.model.On(intent.ToolName, intentReply("book-flight", nil, []string{"destination", "passengers"}))

	resp := h.turn(t, "", "I want to fly")
	assert.Equal(t, "generated-1", resp.ConversationID)
	assert.Equal(t, []string{"destination", "passengers"}, resp.Missing)
	assert.NotNil(t, h.state(t, "generated-1"))
}

func TestEmptyMessageIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	for _, msg := range []string{"", "   \n"} {
		_, err := h.orch.Turn(context.Background(), &types.TurnRequest{ConversationID: "c1", Message: msg})
		assert.ErrorIs(t, err, types.ErrEmptyMessage)
		assert.Equal(t, types.KindInput, types.ClassifyError(err))
	}
	assert.Zero(t, h.store.Len())
}

func TestMissingListIsSanitized(t *testing.T) {
	h := newHarness(t, nil)
	h.model.On(intent.ToolName, intentReply("book-flight",
		map[string]any{"destination": "Paris", "passengers": nil},
		[]string{"destination", "passengers", "passengers", "seat"}))

	resp := h.turn(t, "c1", "Paris")
	assert.Equal(t, []string{"passengers"}, resp.Missing)
	assert.NotContains(t, h.state(t, "c1").Inputs, "passengers")
}

func TestCoercionAcrossTurn(t *testing.T) {
	h := newHarness(t, nil)
	h.model.
		On(intent.ToolName, intentReply("create-team", map[string]any{
			"org": "acme", "members": "ann, bo ,cy", "public": "sim",
		}, nil)).
		On("", testutil.TextReply("AMBIGUOUS\nunclear"))

	resp := h.turn(t, "c1", "create team at acme with ann, bo, cy, public: sim")
	assert.Equal(t, types.KindNeedConfirmation, resp.Kind)
	assert.Empty(t, resp.Invalid)

	st := h.state(t, "c1")
	assert.Equal(t, true, st.Inputs["public"])
	assert.Equal(t, []any{"ann", "bo", "cy"}, st.Inputs["members"])
	assert.Nil(t, st.InvalidInputs)
}

func TestInvalidInputsAreRequeued(t *testing.T) {
	h := newHarness(t, nil)
	h.model.
		On(intent.ToolName, intentReply("create-team", map[string]any{"org": "acme", "size": "lots", "public": "maybe"}, nil)).
		On(slots.ToolName, slotsReply(map[string]any{"size": 5, "public": "no"})).
		On("", testutil.TextReply("DENIED"))

	resp := h.turn(t, "c1", "create a big team at acme")
	assert.Equal(t, types.KindInvalidInputs, resp.Kind)
	assert.True(t, resp.NeedMoreInfo)
	assert.Equal(t, map[string]string{
		"public": "The field 'Public' must be a boolean value",
		"size":   "The field 'Team size' must be a number",
	}, resp.Invalid)
	assert.Equal(t, "I found 2 problems:\n- The field 'Public' must be a boolean value\n- The field 'Team size' must be a number\n\nPlease correct these values.", resp.Message)

	st := h.state(t, "c1")
	for field := range st.InvalidInputs {
		assert.Contains(t, st.Missing, field)
	}
	assert.Equal(t, []string{"public", "size"}, st.Missing)
	assert.Equal(t, types.PhaseCollectingInputs, agent.DerivePhase(st))

	resp = h.turn(t, "c1", "size 5 and private")
	assert.Equal(t, types.KindNeedConfirmation, resp.Kind)
	st = h.state(t, "c1")
	assert.Empty(t, st.Missing)
	assert.Nil(t, st.InvalidInputs)
	assert.Equal(t, 5.0, st.Inputs["size"])
	assert.Equal(t, false, st.Inputs["public"])

	calls := h.model.Calls(slots.ToolName)
	require.Len(t, calls, 1)
	prompt := testutil.LastUserText(calls[0].Messages)
	assert.Contains(t, prompt, "Team size")
	assert.NotContains(t, prompt, "Organization")
}

func TestSingleInvalidFieldMessage(t *testing.T) {
	h := newHarness(t, validate.RemoteFunc(func(context.Context, string, any) (bool, error) { return false, nil }))
	h.model.On(intent.ToolName, intentReply("create-team", map[string]any{"org": "nope"}, nil))

	resp := h.turn(t, "c1", "team at nope")
	assert.Equal(t, types.KindInvalidInputs, resp.Kind)
	assert.Equal(t, "I found a problem: Unknown organization. Please correct this value.", resp.Message)
	assert.Equal(t, []string{"org"}, resp.Missing)
}

func TestValidationRerunsEveryTurn(t *testing.T) {
	var accept atomic.Bool
	accept.Store(true)
	h := newHarness(t, validate.RemoteFunc(func(context.Context, string, any) (bool, error) {
		return accept.Load(), nil
	}))
	h.model.
		On(intent.ToolName, intentReply("create-team", map[string]any{"org": "acme"}, nil)).
		On("", testutil.Sequence(testutil.TextReply("AMBIGUOUS"), testutil.TextReply("CONFIRMED")))

	resp := h.turn(t, "c1", "team at acme")
	require.Equal(t, types.KindNeedConfirmation, resp.Kind)

	accept.Store(false)
	resp = h.turn(t, "c1", "yes")
	assert.Equal(t, types.KindInvalidInputs, resp.Kind)
	assert.Equal(t, "Unknown organization", resp.Invalid["org"])
	assert.Zero(t, h.registry.executionCount())
	assert.False(t, h.state(t, "c1").Confirmed)
}

func TestConfirmationStrictness(t *testing.T) {
	for _, reply := range []string{"DENIED", "AMBIGUOUS", "Yes, CONFIRMED", "confirmed!", "I think so\nCONFIRMED", ""} {
		t.Run(reply, func(t *testing.T) {
			h := newHarness(t, nil)
			h.model.
				On(intent.ToolName, intentReply("book-flight", map[string]any{"destination": "Oslo", "passengers": 1}, nil)).
				On("", testutil.TextReply(reply))

			resp := h.turn(t, "c1", "Oslo for one")
			assert.Equal(t, types.KindNeedConfirmation, resp.Kind)
			resp = h.turn(t, "c1", "sure")
			assert.Equal(t, types.KindNeedConfirmation, resp.Kind)
			assert.False(t, h.state(t, "c1").Confirmed)
			assert.Zero(t, h.registry.executionCount())
		})
	}
}

func TestConfirmedTokenIsCaseInsensitive(t *testing.T) {
	h := newHarness(t, nil)
	h.model.
		On(intent.ToolName, intentReply("book-flight", map[string]any{"destination": "Oslo", "passengers": 1}, nil)).
		On("", testutil.TextReply("  confirmed  \nuser agreed"))

	resp := h.turn(t, "c1", "Oslo for one, confirm")
	assert.Equal(t, types.KindCompleted, resp.Kind)
}

func TestUnknownIntentIsExtractionError(t *testing.T) {
	h := newHarness(t, nil)
	h.model.On(intent.ToolName, intentReply("delete-everything", nil, nil))

	_, err := h.orch.Turn(context.Background(), &types.TurnRequest{ConversationID: "c1", Message: "wipe it all"})
	assert.ErrorIs(t, err, types.ErrUnknownIntent)
	assert.Equal(t, types.KindExtraction, types.ClassifyError(err))
	assert.Zero(t, h.store.Len())
}

func TestLenientIntentAcceptsUnlistedFlow(t *testing.T) {
	h := newHarness(t, nil, agent.WithLenientIntent())
	h.model.On(intent.ToolName, intentReply("hidden-flow", nil, []string{"note"}))

	resp := h.turn(t, "c1", "do the hidden thing")
	assert.Equal(t, types.KindNeedMoreInfo, resp.Kind)
	assert.Equal(t, "hidden-flow", resp.Intent)
}

func TestUnparsableReplyPersistsNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.model.
		On(intent.ToolName, intentReply("book-flight", map[string]any{"destination": "Paris"}, []string{"passengers"})).
		On(slots.ToolName, testutil.TextReply("I am not sure what you mean"))

	h.turn(t, "c1", "fly to Paris")
	before := h.state(t, "c1")

	_, err := h.orch.Turn(context.Background(), &types.TurnRequest{ConversationID: "c1", Message: "hmm"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrExtraction)
	assert.ErrorIs(t, err, structured.ErrUnparsableReply)

	var te *types.TurnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.PhaseCollectingInputs, te.Phase)
	assert.Equal(t, before, h.state(t, "c1"))
}

func TestUnparsableIntentLeavesNoState(t *testing.T) {
	h := newHarness(t, nil)
	h.model.On(intent.ToolName, testutil.TextReply("no idea"))

	_, err := h.orch.Turn(context.Background(), &types.TurnRequest{ConversationID: "c1", Message: "hello"})
	assert.Equal(t, types.KindExtraction, types.ClassifyError(err))
	ok, err := h.store.Has(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecutionFailureCanBeRetried(t *testing.T) {
	h := newHarness(t, nil)
	h.model.
		On(intent.ToolName, intentReply("book-flight", map[string]any{"destination": "Oslo", "passengers": 1}, nil)).
		On("", testutil.Sequence(testutil.TextReply("AMBIGUOUS"), testutil.TextReply("CONFIRMED")))

	h.turn(t, "c1", "Oslo for one")

	h.registry.setExecErr(errors.New("HTTP 502: upstream down"))
	_, err := h.orch.Turn(context.Background(), &types.TurnRequest{ConversationID: "c1", Message: "yes"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRegistry)
	assert.Equal(t, types.KindRegistry, types.ClassifyError(err))

	st := h.state(t, "c1")
	assert.False(t, st.Completed)
	assert.False(t, st.Confirmed)

	h.registry.setExecErr(nil)
	resp := h.turn(t, "c1", "yes")
	assert.Equal(t, types.KindCompleted, resp.Kind)
	assert.Equal(t, 2, h.registry.executionCount())
}

func TestReset(t *testing.T) {
	h := newHarness(t, nil)
	h.model.On(intent.ToolName, intentReply("book-flight", nil, []string{"destination"}))
	h.turn(t, "c1", "fly")

	require.NoError(t, h.orch.Reset(context.Background(), "c1"))
	_, err := h.orch.State(context.Background(), "c1")
	assert.ErrorIs(t, err, types.ErrConversationNotFound)

	err = h.orch.Reset(context.Background(), "c1")
	assert.ErrorIs(t, err, types.ErrConversationNotFound)
	assert.Equal(t, types.KindInput, types.ClassifyError(err))

	h.turn(t, "c1", "fly again")
	assert.Equal(t, 2, h.model.CallCount(intent.ToolName))
}

func TestStateReturnsCopy(t *testing.T) {
	h := newHarness(t, nil)
	h.model.On(intent.ToolName, intentReply("book-flight", map[string]any{"destination": "Lima"}, []string{"passengers"}))
	h.turn(t, "c1", "Lima")

	st, err := h.orch.State(context.Background(), "c1")
	require.NoError(t, err)
	st.Inputs["destination"] = "changed"
	assert.Equal(t, "Lima", h.state(t, "c1").Inputs["destination"])
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	h := newHarness(t, nil)
	h.model.
		On(intent.ToolName, intentReply("book-flight", map[string]any{"destination": "Paris"}, []string{"passengers"})).
		On(slots.ToolName, slotsReply(map[string]any{}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.Turn(context.Background(), &types.TurnRequest{ConversationID: "shared", Message: "Paris"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.model.CallCount(intent.ToolName))
	assert.Equal(t, 7, h.model.CallCount(slots.ToolName))
}
