package agent_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tbxark/flowagent/agent"
	"github.com/tbxark/flowagent/store"
	"github.com/tbxark/flowagent/testutil"
	"github.com/tbxark/flowagent/types"
	"github.com/tbxark/flowagent/validate"
)

var (
	flightSchema = &types.FlowSchema{
		ID:          "book-flight",
		Name:        "Book flight",
		Description: "Books a flight for a group",
		Inputs: []types.FieldSpec{
			{Name: "destination", Type: types.FieldString, Label: "Destination", Required: true},
			{Name: "passengers", Type: types.FieldNumber, Label: "Passengers", Required: true, Description: "How many people travel"},
		},
		Outputs: []types.OutputSpec{{Name: "bookingRef", Type: types.FieldString, Description: "Booking reference"}},
	}
	teamSchema = &types.FlowSchema{
		ID:          "create-team",
		Description: "Creates a team in an organization",
		Summary:     "create a team in a GitHub organization",
		Inputs: []types.FieldSpec{
			{Name: "org", Type: types.FieldString, Label: "Organization", Required: true,
				Validation: &types.Validation{URL: "http://validator/orgs", ErrorMessage: "Unknown organization"}},
			{Name: "members", Type: types.FieldArray, Label: "Members"},
			{Name: "public", Type: types.FieldBoolean, Label: "Public"},
			{Name: "size", Type: types.FieldNumber, Label: "Team size"},
		},
	}
	hiddenSchema = &types.FlowSchema{
		ID:          "hidden-flow",
		Description: "Not listed",
		Inputs:      []types.FieldSpec{{Name: "note", Type: types.FieldString, Label: "Note", Required: true}},
	}
)

type execution struct {
	FlowID string
	Inputs map[string]any
}

type fakeRegistry struct {
	mu         sync.Mutex
	listed     []types.FlowSummary
	schemas    map[string]*types.FlowSchema
	execErr    error
	executions []execution
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		listed: []types.FlowSummary{flightSchema.SummaryEntry(), teamSchema.SummaryEntry()},
		schemas: map[string]*types.FlowSchema{
			flightSchema.ID: flightSchema,
			teamSchema.ID:   teamSchema,
			hiddenSchema.ID: hiddenSchema,
		},
	}
}

func (r *fakeRegistry) ListFlows(ctx context.Context) ([]types.FlowSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.FlowSummary{}, r.listed...), nil
}

func (r *fakeRegistry) GetFlowSchema(ctx context.Context, flowID string) (*types.FlowSchema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schemas[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: flow %s not found", types.ErrRegistry, flowID)
	}
	return s, nil
}

func (r *fakeRegistry) Execute(ctx context.Context, flowID string, inputs map[string]any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions = append(r.executions, execution{FlowID: flowID, Inputs: inputs})
	if r.execErr != nil {
		return nil, r.execErr
	}
	return map[string]any{"status": "executed", "bookingRef": "ABC123"}, nil
}

func (r *fakeRegistry) setExecErr(err error) {
	r.mu.Lock()
	r.execErr = err
	r.mu.Unlock()
}

func (r *fakeRegistry) executionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.executions)
}

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type harness struct {
	model    *testutil.ChatModel
	registry *fakeRegistry
	store    *store.MemoryStore
	orch     *agent.Orchestrator
}

func newHarness(t *testing.T, remote validate.Remote, opts ...agent.Option) *harness {
	t.Helper()
	h := &harness{
		model:    testutil.NewChatModel(),
		registry: newFakeRegistry(),
		store:    store.NewMemoryStore(),
	}
	extractor, err := agent.NewToolBasedExtractor(h.model)
	require.NoError(t, err)

	if remote == nil {
		remote = validate.RemoteFunc(func(context.Context, string, any) (bool, error) { return true, nil })
	}
	base := []agent.Option{
		agent.WithValidator(validate.NewEngine(validate.WithRemote(remote))),
		agent.WithClock(func() time.Time { return fixedNow }),
	}
	h.orch = agent.NewOrchestrator(h.registry, extractor, h.store, append(base, opts...)...)
	return h
}

func (h *harness) turn(t *testing.T, id, message string) *types.Response {
	t.Helper()
	resp, err := h.orch.Turn(context.Background(), &types.TurnRequest{ConversationID: id, Message: message})
	require.NoError(t, err)
	return resp
}

func (h *harness) state(t *testing.T, id string) *types.ConversationState {
	t.Helper()
	st, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return st
}
