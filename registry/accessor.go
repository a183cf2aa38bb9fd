package registry

import (
	"context"
	"sync"

	"github.com/tbxark/flowagent/types"
)

// Accessor hands out turn-scoped views over a Registry. Nothing is cached
// across turns, so edits made on the registry side show up on the next turn.
type Accessor struct {
	registry Registry
}

func NewAccessor(registry Registry) *Accessor {
	return &Accessor{registry: registry}
}

func (a *Accessor) Registry() Registry {
	return a.registry
}

// Turn returns a view that memoizes lookups for the lifetime of one turn.
func (a *Accessor) Turn() *TurnView {
	return &TurnView{
		registry: a.registry,
		schemas:  map[string]*types.FlowSchema{},
	}
}

type TurnView struct {
	registry Registry

	mu        sync.Mutex
	summaries []types.FlowSummary
	listed    bool
	schemas   map[string]*types.FlowSchema
}

func (v *TurnView) ListFlows(ctx context.Context) ([]types.FlowSummary, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.listed {
		return v.summaries, nil
	}
	flows, err := v.registry.ListFlows(ctx)
	if err != nil {
		return nil, err
	}
	v.summaries = flows
	v.listed = true
	return flows, nil
}

func (v *TurnView) GetFlowSchema(ctx context.Context, flowID string) (*types.FlowSchema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.schemas[flowID]; ok {
		return s, nil
	}
	s, err := v.registry.GetFlowSchema(ctx, flowID)
	if err != nil {
		return nil, err
	}
	v.schemas[flowID] = s
	return s, nil
}

func (v *TurnView) Execute(ctx context.Context, flowID string, inputs map[string]any) (any, error) {
	return v.registry.Execute(ctx, flowID, inputs)
}

// HasFlow reports whether flowID appears in the flow listing.
func (v *TurnView) HasFlow(ctx context.Context, flowID string) (bool, error) {
	flows, err := v.ListFlows(ctx)
	if err != nil {
		return false, err
	}
	for _, f := range flows {
		if f.ID == flowID {
			return true, nil
		}
	}
	return false, nil
}
