package registry

import (
	"context"

	"github.com/tbxark/flowagent/types"
)

// Registry describes flows and runs them.
type Registry interface {
	ListFlows(ctx context.Context) ([]types.FlowSummary, error)
	GetFlowSchema(ctx context.Context, flowID string) (*types.FlowSchema, error)
	Execute(ctx context.Context, flowID string, inputs map[string]any) (any, error)
}
