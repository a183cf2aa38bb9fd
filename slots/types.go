package slots

import (
	"context"

	"github.com/tbxark/flowagent/types"
)

// Request scopes extraction to the fields the conversation still needs.
type Request struct {
	Utterance string
	Schema    *types.FlowSchema
	Fields    []types.FieldSpec
}

type Extractor interface {
	Extract(ctx context.Context, req *Request) (map[string]any, error)
}
