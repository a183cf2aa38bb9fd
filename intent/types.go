package intent

import (
	"context"

	"github.com/tbxark/flowagent/types"
)

// Request carries the utterance and every flow the user could mean.
type Request struct {
	Utterance string
	Flows     []types.FlowSummary
}

// Result is the oracle's guess. Nothing in it is trusted until the
// orchestrator has checked it against the registry.
type Result struct {
	Intent     string         `json:"intent" jsonschema:"required,description=The id of the flow the user wants to run"`
	Inputs     map[string]any `json:"inputs" jsonschema:"description=Parameter values explicitly mentioned in the message keyed by field name"`
	Missing    []string       `json:"missing" jsonschema:"description=Names of the parameters the message does not provide"`
	Confidence float64        `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=1,description=Confidence in this interpretation"`
}

type Recognizer interface {
	Recognize(ctx context.Context, req *Request) (*Result, error)
}
