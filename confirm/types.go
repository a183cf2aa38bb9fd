package confirm

import (
	"context"

	"github.com/tbxark/flowagent/types"
)

type Judgment string

const (
	Confirmed Judgment = "CONFIRMED"
	Denied    Judgment = "DENIED"
	Ambiguous Judgment = "AMBIGUOUS"
)

type Request struct {
	Utterance string
	Schema    *types.FlowSchema
	Inputs    map[string]any
}

// Judge decides whether the utterance confirms running the flow. Only
// Confirmed advances a conversation.
type Judge interface {
	Judge(ctx context.Context, req *Request) (Judgment, error)
}
