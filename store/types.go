package store

import (
	"context"
	"errors"

	"github.com/tbxark/flowagent/types"
)

var ErrNotFound = errors.New("state not found")

// Store owns conversation states keyed by conversation id. Set replaces the
// whole state; implementations must not let callers share memory with what
// is stored.
type Store interface {
	Get(ctx context.Context, id string) (*types.ConversationState, error)
	Set(ctx context.Context, id string, state *types.ConversationState) error
	Delete(ctx context.Context, id string) error
	Has(ctx context.Context, id string) (bool, error)
}
