package validate

import "context"

// Remote checks a single value against an external validator endpoint.
type Remote interface {
	Validate(ctx context.Context, url string, value any) (bool, error)
}

type RemoteFunc func(ctx context.Context, url string, value any) (bool, error)

func (f RemoteFunc) Validate(ctx context.Context, url string, value any) (bool, error) {
	return f(ctx, url, value)
}

var (
	DefaultTruthyTokens = []string{"true", "sim", "yes", "s", "y", "1"}
	DefaultFalsyTokens  = []string{"false", "não", "nao", "no", "n", "0"}
)

const DefaultSeparator = ","
