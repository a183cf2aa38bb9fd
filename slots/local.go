package slots

import (
	"context"
	"regexp"
	"strings"
)

var assignmentPattern = regexp.MustCompile(`(?i)([\p{L}\p{N}_\- ]+?)\s*[:=]\s*([^;\n]+)`)

// LocalExtractor picks up "name: value" or "name = value" pairs, matching
// the left side against field names and labels. Pairs are split on ';'
// and newlines.
type LocalExtractor struct{}

var _ Extractor = LocalExtractor{}

func NewLocalExtractor() LocalExtractor {
	return LocalExtractor{}
}

func (LocalExtractor) Extract(ctx context.Context, req *Request) (map[string]any, error) {
	keys := map[string]string{}
	for _, f := range req.Fields {
		keys[strings.ToLower(f.Name)] = f.Name
		if f.Label != "" {
			keys[strings.ToLower(f.Label)] = f.Name
		}
	}
	out := map[string]any{}
	for _, m := range assignmentPattern.FindAllStringSubmatch(req.Utterance, -1) {
		name, ok := keys[strings.ToLower(strings.TrimSpace(m[1]))]
		if !ok {
			continue
		}
		if v := strings.TrimSpace(m[2]); v != "" {
			out[name] = v
		}
	}
	return out, nil
}

// Single fills the only outstanding field with the whole utterance.
// Useful for answers like "3" to "how many passengers?".
type Single struct {
	Next Extractor
}

func (s Single) Extract(ctx context.Context, req *Request) (map[string]any, error) {
	if s.Next != nil {
		out, err := s.Next.Extract(ctx, req)
		if err != nil || len(out) > 0 || len(req.Fields) != 1 {
			return out, err
		}
	}
	if len(req.Fields) != 1 {
		return map[string]any{}, nil
	}
	v := strings.TrimSpace(req.Utterance)
	if v == "" {
		return map[string]any{}, nil
	}
	return map[string]any{req.Fields[0].Name: v}, nil
}

type FailbackExtractor struct {
	extractors []Extractor
}

var _ Extractor = (*FailbackExtractor)(nil)

func NewFailbackExtractor(extractors ...Extractor) *FailbackExtractor {
	return &FailbackExtractor{extractors: extractors}
}

func (e *FailbackExtractor) Extract(ctx context.Context, req *Request) (map[string]any, error) {
	var lastErr error
	for _, ex := range e.extractors {
		out, err := ex.Extract(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return map[string]any{}, nil
}
