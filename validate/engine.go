package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tbxark/flowagent/log"
	"github.com/tbxark/flowagent/types"
)

// Engine normalizes candidate inputs against a flow schema and reports
// per-field problems. It never mutates the map it is given.
type Engine struct {
	remote    Remote
	truthy    map[string]bool
	falsy     map[string]bool
	separator string
}

type Option func(*Engine)

// WithRemote sets the validator used for fields carrying a validation URL.
// A nil remote disables remote validation.
func WithRemote(remote Remote) Option {
	return func(e *Engine) {
		e.remote = remote
	}
}

func WithBooleanTokens(truthy, falsy []string) Option {
	return func(e *Engine) {
		e.truthy = tokenSet(truthy)
		e.falsy = tokenSet(falsy)
	}
}

func WithSeparator(sep string) Option {
	return func(e *Engine) {
		if sep != "" {
			e.separator = sep
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		remote:    NewHTTPValidator(10 * time.Second),
		truthy:    tokenSet(DefaultTruthyTokens),
		falsy:     tokenSet(DefaultFalsyTokens),
		separator: DefaultSeparator,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Validate checks every field in schema order and returns the normalized
// copy of inputs alongside the verdict.
func (e *Engine) Validate(ctx context.Context, schema *types.FlowSchema, inputs map[string]any) (map[string]any, types.ValidationResult) {
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = v
	}
	invalid := map[string]string{}

	for _, field := range schema.Inputs {
		value, present := out[field.Name]
		if field.Required && (!present || types.IsBlank(value)) {
			invalid[field.Name] = fmt.Sprintf("The field '%s' is required", field.DisplayName())
			continue
		}
		if !present || types.IsBlank(value) {
			continue
		}

		coerced, msg := e.coerce(field, value)
		if msg != "" {
			invalid[field.Name] = msg
			continue
		}
		out[field.Name] = coerced

		if field.Validation == nil || field.Validation.URL == "" || e.remote == nil {
			continue
		}
		ok, err := e.remote.Validate(ctx, field.Validation.URL, coerced)
		if err != nil {
			slog.Warn("Remote validation failed", log.Field(field.Name), log.Error(err))
		}
		if err != nil || !ok {
			msg := field.Validation.ErrorMessage
			if msg == "" {
				msg = fmt.Sprintf("The value '%s' is not valid for %s", types.FormatValue(coerced), field.DisplayName())
			}
			invalid[field.Name] = msg
		}
	}

	res := types.ValidationResult{
		Valid:   len(invalid) == 0,
		Invalid: invalid,
	}
	if !res.Valid {
		res.Message = fmt.Sprintf("Found problems in %d field(s)", len(invalid))
	}
	return out, res
}

func (e *Engine) coerce(field types.FieldSpec, value any) (any, string) {
	switch field.Type {
	case types.FieldArray:
		return e.toList(value), ""
	case types.FieldNumber:
		n, ok := toNumber(value)
		if !ok {
			return nil, fmt.Sprintf("The field '%s' must be a number", field.DisplayName())
		}
		return n, ""
	case types.FieldBoolean:
		b, ok := e.toBool(value)
		if !ok {
			return nil, fmt.Sprintf("The field '%s' must be a boolean value", field.DisplayName())
		}
		return b, ""
	default:
		return value, ""
	}
}

func (e *Engine) toList(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case string:
		if strings.Contains(v, e.separator) {
			parts := strings.Split(v, e.separator)
			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = strings.TrimSpace(p)
			}
			return out
		}
	}
	return []any{value}
}

func (e *Engine) toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		token := strings.ToLower(strings.TrimSpace(v))
		if e.truthy[token] {
			return true, true
		}
		if e.falsy[token] {
			return false, true
		}
	}
	return false, false
}

func toNumber(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ApplyDefaults replaces empty-string values with the field's default.
func ApplyDefaults(schema *types.FlowSchema, inputs map[string]any) map[string]any {
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = v
	}
	for _, field := range schema.Inputs {
		v, ok := out[field.Name]
		if !ok || v == nil || field.DefaultValue == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			out[field.Name] = field.DefaultValue
		}
	}
	return out
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[strings.ToLower(t)] = true
	}
	return set
}
