package slots

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/flowagent/structured"
	"github.com/tbxark/flowagent/types"
)

const (
	// ToolName is the tool the extractor forces the model to call.
	ToolName               = "extract_parameters"
	extractToolDescription = "Report the values of the requested parameters found in the user's message."
)

const DefaultSystemPromptTemplate = `You extract specific parameter values from a user's message.

Instructions:
1. Read the message and look for values for the parameters in the "Requested parameters" table.
2. Use the related terms and examples to recognize different ways of expressing the same thing.
3. Return parameters of type "array" as a list of values.
4. Only include parameters you identified with confidence. Leave everything else out.
5. Never invent or assume information that is not explicit in the message.

Call the '%s' tool with the values you found.`

// Reply holds the values keyed by field name.
type Reply struct {
	Values map[string]any `json:"values" jsonschema:"required,description=Values found in the message keyed by parameter name"`
}

// UnmarshalJSON accepts both {"values": {...}} and a flat object of values,
// which is what models tend to write when they answer in plain text.
func (r *Reply) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	if inner, ok := raw["values"].(map[string]any); ok && len(raw) == 1 {
		r.Values = inner
		return nil
	}
	r.Values = raw
	return nil
}

type PromptBuilder func(systemPrompt string) structured.PromptBuilder[*Request]

type options struct {
	systemPromptTemplate string
	promptBuilder        PromptBuilder
}

type Option func(*options)

func WithSystemPromptTemplate(tpl string) Option {
	return func(o *options) {
		o.systemPromptTemplate = tpl
	}
}

func WithPromptBuilder(b PromptBuilder) Option {
	return func(o *options) {
		o.promptBuilder = b
	}
}

func defaultPromptBuilder(systemPrompt string) structured.PromptBuilder[*Request] {
	return func(ctx context.Context, req *Request) ([]*schema.Message, error) {
		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(FormatRequest(req)),
		}, nil
	}
}

func FormatRequest(req *Request) string {
	about := fmt.Sprintf("Flow %s", req.Schema.ID)
	if a := req.Schema.About(); a != "" {
		about = a
	}
	sections := []string{
		"# About the flow\n" + about,
		types.FormatFieldTable("# Requested parameters", req.Fields),
	}
	if ex := types.FormatExamples(req.Schema.NaturalLanguageExamples); ex != "" {
		sections = append(sections, ex)
	}
	sections = append(sections, "# User message\n"+req.Utterance)
	return strings.Join(sections, "\n\n")
}

type ToolBasedExtractor struct {
	chain *structured.Chain[*Request, Reply]
}

var _ Extractor = (*ToolBasedExtractor)(nil)

func NewToolBasedExtractor(chatModel model.ToolCallingChatModel, opts ...Option) (*ToolBasedExtractor, error) {
	o := &options{
		systemPromptTemplate: DefaultSystemPromptTemplate,
		promptBuilder:        defaultPromptBuilder,
	}
	for _, opt := range opts {
		opt(o)
	}
	chain, err := structured.NewChain[*Request, Reply](
		chatModel,
		o.promptBuilder(fmt.Sprintf(o.systemPromptTemplate, ToolName)),
		ToolName,
		extractToolDescription,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedExtractor{chain: chain}, nil
}

func (e *ToolBasedExtractor) Extract(ctx context.Context, req *Request) (map[string]any, error) {
	if len(req.Fields) == 0 {
		return map[string]any{}, nil
	}
	reply, err := e.chain.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	return Scope(req.Fields, reply.Values), nil
}

// Scope keeps only values for the requested fields, dropping nulls.
func Scope(fields []types.FieldSpec, values map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok || types.IsUnset(v) {
			continue
		}
		out[f.Name] = v
	}
	if dropped := len(values) - len(out); dropped > 0 {
		slog.Debug("Dropped out-of-scope values", slog.Int("count", dropped))
	}
	return out
}
