package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"

	"github.com/tbxark/flowagent/structured"
	"github.com/tbxark/flowagent/types"
)

const (
	// ToolName is the tool the recognizer forces the model to call.
	ToolName                 = "recognize_flow"
	recognizeToolDescription = "Report which flow the user wants to run and the parameters mentioned in the message."
)

// DefaultSystemPromptTemplate takes the tool name as its single "%s" placeholder.
const DefaultSystemPromptTemplate = `You identify which automated flow a user wants to run from a natural-language command, and extract the parameters they mention.

Instructions:
1. Pick the flow from the "Available flows" list that matches the message. If none matches clearly, pick the closest one.
2. Extract every parameter value the message explicitly mentions. Do not invent values.
3. List the names of the parameters that were not provided.
4. Rate your confidence from 0 to 1.

Values in "inputs" must match the type the flow expects.

Call the '%s' tool with the result.`

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

func newOptions(opts ...Option) *options {
	o := &options{
		systemPromptTemplate: DefaultSystemPromptTemplate,
		promptBuilder:        defaultPromptBuilder,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func defaultPromptBuilder(systemPrompt string) structured.PromptBuilder[*Request] {
	return func(ctx context.Context, req *Request) ([]*schema.Message, error) {
		message, err := FormatRequest(req)
		if err != nil {
			return nil, fmt.Errorf("format intent request failed: %w", err)
		}
		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(message),
		}, nil
	}
}

// FormatRequest renders the flow list, the expected reply shape and the
// utterance as Markdown sections.
func FormatRequest(req *Request) (string, error) {
	replySchema, err := json.Marshal(jsonschema.Reflect(&Result{}))
	if err != nil {
		return "", fmt.Errorf("failed to marshal reply schema: %w", err)
	}
	sections := []string{
		"# Available flows\n" + types.FormatFlowList(req.Flows),
		"# Reply schema\n```json\n" + string(replySchema) + "\n```",
		"# User message\n" + req.Utterance,
	}
	return strings.Join(sections, "\n\n"), nil
}

type ToolBasedRecognizer struct {
	chain *structured.Chain[*Request, Result]
}

var _ Recognizer = (*ToolBasedRecognizer)(nil)

func NewToolBasedRecognizer(chatModel model.ToolCallingChatModel, opts ...Option) (*ToolBasedRecognizer, error) {
	o := newOptions(opts...)
	chain, err := structured.NewChain[*Request, Result](
		chatModel,
		o.promptBuilder(fmt.Sprintf(o.systemPromptTemplate, ToolName)),
		ToolName,
		recognizeToolDescription,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedRecognizer{chain: chain}, nil
}

func (r *ToolBasedRecognizer) Recognize(ctx context.Context, req *Request) (*Result, error) {
	result, err := r.chain.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	if result == nil || strings.TrimSpace(result.Intent) == "" {
		return nil, fmt.Errorf("%w: empty intent returned by %s", structured.ErrUnparsableReply, ToolName)
	}
	result.Intent = strings.TrimSpace(result.Intent)
	if result.Inputs == nil {
		result.Inputs = map[string]any{}
	}
	return result, nil
}
