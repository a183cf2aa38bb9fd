package structured

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/tidwall/gjson"
)

// ErrUnparsableReply is returned when neither the tool call nor the
// assistant text carries a decodable object.
var ErrUnparsableReply = errors.New("unparsable model reply")

type PromptBuilder[TInput any] func(ctx context.Context, input TInput) ([]*schema.Message, error)

type Chain[TInput, TOutput any] struct {
	PromptBuilder PromptBuilder[TInput]
	ChatModel     model.ToolCallingChatModel
	ToolInfo      *schema.ToolInfo
}

func NewChain[TInput, TOutput any](
	chatModel model.ToolCallingChatModel,
	promptBuilder PromptBuilder[TInput],
	toolName string,
	toolDesc string,
) (*Chain[TInput, TOutput], error) {

	toolInfo, err := utils.GoStruct2ToolInfo[TOutput](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &Chain[TInput, TOutput]{
		PromptBuilder: promptBuilder,
		ChatModel:     chatModel,
		ToolInfo:      toolInfo,
	}, nil
}

func (s *Chain[TInput, TOutput]) Invoke(ctx context.Context, input TInput) (*TOutput, error) {
	messages, err := s.PromptBuilder(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}

	response, err := s.ChatModel.Generate(ctx, messages,
		model.WithTools([]*schema.ToolInfo{s.ToolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, s.ToolInfo.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}
	return Decode[TOutput](response)
}

func (s *Chain[TInput, TOutput]) Stream(ctx context.Context, input TInput) (*schema.StreamReader[*TOutput], error) {
	messages, err := s.PromptBuilder(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}

	streamReader, err := s.ChatModel.Stream(ctx, messages,
		model.WithTools([]*schema.ToolInfo{s.ToolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, s.ToolInfo.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}

	return schema.StreamReaderWithConvert(streamReader, Decode[TOutput]), nil
}

func (s *Chain[TInput, TOutput]) GetToolInfo() *schema.ToolInfo {
	return s.ToolInfo
}

// Decode reads the first tool call of msg, falling back to a JSON object
// in the message text when the model answered without calling the tool.
func Decode[TOutput any](msg *schema.Message) (*TOutput, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: empty response", ErrUnparsableReply)
	}
	var result TOutput
	if len(msg.ToolCalls) > 0 {
		if err := sonic.UnmarshalString(msg.ToolCalls[0].Function.Arguments, &result); err != nil {
			return nil, fmt.Errorf("%w: parse ToolCall arguments failed: %v", ErrUnparsableReply, err)
		}
		return &result, nil
	}
	raw, err := ExtractJSON(msg.Content)
	if err != nil {
		return nil, err
	}
	if err := sonic.UnmarshalString(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableReply, err)
	}
	return &result, nil
}

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

// ExtractJSON strips Markdown fences around a reply and returns the
// outermost JSON object it contains.
func ExtractJSON(content string) (string, error) {
	text := strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object in reply: %q", ErrUnparsableReply, truncate(content, 120))
	}
	text = text[start : end+1]
	if !gjson.Valid(text) {
		return "", fmt.Errorf("%w: malformed JSON in reply: %q", ErrUnparsableReply, truncate(content, 120))
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
