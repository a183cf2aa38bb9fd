// Package testutil provides a scripted chat model for exercising the
// oracle-backed components without network access.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Handler produces the reply for one Generate call.
type Handler func(messages []*schema.Message) (*schema.Message, error)

type Call struct {
	Tool     string
	Messages []*schema.Message
}

// ChatModel routes each call to the handler registered for the forced tool
// name. Calls made without tools go to the handler registered under "".
type ChatModel struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

var _ model.ToolCallingChatModel = (*ChatModel)(nil)

func NewChatModel() *ChatModel {
	return &ChatModel{handlers: map[string]Handler{}}
}

func (m *ChatModel) On(tool string, h Handler) *ChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[tool] = h
	return m
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	options := model.GetCommonOptions(nil, opts...)
	tool := ""
	if len(options.Tools) > 0 {
		tool = options.Tools[0].Name
	}

	m.mu.Lock()
	m.calls = append(m.calls, Call{Tool: tool, Messages: input})
	h, ok := m.handlers[tool]
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("testutil: no handler for tool %q", tool)
	}
	return h(input)
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ChatModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// Calls returns the calls made for tool so far.
func (m *ChatModel) Calls(tool string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.calls {
		if c.Tool == tool {
			out = append(out, c)
		}
	}
	return out
}

func (m *ChatModel) CallCount(tool string) int {
	return len(m.Calls(tool))
}

// ToolReply answers with a single tool call carrying args as JSON.
func ToolReply(tool string, args any) Handler {
	return func([]*schema.Message) (*schema.Message, error) {
		raw, err := sonic.MarshalString(args)
		if err != nil {
			return nil, err
		}
		return &schema.Message{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{{
				ID:       "call_1",
				Function: schema.FunctionCall{Name: tool, Arguments: raw},
			}},
		}, nil
	}
}

func TextReply(text string) Handler {
	return func([]*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(text, nil), nil
	}
}

func Fail(err error) Handler {
	return func([]*schema.Message) (*schema.Message, error) {
		return nil, err
	}
}

// Sequence serves handlers in order and keeps repeating the last one.
func Sequence(handlers ...Handler) Handler {
	var mu sync.Mutex
	i := 0
	return func(messages []*schema.Message) (*schema.Message, error) {
		mu.Lock()
		h := handlers[i]
		if i < len(handlers)-1 {
			i++
		}
		mu.Unlock()
		return h(messages)
	}
}

// LastUserText returns the content of the final user message.
func LastUserText(messages []*schema.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == schema.User {
			return messages[i].Content
		}
	}
	return ""
}
