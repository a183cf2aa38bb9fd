package agent

import "context"

type conversationIDContext struct{}

const defaultConversationID = "default"

// WithConversationID routes Agent runs to a conversation.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDContext{}, id)
}

func ConversationIDFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(conversationIDContext{})
	if value == nil {
		return "", false
	}
	id, ok := value.(string)
	return id, ok
}

func conversationIDOrDefault(ctx context.Context) string {
	id, ok := ConversationIDFromContext(ctx)
	if ok && id != "" {
		return id
	}
	return defaultConversationID
}
