package log

import "log/slog"

func ConversationID(id string) slog.Attr {
	return slog.String("conversation_id", id)
}

func FlowID(id string) slog.Attr {
	return slog.String("flow_id", id)
}

func Phase[T ~string](phase T) slog.Attr {
	return slog.String("phase", string(phase))
}

func Field(name string) slog.Attr {
	return slog.String("field", name)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
