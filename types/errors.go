package types

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyMessage         = errors.New("message is required")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrExtraction           = errors.New("extraction failed")
	ErrUnknownIntent        = errors.New("oracle named an unknown flow")
	ErrRegistry             = errors.New("flow registry failure")
)

type ErrorKind string

const (
	KindInput      ErrorKind = "input"
	KindExtraction ErrorKind = "extraction"
	KindRegistry   ErrorKind = "registry"
	KindInternal   ErrorKind = "internal"
)

// TurnError is the single failure surfaced for a turn. Nothing the turn did
// before failing is persisted.
type TurnError struct {
	Kind  ErrorKind
	Phase Phase
	Err   error
}

func (e *TurnError) Error() string {
	if e.Phase == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error during %s: %v", e.Kind, e.Phase, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// ClassifyError maps a wrapped sentinel to its kind.
func ClassifyError(err error) ErrorKind {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrConversationNotFound):
		return KindInput
	case errors.Is(err, ErrExtraction), errors.Is(err, ErrUnknownIntent):
		return KindExtraction
	case errors.Is(err, ErrRegistry):
		return KindRegistry
	default:
		return KindInternal
	}
}
