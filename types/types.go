package types

import (
	"fmt"
	"strings"
	"time"
)

type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

// FlowSummary is the short listing entry the registry returns for every flow.
type FlowSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

type Validation struct {
	URL          string `json:"url" yaml:"url"`
	ErrorMessage string `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

type FieldSpec struct {
	Name          string      `json:"name"`
	Type          FieldType   `json:"type"`
	Label         string      `json:"label"`
	Description   string      `json:"description,omitempty"`
	Required      bool        `json:"required"`
	ItemType      FieldType   `json:"itemType,omitempty"`
	Examples      []any       `json:"examples,omitempty"`
	SemanticHints []string    `json:"semanticHints,omitempty"`
	Validation    *Validation `json:"validation,omitempty"`
	DefaultValue  any         `json:"defaultValue,omitempty"`
}

// DisplayName returns the label, falling back to the field name.
func (f FieldSpec) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Describe renders "Label (description)" for user facing prompts.
func (f FieldSpec) Describe() string {
	if f.Description == "" {
		return f.DisplayName()
	}
	return fmt.Sprintf("%s (%s)", f.DisplayName(), f.Description)
}

type OutputSpec struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Description string    `json:"description"`
}

type FlowSchema struct {
	ID                      string       `json:"id"`
	Name                    string       `json:"name,omitempty"`
	Description             string       `json:"description"`
	Summary                 string       `json:"summary,omitempty"`
	Tags                    []string     `json:"tags,omitempty"`
	Inputs                  []FieldSpec  `json:"inputs"`
	Outputs                 []OutputSpec `json:"outputs,omitempty"`
	NaturalLanguageExamples []string     `json:"naturalLanguageExamples,omitempty"`
}

// Field looks up a field spec by name.
func (s *FlowSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Inputs {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Fields returns the specs for names in the given order, skipping unknown names.
func (s *FlowSchema) Fields(names []string) []FieldSpec {
	out := make([]FieldSpec, 0, len(names))
	for _, name := range names {
		if f, ok := s.Field(name); ok {
			out = append(out, f)
		}
	}
	return out
}

func (s *FlowSchema) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// About returns the richest available description of what the flow does.
func (s *FlowSchema) About() string {
	if s.Summary != "" {
		return s.Summary
	}
	return s.Description
}

func (s *FlowSchema) SummaryEntry() FlowSummary {
	return FlowSummary{ID: s.ID, Name: s.Name, Description: s.Description, Tags: s.Tags}
}

type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Invalid map[string]string `json:"invalid"`
	Message string            `json:"message,omitempty"`
}

type ConversationState struct {
	FlowID        string            `json:"flowId,omitempty"`
	Inputs        map[string]any    `json:"inputs"`
	Missing       []string          `json:"missing"`
	Confirmed     bool              `json:"confirmed"`
	Completed     bool              `json:"completed"`
	Result        any               `json:"result,omitempty"`
	InvalidInputs map[string]string `json:"invalidInputs,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func NewConversationState(now time.Time) *ConversationState {
	return &ConversationState{
		Inputs:    map[string]any{},
		Missing:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy whose maps and slices can be mutated independently.
// Input values themselves are shared.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	c.Inputs = make(map[string]any, len(s.Inputs))
	for k, v := range s.Inputs {
		c.Inputs[k] = v
	}
	c.Missing = append([]string{}, s.Missing...)
	if s.InvalidInputs != nil {
		c.InvalidInputs = make(map[string]string, len(s.InvalidInputs))
		for k, v := range s.InvalidInputs {
			c.InvalidInputs[k] = v
		}
	}
	return &c
}

// IsUnset reports whether a value counts as not provided.
func IsUnset(v any) bool {
	return v == nil
}

// IsBlank reports whether a value is unset or an empty/whitespace string.
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

type TurnRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
}

type ResponseKind string

const (
	KindNeedMoreInfo     ResponseKind = "need_more_info"
	KindInvalidInputs    ResponseKind = "invalid_inputs"
	KindNeedConfirmation ResponseKind = "need_confirmation"
	KindCompleted        ResponseKind = "completed"
)

// Response is the union of the four reply payloads a turn can produce.
type Response struct {
	Kind             ResponseKind      `json:"kind"`
	ConversationID   string            `json:"conversationId"`
	Intent           string            `json:"intent,omitempty"`
	Inputs           map[string]any    `json:"inputs"`
	Missing          []string          `json:"missing,omitempty"`
	Invalid          map[string]string `json:"invalid,omitempty"`
	Result           any               `json:"result,omitempty"`
	NeedMoreInfo     bool              `json:"needMoreInfo,omitempty"`
	NeedConfirmation bool              `json:"needConfirmation,omitempty"`
	Completed        bool              `json:"completed,omitempty"`
	Phase            Phase             `json:"phase"`
	Message          string            `json:"message"`
}

type Phase string

const (
	PhaseIntentUnresolved     Phase = "intent_unresolved"
	PhaseCollectingInputs     Phase = "collecting_inputs"
	PhaseValidating           Phase = "validating"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseExecuting            Phase = "executing"
	PhaseCompleted            Phase = "completed"
)
