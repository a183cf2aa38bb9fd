package agent

import (
	"fmt"
	"strings"

	"github.com/tbxark/flowagent/types"
)

func baseResponse(id string, state *types.ConversationState) *types.Response {
	return &types.Response{
		ConversationID: id,
		Intent:         state.FlowID,
		Inputs:         cloneInputs(state.Inputs),
		Phase:          DerivePhase(state),
	}
}

// NeedMoreInfo asks for the outstanding fields. The first prompt of a
// conversation introduces the flow; later ones just thank the user.
func NeedMoreInfo(id string, state *types.ConversationState, schema *types.FlowSchema, first bool) *types.Response {
	resp := baseResponse(id, state)
	resp.Kind = types.KindNeedMoreInfo
	resp.Missing = append([]string{}, state.Missing...)
	resp.NeedMoreInfo = true

	fields := describeMissing(schema, state.Missing)
	if first {
		what := schema.Summary
		if what == "" {
			what = fmt.Sprintf("run the flow %q", schema.DisplayName())
		}
		resp.Message = fmt.Sprintf("I understood you want to %s. I still need a few details: %s.", what, fields)
	} else {
		resp.Message = fmt.Sprintf("Thanks. I still need: %s.", fields)
	}
	return resp
}

func describeMissing(schema *types.FlowSchema, missing []string) string {
	parts := make([]string, 0, len(missing))
	for _, name := range missing {
		if f, ok := schema.Field(name); ok {
			parts = append(parts, f.Describe())
			continue
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}

func InvalidInputs(id string, state *types.ConversationState, schema *types.FlowSchema, invalid map[string]string) *types.Response {
	resp := baseResponse(id, state)
	resp.Kind = types.KindInvalidInputs
	resp.Missing = append([]string{}, state.Missing...)
	resp.Invalid = make(map[string]string, len(invalid))
	resp.NeedMoreInfo = true

	problems := make([]string, 0, len(invalid))
	for _, f := range schema.Inputs {
		if msg, ok := invalid[f.Name]; ok {
			problems = append(problems, msg)
		}
	}
	for k, v := range invalid {
		resp.Invalid[k] = v
	}

	if len(problems) == 1 {
		resp.Message = fmt.Sprintf("I found a problem: %s. Please correct this value.", problems[0])
	} else {
		resp.Message = fmt.Sprintf("I found %d problems:\n- %s\n\nPlease correct these values.", len(problems), strings.Join(problems, "\n- "))
	}
	return resp
}

func NeedConfirmation(id string, state *types.ConversationState, schema *types.FlowSchema) *types.Response {
	resp := baseResponse(id, state)
	resp.Kind = types.KindNeedConfirmation
	resp.NeedConfirmation = true

	name := schema.Name
	if name == "" {
		name = schema.Description
	}
	if name == "" {
		name = schema.ID
	}
	resp.Message = fmt.Sprintf("I will run the flow %q with the following parameters:\n%s\n\nDo you confirm?",
		name, types.FormatParameterList(schema, state.Inputs))
	return resp
}

// Completed reports a finished conversation from its stored result, so
// repeating it never needs the registry to run anything.
func Completed(id string, state *types.ConversationState, schema *types.FlowSchema) *types.Response {
	resp := baseResponse(id, state)
	resp.Kind = types.KindCompleted
	resp.Result = state.Result
	resp.Completed = true

	msg := fmt.Sprintf("Flow %q executed successfully!", schema.DisplayName())
	if summary := summarizeOutputs(schema, state.Result); summary != "" {
		msg += "\n\nResults:\n" + summary
	}
	resp.Message = msg
	return resp
}

func summarizeOutputs(schema *types.FlowSchema, result any) string {
	values, ok := result.(map[string]any)
	if !ok || len(schema.Outputs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(schema.Outputs))
	for _, o := range schema.Outputs {
		v, ok := values[o.Name]
		if !ok || types.IsBlank(v) {
			continue
		}
		label := o.Description
		if label == "" {
			label = o.Name
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", label, types.FormatValue(v)))
	}
	return strings.Join(lines, "\n")
}
