package types_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/flowagent/types"
)

func sampleSchema() *types.FlowSchema {
	return &types.FlowSchema{
		ID:          "create-team",
		Name:        "Create team",
		Description: "Creates a team",
		Inputs: []types.FieldSpec{
			{Name: "team", Type: types.FieldString, Label: "Team name", Required: true},
			{Name: "members", Type: types.FieldArray, ItemType: types.FieldString, Description: "User names", Required: true, Examples: []any{"ana, bruno"}},
			{Name: "private", Type: types.FieldBoolean, Label: "Private"},
		},
	}
}

func TestFieldDescriptions(t *testing.T) {
	schema := sampleSchema()

	f, ok := schema.Field("members")
	require.True(t, ok)
	assert.Equal(t, "members", f.DisplayName())
	assert.Equal(t, "members (User names)", f.Describe())

	f, _ = schema.Field("team")
	assert.Equal(t, "Team name", f.Describe())

	_, ok = schema.Field("unknown")
	assert.False(t, ok)

	fields := schema.Fields([]string{"private", "unknown", "team"})
	require.Len(t, fields, 2)
	assert.Equal(t, "private", fields[0].Name)
	assert.Equal(t, "team", fields[1].Name)
}

func TestSchemaNames(t *testing.T) {
	schema := sampleSchema()
	assert.Equal(t, "Create team", schema.DisplayName())
	assert.Equal(t, "Creates a team", schema.About())

	schema.Name = ""
	schema.Summary = "set up a new team"
	assert.Equal(t, "create-team", schema.DisplayName())
	assert.Equal(t, "set up a new team", schema.About())

	entry := schema.SummaryEntry()
	assert.Equal(t, "create-team", entry.ID)
	assert.Equal(t, "Creates a team", entry.Description)
}

func TestStateClone(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	state := types.NewConversationState(now)
	state.Inputs["team"] = "core"
	state.Missing = []string{"members"}
	state.InvalidInputs = map[string]string{"members": "bad"}

	c := state.Clone()
	c.Inputs["team"] = "other"
	c.Missing[0] = "private"
	c.InvalidInputs["members"] = "changed"

	assert.Equal(t, "core", state.Inputs["team"])
	assert.Equal(t, []string{"members"}, state.Missing)
	assert.Equal(t, "bad", state.InvalidInputs["members"])
	assert.Equal(t, now, c.CreatedAt)

	var nilState *types.ConversationState
	assert.Nil(t, nilState.Clone())
}

func TestUnsetAndBlank(t *testing.T) {
	assert.True(t, types.IsUnset(nil))
	assert.False(t, types.IsUnset(""))
	assert.False(t, types.IsUnset(false))

	assert.True(t, types.IsBlank(nil))
	assert.True(t, types.IsBlank(" \t"))
	assert.False(t, types.IsBlank("x"))
	assert.False(t, types.IsBlank(0.0))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want types.ErrorKind
	}{
		{types.ErrEmptyMessage, types.KindInput},
		{fmt.Errorf("%w: c1", types.ErrConversationNotFound), types.KindInput},
		{fmt.Errorf("%w: intent: boom", types.ErrExtraction), types.KindExtraction},
		{types.ErrUnknownIntent, types.KindExtraction},
		{fmt.Errorf("%w: down", types.ErrRegistry), types.KindRegistry},
		{errors.New("other"), types.KindInternal},
		{&types.TurnError{Kind: types.KindRegistry, Err: errors.New("x")}, types.KindRegistry},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, types.ClassifyError(tt.err), tt.err.Error())
	}
}

func TestTurnError(t *testing.T) {
	err := &types.TurnError{Kind: types.KindExtraction, Phase: types.PhaseCollectingInputs, Err: types.ErrExtraction}
	assert.Equal(t, "extraction error during collecting_inputs: extraction failed", err.Error())
	assert.ErrorIs(t, err, types.ErrExtraction)

	err = &types.TurnError{Kind: types.KindInput, Err: types.ErrEmptyMessage}
	assert.Equal(t, "input error: message is required", err.Error())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", types.FormatValue(nil))
	assert.Equal(t, "ana, bruno", types.FormatValue([]any{"ana", "bruno"}))
	assert.Equal(t, "a, b", types.FormatValue([]string{"a", "b"}))
	assert.Equal(t, "2.5", types.FormatValue(2.5))
	assert.Equal(t, "3", types.FormatValue(float64(3)))
	assert.Equal(t, "true", types.FormatValue(true))
	assert.Equal(t, `{"k":1}`, types.FormatValue(map[string]any{"k": 1}))
}

func TestFormatFlowList(t *testing.T) {
	out := types.FormatFlowList([]types.FlowSummary{
		{ID: "a", Name: "Alpha", Description: "first", Tags: []string{"x", "y"}},
		{ID: "b", Description: "second"},
	})
	assert.Equal(t, "- a: Alpha [x, y]\n- b: second", out)
}

func TestFormatFieldTable(t *testing.T) {
	schema := sampleSchema()
	assert.Empty(t, types.FormatFieldTable("# Fields", nil))

	out := types.FormatFieldTable("# Fields", schema.Inputs)
	assert.True(t, strings.HasPrefix(out, "# Fields\n"))
	assert.Contains(t, out, "array of string")
	assert.Contains(t, out, "Team name")
	assert.Contains(t, out, `["ana, bruno"]`)
}

func TestFormatInputs(t *testing.T) {
	schema := sampleSchema()
	inputs := map[string]any{
		"private": true,
		"team":    "core",
		"extra":   "kept",
		"members": []any{"ana", "bruno"},
	}

	assert.Equal(t,
		"- Team name: core\n- members: ana, bruno\n- Private: true",
		types.FormatInputSummary(schema, inputs))
	assert.Equal(t,
		"- Team name: core\n- members: ana, bruno\n- Private: true\n- extra: kept",
		types.FormatParameterList(schema, inputs))
}

func TestFormatExamples(t *testing.T) {
	assert.Empty(t, types.FormatExamples(nil))
	assert.Equal(t, "# Example commands\n- \"create team core\"", types.FormatExamples([]string{"create team core"}))
}
