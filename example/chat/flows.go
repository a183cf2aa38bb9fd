package main

import (
	"context"
	"log/slog"

	"github.com/tbxark/flowagent/types"
)

func demoFlows() []*types.FlowSchema {
	return []*types.FlowSchema{
		{
			ID:          "submit-expense",
			Name:        "Submit expense",
			Description: "Submits an expense report for reimbursement",
			Summary:     "submit an expense report",
			Tags:        []string{"expense", "reimbursement", "invoice"},
			Inputs: []types.FieldSpec{
				{Name: "title", Type: types.FieldString, Label: "Title", Description: "What the expense was for", Required: true},
				{Name: "amount", Type: types.FieldNumber, Label: "Amount", Required: true, Examples: []any{42.5}},
				{Name: "date", Type: types.FieldString, Label: "Date", Description: "YYYY-MM-DD", Required: true},
				{Name: "category", Type: types.FieldString, Label: "Category", Description: "travel, meals or office", Required: true},
				{Name: "payee", Type: types.FieldString, Label: "Payee", Required: true},
				{Name: "note", Type: types.FieldString, Label: "Note", DefaultValue: "-"},
			},
			Outputs: []types.OutputSpec{
				{Name: "reference", Type: types.FieldString, Description: "Report reference"},
				{Name: "status", Type: types.FieldString, Description: "Status"},
			},
			NaturalLanguageExamples: []string{"I need to get reimbursed for a taxi ride"},
		},
		{
			ID:          "create-team",
			Name:        "Create team",
			Description: "Creates a team and adds members to it",
			Tags:        []string{"team", "members"},
			Inputs: []types.FieldSpec{
				{Name: "team", Type: types.FieldString, Label: "Team name", Required: true},
				{Name: "members", Type: types.FieldArray, ItemType: types.FieldString, Label: "Members", Description: "comma separated user names", Required: true},
				{Name: "private", Type: types.FieldBoolean, Label: "Private", DefaultValue: true},
			},
		},
	}
}

// submitFlow stands in for the system that would run the flow.
func submitFlow(ctx context.Context, schema *types.FlowSchema, inputs map[string]any) (any, error) {
	slog.Info("Flow submitted", "flow", schema.ID, "inputs", inputs)
	return map[string]any{
		"reference": "DEMO-" + schema.ID,
		"status":    "submitted",
	}, nil
}
