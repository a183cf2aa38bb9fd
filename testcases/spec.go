package testcases

import "github.com/tbxark/flowagent/types"

func Flows() []*types.FlowSchema {
	return []*types.FlowSchema{
		{
			ID:          "register-user",
			Name:        "Register user",
			Description: "Creates a user account",
			Summary:     "register a new user account",
			Tags:        []string{"user", "signup", "account"},
			Inputs: []types.FieldSpec{
				{Name: "name", Type: types.FieldString, Label: "Name", Description: "Full name", Required: true},
				{Name: "email", Type: types.FieldString, Label: "Email", Description: "A valid email address", Required: true},
				{Name: "age", Type: types.FieldNumber, Label: "Age", Description: "Age in years", Required: true},
				{Name: "newsletter", Type: types.FieldBoolean, Label: "Newsletter", Description: "Subscribe to the newsletter", DefaultValue: false},
			},
			Outputs: []types.OutputSpec{
				{Name: "status", Type: types.FieldString, Description: "Registration status"},
			},
			NaturalLanguageExamples: []string{
				"Sign me up, I'm Ana, ana@example.com, 30 years old",
			},
		},
		{
			ID:          "create-team",
			Name:        "Create team",
			Description: "Creates a team with a list of members",
			Tags:        []string{"team", "members"},
			Inputs: []types.FieldSpec{
				{Name: "team", Type: types.FieldString, Label: "Team name", Required: true},
				{Name: "members", Type: types.FieldArray, ItemType: types.FieldString, Label: "Members", Description: "User names separated by commas", Required: true},
			},
		},
	}
}
