package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// FormatValue renders an input value the way users typed it: lists are
// comma joined, scalars printed verbatim.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	case float64:
		return fmt.Sprintf("%v", val)
	case bool, int, int64:
		return fmt.Sprintf("%v", val)
	default:
		s, err := sonic.MarshalString(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return s
	}
}

func FormatFlowList(flows []FlowSummary) string {
	var sb strings.Builder
	for _, f := range flows {
		about := f.Name
		if about == "" {
			about = f.Description
		}
		sb.WriteString(fmt.Sprintf("- %s: %s", f.ID, about))
		if len(f.Tags) > 0 {
			sb.WriteString(fmt.Sprintf(" [%s]", strings.Join(f.Tags, ", ")))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func FormatFieldTable(title string, fields []FieldSpec) string {
	if len(fields) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString(title)
	buf.WriteString("\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Label", "Type", "Required", "Description", "Examples", "Related terms")
	for _, f := range fields {
		typ := string(f.Type)
		if f.Type == FieldArray && f.ItemType != "" {
			typ = fmt.Sprintf("array of %s", f.ItemType)
		}
		required := "no"
		if f.Required {
			required = "yes"
		}
		examples := ""
		if len(f.Examples) > 0 {
			examples, _ = sonic.MarshalString(f.Examples)
		}
		_ = table.Append(f.Name, f.DisplayName(), typ, required, f.Description, examples, strings.Join(f.SemanticHints, ", "))
	}
	_ = table.Render()
	return strings.TrimRight(buf.String(), "\n")
}

// FormatInputSummary lists "- Label: value" for every known input, in schema
// order. Inputs the schema does not declare are omitted.
func FormatInputSummary(schema *FlowSchema, inputs map[string]any) string {
	lines := make([]string, 0, len(inputs))
	for _, f := range schema.Inputs {
		v, ok := inputs[f.Name]
		if !ok || IsUnset(v) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", f.DisplayName(), FormatValue(v)))
	}
	return strings.Join(lines, "\n")
}

// FormatParameterList lists every input in the state, labelled when the
// schema knows the field.
func FormatParameterList(schema *FlowSchema, inputs map[string]any) string {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	order := make(map[string]int, len(schema.Inputs))
	for i, f := range schema.Inputs {
		order[f.Name] = i
	}
	sort.SliceStable(keys, func(i, j int) bool {
		oi, iok := order[keys[i]]
		oj, jok := order[keys[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		label := k
		if f, ok := schema.Field(k); ok {
			label = f.DisplayName()
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", label, FormatValue(inputs[k])))
	}
	return strings.Join(lines, "\n")
}

func FormatExamples(examples []string) string {
	if len(examples) == 0 {
		return ""
	}
	lines := make([]string, 0, len(examples))
	for _, ex := range examples {
		lines = append(lines, fmt.Sprintf("- %q", ex))
	}
	return "# Example commands\n" + strings.Join(lines, "\n")
}
