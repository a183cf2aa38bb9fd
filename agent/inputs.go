package agent

import (
	"fmt"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/tbxark/flowagent/types"
)

// mergeInputs applies extracted values onto the current inputs as an
// RFC 7386 merge patch. Object values merge key by key; everything else is
// replaced. Null values must be dropped by the caller beforehand, since a
// merge patch would read them as deletions.
func mergeInputs(current, extracted map[string]any) (map[string]any, error) {
	if current == nil {
		current = map[string]any{}
	}
	if len(extracted) == 0 {
		return cloneInputs(current), nil
	}
	doc, err := sonic.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode inputs failed: %w", err)
	}
	patch, err := sonic.Marshal(extracted)
	if err != nil {
		return nil, fmt.Errorf("encode extracted inputs failed: %w", err)
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return nil, fmt.Errorf("merge inputs failed: %w", err)
	}
	out := map[string]any{}
	if err := sonic.Unmarshal(merged, &out); err != nil {
		return nil, fmt.Errorf("decode merged inputs failed: %w", err)
	}
	return out, nil
}

func dropUnset(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if !types.IsUnset(v) {
			out[k] = v
		}
	}
	return out
}

func cloneInputs(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// initialMissing keeps the names the oracle reported that the schema
// declares and the inputs do not already hold, without duplicates.
func initialMissing(schema *types.FlowSchema, reported []string, inputs map[string]any) []string {
	out := make([]string, 0, len(reported))
	seen := map[string]bool{}
	for _, name := range reported {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := schema.Field(name); !ok {
			continue
		}
		if !types.IsUnset(inputs[name]) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func stillMissing(missing []string, inputs map[string]any) []string {
	out := make([]string, 0, len(missing))
	for _, name := range missing {
		if types.IsUnset(inputs[name]) {
			out = append(out, name)
		}
	}
	return out
}

// requeueInvalid appends invalid field names to missing in schema order.
func requeueInvalid(schema *types.FlowSchema, missing []string, invalid map[string]string) []string {
	present := make(map[string]bool, len(missing))
	for _, name := range missing {
		present[name] = true
	}
	out := append([]string{}, missing...)
	for _, f := range schema.Inputs {
		if _, bad := invalid[f.Name]; bad && !present[f.Name] {
			out = append(out, f.Name)
			present[f.Name] = true
		}
	}
	return out
}
