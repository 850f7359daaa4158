package analysis

import (
	"sort"

	"github.com/AtlasMeridia/living-archive/constants"
)

// BuildDocumentJSONSchema returns the logical JSON-Schema (draft 2020-12
// subset) for PartialAnalysis as a generic map. This is the single source
// of truth: every provider wire format is a translation of it.
func BuildDocumentJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"document_type": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"category":    map[string]any{"type": "string", "enum": constants.CategoriesAsStrings()},
					"subcategory": map[string]any{"type": "string", "enum": constants.SubcategoriesAsStrings()},
				},
				"required": []string{"category", "subcategory"},
			},
			"title":           map[string]any{"type": "string"},
			"date":            map[string]any{"type": "string", "pattern": `^(\d{4}(-\d{2}){0,2})?$`},
			"date_confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"summary_en":      map[string]any{"type": "string"},
			"summary_zh":      map[string]any{"type": "string"},
			"key_people":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"key_dates":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"sensitivity": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"has_identifier": map[string]any{"type": "boolean", "default": false},
					"has_financial":  map[string]any{"type": "boolean", "default": false},
					"has_medical":    map[string]any{"type": "boolean", "default": false},
				},
				"required": []string{"has_identifier", "has_financial", "has_medical"},
			},
			"tags":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"language": map[string]any{"type": "string"},
			"quality":  map[string]any{"type": "string", "enum": []string{"good", "fair", "poor", ""}},
		},
		"required": []string{"document_type", "title", "date", "date_confidence", "sensitivity"},
	}
}

// MakeStrict translates the logical schema into the strict-mode dialect
// remote structured-output endpoints require: additionalProperties false on
// every object, required listing every property, no defaults. Pure: the
// input map is not modified.
func MakeStrict(schema map[string]any) map[string]any {
	out := deepCopy(schema).(map[string]any)
	makeStrict(out)
	return out
}

func makeStrict(schema map[string]any) {
	if schema["type"] == "object" {
		if props, ok := schema["properties"].(map[string]any); ok {
			schema["additionalProperties"] = false
			required := make([]string, 0, len(props))
			for k := range props {
				required = append(required, k)
			}
			sort.Strings(required)
			schema["required"] = required
			for _, p := range props {
				if pm, ok := p.(map[string]any); ok {
					delete(pm, "default")
					makeStrict(pm)
				}
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		makeStrict(items)
	}
	if defs, ok := schema["$defs"].(map[string]any); ok {
		for _, d := range defs {
			if dm, ok := d.(map[string]any); ok {
				makeStrict(dm)
			}
		}
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
