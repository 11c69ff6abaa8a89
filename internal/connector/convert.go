package connector

import (
	"google.golang.org/genai"
)

// schemaFromMap converts a JSON-Schema-shaped parameter map into the common
// declaration schema. Unknown keywords are ignored; a nil or empty map yields
// an empty object schema so every declaration stays loadable by the live
// session config.
func schemaFromMap(m map[string]any) *genai.Schema {
	if len(m) == 0 {
		return &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
	}

	out := &genai.Schema{Type: typeFromAny(m["type"])}

	if desc, ok := m["description"].(string); ok {
		out.Description = desc
	}
	if format, ok := m["format"].(string); ok {
		out.Format = format
	}
	if props, ok := m["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			sub, _ := raw.(map[string]any)
			out.Properties[name] = schemaFromMap(sub)
		}
		if out.Type == genai.TypeUnspecified {
			out.Type = genai.TypeObject
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		out.Items = schemaFromMap(items)
		if out.Type == genai.TypeUnspecified {
			out.Type = genai.TypeArray
		}
	}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if enum, ok := m["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}

	if out.Type == genai.TypeUnspecified {
		out.Type = genai.TypeString
	}
	return out
}

func typeFromAny(v any) genai.Type {
	s, _ := v.(string)
	switch s {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}
