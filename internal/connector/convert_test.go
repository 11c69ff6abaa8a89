package connector

import (
	"testing"

	"google.golang.org/genai"
)

func TestSchemaFromMap_NestedObject(t *testing.T) {
	s := schemaFromMap(map[string]any{
		"type":        "object",
		"description": "send args",
		"properties": map[string]any{
			"to":    map[string]any{"type": "string", "format": "email"},
			"count": map[string]any{"type": "integer"},
			"labels": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "enum": []any{"work", "personal"}},
			},
		},
		"required": []any{"to"},
	})

	if s.Type != genai.TypeObject || s.Description != "send args" {
		t.Errorf("unexpected root schema %+v", s)
	}
	if len(s.Required) != 1 || s.Required[0] != "to" {
		t.Errorf("unexpected required %v", s.Required)
	}
	if s.Properties["to"].Type != genai.TypeString || s.Properties["to"].Format != "email" {
		t.Errorf("unexpected to schema %+v", s.Properties["to"])
	}
	if s.Properties["count"].Type != genai.TypeInteger {
		t.Errorf("unexpected count schema %+v", s.Properties["count"])
	}
	labels := s.Properties["labels"]
	if labels.Type != genai.TypeArray || labels.Items == nil {
		t.Fatalf("unexpected labels schema %+v", labels)
	}
	if len(labels.Items.Enum) != 2 {
		t.Errorf("enum not carried: %v", labels.Items.Enum)
	}
}

func TestSchemaFromMap_EmptyYieldsObject(t *testing.T) {
	for _, m := range []map[string]any{nil, {}} {
		s := schemaFromMap(m)
		if s.Type != genai.TypeObject {
			t.Errorf("empty map should become an object schema, got %v", s.Type)
		}
		if s.Properties == nil {
			t.Error("empty object schema needs a non-nil Properties map")
		}
	}
}

func TestSchemaFromMap_InfersMissingType(t *testing.T) {
	withProps := schemaFromMap(map[string]any{
		"properties": map[string]any{"x": map[string]any{"type": "string"}},
	})
	if withProps.Type != genai.TypeObject {
		t.Errorf("properties imply object, got %v", withProps.Type)
	}

	withItems := schemaFromMap(map[string]any{
		"items": map[string]any{"type": "string"},
	})
	if withItems.Type != genai.TypeArray {
		t.Errorf("items imply array, got %v", withItems.Type)
	}

	bare := schemaFromMap(map[string]any{"description": "anything"})
	if bare.Type != genai.TypeString {
		t.Errorf("typeless leaf defaults to string, got %v", bare.Type)
	}
}
