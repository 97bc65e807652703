package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func summarySchema() *Schema {
	return &Schema{
		Name:        "test-summary",
		Description: "A short learner summary",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{"type": "string", "minLength": 1},
				"tone":    map[string]any{"type": "string", "enum": []any{"reassuring", "neutral", "urgent"}},
				"steps": map[string]any{
					"type":     "array",
					"items":    map[string]any{"type": "string"},
					"maxItems": 3,
				},
				"sessions": map[string]any{"type": "integer", "minimum": 0},
			},
			"required": []any{"summary", "tone"},
		},
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"summary":"Counts on fingers.","tone":"neutral","steps":["dot cards"],"sessions":4}`, false},
		{"optional fields omitted", `{"summary":"Doing well.","tone":"reassuring"}`, false},
		{"missing required", `{"summary":"No tone."}`, true},
		{"empty summary", `{"summary":"","tone":"neutral"}`, true},
		{"enum violation", `{"summary":"x","tone":"angry"}`, true},
		{"wrong item type", `{"summary":"x","tone":"neutral","steps":[1,2]}`, true},
		{"too many steps", `{"summary":"x","tone":"neutral","steps":["a","b","c","d"]}`, true},
		{"fractional integer", `{"summary":"x","tone":"neutral","sessions":1.5}`, true},
		{"malformed", `{not json}`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(summarySchema(), json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var inv *ErrInvalidResponse
				if !errors.As(err, &inv) {
					t.Fatalf("expected *ErrInvalidResponse, got %T", err)
				}
				if string(inv.Content) != tt.raw {
					t.Errorf("content = %q, want %q", inv.Content, tt.raw)
				}
			}
		})
	}
}

func TestValidateResponse_NilSchemaAcceptsAnything(t *testing.T) {
	if err := validateResponse(nil, json.RawMessage(`plain text`)); err != nil {
		t.Fatalf("expected no error with nil schema, got: %v", err)
	}
}

func TestValidateResponse_BadSchemaIsInvalidResponse(t *testing.T) {
	bad := &Schema{
		Name:       "test-bad-schema",
		Definition: map[string]any{"type": 42},
	}
	err := validateResponse(bad, json.RawMessage(`{}`))
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected *ErrInvalidResponse, got %T (%v)", err, err)
	}
}
