package intervention

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// CatalogSchema is the JSON schema an externally supplied catalog must
// satisfy.
var CatalogSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"entries": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"category": map[string]any{"type": "string", "minLength": 1},
					"keywords": map[string]any{
						"type":     "array",
						"minItems": 1,
						"items":    map[string]any{"type": "string", "minLength": 1},
					},
					"priority": map[string]any{
						"type": "string",
						"enum": []any{"immediate", "high", "medium"},
					},
					"intervention":     map[string]any{"type": "string", "minLength": 1},
					"dosage":           map[string]any{"type": "string"},
					"materials":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"expected_outcome": map[string]any{"type": "string"},
				},
				"required":             []any{"category", "keywords", "priority", "intervention"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []any{"entries"},
	"additionalProperties": false,
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func catalogSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants a JSON-decoded value, not Go literals.
		defBytes, err := json.Marshal(CatalogSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema definition: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(defBytes, &def); err != nil {
			compileErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		const url = "schema://intervention-catalog.json"
		if err := c.AddResource(url, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(url)
	})
	return compiledSchema, compileErr
}

// validateSchema checks a YAML-decoded document against CatalogSchema.
func validateSchema(doc any) error {
	schema, err := catalogSchema()
	if err != nil {
		return fmt.Errorf("compile catalog schema: %w", err)
	}

	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("catalog is not representable as JSON: %w", err)
	}
	var parsed any
	if err := json.Unmarshal(b, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
