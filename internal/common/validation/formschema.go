package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"formflow/internal/models"
)

// formSchemaDocument describes a publishable FormSchema.
const formSchemaDocument = `{
  "type": "object",
  "required": ["title", "fields"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "fields": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "type", "label"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "label": {"type": "string"},
          "required": {"type": "boolean"},
          "validation": {
            "type": "object",
            "properties": {
              "minLength": {"type": "integer", "minimum": 0},
              "maxLength": {"type": "integer", "minimum": 0},
              "min": {"type": "number"},
              "max": {"type": "number"},
              "pattern": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

var formSchemaLoader = gojsonschema.NewStringLoader(formSchemaDocument)

// CheckSchema verifies a FormSchema document before it is published.
func CheckSchema(schema models.FormSchema) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return CheckSchemaJSON(raw)
}

// CheckSchemaJSON verifies a raw FormSchema document.
func CheckSchemaJSON(raw []byte) error {
	result, err := gojsonschema.Validate(formSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			errs[i] = e.String()
		}
		return fmt.Errorf("invalid form schema: %s", strings.Join(errs, "; "))
	}

	var schema models.FormSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("decode schema: %w", err)
	}

	seen := make(map[string]struct{}, len(schema.Fields))
	for _, f := range schema.Fields {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("invalid form schema: duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.Validation == nil {
			continue
		}
		if f.Validation.Pattern != "" {
			if _, err := compilePattern(f.Validation.Pattern); err != nil {
				return fmt.Errorf("invalid form schema: field %q pattern: %w", f.Name, err)
			}
		}
		if f.Validation.MinLength != nil && f.Validation.MaxLength != nil && *f.Validation.MinLength > *f.Validation.MaxLength {
			return fmt.Errorf("invalid form schema: field %q minLength exceeds maxLength", f.Name)
		}
		if f.Validation.Min != nil && f.Validation.Max != nil && *f.Validation.Min > *f.Validation.Max {
			return fmt.Errorf("invalid form schema: field %q min exceeds max", f.Name)
		}
	}
	return nil
}
