// internal/models/form.go
package models

import "time"

// FieldType is the closed set of field kinds a form schema may declare.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeEmail    FieldType = "email"
	FieldTypeNumber   FieldType = "number"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeFile     FieldType = "file"
	FieldTypeOther    FieldType = "other"
)

// Normalize maps any unrecognised type string to FieldTypeOther.
func (t FieldType) Normalize() FieldType {
	switch t {
	case FieldTypeText, FieldTypeEmail, FieldTypeNumber, FieldTypeTextarea, FieldTypeFile:
		return t
	default:
		return FieldTypeOther
	}
}

// FieldValidation holds optional constraints. Constraints that do not apply to a field's type are ignored.
type FieldValidation struct {
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

type FieldDefinition struct {
	Name       string           `json:"name"`
	Type       FieldType        `json:"type"`
	Label      string           `json:"label"`
	Required   bool             `json:"required,omitempty"`
	Validation *FieldValidation `json:"validation,omitempty"`
}

// DisplayName is the label when present, otherwise the field name.
func (f FieldDefinition) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// FormSchema is immutable once published.
type FormSchema struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Fields      []FieldDefinition `json:"fields"`
}

// FileFields returns the fields declared with type file, in schema order.
func (s FormSchema) FileFields() []FieldDefinition {
	var out []FieldDefinition
	for _, f := range s.Fields {
		if f.Type.Normalize() == FieldTypeFile {
			out = append(out, f)
		}
	}
	return out
}

// Form is a published schema together with its owner.
type Form struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Prompt    string     `json:"prompt,omitempty"`
	Schema    FormSchema `json:"schema"`
	CreatedAt time.Time  `json:"createdAt"`
}
