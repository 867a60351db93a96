package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formflow/internal/models"
)

func TestCheckSchema_Valid(t *testing.T) {
	require.NoError(t, CheckSchema(contactSchema()))
}

func TestCheckSchemaJSON(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "valid document",
			doc:  `{"title":"T","fields":[{"name":"a","type":"text","label":"A","validation":{"minLength":1,"pattern":"[a-z]+"}}]}`,
		},
		{
			name:    "missing title",
			doc:     `{"fields":[]}`,
			wantErr: "title",
		},
		{
			name:    "empty title",
			doc:     `{"title":"","fields":[]}`,
			wantErr: "invalid form schema",
		},
		{
			name:    "field without name",
			doc:     `{"title":"T","fields":[{"type":"text","label":"A"}]}`,
			wantErr: "name",
		},
		{
			name:    "negative minLength",
			doc:     `{"title":"T","fields":[{"name":"a","type":"text","label":"A","validation":{"minLength":-1}}]}`,
			wantErr: "invalid form schema",
		},
		{
			name:    "duplicate names",
			doc:     `{"title":"T","fields":[{"name":"a","type":"text","label":"A"},{"name":"a","type":"email","label":"B"}]}`,
			wantErr: `duplicate field name "a"`,
		},
		{
			name:    "bad pattern",
			doc:     `{"title":"T","fields":[{"name":"a","type":"text","label":"A","validation":{"pattern":"(["}}]}`,
			wantErr: "pattern",
		},
		{
			name:    "inverted bounds",
			doc:     `{"title":"T","fields":[{"name":"n","type":"number","label":"N","validation":{"min":10,"max":1}}]}`,
			wantErr: "min exceeds max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSchemaJSON([]byte(tt.doc))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCheckSchema_UnknownTypeIsAllowed(t *testing.T) {
	schema := models.FormSchema{
		Title:  "Dates",
		Fields: []models.FieldDefinition{{Name: "d", Type: models.FieldType("date"), Label: "D"}},
	}
	assert.NoError(t, CheckSchema(schema))
}
