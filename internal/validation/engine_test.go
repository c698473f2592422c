package validation

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/internal/model"
)

func ticketFields() []model.SchemaField {
	return []model.SchemaField{
		{Name: "status", Type: model.FieldTypeString, Order: 2, Active: true},
		{Name: "title", Type: model.FieldTypeString, Required: true, Label: "Title", Order: 0, Active: true},
		{Name: "seats", Type: model.FieldTypeNumber, Order: 1, Active: true},
		{Name: "legacy", Type: model.FieldTypeString, Required: true, Order: 3, Active: false},
	}
}

func TestValidateForCreate(t *testing.T) {
	e := NewEngine()

	testCases := []struct {
		name    string
		raw     map[string]any
		want    model.Record
		wantErr string
	}{
		{
			name: "copies defined non-empty values",
			raw:  map[string]any{"title": "Printer", "status": "open", "seats": "two", "unknown": "x"},
			want: model.Record{"title": "Printer", "status": "open", "seats": "two"},
		},
		{
			name: "skips empty optional values",
			raw:  map[string]any{"title": "Printer", "status": ""},
			want: model.Record{"title": "Printer"},
		},
		{
			name: "keeps non-string scalars",
			raw:  map[string]any{"title": "Printer", "seats": 2.0},
			want: model.Record{"title": "Printer", "seats": 2.0},
		},
		{
			name:    "required missing uses the label",
			raw:     map[string]any{"status": "open"},
			wantErr: "Title is required",
		},
		{
			name:    "required empty string",
			raw:     map[string]any{"title": ""},
			wantErr: "Title is required",
		},
		{
			name:    "required null",
			raw:     map[string]any{"title": nil},
			wantErr: "Title is required",
		},
		{
			name:    "non scalar value",
			raw:     map[string]any{"title": map[string]any{"a": 1}},
			wantErr: "Title must be a scalar value",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.ValidateForCreate(ticketFields(), tc.raw)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperror.Is(err, apperror.KindValidation))
				assert.Equal(t, tc.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateForCreateUsesNameWithoutLabel(t *testing.T) {
	e := NewEngine()
	defs := []model.SchemaField{{Name: "title", Type: model.FieldTypeString, Required: true, Active: true}}
	_, err := e.ValidateForCreate(defs, map[string]any{"title": ""})
	require.Error(t, err)
	assert.Equal(t, "title is required", err.Error())
}

func TestValidatePatchLenient(t *testing.T) {
	e := NewEngine()

	got, err := e.ValidatePatch(ticketFields(), map[string]any{"title": "", "brand_new": "x"}, false)
	require.NoError(t, err)
	assert.Equal(t, model.Record{"title": "", "brand_new": "x"}, got)

	for name, fields := range map[string]map[string]any{
		"empty":      {},
		"id":         {"_id": "x"},
		"created at": {"createdAt": "x"},
		"operator":   {"$where": "x"},
		"dotted":     {"a.b": "x"},
		"blank key":  {"": "x"},
		"object":     {"title": []any{"a"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.ValidatePatch(ticketFields(), fields, false)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindValidation), err)
		})
	}
}

func TestValidatePatchStrict(t *testing.T) {
	e := NewEngine()

	got, err := e.ValidatePatch(ticketFields(), map[string]any{"title": "New", "seats": 3.0, "status": nil}, true)
	require.NoError(t, err)
	assert.Equal(t, model.Record{"title": "New", "seats": 3.0, "status": nil}, got)

	_, err = e.ValidatePatch(ticketFields(), map[string]any{"title": "New", "brand_new": "x"}, true)
	require.Error(t, err)
	assert.Equal(t, "unknown field brand_new", err.Error())

	// inactive fields are not part of the schema
	_, err = e.ValidatePatch(ticketFields(), map[string]any{"legacy": "x"}, true)
	require.Error(t, err)
	assert.Equal(t, "unknown field legacy", err.Error())

	_, err = e.ValidatePatch(ticketFields(), map[string]any{"title": ""}, true)
	require.Error(t, err)
	assert.Equal(t, "Title is required", err.Error())
}

func TestValidateDefinitions(t *testing.T) {
	e := NewEngine()
	valid := model.FieldDefinition{SchemaName: "ticket", Name: "title", Type: model.FieldTypeString, Required: true}

	require.NoError(t, e.ValidateDefinitions([]model.FieldDefinition{valid}))

	testCases := []struct {
		name    string
		defs    []model.FieldDefinition
		wantErr string
	}{
		{"empty batch", nil, "At least one field definition is required"},
		{"missing schema", []model.FieldDefinition{{Name: "a", Type: "string"}}, "Field 1: schemaName is required"},
		{"missing name", []model.FieldDefinition{{SchemaName: "ticket", Type: "string"}}, "Field 1: name is required"},
		{"missing type", []model.FieldDefinition{{SchemaName: "ticket", Name: "a"}}, "Field 1: type is required"},
		{"bad type", []model.FieldDefinition{{SchemaName: "ticket", Name: "a", Type: "text"}},
			"Field 1: type must be one of: string number date boolean email"},
		{"reserved schema", []model.FieldDefinition{{SchemaName: "schema", Name: "a", Type: "string"}}, "schemaName \"schema\""},
		{"bad schema", []model.FieldDefinition{{SchemaName: "my ticket", Name: "a", Type: "string"}}, "must start with a letter"},
		{"mixed schemas", []model.FieldDefinition{valid, {SchemaName: "asset", Name: "b", Type: "string"}},
			"Field 2: all fields must belong to schema \"ticket\", got \"asset\""},
		{"duplicate name", []model.FieldDefinition{valid, valid}, "Field 2: duplicate field name \"title\""},
		{"id name", []model.FieldDefinition{{SchemaName: "ticket", Name: "_id", Type: "string"}}, "Field 1: name \"_id\" is not allowed"},
		{"createdAt name", []model.FieldDefinition{valid, {SchemaName: "ticket", Name: "createdAt", Type: "date"}},
			"Field 2: name \"createdAt\" is not allowed"},
		{"operator name", []model.FieldDefinition{{SchemaName: "ticket", Name: "$where", Type: "string"}}, "is not allowed"},
		{"dotted name", []model.FieldDefinition{{SchemaName: "ticket", Name: "a.b", Type: "string"}}, "is not allowed"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := e.ValidateDefinitions(tc.defs)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindValidation))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestJSONSchemaCompilesAndMatchesCreateRules(t *testing.T) {
	e := NewEngine()
	doc := e.JSONSchema("ticket", ticketFields())

	assert.Equal(t, []string{"title"}, doc["required"])
	properties := doc["properties"].(map[string]any)
	assert.Len(t, properties, 3)
	assert.Equal(t, "number", properties["seats"].(map[string]any)["x-fieldType"])

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	require.NoError(t, err)

	// declared types are not enforced
	result, err := schema.Validate(gojsonschema.NewGoLoader(map[string]any{"title": "x", "seats": "not a number"}))
	require.NoError(t, err)
	assert.True(t, result.Valid())

	result, err = schema.Validate(gojsonschema.NewGoLoader(map[string]any{"seats": 1}))
	require.NoError(t, err)
	assert.False(t, result.Valid())
}

func TestProjectIsPassThrough(t *testing.T) {
	e := NewEngine()
	docs := []model.Document{{ID: "1", Fields: model.Record{"a": "b"}}}
	assert.Equal(t, docs, e.ProjectAll(docs))
}
