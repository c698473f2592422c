package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/internal/model"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

// JSONSchema describes the active fields of a schema. Declared types are annotations only
// (x-fieldType), so the document validates the same inputs the create path accepts.
func (e *Engine) JSONSchema(schemaName string, defs []model.SchemaField) map[string]any {
	properties := map[string]any{}
	required := []string{}
	for _, f := range sortedByOrder(defs) {
		if !f.Active {
			continue
		}
		properties[f.Name] = map[string]any{
			"title":       f.DisplayName(),
			"x-fieldType": string(f.Type),
			"x-order":     f.Order,
		}
		if f.Required {
			required = append(required, f.Name)
		}
	}

	return map[string]any{
		"$schema":    draft07,
		"$id":        "urn:schemadb:" + schemaName,
		"title":      schemaName,
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// patchSchema accepts only active field names and scalar values, and rejects blank required fields
func patchSchema(defs []model.SchemaField) map[string]any {
	properties := map[string]any{}
	for _, f := range defs {
		if !f.Active {
			continue
		}
		property := map[string]any{"type": []string{"string", "number", "boolean", "null"}}
		if f.Required {
			property["not"] = map[string]any{"enum": []any{"", nil}}
		}
		properties[f.Name] = property
	}
	return map[string]any{
		"$schema":              draft07,
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
}

func validatePatchSchema(defs []model.SchemaField, fields map[string]any) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(patchSchema(defs)))
	if err != nil {
		return apperror.Store(fmt.Errorf("cannot compile patch schema: %w", err))
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(fields))
	if err != nil {
		return apperror.Validation(fmt.Sprintf("cannot validate patch: %s", err))
	}
	if result.Valid() {
		return nil
	}

	display := map[string]string{}
	for _, f := range defs {
		display[f.Name] = f.DisplayName()
	}

	var msgs []string
	for _, re := range result.Errors() {
		switch re.Type() {
		case "additional_property_not_allowed":
			msgs = append(msgs, fmt.Sprintf("unknown field %v", re.Details()["property"]))
		case "number_not":
			name := display[re.Field()]
			if name == "" {
				name = re.Field()
			}
			msgs = append(msgs, name+" is required")
		default:
			msgs = append(msgs, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
		}
	}
	sort.Strings(msgs)
	return apperror.Validation(strings.Join(msgs, "; "))
}
