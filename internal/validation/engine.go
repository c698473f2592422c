// Package validation checks untyped input against a schema's field definitions and shapes
// documents for output.
package validation

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/internal/model"
)

// MessageNoFields is returned when a create request carries nothing to store
const MessageNoFields = "Please fill in at least one field"

// MessageNoUpdate is returned when a patch carries nothing to apply
const MessageNoUpdate = "Please provide at least one field to update"

// Engine validates input against field definitions
type Engine struct {
	validate *validator.Validate
}

// NewEngine creates an Engine
func NewEngine() *Engine {
	return &Engine{validate: newValidator()}
}

func sortedByOrder(defs []model.SchemaField) []model.SchemaField {
	out := make([]model.SchemaField, len(defs))
	copy(out, defs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// ValidateForCreate builds the record to insert from raw input. Required fields must be present and
// non-empty. Values are copied as given; the declared type is not enforced. Keys without a definition
// are dropped.
func (e *Engine) ValidateForCreate(defs []model.SchemaField, raw map[string]any) (model.Record, error) {
	record := model.Record{}
	for _, f := range sortedByOrder(defs) {
		if !f.Active {
			continue
		}
		value, ok := raw[f.Name]
		if !ok || model.IsEmpty(value) {
			if f.Required {
				return nil, apperror.Validation(f.DisplayName() + " is required")
			}
			continue
		}
		if !model.IsScalar(value) {
			return nil, apperror.Validation(f.DisplayName() + " must be a scalar value")
		}
		record[f.Name] = value
	}
	return record, nil
}

// ValidatePatch checks a partial update. Lenient mode accepts any well formed key, strict mode
// also requires every key to be an active field and forbids blanking required fields.
func (e *Engine) ValidatePatch(defs []model.SchemaField, fields map[string]any, strict bool) (model.Record, error) {
	if len(fields) == 0 {
		return nil, apperror.Validation(MessageNoUpdate)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := checkKey(k); err != nil {
			return nil, err
		}
		if v := fields[k]; v != nil && !model.IsScalar(v) {
			return nil, apperror.Validation(k + " must be a scalar value")
		}
	}

	if strict {
		if err := validatePatchSchema(defs, fields); err != nil {
			return nil, err
		}
	}
	return model.Record(fields).Clone(), nil
}

// checkKey rejects keys owned by the store or interpreted by it as operators
func checkKey(k string) error {
	switch {
	case k == "":
		return apperror.Validation("field names must not be empty")
	case model.IsReservedKey(k):
		return apperror.Validation(fmt.Sprintf("field %q cannot be updated", k))
	case model.IsOperatorKey(k):
		return apperror.Validation(fmt.Sprintf("field name %q is not allowed", k))
	}
	return nil
}

// Project shapes a stored document for output. Documents are returned as stored.
func (e *Engine) Project(doc model.Document) model.Document {
	return doc
}

// ProjectAll applies Project to every document
func (e *Engine) ProjectAll(docs []model.Document) []model.Document {
	out := make([]model.Document, len(docs))
	for i, d := range docs {
		out[i] = e.Project(d)
	}
	return out
}
