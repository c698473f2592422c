package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/internal/model"
)

const (
	schemaNameValidatorTag = "schemaname"
	fieldNameValidatorTag  = "fieldname"
)

func schemaNameValidator(fl validator.FieldLevel) bool {
	input, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return model.ValidSchemaName(input)
}

func fieldNameValidator(fl validator.FieldLevel) bool {
	input, ok := fl.Field().Interface().(string)
	return ok && model.ValidFieldName(input)
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation(schemaNameValidatorTag, schemaNameValidator); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation(fieldNameValidatorTag, fieldNameValidator); err != nil {
		panic(err)
	}
	// report json names in messages
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// ValidateDefinitions checks one DefineFields batch: every definition is well formed, all share one
// schemaName, and no name repeats.
func (e *Engine) ValidateDefinitions(defs []model.FieldDefinition) error {
	if len(defs) == 0 {
		return apperror.Validation("At least one field definition is required")
	}

	schemaName := defs[0].SchemaName
	seen := make(map[string]bool, len(defs))
	for i, def := range defs {
		if err := e.validate.Struct(def); err != nil {
			return apperror.Validation(fmt.Sprintf("Field %d: %s", i+1, describe(err)))
		}
		if def.SchemaName != schemaName {
			return apperror.Validation(fmt.Sprintf(
				"Field %d: all fields must belong to schema %q, got %q", i+1, schemaName, def.SchemaName))
		}
		if seen[def.Name] {
			return apperror.Validation(fmt.Sprintf("Field %d: duplicate field name %q", i+1, def.Name))
		}
		seen[def.Name] = true
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case fieldNameValidatorTag:
		return fmt.Sprintf("%s %q is not allowed: %q and %q are set by the store, and names must not start with '$' or contain '.'",
			fe.Field(), fe.Value(), model.KeyID, model.KeyCreatedAt)
	case schemaNameValidatorTag:
		return fmt.Sprintf("%s %q must start with a letter, contain only letters, digits and underscores, "+
			"be at most 48 characters and not be %q", fe.Field(), fe.Value(), model.ReservedSchemaName)
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}
