package model

import (
	"regexp"
	"strings"
	"time"
)

// FieldType is the declared kind of a field. It drives rendering only, values are not coerced.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeDate    FieldType = "date"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeEmail   FieldType = "email"
)

// FieldTypes lists every supported field type
var FieldTypes = []FieldType{FieldTypeString, FieldTypeNumber, FieldTypeDate, FieldTypeBoolean, FieldTypeEmail}

// Valid reports whether t is one of the supported field types
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// SchemaField is one field definition of a runtime schema
type SchemaField struct {
	ID         string    `json:"_id" gorm:"type:uuid;primaryKey"`
	SchemaName string    `json:"schemaName" gorm:"type:varchar(64);index;not null"`
	Name       string    `json:"name" gorm:"type:varchar(255);not null"`
	Type       FieldType `json:"type" gorm:"type:varchar(16);not null"`
	Required   bool      `json:"required" gorm:"not null"`
	Label      string    `json:"label,omitempty" gorm:"type:varchar(255)"`
	Order      int       `json:"order" gorm:"column:field_order;not null"`
	Active     bool      `json:"active" gorm:"not null;index"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TableName overrides the gorm table name
func (SchemaField) TableName() string {
	return "schema_fields"
}

// DisplayName returns the label if set, else the name
func (f SchemaField) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// FieldDefinition is the client input for one field of a DefineFields batch
type FieldDefinition struct {
	SchemaName string    `json:"schemaName" validate:"required,schemaname"`
	Name       string    `json:"name" validate:"required,max=255,fieldname"`
	Type       FieldType `json:"type" validate:"required,oneof=string number date boolean email"`
	Required   bool      `json:"required"`
	Label      string    `json:"label,omitempty" validate:"max=255"`
}

// ReservedSchemaName cannot be used as a schema name, it collides with the /db/schema routes
const ReservedSchemaName = "schema"

var schemaNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,47}$`)

// ValidSchemaName reports whether name can be used as a schema and collection name
func ValidSchemaName(name string) bool {
	return schemaNamePattern.MatchString(name) && !strings.EqualFold(name, ReservedSchemaName)
}
