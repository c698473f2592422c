// Package store defines the persistence contracts for schema fields and documents.
// Backends live in the postgres, mongo and memory subpackages.
package store

import (
	"context"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/internal/model"
)

// Fields persists schema field definitions
type Fields interface {
	// ListActive returns active fields ordered by Order. An empty schemaName lists all schemas.
	ListActive(ctx context.Context, schemaName string) ([]model.SchemaField, error)
	// Count returns the number of stored fields, active or not, of schemaName
	Count(ctx context.Context, schemaName string) (int64, error)
	// InsertMany stores fields and returns them with their IDs and timestamps set
	InsertMany(ctx context.Context, fields []model.SchemaField) ([]model.SchemaField, error)
	// Delete removes a field of schemaName permanently
	Delete(ctx context.Context, schemaName, id string) error
	// Deactivate marks a field of schemaName inactive
	Deactivate(ctx context.Context, schemaName, id string) error
}

// Documents persists documents in one collection per schema
type Documents interface {
	// Insert stores record in the collection of schemaName, creating the collection if needed
	Insert(ctx context.Context, schemaName string, record model.Record) (model.Document, error)
	// ListAll returns every document of schemaName, empty when the collection does not exist
	ListAll(ctx context.Context, schemaName string) ([]model.Document, error)
	// Exists reports whether id names a document of schemaName. Malformed ids and missing
	// collections report false.
	Exists(ctx context.Context, schemaName, id string) (bool, error)
	// Patch merges fields into the document
	Patch(ctx context.Context, schemaName, id string, fields model.Record) error
	// Remove deletes the document
	Remove(ctx context.Context, schemaName, id string) error
}

// Backend is one configured database
type Backend interface {
	Fields() Fields
	Documents() Documents
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// DocumentNotFound is returned when an id does not name a document of the collection
func DocumentNotFound() error {
	return apperror.NotFound("Document not found")
}

// FieldNotFound is returned when an id does not name a field of the schema
func FieldNotFound() error {
	return apperror.NotFound("Field not found")
}

// CheckSchemaName rejects names that cannot be used as a collection name
func CheckSchemaName(schemaName string) error {
	if !model.ValidSchemaName(schemaName) {
		return apperror.Validation("invalid schema name: " + schemaName)
	}
	return nil
}
