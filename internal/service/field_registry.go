// Package service holds the schema and document operations behind the HTTP handlers.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/internal/model"
	"github.com/suteetoe/schemadb/internal/store"
	"github.com/suteetoe/schemadb/internal/validation"
	"github.com/suteetoe/schemadb/pkg/logger"
	"github.com/suteetoe/schemadb/pkg/metrics"
)

// FieldRegistry manages the field definitions of every schema
type FieldRegistry struct {
	fields  store.Fields
	engine  *validation.Engine
	metrics *metrics.Metrics
}

// NewFieldRegistry creates a registry over fields
func NewFieldRegistry(fields store.Fields, engine *validation.Engine, m *metrics.Metrics) *FieldRegistry {
	if m == nil {
		m = metrics.NewNop()
	}
	return &FieldRegistry{fields: fields, engine: engine, metrics: m}
}

// ListActiveFields returns the active fields of schemaName in order, or of every schema when it is empty
func (r *FieldRegistry) ListActiveFields(ctx context.Context, schemaName string) ([]model.SchemaField, error) {
	defer r.metrics.TrackStoreOperation("list_fields")(time.Now())

	fields, err := r.fields.ListActive(ctx, schemaName)
	if err != nil {
		return nil, apperror.Store(err)
	}
	return fields, nil
}

// DefineFields validates a batch of definitions for one schema and stores them after the existing fields
func (r *FieldRegistry) DefineFields(ctx context.Context, defs []model.FieldDefinition) ([]model.SchemaField, error) {
	log := logger.FromContext(ctx)

	if err := r.engine.ValidateDefinitions(defs); err != nil {
		return nil, err
	}
	schemaName := defs[0].SchemaName

	active, err := r.ListActiveFields(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(active))
	for _, f := range active {
		taken[f.Name] = true
	}
	for i, def := range defs {
		if taken[def.Name] {
			return nil, apperror.Validation(fmt.Sprintf("Field %d: field %q already exists in schema %q", i+1, def.Name, schemaName))
		}
	}

	count, err := r.countFields(ctx, schemaName)
	if err != nil {
		return nil, err
	}

	fields := make([]model.SchemaField, len(defs))
	for i, def := range defs {
		fields[i] = model.SchemaField{
			SchemaName: schemaName,
			Name:       def.Name,
			Type:       def.Type,
			Required:   def.Required,
			Label:      def.Label,
			Order:      int(count) + i,
			Active:     true,
		}
	}

	stop := r.metrics.TrackStoreOperation("insert_fields")
	saved, err := r.fields.InsertMany(ctx, fields)
	stop(time.Now())
	if err != nil {
		return nil, apperror.Store(err)
	}

	r.metrics.RecordFieldOperation("define")
	log.Info("Fields defined",
		zap.String("schema_name", schemaName),
		zap.Int("count", len(saved)),
		zap.Int64("first_order", count))
	return saved, nil
}

func (r *FieldRegistry) countFields(ctx context.Context, schemaName string) (int64, error) {
	defer r.metrics.TrackStoreOperation("count_fields")(time.Now())

	count, err := r.fields.Count(ctx, schemaName)
	if err != nil {
		return 0, apperror.Store(err)
	}
	return count, nil
}

// RemoveField permanently deletes a field of schemaName
func (r *FieldRegistry) RemoveField(ctx context.Context, schemaName, id string) error {
	defer r.metrics.TrackStoreOperation("delete_field")(time.Now())

	if err := r.fields.Delete(ctx, schemaName, id); err != nil {
		return apperror.Store(err)
	}
	r.metrics.RecordFieldOperation("remove")
	logger.FromContext(ctx).Info("Field removed", zap.String("schema_name", schemaName), zap.String("field_id", id))
	return nil
}

// DeactivateField hides a field of schemaName from reads and validation while keeping its order slot
func (r *FieldRegistry) DeactivateField(ctx context.Context, schemaName, id string) error {
	defer r.metrics.TrackStoreOperation("deactivate_field")(time.Now())

	if err := r.fields.Deactivate(ctx, schemaName, id); err != nil {
		return apperror.Store(err)
	}
	r.metrics.RecordFieldOperation("deactivate")
	logger.FromContext(ctx).Info("Field deactivated", zap.String("schema_name", schemaName), zap.String("field_id", id))
	return nil
}
