package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/internal/model"
	"github.com/suteetoe/schemadb/internal/store"
	"github.com/suteetoe/schemadb/internal/validation"
	"github.com/suteetoe/schemadb/pkg/logger"
	"github.com/suteetoe/schemadb/pkg/metrics"
)

// DocumentService validates and stores documents of runtime schemas
type DocumentService struct {
	registry  *FieldRegistry
	documents store.Documents
	engine    *validation.Engine
	metrics   *metrics.Metrics
}

// NewDocumentService creates a document service that reads definitions from registry
func NewDocumentService(registry *FieldRegistry, documents store.Documents, engine *validation.Engine, m *metrics.Metrics) *DocumentService {
	if m == nil {
		m = metrics.NewNop()
	}
	return &DocumentService{registry: registry, documents: documents, engine: engine, metrics: m}
}

// Create validates customFields against the active fields of schemaName and stores the result
func (s *DocumentService) Create(ctx context.Context, schemaName string, customFields map[string]any) (string, error) {
	if len(customFields) == 0 {
		return "", apperror.Validation(validation.MessageNoFields)
	}
	if err := store.CheckSchemaName(schemaName); err != nil {
		return "", err
	}

	defs, err := s.registry.ListActiveFields(ctx, schemaName)
	if err != nil {
		return "", err
	}
	record, err := s.engine.ValidateForCreate(defs, customFields)
	if err != nil {
		return "", err
	}
	if len(record) == 0 {
		return "", apperror.Validation(validation.MessageNoFields)
	}

	stop := s.metrics.TrackStoreOperation("insert_document")
	doc, err := s.documents.Insert(ctx, schemaName, record)
	stop(time.Now())
	if err != nil {
		return "", apperror.Store(err)
	}

	s.metrics.RecordDocumentOperation("create")
	logger.FromContext(ctx).Info("Document created",
		zap.String("schema_name", schemaName),
		zap.String("document_id", doc.ID),
		zap.Int("field_count", len(record)))
	return doc.ID, nil
}

// List returns every document of schemaName in insertion order
func (s *DocumentService) List(ctx context.Context, schemaName string) ([]model.Document, error) {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return nil, err
	}

	stop := s.metrics.TrackStoreOperation("list_documents")
	docs, err := s.documents.ListAll(ctx, schemaName)
	stop(time.Now())
	if err != nil {
		return nil, apperror.Store(err)
	}

	s.metrics.RecordDocumentOperation("list")
	return s.engine.ProjectAll(docs), nil
}

// Update merges fields into a document. Strict mode checks the keys against the active fields.
func (s *DocumentService) Update(ctx context.Context, schemaName, id string, fields map[string]any, strict bool) error {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return err
	}

	var defs []model.SchemaField
	if strict {
		var err error
		if defs, err = s.registry.ListActiveFields(ctx, schemaName); err != nil {
			return err
		}
	}
	patch, err := s.engine.ValidatePatch(defs, fields, strict)
	if err != nil {
		// a missing document is reported as such whatever the body
		if exists, existsErr := s.exists(ctx, schemaName, id); existsErr != nil {
			return existsErr
		} else if !exists {
			return store.DocumentNotFound()
		}
		return err
	}

	defer s.metrics.TrackStoreOperation("patch_document")(time.Now())
	if err := s.documents.Patch(ctx, schemaName, id, patch); err != nil {
		return apperror.Store(err)
	}

	s.metrics.RecordDocumentOperation("update")
	logger.FromContext(ctx).Info("Document updated",
		zap.String("schema_name", schemaName),
		zap.String("document_id", id),
		zap.Bool("strict", strict))
	return nil
}

func (s *DocumentService) exists(ctx context.Context, schemaName, id string) (bool, error) {
	defer s.metrics.TrackStoreOperation("exists_document")(time.Now())

	ok, err := s.documents.Exists(ctx, schemaName, id)
	if err != nil {
		return false, apperror.Store(err)
	}
	return ok, nil
}

// Delete removes a document
func (s *DocumentService) Delete(ctx context.Context, schemaName, id string) error {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return err
	}

	defer s.metrics.TrackStoreOperation("remove_document")(time.Now())
	if err := s.documents.Remove(ctx, schemaName, id); err != nil {
		return apperror.Store(err)
	}

	s.metrics.RecordDocumentOperation("delete")
	logger.FromContext(ctx).Info("Document deleted",
		zap.String("schema_name", schemaName),
		zap.String("document_id", id))
	return nil
}

// JSONSchema describes the active fields of schemaName as a JSON Schema document
func (s *DocumentService) JSONSchema(ctx context.Context, schemaName string) (map[string]any, error) {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return nil, err
	}
	defs, err := s.registry.ListActiveFields(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	return s.engine.JSONSchema(schemaName, defs), nil
}
