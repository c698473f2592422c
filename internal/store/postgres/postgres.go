// Package postgres stores fields in a gorm managed table and documents in one jsonb table per schema.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/internal/model"
	"github.com/suteetoe/schemadb/internal/store"
	"github.com/suteetoe/schemadb/pkg/database"
)

const tablePrefix = "doc_"

// Backend implements store.Backend on PostgreSQL
type Backend struct {
	db *gorm.DB

	// tables already created by this process
	tables sync.Map
}

// New migrates the field table and returns a backend using db
func New(db *gorm.DB) (*Backend, error) {
	if err := database.MigrateModels(db, &model.SchemaField{}); err != nil {
		return nil, err
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Fields() store.Fields       { return &fieldStore{db: b.db} }
func (b *Backend) Documents() store.Documents { return &documentStore{backend: b} }

func (b *Backend) Ping(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (b *Backend) Close(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type fieldStore struct {
	db *gorm.DB
}

func (s *fieldStore) ListActive(ctx context.Context, schemaName string) ([]model.SchemaField, error) {
	query := s.db.WithContext(ctx).Where("active = ?", true)
	if schemaName != "" {
		query = query.Where("schema_name = ?", schemaName)
	}

	fields := []model.SchemaField{}
	if err := query.Order("field_order ASC, created_at ASC").Find(&fields).Error; err != nil {
		return nil, apperror.Store(err)
	}
	return fields, nil
}

func (s *fieldStore) Count(ctx context.Context, schemaName string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.SchemaField{}).
		Where("schema_name = ?", schemaName).
		Count(&count).Error
	if err != nil {
		return 0, apperror.Store(err)
	}
	return count, nil
}

func (s *fieldStore) InsertMany(ctx context.Context, fields []model.SchemaField) ([]model.SchemaField, error) {
	if len(fields) == 0 {
		return []model.SchemaField{}, nil
	}
	saved := make([]model.SchemaField, len(fields))
	copy(saved, fields)
	for i := range saved {
		saved[i].ID = uuid.NewString()
	}

	if err := s.db.WithContext(ctx).Create(&saved).Error; err != nil {
		return nil, apperror.Store(err)
	}
	return saved, nil
}

func (s *fieldStore) Delete(ctx context.Context, schemaName, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.FieldNotFound()
	}
	result := s.db.WithContext(ctx).
		Where("id = ? AND schema_name = ?", id, schemaName).
		Delete(&model.SchemaField{})
	if result.Error != nil {
		return apperror.Store(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.FieldNotFound()
	}
	return nil
}

func (s *fieldStore) Deactivate(ctx context.Context, schemaName, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.FieldNotFound()
	}
	result := s.db.WithContext(ctx).Model(&model.SchemaField{}).
		Where("id = ? AND schema_name = ?", id, schemaName).
		Updates(map[string]interface{}{"active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return apperror.Store(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.FieldNotFound()
	}
	return nil
}

// documentRow is one row of a doc_<schema> table
type documentRow struct {
	Seq        int64          `gorm:"column:seq;->"`
	ID         string         `gorm:"column:id;primaryKey"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
	Properties datatypes.JSON `gorm:"column:properties"`
}

type documentStore struct {
	backend *Backend
}

func tableName(schemaName string) string {
	return tablePrefix + schemaName
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ensureTable creates the collection table of schemaName if it does not exist yet
func (s *documentStore) ensureTable(ctx context.Context, schemaName string) error {
	table := tableName(schemaName)
	if _, ok := s.backend.tables.Load(table); ok {
		return nil
	}

	createQuery := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s ("+
			"seq bigserial NOT NULL, "+
			"id uuid PRIMARY KEY, "+
			"created_at timestamptz NOT NULL DEFAULT now(), "+
			"properties jsonb NOT NULL DEFAULT '{}'::jsonb)",
		quoteIdent(table))
	createIndexQuery := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(seq)",
		quoteIdent("idx_"+table+"_seq"), quoteIdent(table))

	db := s.backend.db.WithContext(ctx)
	if err := db.Exec(createQuery).Error; err != nil {
		return apperror.Store(err)
	}
	if err := db.Exec(createIndexQuery).Error; err != nil {
		return apperror.Store(err)
	}
	s.backend.tables.Store(table, true)
	return nil
}

func (s *documentStore) hasTable(ctx context.Context, schemaName string) bool {
	table := tableName(schemaName)
	if _, ok := s.backend.tables.Load(table); ok {
		return true
	}
	if !s.backend.db.WithContext(ctx).Migrator().HasTable(table) {
		return false
	}
	s.backend.tables.Store(table, true)
	return true
}

func (s *documentStore) Insert(ctx context.Context, schemaName string, record model.Record) (model.Document, error) {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return model.Document{}, err
	}
	if err := s.ensureTable(ctx, schemaName); err != nil {
		return model.Document{}, err
	}

	properties, err := json.Marshal(record)
	if err != nil {
		return model.Document{}, apperror.Store(err)
	}
	row := documentRow{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Properties: datatypes.JSON(properties),
	}
	if err := s.backend.db.WithContext(ctx).Table(tableName(schemaName)).Create(&row).Error; err != nil {
		return model.Document{}, apperror.Store(err)
	}
	return model.Document{ID: row.ID, CreatedAt: row.CreatedAt, Fields: record.Clone()}, nil
}

func (s *documentStore) ListAll(ctx context.Context, schemaName string) ([]model.Document, error) {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return nil, err
	}
	if !s.hasTable(ctx, schemaName) {
		return []model.Document{}, nil
	}

	var rows []documentRow
	if err := s.backend.db.WithContext(ctx).Table(tableName(schemaName)).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, apperror.Store(err)
	}

	docs := make([]model.Document, 0, len(rows))
	for _, row := range rows {
		fields := model.Record{}
		if len(row.Properties) > 0 {
			if err := json.Unmarshal(row.Properties, &fields); err != nil {
				return nil, apperror.Store(fmt.Errorf("document %s: %w", row.ID, err))
			}
		}
		docs = append(docs, model.Document{ID: row.ID, CreatedAt: row.CreatedAt, Fields: fields})
	}
	return docs, nil
}

func (s *documentStore) Exists(ctx context.Context, schemaName, id string) (bool, error) {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return false, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	if !s.hasTable(ctx, schemaName) {
		return false, nil
	}

	var count int64
	err := s.backend.db.WithContext(ctx).Table(tableName(schemaName)).Where("id = ?", id).Limit(1).Count(&count).Error
	if err != nil {
		return false, apperror.Store(err)
	}
	return count > 0, nil
}

func (s *documentStore) Patch(ctx context.Context, schemaName, id string, fields model.Record) error {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return store.DocumentNotFound()
	}
	if !s.hasTable(ctx, schemaName) {
		return store.DocumentNotFound()
	}

	patch, err := json.Marshal(fields)
	if err != nil {
		return apperror.Store(err)
	}
	updateQuery := fmt.Sprintf("UPDATE %s SET properties = properties || CAST(? AS jsonb) WHERE id = ?",
		quoteIdent(tableName(schemaName)))
	result := s.backend.db.WithContext(ctx).Exec(updateQuery, string(patch), id)
	if result.Error != nil {
		return apperror.Store(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.DocumentNotFound()
	}
	return nil
}

func (s *documentStore) Remove(ctx context.Context, schemaName, id string) error {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return store.DocumentNotFound()
	}
	if !s.hasTable(ctx, schemaName) {
		return store.DocumentNotFound()
	}

	result := s.backend.db.WithContext(ctx).Table(tableName(schemaName)).Where("id = ?", id).Delete(&documentRow{})
	if result.Error != nil {
		return apperror.Store(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.DocumentNotFound()
	}
	return nil
}
