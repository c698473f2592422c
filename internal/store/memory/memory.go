// Package memory is an in-process store backend used by tests and DB_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/suteetoe/schemadb/internal/model"
	"github.com/suteetoe/schemadb/internal/store"
)

// Backend keeps fields and documents in maps guarded by one lock
type Backend struct {
	mu          sync.RWMutex
	fields      map[string]model.SchemaField
	collections map[string][]model.Document
	now         func() time.Time
}

// New creates an empty backend
func New() *Backend {
	return &Backend{
		fields:      make(map[string]model.SchemaField),
		collections: make(map[string][]model.Document),
		now:         time.Now,
	}
}

func (b *Backend) Fields() store.Fields       { return (*fieldStore)(b) }
func (b *Backend) Documents() store.Documents { return (*documentStore)(b) }

func (b *Backend) Ping(ctx context.Context) error  { return ctx.Err() }
func (b *Backend) Close(ctx context.Context) error { return nil }

type fieldStore Backend

func (s *fieldStore) ListActive(ctx context.Context, schemaName string) ([]model.SchemaField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.SchemaField{}
	for _, f := range s.fields {
		if !f.Active || (schemaName != "" && f.SchemaName != schemaName) {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *fieldStore) Count(ctx context.Context, schemaName string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, f := range s.fields {
		if f.SchemaName == schemaName {
			n++
		}
	}
	return n, nil
}

func (s *fieldStore) InsertMany(ctx context.Context, fields []model.SchemaField) ([]model.SchemaField, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	saved := make([]model.SchemaField, len(fields))
	for i, f := range fields {
		f.ID = uuid.NewString()
		f.CreatedAt = now
		f.UpdatedAt = now
		s.fields[f.ID] = f
		saved[i] = f
	}
	return saved, nil
}

func (s *fieldStore) Delete(ctx context.Context, schemaName, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fields[id]
	if !ok || f.SchemaName != schemaName {
		return store.FieldNotFound()
	}
	delete(s.fields, id)
	return nil
}

func (s *fieldStore) Deactivate(ctx context.Context, schemaName, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fields[id]
	if !ok || f.SchemaName != schemaName {
		return store.FieldNotFound()
	}
	f.Active = false
	f.UpdatedAt = s.now()
	s.fields[id] = f
	return nil
}

type documentStore Backend

func (s *documentStore) Insert(ctx context.Context, schemaName string, record model.Record) (model.Document, error) {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return model.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := model.Document{
		ID:        uuid.NewString(),
		CreatedAt: s.now(),
		Fields:    record.Clone(),
	}
	s.collections[schemaName] = append(s.collections[schemaName], doc)
	return copyDocument(doc), nil
}

func (s *documentStore) ListAll(ctx context.Context, schemaName string) ([]model.Document, error) {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[schemaName]
	out := make([]model.Document, len(docs))
	for i, d := range docs {
		out[i] = copyDocument(d)
	}
	return out, nil
}

func (s *documentStore) Exists(ctx context.Context, schemaName, id string) (bool, error) {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.collections[schemaName] {
		if d.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *documentStore) Patch(ctx context.Context, schemaName, id string, fields model.Record) error {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, d := range s.collections[schemaName] {
		if d.ID != id {
			continue
		}
		merged := d.Fields.Clone()
		for k, v := range fields {
			merged[k] = v
		}
		s.collections[schemaName][i].Fields = merged
		return nil
	}
	return store.DocumentNotFound()
}

func (s *documentStore) Remove(ctx context.Context, schemaName, id string) error {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[schemaName]
	for i, d := range docs {
		if d.ID != id {
			continue
		}
		s.collections[schemaName] = append(docs[:i:i], docs[i+1:]...)
		return nil
	}
	return store.DocumentNotFound()
}

func copyDocument(d model.Document) model.Document {
	d.Fields = d.Fields.Clone()
	return d
}
