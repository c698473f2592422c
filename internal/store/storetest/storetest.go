// Package storetest holds the contract every store.Backend must satisfy.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/internal/model"
	"github.com/suteetoe/schemadb/internal/store"
)

// RunBackend runs the contract against b. Schema names are made unique per run so the
// suite can share a database with other data.
func RunBackend(t *testing.T, b store.Backend) {
	t.Helper()
	suffix := uuid.NewString()[:8]
	name := func(base string) string { return fmt.Sprintf("%s_%s", base, suffix) }

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, b.Ping(context.Background()))
	})
	t.Run("FieldsOrderedAndFiltered", func(t *testing.T) { testFieldsOrdered(t, b.Fields(), name("ticket"), name("asset")) })
	t.Run("FieldDeleteAndDeactivate", func(t *testing.T) { testFieldRemoval(t, b.Fields(), name("remove")) })
	t.Run("DocumentRoundTrip", func(t *testing.T) { testDocumentRoundTrip(t, b.Documents(), name("docs")) })
	t.Run("DocumentMissingCollection", func(t *testing.T) { testMissingCollection(t, b.Documents(), name("nothing")) })
	t.Run("DocumentPatch", func(t *testing.T) { testDocumentPatch(t, b.Documents(), name("patch")) })
	t.Run("DocumentRemoveTwice", func(t *testing.T) { testDocumentRemoveTwice(t, b.Documents(), name("remove")) })
	t.Run("DocumentUnknownIDs", func(t *testing.T) { testUnknownIDs(t, b.Documents(), name("unknown")) })
	t.Run("DocumentExists", func(t *testing.T) { testDocumentExists(t, b.Documents(), name("exists")) })
}

func field(schemaName, name string, order int) model.SchemaField {
	return model.SchemaField{
		SchemaName: schemaName,
		Name:       name,
		Type:       model.FieldTypeString,
		Order:      order,
		Active:     true,
	}
}

func testFieldsOrdered(t *testing.T, fields store.Fields, ticket, asset string) {
	ctx := context.Background()

	saved, err := fields.InsertMany(ctx, []model.SchemaField{field(ticket, "status", 1), field(ticket, "title", 0)})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	for _, f := range saved {
		assert.NotEmpty(t, f.ID)
		assert.False(t, f.CreatedAt.IsZero())
	}

	_, err = fields.InsertMany(ctx, []model.SchemaField{field(asset, "serial", 0)})
	require.NoError(t, err)

	got, err := fields.ListActive(ctx, ticket)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "title", got[0].Name)
	assert.Equal(t, "status", got[1].Name)

	all, err := fields.ListActive(ctx, "")
	require.NoError(t, err)
	var seen int
	for i, f := range all {
		if f.SchemaName == ticket || f.SchemaName == asset {
			seen++
		}
		if i > 0 {
			assert.LessOrEqual(t, all[i-1].Order, f.Order)
		}
	}
	assert.Equal(t, 3, seen)

	n, err := fields.Count(ctx, ticket)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func testFieldRemoval(t *testing.T, fields store.Fields, schemaName string) {
	ctx := context.Background()
	saved, err := fields.InsertMany(ctx, []model.SchemaField{field(schemaName, "a", 0), field(schemaName, "b", 1)})
	require.NoError(t, err)

	require.NoError(t, fields.Deactivate(ctx, schemaName, saved[0].ID))
	active, err := fields.ListActive(ctx, schemaName)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].Name)

	// inactive fields still count towards ordering
	n, err := fields.Count(ctx, schemaName)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// the schema name scopes the id
	err = fields.Delete(ctx, schemaName+"x", saved[1].ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound), err)

	require.NoError(t, fields.Delete(ctx, schemaName, saved[1].ID))
	err = fields.Delete(ctx, schemaName, saved[1].ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound), err)
	err = fields.Deactivate(ctx, schemaName, saved[1].ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound), err)

	n, err = fields.Count(ctx, schemaName)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testDocumentRoundTrip(t *testing.T, docs store.Documents, schemaName string) {
	ctx := context.Background()
	before := time.Now().Add(-time.Second)

	record := model.Record{"title": "Broken printer", "priority": "high"}
	inserted, err := docs.Insert(ctx, schemaName, record)
	require.NoError(t, err)
	assert.NotEmpty(t, inserted.ID)

	second, err := docs.Insert(ctx, schemaName, model.Record{"title": "Second"})
	require.NoError(t, err)
	assert.NotEqual(t, inserted.ID, second.ID)

	list, err := docs.ListAll(ctx, schemaName)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, inserted.ID, list[0].ID)
	assert.Equal(t, record, list[0].Fields)
	assert.True(t, list[0].CreatedAt.After(before), list[0].CreatedAt)
	assert.Equal(t, second.ID, list[1].ID)
}

func testMissingCollection(t *testing.T, docs store.Documents, schemaName string) {
	list, err := docs.ListAll(context.Background(), schemaName)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	err = docs.Patch(context.Background(), schemaName, uuid.NewString(), model.Record{"a": "b"})
	assert.True(t, apperror.Is(err, apperror.KindNotFound), err)
	err = docs.Remove(context.Background(), schemaName, uuid.NewString())
	assert.True(t, apperror.Is(err, apperror.KindNotFound), err)
}

func testDocumentPatch(t *testing.T, docs store.Documents, schemaName string) {
	ctx := context.Background()
	doc, err := docs.Insert(ctx, schemaName, model.Record{"title": "Old", "status": "open"})
	require.NoError(t, err)

	require.NoError(t, docs.Patch(ctx, schemaName, doc.ID, model.Record{"title": "New", "extra": "x"}))

	list, err := docs.ListAll(ctx, schemaName)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.Record{"title": "New", "status": "open", "extra": "x"}, list[0].Fields)
	assert.Equal(t, doc.ID, list[0].ID)
}

func testDocumentRemoveTwice(t *testing.T, docs store.Documents, schemaName string) {
	ctx := context.Background()
	doc, err := docs.Insert(ctx, schemaName, model.Record{"title": "Gone soon"})
	require.NoError(t, err)

	require.NoError(t, docs.Remove(ctx, schemaName, doc.ID))
	err = docs.Remove(ctx, schemaName, doc.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound), err)
	assert.Equal(t, "Document not found", err.Error())

	list, err := docs.ListAll(ctx, schemaName)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testUnknownIDs(t *testing.T, docs store.Documents, schemaName string) {
	ctx := context.Background()
	_, err := docs.Insert(ctx, schemaName, model.Record{"title": "present"})
	require.NoError(t, err)

	for _, id := range []string{uuid.NewString(), "000000000000000000000000", "not-an-id"} {
		err := docs.Patch(ctx, schemaName, id, model.Record{"title": "x"})
		assert.True(t, apperror.Is(err, apperror.KindNotFound), "patch %s: %v", id, err)
		err = docs.Remove(ctx, schemaName, id)
		assert.True(t, apperror.Is(err, apperror.KindNotFound), "remove %s: %v", id, err)
	}

	_, err = docs.ListAll(ctx, "bad name!")
	assert.True(t, apperror.Is(err, apperror.KindValidation), err)
}

func testDocumentExists(t *testing.T, docs store.Documents, schemaName string) {
	ctx := context.Background()

	ok, err := docs.Exists(ctx, schemaName, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok, "missing collection")

	doc, err := docs.Insert(ctx, schemaName, model.Record{"title": "here"})
	require.NoError(t, err)

	ok, err = docs.Exists(ctx, schemaName, doc.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, id := range []string{uuid.NewString(), "000000000000000000000000", "not-an-id"} {
		ok, err := docs.Exists(ctx, schemaName, id)
		require.NoError(t, err, id)
		assert.False(t, ok, id)
	}

	require.NoError(t, docs.Remove(ctx, schemaName, doc.ID))
	ok, err = docs.Exists(ctx, schemaName, doc.ID)
	require.NoError(t, err)
	assert.False(t, ok, "removed")
}
