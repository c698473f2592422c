// Package mongo stores fields in the schemafields collection and each schema's documents in a
// collection named after the schema.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/internal/model"
	"github.com/suteetoe/schemadb/internal/store"
)

// FieldsCollection holds the schema field definitions
const FieldsCollection = "schemafields"

// Backend implements store.Backend on MongoDB
type Backend struct {
	client *mongo.Client
	db     *mongo.Database
}

// New returns a backend using the named database of client
func New(client *mongo.Client, database string) *Backend {
	return &Backend{client: client, db: client.Database(database)}
}

func (b *Backend) Fields() store.Fields       { return &fieldStore{coll: b.db.Collection(FieldsCollection)} }
func (b *Backend) Documents() store.Documents { return &documentStore{db: b.db} }

func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx, readpref.Primary())
}

func (b *Backend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}

// fieldDocument is the bson shape of a SchemaField
type fieldDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	SchemaName string             `bson:"schemaName"`
	Name       string             `bson:"name"`
	Type       string             `bson:"type"`
	Required   bool               `bson:"required"`
	Label      string             `bson:"label,omitempty"`
	Order      int                `bson:"order"`
	Active     bool               `bson:"active"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

func (d fieldDocument) toModel() model.SchemaField {
	return model.SchemaField{
		ID:         d.ID.Hex(),
		SchemaName: d.SchemaName,
		Name:       d.Name,
		Type:       model.FieldType(d.Type),
		Required:   d.Required,
		Label:      d.Label,
		Order:      d.Order,
		Active:     d.Active,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type fieldStore struct {
	coll *mongo.Collection
}

func (s *fieldStore) ListActive(ctx context.Context, schemaName string) ([]model.SchemaField, error) {
	filter := bson.M{"active": true}
	if schemaName != "" {
		filter["schemaName"] = schemaName
	}
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "createdAt", Value: 1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperror.Store(err)
	}
	var docs []fieldDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperror.Store(err)
	}

	fields := make([]model.SchemaField, 0, len(docs))
	for _, d := range docs {
		fields = append(fields, d.toModel())
	}
	return fields, nil
}

func (s *fieldStore) Count(ctx context.Context, schemaName string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"schemaName": schemaName})
	if err != nil {
		return 0, apperror.Store(err)
	}
	return n, nil
}

func (s *fieldStore) InsertMany(ctx context.Context, fields []model.SchemaField) ([]model.SchemaField, error) {
	if len(fields) == 0 {
		return []model.SchemaField{}, nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, len(fields))
	saved := make([]model.SchemaField, len(fields))
	for i, f := range fields {
		d := fieldDocument{
			ID:         primitive.NewObjectID(),
			SchemaName: f.SchemaName,
			Name:       f.Name,
			Type:       string(f.Type),
			Required:   f.Required,
			Label:      f.Label,
			Order:      f.Order,
			Active:     f.Active,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		docs[i] = d
		saved[i] = d.toModel()
	}

	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return nil, apperror.Store(err)
	}
	return saved, nil
}

func (s *fieldStore) Delete(ctx context.Context, schemaName, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.FieldNotFound()
	}
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid, "schemaName": schemaName})
	if err != nil {
		return apperror.Store(err)
	}
	if result.DeletedCount == 0 {
		return store.FieldNotFound()
	}
	return nil
}

func (s *fieldStore) Deactivate(ctx context.Context, schemaName, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.FieldNotFound()
	}
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "schemaName": schemaName},
		bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return apperror.Store(err)
	}
	if result.MatchedCount == 0 {
		return store.FieldNotFound()
	}
	return nil
}

type documentStore struct {
	db *mongo.Database
}

func (s *documentStore) collection(schemaName string) (*mongo.Collection, error) {
	if err := store.CheckSchemaName(schemaName); err != nil {
		return nil, err
	}
	if schemaName == FieldsCollection {
		return nil, apperror.Validation("schema name is reserved: " + schemaName)
	}
	return s.db.Collection(schemaName), nil
}

func (s *documentStore) Insert(ctx context.Context, schemaName string, record model.Record) (model.Document, error) {
	coll, err := s.collection(schemaName)
	if err != nil {
		return model.Document{}, err
	}

	// mongo keeps milliseconds, truncate so the returned document matches what a read returns
	createdAt := time.Now().UTC().Truncate(time.Millisecond)
	doc := bson.M{}
	for k, v := range record {
		doc[k] = v
	}
	doc[model.KeyCreatedAt] = createdAt

	result, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return model.Document{}, apperror.Store(err)
	}
	return model.Document{ID: formatID(result.InsertedID), CreatedAt: createdAt, Fields: record.Clone()}, nil
}

func (s *documentStore) ListAll(ctx context.Context, schemaName string) ([]model.Document, error) {
	coll, err := s.collection(schemaName)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, apperror.Store(err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, apperror.Store(err)
	}

	docs := make([]model.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, toDocument(m))
	}
	return docs, nil
}

func (s *documentStore) Exists(ctx context.Context, schemaName, id string) (bool, error) {
	coll, err := s.collection(schemaName)
	if err != nil {
		return false, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return false, apperror.Store(err)
	}
	return n > 0, nil
}

func (s *documentStore) Patch(ctx context.Context, schemaName, id string, fields model.Record) error {
	coll, err := s.collection(schemaName)
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.DocumentNotFound()
	}

	result, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return apperror.Store(err)
	}
	if result.MatchedCount == 0 {
		return store.DocumentNotFound()
	}
	return nil
}

func (s *documentStore) Remove(ctx context.Context, schemaName, id string) error {
	coll, err := s.collection(schemaName)
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.DocumentNotFound()
	}

	result, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return apperror.Store(err)
	}
	if result.DeletedCount == 0 {
		return store.DocumentNotFound()
	}
	return nil
}

// toDocument converts a raw bson document to a model.Document
func toDocument(m bson.M) model.Document {
	doc := model.Document{Fields: model.Record{}}
	for k, v := range m {
		switch k {
		case model.KeyID:
			doc.ID = formatID(v)
		case model.KeyCreatedAt:
			if t, ok := toScalar(v).(time.Time); ok {
				doc.CreatedAt = t
				continue
			}
			doc.Fields[k] = toScalar(v)
		default:
			doc.Fields[k] = toScalar(v)
		}
	}
	return doc
}

func formatID(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// toScalar maps bson types onto the Record value set
func toScalar(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.ObjectID:
		return val.Hex()
	case primitive.Decimal128:
		return val.String()
	case int32:
		return int64(val)
	default:
		return val
	}
}
