package model

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Reserved document keys, set by the store
const (
	KeyID        = "_id"
	KeyCreatedAt = "createdAt"
)

// IsReservedKey reports whether k is set by the store and cannot hold a field value
func IsReservedKey(k string) bool {
	return k == KeyID || k == KeyCreatedAt
}

// IsOperatorKey reports whether k would be read as an operator or a nested path by a document database
func IsOperatorKey(k string) bool {
	return strings.HasPrefix(k, "$") || strings.Contains(k, ".")
}

// ValidFieldName reports whether name can be stored as a top level document key
func ValidFieldName(name string) bool {
	return name != "" && !IsReservedKey(name) && !IsOperatorKey(name)
}

// Record is an untyped document body keyed by field name. Values are scalars:
// string, float64 (or another Go number), bool or time.Time.
type Record map[string]any

// Clone returns a shallow copy of r
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsScalar reports whether v may be stored in a Record
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool, time.Time, json.Number,
		float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// IsEmpty reports whether v counts as "not supplied": nil or the empty string
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Document is a stored record of one schema
type Document struct {
	ID        string
	CreatedAt time.Time
	Fields    Record
}

// MarshalJSON flattens the document: {"_id": ..., "createdAt": ..., <fields>}
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+2)
	for k, v := range d.Fields {
		out[k] = v
	}
	out[KeyID] = d.ID
	out[KeyCreatedAt] = d.CreatedAt
	return json.Marshal(out)
}
