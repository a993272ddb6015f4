package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Collections
const (
	CollectionProfiles     = "profiles"
	CollectionProperties   = "properties"
	CollectionDetails      = "property_details"
	CollectionFeatures     = "property_features"
	CollectionEnhancements = "property_enhancements"
	CollectionInspections  = "property_inspections"
	CollectionPaymentLogs  = "payment_logs"
)

// Buckets
const (
	BucketPropertyImages = "property-images"
	BucketFloorPlans     = "floor-plans"
)

var ErrUnfilteredMutation = errors.New("update/delete requires a filter")

// Record is one row as exchanged with the backing store.
type Record map[string]any

// Condition is a single column predicate. Op is "eq" or "in".
type Condition struct {
	Column string
	Op     string
	Value  any
	Values []string
}

type Filter []Condition

func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: "eq", Value: value}
}

func In(column string, values ...string) Condition {
	return Condition{Column: column, Op: "in", Values: values}
}

type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// Gateway is the typed CRUD surface over named collections. Every call is one
// round trip with no partial-success semantics beyond the backing store's.
type Gateway interface {
	Insert(ctx context.Context, collection string, records ...Record) ([]Record, error)
	Update(ctx context.Context, collection string, filter Filter, patch Record) ([]Record, error)
	Delete(ctx context.Context, collection string, filter Filter) error
	Select(ctx context.Context, collection string, filter Filter, order ...Order) ([]Record, error)
}

// ObjectEntry is one stored object, Path relative to its bucket.
type ObjectEntry struct {
	Path string
	Size int64
}

// ObjectStore holds binary objects (photos, floor plans) by bucket and path.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error)
	Remove(ctx context.Context, bucket string, paths []string) error
	List(ctx context.Context, bucket, prefix string) ([]ObjectEntry, error)
}

// APIError is a non-2xx response from an HTTP backend.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase error %d: %s", e.Status, e.Body)
}

// Encode converts a tagged struct into a Record via its json tags.
func Encode(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// Decode fills v from a Record via json tags.
func Decode(r Record, v any) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func DecodeAll[T any](records []Record) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, r := range records {
		var item T
		if err := Decode(r, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// Merge returns a copy of base with patch applied on top.
func Merge(base, patch Record) Record {
	out := make(Record, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
