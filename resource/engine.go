package resource

import "context"

// Reserved document keys.
const (
	IDKey       = "_id"
	ResourceKey = "resource"
)

// Document is the engine-level representation of a record.
type Document map[string]any

// ID returns the document identifier, or "" when it has none.
func (d Document) ID() string {
	id, _ := d[IDKey].(string)
	return id
}

// Clone returns a copy of d. Slices of strings and generic slices are copied
// so that appending to a cloned foreign array never aliases the original.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]any, len(v))
		copy(out, v)
		return out
	default:
		return v
	}
}

// Engine is the storage engine adapter every backing store implements.
//
// Engines are addressed per resource name (a table, bucket or collection) and
// know nothing about relationships. Create must fail with a Conflict error when
// the identifier is taken; Get and Destroy must fail with a NotFound error when
// the record is absent. Any other failure is passed to callers unchanged.
type Engine interface {
	// Get loads a record by identifier.
	Get(ctx context.Context, resource, id string) (Document, error)

	// Create stores a new record. doc must carry an identifier.
	Create(ctx context.Context, resource string, doc Document) (Document, error)

	// Save replaces the record stored under id with doc.
	Save(ctx context.Context, resource, id string, doc Document) (Document, error)

	// Destroy removes a record by identifier.
	Destroy(ctx context.Context, resource, id string) error

	// Find returns every record whose field equals value, in the engine's
	// natural iteration order.
	Find(ctx context.Context, resource, field, value string) ([]Document, error)
}

// Appender is implemented by engines that can append a string to an array
// field atomically. Relationship writes use it to avoid read-modify-write.
type Appender interface {
	// Append adds value to the array stored in field and returns the updated record.
	Append(ctx context.Context, resource, id, field, value string) (Document, error)
}

// Swapper is implemented by engines that can replace a string array field
// only while it still holds an expected value. Relationship repairs use it so
// a concurrent Append is never overwritten.
type Swapper interface {
	// Swap stores next in field if the field currently equals old (a missing
	// field equals an empty array) and returns the updated record. It fails
	// with a Conflict error when the field holds anything else.
	Swap(ctx context.Context, resource, id, field string, old, next []string) (Document, error)
}

// EqualStrings reports whether two string arrays hold the same elements in
// the same order. nil and empty are equal.
func EqualStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
