// Package bolt provides an embedded on-disk storage engine.
//
// Each resource is a bolt bucket keyed by record identifier; records are
// stored as BSON documents. Find walks a bucket in key order, so children are
// listed sorted by identifier. Writes run inside a single bolt transaction,
// which makes Append and Swap atomic.
package bolt

import (
	"context"
	"fmt"

	"github.com/boltdb/bolt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jacentio/resourceful/resource"
)

// Engine is a bolt-backed resource.Engine.
type Engine struct {
	db     *bolt.DB
	config Config
	logger *zap.Logger
}

var (
	_ resource.Engine   = (*Engine)(nil)
	_ resource.Appender = (*Engine)(nil)
	_ resource.Swapper  = (*Engine)(nil)
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Open opens (or creates) the database file described by config.
func Open(config Config, opts ...Option) (*Engine, error) {
	config.validate()
	db, err := bolt.Open(config.Path, config.FileMode, &bolt.Options{Timeout: config.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", config.Path, err)
	}
	e := &Engine{db: db, config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger.Debug("bolt opened", zap.String("path", config.Path))
	return e, nil
}

// Close flushes the database file and releases its lock.
func (e *Engine) Close() error {
	err := multierr.Append(e.db.Sync(), e.db.Close())
	e.logger.Debug("bolt closed", zap.String("path", e.config.Path), zap.Error(err))
	return err
}

func (e *Engine) bucketName(name string) []byte {
	return []byte(e.config.BucketPrefix + name)
}

// Get implements resource.Engine.
func (e *Engine) Get(ctx context.Context, name, id string) (resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc resource.Document
	err := e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(e.bucketName(name))
		if b == nil {
			return resource.NotFound(name, id)
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return resource.NotFound(name, id)
		}
		var err error
		doc, err = decode(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Create implements resource.Engine.
func (e *Engine) Create(ctx context.Context, name string, doc resource.Document) (resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := doc.ID()
	raw, err := encode(doc)
	if err != nil {
		return nil, err
	}
	err = e.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(e.bucketName(name))
		if err != nil {
			return fmt.Errorf("bucket %s: %w", name, err)
		}
		if b.Get([]byte(id)) != nil {
			return resource.Conflict(name, id)
		}
		return b.Put([]byte(id), raw)
	})
	if err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

// Save implements resource.Engine.
func (e *Engine) Save(ctx context.Context, name, id string, doc resource.Document) (resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored := doc.Clone()
	stored[resource.IDKey] = id
	raw, err := encode(stored)
	if err != nil {
		return nil, err
	}
	err = e.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(e.bucketName(name))
		if err != nil {
			return fmt.Errorf("bucket %s: %w", name, err)
		}
		return b.Put([]byte(id), raw)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Destroy implements resource.Engine.
func (e *Engine) Destroy(ctx context.Context, name, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(e.bucketName(name))
		if b == nil || b.Get([]byte(id)) == nil {
			return resource.NotFound(name, id)
		}
		return b.Delete([]byte(id))
	})
}

// Find implements resource.Engine.
func (e *Engine) Find(ctx context.Context, name, field, value string) ([]resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []resource.Document
	err := e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(e.bucketName(name))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, raw []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := decode(raw)
			if err != nil {
				return fmt.Errorf("decode %s %q: %w", name, k, err)
			}
			if v, ok := doc[field].(string); ok && v == value {
				out = append(out, doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Append implements resource.Appender.
func (e *Engine) Append(ctx context.Context, name, id, field, value string) (resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc resource.Document
	err := e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(e.bucketName(name))
		if b == nil {
			return resource.NotFound(name, id)
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return resource.NotFound(name, id)
		}
		var err error
		if doc, err = decode(raw); err != nil {
			return err
		}
		doc[field] = append(resource.StringSlice(doc[field]), value)
		if raw, err = encode(doc); err != nil {
			return err
		}
		return b.Put([]byte(id), raw)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Swap implements resource.Swapper. The comparison and the write share one
// Update transaction.
func (e *Engine) Swap(ctx context.Context, name, id, field string, old, next []string) (resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc resource.Document
	err := e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(e.bucketName(name))
		if b == nil {
			return resource.NotFound(name, id)
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return resource.NotFound(name, id)
		}
		var err error
		if doc, err = decode(raw); err != nil {
			return err
		}
		if !resource.EqualStrings(resource.StringSlice(doc[field]), old) {
			return resource.Conflict(name, id)
		}
		doc[field] = append(make([]string, 0, len(next)), next...)
		if raw, err = encode(doc); err != nil {
			return err
		}
		return b.Put([]byte(id), raw)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func encode(doc resource.Document) ([]byte, error) {
	raw, err := bson.Marshal(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("encode bson: %w", err)
	}
	return raw, nil
}

func decode(raw []byte) (resource.Document, error) {
	var m map[string]any
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode bson: %w", err)
	}
	return resource.Document(normalize(m).(map[string]any)), nil
}

// normalize replaces the driver's container types with plain Go maps and
// slices so documents look the same whichever engine produced them.
func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = normalize(e)
		}
		return v
	case primitive.M:
		return normalize(map[string]any(v))
	case primitive.D:
		return normalize(map[string]any(v.Map()))
	case primitive.A:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	case []any:
		for i, e := range v {
			v[i] = normalize(e)
		}
		return v
	default:
		return v
	}
}
