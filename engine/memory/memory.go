// Package memory provides an in-process storage engine.
//
// Records are kept per resource in insertion order, which is also the order
// Find returns them in. The engine is safe for concurrent use and implements
// resource.Appender and resource.Swapper.
package memory

import (
	"context"
	"sync"

	"github.com/jacentio/resourceful/resource"
)

type table struct {
	order []string
	docs  map[string]resource.Document
}

// Engine is an in-memory resource.Engine.
type Engine struct {
	mu     sync.RWMutex
	tables map[string]*table
}

var (
	_ resource.Engine   = (*Engine)(nil)
	_ resource.Appender = (*Engine)(nil)
	_ resource.Swapper  = (*Engine)(nil)
)

// New creates an empty Engine.
func New() *Engine {
	return &Engine{tables: make(map[string]*table)}
}

func (e *Engine) table(name string) *table {
	t, ok := e.tables[name]
	if !ok {
		t = &table{docs: make(map[string]resource.Document)}
		e.tables[name] = t
	}
	return t
}

// Get implements resource.Engine.
func (e *Engine) Get(ctx context.Context, name, id string) (resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[name]
	if !ok {
		return nil, resource.NotFound(name, id)
	}
	doc, ok := t.docs[id]
	if !ok {
		return nil, resource.NotFound(name, id)
	}
	return doc.Clone(), nil
}

// Create implements resource.Engine.
func (e *Engine) Create(ctx context.Context, name string, doc resource.Document) (resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := doc.ID()
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.table(name)
	if _, exists := t.docs[id]; exists {
		return nil, resource.Conflict(name, id)
	}
	t.docs[id] = doc.Clone()
	t.order = append(t.order, id)
	return doc.Clone(), nil
}

// Save implements resource.Engine.
func (e *Engine) Save(ctx context.Context, name, id string, doc resource.Document) (resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored := doc.Clone()
	stored[resource.IDKey] = id
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.table(name)
	if _, exists := t.docs[id]; !exists {
		t.order = append(t.order, id)
	}
	t.docs[id] = stored
	return stored.Clone(), nil
}

// Destroy implements resource.Engine.
func (e *Engine) Destroy(ctx context.Context, name, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return resource.NotFound(name, id)
	}
	if _, exists := t.docs[id]; !exists {
		return resource.NotFound(name, id)
	}
	delete(t.docs, id)
	for i, candidate := range t.order {
		if candidate == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// Find implements resource.Engine.
func (e *Engine) Find(ctx context.Context, name, field, value string) ([]resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[name]
	if !ok {
		return nil, nil
	}
	var out []resource.Document
	for _, id := range t.order {
		doc := t.docs[id]
		if v, ok := doc[field].(string); ok && v == value {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// Append implements resource.Appender.
func (e *Engine) Append(ctx context.Context, name, id, field, value string) (resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return nil, resource.NotFound(name, id)
	}
	doc, ok := t.docs[id]
	if !ok {
		return nil, resource.NotFound(name, id)
	}
	doc[field] = append(resource.StringSlice(doc[field]), value)
	return doc.Clone(), nil
}

// Swap implements resource.Swapper.
func (e *Engine) Swap(ctx context.Context, name, id, field string, old, next []string) (resource.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return nil, resource.NotFound(name, id)
	}
	doc, ok := t.docs[id]
	if !ok {
		return nil, resource.NotFound(name, id)
	}
	if !resource.EqualStrings(resource.StringSlice(doc[field]), old) {
		return nil, resource.Conflict(name, id)
	}
	doc[field] = append(make([]string, 0, len(next)), next...)
	return doc.Clone(), nil
}

// Len returns the number of records stored for a resource.
func (e *Engine) Len(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.tables[name]; ok {
		return len(t.docs)
	}
	return 0
}
