package resource

import (
	"context"
	"sync"
)

// Instance is a live record of a Definition. It is safe for concurrent use;
// Reload, Save and Update replace the attributes as a whole.
type Instance struct {
	def *Definition

	mu  sync.RWMutex
	doc Document
}

// Definition returns the resource type of the instance.
func (i *Instance) Definition() *Definition { return i.def }

// ID returns the record identifier.
func (i *Instance) ID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.doc.ID()
}

// Resource returns the resource type tag, e.g. "Repository".
func (i *Instance) Resource() string { return i.String(ResourceKey) }

// Get returns the raw attribute value.
func (i *Instance) Get(key string) any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.doc[key]
}

// Set assigns an attribute in memory. Call Save to persist it.
func (i *Instance) Set(key string, value any) {
	i.mu.Lock()
	i.doc[key] = value
	i.mu.Unlock()
}

// String returns a string attribute, or "" when absent or of another type.
func (i *Instance) String(key string) string {
	s, _ := i.Get(key).(string)
	return s
}

// Strings returns an array attribute as strings. Engines decode arrays
// differently, so both []string and []any are accepted; non-string elements
// are skipped.
func (i *Instance) Strings(key string) []string {
	return stringSlice(i.Get(key))
}

// Attrs returns a copy of the instance document.
func (i *Instance) Attrs() Document {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.doc.Clone()
}

func (i *Instance) replace(doc Document) {
	fresh := i.def.wrap(doc).doc
	i.mu.Lock()
	i.doc = fresh
	i.mu.Unlock()
}

// Reload replaces the instance attributes with the stored record.
func (i *Instance) Reload(ctx context.Context) error {
	doc, err := i.def.engine.Get(ctx, i.def.name, i.ID())
	if err != nil {
		return err
	}
	i.replace(doc)
	return nil
}

// Save validates and persists the instance.
func (i *Instance) Save(ctx context.Context) error {
	doc, err := i.def.save(ctx, i.Attrs())
	if err != nil {
		return err
	}
	i.replace(doc)
	return nil
}

// Update merges attrs into the instance and saves it. The identifier and the
// resource tag cannot be changed this way.
func (i *Instance) Update(ctx context.Context, attrs Document) error {
	next := i.Attrs()
	for k, v := range attrs {
		if k == IDKey || k == ResourceKey {
			continue
		}
		next[k] = v
	}
	doc, err := i.def.save(ctx, next)
	if err != nil {
		return err
	}
	i.replace(doc)
	return nil
}

// Destroy removes the stored record.
func (i *Instance) Destroy(ctx context.Context) error {
	return i.def.engine.Destroy(ctx, i.def.name, i.ID())
}

// StringSlice converts an array value decoded by any engine into strings.
func StringSlice(v any) []string { return stringSlice(v) }

func stringSlice(v any) []string {
	switch v := v.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
