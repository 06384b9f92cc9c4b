package resource

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Definition is a named resource type: its property schema and the engine
// its records live in.
type Definition struct {
	name   string
	engine Engine

	mu       sync.RWMutex
	props    []Property
	index    map[string]int
	validate bool
}

func newDefinition(name string, engine Engine, props []Property) (*Definition, error) {
	d := &Definition{
		name:     name,
		engine:   engine,
		index:    make(map[string]int),
		validate: true,
	}
	for _, p := range props {
		if p.Name == "" {
			return nil, fmt.Errorf("define %s: property with empty name", name)
		}
		if _, exists := d.index[p.Name]; exists {
			return nil, fmt.Errorf("define %s: duplicate property %q", name, p.Name)
		}
		d.index[p.Name] = len(d.props)
		d.props = append(d.props, p)
	}
	return d, nil
}

// Name returns the resource name, e.g. "User".
func (d *Definition) Name() string { return d.name }

// Engine returns the storage engine backing the resource.
func (d *Definition) Engine() Engine { return d.engine }

// Properties returns the schema in declaration order.
func (d *Definition) Properties() []Property {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Property(nil), d.props...)
}

// Property returns the named property.
func (d *Definition) Property(name string) (Property, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[name]
	if !ok {
		return Property{}, false
	}
	return d.props[i], true
}

// AddProperty extends the schema. Re-adding a property is accepted when the
// declared types agree, so callers may declare derived fields up front.
func (d *Definition) AddProperty(p Property) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkProperty(p); err != nil {
		return err
	}
	if _, ok := d.index[p.Name]; ok {
		return nil
	}
	d.index[p.Name] = len(d.props)
	d.props = append(d.props, p)
	return nil
}

// CheckProperty reports the error AddProperty would return for p without
// changing the schema.
func (d *Definition) CheckProperty(p Property) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.checkProperty(p)
}

func (d *Definition) checkProperty(p Property) error {
	i, ok := d.index[p.Name]
	if !ok {
		return nil
	}
	existing := d.props[i]
	if existing.Type != p.Type && existing.Type != Any {
		return &Error{
			Kind:     KindConfig,
			Resource: d.name,
			Err:      fmt.Errorf("resourceful: property %q already declared as %s", p.Name, existing.Type),
		}
	}
	return nil
}

// SetValidation toggles schema validation on Create and Save. It is on by default.
func (d *Definition) SetValidation(enabled bool) {
	d.mu.Lock()
	d.validate = enabled
	d.mu.Unlock()
}

// Validate checks doc against the schema regardless of the validation toggle.
func (d *Definition) Validate(doc Document) error {
	return validate(d.name, d.Properties(), doc)
}

func (d *Definition) check(doc Document) error {
	d.mu.RLock()
	enabled := d.validate
	d.mu.RUnlock()
	if !enabled {
		return nil
	}
	return d.Validate(doc)
}

// New builds an unsaved instance from attrs, applying property defaults and
// the resource tag.
func (d *Definition) New(attrs Document) *Instance {
	doc := attrs.Clone()
	if doc == nil {
		doc = Document{}
	}
	for _, p := range d.Properties() {
		if _, ok := doc[p.Name]; ok || p.Default == nil {
			continue
		}
		doc[p.Name] = cloneValue(p.Default)
	}
	doc[ResourceKey] = d.name
	return &Instance{def: d, doc: doc}
}

// Get loads the record stored under id.
func (d *Definition) Get(ctx context.Context, id string) (*Instance, error) {
	doc, err := d.engine.Get(ctx, d.name, id)
	if err != nil {
		return nil, err
	}
	return d.wrap(doc), nil
}

// Create validates and stores a new record. A random identifier is assigned
// when attrs carries none.
func (d *Definition) Create(ctx context.Context, attrs Document) (*Instance, error) {
	inst := d.New(attrs)
	if inst.ID() == "" {
		inst.doc[IDKey] = uuid.NewString()
	}
	if err := d.check(inst.doc); err != nil {
		return nil, err
	}
	doc, err := d.engine.Create(ctx, d.name, inst.doc)
	if err != nil {
		return nil, err
	}
	return d.wrap(doc), nil
}

// Update merges attrs into the stored record and saves it.
func (d *Definition) Update(ctx context.Context, id string, attrs Document) (*Instance, error) {
	inst, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := inst.Update(ctx, attrs); err != nil {
		return nil, err
	}
	return inst, nil
}

// Destroy removes the record stored under id.
func (d *Definition) Destroy(ctx context.Context, id string) error {
	return d.engine.Destroy(ctx, d.name, id)
}

// Find returns the records whose field equals value, in engine order.
func (d *Definition) Find(ctx context.Context, field, value string) ([]*Instance, error) {
	docs, err := d.engine.Find(ctx, d.name, field, value)
	if err != nil {
		return nil, err
	}
	out := make([]*Instance, 0, len(docs))
	for _, doc := range docs {
		out = append(out, d.wrap(doc))
	}
	return out, nil
}

func (d *Definition) save(ctx context.Context, doc Document) (Document, error) {
	if err := d.check(doc); err != nil {
		return nil, err
	}
	return d.engine.Save(ctx, d.name, doc.ID(), doc)
}

// Wrap turns an engine document into an instance of d.
func (d *Definition) Wrap(doc Document) *Instance { return d.wrap(doc.Clone()) }

func (d *Definition) wrap(doc Document) *Instance {
	if doc == nil {
		doc = Document{}
	}
	doc[ResourceKey] = d.name
	return &Instance{def: d, doc: doc}
}
