package relationship

import (
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/jacentio/resourceful/resource"
)

// Options configures one relationship declaration.
type Options struct {
	// As is the plural accessor name, e.g. "repositories".
	// Default: plural of the snake-cased child name.
	As string

	// Via is the foreign-key scalar stored on the child, e.g. "user_id".
	// Default: snake-cased parent name + "_id".
	Via string

	// ForeignArray is the identifier array stored on the parent, e.g. "repository_ids".
	// Default: snake-cased child name + "_ids".
	ForeignArray string

	// NameField is the child attribute used to derive identifiers when no
	// "_id" is supplied.
	// Default: "name"
	NameField string

	// ScopeIDs derives "<parent>/<parentID>/<id>" even when the caller
	// supplies an explicit "_id".
	ScopeIDs bool
}

// DeclaratorOption configures a Declarator.
type DeclaratorOption func(*Declarator)

// WithLogger sets the logger used by relationship operations.
func WithLogger(logger *zap.Logger) DeclaratorOption {
	return func(d *Declarator) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithLockStripes sets how many mutexes serialize writes to parent arrays.
// Default: 64, Max: 256
func WithLockStripes(n int) DeclaratorOption {
	return func(d *Declarator) { d.stripes = n }
}

// WithRegistry records declared relationships in an existing Registry.
func WithRegistry(r *Registry) DeclaratorOption {
	return func(d *Declarator) {
		if r != nil {
			d.relationships = r
		}
	}
}

// Declarator wires resource definitions together.
type Declarator struct {
	mu            sync.Mutex
	resources     *resource.Registry
	relationships *Registry
	logger        *zap.Logger
	stripes       int
	locks         *locks
}

// NewDeclarator creates a Declarator resolving resource names through resources.
func NewDeclarator(resources *resource.Registry, opts ...DeclaratorOption) *Declarator {
	d := &Declarator{
		resources:     resources,
		relationships: NewRegistry(),
		logger:        zap.NewNop(),
		stripes:       defaultStripes,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.locks = newLocks(d.stripes)
	return d
}

// Registry returns the relationships declared so far.
func (d *Declarator) Registry() *Registry { return d.relationships }

// Define declares that parentName has many childName. Both resources must be
// registered and the pair must not be declared yet. On success the parent
// gains the foreign array property and the child the foreign key property.
func (d *Declarator) Define(parentName, childName string, o Options) (*Relationship, error) {
	parent, ok := d.resources.Lookup(parentName)
	if !ok {
		return nil, &resource.Error{Kind: resource.KindConfig, Resource: parentName, Err: resource.ErrUnknownResource}
	}
	child, ok := d.resources.Lookup(childName)
	if !ok {
		return nil, &resource.Error{Kind: resource.KindConfig, Resource: childName, Err: resource.ErrUnknownResource}
	}

	if o.As == "" {
		o.As = plural(snake(childName))
	}
	if o.Via == "" {
		o.Via = snake(parentName) + "_id"
	}
	if o.ForeignArray == "" {
		o.ForeignArray = snake(childName) + "_ids"
	}
	if o.NameField == "" {
		o.NameField = "name"
	}

	spec := Spec{
		Parent:       parentName,
		Child:        childName,
		As:           o.As,
		ForeignArray: o.ForeignArray,
		ForeignKey:   o.Via,
	}
	arrayProp := resource.Property{Name: o.ForeignArray, Type: resource.Array, Default: []string{}}
	keyProp := resource.Property{Name: o.Via, Type: resource.String}

	// Nothing is changed until the whole declaration is known to be valid.
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.relationships.check(spec); err != nil {
		return nil, err
	}
	if err := parent.CheckProperty(arrayProp); err != nil {
		return nil, err
	}
	if err := child.CheckProperty(keyProp); err != nil {
		return nil, err
	}

	rel := &Relationship{
		spec:      spec,
		parent:    parent,
		child:     child,
		nameField: o.NameField,
		scopeIDs:  o.ScopeIDs,
		locks:     d.locks,
		logger:    d.logger.With(zap.String("relationship", parentName+"."+o.As)),
	}
	if err := parent.AddProperty(arrayProp); err != nil {
		return nil, err
	}
	if err := child.AddProperty(keyProp); err != nil {
		return nil, err
	}
	if err := d.relationships.Register(rel); err != nil {
		return nil, err
	}

	d.logger.Debug("relationship defined",
		zap.String("parent", parentName),
		zap.String("child", childName),
		zap.String("as", o.As),
		zap.String("via", o.Via),
	)
	return rel, nil
}

// MustDefine panics on declaration error; intended for bootstrap code paths.
func (d *Declarator) MustDefine(parentName, childName string, o Options) *Relationship {
	rel, err := d.Define(parentName, childName, o)
	if err != nil {
		panic(err)
	}
	return rel
}

// snake converts "OrgUnit" to "org_unit".
func snake(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func plural(word string) string {
	switch {
	case word == "":
		return word
	case strings.HasSuffix(word, "y") && len(word) > 1 && !strings.ContainsRune("aeiou", rune(word[len(word)-2])):
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(word, "s"), strings.HasSuffix(word, "x"),
		strings.HasSuffix(word, "ch"), strings.HasSuffix(word, "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}
