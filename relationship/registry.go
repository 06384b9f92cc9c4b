package relationship

import (
	"sync"

	"github.com/jacentio/resourceful/resource"
)

type pair struct {
	parent string
	child  string
}

// Registry holds every declared relationship, indexed by parent and child type.
type Registry struct {
	mu            sync.RWMutex
	relationships []*Relationship
	byPair        map[pair]*Relationship
	byParent      map[string][]*Relationship
	byChild       map[string][]*Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byPair:   make(map[pair]*Relationship),
		byParent: make(map[string][]*Relationship),
		byChild:  make(map[string][]*Relationship),
	}
}

// Register adds a relationship. A parent/child pair, or an accessor name on
// the same parent, can only be registered once.
func (r *Registry) Register(rel *Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec := rel.spec
	if err := r.conflict(spec); err != nil {
		return err
	}

	r.relationships = append(r.relationships, rel)
	r.byPair[pair{spec.Parent, spec.Child}] = rel
	r.byParent[spec.Parent] = append(r.byParent[spec.Parent], rel)
	r.byChild[spec.Child] = append(r.byChild[spec.Child], rel)
	return nil
}

// check reports the error Register would return for spec.
func (r *Registry) check(spec Spec) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conflict(spec)
}

func (r *Registry) conflict(spec Spec) error {
	if _, exists := r.byPair[pair{spec.Parent, spec.Child}]; exists {
		return &resource.Error{Kind: resource.KindConfig, Resource: spec.Parent + "->" + spec.Child, Err: resource.ErrDuplicateRelationship}
	}
	for _, other := range r.byParent[spec.Parent] {
		if other.spec.As == spec.As {
			return &resource.Error{Kind: resource.KindConfig, Resource: spec.Parent + "." + spec.As, Err: resource.ErrDuplicateRelationship}
		}
	}
	return nil
}

// ChildrenOf returns all child relationships for a given parent type.
func (r *Registry) ChildrenOf(parentType string) []*Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Relationship(nil), r.byParent[parentType]...)
}

// ParentsOf returns all relationships in which childType is the child.
func (r *Registry) ParentsOf(childType string) []*Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Relationship(nil), r.byChild[childType]...)
}

// Lookup returns the relationship exposed on parentType under the accessor name as.
func (r *Registry) Lookup(parentType, as string) (*Relationship, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rel := range r.byParent[parentType] {
		if rel.spec.As == as {
			return rel, true
		}
	}
	return nil, false
}

// Between returns the relationship declared for the parent/child pair.
func (r *Registry) Between(parentType, childType string) (*Relationship, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rel, ok := r.byPair[pair{parentType, childType}]
	return rel, ok
}

// All returns all registered relationships in declaration order.
func (r *Registry) All() []*Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Relationship(nil), r.relationships...)
}

// HasChildren returns true if the parent type has any registered child relationships.
func (r *Registry) HasChildren(parentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byParent[parentType]) > 0
}
