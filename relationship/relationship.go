package relationship

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacentio/resourceful/internal/shard"
	"github.com/jacentio/resourceful/resource"
)

// Spec describes a one-to-many relationship between two resource types.
type Spec struct {
	// Parent is the parent resource name (e.g., "User").
	Parent string

	// Child is the child resource name (e.g., "Repository").
	Child string

	// As is the plural accessor name (e.g., "repositories").
	As string

	// ForeignArray is the parent attribute listing child identifiers (e.g., "repository_ids").
	ForeignArray string

	// ForeignKey is the child attribute referencing the parent (e.g., "user_id").
	ForeignKey string
}

// DestroyOptions configures DestroyParent.
type DestroyOptions struct {
	// Cascade destroys every child before the parent.
	Cascade bool

	// OrphanProtect fails the destroy if children exist.
	OrphanProtect bool
}

// Relationship executes relationship-aware operations for one Spec.
//
// Child creation is a two-phase write: the child is stored first and the
// parent's foreign array is only extended once that succeeded. A failure
// between the phases leaves a child without a back-reference in the array;
// Children still finds it because it queries the foreign key, and Reconcile
// repairs the array.
type Relationship struct {
	spec      Spec
	parent    *resource.Definition
	child     *resource.Definition
	nameField string
	scopeIDs  bool
	locks     *locks
	logger    *zap.Logger
}

// Spec returns the relationship description.
func (r *Relationship) Spec() Spec { return r.spec }

// ParentDefinition returns the parent resource type.
func (r *Relationship) ParentDefinition() *resource.Definition { return r.parent }

// ChildDefinition returns the child resource type.
func (r *Relationship) ChildDefinition() *resource.Definition { return r.child }

// ChildID computes the identifier a child created under parentID receives.
// An explicit "_id" is used verbatim unless ScopeIDs is set; otherwise the
// identifier is "<parent>/<parentID>/<id or name>", with a random UUID when
// attrs has neither.
func (r *Relationship) ChildID(parentID string, attrs resource.Document) string {
	id, _ := attrs[resource.IDKey].(string)
	if id != "" && !r.scopeIDs {
		return id
	}
	segment := id
	if segment == "" {
		segment, _ = attrs[r.nameField].(string)
	}
	if segment == "" {
		segment = uuid.NewString()
	}
	return shard.Ref(r.spec.Parent, parentID) + "/" + segment
}

// CreateChild loads the parent stored under parentID and creates a child of it.
func (r *Relationship) CreateChild(ctx context.Context, parentID string, attrs resource.Document) (*resource.Instance, error) {
	parent, err := r.parent.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return r.createChild(ctx, parent, attrs)
}

// CreateChildOf creates a child of an already loaded parent. On success the
// parent's foreign array is refreshed with the persisted value.
func (r *Relationship) CreateChildOf(ctx context.Context, parent *resource.Instance, attrs resource.Document) (*resource.Instance, error) {
	if err := r.checkParent(parent); err != nil {
		return nil, err
	}
	return r.createChild(ctx, parent, attrs)
}

func (r *Relationship) createChild(ctx context.Context, parent *resource.Instance, attrs resource.Document) (*resource.Instance, error) {
	parentID := parent.ID()
	doc := attrs.Clone()
	if doc == nil {
		doc = resource.Document{}
	}
	doc[resource.IDKey] = r.ChildID(parentID, doc)
	doc[r.spec.ForeignKey] = parentID

	child, err := r.child.Create(ctx, doc)
	if err != nil {
		return nil, err
	}

	if err := r.appendChild(ctx, parent, parentID, child.ID()); err != nil {
		r.logger.Warn("child created but parent array not updated",
			zap.String("parent", parentID),
			zap.String("child", child.ID()),
			zap.Error(err),
		)
		return nil, err
	}

	r.logger.Debug("child created",
		zap.String("parent", parentID),
		zap.String("child", child.ID()),
	)
	return child, nil
}

// appendChild adds childID to the parent's foreign array without
// de-duplication. Engines implementing resource.Appender append atomically;
// otherwise the parent is re-read and saved. parent is refreshed with the
// persisted array before the stripe is released, so it never moves back to
// an older array.
func (r *Relationship) appendChild(ctx context.Context, parent *resource.Instance, parentID, childID string) error {
	unlock := r.locks.lock(shard.Ref(r.spec.Parent, parentID))
	defer unlock()

	var ids any
	if app, ok := r.parent.Engine().(resource.Appender); ok {
		doc, err := app.Append(ctx, r.spec.Parent, parentID, r.spec.ForeignArray, childID)
		if err != nil {
			return err
		}
		ids = doc[r.spec.ForeignArray]
	} else {
		stored, err := r.parent.Get(ctx, parentID)
		if err != nil {
			return err
		}
		stored.Set(r.spec.ForeignArray, append(stored.Strings(r.spec.ForeignArray), childID))
		if err := stored.Save(ctx); err != nil {
			return err
		}
		ids = stored.Get(r.spec.ForeignArray)
	}
	parent.Set(r.spec.ForeignArray, ids)
	return nil
}

// maxSwapAttempts bounds how often an array rewrite starts over after another
// writer changed the array between read and write.
const maxSwapAttempts = 5

// rewriteArray replaces the parent's foreign array with next(current) and
// reports whether anything was written. With a resource.Swapper engine the
// write only lands while the stored array still equals current; otherwise it
// is retried from a fresh read. The caller holds the parent's stripe.
func (r *Relationship) rewriteArray(ctx context.Context, parentID string, next func(current []string) ([]string, error)) (*resource.Instance, bool, error) {
	for attempt := 1; ; attempt++ {
		parent, err := r.parent.Get(ctx, parentID)
		if err != nil {
			return nil, false, err
		}
		current := parent.Strings(r.spec.ForeignArray)
		ids, err := next(current)
		if err != nil {
			return nil, false, err
		}
		if resource.EqualStrings(current, ids) {
			return parent, false, nil
		}

		sw, ok := r.parent.Engine().(resource.Swapper)
		if !ok {
			parent.Set(r.spec.ForeignArray, ids)
			if err := parent.Save(ctx); err != nil {
				return nil, false, err
			}
			return parent, true, nil
		}
		doc, err := sw.Swap(ctx, r.spec.Parent, parentID, r.spec.ForeignArray, current, ids)
		if err == nil {
			return r.parent.Wrap(doc), true, nil
		}
		if !resource.IsConflict(err) || attempt == maxSwapAttempts {
			return nil, false, err
		}
		r.logger.Debug("parent array changed concurrently, retrying",
			zap.String("parent", parentID),
			zap.Int("attempt", attempt),
		)
	}
}

// Children returns the children whose foreign key equals parentID, in engine
// order. The foreign array is not consulted. An empty result is not an error.
func (r *Relationship) Children(ctx context.Context, parentID string) ([]*resource.Instance, error) {
	children, err := r.child.Find(ctx, r.spec.ForeignKey, parentID)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		c.Set(r.spec.ForeignKey, parentID)
	}
	return children, nil
}

// ChildrenOf returns the children of a loaded parent.
func (r *Relationship) ChildrenOf(ctx context.Context, parent *resource.Instance) ([]*resource.Instance, error) {
	if err := r.checkParent(parent); err != nil {
		return nil, err
	}
	return r.Children(ctx, parent.ID())
}

// Parent loads the parent a child refers to.
func (r *Relationship) Parent(ctx context.Context, child *resource.Instance) (*resource.Instance, error) {
	parentID := child.String(r.spec.ForeignKey)
	if parentID == "" {
		return nil, resource.NotFound(r.spec.Parent, "")
	}
	return r.parent.Get(ctx, parentID)
}

// DestroyChild destroys a child and removes its identifier from the parent's
// foreign array. A parent that no longer exists is not an error.
func (r *Relationship) DestroyChild(ctx context.Context, childID string) error {
	child, err := r.child.Get(ctx, childID)
	if err != nil {
		return err
	}
	if err := r.child.Destroy(ctx, childID); err != nil {
		return err
	}

	parentID := child.String(r.spec.ForeignKey)
	if parentID == "" {
		return nil
	}

	unlock := r.locks.lock(shard.Ref(r.spec.Parent, parentID))
	defer unlock()

	_, _, err = r.rewriteArray(ctx, parentID, func(current []string) ([]string, error) {
		kept := make([]string, 0, len(current))
		for _, id := range current {
			if id != childID {
				kept = append(kept, id)
			}
		}
		return kept, nil
	})
	if resource.IsNotFound(err) {
		return nil
	}
	return err
}

// DestroyParent destroys a parent. With OrphanProtect it refuses while
// children exist; with Cascade the children are destroyed first.
func (r *Relationship) DestroyParent(ctx context.Context, parentID string, opts DestroyOptions) error {
	if opts.Cascade || opts.OrphanProtect {
		children, err := r.Children(ctx, parentID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			if !opts.Cascade {
				return &resource.Error{Kind: resource.KindChildren, Resource: r.spec.Parent, ID: parentID, Err: resource.ErrHasChildren}
			}
			for _, c := range children {
				if err := r.child.Destroy(ctx, c.ID()); err != nil && !resource.IsNotFound(err) {
					return err
				}
			}
			r.logger.Info("cascaded destroy",
				zap.String("parent", parentID),
				zap.Int("children", len(children)),
			)
		}
	}
	return r.parent.Destroy(ctx, parentID)
}

// Reconcile repairs the parent's foreign array so it lists every child that
// references the parent exactly once. Identifiers already in the array keep
// their position; children missing from it are appended in engine order,
// followed by any of childIDs that reference the parent. An identifier the
// children query did not return is only dropped after a Get shows the child
// is gone or belongs to another parent, because the query may read a lagging
// index. childIDs lets callers that just observed a write name the child.
func (r *Relationship) Reconcile(ctx context.Context, parentID string, childIDs ...string) (*resource.Instance, error) {
	unlock := r.locks.lock(shard.Ref(r.spec.Parent, parentID))
	defer unlock()

	var before, after int
	parent, changed, err := r.rewriteArray(ctx, parentID, func(current []string) ([]string, error) {
		ids, err := r.reconciled(ctx, parentID, current, childIDs)
		before, after = len(current), len(ids)
		return ids, err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		r.logger.Info("parent array reconciled",
			zap.String("parent", parentID),
			zap.Int("before", before),
			zap.Int("after", after),
		)
	}
	return parent, nil
}

func (r *Relationship) reconciled(ctx context.Context, parentID string, current, childIDs []string) ([]string, error) {
	children, err := r.Children(ctx, parentID)
	if err != nil {
		return nil, err
	}

	owned := make(map[string]bool, len(children))
	for _, c := range children {
		owned[c.ID()] = true
	}
	ids := make([]string, 0, len(current)+len(children))
	seen := make(map[string]bool, len(current)+len(children))
	keep := func(id string) error {
		if seen[id] {
			return nil
		}
		mine, checked := owned[id]
		if !checked {
			var err error
			if mine, err = r.owns(ctx, parentID, id); err != nil {
				return err
			}
			owned[id] = mine
		}
		if mine {
			seen[id] = true
			ids = append(ids, id)
		}
		return nil
	}

	for _, id := range current {
		if err := keep(id); err != nil {
			return nil, err
		}
	}
	for _, c := range children {
		if err := keep(c.ID()); err != nil {
			return nil, err
		}
	}
	for _, id := range childIDs {
		if err := keep(id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// owns reports whether the child stored under childID references parentID.
func (r *Relationship) owns(ctx context.Context, parentID, childID string) (bool, error) {
	child, err := r.child.Get(ctx, childID)
	if resource.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return child.String(r.spec.ForeignKey) == parentID, nil
}

func (r *Relationship) checkParent(parent *resource.Instance) error {
	if parent == nil {
		return resource.NotFound(r.spec.Parent, "")
	}
	if parent.Resource() != r.spec.Parent {
		return &resource.Error{
			Kind:     resource.KindConfig,
			Resource: parent.Resource(),
			ID:       parent.ID(),
			Err:      fmt.Errorf("resourceful: instance is not a %s", r.spec.Parent),
		}
	}
	return nil
}
