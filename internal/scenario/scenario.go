// Package scenario wires the User/Repository schema used by the
// relationship tests and exposes typed accessors composed over the generic
// relationship runtime.
package scenario

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jacentio/resourceful/relationship"
	"github.com/jacentio/resourceful/resource"
)

var slug = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Seed is the data every scenario starts from: user id to repository ids,
// in creation order.
var Seed = []struct {
	User         string
	Repositories []string
}{
	{"pavan", []string{"bullet", "octonode"}},
	{"christian", []string{"repository-1", "repository-2"}},
	{"marak", []string{"haibu", "forever"}},
}

// App holds the registries and definitions of one wired scenario.
type App struct {
	Resources     *resource.Registry
	Relationships *relationship.Registry
	User          *resource.Definition
	Repository    *resource.Definition
	Users         *Users
}

// New defines User and Repository on engine and declares that a User has many
// Repositories.
func New(engine resource.Engine, o relationship.Options, opts ...relationship.DeclaratorOption) (*App, error) {
	reg := resource.NewRegistry()
	user, err := reg.Define("User", engine,
		resource.Property{Name: "name", Type: resource.String, Required: true, MinLength: 1},
	)
	if err != nil {
		return nil, err
	}
	repo, err := reg.Define("Repository", engine,
		resource.Property{Name: "name", Type: resource.String, Required: true, Pattern: slug},
		resource.Property{Name: "private", Type: resource.Boolean, Default: false},
	)
	if err != nil {
		return nil, err
	}

	d := relationship.NewDeclarator(reg, opts...)
	rel, err := d.Define("User", "Repository", o)
	if err != nil {
		return nil, err
	}
	return &App{
		Resources:     reg,
		Relationships: d.Registry(),
		User:          user,
		Repository:    repo,
		Users:         &Users{rel: rel},
	}, nil
}

// Seed stores the Seed users and their repositories through the runtime.
func (a *App) Seed(ctx context.Context) error {
	for _, s := range Seed {
		u, err := a.Users.Create(ctx, s.User)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", s.User, err)
		}
		for _, id := range s.Repositories {
			if _, err := u.CreateRepository(ctx, resource.Document{resource.IDKey: id, "name": id}); err != nil {
				return fmt.Errorf("seed repository %s: %w", id, err)
			}
		}
	}
	return nil
}

// Users is the type-level accessor for User records.
type Users struct {
	rel *relationship.Relationship
}

// Relationship returns the User has-many Repository relationship.
func (u *Users) Relationship() *relationship.Relationship { return u.rel }

// Create stores a user whose identifier and name are both name.
func (u *Users) Create(ctx context.Context, name string) (*User, error) {
	inst, err := u.rel.ParentDefinition().Create(ctx, resource.Document{resource.IDKey: name, "name": name})
	if err != nil {
		return nil, err
	}
	return &User{Instance: inst, rel: u.rel}, nil
}

// Get loads a user.
func (u *Users) Get(ctx context.Context, id string) (*User, error) {
	inst, err := u.rel.ParentDefinition().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &User{Instance: inst, rel: u.rel}, nil
}

// Repositories returns the repositories of the user stored under id.
func (u *Users) Repositories(ctx context.Context, id string) ([]*resource.Instance, error) {
	return u.rel.Children(ctx, id)
}

// CreateRepository creates a repository owned by the user stored under id.
func (u *Users) CreateRepository(ctx context.Context, id string, attrs resource.Document) (*resource.Instance, error) {
	return u.rel.CreateChild(ctx, id, attrs)
}

// Destroy removes a user. With cascade its repositories go first; otherwise
// a user that still owns repositories is kept.
func (u *Users) Destroy(ctx context.Context, id string, cascade bool) error {
	return u.rel.DestroyParent(ctx, id, relationship.DestroyOptions{Cascade: cascade, OrphanProtect: true})
}

// Owner loads the user a repository belongs to.
func (u *Users) Owner(ctx context.Context, repo *resource.Instance) (*User, error) {
	inst, err := u.rel.Parent(ctx, repo)
	if err != nil {
		return nil, err
	}
	return &User{Instance: inst, rel: u.rel}, nil
}

// User is a loaded User record.
type User struct {
	*resource.Instance
	rel *relationship.Relationship
}

// RepositoryIDs returns the cached foreign array.
func (u *User) RepositoryIDs() []string {
	return u.Strings(u.rel.Spec().ForeignArray)
}

// Repositories queries the user's repositories.
func (u *User) Repositories(ctx context.Context) ([]*resource.Instance, error) {
	return u.rel.ChildrenOf(ctx, u.Instance)
}

// CreateRepository creates a repository owned by u and refreshes u's
// foreign array.
func (u *User) CreateRepository(ctx context.Context, attrs resource.Document) (*resource.Instance, error) {
	return u.rel.CreateChildOf(ctx, u.Instance, attrs)
}
