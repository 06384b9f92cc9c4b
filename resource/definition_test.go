package resource_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/resourceful/engine/memory"
	"github.com/jacentio/resourceful/resource"
)

func TestRegistry_Define(t *testing.T) {
	reg := resource.NewRegistry()
	engine := memory.New()

	user, err := reg.Define("User", engine, resource.Property{Name: "name", Type: resource.String})
	require.NoError(t, err)
	assert.Equal(t, "User", user.Name())
	assert.Same(t, engine, user.Engine())

	tests := []struct {
		name     string
		resource string
		engine   resource.Engine
		props    []resource.Property
		sentinel error
	}{
		{"empty name", "", engine, nil, nil},
		{"nil engine", "Repository", nil, nil, nil},
		{"empty property name", "Repository", engine, []resource.Property{{Type: resource.String}}, nil},
		{"duplicate property", "Repository", engine, []resource.Property{{Name: "a"}, {Name: "a"}}, nil},
		{"duplicate resource", "User", engine, nil, resource.ErrDuplicateResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := reg.Define(tt.resource, tt.engine, tt.props...)
			assert.Nil(t, def)
			assert.Equal(t, resource.KindConfig, resource.KindOf(err))
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}

	got, ok := reg.Lookup("User")
	assert.True(t, ok)
	assert.Same(t, user, got)
	_, ok = reg.Lookup("Repository")
	assert.False(t, ok, "failed definitions are not registered")
	assert.Equal(t, []string{"User"}, reg.Names())

	assert.Panics(t, func() { reg.MustDefine("User", engine) })
}

func TestDefinition_AddProperty(t *testing.T) {
	def := resource.NewRegistry().MustDefine("User", memory.New(),
		resource.Property{Name: "name", Type: resource.String},
		resource.Property{Name: "extra"},
	)

	require.NoError(t, def.AddProperty(resource.Property{Name: "repository_ids", Type: resource.Array}))
	require.NoError(t, def.AddProperty(resource.Property{Name: "repository_ids", Type: resource.Array}), "same type is idempotent")
	require.NoError(t, def.AddProperty(resource.Property{Name: "extra", Type: resource.String}), "any accepts a narrower type")

	conflicting := resource.Property{Name: "name", Type: resource.Number}
	assert.Equal(t, resource.KindConfig, resource.KindOf(def.CheckProperty(conflicting)))
	assert.NoError(t, def.CheckProperty(resource.Property{Name: "stars", Type: resource.Number}))
	_, added := def.Property("stars")
	assert.False(t, added, "CheckProperty does not change the schema")

	err := def.AddProperty(conflicting)
	assert.Equal(t, resource.KindConfig, resource.KindOf(err))

	names := make([]string, 0)
	for _, p := range def.Properties() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"name", "extra", "repository_ids"}, names)
}

func TestDefinition_New(t *testing.T) {
	def := resource.NewRegistry().MustDefine("User", memory.New(),
		resource.Property{Name: "repository_ids", Type: resource.Array, Default: []string{}},
		resource.Property{Name: "role", Type: resource.String, Default: "member"},
	)

	a := def.New(resource.Document{"_id": "pavan", "role": "admin"})
	b := def.New(nil)

	assert.Equal(t, "User", a.Resource())
	assert.Equal(t, "admin", a.String("role"))
	assert.Equal(t, "member", b.String("role"))
	assert.Equal(t, []string{}, a.Get("repository_ids"))

	a.Set("repository_ids", append(a.Strings("repository_ids"), "bullet"))
	assert.Empty(t, b.Strings("repository_ids"), "defaults are not shared between instances")
}

func TestDefinition_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	def := resource.NewRegistry().MustDefine("User", memory.New(),
		resource.Property{Name: "name", Type: resource.String, Required: true},
	)

	pavan, err := def.Create(ctx, resource.Document{"_id": "pavan", "name": "pavan"})
	require.NoError(t, err)
	assert.Equal(t, "pavan", pavan.ID())

	got, err := def.Get(ctx, "pavan")
	require.NoError(t, err)
	assert.Equal(t, pavan.Attrs(), got.Attrs())

	anon, err := def.Create(ctx, resource.Document{"name": "anonymous"})
	require.NoError(t, err)
	_, err = uuid.Parse(anon.ID())
	assert.NoError(t, err, "records without an id get a uuid")

	_, err = def.Create(ctx, resource.Document{"_id": "pavan", "name": "again"})
	assert.True(t, resource.IsConflict(err))

	_, err = def.Get(ctx, "nobody")
	assert.True(t, resource.IsNotFound(err))
}

func TestDefinition_CreateValidates(t *testing.T) {
	ctx := context.Background()
	def := resource.NewRegistry().MustDefine("User", memory.New(),
		resource.Property{Name: "name", Type: resource.String, Required: true},
	)

	inst, err := def.Create(ctx, resource.Document{"_id": "ghost"})
	assert.Nil(t, inst)
	assert.Equal(t, resource.KindValidation, resource.KindOf(err))
	_, err = def.Get(ctx, "ghost")
	assert.True(t, resource.IsNotFound(err), "invalid records are never stored")

	def.SetValidation(false)
	_, err = def.Create(ctx, resource.Document{"_id": "ghost"})
	assert.NoError(t, err)
	assert.Error(t, def.Validate(resource.Document{}), "Validate ignores the toggle")
}

func TestDefinition_UpdateFindDestroy(t *testing.T) {
	ctx := context.Background()
	def := resource.NewRegistry().MustDefine("Repository", memory.New(),
		resource.Property{Name: "user_id", Type: resource.String},
	)
	for _, r := range []struct{ id, user string }{{"bullet", "pavan"}, {"octonode", "pavan"}, {"issues", "christian"}} {
		_, err := def.Create(ctx, resource.Document{"_id": r.id, "user_id": r.user})
		require.NoError(t, err)
	}

	moved, err := def.Update(ctx, "issues", resource.Document{"user_id": "pavan", "_id": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "issues", moved.ID(), "the identifier cannot be updated")

	found, err := def.Find(ctx, "user_id", "pavan")
	require.NoError(t, err)
	ids := make([]string, 0, len(found))
	for _, f := range found {
		ids = append(ids, f.ID())
		assert.Equal(t, "Repository", f.Resource())
	}
	assert.Equal(t, []string{"bullet", "octonode", "issues"}, ids)

	require.NoError(t, def.Destroy(ctx, "bullet"))
	assert.True(t, resource.IsNotFound(def.Destroy(ctx, "bullet")))

	_, err = def.Update(ctx, "bullet", resource.Document{})
	assert.True(t, resource.IsNotFound(err))
}

func TestInstance_Lifecycle(t *testing.T) {
	ctx := context.Background()
	def := resource.NewRegistry().MustDefine("User", memory.New(),
		resource.Property{Name: "name", Type: resource.String, Required: true},
	)

	pavan, err := def.Create(ctx, resource.Document{"_id": "pavan", "name": "pavan"})
	require.NoError(t, err)

	other, err := def.Get(ctx, "pavan")
	require.NoError(t, err)

	pavan.Set("name", "Pavan K")
	require.NoError(t, pavan.Save(ctx))
	assert.Equal(t, "pavan", other.String("name"))
	require.NoError(t, other.Reload(ctx))
	assert.Equal(t, "Pavan K", other.String("name"))

	require.NoError(t, other.Update(ctx, map[string]any{"resource": "Repository", "email": "pavan@example.com"}))
	assert.Equal(t, "User", other.Resource())
	assert.Equal(t, "pavan@example.com", other.String("email"))

	err = other.Update(ctx, resource.Document{"name": nil})
	assert.Equal(t, resource.KindValidation, resource.KindOf(err))
	assert.Equal(t, "Pavan K", other.String("name"), "failed updates leave the instance untouched")

	attrs := other.Attrs()
	attrs["name"] = "changed"
	assert.Equal(t, "Pavan K", other.String("name"))
	assert.Same(t, def, other.Definition())

	require.NoError(t, pavan.Destroy(ctx))
	err = other.Reload(ctx)
	assert.True(t, resource.IsNotFound(err))
	assert.True(t, errors.Is(err, resource.ErrNotFound))
}

func TestStringSlice(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected []string
	}{
		{"strings", []string{"a", "b"}, []string{"a", "b"}},
		{"decoded", []any{"a", 1, "b"}, []string{"a", "b"}},
		{"nil", nil, nil},
		{"scalar", "a", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resource.StringSlice(tt.input))
		})
	}
}

func TestDocument_Clone(t *testing.T) {
	doc := resource.Document{"_id": "pavan", "repository_ids": []string{"bullet"}, "tags": []any{"x"}, "empty": []string{}}
	clone := doc.Clone()

	clone["repository_ids"].([]string)[0] = "changed"
	clone["tags"].([]any)[0] = "changed"
	assert.Equal(t, "bullet", doc["repository_ids"].([]string)[0])
	assert.Equal(t, "x", doc["tags"].([]any)[0])
	assert.NotNil(t, clone["empty"])
	assert.Equal(t, "pavan", clone.ID())

	assert.Nil(t, resource.Document(nil).Clone())
}
