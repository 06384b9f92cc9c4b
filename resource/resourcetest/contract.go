// Package resourcetest holds the contract every resource.Engine must satisfy.
//
// Engine packages run it from their own tests:
//
//	func TestEngineContract(t *testing.T) {
//	    resourcetest.RunEngineContract(t, func(t *testing.T) resource.Engine { return memory.New() })
//	}
package resourcetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/resourceful/resource"
)

// Factory returns a fresh, empty engine for one subtest.
type Factory func(t *testing.T) resource.Engine

const table = "Widget"

// RunEngineContract exercises Get, Create, Save, Destroy, Find and, when
// implemented, Append and Swap.
func RunEngineContract(t *testing.T, newEngine Factory) {
	t.Run("create then get round-trips declared fields", func(t *testing.T) {
		ctx := context.Background()
		e := newEngine(t)

		created, err := e.Create(ctx, table, resource.Document{"_id": "w1", "name": "gear", "resource": table})
		require.NoError(t, err)
		assert.Equal(t, "w1", created.ID())

		got, err := e.Get(ctx, table, "w1")
		require.NoError(t, err)
		assert.Equal(t, "w1", got.ID())
		assert.Equal(t, "gear", got["name"])
		assert.Equal(t, table, got["resource"])
	})

	t.Run("create with taken id is a conflict", func(t *testing.T) {
		ctx := context.Background()
		e := newEngine(t)

		_, err := e.Create(ctx, table, resource.Document{"_id": "w1", "name": "gear"})
		require.NoError(t, err)

		doc, err := e.Create(ctx, table, resource.Document{"_id": "w1", "name": "other"})
		require.Error(t, err)
		assert.Nil(t, doc)
		assert.Equal(t, resource.KindConflict, resource.KindOf(err))
		assert.ErrorIs(t, err, resource.ErrConflict)

		got, err := e.Get(ctx, table, "w1")
		require.NoError(t, err)
		assert.Equal(t, "gear", got["name"], "conflicting create must not overwrite")
	})

	t.Run("get missing is not found", func(t *testing.T) {
		e := newEngine(t)

		doc, err := e.Get(context.Background(), table, "missing")
		require.Error(t, err)
		assert.Nil(t, doc)
		assert.Equal(t, resource.KindNotFound, resource.KindOf(err))
	})

	t.Run("save replaces the stored record", func(t *testing.T) {
		ctx := context.Background()
		e := newEngine(t)

		_, err := e.Create(ctx, table, resource.Document{"_id": "w1", "name": "gear", "size": "s"})
		require.NoError(t, err)

		saved, err := e.Save(ctx, table, "w1", resource.Document{"_id": "w1", "name": "cog"})
		require.NoError(t, err)
		assert.Equal(t, "cog", saved["name"])

		got, err := e.Get(ctx, table, "w1")
		require.NoError(t, err)
		assert.Equal(t, "cog", got["name"])
		assert.NotContains(t, got, "size")
	})

	t.Run("save keeps string arrays", func(t *testing.T) {
		ctx := context.Background()
		e := newEngine(t)

		_, err := e.Save(ctx, table, "w1", resource.Document{"_id": "w1", "part_ids": []string{"a", "b"}})
		require.NoError(t, err)

		got, err := e.Get(ctx, table, "w1")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, resource.StringSlice(got["part_ids"]))
	})

	t.Run("destroy removes the record", func(t *testing.T) {
		ctx := context.Background()
		e := newEngine(t)

		_, err := e.Create(ctx, table, resource.Document{"_id": "w1"})
		require.NoError(t, err)
		require.NoError(t, e.Destroy(ctx, table, "w1"))

		_, err = e.Get(ctx, table, "w1")
		assert.Equal(t, resource.KindNotFound, resource.KindOf(err))

		err = e.Destroy(ctx, table, "w1")
		assert.Equal(t, resource.KindNotFound, resource.KindOf(err))
	})

	t.Run("find filters by field", func(t *testing.T) {
		ctx := context.Background()
		e := newEngine(t)

		for i, owner := range []string{"ann", "bob", "ann", "cy"} {
			_, err := e.Create(ctx, table, resource.Document{"_id": fmt.Sprintf("w%d", i), "owner_id": owner})
			require.NoError(t, err)
		}

		docs, err := e.Find(ctx, table, "owner_id", "ann")
		require.NoError(t, err)
		ids := make([]string, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.ID())
		}
		assert.ElementsMatch(t, []string{"w0", "w2"}, ids)

		docs, err = e.Find(ctx, table, "owner_id", "nobody")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("find on an unknown resource is empty", func(t *testing.T) {
		docs, err := newEngine(t).Find(context.Background(), "Nothing", "owner_id", "ann")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("append", func(t *testing.T) {
		e := newEngine(t)
		app, ok := e.(resource.Appender)
		if !ok {
			t.Skip("engine does not implement resource.Appender")
		}
		ctx := context.Background()

		_, err := e.Create(ctx, table, resource.Document{"_id": "w1", "part_ids": []string{"a"}})
		require.NoError(t, err)

		doc, err := app.Append(ctx, table, "w1", "part_ids", "b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, resource.StringSlice(doc["part_ids"]))

		_, err = app.Append(ctx, table, "missing", "part_ids", "b")
		assert.Equal(t, resource.KindNotFound, resource.KindOf(err))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := app.Append(ctx, table, "w1", "part_ids", fmt.Sprintf("c%d", i))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := e.Get(ctx, table, "w1")
		require.NoError(t, err)
		assert.Len(t, resource.StringSlice(got["part_ids"]), 22)
	})

	t.Run("swap replaces an array only while it is unchanged", func(t *testing.T) {
		e := newEngine(t)
		sw, ok := e.(resource.Swapper)
		if !ok {
			t.Skip("engine does not implement resource.Swapper")
		}
		ctx := context.Background()

		_, err := e.Create(ctx, table, resource.Document{"_id": "w1", "part_ids": []string{"a", "b"}})
		require.NoError(t, err)

		doc, err := sw.Swap(ctx, table, "w1", "part_ids", []string{"a", "b"}, []string{"b"})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, resource.StringSlice(doc["part_ids"]))

		doc, err = sw.Swap(ctx, table, "w1", "part_ids", []string{"a", "b"}, []string{"c"})
		assert.Nil(t, doc)
		assert.Equal(t, resource.KindConflict, resource.KindOf(err))

		got, err := e.Get(ctx, table, "w1")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, resource.StringSlice(got["part_ids"]), "stale swap must not write")

		_, err = e.Create(ctx, table, resource.Document{"_id": "w2"})
		require.NoError(t, err)
		doc, err = sw.Swap(ctx, table, "w2", "part_ids", nil, []string{"x"})
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, resource.StringSlice(doc["part_ids"]), "a missing field equals an empty array")

		_, err = sw.Swap(ctx, table, "missing", "part_ids", nil, []string{"x"})
		assert.Equal(t, resource.KindNotFound, resource.KindOf(err))
	})
}
