// Package storagetest holds the behaviour every storage.Database backend must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/taskdesk/internal/storage"
)

// Table must exist in the backend with the tasks schema.
const Table = "tasks"

func taskRecord(id int64, title, status string, owner any) storage.Record {
	now := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	return storage.Record{
		"id":          id,
		"title":       title,
		"description": "",
		"status":      status,
		"priority":    "medium",
		"due_date":    nil,
		"user_id":     owner,
		"created_at":  now,
		"updated_at":  now,
	}
}

// Run exercises db, which must start with an empty tasks table.
func Run(t *testing.T, db storage.Database) {
	t.Helper()
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, db.Insert(ctx, Table, taskRecord(1, "first", "todo", nil)))
	require.NoError(t, db.Insert(ctx, Table, taskRecord(2, "second", "completed", owner)))
	require.NoError(t, db.Insert(ctx, Table, taskRecord(3, "third", "todo", owner)))

	t.Run("find by id", func(t *testing.T) {
		r, err := db.Find(ctx, Table, storage.Conditions{"id": int64(2)})
		require.NoError(t, err)
		assert.Equal(t, "second", r.String("title"))

		id, err := r.Int64("id")
		require.NoError(t, err)
		assert.Equal(t, int64(2), id)

		got, ok, err := r.UUID("user_id")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, owner, got)

		created, ok, err := r.Time("created_at")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 19, created.UTC().Day())
	})

	t.Run("find missing", func(t *testing.T) {
		_, err := db.Find(ctx, Table, storage.Conditions{"id": int64(99)})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("find all and where", func(t *testing.T) {
		all, err := db.FindAll(ctx, Table)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		owned, err := db.FindWhere(ctx, Table, storage.Conditions{"user_id": owner})
		require.NoError(t, err)
		assert.Len(t, owned, 2)

		todo, err := db.FindWhere(ctx, Table, storage.Conditions{"user_id": owner, "status": "todo"})
		require.NoError(t, err)
		require.Len(t, todo, 1)
		assert.Equal(t, "third", todo[0].String("title"))
	})

	t.Run("count", func(t *testing.T) {
		n, err := db.Count(ctx, Table, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = db.Count(ctx, Table, storage.Conditions{"status": "todo"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("update", func(t *testing.T) {
		err := db.Update(ctx, Table, storage.Conditions{"id": int64(1)}, storage.Record{"title": "renamed", "status": "in_progress"})
		require.NoError(t, err)

		r, err := db.Find(ctx, Table, storage.Conditions{"id": int64(1)})
		require.NoError(t, err)
		assert.Equal(t, "renamed", r.String("title"))
		assert.Equal(t, "in_progress", r.String("status"))

		err = db.Update(ctx, Table, storage.Conditions{"id": int64(99)}, storage.Record{"title": "x"})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, db.Delete(ctx, Table, storage.Conditions{"id": int64(3)}))

		_, err := db.Find(ctx, Table, storage.Conditions{"id": int64(3)})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = db.Delete(ctx, Table, storage.Conditions{"id": int64(3)})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		n, err := db.Count(ctx, Table, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}
