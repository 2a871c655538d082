package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/storage"
	"github.com/BuzzLyutic/taskdesk/internal/storage/storagetest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	return s
}

func TestStore_Contract(t *testing.T) {
	storagetest.Run(t, newStore(t))
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := newStore(t)

	rows, err := s.FindAll(context.Background(), "tasks")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = os.Stat(s.Path("tasks"))
	assert.True(t, os.IsNotExist(err), "reads must not create the file")
}

func TestStore_WritesRecordShape(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	due := model.NewDate(2026, time.November, 2)
	created := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Insert(ctx, "tasks", storage.Record{
		"id":          int64(1760864400),
		"title":       "Design database",
		"description": "",
		"status":      "todo",
		"priority":    "medium",
		"due_date":    due,
		"created_at":  created,
		"updated_at":  created,
	}))

	raw, err := os.ReadFile(s.Path("tasks"))
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(raw, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, float64(1760864400), rows[0]["id"])
	assert.Equal(t, "2026-11-02", rows[0]["due_date"])
	assert.Equal(t, "2026-10-19T09:00:00Z", rows[0]["created_at"])

	r, err := s.Find(ctx, "tasks", storage.Conditions{"id": int64(1760864400)})
	require.NoError(t, err)
	id, err := r.Int64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(1760864400), id)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")

	first, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, first.Insert(ctx, "users", storage.Record{"email": "a@example.com", "active": true}))

	second, err := New(dir)
	require.NoError(t, err)
	r, err := second.Find(ctx, "users", storage.Conditions{"email": "a@example.com"})
	require.NoError(t, err)
	assert.True(t, r.Bool("active"))
}

func TestStore_RejectsBadTableNames(t *testing.T) {
	s := newStore(t)
	_, err := s.FindAll(context.Background(), "../etc/passwd")
	assert.Error(t, err)
}

func TestStore_CorruptFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path("tasks"), []byte("{not json"), 0o644))

	_, err := s.FindAll(context.Background(), "tasks")
	assert.Error(t, err)
}
