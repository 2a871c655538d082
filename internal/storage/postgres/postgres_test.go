package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/storage"
	"github.com/BuzzLyutic/taskdesk/internal/storage/storagetest"
)

// setupStore starts a disposable PostgreSQL and applies the schema.
func setupStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests are skipped with -short")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	return s
}

func truncate(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.Pool().Exec(context.Background(), "TRUNCATE tasks, users, idempotency_keys")
	require.NoError(t, err)
}

func TestStore_Postgres(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	t.Run("contract", func(t *testing.T) {
		truncate(t, s)
		storagetest.Run(t, s)
	})

	t.Run("migrate is idempotent", func(t *testing.T) {
		assert.NoError(t, s.Migrate(ctx))
	})

	t.Run("dates round trip", func(t *testing.T) {
		truncate(t, s)
		due := model.NewDate(2026, time.November, 2)
		require.NoError(t, s.Insert(ctx, "tasks", storage.Record{
			"id":       int64(10),
			"title":    "with due date",
			"due_date": due,
		}))

		r, err := s.Find(ctx, "tasks", storage.Conditions{"id": int64(10)})
		require.NoError(t, err)
		got, ok, err := r.Time("due_date")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "2026-11-02", got.Format(model.DateLayout))
		assert.Equal(t, "todo", r.String("status"))
	})

	t.Run("null conditions", func(t *testing.T) {
		truncate(t, s)
		require.NoError(t, s.Insert(ctx, "tasks", storage.Record{"id": int64(1), "title": "mock", "user_id": nil}))
		require.NoError(t, s.Insert(ctx, "tasks", storage.Record{"id": int64(2), "title": "owned", "user_id": uuid.New()}))

		rows, err := s.FindWhere(ctx, "tasks", storage.Conditions{"user_id": nil})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "mock", rows[0].String("title"))
	})

	t.Run("unique violation is a conflict", func(t *testing.T) {
		truncate(t, s)
		rec := storage.Record{"key": "abc", "resource_id": int64(1)}
		require.NoError(t, s.Insert(ctx, "idempotency_keys", rec))

		err := s.Insert(ctx, "idempotency_keys", rec)
		assert.ErrorIs(t, err, storage.ErrConflict)
	})
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"unique", &pgconn.PgError{Code: codeUniqueViolation}, storage.ErrConflict},
		{"foreign key", &pgconn.PgError{Code: codeForeignKeyViolation}, storage.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	other := errors.New("boom")
	assert.Same(t, other, mapError(other))
}

func TestWhereClause(t *testing.T) {
	where, args := whereClause(storage.Conditions{"status": "todo", "id": int64(3), "user_id": nil}, 2)
	assert.Equal(t, ` WHERE "id" = $2 AND "status" = $3 AND "user_id" IS NULL`, where)
	assert.Equal(t, []any{int64(3), "todo"}, args)

	where, args = whereClause(nil, 1)
	assert.Empty(t, where)
	assert.Nil(t, args)
}
