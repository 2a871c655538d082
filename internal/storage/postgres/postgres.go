// Package postgres implements storage.Database on top of a pgx connection pool.
package postgres

import (
	"context"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskdesk/internal/storage"
)

//go:embed schema.sql
var schema string

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type Store struct {
	pool *pgxpool.Pool
}

// New подключается к БД и сразу проверяет соединение
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the tables when they are missing. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Insert(ctx context.Context, table string, data storage.Record) error {
	cols := sortedKeys(data)
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = ident(c)
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = arg(data[c])
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ident(table), strings.Join(names, ", "), strings.Join(params, ", "))
	_, err := s.pool.Exec(ctx, sql, args...)
	return mapError(err)
}

func (s *Store) Find(ctx context.Context, table string, cond storage.Conditions) (storage.Record, error) {
	where, args := whereClause(cond, 1)
	rows, err := s.query(ctx, fmt.Sprintf("SELECT * FROM %s%s LIMIT 1", ident(table), where), args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) FindAll(ctx context.Context, table string) ([]storage.Record, error) {
	return s.FindWhere(ctx, table, nil)
}

func (s *Store) FindWhere(ctx context.Context, table string, cond storage.Conditions) ([]storage.Record, error) {
	where, args := whereClause(cond, 1)
	return s.query(ctx, fmt.Sprintf("SELECT * FROM %s%s", ident(table), where), args...)
}

func (s *Store) Update(ctx context.Context, table string, cond storage.Conditions, data storage.Record) error {
	if len(data) == 0 {
		return fmt.Errorf("update %s: no fields", table)
	}
	cols := sortedKeys(data)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(cond))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", ident(c), i+1)
		args = append(args, arg(data[c]))
	}
	where, whereArgs := whereClause(cond, len(cols)+1)
	args = append(args, whereArgs...)

	sql := fmt.Sprintf("UPDATE %s SET %s%s", ident(table), strings.Join(sets, ", "), where)
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, table string, cond storage.Conditions) error {
	where, args := whereClause(cond, 1)
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s%s", ident(table), where), args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context, table string, cond storage.Conditions) (int, error) {
	where, args := whereClause(cond, 1)
	var n int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s%s", ident(table), where), args...).Scan(&n)
	if err != nil {
		return 0, mapError(err)
	}
	return int(n), nil
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]storage.Record, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]storage.Record, len(maps))
	for i, m := range maps {
		r := storage.Record(m)
		for k, v := range r {
			// uuid приходит как [16]byte
			if b, ok := v.([16]byte); ok {
				r[k] = uuid.UUID(b)
			}
		}
		out[i] = r
	}
	return out, nil
}

// whereClause numbers its placeholders from start. NULL conditions become IS NULL.
func whereClause(cond storage.Conditions, start int) (string, []any) {
	if len(cond) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(cond))
	for k := range cond {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	n := start
	for _, k := range keys {
		v := arg(cond[k])
		if v == nil {
			parts = append(parts, ident(k)+" IS NULL")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = $%d", ident(k), n))
		args = append(args, v)
		n++
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// arg unwraps driver.Valuer values so pgx sees plain strings and times.
func arg(v any) any {
	if valuer, ok := v.(driver.Valuer); ok {
		inner, err := valuer.Value()
		if err == nil {
			return inner
		}
	}
	return v
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func sortedKeys(r storage.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation, codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", storage.ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}
