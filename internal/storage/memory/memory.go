// Package memory is a process-local storage.Database used by tests and STORAGE=memory.
package memory

import (
	"context"
	"sync"

	"github.com/BuzzLyutic/taskdesk/internal/storage"
)

type Store struct {
	mu     sync.RWMutex
	tables map[string][]storage.Record
}

func New() *Store {
	return &Store{tables: make(map[string][]storage.Record)}
}

func (s *Store) Insert(_ context.Context, table string, data storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[table] = append(s.tables[table], data.Clone())
	return nil
}

func (s *Store) Find(_ context.Context, table string, cond storage.Conditions) (storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.tables[table] {
		if storage.Match(r, cond) {
			return r.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) FindAll(ctx context.Context, table string) ([]storage.Record, error) {
	return s.FindWhere(ctx, table, nil)
}

func (s *Store) FindWhere(_ context.Context, table string, cond storage.Conditions) ([]storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.Record, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		if storage.Match(r, cond) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, table string, cond storage.Conditions, data storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, r := range s.tables[table] {
		if !storage.Match(r, cond) {
			continue
		}
		for k, v := range data {
			r[k] = v
		}
		updated++
	}
	if updated == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(_ context.Context, table string, cond storage.Conditions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	kept := rows[:0]
	for _, r := range rows {
		if !storage.Match(r, cond) {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(rows) {
		return storage.ErrNotFound
	}
	clear(rows[len(kept):])
	s.tables[table] = kept
	return nil
}

func (s *Store) Count(_ context.Context, table string, cond storage.Conditions) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.tables[table] {
		if storage.Match(r, cond) {
			n++
		}
	}
	return n, nil
}

// Close exists so every backend can be shut down the same way.
func (s *Store) Close() {}
