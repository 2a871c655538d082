// Package jsonfile keeps each table as a pretty-printed JSON array in <dir>/<table>.json.
//
// Every mutation reads the whole collection, changes it in memory and rewrites the file.
// Writers inside one process are serialised; several processes sharing a directory are not.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/BuzzLyutic/taskdesk/internal/storage"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Store struct {
	dir string
	mu  sync.RWMutex
}

// New creates dir when it does not exist yet.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file that backs table.
func (s *Store) Path(table string) string {
	return filepath.Join(s.dir, table+".json")
}

func (s *Store) Insert(_ context.Context, table string, data storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load(table)
	if err != nil {
		return err
	}
	return s.save(table, append(rows, data))
}

func (s *Store) Find(_ context.Context, table string, cond storage.Conditions) (storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.load(table)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if storage.Match(r, cond) {
			return r, nil
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

	rows, err := s.load(table)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Record, 0, len(rows))
	for _, r := range rows {
		if storage.Match(r, cond) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, table string, cond storage.Conditions, data storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load(table)
	if err != nil {
		return err
	}
	updated := 0
	for _, r := range rows {
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
	return s.save(table, rows)
}

func (s *Store) Delete(_ context.Context, table string, cond storage.Conditions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load(table)
	if err != nil {
		return err
	}
	kept := make([]storage.Record, 0, len(rows))
	for _, r := range rows {
		if !storage.Match(r, cond) {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(rows) {
		return storage.ErrNotFound
	}
	return s.save(table, kept)
}

func (s *Store) Count(ctx context.Context, table string, cond storage.Conditions) (int, error) {
	rows, err := s.FindWhere(ctx, table, cond)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Store) Close() {}

// load treats a missing or empty file as an empty table.
func (s *Store) load(table string) ([]storage.Record, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	data, err := os.ReadFile(s.Path(table))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows []storage.Record
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", table, err)
	}
	return rows, nil
}

// save writes through a temp file so a crash never leaves half a collection behind.
func (s *Store) save(table string, rows []storage.Record) error {
	if rows == nil {
		rows = []storage.Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode %s: %w", table, err)
	}

	tmp, err := os.CreateTemp(s.dir, table+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", table, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(table)); err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	return nil
}
