// Package storage defines the collaborator the repositories persist through.
// Backends live in the memory, jsonfile and postgres subpackages.
package storage

import (
	"context"
	"errors"
	"maps"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Record is a flat field -> value row.
type Record map[string]any

// Conditions are equality predicates joined with AND. An empty set matches every row.
type Conditions map[string]any

type Database interface {
	Insert(ctx context.Context, table string, data Record) error
	// Find returns the first matching record or ErrNotFound.
	Find(ctx context.Context, table string, cond Conditions) (Record, error)
	FindAll(ctx context.Context, table string) ([]Record, error)
	FindWhere(ctx context.Context, table string, cond Conditions) ([]Record, error)
	// Update and Delete return ErrNotFound when nothing matched.
	Update(ctx context.Context, table string, cond Conditions, data Record) error
	Delete(ctx context.Context, table string, cond Conditions) error
	Count(ctx context.Context, table string, cond Conditions) (int, error)
}

func (r Record) Clone() Record {
	return maps.Clone(r)
}

// Match reports whether every condition holds for the record.
func Match(r Record, cond Conditions) bool {
	for field, want := range cond {
		got, ok := r[field]
		if !ok {
			got = nil
		}
		if !Equal(got, want) {
			return false
		}
	}
	return true
}
