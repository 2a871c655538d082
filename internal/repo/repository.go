package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/BuzzLyutic/taskdesk/internal/storage"
)

var (
	ErrorNotFound   = storage.ErrNotFound
	ErrorConflict   = storage.ErrConflict
	ErrInvalidRange = errors.New("invalid range")
)

// Mapper converts one entity type to and from flat storage records.
type Mapper[K comparable, E any] interface {
	Table() string
	KeyField() string
	Key(e E) K
	ToRecord(e E) storage.Record
	FromRecord(r storage.Record) (E, error)
}

type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Loads   int64   `json:"loads"`
	HitRate float64 `json:"hit_rate"`
}

// Repository keeps every entity it has loaded or saved in an identity cache keyed by K.
// The cache never expires; ClearCache is the only way to empty it.
type Repository[K comparable, E any] struct {
	db     storage.Database
	mapper Mapper[K, E]

	mu    sync.RWMutex
	cache map[K]E
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64
}

func NewRepository[K comparable, E any](db storage.Database, mapper Mapper[K, E]) *Repository[K, E] {
	return &Repository[K, E]{
		db:     db,
		mapper: mapper,
		cache:  make(map[K]E),
	}
}

// Save inserts e and caches it. Storage errors are returned as is, without retries.
func (r *Repository[K, E]) Save(ctx context.Context, e E) error {
	if err := r.db.Insert(ctx, r.mapper.Table(), r.mapper.ToRecord(e)); err != nil {
		return err
	}
	r.put(r.mapper.Key(e), e)
	return nil
}

func (r *Repository[K, E]) FindByKey(ctx context.Context, key K) (E, error) {
	if e, ok := r.cached(key); ok {
		r.hits.Add(1)
		return e, nil
	}
	r.misses.Add(1)

	// одновременные промахи по одному ключу идут в хранилище один раз;
	// отмена запроса первого вызывающего не должна ронять остальных
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(fmt.Sprint(key), func() (any, error) {
		r.loads.Add(1)
		rec, err := r.db.Find(loadCtx, r.mapper.Table(), r.keyCond(key))
		if err != nil {
			return nil, err
		}
		e, err := r.mapper.FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.mapper.Table(), err)
		}
		r.put(key, e)
		return e, nil
	})
	if err != nil {
		var zero E
		return zero, err
	}
	return v.(E), nil
}

// FindAll always reads from storage and refreshes the cache with what it got.
func (r *Repository[K, E]) FindAll(ctx context.Context) ([]E, error) {
	return r.FindWhere(ctx, nil)
}

func (r *Repository[K, E]) FindWhere(ctx context.Context, cond storage.Conditions) ([]E, error) {
	r.loads.Add(1)
	recs, err := r.db.FindWhere(ctx, r.mapper.Table(), cond)
	if err != nil {
		return nil, err
	}
	return r.rebuild(recs)
}

// Filter applies pred to every stored entity.
func (r *Repository[K, E]) Filter(ctx context.Context, pred func(E) bool) ([]E, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]E, 0, len(all))
	for _, e := range all {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *Repository[K, E]) Update(ctx context.Context, e E) error {
	key := r.mapper.Key(e)
	if err := r.db.Update(ctx, r.mapper.Table(), r.keyCond(key), r.mapper.ToRecord(e)); err != nil {
		return err
	}
	r.put(key, e)
	return nil
}

// Delete drops the cache entry even when storage reports the row missing.
func (r *Repository[K, E]) Delete(ctx context.Context, key K) error {
	err := r.db.Delete(ctx, r.mapper.Table(), r.keyCond(key))

	r.mu.Lock()
	delete(r.cache, key)
	r.mu.Unlock()

	return err
}

func (r *Repository[K, E]) Exists(ctx context.Context, key K) (bool, error) {
	_, err := r.FindByKey(ctx, key)
	if errors.Is(err, ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository[K, E]) Count(ctx context.Context) (int, error) {
	return r.db.Count(ctx, r.mapper.Table(), nil)
}

func (r *Repository[K, E]) ClearCache() {
	r.mu.Lock()
	clear(r.cache)
	r.mu.Unlock()
}

func (r *Repository[K, E]) Stats() CacheStats {
	r.mu.RLock()
	entries := len(r.cache)
	r.mu.RUnlock()

	s := CacheStats{
		Entries: entries,
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
		Loads:   r.loads.Load(),
	}
	if lookups := s.Hits + s.Misses; lookups > 0 {
		s.HitRate = float64(s.Hits) / float64(lookups)
	}
	return s
}

func (r *Repository[K, E]) rebuild(recs []storage.Record) ([]E, error) {
	out := make([]E, 0, len(recs))
	for _, rec := range recs {
		e, err := r.mapper.FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.mapper.Table(), err)
		}
		out = append(out, e)
	}

	r.mu.Lock()
	for _, e := range out {
		r.cache[r.mapper.Key(e)] = e
	}
	r.mu.Unlock()
	return out, nil
}

func (r *Repository[K, E]) keyCond(key K) storage.Conditions {
	return storage.Conditions{r.mapper.KeyField(): key}
}

func (r *Repository[K, E]) cached(key K) (E, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[key]
	return e, ok
}

func (r *Repository[K, E]) put(key K, e E) {
	r.mu.Lock()
	r.cache[key] = e
	r.mu.Unlock()
}
