package repo

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/storage"
)

const (
	TasksTable           = "tasks"
	IdempotencyKeysTable = "idempotency_keys"
)

type taskMapper struct{}

func (taskMapper) Table() string          { return TasksTable }
func (taskMapper) KeyField() string       { return "id" }
func (taskMapper) Key(t model.Task) int64 { return t.ID }

func (taskMapper) ToRecord(t model.Task) storage.Record {
	r := storage.Record{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"priority":    string(t.Priority),
		"due_date":    nil,
		"created_at":  t.CreatedAt.UTC(),
		"updated_at":  t.UpdatedAt.UTC(),
	}
	if t.DueDate != nil && !t.DueDate.IsZero() {
		r["due_date"] = *t.DueDate
	}
	if t.UserID != nil {
		r["user_id"] = *t.UserID
	}
	return r
}

func (taskMapper) FromRecord(r storage.Record) (model.Task, error) {
	id, err := r.Int64("id")
	if err != nil {
		return model.Task{}, err
	}
	t := model.Task{
		ID:          id,
		Title:       r.String("title"),
		Description: r.String("description"),
		Status:      model.Status(r.String("status")),
		Priority:    model.Priority(r.String("priority")),
	}
	if t.Status == "" {
		t.Status = model.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}

	due, ok, err := r.Time("due_date")
	if err != nil {
		return model.Task{}, err
	}
	if ok {
		d := model.DateOf(due)
		t.DueDate = &d
	}

	owner, ok, err := r.UUID("user_id")
	if err != nil {
		return model.Task{}, err
	}
	if ok {
		t.UserID = &owner
	}

	if t.CreatedAt, _, err = r.Time("created_at"); err != nil {
		return model.Task{}, err
	}
	if t.UpdatedAt, _, err = r.Time("updated_at"); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// TaskRepo хранит задачи через storage.Database и кэширует их по id
type TaskRepo struct {
	db    storage.Database
	tasks *Repository[int64, model.Task]
	now   func() time.Time
}

func NewTaskRepo(db storage.Database) *TaskRepo {
	return &TaskRepo{
		db:    db,
		tasks: NewRepository[int64, model.Task](db, taskMapper{}),
		now:   time.Now,
	}
}

// WithClock replaces the clock used for timestamps and overdue checks.
func (r *TaskRepo) WithClock(now func() time.Time) *TaskRepo {
	r.now = now
	return r
}

// Create stores t with both timestamps set to now. The id must already be assigned.
func (r *TaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	if t.ID == 0 {
		return model.Task{}, fmt.Errorf("create task: %w: missing id", model.ErrInvalid)
	}
	now := r.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := r.tasks.Save(ctx, t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (r *TaskRepo) Get(ctx context.Context, id int64) (model.Task, error) {
	return r.tasks.FindByKey(ctx, id)
}

func (r *TaskRepo) Exists(ctx context.Context, id int64) (bool, error) {
	return r.tasks.Exists(ctx, id)
}

// All returns tasks in storage order.
func (r *TaskRepo) All(ctx context.Context) ([]model.Task, error) {
	return r.tasks.FindAll(ctx)
}

// List returns matching tasks newest first. A limit <= 0 means no limit.
func (r *TaskRepo) List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error) {
	cond := storage.Conditions{}
	if filter.UserID != nil {
		cond["user_id"] = *filter.UserID
	}
	if filter.Status != nil {
		cond["status"] = string(*filter.Status)
	}
	if filter.Priority != nil {
		cond["priority"] = string(*filter.Priority)
	}

	found, err := r.tasks.FindWhere(ctx, cond)
	if err != nil {
		return nil, err
	}

	now := r.now()
	tasks := make([]model.Task, 0, len(found))
	for _, t := range found {
		if filter.Match(t, now) {
			tasks = append(tasks, t)
		}
	}
	SortNewestFirst(tasks)

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// Update writes every field of t and bumps UpdatedAt.
func (r *TaskRepo) Update(ctx context.Context, t model.Task) (model.Task, error) {
	t.UpdatedAt = r.now().UTC()
	if err := r.tasks.Update(ctx, t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id int64) error {
	return r.tasks.Delete(ctx, id)
}

func (r *TaskRepo) Count(ctx context.Context) (int, error) {
	return r.tasks.Count(ctx)
}

// GetStats counts the tasks of owner, or all tasks when owner is nil.
func (r *TaskRepo) GetStats(ctx context.Context, owner *uuid.UUID) (model.TaskStats, error) {
	tasks, err := r.List(ctx, model.TaskFilter{UserID: owner}, 0)
	if err != nil {
		return model.TaskStats{}, err
	}
	return model.ComputeStats(tasks, r.now()), nil
}

// SaveIdempotencyKey binds key to resourceID. Saving the same pair twice is a no-op;
// a key already bound to another resource is ErrorConflict.
func (r *TaskRepo) SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error {
	boundID, err := r.GetIdempotencyKey(ctx, key)
	switch {
	case err == nil && boundID == resourceID:
		return nil
	case err == nil:
		return fmt.Errorf("idempotency key %q: %w", key, ErrorConflict)
	case !errors.Is(err, ErrorNotFound):
		return err
	}

	return r.db.Insert(ctx, IdempotencyKeysTable, storage.Record{
		"key":         key,
		"resource_id": resourceID,
		"created_at":  r.now().UTC(),
	})
}

func (r *TaskRepo) GetIdempotencyKey(ctx context.Context, key string) (int64, error) {
	rec, err := r.db.Find(ctx, IdempotencyKeysTable, storage.Conditions{"key": key})
	if err != nil {
		return 0, err
	}
	return rec.Int64("resource_id")
}

func (r *TaskRepo) ClearCache() {
	r.tasks.ClearCache()
}

func (r *TaskRepo) CacheStats() CacheStats {
	return r.tasks.Stats()
}

// SortNewestFirst orders by creation time, then id, both descending.
func SortNewestFirst(tasks []model.Task) {
	slices.SortStableFunc(tasks, func(a, b model.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
