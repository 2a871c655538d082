package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/repo"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	RecentTasksLimit = 5

	maxIDAttempts = 10
)

type CreateTaskInput struct {
	Title       string
	Description string
	Status      model.Status
	Priority    model.Priority
	DueDate     *model.Date
}

// TaskPatch is a partial update; nil fields keep their current value.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *model.Status
	Priority     *model.Priority
	DueDate      *model.Date
	ClearDueDate bool
}

type Dashboard struct {
	Stats          model.TaskStats `json:"stats"`
	CompletionRate float64         `json:"completion_rate"`
	RecentTasks    []model.Task    `json:"recent_tasks"`
	OverdueTasks   []model.Task    `json:"overdue_tasks"`
	TodayTasks     []model.Task    `json:"today_tasks"`
	ThisWeekTasks  []model.Task    `json:"this_week_tasks"`
}

type Board struct {
	Todo       []model.Task `json:"todo"`
	InProgress []model.Task `json:"in_progress"`
	Completed  []model.Task `json:"completed"`
}

type TaskService struct {
	repo       repo.TaskRepository
	now        func() time.Time
	jitter     func() int64
	idempotent singleflight.Group
}

func NewTaskService(repo repo.TaskRepository) *TaskService {
	return &TaskService{
		repo:   repo,
		now:    time.Now,
		jitter: func() int64 { return rand.Int64N(1000) + 1 },
	}
}

func (s *TaskService) WithClock(now func() time.Time) *TaskService {
	s.now = now
	return s
}

// WithJitter replaces the random part of generated ids.
func (s *TaskService) WithJitter(jitter func() int64) *TaskService {
	s.jitter = jitter
	return s
}

// Create builds an ownerless task. A repeated idempotency key returns the task created first.
func (s *TaskService) Create(ctx context.Context, in CreateTaskInput, idempKey string) (model.Task, error) {
	t, err := s.build(in)
	if err != nil {
		return model.Task{}, err
	}
	return s.create(ctx, t, idempKey)
}

// CreateForOwner also requires the due date, when given, to be after today.
func (s *TaskService) CreateForOwner(ctx context.Context, owner uuid.UUID, in CreateTaskInput, idempKey string) (model.Task, error) {
	in.Status = model.StatusTodo
	t, err := s.build(in)
	if err != nil {
		return model.Task{}, err
	}
	if t.DueDate != nil {
		today := model.DateOf(s.now().UTC())
		if !t.DueDate.After(today) {
			return model.Task{}, fmt.Errorf("%w: due date must be after today", ErrValidation)
		}
	}
	t.UserID = &owner
	return s.create(ctx, t, idempKey)
}

func (s *TaskService) build(in CreateTaskInput) (model.Task, error) {
	t, err := model.NewTask(in.Title, in.Priority, in.DueDate)
	if err != nil {
		return model.Task{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	t.Description = in.Description
	if in.Status != "" {
		t.Status = in.Status
	}
	if err := t.Validate(); err != nil {
		return model.Task{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return t, nil
}

func (s *TaskService) create(ctx context.Context, t model.Task, idempKey string) (model.Task, error) {
	if idempKey == "" {
		return s.insert(ctx, t)
	}

	key := scopedIdempotencyKey(t.UserID, idempKey)
	// одинаковые ключи внутри процесса создают задачу один раз
	v, err, _ := s.idempotent.Do(key, func() (any, error) {
		return s.createOnce(context.WithoutCancel(ctx), t, key)
	})
	if err != nil {
		return model.Task{}, err
	}
	return v.(model.Task), nil
}

// createOnce returns the task already stored under key or creates t and binds key to it.
func (s *TaskService) createOnce(ctx context.Context, t model.Task, key string) (model.Task, error) {
	existingID, err := s.repo.GetIdempotencyKey(ctx, key)
	switch {
	case err == nil: // Обеспечение идемпотентности - если ключ с ресурсом уже существует, мы не создаем его еще раз
		return s.Get(ctx, existingID, t.UserID)
	case !errors.Is(err, repo.ErrorNotFound):
		return model.Task{}, fmt.Errorf("look up idempotency key: %w", err)
	}

	created, err := s.insert(ctx, t)
	if err != nil {
		return model.Task{}, err
	}

	saveErr := s.repo.SaveIdempotencyKey(ctx, key, created.ID)
	if saveErr == nil {
		return created, nil
	}

	// задача без ключа стала бы дубликатом при повторе запроса
	if err := s.repo.Delete(ctx, created.ID); err != nil && !errors.Is(err, repo.ErrorNotFound) {
		return model.Task{}, errors.Join(fmt.Errorf("save idempotency key: %w", saveErr), err)
	}
	if !errors.Is(saveErr, repo.ErrorConflict) {
		return model.Task{}, fmt.Errorf("save idempotency key: %w", saveErr)
	}

	// ключ занял другой процесс, отдаем его задачу
	winnerID, err := s.repo.GetIdempotencyKey(ctx, key)
	if err != nil {
		return model.Task{}, fmt.Errorf("look up idempotency key: %w", err)
	}
	return s.Get(ctx, winnerID, t.UserID)
}

func (s *TaskService) insert(ctx context.Context, t model.Task) (model.Task, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return model.Task{}, err
	}
	t.ID = id
	return s.repo.Create(ctx, t)
}

// scopedIdempotencyKey prefixes keys of owned tasks with the owner id so users never share keys.
func scopedIdempotencyKey(owner *uuid.UUID, key string) string {
	if owner == nil {
		return key
	}
	return owner.String() + ":" + key
}

// nextID follows the flat-file scheme: unix seconds plus a random 1..1000, retried on collision.
func (s *TaskService) nextID(ctx context.Context) (int64, error) {
	for range maxIDAttempts {
		id := s.now().Unix() + s.jitter()
		exists, err := s.repo.Exists(ctx, id)
		if err != nil {
			return 0, err
		}
		if !exists {
			return id, nil
		}
	}
	return 0, fmt.Errorf("allocate task id: %w", repo.ErrorConflict)
}

// Get returns the task. A non-nil actor must own it; a nil actor only sees ownerless tasks.
func (s *TaskService) Get(ctx context.Context, id int64, actor *uuid.UUID) (model.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if err := authorize(t, actor); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (s *TaskService) List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	return s.repo.List(ctx, filter, limit)
}

// Ownerless returns the tasks nobody owns, in storage order.
func (s *TaskService) Ownerless(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(tasks, func(t model.Task) bool { return t.UserID != nil }), nil
}

func (s *TaskService) Update(ctx context.Context, id int64, patch TaskPatch, actor *uuid.UUID) (model.Task, error) {
	t, err := s.Get(ctx, id, actor)
	if err != nil {
		return model.Task{}, err
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		due := *patch.DueDate
		t.DueDate = &due
	}
	if patch.ClearDueDate {
		t.DueDate = nil
	}

	if err := t.Validate(); err != nil {
		return model.Task{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return s.repo.Update(ctx, t)
}

func (s *TaskService) UpdateStatus(ctx context.Context, id int64, status model.Status, actor *uuid.UUID) (model.Task, error) {
	t, err := s.Get(ctx, id, actor)
	if err != nil {
		return model.Task{}, err
	}
	t, err = t.Transition(status, s.now())
	if err != nil {
		return model.Task{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return s.repo.Update(ctx, t)
}

func (s *TaskService) Delete(ctx context.Context, id int64, actor *uuid.UUID) error {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Stats covers the tasks of owner, or every task when owner is nil.
func (s *TaskService) Stats(ctx context.Context, owner *uuid.UUID) (model.TaskStats, error) {
	return s.repo.GetStats(ctx, owner)
}

func (s *TaskService) OwnerlessStats(ctx context.Context) (model.TaskStats, error) {
	tasks, err := s.Ownerless(ctx)
	if err != nil {
		return model.TaskStats{}, err
	}
	return model.ComputeStats(tasks, s.now()), nil
}

func (s *TaskService) Dashboard(ctx context.Context, owner uuid.UUID) (Dashboard, error) {
	tasks, err := s.repo.List(ctx, model.TaskFilter{UserID: &owner}, 0)
	if err != nil {
		return Dashboard{}, err
	}

	now := s.now()
	today := model.DateOf(now.UTC())
	weekStart := today.AddDays(-((int(today.Weekday()) + 6) % 7))
	weekEnd := weekStart.AddDays(6)

	stats := model.ComputeStats(tasks, now)
	d := Dashboard{
		Stats:          stats,
		CompletionRate: stats.CompletionRate,
		RecentTasks:    tasks[:min(RecentTasksLimit, len(tasks))],
		OverdueTasks:   []model.Task{},
		TodayTasks:     []model.Task{},
		ThisWeekTasks:  []model.Task{},
	}
	// tasks уже отсортированы от новых к старым
	for _, t := range tasks {
		if t.IsOverdue(now) {
			d.OverdueTasks = append(d.OverdueTasks, t)
		}
		if t.DueDate == nil || t.IsCompleted() {
			continue
		}
		if t.DueDate.Equal(today) {
			d.TodayTasks = append(d.TodayTasks, t)
		}
		if !t.DueDate.Before(weekStart) && !t.DueDate.After(weekEnd) {
			d.ThisWeekTasks = append(d.ThisWeekTasks, t)
		}
	}
	sortByDueDate(d.OverdueTasks)
	sortByDueDate(d.ThisWeekTasks)
	return d, nil
}

// Board groups the owner's tasks by status, newest first in each column.
func (s *TaskService) Board(ctx context.Context, owner uuid.UUID) (Board, error) {
	tasks, err := s.repo.List(ctx, model.TaskFilter{UserID: &owner}, 0)
	if err != nil {
		return Board{}, err
	}
	b := Board{Todo: []model.Task{}, InProgress: []model.Task{}, Completed: []model.Task{}}
	for _, t := range tasks {
		switch t.Status {
		case model.StatusTodo:
			b.Todo = append(b.Todo, t)
		case model.StatusInProgress:
			b.InProgress = append(b.InProgress, t)
		case model.StatusCompleted:
			b.Completed = append(b.Completed, t)
		}
	}
	return b, nil
}

// SeedSamples stores three example tasks when the store has none and reports how many it added.
func (s *TaskService) SeedSamples(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	today := model.DateOf(s.now().UTC())
	samples := []struct {
		title, description string
		status             model.Status
		priority           model.Priority
		dueInDays          int
	}{
		{"Write the project proposal", "Draft the proposal for the new project", model.StatusTodo, model.PriorityHigh, 7},
		{"Design the database", "Schema for the user management system", model.StatusInProgress, model.PriorityMedium, 3},
		{"UI/UX design", "Mockups for the main page", model.StatusCompleted, model.PriorityMedium, -2},
	}
	for i, sample := range samples {
		due := today.AddDays(sample.dueInDays)
		t, err := model.NewTask(sample.title, sample.priority, &due)
		if err != nil {
			return i, err
		}
		t.ID = int64(i + 1)
		t.Description = sample.description
		t.Status = sample.status
		if _, err := s.repo.Create(ctx, t); err != nil {
			return i, err
		}
	}
	return len(samples), nil
}

// authorize is the owner-only policy. A nil actor is the ownerless flat-file API:
// owned tasks do not exist for it.
func authorize(t model.Task, actor *uuid.UUID) error {
	switch {
	case actor == nil && t.UserID != nil:
		return fmt.Errorf("task %d: %w", t.ID, repo.ErrorNotFound)
	case actor == nil || t.OwnedBy(*actor):
		return nil
	default:
		return ErrForbidden
	}
}

func sortByDueDate(tasks []model.Task) {
	slices.SortStableFunc(tasks, func(a, b model.Task) int {
		return a.DueDate.Compare(b.DueDate.Time)
	})
}
