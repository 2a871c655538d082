package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskdesk/internal/model"
)

// TaskRepository определяет интерфейс для работы с задачами
type TaskRepository interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Get(ctx context.Context, id int64) (model.Task, error)
	Exists(ctx context.Context, id int64) (bool, error)
	All(ctx context.Context) ([]model.Task, error)
	List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error)
	Update(ctx context.Context, t model.Task) (model.Task, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error
	GetIdempotencyKey(ctx context.Context, key string) (int64, error)
	GetStats(ctx context.Context, owner *uuid.UUID) (model.TaskStats, error)
	CacheStats() CacheStats
}

// UserRepository определяет интерфейс для работы с пользователями
type UserRepository interface {
	Save(ctx context.Context, u model.User) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindAll(ctx context.Context) ([]model.User, error)
	List(ctx context.Context, filter model.UserFilter) ([]model.User, error)
	Update(ctx context.Context, u model.User) (model.User, error)
	Delete(ctx context.Context, email string) error
	EmailExists(ctx context.Context, email string) (bool, error)
	CacheStats() CacheStats
}

var (
	_ TaskRepository = (*TaskRepo)(nil)
	_ UserRepository = (*UserRepo)(nil)
)
