// Package sqlite implements storage.Database with GORM over a SQLite file.
package sqlite

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BuzzLyutic/taskdesk/internal/storage"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type taskRow struct {
	ID          int64      `gorm:"primaryKey;autoIncrement:false"`
	Title       string     `gorm:"type:varchar(255);not null"`
	Description string     `gorm:"type:text;not null;default:''"`
	Status      string     `gorm:"type:text;not null;default:todo"`
	Priority    string     `gorm:"type:text;not null;default:medium"`
	DueDate     *time.Time `gorm:"type:date"`
	UserID      *string    `gorm:"type:text;index"`
	CreatedAt   time.Time  `gorm:"type:datetime;not null"`
	UpdatedAt   time.Time  `gorm:"type:datetime;not null"`
}

func (taskRow) TableName() string { return "tasks" }

type userRow struct {
	ID        string    `gorm:"type:text;not null;uniqueIndex"`
	Name      string    `gorm:"type:varchar(100);not null"`
	Email     string    `gorm:"type:text;primaryKey"`
	BirthDate time.Time `gorm:"type:date;not null"`
	Roles     string    `gorm:"type:text;not null;default:''"`
	Active    bool      `gorm:"type:boolean;not null;default:true"`
}

func (userRow) TableName() string { return "users" }

type idempotencyKeyRow struct {
	Key        string    `gorm:"type:text;primaryKey"`
	ResourceID int64     `gorm:"not null"`
	CreatedAt  time.Time `gorm:"type:datetime;not null"`
}

func (idempotencyKeyRow) TableName() string { return "idempotency_keys" }

type Store struct {
	db *gorm.DB
}

// Open creates the database file and its directory when missing.
func Open(path string, debug bool) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// один писатель; для :memory: каждое соединение - отдельная база
	sqlDB.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&taskRow{}, &userRow{}, &idempotencyKeyRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (s *Store) Insert(ctx context.Context, table string, data storage.Record) error {
	err := s.db.WithContext(ctx).Table(table).Create(args(data)).Error
	return mapError(err)
}

func (s *Store) Find(ctx context.Context, table string, cond storage.Conditions) (storage.Record, error) {
	var rows []map[string]any
	err := s.where(ctx, table, cond).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, mapError(err)
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return storage.Record(rows[0]), nil
}

func (s *Store) FindAll(ctx context.Context, table string) ([]storage.Record, error) {
	return s.FindWhere(ctx, table, nil)
}

func (s *Store) FindWhere(ctx context.Context, table string, cond storage.Conditions) ([]storage.Record, error) {
	var rows []map[string]any
	if err := s.where(ctx, table, cond).Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]storage.Record, len(rows))
	for i, r := range rows {
		out[i] = storage.Record(r)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, table string, cond storage.Conditions, data storage.Record) error {
	if len(data) == 0 {
		return fmt.Errorf("update %s: no fields", table)
	}
	res := s.where(ctx, table, cond).Updates(args(data))
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, table string, cond storage.Conditions) error {
	res := s.where(ctx, table, cond).Delete(map[string]any{})
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context, table string, cond storage.Conditions) (int, error) {
	var n int64
	if err := s.where(ctx, table, cond).Count(&n).Error; err != nil {
		return 0, mapError(err)
	}
	return int(n), nil
}

// where builds equality conditions; GORM turns nil values into IS NULL.
func (s *Store) where(ctx context.Context, table string, cond storage.Conditions) *gorm.DB {
	tx := s.db.WithContext(ctx).Table(table)
	if len(cond) > 0 {
		tx = tx.Where(args(cond))
	}
	return tx
}

// args unwraps driver.Valuer values so dates and UUIDs bind as time and text.
func args[M ~map[string]any](m M) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if valuer, ok := v.(driver.Valuer); ok {
			if inner, err := valuer.Value(); err == nil {
				v = inner
			}
		}
		out[k] = v
	}
	return out
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %w", storage.ErrConflict, err)
	default:
		return err
	}
}
