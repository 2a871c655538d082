package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskdesk/internal/config"
	"github.com/BuzzLyutic/taskdesk/internal/handler"
	"github.com/BuzzLyutic/taskdesk/internal/repo"
	"github.com/BuzzLyutic/taskdesk/internal/service"
	"github.com/BuzzLyutic/taskdesk/internal/storage"
	"github.com/BuzzLyutic/taskdesk/internal/storage/jsonfile"
	"github.com/BuzzLyutic/taskdesk/internal/storage/memory"
	"github.com/BuzzLyutic/taskdesk/internal/storage/postgres"
	"github.com/BuzzLyutic/taskdesk/internal/storage/sqlite"
)

type store interface {
	storage.Database
	Close()
}

func main() {
	// Загрузка конфигурации
	cfg := config.Load()

	// Подключаем логгер
	logger := newLogger(cfg)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	db, err := openStorage(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("storage", cfg.Storage), zap.Error(err)) // дальнейшая работа теряет смысл
	}
	logger.Info("Storage ready", zap.String("storage", cfg.Storage))

	taskRepo := repo.NewTaskRepo(db)
	userRepo := repo.NewUserRepo(db)
	tasks := service.NewTaskService(taskRepo)
	users := service.NewUserService(userRepo)

	if cfg.SeedSamples {
		n, err := tasks.SeedSamples(context.Background())
		if err != nil {
			logger.Fatal("Failed to seed sample tasks", zap.Error(err))
		}
		if n > 0 {
			logger.Info("Seeded sample tasks", zap.Int("count", n))
		}
	}

	r := handler.NewRouter(handler.Deps{
		Tasks: tasks,
		Users: users,
		Caches: map[string]handler.CacheReporter{
			"tasks": taskRepo,
			"users": userRepo,
		},
		Logger: logger,
	})

	srv := &http.Server{ // Создаем сервер
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				logger.Info("Shutting down server...")
				return srv.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	db.Close() // хранилище закрываем только после остановки сервера
	logger.Info("Server stopped", zap.Int("exit_code", exitCode))
	logger.Sync()
	os.Exit(exitCode)
}

func newLogger(cfg config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDev() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func openStorage(ctx context.Context, cfg config.Config) (store, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StoragePostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case config.StorageSQLite:
		s, err := sqlite.Open(cfg.SQLitePath, cfg.IsDev())
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		s, err := jsonfile.New(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
