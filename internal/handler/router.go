package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskdesk/internal/repo"
	"github.com/BuzzLyutic/taskdesk/internal/service"
	"github.com/BuzzLyutic/taskdesk/pkg/respond"
)

type CacheReporter interface {
	CacheStats() repo.CacheStats
}

type Deps struct {
	Tasks  *service.TaskService
	Users  *service.UserService
	Caches map[string]CacheReporter
	Logger *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	// до Route, иначе подроутеры не унаследуют обработчики
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/debug/cache", func(w http.ResponseWriter, r *http.Request) {
		stats := make(map[string]repo.CacheStats, len(d.Caches))
		for name, c := range d.Caches {
			stats[name] = c.CacheStats()
		}
		respond.JSON(w, r, http.StatusOK, stats)
	})

	mock := NewMockHandler(d.Tasks, d.Logger)
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", mock.List)
		r.Post("/", mock.Create)
		r.Get("/stats", mock.Stats)
		r.Get("/{id:[0-9]+}", mock.Get)
		r.Put("/{id:[0-9]+}", mock.Update)
		r.Delete("/{id:[0-9]+}", mock.Delete)
	})

	tasks := NewTaskHandler(d.Tasks, d.Logger)
	dashboard := NewDashboardHandler(d.Tasks, d.Logger)
	users := NewUserHandler(d.Users, d.Logger)
	r.Route("/api", func(r chi.Router) {
		r.Post("/users", users.Register)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(d.Users, d.Logger))

			r.Get("/user", users.Me)
			r.Get("/users", users.List)

			r.Get("/tasks", tasks.List)
			r.Post("/tasks", tasks.Create)
			r.Get("/tasks/board", tasks.Board)
			r.Get("/tasks/{id:[0-9]+}", tasks.Get)
			r.Put("/tasks/{id:[0-9]+}", tasks.Update)
			r.Patch("/tasks/{id:[0-9]+}/status", tasks.UpdateStatus)
			r.Delete("/tasks/{id:[0-9]+}", tasks.Delete)

			r.Get("/dashboard", dashboard.Index)
			r.Get("/dashboard/stats", dashboard.Stats)
		})
	})

	return r
}
