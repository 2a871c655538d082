package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/repo"
	"github.com/BuzzLyutic/taskdesk/internal/service"
	"github.com/BuzzLyutic/taskdesk/internal/storage/memory"
)

var monday = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	router http.Handler
	tasks  *service.TaskService
	users  *service.UserService
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()

	db := memory.New()
	now := func() time.Time { return monday }
	taskRepo := repo.NewTaskRepo(db).WithClock(now)
	userRepo := repo.NewUserRepo(db).WithClock(now)

	env := &testEnv{
		tasks: service.NewTaskService(taskRepo).WithClock(now),
		users: service.NewUserService(userRepo).WithClock(now),
	}
	env.router = NewRouter(Deps{
		Tasks: env.tasks,
		Users: env.users,
		Caches: map[string]CacheReporter{
			"tasks": taskRepo,
			"users": userRepo,
		},
		Logger: zap.NewNop(),
	})
	return env
}

// do sends body as JSON unless it is a string, which is sent verbatim.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// as authenticates the request as the user with the given email.
func as(email string) map[string]string {
	return map[string]string{UserHeader: email}
}

func (e *testEnv) register(t *testing.T, name, email string, roles ...string) model.User {
	t.Helper()

	u, err := e.users.Register(context.Background(), service.RegisterInput{
		Name:      name,
		Email:     email,
		BirthDate: model.NewDate(1990, time.May, 4),
		Roles:     roles,
	})
	require.NoError(t, err)
	return u
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}
