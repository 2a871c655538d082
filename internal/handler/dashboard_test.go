package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/service"
)

func seedDashboard(t *testing.T, env *testEnv) (tomorrow, today model.Task) {
	t.Helper()
	env.register(t, "Alice", aliceEmail)
	env.register(t, "Bob", bobEmail)

	tomorrow = createAPITask(t, env, aliceEmail, map[string]any{"title": "Tomorrow", "priority": "low", "due_date": "2026-10-20"})
	done := createAPITask(t, env, aliceEmail, map[string]any{"title": "Done", "priority": "low", "due_date": "2026-10-22"})
	today = createAPITask(t, env, aliceEmail, map[string]any{"title": "Today", "priority": "high", "due_date": "2026-10-21"})
	createAPITask(t, env, aliceEmail, map[string]any{"title": "Someday", "priority": "medium"})
	createAPITask(t, env, bobEmail, map[string]any{"title": "Not mine", "priority": "medium"})

	w := env.do(t, http.MethodPatch, fmt.Sprintf("/api/tasks/%d/status", done.ID), map[string]any{"status": "completed"}, as(aliceEmail))
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", today.ID), map[string]any{
		"title": "Today", "status": "in_progress", "priority": "high", "due_date": "2026-10-19",
	}, as(aliceEmail))
	require.Equal(t, http.StatusOK, w.Code)
	return tomorrow, today
}

func taskIDs(tasks []model.Task) []int64 {
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestDashboardHandler_Index(t *testing.T) {
	env := setupRouter(t)
	tomorrow, today := seedDashboard(t, env)

	w := env.do(t, http.MethodGet, "/api/dashboard", nil, as(aliceEmail))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	d := decode[service.Dashboard](t, w)
	assert.Equal(t, 4, d.Stats.Total)
	assert.Equal(t, 1, d.Stats.Completed)
	assert.Equal(t, 1, d.Stats.InProgress)
	assert.Equal(t, 2, d.Stats.Todo)
	assert.Equal(t, 25.0, d.CompletionRate)
	assert.Len(t, d.RecentTasks, 4)

	assert.Equal(t, []int64{today.ID}, taskIDs(d.OverdueTasks))
	assert.Equal(t, []int64{today.ID}, taskIDs(d.TodayTasks))
	assert.Equal(t, []int64{today.ID, tomorrow.ID}, taskIDs(d.ThisWeekTasks))
}

func TestDashboardHandler_Stats(t *testing.T) {
	env := setupRouter(t)
	seedDashboard(t, env)

	w := env.do(t, http.MethodGet, "/api/dashboard/stats", nil, as(aliceEmail))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"stats": {"total":4,"completed":1,"in_progress":1,"todo":2,"overdue":1,"completion_rate":25},
		"completion_rate": 25,
		"total_tasks": 4
	}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/dashboard/stats", nil, as(bobEmail))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"stats": {"total":1,"completed":0,"in_progress":0,"todo":1,"overdue":0,"completion_rate":0},
		"completion_rate": 0,
		"total_tasks": 1
	}`, w.Body.String())
}

func TestDashboardHandler_RequiresUser(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/api/dashboard", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
