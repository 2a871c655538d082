package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/repo"
	"github.com/BuzzLyutic/taskdesk/internal/service"
	"github.com/BuzzLyutic/taskdesk/pkg/respond"
)

// MockHandler serves the unauthenticated /tasks API used by the frontend.
// It only sees ownerless tasks; tasks created through /api read as missing here.
type MockHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewMockHandler(srv *service.TaskService, logger *zap.Logger) *MockHandler {
	return &MockHandler{
		service: srv,
		logger:  logger,
	}
}

// mockTaskRequest is shared by create and update. due_date: null keeps the
// current value, "" clears it.
type mockTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *model.Status   `json:"status"`
	Priority    *model.Priority `json:"priority"`
	DueDate     *string         `json:"due_date"`
}

type mockStats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	InProgress     int     `json:"in_progress"`
	Todo           int     `json:"todo"`
	CompletionRate float64 `json:"completion_rate"`
}

func (h *MockHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.Ownerless(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *MockHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.OwnerlessStats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, mockStats{
		Total:          s.Total,
		Completed:      s.Completed,
		InProgress:     s.InProgress,
		Todo:           s.Todo,
		CompletionRate: s.CompletionRate,
	})
}

func (h *MockHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req mockTaskRequest
	if err := decodeJSON(r, &req); err != nil || req.Title == nil {
		respond.Error(w, r, http.StatusBadRequest, "Title is required")
		return
	}

	in := service.CreateTaskInput{
		Title:       *req.Title,
		Description: derefString(req.Description),
	}
	if req.Status != nil {
		in.Status = *req.Status
	}
	if req.Priority != nil {
		in.Priority = *req.Priority
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := model.ParseDate(*req.DueDate)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		in.DueDate = &due
	}

	task, err := h.service.Create(r.Context(), in, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *MockHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, r, http.StatusNotFound, "Task not found")
		return
	}

	task, err := h.service.Get(r.Context(), id, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

// Update merges the fields present in the body into the stored task.
func (h *MockHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, r, http.StatusNotFound, "Task not found")
		return
	}

	var req mockTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	patch := service.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			patch.ClearDueDate = true
		} else {
			due, err := model.ParseDate(*req.DueDate)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			patch.DueDate = &due
		}
	}

	task, err := h.service.Update(r.Context(), id, patch, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *MockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, r, http.StatusNotFound, "Task not found")
		return
	}

	if err := h.service.Delete(r.Context(), id, nil); err != nil {
		h.fail(w, r, err)
		return
	}
	respond.Message(w, r, http.StatusOK, "Task deleted successfully")
}

// fail uses the messages the frontend expects; it differs from handleErrors on 404 and 500.
func (h *MockHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "Task not found")
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, "Task already exists")
	case errors.Is(err, service.ErrValidation), errors.Is(err, model.ErrInvalid):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("mock api failure",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		respond.Error(w, r, http.StatusInternalServerError, "Internal server error")
	}
}
