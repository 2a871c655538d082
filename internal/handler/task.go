package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/service"
	"github.com/BuzzLyutic/taskdesk/pkg/respond"
)

// TaskHandler serves the owner-scoped /api/tasks routes. Every route runs behind Authenticate.
type TaskHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewTaskHandler(srv *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: srv,
		logger:  logger,
	}
}

type createTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *model.Priority `json:"priority"`
	DueDate     *model.Date     `json:"due_date"`
}

type updateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *model.Status   `json:"status"`
	Priority    *model.Priority `json:"priority"`
	DueDate     nullableDate    `json:"due_date"`
}

type statusRequest struct {
	Status *model.Status `json:"status"`
}

type statusResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Task    model.Task `json:"task"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == nil {
		respond.Error(w, r, http.StatusBadRequest, "title is required")
		return
	}
	if req.Priority == nil {
		respond.Error(w, r, http.StatusBadRequest, "priority is required")
		return
	}

	in := service.CreateTaskInput{
		Title:       *req.Title,
		Description: derefString(req.Description),
		Priority:    *req.Priority,
	}
	if req.DueDate != nil && !req.DueDate.IsZero() {
		in.DueDate = req.DueDate
	}

	idempKey := r.Header.Get("Idempotency-Key")
	task, err := h.service.CreateForOwner(r.Context(), user.ID, in, idempKey)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/tasks/%d", task.ID))
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid id")
		return
	}

	task, err := h.service.Get(r.Context(), id, &user.ID)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

// List supports status, priority, overdue and limit query parameters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	q := r.URL.Query()

	filter := model.TaskFilter{UserID: &user.ID}
	if v := q.Get("status"); v != "" {
		status, err := model.ParseStatus(v)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = &status
	}
	if v := q.Get("priority"); v != "" {
		priority, err := model.ParsePriority(v)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, err.Error())
			return
		}
		filter.Priority = &priority
	}
	if v := q.Get("overdue"); v != "" {
		overdue, err := strconv.ParseBool(v)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, "overdue must be a boolean")
			return
		}
		filter.Overdue = overdue
	}

	limit, _ := strconv.Atoi(q.Get("limit"))

	tasks, err := h.service.List(r.Context(), filter, limit)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *TaskHandler) Board(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	board, err := h.service.Board(r.Context(), user.ID)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, board)
}

// Update replaces title, status and priority. Description and due_date may be null.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid id")
		return
	}

	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	switch {
	case req.Title == nil:
		respond.Error(w, r, http.StatusBadRequest, "title is required")
		return
	case req.Status == nil:
		respond.Error(w, r, http.StatusBadRequest, "status is required")
		return
	case req.Priority == nil:
		respond.Error(w, r, http.StatusBadRequest, "priority is required")
		return
	}

	description := derefString(req.Description)
	patch := service.TaskPatch{
		Title:       req.Title,
		Description: &description,
		Status:      req.Status,
		Priority:    req.Priority,
	}
	if req.DueDate.Set {
		patch.DueDate = req.DueDate.Date
		patch.ClearDueDate = req.DueDate.Date == nil
	}

	task, err := h.service.Update(r.Context(), id, patch, &user.ID)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid id")
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Status == nil {
		respond.Error(w, r, http.StatusBadRequest, "status is required")
		return
	}

	task, err := h.service.UpdateStatus(r.Context(), id, *req.Status, &user.ID)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, statusResponse{
		Success: true,
		Message: "Status updated",
		Task:    task,
	})
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	id, err := idParam(r)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.service.Delete(r.Context(), id, &user.ID); err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
