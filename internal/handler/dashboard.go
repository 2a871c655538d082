package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/service"
	"github.com/BuzzLyutic/taskdesk/pkg/respond"
)

type DashboardHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewDashboardHandler(srv *service.TaskService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: srv,
		logger:  logger,
	}
}

type dashboardStats struct {
	Stats          model.TaskStats `json:"stats"`
	CompletionRate float64         `json:"completion_rate"`
	TotalTasks     int             `json:"total_tasks"`
}

func (h *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	d, err := h.service.Dashboard(r.Context(), user.ID)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, d)
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	s, err := h.service.Stats(r.Context(), &user.ID)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, dashboardStats{
		Stats:          s,
		CompletionRate: s.CompletionRate,
		TotalTasks:     s.Total,
	})
}
