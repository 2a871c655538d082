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

// handleErrors maps domain errors to status codes. Only unexpected errors are logged.
func handleErrors(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, service.ErrUnauthorized):
		respond.Error(w, r, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrForbidden):
		respond.Error(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrValidation), errors.Is(err, model.ErrInvalid):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	default:
		logger.Error("internal error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
