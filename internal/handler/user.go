package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/service"
	"github.com/BuzzLyutic/taskdesk/pkg/respond"
)

type UserHandler struct {
	service *service.UserService
	logger  *zap.Logger
}

func NewUserHandler(srv *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		service: srv,
		logger:  logger,
	}
}

type registerRequest struct {
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	BirthDate model.Date `json:"birth_date"`
	Roles     []string   `json:"roles"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.service.Register(r.Context(), service.RegisterInput{
		Name:      req.Name,
		Email:     req.Email,
		BirthDate: req.BirthDate,
		Roles:     req.Roles,
	})
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}

	w.Header().Set("Location", "/api/user")
	respond.JSON(w, r, http.StatusCreated, u)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	respond.JSON(w, r, http.StatusOK, user)
}

// List filters with admin, active, min_age and max_age.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseUserFilter(r.URL.Query())
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	users, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	respond.JSON(w, r, http.StatusOK, users)
}

func parseUserFilter(q url.Values) (model.UserFilter, error) {
	var f model.UserFilter
	var err error

	if v := q.Get("admin"); v != "" {
		if f.AdminsOnly, err = strconv.ParseBool(v); err != nil {
			return f, errors.New("admin must be a boolean")
		}
	}
	if v := q.Get("active"); v != "" {
		if f.ActiveOnly, err = strconv.ParseBool(v); err != nil {
			return f, errors.New("active must be a boolean")
		}
	}
	if f.MinAge, err = ageParam(q, "min_age"); err != nil {
		return f, err
	}
	if f.MaxAge, err = ageParam(q, "max_age"); err != nil {
		return f, err
	}
	return f, nil
}

func ageParam(q url.Values, key string) (*int, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return &n, nil
}
