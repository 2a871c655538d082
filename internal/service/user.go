package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/repo"
)

type RegisterInput struct {
	Name      string
	Email     string
	BirthDate model.Date
	Roles     []string
}

type UserService struct {
	repo repo.UserRepository
	now  func() time.Time
}

func NewUserService(repo repo.UserRepository) *UserService {
	return &UserService{repo: repo, now: time.Now}
}

func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

// Register creates an active user. The email must not be taken yet.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	u, err := model.NewUser(in.Name, in.Email, in.BirthDate, s.now())
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	for _, role := range in.Roles {
		if err := u.AddRole(role); err != nil {
			return model.User{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	taken, err := s.repo.EmailExists(ctx, u.Email)
	if err != nil {
		return model.User{}, err
	}
	if taken {
		return model.User{}, fmt.Errorf("email %s: %w", u.Email, repo.ErrorConflict)
	}
	return s.repo.Save(ctx, u)
}

func (s *UserService) Get(ctx context.Context, email string) (model.User, error) {
	return s.repo.FindByEmail(ctx, strings.TrimSpace(email))
}

// Authenticate resolves the caller by email. Unknown emails are unauthorized, inactive users forbidden.
func (s *UserService) Authenticate(ctx context.Context, email string) (model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.User{}, ErrUnauthorized
	}
	u, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repo.ErrorNotFound) {
		return model.User{}, ErrUnauthorized
	}
	if err != nil {
		return model.User{}, err
	}
	if !u.Active {
		return model.User{}, ErrForbidden
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, filter model.UserFilter) ([]model.User, error) {
	users, err := s.repo.List(ctx, filter)
	if errors.Is(err, repo.ErrInvalidRange) {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return users, err
}

func (s *UserService) SetActive(ctx context.Context, email string, active bool) (model.User, error) {
	u, err := s.Get(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	if active {
		u.Activate()
	} else {
		u.Deactivate()
	}
	return s.repo.Update(ctx, u)
}

func (s *UserService) Delete(ctx context.Context, email string) error {
	return s.repo.Delete(ctx, strings.TrimSpace(email))
}
