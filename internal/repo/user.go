package repo

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BuzzLyutic/taskdesk/internal/model"
	"github.com/BuzzLyutic/taskdesk/internal/storage"
)

const UsersTable = "users"

type userMapper struct{}

func (userMapper) Table() string           { return UsersTable }
func (userMapper) KeyField() string        { return "email" }
func (userMapper) Key(u model.User) string { return u.Email }

func (userMapper) ToRecord(u model.User) storage.Record {
	return storage.Record{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"birth_date": u.BirthDate,
		"roles":      strings.Join(u.Roles, model.RoleSeparator),
		"active":     u.Active,
	}
}

// FromRecord re-derives the roles list from its comma-joined column.
func (userMapper) FromRecord(r storage.Record) (model.User, error) {
	id, _, err := r.UUID("id")
	if err != nil {
		return model.User{}, err
	}
	birth, _, err := r.Time("birth_date")
	if err != nil {
		return model.User{}, err
	}

	roles := []string{}
	for _, role := range strings.Split(r.String("roles"), model.RoleSeparator) {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}

	return model.User{
		ID:        id,
		Name:      r.String("name"),
		Email:     r.String("email"),
		BirthDate: model.DateOf(birth),
		Roles:     roles,
		Active:    r.Bool("active"),
	}, nil
}

// UserRepo caches users by email.
type UserRepo struct {
	users *Repository[string, model.User]
	now   func() time.Time
}

func NewUserRepo(db storage.Database) *UserRepo {
	return &UserRepo{
		users: NewRepository[string, model.User](db, userMapper{}),
		now:   time.Now,
	}
}

// WithClock replaces the clock used for age calculations.
func (r *UserRepo) WithClock(now func() time.Time) *UserRepo {
	r.now = now
	return r
}

func (r *UserRepo) Save(ctx context.Context, u model.User) (model.User, error) {
	if err := r.users.Save(ctx, u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := r.users.FindByKey(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	return withOwnRoles(u), nil
}

func (r *UserRepo) FindAll(ctx context.Context) ([]model.User, error) {
	return r.users.FindAll(ctx)
}

func (r *UserRepo) FindAdmins(ctx context.Context) ([]model.User, error) {
	return r.users.Filter(ctx, model.User.IsAdmin)
}

func (r *UserRepo) FindActive(ctx context.Context) ([]model.User, error) {
	return r.users.FindWhere(ctx, storage.Conditions{"active": true})
}

// FindByAgeRange returns users whose age in whole years lies in [minAge, maxAge].
func (r *UserRepo) FindByAgeRange(ctx context.Context, minAge, maxAge int) ([]model.User, error) {
	if minAge > maxAge {
		return nil, fmt.Errorf("%w: min age %d is greater than max age %d", ErrInvalidRange, minAge, maxAge)
	}
	now := r.now()
	return r.users.Filter(ctx, func(u model.User) bool {
		age := u.Age(now)
		return age >= minAge && age <= maxAge
	})
}

// List applies every predicate set in filter.
func (r *UserRepo) List(ctx context.Context, filter model.UserFilter) ([]model.User, error) {
	minAge, maxAge := 0, int(^uint(0)>>1)
	if filter.MinAge != nil {
		minAge = *filter.MinAge
	}
	if filter.MaxAge != nil {
		maxAge = *filter.MaxAge
	}
	if minAge > maxAge {
		return nil, fmt.Errorf("%w: min age %d is greater than max age %d", ErrInvalidRange, minAge, maxAge)
	}

	cond := storage.Conditions{}
	if filter.ActiveOnly {
		cond["active"] = true
	}
	users, err := r.users.FindWhere(ctx, cond)
	if err != nil {
		return nil, err
	}

	now := r.now()
	return slices.DeleteFunc(users, func(u model.User) bool {
		if filter.AdminsOnly && !u.IsAdmin() {
			return true
		}
		age := u.Age(now)
		return age < minAge || age > maxAge
	}), nil
}

func (r *UserRepo) Update(ctx context.Context, u model.User) (model.User, error) {
	if err := r.users.Update(ctx, u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (r *UserRepo) Delete(ctx context.Context, email string) error {
	return r.users.Delete(ctx, email)
}

func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.users.Exists(ctx, email)
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	return r.users.Count(ctx)
}

func (r *UserRepo) ClearCache() {
	r.users.ClearCache()
}

func (r *UserRepo) CacheStats() CacheStats {
	return r.users.Stats()
}

// withOwnRoles keeps callers from appending into the cached entity's slice.
func withOwnRoles(u model.User) model.User {
	u.Roles = slices.Clone(u.Roles)
	if u.Roles == nil {
		u.Roles = []string{}
	}
	return u
}
