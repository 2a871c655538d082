package model

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxNameLength = 100
	AdultAge      = 18
	RoleAdmin     = "admin"
	// RoleSeparator joins roles in storage, so no role may contain it.
	RoleSeparator = ","
)

var (
	ErrEmptyName       = fmt.Errorf("%w: name cannot be empty", ErrInvalid)
	ErrNameTooLong     = fmt.Errorf("%w: name cannot exceed %d characters", ErrInvalid, MaxNameLength)
	ErrInvalidEmail    = fmt.Errorf("%w: invalid email format", ErrInvalid)
	ErrBirthDateFuture = fmt.Errorf("%w: birth date must be in the past", ErrInvalid)
	ErrEmptyRole       = fmt.Errorf("%w: role cannot be empty", ErrInvalid)
	ErrInvalidRole     = fmt.Errorf("%w: role cannot contain %q", ErrInvalid, RoleSeparator)
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	BirthDate Date      `json:"birth_date"`
	Roles     []string  `json:"roles"`
	Active    bool      `json:"active"`
}

// NewUser validates every field and returns an active user without roles.
func NewUser(name, email string, birthDate Date, now time.Time) (User, error) {
	u := User{ID: uuid.New(), Active: true, Roles: []string{}}
	if err := u.SetName(name); err != nil {
		return User{}, err
	}
	if err := u.SetEmail(email); err != nil {
		return User{}, err
	}
	if err := u.SetBirthDate(birthDate, now); err != nil {
		return User{}, err
	}
	return u, nil
}

func (u *User) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	u.Name = name
	return nil
}

func (u *User) SetEmail(email string) error {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	u.Email = email
	return nil
}

func (u *User) SetBirthDate(d Date, now time.Time) error {
	if d.IsZero() || !d.Time.Before(now) {
		return ErrBirthDateFuture
	}
	u.BirthDate = d
	return nil
}

// ValidEmail accepts bare addresses only, no display names or angle brackets.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}

// Age is the number of full years between the birth date and now.
func (u User) Age(now time.Time) int {
	b := u.BirthDate.Time
	years := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		years--
	}
	return years
}

func (u User) IsAdult(now time.Time) bool {
	return u.Age(now) >= AdultAge
}

func (u *User) AddRole(role string) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return ErrEmptyRole
	}
	if strings.Contains(role, RoleSeparator) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
	return nil
}

func (u *User) RemoveRole(role string) {
	u.Roles = slices.DeleteFunc(u.Roles, func(r string) bool { return r == role })
}

func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

func (u User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

func (u *User) Activate() {
	u.Active = true
}

func (u *User) Deactivate() {
	u.Active = false
}

// Equal compares users by email, the natural key.
func (u User) Equal(other User) bool {
	return u.Email == other.Email
}

type UserFilter struct {
	AdminsOnly bool
	ActiveOnly bool
	MinAge     *int
	MaxAge     *int
}
