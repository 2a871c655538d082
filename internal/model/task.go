package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 1000
)

// ErrInvalid is wrapped by every argument error raised by the domain types.
var ErrInvalid = errors.New("invalid argument")

var (
	ErrEmptyTitle         = fmt.Errorf("%w: title cannot be empty", ErrInvalid)
	ErrTitleTooLong       = fmt.Errorf("%w: title cannot exceed %d characters", ErrInvalid, MaxTitleLength)
	ErrDescriptionTooLong = fmt.Errorf("%w: description cannot exceed %d characters", ErrInvalid, MaxDescriptionLength)
	ErrInvalidStatus      = fmt.Errorf("%w: unknown status", ErrInvalid)
	ErrInvalidPriority    = fmt.Errorf("%w: unknown priority", ErrInvalid)
)

var statusLabels = map[Status]string{
	StatusTodo:       "To do",
	StatusInProgress: "In progress",
	StatusCompleted:  "Completed",
}

var priorityLabels = map[Priority]string{
	PriorityLow:    "Low",
	PriorityMedium: "Medium",
	PriorityHigh:   "High",
}

// Statuses returns every status in board order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusCompleted}
}

func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label falls back to the raw value for unknown statuses.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (p Priority) Valid() bool {
	_, ok := priorityLabels[p]
	return ok
}

func (p Priority) Label() string {
	if l, ok := priorityLabels[p]; ok {
		return l
	}
	return string(p)
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.TrimSpace(s))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
	return p, nil
}

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *Date      `json:"due_date"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask builds a todo task. An empty priority means medium.
func NewTask(title string, priority Priority, due *Date) (Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, ErrEmptyTitle
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	t := Task{
		Title:    title,
		Status:   StatusTodo,
		Priority: priority,
		DueDate:  due,
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	return nil
}

// Transition returns a copy with the new status. Any status is reachable from any other.
func (t Task) Transition(status Status, now time.Time) (Task, error) {
	if !status.Valid() {
		return t, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	t.Status = status
	t.UpdatedAt = now
	return t, nil
}

func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// IsOverdue reports whether the due date lies strictly before now and the task is not completed.
func (t Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.DueDate.IsZero() || t.IsCompleted() {
		return false
	}
	return t.DueDate.Time.Before(now)
}

func (t Task) StatusLabel() string {
	return t.Status.Label()
}

func (t Task) PriorityLabel() string {
	return t.Priority.Label()
}

func (t Task) OwnedBy(userID uuid.UUID) bool {
	return t.UserID != nil && *t.UserID == userID
}

type TaskFilter struct {
	Status   *Status
	Priority *Priority
	UserID   *uuid.UUID
	Overdue  bool
}

func (f TaskFilter) Match(t Task, now time.Time) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.UserID != nil && !t.OwnedBy(*f.UserID) {
		return false
	}
	if f.Overdue && !t.IsOverdue(now) {
		return false
	}
	return true
}
