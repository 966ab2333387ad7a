package task

import (
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("task not found")

// ValidationError rejects a mutation before any state changes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

const (
	MinPoint  = 5
	MaxPoint  = 100
	PointStep = 5
)

type Task struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Point int        `json:"point"`
	Done  bool       `json:"done"`
	Due   *time.Time `json:"due,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOverdue reports whether the task has a deadline in the past and is
// still incomplete.
func (t Task) IsOverdue(now time.Time) bool {
	return !t.Done && t.Due != nil && t.Due.Before(now)
}

// ValidatePoint enforces the point rule at the store boundary: a multiple
// of 5 in [5,100].
func ValidatePoint(point int) error {
	if point < MinPoint || point > MaxPoint {
		return ValidationError{Field: "point", Reason: fmt.Sprintf("must be between %d and %d", MinPoint, MaxPoint)}
	}
	if point%PointStep != 0 {
		return ValidationError{Field: "point", Reason: fmt.Sprintf("must be a multiple of %d", PointStep)}
	}
	return nil
}
