package suggest

import (
	"context"
	"math"

	"todoquest/internal/task"
)

// DefaultPoint is used when a suggestion is unavailable or unparseable.
const DefaultPoint = 15

// Suggester estimates how many points a task title is worth.
type Suggester interface {
	SuggestPoint(ctx context.Context, title string) (int, error)
}

// Normalize snaps a raw estimate onto the valid point scale: rounded to
// the nearest multiple of five and clamped to the allowed range.
func Normalize(raw int) int {
	point := int(math.Round(float64(raw)/task.PointStep)) * task.PointStep
	if point < task.MinPoint {
		return task.MinPoint
	}
	if point > task.MaxPoint {
		return task.MaxPoint
	}
	return point
}

// Static always suggests the same point value. It backs deployments with
// no estimation API configured, and tests.
type Static struct {
	Point int
	Err   error
}

func (s Static) SuggestPoint(ctx context.Context, title string) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	if s.Point == 0 {
		return DefaultPoint, nil
	}
	return s.Point, nil
}
