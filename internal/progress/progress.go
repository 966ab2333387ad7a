package progress

import "todoquest/internal/task"

// XPPerLevel is the experience span of one level.
const XPPerLevel = 100

type Progress struct {
	XP    int `json:"xp"`
	Level int `json:"level"`
}

// Compute derives xp and level from the task list. It is a pure function;
// callers must always recompute from the authoritative post-mutation list
// rather than comparing against a value captured before the mutation.
func Compute(tasks []task.Task) Progress {
	return ComputeWith(tasks, XPPerLevel)
}

// ComputeWith is Compute with a configurable per-level span.
func ComputeWith(tasks []task.Task, xpPerLevel int) Progress {
	if xpPerLevel <= 0 {
		xpPerLevel = XPPerLevel
	}
	xp := 0
	for _, t := range tasks {
		if t.Done {
			xp += t.Point
		}
	}
	return Progress{
		XP:    xp,
		Level: xp/xpPerLevel + 1,
	}
}
