package telemetry

import "time"

type EventType string

const (
	EventTaskCreated       EventType = "task_created"
	EventTaskCompleted     EventType = "task_completed"
	EventTaskReopened      EventType = "task_reopened"
	EventTaskDeleted       EventType = "task_deleted"
	EventDeadlineExtended  EventType = "deadline_extended"
	EventLevelUp           EventType = "level_up"
	EventHPLoss            EventType = "hp_loss"
	EventCharacterSelected EventType = "character_selected"
	EventCharacterUnlocked EventType = "character_unlocked"
)

type Event struct {
	ID        int       `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

type EventMetadata map[string]interface{}
