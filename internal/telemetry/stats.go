package telemetry

import (
	"encoding/json"
	"time"
)

type Stats struct {
	Period           string            `json:"period"`
	EventCounts      map[EventType]int `json:"event_counts"`
	TaskCompletions  int               `json:"task_completions"`
	TasksCreated     int               `json:"tasks_created"`
	LevelUps         int               `json:"level_ups"`
	HPLost           int               `json:"hp_lost"`
	CharacterUnlocks int               `json:"character_unlocks"`
	PointsEarned     int               `json:"points_earned"`
}

// CalculateStats computes play-balance stats from events.
func CalculateStats(events []Event, since time.Time) (Stats, error) {
	stats := Stats{
		Period:      since.Format("2006-01-02"),
		EventCounts: make(map[EventType]int),
	}

	for _, event := range events {
		stats.EventCounts[event.Type]++

		var metadata EventMetadata
		if err := json.Unmarshal([]byte(event.Metadata), &metadata); err != nil {
			continue
		}

		switch event.Type {
		case EventTaskCreated:
			stats.TasksCreated++
		case EventTaskCompleted:
			stats.TaskCompletions++
			if point, ok := metadata["point"].(float64); ok {
				stats.PointsEarned += int(point)
			}
		case EventLevelUp:
			stats.LevelUps++
		case EventHPLoss:
			if amount, ok := metadata["amount"].(float64); ok {
				stats.HPLost += int(amount)
			}
		case EventCharacterUnlocked:
			stats.CharacterUnlocks++
		}
	}

	return stats, nil
}
