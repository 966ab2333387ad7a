package telemetry

import (
	"encoding/json"
	"sync"
	"time"
)

// Recorder stores telemetry events.
type Recorder interface {
	Record(eventType EventType, metadata EventMetadata) error
	Events(since time.Time, eventTypes []EventType) ([]Event, error)
	Clear() error
}

// MemoryRecorder keeps events in memory for the lifetime of the process.
type MemoryRecorder struct {
	mu     sync.RWMutex
	events []Event
	nextID int
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		events: make([]Event, 0),
		nextID: 1,
	}
}

func (r *MemoryRecorder) Record(eventType EventType, metadata EventMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	event := Event{
		ID:        r.nextID,
		Type:      eventType,
		Timestamp: time.Now(),
		Metadata:  string(metadataJSON),
	}

	r.events = append(r.events, event)
	r.nextID++

	return nil
}

func (r *MemoryRecorder) Events(since time.Time, eventTypes []EventType) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typeFilter := make(map[EventType]bool)
	for _, t := range eventTypes {
		typeFilter[t] = true
	}

	result := make([]Event, 0)
	for _, event := range r.events {
		if event.Timestamp.Before(since) {
			continue
		}
		if len(eventTypes) > 0 && !typeFilter[event.Type] {
			continue
		}
		result = append(result, event)
	}

	return result, nil
}

func (r *MemoryRecorder) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = make([]Event, 0)
	r.nextID = 1

	return nil
}
