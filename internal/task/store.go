package task

import (
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"todoquest/internal/storage"
)

// Store owns the canonical task list. Mutations apply in memory first and
// then write through to the byte store; a storage failure is logged and the
// in-memory state stays authoritative for the session.
type Store struct {
	mu            sync.RWMutex
	tasks         map[string]Task
	store         storage.Store
	logger        *log.Logger
	rejectPastDue bool
}

type StoreOptions struct {
	Storage storage.Store
	Logger  *log.Logger

	// RejectPastDue makes Add refuse deadlines that are already in the
	// past at creation time.
	RejectPastDue bool
}

func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewMemoryStore()
	}
	s := &Store{
		tasks:         map[string]Task{},
		store:         opts.Storage,
		logger:        opts.Logger,
		rejectPastDue: opts.RejectPastDue,
	}
	s.hydrate()
	return s, nil
}

// hydrate loads prior state. Missing or malformed records fall back to an
// empty list; startup never fails on bad persisted data.
func (s *Store) hydrate() {
	b, ok, err := s.store.Get(storage.KeyTasks)
	if err != nil {
		s.logger.Printf("[task] load tasks: %v", err)
		return
	}
	if !ok {
		return
	}
	var loaded []Task
	if err := json.Unmarshal(b, &loaded); err != nil {
		s.logger.Printf("[task] malformed task record, starting empty: %v", err)
		return
	}
	for _, t := range loaded {
		if t.ID == "" {
			continue
		}
		s.tasks[t.ID] = t
	}
}

func (s *Store) persistLocked() {
	out := s.listLocked()
	b, err := json.Marshal(out)
	if err != nil {
		s.logger.Printf("[task] marshal tasks: %v", err)
		return
	}
	if err := s.store.Set(storage.KeyTasks, b); err != nil {
		s.logger.Printf("[task] save tasks: %v", err)
	}
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ValidationError{Field: "title", Reason: "required"}
	}
	return title, nil
}

func (s *Store) Add(title string, point int, due *time.Time, now time.Time) (Task, error) {
	title, err := validateTitle(title)
	if err != nil {
		return Task{}, err
	}
	if err := ValidatePoint(point); err != nil {
		return Task{}, err
	}
	if s.rejectPastDue && due != nil && due.Before(now) {
		return Task{}, ValidationError{Field: "due", Reason: "date must be in the future"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := Task{
		ID:        uuid.NewString(),
		Title:     title,
		Point:     point,
		Done:      false,
		Due:       due,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.tasks[t.ID] = t
	s.persistLocked()
	return t, nil
}

func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Toggle flips the done flag and returns the updated task.
func (s *Store) Toggle(id string, now time.Time) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	t.Done = !t.Done
	t.UpdatedAt = now
	s.tasks[id] = t
	s.persistLocked()
	return t, nil
}

// Edit replaces title, point and due atomically. It never touches the done
// flag.
func (s *Store) Edit(id, title string, point int, due *time.Time, now time.Time) (Task, error) {
	title, err := validateTitle(title)
	if err != nil {
		return Task{}, err
	}
	if err := ValidatePoint(point); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	t.Title = title
	t.Point = point
	t.Due = due
	t.UpdatedAt = now
	s.tasks[id] = t
	s.persistLocked()
	return t, nil
}

// Delete removes the task. Deleting an absent id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return
	}
	delete(s.tasks, id)
	s.persistLocked()
}

// ExtendDeadline replaces the due timestamp only.
func (s *Store) ExtendDeadline(id string, due time.Time, now time.Time) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	d := due
	t.Due = &d
	t.UpdatedAt = now
	s.tasks[id] = t
	s.persistLocked()
	return t, nil
}

// List returns all tasks sorted due-soonest-first; tasks without a
// deadline sort last.
func (s *Store) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked()
}

func (s *Store) listLocked() []Task {
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Due, out[j].Due
		switch {
		case di == nil && dj == nil:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case di == nil:
			return false
		case dj == nil:
			return true
		case !di.Equal(*dj):
			return di.Before(*dj)
		default:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
	})
	return out
}

// Overdue returns incomplete tasks whose deadline has passed.
func (s *Store) Overdue(now time.Time) []Task {
	all := s.List()
	out := make([]Task, 0)
	for _, t := range all {
		if t.IsOverdue(now) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
