package health

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"todoquest/internal/storage"
	"todoquest/internal/task"
)

// Monitor tracks the health counter and the per-task "already penalized"
// markers that give each overdue transition exactly-once accounting. A
// task that is toggled done after going overdue stops accruing, but the
// hp it already cost is not restored for the session.
type Monitor struct {
	mu        sync.Mutex
	hp        int
	maxHP     int
	penalized map[string]bool
	store     storage.Store
	logger    *log.Logger
}

type MonitorOptions struct {
	MaxHP   int
	Storage storage.Store
	Logger  *log.Logger
}

type persistedState struct {
	HP        int      `json:"hp"`
	Penalized []string `json:"penalized"`
}

func NewMonitor(opts MonitorOptions) *Monitor {
	if opts.MaxHP <= 0 {
		opts.MaxHP = 5
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewMemoryStore()
	}
	m := &Monitor{
		hp:        opts.MaxHP,
		maxHP:     opts.MaxHP,
		penalized: map[string]bool{},
		store:     opts.Storage,
		logger:    opts.Logger,
	}
	m.hydrate()
	return m
}

func (m *Monitor) hydrate() {
	b, ok, err := m.store.Get(storage.KeyHealth)
	if err != nil {
		m.logger.Printf("[health] load state: %v", err)
		return
	}
	if !ok {
		return
	}
	var s persistedState
	if err := json.Unmarshal(b, &s); err != nil {
		m.logger.Printf("[health] malformed health record, using defaults: %v", err)
		return
	}
	if s.HP < 0 {
		s.HP = 0
	}
	if s.HP > m.maxHP {
		s.HP = m.maxHP
	}
	m.hp = s.HP
	for _, id := range s.Penalized {
		m.penalized[id] = true
	}
}

func (m *Monitor) persistLocked() {
	ids := make([]string, 0, len(m.penalized))
	for id := range m.penalized {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	b, err := json.Marshal(persistedState{HP: m.hp, Penalized: ids})
	if err != nil {
		m.logger.Printf("[health] marshal state: %v", err)
		return
	}
	if err := m.store.Set(storage.KeyHealth, b); err != nil {
		m.logger.Printf("[health] save state: %v", err)
	}
}

func (m *Monitor) HP() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hp
}

func (m *Monitor) MaxHP() int { return m.maxHP }

// Check scans for tasks that crossed into overdue since the last check,
// marks them, and decrements hp by the number found (floored at 0). It
// returns that count so the caller can emit one aggregated notification.
func (m *Monitor) Check(tasks []task.Task, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	newly := 0
	for _, t := range tasks {
		if !t.IsOverdue(now) || m.penalized[t.ID] {
			continue
		}
		m.penalized[t.ID] = true
		newly++
	}
	if newly == 0 {
		return 0
	}

	m.hp -= newly
	if m.hp < 0 {
		m.hp = 0
	}
	m.persistLocked()
	return newly
}

// Forgive clears a task's penalized marker. Called when a deadline is
// extended so the task can be penalized again if the new deadline is
// missed too.
func (m *Monitor) Forgive(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.penalized[id] {
		return
	}
	delete(m.penalized, id)
	m.persistLocked()
}

// Release drops the marker for a deleted task.
func (m *Monitor) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.penalized[id] {
		return
	}
	delete(m.penalized, id)
	m.persistLocked()
}

// Penalized reports whether the task already cost hp.
func (m *Monitor) Penalized(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.penalized[id]
}

// Reset restores full hp and clears all markers.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hp = m.maxHP
	m.penalized = map[string]bool{}
	m.persistLocked()
}
