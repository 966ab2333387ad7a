package collection

import (
	"encoding/json"
	"log"
	"math"
	"sync"
	"time"

	"todoquest/internal/character"
	"todoquest/internal/config"
	"todoquest/internal/storage"
)

// Character is a permanent record of a companion that completed a full
// cycle with the player.
type Character struct {
	ID         int       `json:"id"`
	UnlockedAt time.Time `json:"unlockedAt"`
	AssetPath  string    `json:"assetPath"`
}

type Collection struct {
	Characters []Character `json:"characters"`
	Total      int         `json:"totalCharacters"`
	Unlocked   int         `json:"unlockedCharacters"`
}

type Stats struct {
	Total      int `json:"total"`
	Unlocked   int `json:"unlocked"`
	Percentage int `json:"percentage"`
}

// Manager owns the unlocked-character roster. Registrations are
// deduplicated by character id; what happens on a duplicate is the
// configured collision policy.
type Manager struct {
	mu     sync.Mutex
	col    Collection
	policy config.CollisionPolicy
	cycle  int
	store  storage.Store
	logger *log.Logger
}

type ManagerOptions struct {
	Total   int
	Cycle   int
	Policy  config.CollisionPolicy
	Storage storage.Store
	Logger  *log.Logger
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.Total <= 0 {
		opts.Total = 15
	}
	if opts.Cycle <= 0 {
		opts.Cycle = 5
	}
	if opts.Policy == "" {
		opts.Policy = config.CollisionSkip
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewMemoryStore()
	}
	m := &Manager{
		col: Collection{
			Characters: []Character{},
			Total:      opts.Total,
		},
		policy: opts.Policy,
		cycle:  opts.Cycle,
		store:  opts.Storage,
		logger: opts.Logger,
	}
	m.hydrate()
	return m
}

func (m *Manager) hydrate() {
	b, ok, err := m.store.Get(storage.KeyCollection)
	if err != nil {
		m.logger.Printf("[collection] load: %v", err)
		return
	}
	if !ok {
		return
	}
	var loaded Collection
	if err := json.Unmarshal(b, &loaded); err != nil {
		m.logger.Printf("[collection] malformed record, starting empty: %v", err)
		return
	}
	if loaded.Characters == nil {
		loaded.Characters = []Character{}
	}
	loaded.Total = m.col.Total
	// The count is derived, never trusted from disk.
	loaded.Unlocked = len(loaded.Characters)
	m.col = loaded
}

func (m *Manager) persistLocked() {
	b, err := json.Marshal(m.col)
	if err != nil {
		m.logger.Printf("[collection] marshal: %v", err)
		return
	}
	if err := m.store.Set(storage.KeyCollection, b); err != nil {
		m.logger.Printf("[collection] save: %v", err)
	}
}

// RegisterUnlock records a character into the roster. It returns true when
// a new record was inserted. Registering a character that is already
// present follows the collision policy: skip leaves the record untouched,
// refresh updates its unlock timestamp. The count never drifts.
func (m *Manager) RegisterUnlock(id int, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.col.Characters {
		if c.ID != id {
			continue
		}
		if m.policy == config.CollisionRefresh {
			m.col.Characters[i].UnlockedAt = now
			m.persistLocked()
		}
		return false
	}

	m.col.Characters = append(m.col.Characters, Character{
		ID:         id,
		UnlockedAt: now,
		AssetPath:  character.FinalStageVisual(id, m.cycle),
	})
	m.col.Unlocked = len(m.col.Characters)
	m.persistLocked()
	return true
}

func (m *Manager) Get(id int) (Character, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.col.Characters {
		if c.ID == id {
			return c, true
		}
	}
	return Character{}, false
}

func (m *Manager) Snapshot() Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.col
	out.Characters = append([]Character{}, m.col.Characters...)
	return out
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	pct := 0
	if m.col.Total > 0 {
		pct = int(math.Round(float64(m.col.Unlocked) / float64(m.col.Total) * 100))
	}
	return Stats{
		Total:      m.col.Total,
		Unlocked:   m.col.Unlocked,
		Percentage: pct,
	}
}
