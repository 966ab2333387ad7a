package character

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"

	"todoquest/internal/storage"
)

// DefaultVisual is shown before the first character pick.
const DefaultVisual = "cat-animation.gif"

// Selector owns the companion-character choice. A character is picked at
// game start and again whenever the player reaches the first level of a
// new cycle (levels 1, 6, 11, ... with the default cycle of 5).
type Selector struct {
	mu          sync.Mutex
	selected    int // 0 = unset
	hasSelected bool
	prevLevel   int
	observed    bool

	pool   int
	cycle  int
	rng    *rand.Rand
	store  storage.Store
	logger *log.Logger
}

type SelectorOptions struct {
	Pool    int
	Cycle   int
	Rand    *rand.Rand
	Storage storage.Store
	Logger  *log.Logger
}

func NewSelector(opts SelectorOptions) *Selector {
	if opts.Pool <= 0 {
		opts.Pool = 15
	}
	if opts.Cycle <= 0 {
		opts.Cycle = 5
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewMemoryStore()
	}
	s := &Selector{
		pool:   opts.Pool,
		cycle:  opts.Cycle,
		rng:    opts.Rand,
		store:  opts.Storage,
		logger: opts.Logger,
	}
	s.hydrate()
	return s
}

func (s *Selector) hydrate() {
	if b, ok, err := s.store.Get(storage.KeyCharacter); err != nil {
		s.logger.Printf("[character] load selection: %v", err)
	} else if ok {
		var id int
		if err := json.Unmarshal(b, &id); err != nil {
			s.logger.Printf("[character] malformed selection record: %v", err)
		} else if id >= 1 && id <= s.pool {
			s.selected = id
		}
	}
	if b, ok, err := s.store.Get(storage.KeyHasSelected); err != nil {
		s.logger.Printf("[character] load flag: %v", err)
	} else if ok {
		var f bool
		if err := json.Unmarshal(b, &f); err != nil {
			s.logger.Printf("[character] malformed flag record: %v", err)
		} else {
			s.hasSelected = f
		}
	}
	// A stored id without the flag still counts as selected.
	if s.selected != 0 {
		s.hasSelected = true
	}
}

func (s *Selector) persistLocked() {
	if b, err := json.Marshal(s.selected); err == nil {
		if err := s.store.Set(storage.KeyCharacter, b); err != nil {
			s.logger.Printf("[character] save selection: %v", err)
		}
	}
	if b, err := json.Marshal(s.hasSelected); err == nil {
		if err := s.store.Set(storage.KeyHasSelected, b); err != nil {
			s.logger.Printf("[character] save flag: %v", err)
		}
	}
}

func (s *Selector) random() int {
	if s.rng != nil {
		return s.rng.Intn(s.pool) + 1
	}
	return rand.Intn(s.pool) + 1
}

// Observe applies the selection rule for the given level: a first-ever
// pick, or a replacement pick when the level rose to the start of a new
// cycle since the previous observation. It returns the picked id when a
// pick happened.
func (s *Selector) Observe(level int) (picked bool, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.prevLevel
	first := !s.observed
	s.prevLevel = level
	s.observed = true

	if !s.hasSelected {
		return true, s.pickLocked()
	}
	if !first && level > prev && s.isPickLevel(level) {
		return true, s.pickLocked()
	}
	return false, 0
}

// Note records the level without applying the pick rule. The orchestrator
// uses it when a collection-unlock popup defers the re-pick.
func (s *Selector) Note(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prevLevel = level
	s.observed = true
}

// Pick forces a fresh random selection. Used for the post-unlock hand-off.
func (s *Selector) Pick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pickLocked()
}

func (s *Selector) pickLocked() int {
	s.selected = s.random()
	s.hasSelected = true
	s.persistLocked()
	return s.selected
}

func (s *Selector) isPickLevel(level int) bool {
	return level >= 1 && (level-1)%s.cycle == 0
}

func (s *Selector) Selected() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.hasSelected
}

// Stage maps a level onto the character's visual stage, 1..cycle.
func (s *Selector) Stage(level int) int {
	if level < 1 {
		level = 1
	}
	return (level-1)%s.cycle + 1
}

// Visual returns the asset reference for the current character at the
// given level, or the default asset when nothing is selected.
func (s *Selector) Visual(level int) string {
	s.mu.Lock()
	selected := s.selected
	s.mu.Unlock()
	if selected == 0 {
		return DefaultVisual
	}
	return fmt.Sprintf("/character%d/level%d.gif", selected, s.Stage(level))
}

// FinalStageVisual is the asset reference for a character's maximal stage.
func FinalStageVisual(id, cycle int) string {
	if cycle <= 0 {
		cycle = 5
	}
	return fmt.Sprintf("/character%d/level%d.gif", id, cycle)
}

// Reset clears the selection and its persisted records.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = 0
	s.hasSelected = false
	if err := s.store.Delete(storage.KeyCharacter); err != nil {
		s.logger.Printf("[character] clear selection: %v", err)
	}
	if err := s.store.Delete(storage.KeyHasSelected); err != nil {
		s.logger.Printf("[character] clear flag: %v", err)
	}
}

func (s *Selector) Pool() int { return s.pool }
