package game

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"todoquest/internal/character"
	"todoquest/internal/collection"
	"todoquest/internal/config"
	"todoquest/internal/health"
	"todoquest/internal/notify"
	"todoquest/internal/progress"
	"todoquest/internal/storage"
	"todoquest/internal/suggest"
	"todoquest/internal/task"
	"todoquest/internal/telemetry"
)

// Engine owns the whole game state. Every mutation, whether from an HTTP
// handler or the deadline ticker, goes through it under one mutex.
type Engine struct {
	mu sync.Mutex

	cfg config.Game

	tasks     *task.Store
	health    *health.Monitor
	selector  *character.Selector
	collected *collection.Manager
	queue     *notify.Queue
	events    telemetry.Recorder
	suggester suggest.Suggester
	clock     Clock
	logger    *log.Logger

	// A cycle-boundary level-up unlocks the outgoing character and holds
	// the re-pick until the player acknowledges the unlock.
	unlockPending   bool
	pendingUnlockID int
}

type EngineOptions struct {
	Config    config.Game
	Storage   storage.Store
	Suggester suggest.Suggester
	Events    telemetry.Recorder
	Clock     Clock
	Rand      *rand.Rand
	Logger    *log.Logger
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Storage == nil {
		opts.Storage = storage.NewMemoryStore()
	}
	if opts.Events == nil {
		opts.Events = telemetry.NewMemoryRecorder()
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Suggester == nil {
		opts.Suggester = suggest.Static{Point: opts.Config.DefaultPoint}
	}

	tasks, err := task.NewStore(task.StoreOptions{
		Storage:       opts.Storage,
		Logger:        opts.Logger,
		RejectPastDue: opts.Config.RejectPastDue,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:   opts.Config,
		tasks: tasks,
		health: health.NewMonitor(health.MonitorOptions{
			MaxHP:   opts.Config.MaxHP,
			Storage: opts.Storage,
			Logger:  opts.Logger,
		}),
		selector: character.NewSelector(character.SelectorOptions{
			Pool:    opts.Config.CharacterPool,
			Cycle:   opts.Config.CycleLength,
			Rand:    opts.Rand,
			Storage: opts.Storage,
			Logger:  opts.Logger,
		}),
		collected: collection.NewManager(collection.ManagerOptions{
			Total:   opts.Config.CharacterPool,
			Cycle:   opts.Config.CycleLength,
			Policy:  opts.Config.Collision,
			Storage: opts.Storage,
			Logger:  opts.Logger,
		}),
		queue:     notify.NewQueue(opts.Config.NotifyDuration),
		events:    opts.Events,
		suggester: opts.Suggester,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}

	// Game start: make sure a companion exists for the current level.
	p := e.progressLocked()
	if picked, id := e.selector.Observe(p.Level); picked {
		e.recordEvent(telemetry.EventCharacterSelected, telemetry.EventMetadata{
			"character_id": id,
			"level":        p.Level,
		})
	}

	return e, nil
}

func (e *Engine) progressLocked() progress.Progress {
	return progress.ComputeWith(e.tasks.List(), e.cfg.XPPerLevel)
}

func (e *Engine) recordEvent(t telemetry.EventType, md telemetry.EventMetadata) {
	if err := e.events.Record(t, md); err != nil {
		e.logger.Printf("[game] record %s: %v", t, err)
	}
}

func (e *Engine) AddTask(title string, point int, due *time.Time) (task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tasks.Add(title, point, due, e.clock.Now())
	if err != nil {
		return task.Task{}, err
	}
	e.recordEvent(telemetry.EventTaskCreated, telemetry.EventMetadata{
		"task_id": t.ID,
		"point":   t.Point,
	})
	return t, nil
}

// SuggestPoint asks the configured suggester for an estimate. A failure
// falls back to the default point value; task creation never blocks on a
// flaky estimation API.
func (e *Engine) SuggestPoint(ctx context.Context, title string) int {
	point, err := e.suggester.SuggestPoint(ctx, title)
	if err != nil {
		e.logger.Printf("[game] point suggestion failed, using default: %v", err)
		return e.defaultPoint()
	}
	if err := task.ValidatePoint(point); err != nil {
		e.logger.Printf("[game] suggester returned invalid point %d, using default", point)
		return e.defaultPoint()
	}
	return point
}

func (e *Engine) defaultPoint() int {
	if e.cfg.DefaultPoint > 0 {
		return e.cfg.DefaultPoint
	}
	return suggest.DefaultPoint
}

// ToggleTask flips a task's done flag and settles the consequences:
// xp notifications, level-ups, and cycle-boundary character unlocks.
func (e *Engine) ToggleTask(id string) (task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	pre := e.progressLocked()

	t, err := e.tasks.Toggle(id, now)
	if err != nil {
		return task.Task{}, err
	}

	post := e.progressLocked()

	if t.Done {
		e.queue.Publish(notify.XPGain{Point: t.Point}, now)
		e.recordEvent(telemetry.EventTaskCompleted, telemetry.EventMetadata{
			"task_id": t.ID,
			"point":   t.Point,
		})
	} else {
		e.recordEvent(telemetry.EventTaskReopened, telemetry.EventMetadata{
			"task_id": t.ID,
		})
	}

	if post.Level > pre.Level {
		e.handleLevelUpLocked(pre.Level, post, now)
	} else {
		// Level held or dropped; keep the selector's view current.
		e.selector.Note(post.Level)
	}

	return t, nil
}

func (e *Engine) handleLevelUpLocked(prevLevel int, post progress.Progress, now time.Time) {
	e.recordEvent(telemetry.EventLevelUp, telemetry.EventMetadata{
		"from": prevLevel,
		"to":   post.Level,
	})

	if e.isCycleBoundary(post.Level) {
		if id, ok := e.selector.Selected(); ok {
			if e.collected.RegisterUnlock(id, now) {
				e.recordEvent(telemetry.EventCharacterUnlocked, telemetry.EventMetadata{
					"character_id": id,
					"level":        post.Level,
				})
			}
			e.unlockPending = true
			e.pendingUnlockID = id
		}
		// Hold the re-pick until the unlock is acknowledged.
		e.selector.Note(post.Level)
		return
	}

	e.queue.Publish(notify.LevelUp{Level: post.Level, XP: post.XP}, now)
	if picked, id := e.selector.Observe(post.Level); picked {
		e.recordEvent(telemetry.EventCharacterSelected, telemetry.EventMetadata{
			"character_id": id,
			"level":        post.Level,
		})
	}
}

func (e *Engine) isCycleBoundary(level int) bool {
	cycle := e.cfg.CycleLength
	if cycle <= 0 {
		cycle = 5
	}
	return level > 1 && (level-1)%cycle == 0
}

// AcknowledgeUnlock dismisses the unlock popup and hands the player a
// fresh companion. It reports whether an unlock was actually pending.
func (e *Engine) AcknowledgeUnlock() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.unlockPending {
		return 0, false
	}
	e.unlockPending = false
	e.pendingUnlockID = 0

	id := e.selector.Pick()
	e.recordEvent(telemetry.EventCharacterSelected, telemetry.EventMetadata{
		"character_id": id,
	})
	return id, true
}

func (e *Engine) EditTask(id, title string, point int, due *time.Time) (task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.Edit(id, title, point, due, e.clock.Now())
}

func (e *Engine) DeleteTask(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks.Delete(id)
	e.health.Release(id)
	e.recordEvent(telemetry.EventTaskDeleted, telemetry.EventMetadata{
		"task_id": id,
	})
}

// ExtendDeadline pushes a task's due date out and clears its penalty
// marker, so going overdue again costs hp again.
func (e *Engine) ExtendDeadline(id string, due time.Time) (task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.tasks.ExtendDeadline(id, due, e.clock.Now())
	if err != nil {
		return task.Task{}, err
	}
	e.health.Forgive(id)
	e.recordEvent(telemetry.EventDeadlineExtended, telemetry.EventMetadata{
		"task_id": id,
		"due":     due.Format(time.RFC3339),
	})
	return t, nil
}

func (e *Engine) GetTask(id string) (task.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.Get(id)
}

func (e *Engine) Tasks() []task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.List()
}

func (e *Engine) OverdueTasks() []task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.Overdue(e.clock.Now())
}

// Tick runs one deadline check and publishes a single aggregated hp-loss
// notification for everything that went overdue since the last pass.
func (e *Engine) Tick(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	lost := e.health.Check(e.tasks.List(), now)
	if lost > 0 {
		e.queue.Publish(notify.HPLoss{Amount: lost}, now)
		e.recordEvent(telemetry.EventHPLoss, telemetry.EventMetadata{
			"amount": lost,
			"hp":     e.health.HP(),
		})
	}
	return lost
}

// Run drives the deadline monitor from one recurring ticker until the
// context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	interval := e.cfg.MonitorInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(e.clock.Now())
		}
	}
}

type CharacterState struct {
	ID          int    `json:"id"`
	HasSelected bool   `json:"hasSelected"`
	Stage       int    `json:"stage"`
	Visual      string `json:"visual"`
}

type State struct {
	Tasks           []task.Task      `json:"tasks"`
	XP              int              `json:"xp"`
	Level           int              `json:"level"`
	HP              int              `json:"hp"`
	MaxHP           int              `json:"maxHp"`
	Character       CharacterState   `json:"character"`
	UnlockPending   bool             `json:"unlockPending"`
	PendingUnlockID int              `json:"pendingUnlockId,omitempty"`
	Collection      collection.Stats `json:"collection"`
}

// State assembles the full client-facing snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progressLocked()
	id, has := e.selector.Selected()

	return State{
		Tasks: e.tasks.List(),
		XP:    p.XP,
		Level: p.Level,
		HP:    e.health.HP(),
		MaxHP: e.health.MaxHP(),
		Character: CharacterState{
			ID:          id,
			HasSelected: has,
			Stage:       e.selector.Stage(p.Level),
			Visual:      e.selector.Visual(p.Level),
		},
		UnlockPending:   e.unlockPending,
		PendingUnlockID: e.pendingUnlockID,
		Collection:      e.collected.Stats(),
	}
}

// Notification returns the message currently on display, if any.
func (e *Engine) Notification() (notify.Message, bool) {
	return e.queue.Current(e.clock.Now())
}

// AdvanceNotification dismisses the current message ahead of its timer.
func (e *Engine) AdvanceNotification() {
	e.queue.Advance(e.clock.Now())
}

func (e *Engine) Collection() collection.Collection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collected.Snapshot()
}

// ResetCharacter clears the companion selection and immediately picks a
// fresh one for the current level.
func (e *Engine) ResetCharacter() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.selector.Reset()
	e.unlockPending = false
	e.pendingUnlockID = 0

	p := e.progressLocked()
	picked, id := e.selector.Observe(p.Level)
	if picked {
		e.recordEvent(telemetry.EventCharacterSelected, telemetry.EventMetadata{
			"character_id": id,
			"level":        p.Level,
		})
	}
	return id
}

// Stats merges collection progress with the telemetry aggregates.
func (e *Engine) Stats(since time.Time) (collection.Stats, telemetry.Stats, error) {
	e.mu.Lock()
	colStats := e.collected.Stats()
	e.mu.Unlock()

	events, err := e.events.Events(since, nil)
	if err != nil {
		return colStats, telemetry.Stats{}, err
	}
	evStats, err := telemetry.CalculateStats(events, since)
	if err != nil {
		return colStats, telemetry.Stats{}, err
	}
	return colStats, evStats, nil
}
