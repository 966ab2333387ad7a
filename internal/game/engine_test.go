package game

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoquest/internal/config"
	"todoquest/internal/notify"
	"todoquest/internal/storage"
	"todoquest/internal/suggest"
	"todoquest/internal/task"
	"todoquest/internal/telemetry"
)

func testEngine(t *testing.T, store storage.Store, clock Clock) *Engine {
	t.Helper()
	cfg := config.Default().Game
	e, err := NewEngine(EngineOptions{
		Config:  cfg,
		Storage: store,
		Clock:   clock,
		Rand:    rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)
	return e
}

func TestNewEnginePicksStartingCharacter(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e := testEngine(t, storage.NewMemoryStore(), clock)

	st := e.State()
	assert.True(t, st.Character.HasSelected)
	assert.GreaterOrEqual(t, st.Character.ID, 1)
	assert.LessOrEqual(t, st.Character.ID, 15)
	assert.Equal(t, 1, st.Character.Stage)
	assert.Equal(t, 5, st.HP)
	assert.Equal(t, 1, st.Level)
}

func TestEngineCharacterSurvivesRestart(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := storage.NewMemoryStore()

	e := testEngine(t, store, clock)
	first := e.State().Character.ID

	restarted := testEngine(t, store, clock)
	assert.Equal(t, first, restarted.State().Character.ID)
}

func TestToggleTaskPublishesXPGain(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e := testEngine(t, storage.NewMemoryStore(), clock)

	tk, err := e.AddTask("water plants", 20, nil)
	require.NoError(t, err)

	_, err = e.ToggleTask(tk.ID)
	require.NoError(t, err)

	m, ok := e.Notification()
	require.True(t, ok)
	assert.Equal(t, notify.XPGain{Point: 20}, m)

	st := e.State()
	assert.Equal(t, 20, st.XP)
	assert.Equal(t, 1, st.Level)
}

func TestToggleTaskLevelUpQueuesBehindXPGain(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e := testEngine(t, storage.NewMemoryStore(), clock)

	tk, err := e.AddTask("big refactor", 100, nil)
	require.NoError(t, err)
	_, err = e.ToggleTask(tk.ID)
	require.NoError(t, err)

	st := e.State()
	assert.Equal(t, 2, st.Level)
	assert.False(t, st.UnlockPending, "level 2 does not start a cycle")

	m, ok := e.Notification()
	require.True(t, ok)
	assert.Equal(t, notify.KindXPGain, m.Kind())

	e.AdvanceNotification()
	m, ok = e.Notification()
	require.True(t, ok)
	assert.Equal(t, notify.LevelUp{Level: 2, XP: 100}, m)
}

func TestToggleBackRestoresProgress(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e := testEngine(t, storage.NewMemoryStore(), clock)

	tk, err := e.AddTask("water plants", 40, nil)
	require.NoError(t, err)

	_, err = e.ToggleTask(tk.ID)
	require.NoError(t, err)
	toggled, err := e.ToggleTask(tk.ID)
	require.NoError(t, err)

	assert.False(t, toggled.Done)
	assert.Equal(t, 0, e.State().XP)
}

func levelUpTo6(t *testing.T, e *Engine) {
	t.Helper()
	for i := 0; i < 5; i++ {
		tk, err := e.AddTask("grind", 100, nil)
		require.NoError(t, err)
		_, err = e.ToggleTask(tk.ID)
		require.NoError(t, err)
	}
}

func TestCycleBoundaryDefersRepickUntilAcknowledged(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e := testEngine(t, storage.NewMemoryStore(), clock)

	oldID := e.State().Character.ID
	levelUpTo6(t, e)

	st := e.State()
	require.Equal(t, 6, st.Level)
	assert.True(t, st.UnlockPending)
	assert.Equal(t, oldID, st.PendingUnlockID)
	assert.Equal(t, oldID, st.Character.ID, "re-pick deferred while popup pending")

	col := e.Collection()
	require.Len(t, col.Characters, 1)
	assert.Equal(t, oldID, col.Characters[0].ID)

	_, ok := e.AcknowledgeUnlock()
	assert.True(t, ok)

	st = e.State()
	assert.False(t, st.UnlockPending)
	assert.True(t, st.Character.HasSelected)

	_, ok = e.AcknowledgeUnlock()
	assert.False(t, ok, "second acknowledge is a no-op")
}

func TestTickPenalizesOverdueTasksOnce(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)
	e := testEngine(t, storage.NewMemoryStore(), clock)

	due := start.Add(time.Hour)
	a, err := e.AddTask("pay rent", 20, &due)
	require.NoError(t, err)
	_, err = e.AddTask("call dentist", 10, &due)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	lost := e.Tick(clock.Now())
	assert.Equal(t, 2, lost)
	assert.Equal(t, 3, e.State().HP)

	m, ok := e.Notification()
	require.True(t, ok)
	assert.Equal(t, notify.HPLoss{Amount: 2}, m)

	// Second pass changes nothing.
	assert.Equal(t, 0, e.Tick(clock.Now()))
	assert.Equal(t, 3, e.State().HP)

	// Extension clears the marker, overdue again costs again.
	newDue := clock.Now().Add(time.Hour)
	_, err = e.ExtendDeadline(a.ID, newDue)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, e.Tick(clock.Now()))
	assert.Equal(t, 2, e.State().HP)
}

func TestDeleteTaskReleasesPenaltyMarker(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)
	e := testEngine(t, storage.NewMemoryStore(), clock)

	due := start.Add(time.Minute)
	tk, err := e.AddTask("doomed", 20, &due)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	require.Equal(t, 1, e.Tick(clock.Now()))

	e.DeleteTask(tk.ID)
	assert.Empty(t, e.Tasks())
	assert.Equal(t, 4, e.State().HP)
}

func TestSuggestPointFallsBackOnError(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.Default().Game
	e, err := NewEngine(EngineOptions{
		Config:    cfg,
		Storage:   storage.NewMemoryStore(),
		Clock:     clock,
		Suggester: suggest.Static{Err: errors.New("api down")},
	})
	require.NoError(t, err)

	assert.Equal(t, cfg.DefaultPoint, e.SuggestPoint(context.Background(), "mop floor"))
}

func TestSuggestPointUsesSuggester(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e, err := NewEngine(EngineOptions{
		Config:    config.Default().Game,
		Storage:   storage.NewMemoryStore(),
		Clock:     clock,
		Suggester: suggest.Static{Point: 45},
	})
	require.NoError(t, err)

	assert.Equal(t, 45, e.SuggestPoint(context.Background(), "mop floor"))
}

func TestResetCharacterPicksFresh(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e := testEngine(t, storage.NewMemoryStore(), clock)

	id := e.ResetCharacter()
	assert.GreaterOrEqual(t, id, 1)
	assert.LessOrEqual(t, id, 15)
	assert.True(t, e.State().Character.HasSelected)
}

func TestEngineStateSurvivesRestart(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)
	store := storage.NewMemoryStore()
	e := testEngine(t, store, clock)

	tk, err := e.AddTask("write novel", 100, nil)
	require.NoError(t, err)
	_, err = e.ToggleTask(tk.ID)
	require.NoError(t, err)

	due := start.Add(time.Minute)
	_, err = e.AddTask("late thing", 10, &due)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.Equal(t, 1, e.Tick(clock.Now()))

	restarted := testEngine(t, store, clock)
	st := restarted.State()
	assert.Equal(t, 100, st.XP)
	assert.Equal(t, 2, st.Level)
	assert.Equal(t, 4, st.HP)
	assert.Len(t, st.Tasks, 2)

	// The overdue task is not penalized a second time.
	assert.Equal(t, 0, restarted.Tick(clock.Now()))
}

func TestEngineRecordsTelemetry(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	rec := telemetry.NewMemoryRecorder()
	e, err := NewEngine(EngineOptions{
		Config:  config.Default().Game,
		Storage: storage.NewMemoryStore(),
		Clock:   clock,
		Events:  rec,
	})
	require.NoError(t, err)

	tk, err := e.AddTask("laundry", 30, nil)
	require.NoError(t, err)
	_, err = e.ToggleTask(tk.ID)
	require.NoError(t, err)

	events, err := rec.Events(time.Time{}, []telemetry.EventType{telemetry.EventTaskCompleted})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEngineRejectsInvalidPoint(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e := testEngine(t, storage.NewMemoryStore(), clock)

	_, err := e.AddTask("bad points", 17, nil)
	var verr task.ValidationError
	assert.ErrorAs(t, err, &verr)
}
