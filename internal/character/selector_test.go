package character

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoquest/internal/storage"
)

func newSelectorForTest(st storage.Store, seed int64) *Selector {
	return NewSelector(SelectorOptions{
		Pool:    15,
		Cycle:   5,
		Rand:    rand.New(rand.NewSource(seed)),
		Storage: st,
	})
}

func TestObserve_FirstEverPicksFromPool(t *testing.T) {
	s := newSelectorForTest(storage.NewMemoryStore(), 1)

	picked, id := s.Observe(1)
	require.True(t, picked)
	assert.GreaterOrEqual(t, id, 1)
	assert.LessOrEqual(t, id, 15)

	sel, has := s.Selected()
	assert.Equal(t, id, sel)
	assert.True(t, has)
}

func TestObserve_PicksAtCycleStartLevelsOnly(t *testing.T) {
	s := newSelectorForTest(storage.NewMemoryStore(), 2)
	_, _ = s.Observe(5) // first pick, whatever the level

	picked, _ := s.Observe(6)
	assert.True(t, picked, "level 6 starts a new cycle")

	picked, _ = s.Observe(7)
	assert.False(t, picked, "level 7 is mid-cycle")

	picked, _ = s.Observe(10)
	assert.False(t, picked)

	picked, _ = s.Observe(11)
	assert.True(t, picked)
}

func TestObserve_NoPickWithoutLevelIncrease(t *testing.T) {
	s := newSelectorForTest(storage.NewMemoryStore(), 3)
	_, _ = s.Observe(6)

	// Same level observed again: no pick even though 6 is a pick level.
	picked, _ := s.Observe(6)
	assert.False(t, picked)

	// Level decreased (task un-toggled) then re-reached: counts as a rise.
	picked, _ = s.Observe(5)
	assert.False(t, picked)
	picked, _ = s.Observe(6)
	assert.True(t, picked)
}

func TestNote_SuppressesPickUntilForced(t *testing.T) {
	s := newSelectorForTest(storage.NewMemoryStore(), 4)
	_, first := s.Observe(5)

	// Unlock popup pending: the orchestrator records the level only.
	s.Note(6)
	picked, _ := s.Observe(6)
	assert.False(t, picked, "level already observed via Note")

	// Popup acknowledged: forced hand-off pick.
	id := s.Pick()
	assert.GreaterOrEqual(t, id, 1)
	assert.LessOrEqual(t, id, 15)
	_ = first
}

func TestSelection_PersistsAcrossRestart(t *testing.T) {
	st := storage.NewMemoryStore()
	s1 := newSelectorForTest(st, 5)
	_, id := s1.Observe(1)

	s2 := newSelectorForTest(st, 99)
	sel, has := s2.Selected()
	assert.True(t, has)
	assert.Equal(t, id, sel)

	// Restarting at the same level must not re-pick.
	picked, _ := s2.Observe(1)
	assert.False(t, picked)
}

func TestVisual_StageMapping(t *testing.T) {
	s := newSelectorForTest(storage.NewMemoryStore(), 6)

	assert.Equal(t, DefaultVisual, s.Visual(1), "no selection yet")

	_, id := s.Observe(1)
	tests := []struct {
		level int
		stage int
	}{
		{1, 1}, {2, 2}, {5, 5}, {6, 1}, {7, 2}, {10, 5}, {11, 1},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.stage, s.Stage(tc.level), "level %d", tc.level)
	}
	assert.Contains(t, s.Visual(7), "level2.gif")
	assert.Contains(t, s.Visual(7), "character")
	_ = id
}

func TestReset_ClearsStateAndStorage(t *testing.T) {
	st := storage.NewMemoryStore()
	s := newSelectorForTest(st, 7)
	_, _ = s.Observe(1)

	s.Reset()
	_, has := s.Selected()
	assert.False(t, has)
	assert.Equal(t, DefaultVisual, s.Visual(3))

	_, ok, err := st.Get(storage.KeyCharacter)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHydrate_MalformedRecordsIgnored(t *testing.T) {
	st := storage.NewMemoryStore()
	require.NoError(t, st.Set(storage.KeyCharacter, []byte("oops")))
	require.NoError(t, st.Set(storage.KeyHasSelected, []byte("oops")))

	s := newSelectorForTest(st, 8)
	_, has := s.Selected()
	assert.False(t, has)
}

func TestFinalStageVisual(t *testing.T) {
	assert.Equal(t, "/character3/level5.gif", FinalStageVisual(3, 5))
}
