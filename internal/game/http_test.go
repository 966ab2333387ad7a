package game

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoquest/internal/storage"
	"todoquest/internal/suggest"
	"todoquest/internal/task"
)

func testHandler(t *testing.T) (*Handler, *Engine, *FakeClock) {
	t.Helper()
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e := testEngine(t, storage.NewMemoryStore(), clock)
	return NewHandler(e), e, clock
}

func doJSON(t *testing.T, h http.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestTasksRootCreateAndList(t *testing.T) {
	h, _, _ := testHandler(t)

	rec := doJSON(t, h.TasksRoot, http.MethodPost, "/api/tasks", `{"title":"water plants","point":20}`)
	require.Equal(t, 201, rec.Code)

	var created task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "water plants", created.Title)
	assert.Equal(t, 20, created.Point)
	assert.NotEmpty(t, created.ID)

	rec = doJSON(t, h.TasksRoot, http.MethodGet, "/api/tasks", "")
	require.Equal(t, 200, rec.Code)
	var list []task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestTasksRootRejectsBadInput(t *testing.T) {
	h, _, _ := testHandler(t)

	rec := doJSON(t, h.TasksRoot, http.MethodPost, "/api/tasks", `{"title":"","point":20}`)
	assert.Equal(t, 400, rec.Code)

	rec = doJSON(t, h.TasksRoot, http.MethodPost, "/api/tasks", `{"title":"x","point":17}`)
	assert.Equal(t, 400, rec.Code)

	rec = doJSON(t, h.TasksRoot, http.MethodPost, "/api/tasks", `{"title":"x","point":20,"due":"tomorrow"}`)
	assert.Equal(t, 400, rec.Code)

	rec = doJSON(t, h.TasksRoot, http.MethodPost, "/api/tasks", `not json`)
	assert.Equal(t, 400, rec.Code)

	rec = doJSON(t, h.TasksRoot, http.MethodDelete, "/api/tasks", "")
	assert.Equal(t, 405, rec.Code)
}

func TestTasksSubToggleAndDelete(t *testing.T) {
	h, e, _ := testHandler(t)
	tk, err := e.AddTask("laundry", 30, nil)
	require.NoError(t, err)

	rec := doJSON(t, h.TasksSub, http.MethodPost, "/api/tasks/"+tk.ID+"/toggle", "")
	require.Equal(t, 200, rec.Code)
	var toggled task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
	assert.True(t, toggled.Done)

	rec = doJSON(t, h.TasksSub, http.MethodDelete, "/api/tasks/"+tk.ID, "")
	assert.Equal(t, 204, rec.Code)

	rec = doJSON(t, h.TasksSub, http.MethodGet, "/api/tasks/"+tk.ID, "")
	assert.Equal(t, 404, rec.Code)
}

func TestTasksSubToggleUnknownID(t *testing.T) {
	h, _, _ := testHandler(t)
	rec := doJSON(t, h.TasksSub, http.MethodPost, "/api/tasks/nope/toggle", "")
	assert.Equal(t, 404, rec.Code)
}

func TestTasksSubPatch(t *testing.T) {
	h, e, _ := testHandler(t)
	tk, err := e.AddTask("laundry", 30, nil)
	require.NoError(t, err)

	rec := doJSON(t, h.TasksSub, http.MethodPatch, "/api/tasks/"+tk.ID,
		`{"title":"fold laundry","point":45}`)
	require.Equal(t, 200, rec.Code)
	var updated task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "fold laundry", updated.Title)
	assert.Equal(t, 45, updated.Point)
}

func TestTasksSubExtend(t *testing.T) {
	h, e, clock := testHandler(t)
	due := clock.Now().Add(time.Hour)
	tk, err := e.AddTask("pay rent", 20, &due)
	require.NoError(t, err)

	newDue := clock.Now().Add(48 * time.Hour).Format(time.RFC3339)
	rec := doJSON(t, h.TasksSub, http.MethodPost, "/api/tasks/"+tk.ID+"/extend",
		`{"due":"`+newDue+`"}`)
	require.Equal(t, 200, rec.Code)

	var updated task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.NotNil(t, updated.Due)
	assert.Equal(t, newDue, updated.Due.Format(time.RFC3339))
}

func TestTasksSubOverdue(t *testing.T) {
	h, e, clock := testHandler(t)
	due := clock.Now().Add(time.Minute)
	_, err := e.AddTask("late", 10, &due)
	require.NoError(t, err)
	_, err = e.AddTask("no deadline", 10, nil)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	rec := doJSON(t, h.TasksSub, http.MethodGet, "/api/tasks/overdue", "")
	require.Equal(t, 200, rec.Code)
	var list []task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestTasksSubCalendarExport(t *testing.T) {
	h, e, clock := testHandler(t)
	due := clock.Now().Add(time.Hour)
	tk, err := e.AddTask("dentist", 20, &due)
	require.NoError(t, err)

	rec := doJSON(t, h.TasksSub, http.MethodGet, "/api/tasks/"+tk.ID+"/calendar.ics", "")
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "dentist")

	// No deadline, no export.
	plain, err := e.AddTask("whenever", 10, nil)
	require.NoError(t, err)
	rec = doJSON(t, h.TasksSub, http.MethodGet, "/api/tasks/"+plain.ID+"/calendar.ics", "")
	assert.Equal(t, 400, rec.Code)
}

func TestStateEndpoint(t *testing.T) {
	h, e, _ := testHandler(t)
	tk, err := e.AddTask("big one", 100, nil)
	require.NoError(t, err)
	_, err = e.ToggleTask(tk.ID)
	require.NoError(t, err)

	rec := doJSON(t, h.State, http.MethodGet, "/api/state", "")
	require.Equal(t, 200, rec.Code)

	var st State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 100, st.XP)
	assert.Equal(t, 2, st.Level)
	assert.Equal(t, 5, st.HP)
	assert.True(t, st.Character.HasSelected)
}

func TestNotificationsEndpoint(t *testing.T) {
	h, e, _ := testHandler(t)
	tk, err := e.AddTask("laundry", 30, nil)
	require.NoError(t, err)
	_, err = e.ToggleTask(tk.ID)
	require.NoError(t, err)

	rec := doJSON(t, h.Notifications, http.MethodGet, "/api/notifications", "")
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"xpGain"`)

	rec = doJSON(t, h.Notifications, http.MethodPost, "/api/notifications", "")
	require.Equal(t, 200, rec.Code)

	rec = doJSON(t, h.Notifications, http.MethodGet, "/api/notifications", "")
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message":null`)
}

func TestCharacterSubEndpoints(t *testing.T) {
	h, e, _ := testHandler(t)

	rec := doJSON(t, h.CharacterSub, http.MethodPost, "/api/character/acknowledge", "")
	assert.Equal(t, 409, rec.Code, "nothing pending yet")

	rec = doJSON(t, h.CharacterSub, http.MethodPost, "/api/character/reset", "")
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "characterId")

	levelUpTo6(t, e)
	rec = doJSON(t, h.CharacterSub, http.MethodPost, "/api/character/acknowledge", "")
	require.Equal(t, 200, rec.Code)

	rec = doJSON(t, h.CharacterSub, http.MethodGet, "/api/character/reset", "")
	assert.Equal(t, 405, rec.Code)

	rec = doJSON(t, h.CharacterSub, http.MethodPost, "/api/character/unknown", "")
	assert.Equal(t, 404, rec.Code)
}

func TestSuggestEndpoint(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e, err := NewEngine(EngineOptions{
		Storage:   storage.NewMemoryStore(),
		Clock:     clock,
		Suggester: suggest.Static{Point: 45},
	})
	require.NoError(t, err)
	h := NewHandler(e)

	rec := doJSON(t, h.Suggest, http.MethodPost, "/api/suggest", `{"title":"clean garage"}`)
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"point":45`)

	rec = doJSON(t, h.Suggest, http.MethodPost, "/api/suggest", `{"title":"  "}`)
	assert.Equal(t, 400, rec.Code)
}

func TestCollectionAndStatsEndpoints(t *testing.T) {
	h, e, _ := testHandler(t)
	levelUpTo6(t, e)

	rec := doJSON(t, h.Collection, http.MethodGet, "/api/collection", "")
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unlockedCharacters":1`)

	rec = doJSON(t, h.Stats, http.MethodGet, "/api/stats", "")
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"collection"`)

	rec = doJSON(t, h.Stats, http.MethodGet, "/api/stats?since=bogus", "")
	assert.Equal(t, 400, rec.Code)
}
