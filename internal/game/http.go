package game

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"todoquest/internal/task"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func writeTaskErr(w http.ResponseWriter, err error) {
	var verr task.ValidationError
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeErr(w, 404, "not found")
	case errors.As(err, &verr):
		writeErr(w, 400, err.Error())
	default:
		writeErr(w, 500, err.Error())
	}
}

type taskUpsert struct {
	Title string  `json:"title"`
	Point int     `json:"point"`
	Due   *string `json:"due"`
}

func parseDue(due *string) (*time.Time, error) {
	if due == nil || strings.TrimSpace(*due) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *due)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// /api/tasks  (collection)
func (h *Handler) TasksRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, 200, h.engine.Tasks())
		return

	case http.MethodPost:
		var in taskUpsert
		if err := decodeJSON(r, &in); err != nil {
			writeErr(w, 400, "bad json")
			return
		}
		due, err := parseDue(in.Due)
		if err != nil {
			writeErr(w, 400, "due must be RFC 3339")
			return
		}
		t, err := h.engine.AddTask(in.Title, in.Point, due)
		if err != nil {
			writeTaskErr(w, err)
			return
		}
		writeJSON(w, 201, t)
		return

	default:
		writeErr(w, 405, "method not allowed")
		return
	}
}

// /api/tasks/{id} and subresources
func (h *Handler) TasksSub(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	tail = strings.Trim(tail, "/")
	if tail == "" {
		writeErr(w, 404, "not found")
		return
	}

	parts := strings.Split(tail, "/")
	id := parts[0]

	// /api/tasks/overdue
	if id == "overdue" && len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, 405, "method not allowed")
			return
		}
		writeJSON(w, 200, h.engine.OverdueTasks())
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			t, ok := h.engine.GetTask(id)
			if !ok {
				writeErr(w, 404, "not found")
				return
			}
			writeJSON(w, 200, t)
			return

		case http.MethodPatch:
			h.patchTask(w, r, id)
			return

		case http.MethodDelete:
			h.engine.DeleteTask(id)
			w.WriteHeader(204)
			return

		default:
			writeErr(w, 405, "method not allowed")
			return
		}
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "toggle":
			if r.Method != http.MethodPost {
				writeErr(w, 405, "method not allowed")
				return
			}
			t, err := h.engine.ToggleTask(id)
			if err != nil {
				writeTaskErr(w, err)
				return
			}
			writeJSON(w, 200, t)
			return

		case "extend":
			if r.Method != http.MethodPost {
				writeErr(w, 405, "method not allowed")
				return
			}
			var in struct {
				Due string `json:"due"`
			}
			if err := decodeJSON(r, &in); err != nil {
				writeErr(w, 400, "bad json")
				return
			}
			due, err := time.Parse(time.RFC3339, in.Due)
			if err != nil {
				writeErr(w, 400, "due must be RFC 3339")
				return
			}
			t, err := h.engine.ExtendDeadline(id, due)
			if err != nil {
				writeTaskErr(w, err)
				return
			}
			writeJSON(w, 200, t)
			return

		case "calendar.ics":
			if r.Method != http.MethodGet {
				writeErr(w, 405, "method not allowed")
				return
			}
			t, ok := h.engine.GetTask(id)
			if !ok {
				writeErr(w, 404, "not found")
				return
			}
			ics, err := task.BuildTaskCalendarICS(t, time.Now())
			if err != nil {
				writeErr(w, 400, err.Error())
				return
			}
			w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="task.ics"`)
			w.WriteHeader(200)
			_, _ = w.Write([]byte(ics))
			return
		}
	}

	writeErr(w, 404, "not found")
}

type taskPatch struct {
	Title *string `json:"title"`
	Point *int    `json:"point"`
	Due   *string `json:"due"`
}

func (h *Handler) patchTask(w http.ResponseWriter, r *http.Request, id string) {
	var p taskPatch
	if err := decodeJSON(r, &p); err != nil {
		writeErr(w, 400, "bad json")
		return
	}

	cur, ok := h.engine.GetTask(id)
	if !ok {
		writeErr(w, 404, "not found")
		return
	}

	title := cur.Title
	if p.Title != nil {
		title = *p.Title
	}
	point := cur.Point
	if p.Point != nil {
		point = *p.Point
	}
	due := cur.Due
	if p.Due != nil {
		parsed, err := parseDue(p.Due)
		if err != nil {
			writeErr(w, 400, "due must be RFC 3339")
			return
		}
		due = parsed
	}

	t, err := h.engine.EditTask(id, title, point, due)
	if err != nil {
		writeTaskErr(w, err)
		return
	}
	writeJSON(w, 200, t)
}

// GET /api/state
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, 405, "method not allowed")
		return
	}
	writeJSON(w, 200, h.engine.State())
}

// /api/notifications: GET shows the current message, POST dismisses it.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m, ok := h.engine.Notification()
		if !ok {
			writeJSON(w, 200, map[string]any{"message": nil})
			return
		}
		writeJSON(w, 200, map[string]any{
			"kind":    m.Kind(),
			"message": m,
		})
		return

	case http.MethodPost:
		h.engine.AdvanceNotification()
		writeJSON(w, 200, map[string]any{"ok": true})
		return

	default:
		writeErr(w, 405, "method not allowed")
		return
	}
}

// GET /api/collection
func (h *Handler) Collection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, 405, "method not allowed")
		return
	}
	writeJSON(w, 200, h.engine.Collection())
}

// /api/character/reset and /api/character/acknowledge
func (h *Handler) CharacterSub(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, 405, "method not allowed")
		return
	}

	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/character/"), "/")
	switch tail {
	case "reset":
		id := h.engine.ResetCharacter()
		writeJSON(w, 200, map[string]any{"ok": true, "characterId": id})
		return

	case "acknowledge":
		id, ok := h.engine.AcknowledgeUnlock()
		if !ok {
			writeErr(w, 409, "no unlock pending")
			return
		}
		writeJSON(w, 200, map[string]any{"ok": true, "characterId": id})
		return
	}

	writeErr(w, 404, "not found")
}

// POST /api/suggest
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, 405, "method not allowed")
		return
	}
	var in struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, 400, "bad json")
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeErr(w, 400, "title required")
		return
	}
	point := h.engine.SuggestPoint(r.Context(), in.Title)
	writeJSON(w, 200, map[string]any{"point": point})
}

// GET /api/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, 405, "method not allowed")
		return
	}
	since := time.Now().AddDate(0, 0, -30)
	if q := strings.TrimSpace(r.URL.Query().Get("since")); q != "" {
		parsed, err := time.Parse("2006-01-02", q)
		if err != nil {
			writeErr(w, 400, "since must be YYYY-MM-DD")
			return
		}
		since = parsed
	}
	colStats, evStats, err := h.engine.Stats(since)
	if err != nil {
		writeErr(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{
		"collection": colStats,
		"events":     evStats,
	})
}
