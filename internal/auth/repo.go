package auth

import (
	"encoding/json"
	"sync"
	"time"

	"todoquest/internal/storage"
)

// SessionRepo keeps sessions in memory, mirrored to the byte store under
// a single key so they survive restarts.
type SessionRepo struct {
	mu       sync.Mutex
	sessions map[string]Session // keyed by token hash
	store    storage.Store
}

func NewSessionRepo(store storage.Store) (*SessionRepo, error) {
	r := &SessionRepo{
		sessions: make(map[string]Session),
		store:    store,
	}
	if store != nil {
		if err := r.load(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *SessionRepo) load() error {
	b, ok, err := r.store.Get(storage.KeySessions)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var sessions []Session
	if err := json.Unmarshal(b, &sessions); err != nil {
		// Unreadable session data means everyone logs in again.
		return nil
	}
	for _, s := range sessions {
		r.sessions[s.TokenHash] = s
	}
	return nil
}

func (r *SessionRepo) persistLocked() {
	if r.store == nil {
		return
	}
	sessions := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	b, err := json.Marshal(sessions)
	if err != nil {
		return
	}
	_ = r.store.Set(storage.KeySessions, b)
}

func (r *SessionRepo) Create(s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.TokenHash] = s
	r.persistLocked()
	return nil
}

func (r *SessionRepo) GetByTokenHash(hash string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[hash]
	return s, ok
}

func (r *SessionRepo) Touch(hash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[hash]
	if !ok {
		return nil
	}
	s.LastSeen = now
	r.sessions[hash] = s
	r.persistLocked()
	return nil
}

func (r *SessionRepo) Delete(hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, hash)
	r.persistLocked()
	return nil
}

// PruneExpired drops every session whose expiry is at or before now.
func (r *SessionRepo) PruneExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for hash, s := range r.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(r.sessions, hash)
			n++
		}
	}
	if n > 0 {
		r.persistLocked()
	}
	return n
}
