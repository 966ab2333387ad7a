package notify

import (
	"sync"
	"time"
)

type Kind string

const (
	KindXPGain  Kind = "xpGain"
	KindLevelUp Kind = "levelUp"
	KindHPLoss  Kind = "hpLoss"
)

// Message is a tagged variant: each notification kind carries its own
// payload shape.
type Message interface {
	Kind() Kind
}

// XPGain announces the points earned by completing a task.
type XPGain struct {
	Point int `json:"point"`
}

func (XPGain) Kind() Kind { return KindXPGain }

// LevelUp announces a new level and the xp total that reached it.
type LevelUp struct {
	Level int `json:"level"`
	XP    int `json:"xp"`
}

func (LevelUp) Kind() Kind { return KindLevelUp }

// HPLoss aggregates every task that went overdue in one monitor pass.
type HPLoss struct {
	Amount int `json:"amount"`
}

func (HPLoss) Kind() Kind { return KindHPLoss }

// Queue serializes notifications for one-at-a-time display. The current
// message is held for a fixed duration before the queue advances. At most
// one message of a given kind is in flight: a duplicate kind arriving
// while one is queued or displayed is dropped.
type Queue struct {
	mu           sync.Mutex
	current      Message
	currentSince time.Time
	pending      []Message
	hold         time.Duration
}

func NewQueue(hold time.Duration) *Queue {
	if hold <= 0 {
		hold = 3 * time.Second
	}
	return &Queue{hold: hold}
}

// Publish enqueues a message. It returns false when the message was
// dropped by kind-deduplication.
func (q *Queue) Publish(m Message, now time.Time) bool {
	if m == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.advanceLocked(now)

	if q.current != nil && q.current.Kind() == m.Kind() {
		return false
	}
	for _, p := range q.pending {
		if p.Kind() == m.Kind() {
			return false
		}
	}

	if q.current == nil {
		q.current = m
		q.currentSince = now
		return true
	}
	q.pending = append(q.pending, m)
	return true
}

// Current returns the message being displayed, advancing past any whose
// display window has elapsed.
func (q *Queue) Current(now time.Time) (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advanceLocked(now)
	if q.current == nil {
		return nil, false
	}
	return q.current, true
}

// Advance dismisses the current message immediately.
func (q *Queue) Advance(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return
	}
	q.popLocked(now)
}

// Pending reports how many messages wait behind the current one.
func (q *Queue) Pending(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.advanceLocked(now)
	return len(q.pending)
}

func (q *Queue) advanceLocked(now time.Time) {
	for q.current != nil && now.Sub(q.currentSince) >= q.hold {
		q.popLocked(q.currentSince.Add(q.hold))
	}
}

func (q *Queue) popLocked(now time.Time) {
	if len(q.pending) == 0 {
		q.current = nil
		return
	}
	q.current = q.pending[0]
	q.pending = q.pending[1:]
	q.currentSince = now
}
