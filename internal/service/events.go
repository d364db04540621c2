package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types pushed to subscribers of a user's stream.
const (
	EventCompletion       = "completion"        // data: engine.Change
	EventXP               = "xp"                // data: engine.XPChange
	EventSnapshot         = "snapshot"          // external change applied
	EventPersistenceError = "persistence_error" // data: PersistenceErrorEvent
	EventPlanReplaced     = "plan_replaced"     // data: PlanReplacedEvent
)

// Event is one message on a user's stream.
type Event struct {
	Type string      `json:"type"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data,omitempty"`
}

// PersistenceErrorEvent describes a write that did not reach the store.
type PersistenceErrorEvent struct {
	Operation string   `json:"operation"`
	Fields    []string `json:"fields"`
	Message   string   `json:"message"`
}

// PlanReplacedEvent is emitted after a new plan was installed.
type PlanReplacedEvent struct {
	PlanID         string `json:"planId"`
	PreviousPlanID string `json:"previousPlanId,omitempty"`
}

// Hub fans events out to per-user subscribers. Slow subscribers lose
// events instead of blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
	log    zerolog.Logger
}

func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[chan Event]struct{}),
		buffer: buffer,
		log:    logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a listener for userID. The returned func unsubscribes
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber of userID without blocking.
func (h *Hub) Publish(userID string, ev Event) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- ev:
		default:
			h.log.Warn().Str("user_id", userID).Str("type", ev.Type).Msg("subscriber too slow, event dropped")
		}
	}
}

// Subscribers returns the number of listeners for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
