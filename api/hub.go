package api

import (
	"errors"
	"sync"

	"boardsync/domain"
)

type errorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func newErrorEvent(err error) errorEvent {
	var (
		perr *domain.PersistenceError
		rerr *domain.RefetchError
	)
	switch {
	case errors.As(err, &rerr):
		return errorEvent{Kind: "refetch", Message: "Could not reload the board. Showing the last known state."}
	case errors.As(err, &perr):
		return errorEvent{Kind: "persistence", Message: "Could not save your change. The board was reloaded."}
	default:
		return errorEvent{Kind: "unknown", Message: err.Error()}
	}
}

// subscriber receives coalesced board signals and buffered error events.
type subscriber struct {
	board  chan struct{}
	errors chan errorEvent
}

// hub fans store changes and coordinator failures out to stream clients.
type hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) subscribe() *subscriber {
	sub := &subscriber{
		board:  make(chan struct{}, 1),
		errors: make(chan errorEvent, 8),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

func (h *hub) notifyBoard() {
	h.mu.Lock()
	for sub := range h.subs {
		select {
		case sub.board <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *hub) notifyError(err error) {
	ev := newErrorEvent(err)
	h.mu.Lock()
	for sub := range h.subs {
		select {
		case sub.errors <- ev:
		default:
		}
	}
	h.mu.Unlock()
}
