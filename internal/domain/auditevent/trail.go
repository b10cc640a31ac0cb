package auditevent

import (
	"github.com/google/uuid"
)

// Trail is the in-process append-only audit log. It is not safe for
// concurrent use on its own; the ledger serialises every access.
type Trail struct {
	events []Event
}

// NewTrail returns a trail preloaded with events, e.g. from a snapshot.
// Sequence numbers of the preloaded events are kept as-is.
func NewTrail(events ...Event) *Trail {
	t := &Trail{}
	if len(events) > 0 {
		t.events = append(make([]Event, 0, len(events)), events...)
	}
	return t
}

// Append assigns the next sequence number and an id, stores the event and
// returns the stored copy.
func (t *Trail) Append(e Event) Event {
	e.Sequence = uint64(len(t.events)) + 1
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	t.events = append(t.events, e)
	return e
}

func (t *Trail) Len() int { return len(t.events) }

// Page returns a copy of at most limit events starting at offset, in append
// order. A non-positive limit returns everything from offset.
func (t *Trail) Page(offset, limit int) []Event {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(t.events) {
		return []Event{}
	}
	end := len(t.events)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]Event, end-offset)
	copy(out, t.events[offset:end])
	return out
}

// All returns a copy of every event.
func (t *Trail) All() []Event {
	return t.Page(0, 0)
}
