package custody

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is what was done to a record.
type Action string

const (
	ActionCreated  Action = "created"
	ActionViewed   Action = "viewed"
	ActionExported Action = "exported"
	ActionSynced   Action = "synced"
	ActionVerified Action = "verified"
)

// Actions lists every known action in declaration order.
func Actions() []Action {
	return []Action{ActionCreated, ActionViewed, ActionExported, ActionSynced, ActionVerified}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionViewed, ActionExported, ActionSynced, ActionVerified:
		return true
	}
	return false
}

// ParseAction converts s to an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// Event is an immutable ledger entry.
type Event struct {
	ID               uuid.UUID `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Action           Action    `json:"action"`
	UserIdentifier   string    `json:"userIdentifier"`
	DeviceIdentifier string    `json:"deviceIdentifier"`
}

// Chain is an ordered custody history, oldest first.
type Chain []Event

// Len returns the number of events.
func (c Chain) Len() int { return len(c) }

// Last returns the most recent event.
func (c Chain) Last() (Event, bool) {
	if len(c) == 0 {
		return Event{}, false
	}
	return c[len(c)-1], true
}

// Clone returns an independent copy, so later appends to either chain can
// never be observed through the other.
func (c Chain) Clone() Chain {
	if c == nil {
		return nil
	}
	out := make(Chain, len(c))
	copy(out, c)
	return out
}

// Contains reports whether any event carries action a.
func (c Chain) Contains(a Action) bool {
	for _, e := range c {
		if e.Action == a {
			return true
		}
	}
	return false
}

// Count returns how many events carry action a.
func (c Chain) Count(a Action) int {
	n := 0
	for _, e := range c {
		if e.Action == a {
			n++
		}
	}
	return n
}

// State returns the ledger state implied by the last event.
func (c Chain) State() State {
	last, ok := c.Last()
	if !ok {
		return StateEmpty
	}
	return stateFor(last.Action)
}

// HasPrefix reports whether prefix is an unmodified leading slice of c.
func (c Chain) HasPrefix(prefix Chain) bool {
	if len(prefix) > len(c) {
		return false
	}
	for i := range prefix {
		if !sameEvent(c[i], prefix[i]) {
			return false
		}
	}
	return true
}

func sameEvent(a, b Event) bool {
	return a.ID == b.ID &&
		a.Timestamp.Equal(b.Timestamp) &&
		a.Action == b.Action &&
		a.UserIdentifier == b.UserIdentifier &&
		a.DeviceIdentifier == b.DeviceIdentifier
}
