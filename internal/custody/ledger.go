package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger appends custody events stamped by its clock and attributed by its
// identity resolver. A Ledger holds no chain state; chains are values.
type Ledger struct {
	clock    Clock
	identity IdentityResolver
	newID    func() uuid.UUID
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(f func() uuid.UUID) Option {
	return func(l *Ledger) { l.newID = f }
}

// NewLedger creates a ledger that attributes events via identity.
func NewLedger(identity IdentityResolver, opts ...Option) *Ledger {
	l := &Ledger{
		clock:    SystemClock{},
		identity: identity,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the ledger clock's current time, normalized.
func (l *Ledger) Now() time.Time {
	return Timestamp(l.clock.Now())
}

// Resolve returns the current actor identity.
func (l *Ledger) Resolve(ctx context.Context) (Identity, error) {
	if l.identity == nil {
		return Identity{}, ErrIdentityUnavailable
	}
	id, err := l.identity.Resolve(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	id = id.Normalize()
	if !id.Complete() {
		return Identity{}, ErrIdentityUnavailable
	}
	return id, nil
}

// Genesis starts a new chain with a single "created" event.
func (l *Ledger) Genesis(ctx context.Context) (Chain, error) {
	id, err := l.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return l.AppendAs(nil, ActionCreated, id)
}

// Append resolves the current actor and appends action to chain.
func (l *Ledger) Append(ctx context.Context, chain Chain, action Action) (Chain, error) {
	id, err := l.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return l.AppendAs(chain, action, id)
}

// AppendAs appends action performed by id to chain and returns the new chain.
// The event timestamp is max(now, last event timestamp). The input chain is
// never modified.
func (l *Ledger) AppendAs(chain Chain, action Action, id Identity) (Chain, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	id = id.Normalize()
	if !id.Complete() {
		return nil, ErrIdentityUnavailable
	}
	if len(chain) == 0 && action != ActionCreated {
		return nil, ErrEmptyChain
	}
	if !CanTransition(chain.State(), action) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, chain.State(), action)
	}

	ts := l.Now()
	if last, ok := chain.Last(); ok && ts.Before(last.Timestamp) {
		ts = last.Timestamp
	}

	out := make(Chain, len(chain), len(chain)+1)
	copy(out, chain)
	out = append(out, Event{
		ID:               l.newID(),
		Timestamp:        ts,
		Action:           action,
		UserIdentifier:   id.User,
		DeviceIdentifier: id.Device,
	})
	return out, nil
}

// Validate checks the chain invariants: a single leading "created" event,
// known actions only, and non-decreasing timestamps.
func Validate(chain Chain) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}
	if chain[0].Action != ActionCreated {
		return fmt.Errorf("%w: first event is %q", ErrEmptyChain, chain[0].Action)
	}
	for i, e := range chain {
		if !e.Action.Valid() {
			return fmt.Errorf("%w: event %d: %q", ErrUnknownAction, i, e.Action)
		}
		if i == 0 {
			continue
		}
		if e.Action == ActionCreated {
			return fmt.Errorf("%w: event %d repeats created", ErrInvalidTransition, i)
		}
		if e.Timestamp.Before(chain[i-1].Timestamp) {
			return fmt.Errorf("%w: event %d at %s precedes %s",
				ErrOutOfOrder, i, e.Timestamp.Format(time.RFC3339Nano), chain[i-1].Timestamp.Format(time.RFC3339Nano))
		}
	}
	return nil
}
