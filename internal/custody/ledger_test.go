package custody

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClock struct {
	mu    sync.Mutex
	times []time.Time
}

func (c *scriptedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return t
}

var (
	t0      = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	analyst = Identity{User: "analyst", Device: "laptop-7"}
)

func newTestLedger(times ...time.Time) *Ledger {
	return NewLedger(StaticIdentity(analyst), WithClock(&scriptedClock{times: times}))
}

func TestGenesis(t *testing.T) {
	l := newTestLedger(t0)

	chain, err := l.Genesis(context.Background())
	require.NoError(t, err)
	require.Len(t, chain, 1)

	e := chain[0]
	assert.Equal(t, ActionCreated, e.Action)
	assert.Equal(t, t0, e.Timestamp)
	assert.Equal(t, "analyst", e.UserIdentifier)
	assert.Equal(t, "laptop-7", e.DeviceIdentifier)
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, StateCreated, chain.State())
}

// Scenario B: viewed, exported, verified after created.
func TestAppend_Sequence(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t0, t0.Add(time.Second), t0.Add(2*time.Second), t0.Add(3*time.Second))

	chain, err := l.Genesis(ctx)
	require.NoError(t, err)
	for _, a := range []Action{ActionViewed, ActionExported, ActionVerified} {
		chain, err = l.Append(ctx, chain, a)
		require.NoError(t, err)
	}

	require.Len(t, chain, 4)
	assert.Equal(t, ActionCreated, chain[0].Action)
	assert.Equal(t, ActionViewed, chain[1].Action)
	assert.Equal(t, ActionExported, chain[2].Action)
	assert.Equal(t, ActionVerified, chain[3].Action)
	for i := 1; i < len(chain); i++ {
		assert.False(t, chain[i].Timestamp.Before(chain[i-1].Timestamp), "event %d", i)
	}
	assert.NoError(t, Validate(chain))
}

func TestAppend_AbsorbsClockSkew(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t0, t0.Add(-time.Hour))

	chain, err := l.Genesis(ctx)
	require.NoError(t, err)
	chain, err = l.Append(ctx, chain, ActionViewed)
	require.NoError(t, err)

	assert.Equal(t, t0, chain[1].Timestamp)
	assert.NoError(t, Validate(chain))
}

func TestAppend_NeverMutatesInput(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t0, t0.Add(time.Second), t0.Add(2*time.Second))

	base, err := l.Genesis(ctx)
	require.NoError(t, err)
	snapshot := base.Clone()

	a, err := l.Append(ctx, base, ActionViewed)
	require.NoError(t, err)
	b, err := l.Append(ctx, base, ActionSynced)
	require.NoError(t, err)

	assert.Equal(t, snapshot, base)
	assert.Equal(t, ActionViewed, a[1].Action)
	assert.Equal(t, ActionSynced, b[1].Action)
	assert.True(t, a.HasPrefix(base))
	assert.True(t, b.HasPrefix(base))
}

func TestAppend_IdentityUnavailable(t *testing.T) {
	ctx := context.Background()
	chain, err := newTestLedger(t0).Genesis(ctx)
	require.NoError(t, err)

	tests := []struct {
		name     string
		resolver IdentityResolver
	}{
		{"nil resolver", nil},
		{"missing device", StaticIdentity(Identity{User: "analyst"})},
		{"blank user", StaticIdentity(Identity{User: "   ", Device: "d"})},
		{"resolver error", ResolverFunc(func(context.Context) (Identity, error) {
			return Identity{}, errors.New("keychain locked")
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(tt.resolver, WithClock(&scriptedClock{times: []time.Time{t0}}))
			_, err := l.Append(ctx, chain, ActionViewed)
			assert.ErrorIs(t, err, ErrIdentityUnavailable)

			_, err = l.Genesis(ctx)
			assert.ErrorIs(t, err, ErrIdentityUnavailable)
		})
	}
}

func TestAppend_Transitions(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t0)

	_, err := l.Append(ctx, nil, ActionViewed)
	assert.ErrorIs(t, err, ErrEmptyChain)

	chain, err := l.Genesis(ctx)
	require.NoError(t, err)

	_, err = l.Append(ctx, chain, ActionCreated)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = l.Append(ctx, chain, Action("deleted"))
	assert.ErrorIs(t, err, ErrUnknownAction)

	// Any non-created action may follow any other.
	for _, a := range []Action{ActionSynced, ActionSynced, ActionViewed, ActionVerified, ActionExported, ActionViewed} {
		chain, err = l.Append(ctx, chain, a)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, chain.Count(ActionViewed))
	assert.Equal(t, StateViewed, chain.State())
}

func TestAppend_NormalizesIdentity(t *testing.T) {
	ctx := context.Background()
	// "e" followed by a combining acute accent.
	l := NewLedger(StaticIdentity(Identity{User: " Jose\u0301 ", Device: "d1"}),
		WithClock(&scriptedClock{times: []time.Time{t0}}))

	chain, err := l.Genesis(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Jos\u00e9", chain[0].UserIdentifier)
}

func TestValidate(t *testing.T) {
	ev := func(a Action, ts time.Time) Event {
		return Event{ID: uuid.New(), Timestamp: ts, Action: a, UserIdentifier: "u", DeviceIdentifier: "d"}
	}

	tests := []struct {
		name  string
		chain Chain
		want  error
	}{
		{"empty", nil, ErrEmptyChain},
		{"missing genesis", Chain{ev(ActionViewed, t0)}, ErrEmptyChain},
		{"repeated genesis", Chain{ev(ActionCreated, t0), ev(ActionCreated, t0)}, ErrInvalidTransition},
		{"unknown action", Chain{ev(ActionCreated, t0), ev("shredded", t0)}, ErrUnknownAction},
		{"time goes backwards", Chain{ev(ActionCreated, t0), ev(ActionViewed, t0.Add(-time.Nanosecond))}, ErrOutOfOrder},
		{"equal timestamps", Chain{ev(ActionCreated, t0), ev(ActionViewed, t0), ev(ActionSynced, t0)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.chain)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	in := time.Date(2025, 1, 2, 3, 4, 5, 123456789, loc)

	got := Timestamp(in)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 123456000, got.Nanosecond())
	assert.True(t, got.Equal(in.Truncate(time.Microsecond)))
}

func TestChain_HasPrefix(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t0, t0.Add(time.Second))
	chain, err := l.Genesis(ctx)
	require.NoError(t, err)
	longer, err := l.Append(ctx, chain, ActionViewed)
	require.NoError(t, err)

	assert.True(t, longer.HasPrefix(chain))
	assert.True(t, longer.HasPrefix(nil))
	assert.False(t, chain.HasPrefix(longer))

	edited := longer.Clone()
	edited[0].UserIdentifier = "someone else"
	assert.False(t, edited.HasPrefix(chain))
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions() {
		got, err := ParseAction(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
	_, err := ParseAction("deleted")
	assert.ErrorIs(t, err, ErrUnknownAction)
}
