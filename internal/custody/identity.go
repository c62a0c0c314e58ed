package custody

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Identity names who performed an action and on which device.
type Identity struct {
	User   string
	Device string
}

// Complete reports whether both parts of the identity are present.
func (id Identity) Complete() bool {
	return strings.TrimSpace(id.User) != "" && strings.TrimSpace(id.Device) != ""
}

// Normalize returns the identity with both fields trimmed and NFC normalized,
// so the same person typed on two keyboards compares equal.
func (id Identity) Normalize() Identity {
	return Identity{
		User:   norm.NFC.String(strings.TrimSpace(id.User)),
		Device: norm.NFC.String(strings.TrimSpace(id.Device)),
	}
}

// IdentityResolver resolves the identity of the current actor.
type IdentityResolver interface {
	Resolve(ctx context.Context) (Identity, error)
}

// StaticIdentity resolves to a fixed identity, typically taken from
// configuration.
type StaticIdentity Identity

// Resolve implements IdentityResolver.
func (s StaticIdentity) Resolve(_ context.Context) (Identity, error) {
	id := Identity(s).Normalize()
	if !id.Complete() {
		return Identity{}, fmt.Errorf("%w: user=%q device=%q", ErrIdentityUnavailable, id.User, id.Device)
	}
	return id, nil
}

// ResolverFunc adapts a function to IdentityResolver.
type ResolverFunc func(ctx context.Context) (Identity, error)

// Resolve implements IdentityResolver.
func (f ResolverFunc) Resolve(ctx context.Context) (Identity, error) {
	return f(ctx)
}
