// Package domain contains the room entities and the small state primitives
// that keep them consistent. No transport or storage logic here.
package domain

import (
	"errors"
	"strings"
)

const (
	MaxIdentityLen    = 64
	MaxDisplayNameLen = 36
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrIdentityTooLong    = errors.New("identity too long")
)

type IdentityKind uint8

const (
	Anonymous IdentityKind = iota
	RegisteredUser
	GuestUser
)

// Identity is the effective identity of an actor: a registered user id or a
// guest id. Both live in one string-keyed space, so comparisons are by value.
type Identity struct {
	kind IdentityKind
	id   string
}

func Registered(id string) Identity {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}
	}
	return Identity{kind: RegisteredUser, id: id}
}

func Guest(id string) Identity {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}
	}
	return Identity{kind: GuestUser, id: id}
}

// Resolve returns the authenticated user id if present, else the guest id,
// else the anonymous identity.
func Resolve(userID, guestID string) Identity {
	if id := Registered(userID); !id.IsAnonymous() {
		return id
	}
	return Guest(guestID)
}

func (i Identity) Kind() IdentityKind { return i.kind }
func (i Identity) String() string     { return i.id }
func (i Identity) IsAnonymous() bool  { return i.kind == Anonymous || i.id == "" }
func (i Identity) IsRegistered() bool { return i.kind == RegisteredUser && i.id != "" }

// Matches compares against a stored identity string. Anonymous never matches.
func (i Identity) Matches(stored string) bool {
	return !i.IsAnonymous() && stored != "" && i.id == stored
}

func (i Identity) Validate() error {
	if len(i.id) > MaxIdentityLen {
		return ErrIdentityTooLong
	}
	return nil
}

// CleanDisplayName trims and bounds a user supplied display name, falling
// back when nothing usable is left.
func CleanDisplayName(name, fallback string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback, nil
	}
	if len(name) > MaxDisplayNameLen {
		return "", ErrDisplayNameTooLong
	}
	return name, nil
}
