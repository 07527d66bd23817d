package core

import "github.com/dkeye/Jukebox/internal/domain"

type SessionID string

// MemberSession binds the live member meta and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	ID() SessionID
	Meta() *domain.LiveMember
	Identity() domain.Identity
	Signal() SignalConnection
	UpdateMeta(displayName, color string) MemberSession
	UpdateIdentity(domain.Identity) MemberSession
}
