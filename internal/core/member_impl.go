package core

import (
	"sync"

	"github.com/dkeye/Jukebox/internal/domain"
)

// memberSession implements MemberSession by pairing meta + transport.
type memberSession struct {
	id     SessionID
	signal SignalConnection

	mu       sync.RWMutex
	meta     domain.LiveMember
	identity domain.Identity
}

func NewMemberSession(id SessionID, signal SignalConnection, identity domain.Identity) MemberSession {
	m := &memberSession{id: id, signal: signal, identity: identity}
	m.meta = *domain.NewMember(string(id), "", "", identity)
	return m
}

func (m *memberSession) ID() SessionID            { return m.id }
func (m *memberSession) Signal() SignalConnection { return m.signal }

// Meta returns a copy; callers never mutate a live member in place.
func (m *memberSession) Meta() *domain.LiveMember {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta := m.meta
	return &meta
}

func (m *memberSession) Identity() domain.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

func (m *memberSession) UpdateMeta(displayName, color string) MemberSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if displayName != "" {
		m.meta.DisplayName = displayName
	}
	if color != "" {
		m.meta.Color = color
	}
	return m
}

func (m *memberSession) UpdateIdentity(id domain.Identity) MemberSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = id
	m.meta.Identity = id.String()
	return m
}
