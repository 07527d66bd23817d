package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Jukebox/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	roomID  string
	session core.MemberSession
	cancel  context.CancelFunc
	since   time.Time
}

// Registry indexes every open connection by session id and remembers which
// room, if any, it has joined. It backs the all-connections fan-out and
// room eviction.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	byRoom   map[string]map[core.SessionID]struct{}
	log      zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		byRoom:   make(map[string]map[core.SessionID]struct{}),
		log:      log.With().Str("module", "app.registry").Logger(),
	}
}

// BindSignal registers a fresh connection. It is in no room yet.
func (r *Registry) BindSignal(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[sid]; ok {
		r.detachLocked(sid, old)
	}
	r.sessions[sid] = &sessionEntry{session: sess, cancel: cancel, since: time.Now()}
	r.log.Info().Str("sid", string(sid)).Int("connections", len(r.sessions)).Msg("bound signal")
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.session, true
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return
	}
	r.detachLocked(sid, e)
	delete(r.sessions, sid)
	r.log.Info().Str("sid", string(sid)).Dur("connected", time.Since(e.since)).Msg("unbound")
}

// RoomOf reports the room sid has joined.
func (r *Registry) RoomOf(sid core.SessionID) (string, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.roomID == "" {
		return "", nil, false
	}
	return e.roomID, e.session, true
}

// UpdateRoom moves sid into roomID, out of any previous room.
func (r *Registry) UpdateRoom(sid core.SessionID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	r.detachLocked(sid, e)
	e.roomID = roomID
	members, ok := r.byRoom[roomID]
	if !ok {
		members = make(map[core.SessionID]struct{})
		r.byRoom[roomID] = members
	}
	members[sid] = struct{}{}
	r.log.Info().Str("sid", string(sid)).Str("room", roomID).Msg("joined room")
	return true
}

func (r *Registry) RemoveRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok && e.roomID != "" {
		r.log.Info().Str("sid", string(sid)).Str("room", e.roomID).Msg("left room")
		r.detachLocked(sid, e)
	}
}

func (r *Registry) detachLocked(sid core.SessionID, e *sessionEntry) {
	if e.roomID == "" {
		return
	}
	if members, ok := r.byRoom[e.roomID]; ok {
		delete(members, sid)
		if len(members) == 0 {
			delete(r.byRoom, e.roomID)
		}
	}
	e.roomID = ""
}

// InRoom lists the connections attached to roomID.
func (r *Registry) InRoom(roomID string) []core.MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.byRoom[roomID]
	out := make([]core.MemberSession, 0, len(members))
	for sid := range members {
		out = append(out, r.sessions[sid].session)
	}
	return out
}

// All returns every bound connection, in a room or not.
func (r *Registry) All() []core.MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.MemberSession, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.session)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel stops the connection's pumps; the adapter then closes it.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.cancel != nil {
		e.cancel()
	}
	r.log.Info().Str("sid", string(sid)).Msg("canceled")
	return true
}
