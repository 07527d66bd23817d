package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Jukebox/internal/core"
	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManagerImpl is the live session registry. Sessions are created lazily
// and never destroyed; an empty session is harmless.
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[string]core.RoomSession
}

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{rooms: make(map[string]core.RoomSession)}
}

func (f *RoomManagerImpl) GetOrCreate(roomID string) core.RoomSession {
	roomID = domain.NormalizeRoomID(roomID)
	f.mu.RLock()
	room, ok := f.rooms[roomID]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[roomID]; ok {
		return room
	}
	room = core.NewRoomSession(roomID)
	f.rooms[roomID] = room
	return room
}

func (f *RoomManagerImpl) Get(roomID string) (core.RoomSession, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[domain.NormalizeRoomID(roomID)]
	return room, ok
}

// Load creates an empty session for every durable room so membership
// queries never miss a known room.
func (f *RoomManagerImpl) Load(rooms []*domain.Room) {
	for _, r := range rooms {
		f.GetOrCreate(r.ID)
	}
	log.Info().Str("module", "app.rooms").Int("rooms", len(rooms)).Msg("sessions loaded")
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{RoomID: id, MemberCount: r.MemberCount()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

func (f *RoomManagerImpl) ListenerCount(roomID string) int {
	if r, ok := f.Get(roomID); ok {
		return r.MemberCount()
	}
	return 0
}

var _ core.SessionRegistry = (*RoomManagerImpl)(nil)
