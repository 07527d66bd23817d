package core

import (
	"sort"
	"sync"

	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomSession is a threadsafe in-memory room session.
// It never closes adapter-owned resources.
type roomSession struct {
	roomID    string
	mu        sync.RWMutex
	bySID     map[SessionID]MemberSession
	skipVotes map[SessionID]struct{}
	skipSong  string
}

func NewRoomSession(roomID string) RoomSession {
	return &roomSession{
		roomID:    roomID,
		bySID:     make(map[SessionID]MemberSession),
		skipVotes: make(map[SessionID]struct{}),
	}
}

func (r *roomSession) RoomID() string { return r.roomID }

func (r *roomSession) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomSession) HasMember(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySID[sid]
	return ok
}

func (r *roomSession) HasIdentity(id domain.Identity) bool {
	if id.IsAnonymous() {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ms := range r.bySID {
		if ms.Identity().Matches(id.String()) {
			return true
		}
	}
	return false
}

func (r *roomSession) AddMember(ms MemberSession) {
	sid := ms.ID()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[sid] = ms
	log.Info().Str("module", "core.room").Str("room", r.roomID).Str("sid", string(sid)).Msg("member added")
}

func (r *roomSession) RemoveMember(sid SessionID) []domain.LiveMember {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySID, sid)
	delete(r.skipVotes, sid)
	log.Info().Str("module", "core.room").Str("room", r.roomID).Str("sid", string(sid)).Msg("member removed")
	return r.snapshotLocked()
}

// Broadcast sends to every member except from; an empty from reaches all.
func (r *roomSession) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if from != "" && sid == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", r.roomID).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomSession) MembersSnapshot() []domain.LiveMember {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *roomSession) VoteSkip(sid SessionID, songID string) SkipTally {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; ok {
		if songID != r.skipSong {
			clear(r.skipVotes)
			r.skipSong = songID
		}
		r.skipVotes[sid] = struct{}{}
	}
	return r.tallyLocked()
}

func (r *roomSession) RecountSkip() SkipTally {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tallyLocked()
}

func (r *roomSession) ResetSkipVotes(songID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if songID != "" && songID == r.skipSong {
		return
	}
	clear(r.skipVotes)
	r.skipSong = ""
}

// tallyLocked clears the votes when they pass, so concurrent voters cannot
// both see Passed for the same tally.
func (r *roomSession) tallyLocked() SkipTally {
	t := SkipTally{Votes: len(r.skipVotes), Needed: SkipThreshold(len(r.bySID)), SongID: r.skipSong}
	if t.Votes > 0 && t.Votes >= t.Needed {
		t.Passed = true
		clear(r.skipVotes)
		r.skipSong = ""
	}
	return t
}

func (r *roomSession) snapshotLocked() []domain.LiveMember {
	out := make([]domain.LiveMember, 0, len(r.bySID))
	for _, ms := range r.bySID {
		out = append(out, *ms.Meta())
	}
	// stable order keeps listener lists from flickering on clients
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out
}
