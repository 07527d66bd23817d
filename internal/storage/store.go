package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Jukebox/internal/core"
	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/rs/zerolog/log"
)

// Store implements the room operations on top of a Backend. Every mutation
// of queue or playback state runs inside one Backend.Mutate call, so
// concurrent handlers never lose each other's writes.
type Store struct {
	backend Backend
	now     func() time.Time

	mu      sync.RWMutex
	aliases map[string]string // normalised id -> legacy exact-case key
}

func New(b Backend) *Store {
	return &Store{backend: b, now: time.Now, aliases: make(map[string]string)}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Close() error { return s.backend.Close() }

// keys returns the normalised key and the exact-case key of a record written
// before ids were lowercased, if one is known. A known alias wins over the
// caller's spelling, so "oldroom" and "OLDROOM" both reach "OldRoom".
func (s *Store) keys(id string) (string, string) {
	exact := strings.TrimSpace(id)
	norm := domain.NormalizeRoomID(id)
	s.mu.RLock()
	alias, ok := s.aliases[norm]
	s.mu.RUnlock()
	switch {
	case ok:
		return norm, alias
	case exact != norm:
		return norm, exact
	default:
		return norm, ""
	}
}

// remember indexes the legacy records among rooms.
func (s *Store) remember(rooms []*domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rooms {
		if norm := domain.NormalizeRoomID(r.ID); norm != r.ID {
			s.aliases[norm] = r.ID
		}
	}
}

func (s *Store) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.aliases, domain.NormalizeRoomID(id))
}

func (s *Store) FindByRoomID(ctx context.Context, id string) (*domain.Room, error) {
	norm, legacy := s.keys(id)
	if norm == "" {
		return nil, domain.ErrRoomNotFound
	}
	r, err := s.backend.Get(ctx, norm)
	if errors.Is(err, domain.ErrRoomNotFound) && legacy != "" {
		r, err = s.backend.Get(ctx, legacy)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Update runs fn atomically against the room, stamping UpdatedAt.
func (s *Store) Update(ctx context.Context, id string, fn func(*domain.Room) error) (*domain.Room, error) {
	wrapped := func(r *domain.Room) error {
		if err := fn(r); err != nil {
			return err
		}
		r.UpdatedAt = s.now()
		r.Normalize()
		return nil
	}
	norm, legacy := s.keys(id)
	if norm == "" {
		return nil, domain.ErrRoomNotFound
	}
	r, err := s.backend.Mutate(ctx, norm, wrapped)
	if errors.Is(err, domain.ErrRoomNotFound) && legacy != "" {
		r, err = s.backend.Mutate(ctx, legacy, wrapped)
	}
	return r, err
}

func (s *Store) Create(ctx context.Context, cfg domain.RoomConfig) (*domain.Room, error) {
	r := domain.NewRoom(cfg, s.now())
	if err := domain.ValidateRoomID(r.ID); err != nil {
		return nil, err
	}
	// a legacy mixed-case record answers to the same normalised id
	if _, err := s.FindByRoomID(ctx, cfg.ID); err == nil {
		return nil, domain.ErrDuplicateRoomID
	} else if !errors.Is(err, domain.ErrRoomNotFound) {
		return nil, err
	}
	if err := s.backend.Insert(ctx, r); err != nil {
		return nil, err
	}
	log.Info().Str("module", "storage").Str("room", r.ID).Str("creator", r.CreatorID).Msg("room created")
	return r, nil
}

// FindOrCreate returns the room with id, creating it from defaults when it
// does not exist yet. created reports which happened.
func (s *Store) FindOrCreate(ctx context.Context, id string, defaults domain.RoomConfig) (*domain.Room, bool, error) {
	r, err := s.FindByRoomID(ctx, id)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, domain.ErrRoomNotFound) {
		return nil, false, err
	}
	defaults.ID = id
	r, err = s.Create(ctx, defaults)
	if errors.Is(err, domain.ErrDuplicateRoomID) {
		// lost a creation race; the winner's record is authoritative
		r, err = s.FindByRoomID(ctx, id)
		return r, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// List returns every room. Legacy ids seen here become reachable by their
// normalised form.
func (s *Store) List(ctx context.Context) ([]*domain.Room, error) {
	rooms, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	s.remember(rooms)
	return rooms, nil
}

func (s *Store) Delete(ctx context.Context, id string, guards ...core.Guard) error {
	r, err := s.FindByRoomID(ctx, id)
	if err != nil {
		return err
	}
	if err := core.Check(r, guards...); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, r.ID); err != nil {
		return err
	}
	s.forget(r.ID)
	log.Info().Str("module", "storage").Str("room", r.ID).Msg("room deleted")
	return nil
}

// UpsertStateDelta applies a partial update. Disjoint fields of concurrent
// deltas never clobber each other; the same field is last-write-wins.
func (s *Store) UpsertStateDelta(ctx context.Context, id string, d domain.StateDelta, guards ...core.Guard) (*domain.Room, error) {
	return s.Update(ctx, id, func(r *domain.Room) error {
		if err := core.Check(r, guards...); err != nil {
			return err
		}
		d.Apply(r)
		return nil
	})
}

// AppendToQueue enqueues t; with autoPlay an Idle room starts it at once.
func (s *Store) AppendToQueue(ctx context.Context, id string, t domain.Track, autoPlay bool, guards ...core.Guard) (*domain.Room, bool, error) {
	var started bool
	r, err := s.Update(ctx, id, func(r *domain.Room) error {
		if err := core.Check(r, guards...); err != nil {
			return err
		}
		var err error
		started, err = core.EnqueueTrack(r, t, autoPlay)
		return err
	})
	return r, started, err
}

// PopQueueHead promotes the queue head to the current song in one step, or
// leaves the room Idle when the queue is empty.
func (s *Store) PopQueueHead(ctx context.Context, id string, guards ...core.Guard) (*domain.Room, error) {
	return s.Update(ctx, id, func(r *domain.Room) error {
		if err := core.Check(r, guards...); err != nil {
			return err
		}
		r.Advance()
		return nil
	})
}

func (s *Store) RemoveFromQueue(ctx context.Context, id string, match func(domain.Track) bool, guards ...core.Guard) (*domain.Room, int, error) {
	var removed int
	r, err := s.Update(ctx, id, func(r *domain.Room) error {
		if err := core.Check(r, guards...); err != nil {
			return err
		}
		removed = r.RemoveFromQueue(match)
		return nil
	})
	return r, removed, err
}

// ReplaceQueue installs order only if it is a permutation of the stored
// queue.
func (s *Store) ReplaceQueue(ctx context.Context, id string, order []domain.Track, guards ...core.Guard) (*domain.Room, error) {
	return s.Update(ctx, id, func(r *domain.Room) error {
		if err := core.Check(r, guards...); err != nil {
			return err
		}
		return core.Reorder(r, order)
	})
}

func (s *Store) AppendSongRequest(ctx context.Context, id string, req domain.SongRequest, guards ...core.Guard) (*domain.Room, error) {
	return s.Update(ctx, id, func(r *domain.Room) error {
		if err := core.Check(r, guards...); err != nil {
			return err
		}
		return core.AdmitRequest(r, req)
	})
}

// SetSongRequestStatus resolves a pending request. Accepting also appends
// the track to the queue in the same write.
func (s *Store) SetSongRequestStatus(ctx context.Context, id, requestID string, status domain.RequestStatus, guards ...core.Guard) (*domain.Room, domain.SongRequest, error) {
	var req domain.SongRequest
	r, err := s.Update(ctx, id, func(r *domain.Room) error {
		if err := core.Check(r, guards...); err != nil {
			return err
		}
		var err error
		req, err = core.ResolveRequest(r, requestID, status)
		return err
	})
	return r, req, err
}

// ResetPlayback marks every room as not playing. Run at startup, when no
// room has a live listener.
func (s *Store) ResetPlayback(ctx context.Context) ([]*domain.Room, error) {
	rooms, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	stopped := false
	out := make([]*domain.Room, 0, len(rooms))
	for _, r := range rooms {
		if !r.IsPlaying {
			out = append(out, r)
			continue
		}
		updated, err := s.UpsertStateDelta(ctx, r.ID, domain.StateDelta{IsPlaying: &stopped})
		if err != nil {
			return nil, fmt.Errorf("reset room %s: %w", r.ID, err)
		}
		out = append(out, updated)
	}
	log.Info().Str("module", "storage").Int("rooms", len(out)).Msg("playback reset")
	return out, nil
}
