package core

import (
	"slices"

	"github.com/dkeye/Jukebox/internal/domain"
)

// Guard is a precondition evaluated against the freshest copy of a room,
// inside the same atomic store section as the mutation it protects.
type Guard func(*domain.Room) error

// IsDJ reports whether id may control playback and the queue of r.
// A nil room or an anonymous identity is always denied.
func IsDJ(r *domain.Room, id domain.Identity) bool {
	if r == nil || id.IsAnonymous() {
		return false
	}
	return id.Matches(r.CreatorID) || slices.ContainsFunc(r.DJPermissions, id.Matches)
}

// IsCreator is strict: DJ rights never confer creator rights.
func IsCreator(r *domain.Room, id domain.Identity) bool {
	if r == nil {
		return false
	}
	return id.Matches(r.CreatorID)
}

func RequireDJ(id domain.Identity, action string) Guard {
	return func(r *domain.Room) error {
		if !IsDJ(r, id) {
			return domain.Forbidden("Only DJs can " + action)
		}
		return nil
	}
}

func RequireCreator(id domain.Identity, action string) Guard {
	return func(r *domain.Room) error {
		if !IsCreator(r, id) {
			return domain.Forbidden("Only the room owner can " + action)
		}
		return nil
	}
}

// RequireCurrentSong rejects transport commands while the room is Idle.
func RequireCurrentSong(r *domain.Room) error {
	if r.State() == domain.Idle {
		return domain.ErrNothingPlaying
	}
	return nil
}

// RequireSong rejects a transition decided while trackID was current once
// another song has taken its place.
func RequireSong(trackID string) Guard {
	return func(r *domain.Room) error {
		if r.CurrentSong == nil || r.CurrentSong.ID != trackID {
			return domain.Conflict("The song already changed")
		}
		return nil
	}
}

// Check runs guards in order and stops at the first failure.
func Check(r *domain.Room, guards ...Guard) error {
	if r == nil {
		return domain.ErrRoomNotFound
	}
	for _, g := range guards {
		if g == nil {
			continue
		}
		if err := g(r); err != nil {
			return err
		}
	}
	return nil
}
