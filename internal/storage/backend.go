// Package storage is the durable room store. Store holds the room
// operations and id normalisation; a Backend only has to persist whole room
// documents and run an atomic read-modify-write on one of them.
package storage

import (
	"context"

	"github.com/dkeye/Jukebox/internal/domain"
)

// Backend persists room documents keyed by id. Implementations return
// domain.ErrRoomNotFound and domain.ErrDuplicateRoomID (possibly wrapped).
type Backend interface {
	Get(ctx context.Context, id string) (*domain.Room, error)
	// Insert fails with domain.ErrDuplicateRoomID when id is taken.
	Insert(ctx context.Context, r *domain.Room) error
	// Mutate applies fn to the current document atomically. Nothing is
	// written when fn returns an error; that error is returned as is.
	Mutate(ctx context.Context, id string, fn func(*domain.Room) error) (*domain.Room, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Room, error)
	Close() error
}
