// Package memory is an in-process room backend for tests and dev runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dkeye/Jukebox/internal/domain"
)

type Backend struct {
	mu    sync.Mutex
	rooms map[string]*domain.Room
}

func New() *Backend {
	return &Backend{rooms: make(map[string]*domain.Room)}
}

func (b *Backend) Get(_ context.Context, id string) (*domain.Room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return r.Clone(), nil
}

func (b *Backend) Insert(_ context.Context, r *domain.Room) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rooms[r.ID]; ok {
		return domain.ErrDuplicateRoomID
	}
	b.rooms[r.ID] = r.Clone()
	return nil
}

func (b *Backend) Mutate(_ context.Context, id string, fn func(*domain.Room) error) (*domain.Room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	b.rooms[id] = next
	return next.Clone(), nil
}

func (b *Backend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(b.rooms, id)
	return nil
}

func (b *Backend) List(_ context.Context) ([]*domain.Room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*domain.Room, 0, len(b.rooms))
	for _, r := range b.rooms {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (b *Backend) Close() error { return nil }
