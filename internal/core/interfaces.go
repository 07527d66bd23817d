package core

import "github.com/dkeye/Jukebox/internal/domain"

// SessionRegistry is the live session registry: one RoomSession per room id,
// created lazily and never persisted.
type SessionRegistry interface {
	GetOrCreate(roomID string) RoomSession
	Get(roomID string) (RoomSession, bool)
	// Load eagerly creates an empty session for every durable room.
	Load(rooms []*domain.Room)
	List() []RoomInfo
	ListenerCount(roomID string) int
}
