package core

import "github.com/vovakirdan/wireirc/internal/slotmap"

// UserID identifies a connected user for as long as its actor lives.
type UserID struct {
	key slotmap.Key
}

func (id UserID) String() string {
	return "user:" + id.key.String()
}

// IsZero reports whether id was never assigned.
func (id UserID) IsZero() bool {
	return id.key.IsZero()
}

// RoomID identifies a room for as long as its actor lives.
type RoomID struct {
	key slotmap.Key
}

func (id RoomID) String() string {
	return "room:" + id.key.String()
}

// IsZero reports whether id was never assigned.
func (id RoomID) IsZero() bool {
	return id.key.IsZero()
}
