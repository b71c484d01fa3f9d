// Package store persists rooms by code and sessions by token behind one
// interface with two interchangeable backends. Every successful read re-arms
// the record's TTL, so actively used rooms never expire mid-session and
// abandoned ones self-clean. Reads return independent copies; a caller's
// mutation has no effect until an explicit save.
package store

import (
	"context"

	"github.com/DoyleJ11/cardtable-backend/internal/room"
)

type Store interface {
	GetRoomByCode(ctx context.Context, code string) (*room.Room, bool, error)
	SaveRoom(ctx context.Context, r *room.Room) error
	DeleteRoom(ctx context.Context, code string) error

	GetSession(ctx context.Context, token string) (*room.Session, bool, error)
	SaveSession(ctx context.Context, s *room.Session) error
	DeleteSession(ctx context.Context, token string) error
}

const (
	roomPrefix    = "room:"
	sessionPrefix = "session:"
)
