package types

import "github.com/DoyleJ11/cardtable-backend/internal/room"

// PlayerInfo is the roster entry shared with every client. Session tokens
// never leave the server through this type.
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	Connected bool   `json:"connected"`
	IsHost    bool   `json:"isHost"`
}

// Snapshot is the full recipient-specific view of a room. After the initial
// join/create reply it is the only way the authoritative state reaches a
// client.
type Snapshot struct {
	RoomID       string                   `json:"roomId"`
	RoomCode     string                   `json:"roomCode"`
	StateVersion int                      `json:"stateVersion"`
	GameState    room.GameState           `json:"gameState"`
	Players      []PlayerInfo             `json:"players"`
	Presence     map[string]room.Presence `json:"presence"`
	HostPlayerID string                   `json:"hostPlayerId"`
	You          string                   `json:"you"`
	IsStarted    bool                     `json:"isStarted"`
}

type PresenceUpdate struct {
	RoomCode string                   `json:"roomCode"`
	Presence map[string]room.Presence `json:"presence"`
}
