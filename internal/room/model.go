package room

import (
	"encoding/json"
	"time"
)

// GameState is the opaque blob owned by the rules engine. The sync layer only
// ever reads "players" and "currentPlayerIndex" out of it.
type GameState map[string]any

type Room struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	HostPlayerID string    `json:"hostPlayerId"`
	Players      []Player  `json:"players"`
	GameState    GameState `json:"gameState"`
	IsStarted    bool      `json:"isStarted"`
	StateVersion int       `json:"stateVersion"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Player struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Color        string     `json:"color,omitempty"`
	SessionToken string     `json:"sessionToken"`
	// SocketID is empty whenever Connected is false.
	SocketID       string     `json:"socketId,omitempty"`
	Connected      bool       `json:"connected"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty"`
}

// Session is the durable proof of seat ownership. It outlives any single
// connection and is the only credential accepted for rejoin.
type Session struct {
	Token      string    `json:"token"`
	RoomCode   string    `json:"roomCode"`
	PlayerID   string    `json:"playerId"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// Clone deep-copies the room through a JSON round trip so the opaque GameState
// (arbitrarily nested) is copied too. Callers mutate clones, never the stored
// value a rejection hands back.
func (r Room) Clone() Room {
	data, err := json.Marshal(r)
	if err != nil {
		// Rooms are built from JSON-decoded payloads; this cannot fail.
		panic(err)
	}
	var out Room
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

// Player returns a pointer into r.Players, so mutations stick.
func (r *Room) Player(id string) (*Player, bool) {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i], true
		}
	}
	return nil, false
}

func (r *Room) RemovePlayer(id string) bool {
	for i := range r.Players {
		if r.Players[i].ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

// EnsureHost repairs HostPlayerID whenever it no longer resolves to a seat,
// reassigning to the first remaining player. Returns true if it changed.
func (r *Room) EnsureHost() bool {
	if _, ok := r.Player(r.HostPlayerID); ok {
		return false
	}
	if len(r.Players) == 0 {
		return false
	}
	r.HostPlayerID = r.Players[0].ID
	return true
}
