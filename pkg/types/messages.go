package types

import (
	"encoding/json"

	"github.com/DoyleJ11/cardtable-backend/internal/room"
)

// Client -> Server events (v2 protocol).
const (
	EvtCreateRoom        = "create-room-v2"
	EvtJoinRoom          = "join-room-v2"
	EvtRejoinRoom        = "rejoin-room-v2"
	EvtStartGame         = "start-game-v2"
	EvtUpdatePlayerColor = "update-player-color-v2"
	EvtSubmitAction      = "submit-action-v2"
	EvtRequestSync       = "request-sync-v2"
	EvtLeaveRoom         = "leave-room-v2"
)

// Server -> Client pushes.
const (
	EvtRoomSnapshot       = "room-snapshot-v2"
	EvtPresenceUpdated    = "presence-updated-v2"
	EvtRosterUpdated      = "roster-updated-v2"
	EvtGameStarted        = "game-started-v2"
	EvtPlayerColorUpdated = "player-color-updated-v2"
	EvtHostChanged        = "host-changed-v2"
	EvtError              = "error-v2"
)

// ClientEnvelope frames every inbound message. Seq is the caller's request id;
// the reply echoes it in Ack, which is the protocol's inline callback.
type ClientEnvelope struct {
	Event string          `json:"event"`
	Seq   int64           `json:"seq,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ServerEnvelope struct {
	Event string `json:"event"`
	Ack   int64  `json:"ack,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type RejoinRoomRequest struct {
	RoomCode     string `json:"roomCode"`
	SessionToken string `json:"sessionToken"`
}

type StartGameRequest struct {
	RoomCode     string `json:"roomCode"`
	SessionToken string `json:"sessionToken"`
}

type UpdateColorRequest struct {
	RoomCode     string `json:"roomCode"`
	SessionToken string `json:"sessionToken"`
	Color        string `json:"color"`
}

type SubmitActionRequest struct {
	RoomCode     string      `json:"roomCode"`
	SessionToken string      `json:"sessionToken"`
	BaseVersion  int         `json:"baseVersion"`
	Action       room.Action `json:"action"`
}

type RequestSyncRequest struct {
	RoomCode     string `json:"roomCode"`
	SessionToken string `json:"sessionToken"`
}

type LeaveRoomRequest struct {
	RoomCode     string `json:"roomCode"`
	SessionToken string `json:"sessionToken"`
}

// JoinReply answers create-room-v2 and join-room-v2. SessionToken is the
// caller's own credential, never anyone else's.
type JoinReply struct {
	RoomID       string       `json:"roomId"`
	RoomCode     string       `json:"roomCode"`
	PlayerID     string       `json:"playerId"`
	SessionToken string       `json:"sessionToken"`
	Players      []PlayerInfo `json:"players"`
	IsHost       bool         `json:"isHost"`
	StateVersion int          `json:"stateVersion"`
}

type RejoinReply struct {
	JoinReply
	IsGameStarted bool `json:"isGameStarted"`
}

type VersionReply struct {
	StateVersion int `json:"stateVersion"`
}

type PlayersReply struct {
	Players []PlayerInfo `json:"players"`
}

type HostChanged struct {
	HostPlayerID string `json:"hostPlayerId"`
}

type ErrorReply struct {
	Error           string `json:"error"`
	ExpectedVersion int    `json:"expectedVersion,omitempty"`
}
