// Package coordinator implements the per-connection room protocol: join and
// rejoin, host-gated lifecycle, action submission, presence, and snapshot
// fan-out. Handlers read a room from the store, validate, save the whole
// object back, and broadcast; the store is the only shared mutable resource.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/cardtable-backend/internal/room"
	"github.com/DoyleJ11/cardtable-backend/internal/store"
	"github.com/DoyleJ11/cardtable-backend/pkg/types"
)

// Request-level rejections. Error() strings double as wire codes.
var ErrRoomNotFound = errors.New("room_not_found")
var ErrRoomFull = errors.New("room_full")
var ErrGameAlreadyStarted = errors.New("game_already_started")
var ErrInvalidSession = errors.New("invalid_session")
var ErrSeatNotFound = errors.New("seat_not_found")
var ErrSessionNotBound = errors.New("session_not_bound")
var ErrGraceElapsed = errors.New("grace_period_elapsed")

// Rejection wraps an action-processor refusal with the authoritative version
// so a stale client can resync instead of retrying blindly.
type Rejection struct {
	Reason          error
	ExpectedVersion int
}

func (r *Rejection) Error() string { return r.Reason.Error() }
func (r *Rejection) Unwrap() error { return r.Reason }

type Coordinator struct {
	store      store.Store
	reg        *Registry
	log        *zap.Logger
	grace      time.Duration
	maxPlayers int
	now        func() time.Time // test hook
}

func New(st store.Store, reg *Registry, log *zap.Logger, grace time.Duration, maxPlayers int) *Coordinator {
	return &Coordinator{
		store:      st,
		reg:        reg,
		log:        log,
		grace:      grace,
		maxPlayers: maxPlayers,
		now:        time.Now,
	}
}

// CreateRoom allocates a room with the caller as host and first seat.
func (c *Coordinator) CreateRoom(ctx context.Context, socketID string, req types.CreateRoomRequest) (*types.JoinReply, error) {
	var code string
	for {
		cand, err := GenerateCode()
		if err != nil {
			return nil, err
		}
		if _, ok, err := c.store.GetRoomByCode(ctx, cand); err != nil {
			return nil, err
		} else if !ok {
			code = cand
			break
		}
		c.log.Debug("room code collision, regenerating", zap.String("code", cand))
	}

	now := c.now()
	p := room.Player{
		ID:           uuid.NewString(),
		Name:         req.PlayerName,
		SessionToken: uuid.NewString(),
		SocketID:     socketID,
		Connected:    true,
	}
	r := &room.Room{
		ID:           uuid.NewString(),
		Code:         code,
		HostPlayerID: p.ID,
		Players:      []room.Player{p},
		StateVersion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// Session first: a seat persisted without its credential could never
	// leave or rejoin, while an orphaned session just ages out of the store.
	sess := &room.Session{Token: p.SessionToken, RoomCode: code, PlayerID: p.ID, LastSeenAt: now}
	if err := c.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	if err := c.store.SaveRoom(ctx, r); err != nil {
		return nil, err
	}
	c.reg.Bind(socketID, code, p.ID)
	c.log.Info("room created",
		zap.String("code", code), zap.String("player", p.ID))

	return &types.JoinReply{
		RoomID:       r.ID,
		RoomCode:     code,
		PlayerID:     p.ID,
		SessionToken: p.SessionToken,
		Players:      playersInfo(r),
		IsHost:       true,
		StateVersion: r.StateVersion,
	}, nil
}

// JoinRoom appends a seat to a lobby that has not started and has room left.
func (c *Coordinator) JoinRoom(ctx context.Context, socketID string, req types.JoinRoomRequest) (*types.JoinReply, error) {
	r, ok, err := c.store.GetRoomByCode(ctx, req.RoomCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoomNotFound
	}
	if r.IsStarted {
		return nil, ErrGameAlreadyStarted
	}
	if len(r.Players) >= c.maxPlayers {
		return nil, ErrRoomFull
	}

	now := c.now()
	p := room.Player{
		ID:           uuid.NewString(),
		Name:         req.PlayerName,
		SessionToken: uuid.NewString(),
		SocketID:     socketID,
		Connected:    true,
	}
	r.Players = append(r.Players, p)
	r.UpdatedAt = now
	// Session first, same as CreateRoom: never a seat without a credential.
	sess := &room.Session{Token: p.SessionToken, RoomCode: r.Code, PlayerID: p.ID, LastSeenAt: now}
	if err := c.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	if err := c.store.SaveRoom(ctx, r); err != nil {
		return nil, err
	}
	c.reg.Bind(socketID, r.Code, p.ID)
	c.broadcast(r, types.EvtRosterUpdated, types.PlayersReply{Players: playersInfo(r)})
	c.log.Info("player joined",
		zap.String("code", r.Code), zap.String("player", p.ID))

	return &types.JoinReply{
		RoomID:       r.ID,
		RoomCode:     r.Code,
		PlayerID:     p.ID,
		SessionToken: p.SessionToken,
		Players:      playersInfo(r),
		IsHost:       p.ID == r.HostPlayerID,
		StateVersion: r.StateVersion,
	}, nil
}

// RejoinRoom reattaches a session to its seat after a disconnect. Only the
// session token is accepted as proof of ownership; the seat must still be
// inside its grace window.
func (c *Coordinator) RejoinRoom(ctx context.Context, socketID string, req types.RejoinRoomRequest) (*types.RejoinReply, error) {
	r, sess, err := c.resolve(ctx, req.RoomCode, req.SessionToken)
	if err != nil {
		return nil, err
	}
	p, ok := r.Player(sess.PlayerID)
	if !ok {
		return nil, ErrSeatNotFound
	}
	now := c.now()
	if room.GraceElapsed(*p, now, c.grace) {
		return nil, ErrGraceElapsed
	}

	p.Connected = true
	p.SocketID = socketID
	p.DisconnectedAt = nil
	r.UpdatedAt = now
	if err := c.store.SaveRoom(ctx, r); err != nil {
		return nil, err
	}
	c.reg.Bind(socketID, r.Code, p.ID)

	// The rejoiner may have missed broadcasts while offline: push a full
	// snapshot to just this connection, then presence to everyone.
	c.pushSnapshot(r, socketID, p.ID)
	c.broadcast(r, types.EvtPresenceUpdated, types.PresenceUpdate{RoomCode: r.Code, Presence: c.presence(r)})
	c.log.Info("player rejoined",
		zap.String("code", r.Code), zap.String("player", p.ID))

	return &types.RejoinReply{
		JoinReply: types.JoinReply{
			RoomID:       r.ID,
			RoomCode:     r.Code,
			PlayerID:     p.ID,
			SessionToken: sess.Token,
			Players:      playersInfo(r),
			IsHost:       p.ID == r.HostPlayerID,
			StateVersion: r.StateVersion,
		},
		IsGameStarted: r.IsStarted,
	}, nil
}

// StartGame flips the room into its started state. Host-only, and the session
// must be bound to the host seat's current live connection so a second tab
// holding a stale session copy cannot start the game.
func (c *Coordinator) StartGame(ctx context.Context, socketID string, req types.StartGameRequest) (*types.VersionReply, error) {
	r, sess, err := c.resolve(ctx, req.RoomCode, req.SessionToken)
	if err != nil {
		return nil, err
	}
	if sess.PlayerID != r.HostPlayerID {
		return nil, room.ErrHostOnlyAction
	}
	host, ok := r.Player(sess.PlayerID)
	if !ok {
		return nil, ErrSeatNotFound
	}
	if !host.Connected || host.SocketID != socketID {
		return nil, ErrSessionNotBound
	}

	r.IsStarted = true
	r.UpdatedAt = c.now()
	if err := c.store.SaveRoom(ctx, r); err != nil {
		return nil, err
	}
	c.broadcast(r, types.EvtGameStarted, types.VersionReply{StateVersion: r.StateVersion})
	c.log.Info("game started", zap.String("code", r.Code))
	return &types.VersionReply{StateVersion: r.StateVersion}, nil
}

// UpdateColor is a seat-scoped field update, mirrored into the opaque game
// state's player list when one exists.
func (c *Coordinator) UpdateColor(ctx context.Context, socketID string, req types.UpdateColorRequest) (*types.PlayersReply, error) {
	r, sess, err := c.resolve(ctx, req.RoomCode, req.SessionToken)
	if err != nil {
		return nil, err
	}
	p, ok := r.Player(sess.PlayerID)
	if !ok {
		return nil, ErrSeatNotFound
	}
	p.Color = req.Color
	mirrorColor(r.GameState, p.ID, req.Color)
	r.UpdatedAt = c.now()
	if err := c.store.SaveRoom(ctx, r); err != nil {
		return nil, err
	}
	reply := types.PlayersReply{Players: playersInfo(r)}
	c.broadcast(r, types.EvtPlayerColorUpdated, reply)
	return &reply, nil
}

// SubmitAction is the entry point to the pure transition function. On success
// the new room is persisted and every connected seat gets a fresh snapshot;
// on rejection only the caller hears about it, with the authoritative version.
func (c *Coordinator) SubmitAction(ctx context.Context, socketID string, req types.SubmitActionRequest) (*types.VersionReply, error) {
	r, sess, err := c.resolve(ctx, req.RoomCode, req.SessionToken)
	if err != nil {
		return nil, err
	}

	next, err := room.Apply(*r, sess.PlayerID, req.BaseVersion, req.Action, c.now())
	if err != nil {
		c.log.Debug("action rejected",
			zap.String("code", r.Code),
			zap.String("player", sess.PlayerID),
			zap.String("reason", err.Error()),
			zap.Int("expected", r.StateVersion))
		return nil, &Rejection{Reason: err, ExpectedVersion: r.StateVersion}
	}

	if err := c.store.SaveRoom(ctx, &next); err != nil {
		return nil, err
	}
	c.broadcastSnapshots(&next)
	c.log.Info("action accepted",
		zap.String("code", next.Code),
		zap.String("player", sess.PlayerID),
		zap.String("action", string(req.Action.Kind)),
		zap.Int("version", next.StateVersion))
	return &types.VersionReply{StateVersion: next.StateVersion}, nil
}

// RequestSync resends the caller's snapshot on demand, typically after a
// reconnect or suspected drift.
func (c *Coordinator) RequestSync(ctx context.Context, socketID string, req types.RequestSyncRequest) (*types.VersionReply, error) {
	r, sess, err := c.resolve(ctx, req.RoomCode, req.SessionToken)
	if err != nil {
		return nil, err
	}
	if _, ok := r.Player(sess.PlayerID); !ok {
		return nil, ErrSeatNotFound
	}
	c.pushSnapshot(r, socketID, sess.PlayerID)
	return &types.VersionReply{StateVersion: r.StateVersion}, nil
}

// LeaveRoom removes the seat outright before start (its session dies with it)
// and soft-removes after start so the seat stays rejoinable.
func (c *Coordinator) LeaveRoom(ctx context.Context, socketID string, req types.LeaveRoomRequest) error {
	r, sess, err := c.resolve(ctx, req.RoomCode, req.SessionToken)
	if err != nil {
		return err
	}
	c.reg.Unbind(socketID)
	now := c.now()

	if !r.IsStarted {
		r.RemovePlayer(sess.PlayerID)
		if err := c.store.DeleteSession(ctx, sess.Token); err != nil {
			return err
		}
		if len(r.Players) == 0 {
			c.log.Info("room emptied", zap.String("code", r.Code))
			return c.store.DeleteRoom(ctx, r.Code)
		}
		hostChanged := r.EnsureHost()
		r.UpdatedAt = now
		if err := c.store.SaveRoom(ctx, r); err != nil {
			return err
		}
		c.broadcast(r, types.EvtRosterUpdated, types.PlayersReply{Players: playersInfo(r)})
		if hostChanged {
			c.broadcast(r, types.EvtHostChanged, types.HostChanged{HostPlayerID: r.HostPlayerID})
		}
		return nil
	}

	if p, ok := r.Player(sess.PlayerID); ok {
		softRemove(p, now)
	}
	r.UpdatedAt = now
	if err := c.store.SaveRoom(ctx, r); err != nil {
		return err
	}
	c.broadcast(r, types.EvtPresenceUpdated, types.PresenceUpdate{RoomCode: r.Code, Presence: c.presence(r)})
	return nil
}

// Disconnect is the transport-detected counterpart of LeaveRoom: soft-remove
// the seat, prune seats whose grace window has fully lapsed, migrate the host
// if its seat is gone, and drop the room once empty.
func (c *Coordinator) Disconnect(ctx context.Context, socketID string) {
	cl := c.reg.Remove(socketID)
	if cl == nil || cl.RoomCode == "" {
		return
	}
	r, ok, err := c.store.GetRoomByCode(ctx, cl.RoomCode)
	if err != nil {
		c.log.Warn("disconnect: room lookup failed", zap.String("code", cl.RoomCode), zap.Error(err))
		return
	}
	if !ok {
		return
	}

	now := c.now()
	// Only strand the seat if this socket still owns it; a reconnected seat
	// has moved on to a newer connection.
	if p, ok := r.Player(cl.PlayerID); ok && p.SocketID == socketID {
		softRemove(p, now)
	}

	pruned := c.pruneLapsed(r, now)
	if len(r.Players) == 0 {
		if err := c.store.DeleteRoom(ctx, r.Code); err != nil {
			c.log.Warn("disconnect: room delete failed", zap.String("code", r.Code), zap.Error(err))
		}
		c.log.Info("room emptied", zap.String("code", r.Code))
		return
	}

	hostChanged := r.EnsureHost()
	r.UpdatedAt = now
	if err := c.store.SaveRoom(ctx, r); err != nil {
		c.log.Warn("disconnect: room save failed", zap.String("code", r.Code), zap.Error(err))
		return
	}
	c.broadcast(r, types.EvtPresenceUpdated, types.PresenceUpdate{RoomCode: r.Code, Presence: c.presence(r)})
	if pruned {
		c.broadcast(r, types.EvtRosterUpdated, types.PlayersReply{Players: playersInfo(r)})
	}
	if hostChanged {
		c.broadcast(r, types.EvtHostChanged, types.HostChanged{HostPlayerID: r.HostPlayerID})
	}
	c.log.Info("player disconnected",
		zap.String("code", r.Code), zap.String("player", cl.PlayerID))
}

// resolve authenticates a session token against a room code and refreshes the
// session's last-seen stamp. The store read itself re-arms both TTLs.
func (c *Coordinator) resolve(ctx context.Context, code, token string) (*room.Room, *room.Session, error) {
	sess, ok, err := c.store.GetSession(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if !ok || sess.RoomCode != code {
		return nil, nil, ErrInvalidSession
	}
	r, ok, err := c.store.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	sess.LastSeenAt = c.now()
	if err := c.store.SaveSession(ctx, sess); err != nil {
		return nil, nil, err
	}
	return r, sess, nil
}

// pruneLapsed drops seats whose grace window has fully elapsed. Their sessions
// are left to TTL expiry; the seat itself is gone either way.
func (c *Coordinator) pruneLapsed(r *room.Room, now time.Time) bool {
	kept := r.Players[:0]
	pruned := false
	for _, p := range r.Players {
		if room.GraceElapsed(p, now, c.grace) {
			pruned = true
			continue
		}
		kept = append(kept, p)
	}
	r.Players = kept
	return pruned
}

func softRemove(p *room.Player, now time.Time) {
	p.Connected = false
	p.SocketID = ""
	ts := now
	p.DisconnectedAt = &ts
}

func (c *Coordinator) presence(r *room.Room) map[string]room.Presence {
	now := c.now()
	out := make(map[string]room.Presence, len(r.Players))
	for _, p := range r.Players {
		out[p.ID] = room.PresenceOf(p, now, c.grace)
	}
	return out
}

// broadcast sends one event to every connected seat.
func (c *Coordinator) broadcast(r *room.Room, event string, data any) {
	env := types.ServerEnvelope{Event: event, Data: data}
	for _, p := range r.Players {
		if p.Connected && p.SocketID != "" {
			c.reg.Send(p.SocketID, env)
		}
	}
}

// broadcastSnapshots fans out one snapshot per connected seat, each built from
// that recipient's perspective.
func (c *Coordinator) broadcastSnapshots(r *room.Room) {
	pres := c.presence(r)
	for _, p := range r.Players {
		if p.Connected && p.SocketID != "" {
			c.reg.Send(p.SocketID, types.ServerEnvelope{
				Event: types.EvtRoomSnapshot,
				Data:  snapshotFor(r, p.ID, pres),
			})
		}
	}
}

func (c *Coordinator) pushSnapshot(r *room.Room, socketID, you string) {
	c.reg.Send(socketID, types.ServerEnvelope{
		Event: types.EvtRoomSnapshot,
		Data:  snapshotFor(r, you, c.presence(r)),
	})
}

func snapshotFor(r *room.Room, you string, pres map[string]room.Presence) types.Snapshot {
	return types.Snapshot{
		RoomID:       r.ID,
		RoomCode:     r.Code,
		StateVersion: r.StateVersion,
		GameState:    r.GameState,
		Players:      playersInfo(r),
		Presence:     pres,
		HostPlayerID: r.HostPlayerID,
		You:          you,
		IsStarted:    r.IsStarted,
	}
}

func playersInfo(r *room.Room) []types.PlayerInfo {
	out := make([]types.PlayerInfo, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, types.PlayerInfo{
			ID:        p.ID,
			Name:      p.Name,
			Color:     p.Color,
			Connected: p.Connected,
			IsHost:    p.ID == r.HostPlayerID,
		})
	}
	return out
}

// mirrorColor patches the matching entry of the opaque state's player list.
// Anything that is not shaped like a player list is left alone.
func mirrorColor(state room.GameState, playerID, color string) {
	players, ok := state["players"].([]any)
	if !ok {
		return
	}
	for _, entry := range players {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := m["id"].(string); id == playerID {
			m["color"] = color
			return
		}
	}
}
