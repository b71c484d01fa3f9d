package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/cardtable-backend/internal/coordinator"
	"github.com/DoyleJ11/cardtable-backend/internal/room"
	"github.com/DoyleJ11/cardtable-backend/pkg/types"
)

type Server struct {
	co  *coordinator.Coordinator
	reg *coordinator.Registry
	log *zap.Logger
}

func NewServer(co *coordinator.Coordinator, reg *coordinator.Registry, log *zap.Logger) *Server {
	return &Server{co: co, reg: reg, log: log}
}

// Handler upgrades to a websocket and runs one reader loop per connection.
// All outbound traffic — replies and pushes alike — funnels through the
// client's outbox so a single writer goroutine owns the socket and broadcasts
// go out in the order their writes were persisted.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		socketID := uuid.NewString()
		client := s.reg.Add(socketID)
		defer s.co.Disconnect(context.Background(), socketID)

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for env := range client.Outbox {
				payload, err := json.Marshal(env)
				if err != nil {
					s.log.Error("marshal outbound", zap.Error(err), zap.String("event", env.Event))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// Outbox closed: either the seat was dropped for being slow or
			// the connection is going away. Close the socket so the reader
			// unblocks and the disconnect path runs.
			conn.Close(websocket.StatusPolicyViolation, "outbox closed")
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				// Clean close, going-away, and plain drops all end the same
				// way: the deferred Disconnect strands the seat.
				return
			}

			var ce types.ClientEnvelope
			if err := json.Unmarshal(data, &ce); err != nil {
				s.reg.Send(socketID, types.ServerEnvelope{
					Event: types.EvtError,
					Data:  types.ErrorReply{Error: "bad_json"},
				})
				continue
			}
			s.reg.Send(socketID, s.dispatch(r.Context(), socketID, ce))
		}
	}
}

// dispatch routes one envelope to its coordinator handler. A panic inside any
// handler becomes a generic failure reply; it never drops the connection or
// takes the room down with it.
func (s *Server) dispatch(ctx context.Context, socketID string, ce types.ClientEnvelope) (resp types.ServerEnvelope) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("handler panic",
				zap.Any("panic", rec), zap.String("event", ce.Event))
			resp = types.ServerEnvelope{
				Event: types.EvtError,
				Ack:   ce.Seq,
				Data:  types.ErrorReply{Error: "internal_error"},
			}
		}
	}()

	switch ce.Event {
	case types.EvtCreateRoom:
		var req types.CreateRoomRequest
		if err := json.Unmarshal(ce.Data, &req); err != nil {
			return s.badPayload(ce)
		}
		rep, err := s.co.CreateRoom(ctx, socketID, req)
		return s.reply(ce, rep, err)

	case types.EvtJoinRoom:
		var req types.JoinRoomRequest
		if err := json.Unmarshal(ce.Data, &req); err != nil {
			return s.badPayload(ce)
		}
		rep, err := s.co.JoinRoom(ctx, socketID, req)
		return s.reply(ce, rep, err)

	case types.EvtRejoinRoom:
		var req types.RejoinRoomRequest
		if err := json.Unmarshal(ce.Data, &req); err != nil {
			return s.badPayload(ce)
		}
		rep, err := s.co.RejoinRoom(ctx, socketID, req)
		return s.reply(ce, rep, err)

	case types.EvtStartGame:
		var req types.StartGameRequest
		if err := json.Unmarshal(ce.Data, &req); err != nil {
			return s.badPayload(ce)
		}
		rep, err := s.co.StartGame(ctx, socketID, req)
		return s.reply(ce, rep, err)

	case types.EvtUpdatePlayerColor:
		var req types.UpdateColorRequest
		if err := json.Unmarshal(ce.Data, &req); err != nil {
			return s.badPayload(ce)
		}
		rep, err := s.co.UpdateColor(ctx, socketID, req)
		return s.reply(ce, rep, err)

	case types.EvtSubmitAction:
		var req types.SubmitActionRequest
		if err := json.Unmarshal(ce.Data, &req); err != nil {
			return s.badPayload(ce)
		}
		rep, err := s.co.SubmitAction(ctx, socketID, req)
		return s.reply(ce, rep, err)

	case types.EvtRequestSync:
		var req types.RequestSyncRequest
		if err := json.Unmarshal(ce.Data, &req); err != nil {
			return s.badPayload(ce)
		}
		rep, err := s.co.RequestSync(ctx, socketID, req)
		return s.reply(ce, rep, err)

	case types.EvtLeaveRoom:
		var req types.LeaveRoomRequest
		if err := json.Unmarshal(ce.Data, &req); err != nil {
			return s.badPayload(ce)
		}
		err := s.co.LeaveRoom(ctx, socketID, req)
		return s.reply(ce, struct{}{}, err)

	default:
		return types.ServerEnvelope{
			Event: types.EvtError,
			Ack:   ce.Seq,
			Data:  types.ErrorReply{Error: "unknown_event"},
		}
	}
}

func (s *Server) badPayload(ce types.ClientEnvelope) types.ServerEnvelope {
	return types.ServerEnvelope{
		Event: types.EvtError,
		Ack:   ce.Seq,
		Data:  types.ErrorReply{Error: "bad_payload"},
	}
}

func (s *Server) reply(ce types.ClientEnvelope, data any, err error) types.ServerEnvelope {
	if err == nil {
		return types.ServerEnvelope{Event: ce.Event, Ack: ce.Seq, Data: data}
	}
	var rej *coordinator.Rejection
	if errors.As(err, &rej) {
		return types.ServerEnvelope{
			Event: types.EvtError,
			Ack:   ce.Seq,
			Data:  types.ErrorReply{Error: rej.Reason.Error(), ExpectedVersion: rej.ExpectedVersion},
		}
	}
	return types.ServerEnvelope{
		Event: types.EvtError,
		Ack:   ce.Seq,
		Data:  types.ErrorReply{Error: wireCode(err)},
	}
}

// wireCode maps known rejections to their wire codes and masks everything else
// (store failures, bugs) behind a generic code.
func wireCode(err error) string {
	for _, known := range []error{
		coordinator.ErrRoomNotFound,
		coordinator.ErrRoomFull,
		coordinator.ErrGameAlreadyStarted,
		coordinator.ErrInvalidSession,
		coordinator.ErrSeatNotFound,
		coordinator.ErrSessionNotBound,
		coordinator.ErrGraceElapsed,
		room.ErrHostOnlyAction,
		room.ErrPlayerNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal_error"
}
