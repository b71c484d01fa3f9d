package room

import (
	"errors"
	"math"
	"time"
)

// Rejection reasons. The Error() strings double as the wire codes.
var ErrVersionMismatch = errors.New("version_mismatch")
var ErrPlayerNotFound = errors.New("player_not_found")
var ErrHostOnlyAction = errors.New("host_only_action")
var ErrGameNotInitialized = errors.New("game_not_initialized")
var ErrNotYourTurn = errors.New("not_your_turn")
var ErrInvalidNextState = errors.New("invalid_next_state")
var ErrTurnNotAdvanced = errors.New("turn_not_advanced")

type ActionKind string

const (
	ActionPlayMove        ActionKind = "play_move"
	ActionDiscardHand     ActionKind = "discard_hand"
	ActionSkipSecondMove  ActionKind = "skip_second_move"
	ActionPhaseTransition ActionKind = "phase_transition"
)

type Action struct {
	Kind          ActionKind `json:"type"`
	Phase         string     `json:"phase,omitempty"`
	NextGameState GameState  `json:"nextGameState,omitempty"`
}

// Apply is the pure transition function. It never mutates r: on acceptance it
// returns a clone with the action applied and the version bumped by one; on
// rejection it returns a clone of the current room (so the caller can hand the
// authoritative view back to a stale client) plus the rejection reason.
func Apply(r Room, actorID string, baseVersion int, act Action, now time.Time) (Room, error) {
	next := r.Clone()

	if baseVersion != next.StateVersion {
		return next, ErrVersionMismatch
	}

	actor, ok := next.Player(actorID)
	if !ok {
		return next, ErrPlayerNotFound
	}

	if act.Kind == ActionPhaseTransition {
		if actor.ID != next.HostPlayerID {
			return next, ErrHostOnlyAction
		}
		if act.NextGameState != nil {
			next.GameState = act.NextGameState
		} else {
			if next.GameState == nil {
				next.GameState = GameState{}
			}
			next.GameState["phase"] = act.Phase
		}
		next.IsStarted = true
		next.StateVersion++
		next.UpdatedAt = now
		return next, nil
	}

	// Turn actions: the room must hold an initialized game and it must be the
	// actor's turn according to the opaque state.
	if !hasPlayersArray(next.GameState) {
		return next, ErrGameNotInitialized
	}
	curIdx, ok := numberField(next.GameState, "currentPlayerIndex")
	if !ok || !isSeatOf(next.GameState, int(curIdx), actorID) {
		return next, ErrNotYourTurn
	}

	if !hasPlayersArray(act.NextGameState) {
		return next, ErrInvalidNextState
	}
	newIdx, ok := numberField(act.NextGameState, "currentPlayerIndex")
	if !ok || newIdx == curIdx {
		// A replayed or duplicated write never advances the turn; this single
		// check is the whole turn-progression gate at this layer.
		return next, ErrTurnNotAdvanced
	}

	next.GameState = act.NextGameState
	next.StateVersion++
	next.UpdatedAt = now
	return next, nil
}

func hasPlayersArray(state GameState) bool {
	if len(state) == 0 {
		return false
	}
	players, ok := state["players"].([]any)
	return ok && players != nil
}

// numberField reads a finite integral number out of the opaque state. JSON
// decoding yields float64, but tests build states with plain ints too. A
// fractional index like 0.5 must not truncate into a valid seat.
func numberField(state GameState, key string) (float64, bool) {
	switch v := state[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// isSeatOf reports whether the gameState players entry at idx belongs to
// playerID. Entries are opaque maps; only their "id" field is inspected.
func isSeatOf(state GameState, idx int, playerID string) bool {
	players, _ := state["players"].([]any)
	if idx < 0 || idx >= len(players) {
		return false
	}
	entry, ok := players[idx].(map[string]any)
	if !ok {
		return false
	}
	id, _ := entry["id"].(string)
	return id == playerID
}
