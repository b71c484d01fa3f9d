package room

import "time"

type Presence string

const (
	PresenceConnected    Presence = "connected"
	PresenceReconnecting Presence = "reconnecting"
	PresenceDisconnected Presence = "disconnected"
)

// PresenceOf derives a seat's connectivity status at a point in time. It is
// never stored: "reconnecting" decays into "disconnected" purely as a function
// of elapsed time against the grace window.
func PresenceOf(p Player, now time.Time, grace time.Duration) Presence {
	if p.Connected {
		return PresenceConnected
	}
	if p.DisconnectedAt != nil && now.Sub(*p.DisconnectedAt) <= grace {
		return PresenceReconnecting
	}
	return PresenceDisconnected
}

// GraceElapsed reports whether a disconnected seat is past its rejoin window.
// A seat with no DisconnectedAt stamp was never soft-removed and keeps its
// place.
func GraceElapsed(p Player, now time.Time, grace time.Duration) bool {
	if p.Connected || p.DisconnectedAt == nil {
		return false
	}
	return now.Sub(*p.DisconnectedAt) > grace
}
