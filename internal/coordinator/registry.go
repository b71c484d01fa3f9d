package coordinator

import (
	"sync"

	"github.com/DoyleJ11/cardtable-backend/pkg/types"
)

// Client is one live connection's registry entry. RoomCode/PlayerID are set
// once the connection authenticates a seat (create/join/rejoin) so that a
// transport-level disconnect can be mapped back to the seat it strands.
type Client struct {
	SocketID string
	Outbox   chan types.ServerEnvelope
	RoomCode string
	PlayerID string
	// dropped marks a client whose outbox overflowed. The entry stays in the
	// table so the transport-level disconnect can still map the socket back
	// to its seat and strand it.
	dropped bool
}

// Registry tracks live connections by socket id. It replaces any notion of a
// process-wide table: one registry is built in main and injected, so tests run
// isolated instances side by side.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

func (g *Registry) Add(socketID string) *Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := &Client{
		SocketID: socketID,
		Outbox:   make(chan types.ServerEnvelope, 16),
	}
	g.clients[socketID] = c
	return c
}

// Bind attaches a seat identity to a connection.
func (g *Registry) Bind(socketID, roomCode, playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[socketID]; ok {
		c.RoomCode = roomCode
		c.PlayerID = playerID
	}
}

func (g *Registry) Unbind(socketID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[socketID]; ok {
		c.RoomCode = ""
		c.PlayerID = ""
	}
}

// Remove drops the connection and closes its outbox, telling the writer no
// more pushes are coming. Returns the removed entry, or nil.
func (g *Registry) Remove(socketID string) *Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.clients[socketID]
	if !ok {
		return nil
	}
	delete(g.clients, socketID)
	if !c.dropped {
		close(c.Outbox)
	}
	return c
}

// Send pushes an envelope to one connection without blocking. A client whose
// outbox is full is slow or wedged; its outbox is closed so the writer stops,
// and the reader loop's disconnect reaps the entry and strands the seat.
func (g *Registry) Send(socketID string, env types.ServerEnvelope) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.clients[socketID]
	if !ok || c.dropped {
		return false
	}
	select {
	case c.Outbox <- env:
		return true
	default:
		c.dropped = true
		close(c.Outbox)
		return false
	}
}
