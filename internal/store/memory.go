package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/DoyleJ11/cardtable-backend/internal/room"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is the in-process backend. Values are kept as marshaled JSON so its
// copy-on-read behavior is byte-identical to the Redis backend: two handlers
// that both read the same room never alias each other's in-memory state.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time // test hook
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// get returns the live bytes for key, lazily dropping it when expired and
// re-arming the TTL on a hit. No background sweeper runs; expiry is only ever
// evaluated here.
func (m *Memory) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	now := m.now()
	if now.After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	e.expiresAt = now.Add(m.ttl)
	m.entries[key] = e
	return e.data, true
}

func (m *Memory) set(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{data: data, expiresAt: m.now().Add(m.ttl)}
}

func (m *Memory) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *Memory) GetRoomByCode(_ context.Context, code string) (*room.Room, bool, error) {
	data, ok := m.get(roomPrefix + code)
	if !ok {
		return nil, false, nil
	}
	var r room.Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

func (m *Memory) SaveRoom(_ context.Context, r *room.Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	m.set(roomPrefix+r.Code, data)
	return nil
}

func (m *Memory) DeleteRoom(_ context.Context, code string) error {
	m.delete(roomPrefix + code)
	return nil
}

func (m *Memory) GetSession(_ context.Context, token string) (*room.Session, bool, error) {
	data, ok := m.get(sessionPrefix + token)
	if !ok {
		return nil, false, nil
	}
	var s room.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

func (m *Memory) SaveSession(_ context.Context, s *room.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.set(sessionPrefix+s.Token, data)
	return nil
}

func (m *Memory) DeleteSession(_ context.Context, token string) error {
	m.delete(sessionPrefix + token)
	return nil
}
