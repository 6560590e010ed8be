package hub

import (
	"encoding/json"
	"sync"

	mapset "github.com/deckarep/golang-set"
	"go.uber.org/zap"
)

// Hub partitions connected clients into owner-scoped rooms and fans events
// out to them. Clients are indexed by id; each room is a set of client ids.
// Membership is purely in-memory and rebuilt by clients rejoining after a
// restart.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]mapset.Set
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]mapset.Set),
	}
}

// Register makes the client known to the hub. It belongs to no room until it
// joins one.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID] = c
	zap.L().Debug("client registered", zap.String("client", c.ID))
}

// Unregister removes the client from the hub and from every room set it was
// part of, and closes its send channel. Safe to call for an unknown client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}

	for ownerID, room := range h.rooms {
		room.Remove(c.ID)
		if room.Cardinality() == 0 {
			delete(h.rooms, ownerID)
		}
	}

	delete(h.clients, c.ID)
	close(c.Send)
	zap.L().Debug("client unregistered", zap.String("client", c.ID))
}

// Join adds the client to the owner's room. Joining twice is a no-op: the
// room is a set, so duplicate joins never cause duplicate delivery.
func (h *Hub) Join(c *Client, ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}

	room, ok := h.rooms[ownerID]
	if !ok {
		room = mapset.NewThreadUnsafeSet()
		h.rooms[ownerID] = room
	}

	if room.Add(c.ID) {
		zap.L().Debug("client joined room", zap.String("client", c.ID), zap.String("owner", ownerID))
	}
}

// Broadcast delivers one envelope to every member of the owner's room.
// Delivery is best effort: dead or slow members are skipped, never retried,
// and never abort delivery to the rest of the room.
func (h *Hub) Broadcast(ownerID string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		zap.L().Error("failed to encode broadcast", zap.String("owner", ownerID), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[ownerID]
	if !ok {
		return
	}

	room.Each(func(v interface{}) bool {
		if c, ok := h.clients[v.(string)]; ok {
			c.enqueue(data)
		}
		return false
	})
}

// BroadcastSpin announces a winner to the owner's room. Announcements carry
// no dedup key; a retried upstream trigger will be rendered again by clients.
func (h *Hub) BroadcastSpin(ownerID, winner string, isTest bool) {
	h.Broadcast(ownerID, Spin(winner, isTest))
}

// RoomSize reports the current member count of the owner's room.
func (h *Hub) RoomSize(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room, ok := h.rooms[ownerID]; ok {
		return room.Cardinality()
	}
	return 0
}

// Rooms returns a snapshot of room membership counts, for debugging.
func (h *Hub) Rooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]int, len(h.rooms))
	for ownerID, room := range h.rooms {
		out[ownerID] = room.Cardinality()
	}
	return out
}
