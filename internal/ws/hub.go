package ws

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Conn is the subset of *websocket.Conn the hub needs. Tests substitute
// an in-memory implementation.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Envelope is the wire frame pushed to subscribers.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub tracks which users are connected and which zone each belongs to,
// so truck updates fan out only to the zone's audience. A user may hold
// several sessions (phone and laptop) at once.
type Hub struct {
	mu        sync.Mutex
	userConns map[uint]map[Conn]bool
	userZone  map[uint]uint
	zoneUsers map[uint]map[uint]bool
}

func NewHub() *Hub {
	return &Hub{
		userConns: make(map[uint]map[Conn]bool),
		userZone:  make(map[uint]uint),
		zoneUsers: make(map[uint]map[uint]bool),
	}
}

// Register adds a session for the user under the given zone.
func (h *Hub) Register(userID, zoneID uint, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.userConns[userID]; !ok {
		h.userConns[userID] = make(map[Conn]bool)
	}
	h.userConns[userID][conn] = true
	// A user whose home moved between sessions lands in a new zone;
	// drop the old membership so they appear in exactly one zone set.
	if old, ok := h.userZone[userID]; ok && old != zoneID {
		if users, ok := h.zoneUsers[old]; ok {
			delete(users, userID)
			if len(users) == 0 {
				delete(h.zoneUsers, old)
			}
		}
	}
	h.userZone[userID] = zoneID
	if _, ok := h.zoneUsers[zoneID]; !ok {
		h.zoneUsers[zoneID] = make(map[uint]bool)
	}
	h.zoneUsers[zoneID][userID] = true

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"zone_id": zoneID,
	}).Info("WebSocket client registered.")
}

// Unregister drops one session. The user leaves the zone audience only
// when their last session goes.
func (h *Hub) Unregister(userID uint, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(userID, conn)
	logrus.WithField("user_id", userID).Info("WebSocket client unregistered.")
}

// dropLocked removes a session and cleans up empty entries. Caller holds
// the mutex.
func (h *Hub) dropLocked(userID uint, conn Conn) {
	conns, ok := h.userConns[userID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) > 0 {
		return
	}
	delete(h.userConns, userID)
	if zoneID, ok := h.userZone[userID]; ok {
		delete(h.userZone, userID)
		if users, ok := h.zoneUsers[zoneID]; ok {
			delete(users, userID)
			if len(users) == 0 {
				delete(h.zoneUsers, zoneID)
			}
		}
	}
}

// SendToUser writes the envelope to every session of the user. Writes
// happen outside the lock; sessions whose write fails are pruned.
func (h *Hub) SendToUser(userID uint, env Envelope) {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.userConns[userID]))
	for c := range h.userConns[userID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	var dead []Conn
	for _, c := range conns {
		if err := c.WriteJSON(env); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("Failed to write to WebSocket client, pruning session.")
			dead = append(dead, c)
		}
	}
	if len(dead) > 0 {
		h.mu.Lock()
		for _, c := range dead {
			h.dropLocked(userID, c)
		}
		h.mu.Unlock()
		for _, c := range dead {
			c.Close()
		}
	}
}

// BroadcastToZone sends the envelope to every connected user of the zone.
func (h *Hub) BroadcastToZone(zoneID uint, env Envelope) {
	for _, userID := range h.zoneAudience(zoneID) {
		h.SendToUser(userID, env)
	}
}

func (h *Hub) zoneAudience(zoneID uint) []uint {
	h.mu.Lock()
	defer h.mu.Unlock()
	users := make([]uint, 0, len(h.zoneUsers[zoneID]))
	for id := range h.zoneUsers[zoneID] {
		users = append(users, id)
	}
	return users
}

// ZoneUserCount reports how many users are listening on a zone. The
// broadcaster checks this before doing any per-user work.
func (h *Hub) ZoneUserCount(zoneID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.zoneUsers[zoneID])
}

// ConnectedUsers returns the ids of all users with at least one session.
func (h *Hub) ConnectedUsers() []uint {
	h.mu.Lock()
	defer h.mu.Unlock()
	users := make([]uint, 0, len(h.userConns))
	for id := range h.userConns {
		users = append(users, id)
	}
	return users
}
