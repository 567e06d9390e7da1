// Package ws carries live contest updates to connected browsers over
// WebSocket. Clients subscribe to per-contest rooms; the judge worker and
// contest service publish events into the rooms.
package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Message envelope types pushed to clients.
const (
	MsgLeaderboardUpdate = "leaderboard_update"
	MsgSubmissionResult  = "submission_result"
	MsgAnnouncement      = "announcement"
)

// Client-initiated message types.
const (
	msgJoinContest  = "join_contest"
	msgLeaveContest = "leave_contest"
)

type Envelope struct {
	Type      string          `json:"type"`
	ContestID string          `json:"contest_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	SentAt    time.Time       `json:"sent_at"`
}

// Hub tracks connected clients and their contest-room memberships.
// All maps are guarded by mu; send fan-out happens off the caller's
// goroutine through each client's buffered channel.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{} // contestID -> members
	users map[string]map[*Client]struct{} // userID -> connections
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		users: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.userID != "" {
		if h.users[c.userID] == nil {
			h.users[c.userID] = make(map[*Client]struct{})
		}
		h.users[c.userID][c] = struct{}{}
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for contestID := range c.contests {
		if members := h.rooms[contestID]; members != nil {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, contestID)
			}
		}
	}
	if conns := h.users[c.userID]; conns != nil {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, c.userID)
		}
	}
}

func (h *Hub) join(c *Client, contestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[contestID] == nil {
		h.rooms[contestID] = make(map[*Client]struct{})
	}
	h.rooms[contestID][c] = struct{}{}
	c.contests[contestID] = struct{}{}
}

func (h *Hub) leave(c *Client, contestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.contests, contestID)
	if members := h.rooms[contestID]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, contestID)
		}
	}
}

// BroadcastToContest sends an event to every member of a contest room.
// Slow clients are dropped rather than blocking the publisher.
func (h *Hub) BroadcastToContest(contestID, msgType string, payload interface{}) {
	data, err := marshalEnvelope(msgType, contestID, payload)
	if err != nil {
		log.Printf("ERROR: Failed to marshal %s broadcast: %v", msgType, err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[contestID]))
	for c := range h.rooms[contestID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.deliver(targets, data)
}

// SendToUser delivers an event to every open connection of one user.
func (h *Hub) SendToUser(userID, msgType string, payload interface{}) {
	data, err := marshalEnvelope(msgType, "", payload)
	if err != nil {
		log.Printf("ERROR: Failed to marshal %s message: %v", msgType, err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.deliver(targets, data)
}

// deliver fans out to a snapshot of clients with no hub lock held, so
// dropping a slow client can re-take the lock without deadlocking the
// publisher.
func (h *Hub) deliver(targets []*Client, data []byte) {
	for _, c := range targets {
		if c.trySend(data) {
			continue
		}
		log.Printf("WARN: Dropping WebSocket client for user %q: send buffer full.", c.userID)
		h.unregister(c)
		c.shutdown()
	}
}

func marshalEnvelope(msgType, contestID string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:      msgType,
		ContestID: contestID,
		Payload:   raw,
		SentAt:    time.Now().UTC(),
	})
}
