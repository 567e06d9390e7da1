package ws

import (
	"encoding/json"
	"testing"
	"time"
)

func testClient(hub *Hub, userID string) *Client {
	return NewClient(hub, nil, userID)
}

func recvEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		return env
	default:
		t.Fatal("no message in send buffer")
		return Envelope{}
	}
}

func TestBroadcastToContestReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub()
	inRoom := testClient(hub, "u1")
	outside := testClient(hub, "u2")
	hub.register(inRoom)
	hub.register(outside)
	hub.join(inRoom, "c1")

	hub.BroadcastToContest("c1", MsgLeaderboardUpdate, map[string]int{"rank": 1})

	env := recvEnvelope(t, inRoom)
	if env.Type != MsgLeaderboardUpdate || env.ContestID != "c1" {
		t.Errorf("envelope = %+v", env)
	}
	select {
	case <-outside.send:
		t.Error("non-member received a room broadcast")
	default:
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub()
	c := testClient(hub, "u1")
	hub.register(c)
	hub.join(c, "c1")
	hub.leave(c, "c1")

	hub.BroadcastToContest("c1", MsgAnnouncement, "contest extended")
	select {
	case <-c.send:
		t.Error("client received broadcast after leaving the room")
	default:
	}
}

func TestSendToUserHitsAllConnections(t *testing.T) {
	hub := NewHub()
	first := testClient(hub, "u1")
	second := testClient(hub, "u1")
	other := testClient(hub, "u2")
	hub.register(first)
	hub.register(second)
	hub.register(other)

	hub.SendToUser("u1", MsgSubmissionResult, map[string]string{"verdict": "accepted"})

	for _, c := range []*Client{first, second} {
		env := recvEnvelope(t, c)
		if env.Type != MsgSubmissionResult {
			t.Errorf("type = %s, want %s", env.Type, MsgSubmissionResult)
		}
	}
	select {
	case <-other.send:
		t.Error("message leaked to another user")
	default:
	}
}

func TestBroadcastDropsSlowConsumerWithoutBlocking(t *testing.T) {
	hub := NewHub()
	slow := testClient(hub, "u1")
	fast := testClient(hub, "u2")
	hub.register(slow)
	hub.register(fast)
	hub.join(slow, "c1")
	hub.join(fast, "c1")

	for i := 0; i < sendBuffer; i++ {
		slow.send <- []byte("backlog")
	}

	finished := make(chan struct{})
	go func() {
		hub.BroadcastToContest("c1", MsgLeaderboardUpdate, map[string]int{"seq": 1})
		hub.BroadcastToContest("c1", MsgLeaderboardUpdate, map[string]int{"seq": 2})
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow consumer")
	}

	hub.mu.RLock()
	_, still := hub.rooms["c1"][slow]
	hub.mu.RUnlock()
	if still {
		t.Error("slow client is still in the room after being dropped")
	}
	select {
	case <-slow.done:
	default:
		t.Error("slow client was not shut down")
	}

	// The healthy client saw both broadcasts.
	for want := 1; want <= 2; want++ {
		env := recvEnvelope(t, fast)
		var payload map[string]int
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if payload["seq"] != want {
			t.Errorf("seq = %d, want %d", payload["seq"], want)
		}
	}
}

func TestSlowUserConnectionDroppedOnDirectSend(t *testing.T) {
	hub := NewHub()
	stuck := testClient(hub, "u1")
	healthy := testClient(hub, "u1")
	hub.register(stuck)
	hub.register(healthy)

	for i := 0; i < sendBuffer; i++ {
		stuck.send <- []byte("backlog")
	}

	finished := make(chan struct{})
	go func() {
		hub.SendToUser("u1", MsgSubmissionResult, map[string]string{"verdict": "accepted"})
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("SendToUser blocked on a slow connection")
	}

	hub.mu.RLock()
	_, still := hub.users["u1"][stuck]
	hub.mu.RUnlock()
	if still {
		t.Error("stuck connection is still registered")
	}
	if env := recvEnvelope(t, healthy); env.Type != MsgSubmissionResult {
		t.Errorf("healthy connection got %s, want %s", env.Type, MsgSubmissionResult)
	}
}

func TestUnregisterRemovesFromRooms(t *testing.T) {
	hub := NewHub()
	c := testClient(hub, "u1")
	hub.register(c)
	hub.join(c, "c1")
	hub.unregister(c)

	hub.BroadcastToContest("c1", MsgAnnouncement, "x")
	select {
	case <-c.send:
		t.Error("unregistered client received broadcast")
	default:
	}
}
