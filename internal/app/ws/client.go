package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Client is one WebSocket connection. Reads and writes each run on their
// own goroutine; writePump is the only writer on the connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   string
	send     chan []byte
	done     chan struct{}
	stop     sync.Once
	contests map[string]struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		contests: make(map[string]struct{}),
	}
}

// Serve registers the client and runs its pumps until the connection dies.
func (c *Client) Serve() {
	c.hub.register(c)
	go c.writePump()
	c.readPump()
}

// trySend queues data without blocking and reports whether it fit in the
// buffer. It never touches hub state: the hub decides what to do with a
// client that cannot keep up.
func (c *Client) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown tells writePump to close the connection. Safe to call from any
// goroutine, any number of times.
func (c *Client) shutdown() {
	c.stop.Do(func() { close(c.done) })
}

type inboundMessage struct {
	Type      string `json:"type"`
	ContestID string `json:"contest_id"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.shutdown()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WARN: WebSocket read error for user %s: %v", c.userID, err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case msgJoinContest:
			if msg.ContestID != "" {
				c.hub.join(c, msg.ContestID)
			}
		case msgLeaveContest:
			if msg.ContestID != "" {
				c.hub.leave(c, msg.ContestID)
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
