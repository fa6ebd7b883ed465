package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cabnet/internal/domain"
	"cabnet/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
	joinTimeout    = 5 * time.Second
)

// message is a client control message.
type message struct {
	Type   string `json:"type"`
	RideID string `json:"rideId"`
}

// Client is one websocket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity domain.Identity
	send     chan []byte

	// channels is guarded by hub.mu.
	channels map[string]bool

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(h *Hub, conn *websocket.Conn, id domain.Identity) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		identity: id,
		send:     make(chan []byte, sendBuffer),
		channels: make(map[string]bool),
		done:     make(chan struct{}),
	}
}

// enqueue queues data without blocking. It reports false when the client
// is gone or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) reply(event, channel string, data any) {
	raw, err := json.Marshal(events.Envelope{
		Channel:    channel,
		Event:      event,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	c.enqueue(raw)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.hub.unregister(c)
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket closed unexpectedly",
					slog.String("identity_id", c.identity.ID),
					slog.Any("error", err),
				)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.reply(EventError, "", map[string]string{"message": "malformed message"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg message) {
	switch msg.Type {
	case MessageJoinRide:
		ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
		channel, err := c.hub.joinRide(ctx, c, msg.RideID)
		cancel()
		if err != nil {
			c.reply(EventError, "", map[string]string{"message": err.Error(), "rideId": msg.RideID})
			return
		}
		c.reply(EventJoined, channel, map[string]string{"rideId": msg.RideID})
	case MessageLeaveRide:
		channel := c.hub.leaveRide(c, msg.RideID)
		c.reply(EventLeft, channel, map[string]string{"rideId": msg.RideID})
	default:
		c.reply(EventError, "", map[string]string{"message": "unknown message type"})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
