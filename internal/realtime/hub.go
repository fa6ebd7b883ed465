// Package realtime pushes ride lifecycle events to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cabnet/internal/domain"
	"cabnet/internal/events"
)

// Client control messages.
const (
	MessageJoinRide  = "join-ride"
	MessageLeaveRide = "leave-ride"
)

// Server control events.
const (
	EventConnected = "connected"
	EventJoined    = "joined-ride"
	EventLeft      = "left-ride"
	EventError     = "error"
)

// ErrNotParty is returned when a client joins a ride it does not belong to.
var ErrNotParty = errors.New("not a party to this ride")

var errClientGone = errors.New("client disconnected")

// RideReader loads rides for the join-ride party check.
type RideReader interface {
	GetByID(ctx context.Context, id string) (*domain.Ride, error)
}

// Hub tracks connected clients and the channels they joined. It implements
// events.Publisher for in-process delivery and Deliver for events relayed
// from the shared event bus.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]bool
	channels map[string]map[*Client]bool

	rides    RideReader
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates a Hub. allowedOrigins restricts the websocket handshake;
// an empty list or "*" accepts any origin.
func NewHub(rides RideReader, allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		clients:  make(map[*Client]bool),
		channels: make(map[string]map[*Client]bool),
		rides:    rides,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeWS upgrades the request and registers the caller. The client joins its
// personal channel immediately; drivers also join the dispatch channel.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, id domain.Identity) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}

	c := newClient(h, conn, id)
	joined := h.register(c)

	go c.writePump()
	go c.readPump()

	c.reply(EventConnected, "", map[string]any{"channels": joined})
	h.logger.Info("websocket connected",
		slog.String("identity_id", id.ID),
		slog.String("role", string(id.Role)),
	)
	return nil
}

// Publish implements events.Publisher.
func (h *Hub) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(events.Envelope{
		Channel:    channel,
		Event:      event,
		Data:       payload,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}
	h.broadcast(channel, data)
	return nil
}

// Deliver forwards an event received from the event bus.
func (h *Hub) Deliver(env events.Envelope, raw []byte) {
	h.broadcast(env.Channel, raw)
}

// Subscribers returns the number of clients joined to channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) broadcast(channel string, data []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(data) {
			h.logger.Warn("dropping event for slow client",
				slog.String("channel", channel),
				slog.String("identity_id", c.identity.ID),
			)
		}
	}
}

func (h *Hub) register(c *Client) []string {
	var personal []string
	switch c.identity.Role {
	case domain.RoleRider:
		personal = []string{events.RiderChannel(c.identity.ID)}
	case domain.RoleDriver:
		personal = []string{events.DriverChannel(c.identity.ID), events.DispatchChannel}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	for _, ch := range personal {
		h.joinLocked(c, ch)
	}
	return personal
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	for ch := range c.channels {
		h.leaveLocked(c, ch)
	}
}

// joinRide subscribes c to a ride channel after checking it is a party.
func (h *Hub) joinRide(ctx context.Context, c *Client, rideID string) (string, error) {
	if rideID == "" {
		return "", errors.New("rideId is required")
	}
	if c.identity.Role != domain.RoleSystem {
		ride, err := h.rides.GetByID(ctx, rideID)
		if err != nil {
			return "", ErrNotParty
		}
		if !ride.HasParty(c.identity.ID) {
			return "", ErrNotParty
		}
	}

	channel := events.RideChannel(rideID)
	h.mu.Lock()
	defer h.mu.Unlock()
	// The client may have disconnected during the party check.
	if !h.clients[c] {
		return "", errClientGone
	}
	h.joinLocked(c, channel)
	return channel, nil
}

func (h *Hub) leaveRide(c *Client, rideID string) string {
	channel := events.RideChannel(rideID)
	h.mu.Lock()
	h.leaveLocked(c, channel)
	h.mu.Unlock()
	return channel
}

func (h *Hub) joinLocked(c *Client, channel string) {
	members := h.channels[channel]
	if members == nil {
		members = make(map[*Client]bool)
		h.channels[channel] = members
	}
	members[c] = true
	c.channels[channel] = true
}

func (h *Hub) leaveLocked(c *Client, channel string) {
	if members := h.channels[channel]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(c.channels, channel)
}
