package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cabnet/internal/domain"
	"cabnet/internal/events"
	"cabnet/internal/logging"
	"cabnet/internal/realtime"
)

type rideMap map[string]*domain.Ride

func (m rideMap) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	if r, ok := m[id]; ok {
		return r, nil
	}
	return nil, errors.New("not found")
}

// gatedRides blocks GetByID until release is closed.
type gatedRides struct {
	ride    *domain.Ride
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRides) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	close(g.entered)
	<-g.release
	return g.ride, nil
}

type received struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

func newTestHub(t *testing.T) (*realtime.Hub, *httptest.Server) {
	t.Helper()
	hub := realtime.NewHub(rideMap{
		"r1": {ID: "r1", RiderID: "rider-a", DriverID: "driver-a", Status: domain.RideStatusAccepted},
	}, nil, logging.Discard())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := domain.Identity{ID: r.URL.Query().Get("id"), Role: domain.ActorRole(r.URL.Query().Get("role"))}
		if err := hub.ServeWS(w, r, id); err != nil {
			t.Logf("serve: %v", err)
		}
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, id string, role domain.ActorRole) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?id=" + id + "&role=" + string(role)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if msg := read(t, conn); msg.Event != realtime.EventConnected {
		t.Fatalf("expected connected event, got %+v", msg)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg received
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestHub_PersonalAndDispatchChannels(t *testing.T) {
	hub, srv := newTestHub(t)
	driver := dial(t, srv, "driver-a", domain.RoleDriver)
	rider := dial(t, srv, "rider-a", domain.RoleRider)

	if hub.Subscribers(events.DispatchChannel) != 1 {
		t.Fatalf("expected driver on dispatch, got %d", hub.Subscribers(events.DispatchChannel))
	}

	_ = hub.Publish(context.Background(), events.DispatchChannel, events.RideRequested, map[string]string{"rideId": "r2"})
	if msg := read(t, driver); msg.Event != events.RideRequested || msg.Channel != events.DispatchChannel {
		t.Errorf("unexpected dispatch delivery %+v", msg)
	}

	_ = hub.Publish(context.Background(), events.RiderChannel("rider-a"), events.RideStatusUpdated, map[string]string{"status": "completed"})
	if msg := read(t, rider); msg.Event != events.RideStatusUpdated {
		t.Errorf("unexpected rider delivery %+v", msg)
	}
}

func TestHub_JoinRideRequiresParty(t *testing.T) {
	hub, srv := newTestHub(t)
	rider := dial(t, srv, "rider-a", domain.RoleRider)
	stranger := dial(t, srv, "rider-z", domain.RoleRider)

	_ = stranger.WriteJSON(map[string]string{"type": realtime.MessageJoinRide, "rideId": "r1"})
	if msg := read(t, stranger); msg.Event != realtime.EventError {
		t.Fatalf("stranger should be rejected, got %+v", msg)
	}

	_ = rider.WriteJSON(map[string]string{"type": realtime.MessageJoinRide, "rideId": "r1"})
	if msg := read(t, rider); msg.Event != realtime.EventJoined || msg.Channel != events.RideChannel("r1") {
		t.Fatalf("expected joined-ride, got %+v", msg)
	}
	if hub.Subscribers(events.RideChannel("r1")) != 1 {
		t.Fatalf("expected one ride subscriber, got %d", hub.Subscribers(events.RideChannel("r1")))
	}

	_ = hub.Publish(context.Background(), events.RideChannel("r1"), events.RideAccepted, map[string]string{"rideId": "r1"})
	if msg := read(t, rider); msg.Event != events.RideAccepted {
		t.Errorf("expected ride-accepted, got %+v", msg)
	}

	_ = rider.WriteJSON(map[string]string{"type": realtime.MessageLeaveRide, "rideId": "r1"})
	if msg := read(t, rider); msg.Event != realtime.EventLeft {
		t.Fatalf("expected left-ride, got %+v", msg)
	}
	if hub.Subscribers(events.RideChannel("r1")) != 0 {
		t.Error("leave-ride should unsubscribe")
	}
}

func TestHub_DeliverRelaysRawEvent(t *testing.T) {
	hub, srv := newTestHub(t)
	driver := dial(t, srv, "driver-a", domain.RoleDriver)

	raw := []byte(`{"channel":"driver-driver-a","event":"ride-status-updated","data":{"status":"cancelled"}}`)
	hub.Deliver(events.Envelope{Channel: events.DriverChannel("driver-a")}, raw)

	msg := read(t, driver)
	if msg.Event != events.RideStatusUpdated || !strings.Contains(string(msg.Data), "cancelled") {
		t.Errorf("unexpected relay %+v", msg)
	}
}

func TestHub_UnknownMessage(t *testing.T) {
	_, srv := newTestHub(t)
	rider := dial(t, srv, "rider-a", domain.RoleRider)

	_ = rider.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`))
	if msg := read(t, rider); msg.Event != realtime.EventError {
		t.Errorf("expected error event, got %+v", msg)
	}
}

func TestHub_DisconnectUnsubscribes(t *testing.T) {
	hub, srv := newTestHub(t)
	driver := dial(t, srv, "driver-a", domain.RoleDriver)
	driver.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(events.DispatchChannel) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed client still subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_DisconnectDuringJoinDoesNotLeakClient(t *testing.T) {
	rides := &gatedRides{
		ride:    &domain.Ride{ID: "r1", RiderID: "rider-a", Status: domain.RideStatusAccepted},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	hub := realtime.NewHub(rides, nil, logging.Discard())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, domain.Identity{ID: "rider-a", Role: domain.RoleRider})
	}))
	t.Cleanup(srv.Close)

	rider := dial(t, srv, "rider-a", domain.RoleRider)
	_ = rider.WriteJSON(map[string]string{"type": realtime.MessageJoinRide, "rideId": "r1"})

	select {
	case <-rides.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("join never reached the party check")
	}

	// The client goes away while the ride lookup is in flight.
	hub.Close()
	if hub.Subscribers(events.RiderChannel("rider-a")) != 0 {
		t.Fatal("closed client still on its personal channel")
	}
	close(rides.release)

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if n := hub.Subscribers(events.RideChannel("r1")); n != 0 {
			t.Fatalf("disconnected client was added to the ride channel (%d subscribers)", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
