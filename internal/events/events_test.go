package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, channel, event string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, channel+"/"+event)
	return r.err
}

func TestMultiPublisher_AttemptsAll(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	ok := &recordingPublisher{}
	m := NewMultiPublisher(failing, nil, ok)

	err := m.Publish(context.Background(), RideChannel("r1"), RideAccepted, nil)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(ok.events) != 1 || ok.events[0] != "ride-r1/ride-accepted" {
		t.Errorf("expected second publisher to receive the event, got %v", ok.events)
	}
}

func TestRoutingKey(t *testing.T) {
	if got := RoutingKey(RideStatusUpdated); got != "ride.status.updated" {
		t.Errorf("expected ride.status.updated, got %s", got)
	}
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := newAMQPPublisherWithChannel(ch, "cabnet.events", slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := p.Publish(context.Background(), DispatchChannel, RideRequested, map[string]string{"rideId": "r1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.exchange != "cabnet.events" || ch.key != "ride.requested" {
		t.Errorf("unexpected exchange/key: %s %s", ch.exchange, ch.key)
	}
	if ch.msg.Headers["channel"] != DispatchChannel {
		t.Errorf("expected channel header, got %v", ch.msg.Headers)
	}

	var env struct {
		Channel string            `json:"channel"`
		Event   string            `json:"event"`
		Data    map[string]string `json:"data"`
	}
	if err := json.Unmarshal(ch.msg.Body, &env); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if env.Data["rideId"] != "r1" || env.Event != RideRequested {
		t.Errorf("unexpected envelope: %+v", env)
	}
}
