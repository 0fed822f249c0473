package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/medifile/medifile/internal/platform/notifier"
)

func newTestClient() *Client {
	return &Client{ID: "test-client", Send: make(chan []byte, 16)}
}

func TestStream_RegisteredClientReceivesFrame(t *testing.T) {
	hub := notifier.NewHub()
	s := NewStream(hub)

	client := newTestClient()
	s.Register(client)
	defer s.Unregister(client)

	hub.Publish()

	select {
	case raw := <-client.Send:
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if frame.Type != FrameTypeChanged {
			t.Errorf("expected frame type %q, got %q", FrameTypeChanged, frame.Type)
		}
		if frame.Timestamp.IsZero() {
			t.Error("expected non-zero timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("expected a change frame, got none")
	}
}

func TestStream_UnregisteredClientReceivesNothing(t *testing.T) {
	hub := notifier.NewHub()
	s := NewStream(hub)

	client := newTestClient()
	s.Register(client)
	s.Unregister(client)

	hub.Publish()

	select {
	case raw := <-client.Send:
		t.Errorf("expected no frame after unregister, got %q", raw)
	default:
	}

	select {
	case <-client.Done():
	default:
		t.Error("expected done channel to be closed after unregister")
	}
}

func TestStream_UnregisterDuringBroadcast(t *testing.T) {
	// A broadcast snapshots subscriber callbacks under the hub lock and
	// invokes them outside it, so a client may be unregistered between
	// the snapshot and its delivery. That delivery must not panic.
	for i := 0; i < 50; i++ {
		hub := notifier.NewHub()
		s := NewStream(hub)

		entered := make(chan struct{})
		gate := make(chan struct{})
		sub := hub.Subscribe(func() {
			entered <- struct{}{}
			<-gate
		})

		client := newTestClient()
		s.Register(client)

		done := make(chan struct{})
		go func() {
			defer close(done)
			hub.Publish()
		}()

		<-entered
		s.Unregister(client)
		close(gate)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Publish did not complete")
		}
		sub.Release()
	}
}

func TestStream_UnregisterIdempotent(t *testing.T) {
	hub := notifier.NewHub()
	s := NewStream(hub)

	client := newTestClient()
	s.Register(client)
	s.Unregister(client)
	s.Unregister(client)

	if got := s.ClientCount(); got != 0 {
		t.Errorf("expected client count 0, got %d", got)
	}
	if got := hub.SubscriberCount(); got != 0 {
		t.Errorf("expected subscriber count 0, got %d", got)
	}
}

func TestStream_AllClientsNotified(t *testing.T) {
	hub := notifier.NewHub()
	s := NewStream(hub)

	a := newTestClient()
	b := newTestClient()
	s.Register(a)
	s.Register(b)
	defer s.Unregister(a)
	defer s.Unregister(b)

	hub.Publish()

	for _, client := range []*Client{a, b} {
		select {
		case <-client.Send:
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive a frame", client.ID)
		}
	}
}

func TestStream_FullBufferDropsFrame(t *testing.T) {
	hub := notifier.NewHub()
	s := NewStream(hub)

	client := &Client{ID: "slow", Send: make(chan []byte)}
	s.Register(client)
	defer s.Unregister(client)

	// Unbuffered channel with no reader: Publish must not block.
	done := make(chan struct{})
	go func() {
		hub.Publish()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow client")
	}
}
