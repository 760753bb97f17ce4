package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/samtale/samtale/internal/protocol"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHubRegisterUnregister(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hub := NewHub(nil, logger)
	go hub.Run()

	client := &Client{
		hub:       hub,
		send:      make(chan []byte, 1),
		done:      make(chan struct{}),
		sessionID: "session-1",
		logger:    logger,
	}

	hub.register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 }, "client never registered")

	hub.unregister <- client
	waitFor(t, func() bool { return hub.ClientCount() == 0 }, "client never unregistered")

	// The send channel is closed on unregister.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("Expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Error("Send channel was not closed")
	}
}

func TestHubReady(t *testing.T) {
	if NewHub(nil, zaptest.NewLogger(t)).Ready() {
		t.Error("Hub without a conversation service must not be ready")
	}
}

func TestDispatchHandshakeAcknowledges(t *testing.T) {
	logger := zaptest.NewLogger(t)
	client := &Client{
		send:   make(chan []byte, 1),
		done:   make(chan struct{}),
		logger: logger,
	}

	frame := protocol.Encode(protocol.MsgHandshake, []byte(`{"client":"test"}`))
	if err := client.dispatch(context.Background(), frame); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	select {
	case out := <-client.send:
		tag, payload, err := protocol.Decode(out)
		if err != nil {
			t.Fatalf("Decode ack: %v", err)
		}
		if tag != protocol.MsgStatus {
			t.Errorf("Expected STATUS ack, got %s", tag)
		}
		if string(payload) != `{"status":"ready"}` {
			t.Errorf("Unexpected ack payload: %s", payload)
		}
	default:
		t.Fatal("Expected an acknowledgment frame")
	}
}

func TestDispatchUnknownTagFails(t *testing.T) {
	client := &Client{
		send:   make(chan []byte, 1),
		done:   make(chan struct{}),
		logger: zaptest.NewLogger(t),
	}

	err := client.dispatch(context.Background(), []byte{0x42, 0x00})
	if !errors.Is(err, protocol.ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
}

func TestDispatchOutboundTagIsIgnored(t *testing.T) {
	client := &Client{
		send:   make(chan []byte, 1),
		done:   make(chan struct{}),
		logger: zaptest.NewLogger(t),
	}

	frame := protocol.StatusFrame("ready")
	if err := client.dispatch(context.Background(), frame); err != nil {
		t.Fatalf("Recognized but unhandled tags must be ignored: %v", err)
	}

	select {
	case <-client.send:
		t.Error("No frame should be sent for an ignored tag")
	default:
	}
}

func TestEnqueueFailsAfterDone(t *testing.T) {
	client := &Client{
		send: make(chan []byte), // unbuffered so enqueue must select done
		done: make(chan struct{}),
	}
	close(client.done)

	if err := client.enqueue(protocol.StatusFrame("ready")); err == nil {
		t.Error("Expected enqueue to fail once the connection is done")
	}
}
