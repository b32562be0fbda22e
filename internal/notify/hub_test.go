package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewHub(t *testing.T) {
	hub := newTestHub()
	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.clients == nil {
		t.Error("clients map is nil")
	}
}

func TestHubRunStopsOnContextCancel(t *testing.T) {
	hub := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after context cancel")
	}
}

func TestHubPublishAfterStop(t *testing.T) {
	hub := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	// 停止後のPublishはブロックせず黙って破棄される
	finished := make(chan struct{})
	go func() {
		hub.Publish(AuthEvent{Type: EventSignedOut, UserID: "user-1"})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish() blocked after hub stopped")
	}
}

func TestHubConnectionCountEmpty(t *testing.T) {
	hub := newTestHub()
	if got := hub.ConnectionCount("nobody"); got != 0 {
		t.Errorf("ConnectionCount() = %d, want 0", got)
	}
}

func TestEventConstants(t *testing.T) {
	if EventSignedIn != "SIGNED_IN" {
		t.Errorf("EventSignedIn = %q", EventSignedIn)
	}
	if EventSignedOut != "SIGNED_OUT" {
		t.Errorf("EventSignedOut = %q", EventSignedOut)
	}
}
