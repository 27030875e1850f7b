package hub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type testWriter struct {
	messages [][]byte
	fail     bool
	closed   bool
}

func (w *testWriter) Write(message []byte) error {
	if w.fail {
		return errors.New("broken pipe")
	}
	w.messages = append(w.messages, message)
	return nil
}

func (w *testWriter) Close() error {
	w.closed = true
	return nil
}

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	h := New(nil)
	w1 := &testWriter{}
	c1 := NewConnection(w1)

	h.Register(c1)
	if n := h.Broadcast([]byte("x")); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}

	h.Unregister(c1)
	h.Broadcast([]byte("x"))
	if len(w1.messages) != 1 {
		t.Fatalf("expected no more writes, got %d", len(w1.messages))
	}
}

func TestHub_RemovesFailedConnections(t *testing.T) {
	h := New(nil)
	w1 := &testWriter{fail: true}
	h.Register(NewConnection(w1))

	h.Broadcast([]byte("x"))
	if !w1.closed {
		t.Fatalf("expected failed connection closed")
	}
	if h.Len() != 0 {
		t.Fatalf("expected failed connection removed, %d left", h.Len())
	}
}

func TestHub_NavigateReachesEveryPage(t *testing.T) {
	h := New(nil)
	w1, w2 := &testWriter{}, &testWriter{}
	h.Register(NewConnection(w1))
	h.Register(NewConnection(w2))

	h.Navigate(context.Background(), "/login", true)

	for i, w := range []*testWriter{w1, w2} {
		if len(w.messages) != 1 {
			t.Fatalf("page %d: expected 1 message, got %d", i, len(w.messages))
		}
		var msg NavigateMessage
		if err := json.Unmarshal(w.messages[0], &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg != (NavigateMessage{Type: "navigate", To: "/login", Replace: true}) {
			t.Fatalf("unexpected message %+v", msg)
		}
	}
}
