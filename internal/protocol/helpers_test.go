package protocol

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/danmuck/libquassel/internal/protocol/frame"
	"github.com/danmuck/libquassel/internal/protocol/qtds"
)

// pipe returns the client end and the core end of an in-memory stream.
func pipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	client, core := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = core.Close()
	})
	return client, core
}

func startRun(t *testing.T, p Protocol) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func nextEvent(t *testing.T, p Protocol) Event {
	t.Helper()
	select {
	case ev, ok := <-p.Events():
		if !ok {
			t.Fatalf("event channel closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func drain(t *testing.T, p Protocol) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-p.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out draining events, got %d", len(out))
		}
	}
}

// sendList and sendVariant may run on helper goroutines, so they report
// errors instead of failing the test.
func sendList(w io.Writer, list []any) error {
	payload, err := qtds.MarshalList(list)
	if err != nil {
		return err
	}
	return frame.WriteFrame(w, payload, frame.DefaultLimits())
}

func sendVariant(w io.Writer, v any) error {
	payload, err := qtds.Marshal(v)
	if err != nil {
		return err
	}
	return frame.WriteFrame(w, payload, frame.DefaultLimits())
}

// readAsync reads one frame from r on another goroutine; net.Pipe writes
// block until the peer reads.
func readAsync(r net.Conn) <-chan []byte {
	out := make(chan []byte, 1)
	go func() {
		payload, err := frame.ReadFrame(r, frame.DefaultLimits())
		if err != nil {
			close(out)
			return
		}
		out <- payload
	}()
	return out
}

func await(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatalf("peer read failed")
		}
		return b
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
	return nil
}
