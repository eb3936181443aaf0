package sfu

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
)

func newTestLocalTrack(t *testing.T) *webrtc.TrackLocalStaticRTP {
	t.Helper()
	local, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"test-track", "test-stream",
	)
	if err != nil {
		t.Fatalf("NewTrackLocalStaticRTP() error = %v", err)
	}
	return local
}

func TestSinkPushReplacesQueuedFrame(t *testing.T) {
	t.Parallel()
	s := newSink(newTestLocalTrack(t))

	s.push([]byte("first"))
	s.push([]byte("second"))

	select {
	case got := <-s.frames:
		if string(got) != "second" {
			t.Fatalf("expected latest frame to win, got %q", got)
		}
	default:
		t.Fatal("expected a queued frame")
	}

	select {
	case extra := <-s.frames:
		t.Fatalf("expected queue to hold exactly one frame, found extra %q", extra)
	default:
	}
}

func TestSinkPushNeverBlocks(t *testing.T) {
	t.Parallel()
	s := newSink(newTestLocalTrack(t))
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.push([]byte{byte(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push() blocked under rapid-fire writes with no reader draining")
	}
}

func TestSinkRunDrainsFramesUntilClosed(t *testing.T) {
	t.Parallel()
	s := newSink(newTestLocalTrack(t))
	go s.run()

	for i := 0; i < 10; i++ {
		s.push([]byte{byte(i)})
	}

	s.close()
	s.close() // idempotent

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("close() did not signal done")
	}
}
