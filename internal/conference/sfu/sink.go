package sfu

import "github.com/pion/webrtc/v3"

// Sink is a single consumer's subscription to a Track. It never buffers more
// than one frame: a frame arriving while the previous one is still queued
// replaces it, so a slow reader drops old frames instead of growing a queue.
type Sink struct {
	local  *webrtc.TrackLocalStaticRTP
	frames chan []byte
	done   chan struct{}
}

func newSink(local *webrtc.TrackLocalStaticRTP) *Sink {
	return &Sink{
		local:  local,
		frames: make(chan []byte, 1),
		done:   make(chan struct{}),
	}
}

// push delivers the latest frame, discarding whatever was queued and not yet
// written. Never blocks.
func (s *Sink) push(frame []byte) {
	select {
	case <-s.frames:
	default:
	}
	select {
	case s.frames <- frame:
	default:
	}
}

func (s *Sink) run() {
	for {
		select {
		case frame := <-s.frames:
			_, _ = s.local.Write(frame)
		case <-s.done:
			return
		}
	}
}

func (s *Sink) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
