// Package sfu implements the Media Relay: per-source audio track
// subscription with latest-frame-wins fan-out to N sinks.
package sfu

import (
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// rtpBufferSize is MTU-friendly, matching the UDP path RTP travels over.
const rtpBufferSize = 1500

var rtpBufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, rtpBufferSize)
		return &b
	},
}

// Track is a live audio source flowing from one admitted peer. It owns the
// goroutine that reads RTP off the underlying pion track and fans copies out
// to every attached Sink.
type Track struct {
	ID     string
	remote *webrtc.TrackRemote
	log    *zap.Logger

	mu    sync.Mutex
	sinks map[int64]*Sink

	stopped chan struct{}
	once    sync.Once
}

// NewTrack wraps a freshly received remote audio track and starts relaying it.
func NewTrack(remote *webrtc.TrackRemote, log *zap.Logger) *Track {
	t := &Track{
		ID:      remote.ID(),
		remote:  remote,
		log:     log,
		sinks:   make(map[int64]*Sink),
		stopped: make(chan struct{}),
	}
	go t.readAndForward()
	return t
}

// Codec returns the RTP codec capability of the underlying source, needed to
// construct compatible local tracks for subscribers.
func (t *Track) Codec() webrtc.RTPCodecCapability {
	return t.remote.Codec().RTPCodecCapability
}

// StreamID returns the source's stream id, reused on every subscriber track
// so remote peers group them under the same MediaStream.
func (t *Track) StreamID() string {
	return t.remote.StreamID()
}

// Subscribe creates a fresh sink for peerID. Sinks of different peers are
// independent (no reference counting); a second Subscribe for the same peerID
// replaces that peer's sink and stops the one it replaces.
func (t *Track) Subscribe(peerID int64, local *webrtc.TrackLocalStaticRTP) *Sink {
	sink := newSink(local)
	t.mu.Lock()
	prev, hadPrev := t.sinks[peerID]
	t.sinks[peerID] = sink
	t.mu.Unlock()
	if hadPrev {
		prev.close()
	}
	go sink.run()
	return sink
}

// Unsubscribe detaches and stops the sink owned by peerID, if any. Idempotent.
func (t *Track) Unsubscribe(peerID int64) {
	t.mu.Lock()
	sink, ok := t.sinks[peerID]
	delete(t.sinks, peerID)
	t.mu.Unlock()
	if ok {
		sink.close()
	}
}

// Ended reports whether the source has completed.
func (t *Track) Ended() <-chan struct{} {
	return t.stopped
}

func (t *Track) readAndForward() {
	defer t.finish()
	for {
		ptr := rtpBufferPool.Get().(*[]byte)
		buf := *ptr
		n, _, err := t.remote.Read(buf)
		if err != nil {
			rtpBufferPool.Put(ptr)
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		rtpBufferPool.Put(ptr)

		t.mu.Lock()
		sinks := make([]*Sink, 0, len(t.sinks))
		for _, s := range t.sinks {
			sinks = append(sinks, s)
		}
		t.mu.Unlock()

		for _, s := range sinks {
			s.push(frame)
		}
	}
}

func (t *Track) finish() {
	t.once.Do(func() { close(t.stopped) })
	t.mu.Lock()
	sinks := make([]*Sink, 0, len(t.sinks))
	for _, s := range t.sinks {
		sinks = append(sinks, s)
	}
	t.sinks = nil
	t.mu.Unlock()
	for _, s := range sinks {
		s.close()
	}
}
