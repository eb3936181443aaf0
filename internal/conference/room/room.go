package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/aura-conference/sfu-server/internal/conference/ice"
	"github.com/aura-conference/sfu-server/internal/conference/sfu"
	"github.com/aura-conference/sfu-server/internal/conference/signaling"
)

// fanoutConcurrency bounds how many peers are attached to a freshly
// forwarded track concurrently, so one slow AddTrack/renegotiation doesn't
// serialize behind every other peer in a large room.
const fanoutConcurrency = 8

// iceFetchTimeout bounds how long admission waits on the ICE Credential
// Provider before treating the fetch as failed (spec §7).
const iceFetchTimeout = 5 * time.Second


// ErrRoomClosed is returned by Join once a Room has begun tearing down. The
// single-process design never actually tears a Room down (rooms live for
// the process lifetime, per Design Notes), so this exists for symmetry with
// a future multi-process deployment, not because it is ever produced today.
var ErrRoomClosed = errors.New("room: closed")

// liveSource pairs a relayed Track with the session that produced it, so
// Leave can drop exactly the tracks this peer originated.
type liveSource struct {
	track    *sfu.Track
	sourceID PeerID
}

// Room owns the three membership sets, the per-peer WebRTC session handles,
// and the live audio tracks flowing through it. waiting is disjoint from
// admins and admitted; a self-admitted admin is in both admins and admitted.
// All mutation is serialized by mu.
type Room struct {
	ID  string
	log *zap.Logger

	iceProvider ice.Provider

	mu         sync.Mutex
	admins     map[PeerID]*Session
	waiting    map[PeerID]*Session
	admitted   map[PeerID]*Session
	liveTracks []liveSource
}

func newRoom(id string, iceProvider ice.Provider, log *zap.Logger) *Room {
	return &Room{
		ID:          id,
		log:         log.With(zap.String("room_id", id)),
		iceProvider: iceProvider,
		admins:      make(map[PeerID]*Session),
		waiting:     make(map[PeerID]*Session),
		admitted:    make(map[PeerID]*Session),
	}
}

// Snapshot returns a read-only view of room membership counts; it is not
// used to make any decision. The tests read it; no log line emits it.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Admins:     len(r.admins),
		Waiting:    len(r.waiting),
		Admitted:   len(r.admitted),
		LiveTracks: len(r.liveTracks),
	}
}

// Join registers a new Peer Session according to its role. Admins enter
// admins and are immediately self-admitted; users enter waiting and are
// notified, with all current admins notified of the new waiter.
func (r *Room) Join(s *Session) error {
	if s.Role == RoleAdmin {
		r.mu.Lock()
		r.admins[s.ID] = s
		s.setState(StateRegisteredAdmin)
		waitingIDs := make([]PeerID, 0, len(r.waiting))
		for id := range r.waiting {
			waitingIDs = append(waitingIDs, id)
		}
		r.mu.Unlock()

		if err := r.admit(s); err != nil {
			r.log.Warn("self-admit failed", zap.Int64("peer_id", int64(s.ID)), zap.Error(err))
		}
		// Spec §4.7: a newly joined admin receives the current waiting
		// roster, preserving original_source/server.py's connect-time loop.
		for _, id := range waitingIDs {
			s.Channel.Send(signaling.NewWaiting(int64(id)))
		}
		return nil
	}

	r.mu.Lock()
	r.waiting[s.ID] = s
	s.setState(StateWaiting)
	admins := make([]*Session, 0, len(r.admins))
	for _, a := range r.admins {
		admins = append(admins, a)
	}
	r.mu.Unlock()

	s.Channel.Send(signaling.Waiting())
	for _, a := range admins {
		a.Channel.Send(signaling.NewWaiting(int64(s.ID)))
	}
	return nil
}

// Admit is authorized only when by is an admin (or admits itself). It moves
// target from waiting to admitted, or no-ops if target is not currently
// waiting — which makes a repeated Admit call, and an Admit racing a
// disconnect, both safely idempotent (spec §8).
func (r *Room) Admit(target PeerID, by *Session) error {
	if by.Role != RoleAdmin && by.ID != target {
		return nil // unauthorized, silently dropped per spec §4.3
	}

	r.mu.Lock()
	s, ok := r.waiting[target]
	if !ok {
		r.mu.Unlock()
		return nil // not waiting: already admitted, left, or never existed
	}
	delete(r.waiting, target)
	r.mu.Unlock()

	if err := r.admit(s); err != nil {
		// Best-effort retry path: put the peer back in the waiting set so
		// an admin can attempt Admit again (spec §7: credential provider
		// failure surfaces as a failed admission, not a lost peer).
		r.mu.Lock()
		r.waiting[s.ID] = s
		r.mu.Unlock()
		return err
	}
	return nil
}

// admit performs the actual handle creation and track attachment. The
// caller must already have removed s from waiting (or never placed it
// there, for admin self-admission).
func (r *Room) admit(s *Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), iceFetchTimeout)
	defer cancel()
	servers, err := r.iceProvider.Fetch(ctx)
	if err != nil {
		return err
	}

	pc, err := newPeerConnection(servers)
	if err != nil {
		return err
	}
	pc.OnICECandidate(s.onICECandidate)
	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		r.onNewTrack(s, remote)
	})

	r.mu.Lock()
	current := make([]liveSource, len(r.liveTracks))
	copy(current, r.liveTracks)
	r.mu.Unlock()

	for _, ls := range current {
		r.attachTrackToPeer(ls.track, s, pc)
	}

	s.markAdmitted(pc)

	r.mu.Lock()
	r.admitted[s.ID] = s
	r.mu.Unlock()

	s.Channel.Send(signaling.Admitted(int64(s.ID)))
	s.Channel.Send(signaling.ReadyForOffer())
	return nil
}

// Leave removes session from whichever set it occupies. If it was admitted,
// any live tracks it originated are dropped from the room's forwarding set.
// Idempotent.
func (r *Room) Leave(s *Session) {
	r.mu.Lock()
	delete(r.admins, s.ID)
	delete(r.waiting, s.ID)
	delete(r.admitted, s.ID)

	kept := r.liveTracks[:0:0]
	for _, ls := range r.liveTracks {
		if ls.sourceID != s.ID {
			kept = append(kept, ls)
		}
	}
	r.liveTracks = kept
	r.mu.Unlock()
}

// Broadcast delivers message to every admitted peer satisfying predicate,
// best-effort (see spec §7): a dead or slow recipient is skipped, it never
// aborts delivery to the rest.
func (r *Room) Broadcast(message interface{}, predicate func(*Session) bool) {
	r.mu.Lock()
	targets := make([]*Session, 0, len(r.admitted))
	for _, s := range r.admitted {
		if predicate == nil || predicate(s) {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()

	for _, s := range targets {
		s.Channel.Send(message)
	}
}

// onNewTrack is invoked (from pion's callback goroutine) when an admitted
// peer's PeerConnection receives a new inbound audio track. It registers
// the track as a live source and fans out a subscription to every other
// currently admitted peer, bounded to fanoutConcurrency concurrent
// attachments.
func (r *Room) onNewTrack(source *Session, remote *webrtc.TrackRemote) {
	track := sfu.NewTrack(remote, r.log)

	r.mu.Lock()
	r.liveTracks = append(r.liveTracks, liveSource{track: track, sourceID: source.ID})
	peers := make([]*Session, 0, len(r.admitted))
	for _, p := range r.admitted {
		if p.ID != source.ID {
			peers = append(peers, p)
		}
	}
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(context.Background())
	sem := semaphore.NewWeighted(fanoutConcurrency)
	for _, p := range peers {
		p := p
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil //nolint:nilerr // context cancellation just stops remaining fan-out
			}
			defer sem.Release(1)
			r.attachTrackToPeer(track, p, nil)
			return nil
		})
	}
	_ = g.Wait()
}

// attachTrackToPeer subscribes p to track and adds the resulting local
// track as an outbound sender on p's PeerConnection. pc may be supplied
// directly (during admission, before markAdmitted has published it) or
// looked up from the session otherwise.
func (r *Room) attachTrackToPeer(track *sfu.Track, p *Session, pc *webrtc.PeerConnection) {
	if pc == nil {
		p.mu.Lock()
		pc = p.pc
		p.mu.Unlock()
	}
	if pc == nil {
		return
	}
	local, err := webrtc.NewTrackLocalStaticRTP(track.Codec(), track.ID, track.StreamID())
	if err != nil {
		r.log.Warn("create local track failed", zap.Error(err))
		return
	}
	track.Subscribe(int64(p.ID), local)
	p.addSubscription(track)
	if _, err := pc.AddTrack(local); err != nil {
		r.log.Warn("add track to subscriber failed", zap.Error(err))
		track.Unsubscribe(int64(p.ID))
	}
}
