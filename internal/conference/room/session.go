package room

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/aura-conference/sfu-server/internal/conference/sfu"
	"github.com/aura-conference/sfu-server/internal/conference/signaling"
)

// Session is a per-connection coordinator: one reader goroutine (owned by
// the Channel) feeds Run's single dispatch loop, so exactly one inbound
// message is ever in flight for a given peer.
type Session struct {
	ID      PeerID
	Role    Role
	Channel signaling.Channel
	log     *zap.Logger

	room *Room

	mu         sync.Mutex
	state      State
	pc         *webrtc.PeerConnection
	remoteSet  bool
	pendingICE []webrtc.ICECandidateInit
	subs       map[string]*sfu.Track // tracks this session currently receives

	admittedCh chan struct{}
	admitOnce  sync.Once
}

// NewSession constructs a Peer Session for a just-accepted connection. It is
// not yet registered with any Room; call Run to drive its lifecycle.
func NewSession(id PeerID, r Role, ch signaling.Channel, rm *Room, log *zap.Logger) *Session {
	return &Session{
		ID:         id,
		Role:       r,
		Channel:    ch,
		log:        log.With(zap.Int64("peer_id", int64(id)), zap.String("role", string(r))),
		room:       rm,
		state:      StateAuthenticating,
		subs:       make(map[string]*sfu.Track),
		admittedCh: make(chan struct{}),
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// markAdmitted closes the admission gate exactly once and assigns the
// session its WebRTC handle. Called by Room during admission, without
// holding the Room's lock; the session's own mu guards the fields.
func (s *Session) markAdmitted(pc *webrtc.PeerConnection) {
	s.mu.Lock()
	s.pc = pc
	s.state = StateAdmitted
	s.mu.Unlock()
	s.admitOnce.Do(func() { close(s.admittedCh) })
}

// Run drives the session through its full lifecycle: join, await admission,
// then process inbound messages one at a time until the transport closes.
func (s *Session) Run() {
	defer s.teardown()

	if err := s.room.Join(s); err != nil {
		s.log.Warn("join rejected", zap.Error(err))
		return
	}

	select {
	case <-s.admittedCh:
	case <-s.Channel.Done():
		return
	}

	for {
		inbound, err := s.Channel.Recv()
		if err != nil {
			return
		}
		s.dispatch(inbound)
	}
}

// teardown releases every resource this session acquired, in the order
// mandated by spec §4.2: leave membership sets, stop outbound senders
// (subscriptions), close the WebRTC handle, close the channel.
func (s *Session) teardown() {
	s.setState(StateClosing)
	s.room.Leave(s)

	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	pc := s.pc
	s.mu.Unlock()

	for trackID, track := range subs {
		track.Unsubscribe(int64(s.ID))
		_ = trackID
	}
	if pc != nil {
		_ = pc.Close()
	}
	_ = s.Channel.Close()
	s.setState(StateClosed)
}

func (s *Session) dispatch(msg signaling.Inbound) {
	switch msg.Type {
	case signaling.TypeOffer:
		var m signaling.OfferMessage
		if json.Unmarshal(msg.Raw, &m) == nil {
			s.handleOffer(m.SDP)
		}
	case signaling.TypeICE:
		var m signaling.ICEMessage
		if json.Unmarshal(msg.Raw, &m) == nil {
			s.handleICE(m.Candidate)
		}
	case signaling.TypeChat:
		var m signaling.ChatMessage
		if json.Unmarshal(msg.Raw, &m) == nil {
			s.room.Broadcast(signaling.Chat(m.From, m.Text), func(*Session) bool { return true })
		}
	case signaling.TypeAdmit:
		if s.Role != RoleAdmin {
			return // admin-only, silently dropped
		}
		var m signaling.AdmitMessage
		if json.Unmarshal(msg.Raw, &m) == nil {
			if err := s.room.Admit(PeerID(m.PeerID), s); err != nil {
				s.log.Debug("admit failed", zap.Error(err))
			}
		}
	case signaling.TypeMaterialEvent:
		if s.Role != RoleAdmin {
			return // admin-only, silently dropped
		}
		var m signaling.MaterialEventMessage
		if json.Unmarshal(msg.Raw, &m) == nil {
			s.room.Broadcast(signaling.MaterialEvent(m.Event, m.Payload), func(*Session) bool { return true })
		}
	default:
		// unknown type, ignored per spec §6
	}
}

func (s *Session) handleOffer(sdp string) {
	s.mu.Lock()
	pc := s.pc
	s.mu.Unlock()
	if pc == nil {
		return
	}
	s.setState(StateNegotiating)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := pc.SetRemoteDescription(offer); err != nil {
		s.log.Warn("set remote description failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.remoteSet = true
	s.mu.Unlock()
	s.drainPendingICE(pc)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		s.log.Warn("create answer failed", zap.Error(err))
		return
	}
	patchedSDP := signaling.PatchLowLatencyAudio(answer.SDP)
	patched := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: patchedSDP}
	if err := pc.SetLocalDescription(patched); err != nil {
		s.log.Warn("set local description failed", zap.Error(err))
		return
	}

	s.Channel.Send(signaling.Answer(patchedSDP))
	s.setState(StateLive)
}

func (s *Session) handleICE(c signaling.CandidateInit) {
	init := webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
	s.mu.Lock()
	if !s.remoteSet {
		s.pendingICE = append(s.pendingICE, init)
		s.mu.Unlock()
		return
	}
	pc := s.pc
	s.mu.Unlock()
	if pc == nil {
		return
	}
	if err := pc.AddICECandidate(init); err != nil {
		s.log.Debug("add ice candidate failed, swallowed", zap.Error(err))
	}
}

func (s *Session) drainPendingICE(pc *webrtc.PeerConnection) {
	s.mu.Lock()
	pending := s.pendingICE
	s.pendingICE = nil
	s.mu.Unlock()
	for _, c := range pending {
		if err := pc.AddICECandidate(c); err != nil {
			s.log.Debug("add queued ice candidate failed, swallowed", zap.Error(err))
		}
	}
}

// onICECandidate forwards a locally gathered trickle candidate to the peer.
// Safe to call from pion's callback goroutine: Send has no session-state
// side effects beyond a best-effort channel push.
func (s *Session) onICECandidate(c *webrtc.ICECandidate) {
	if c == nil {
		return
	}
	init := c.ToJSON()
	s.Channel.Send(signaling.ICE(signaling.CandidateInit{
		Candidate:     init.Candidate,
		SDPMid:        init.SDPMid,
		SDPMLineIndex: init.SDPMLineIndex,
	}))
}

// addSubscription records that this session now receives track, so teardown
// can unsubscribe it. Called by Room when attaching a track, without holding
// the Room's lock; the session's own mu guards subs.
func (s *Session) addSubscription(track *sfu.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		return
	}
	s.subs[track.ID] = track
}
