package room

import (
	"github.com/pion/webrtc/v3"

	"github.com/aura-conference/sfu-server/internal/conference/ice"
)

func toPionICEServers(servers []ice.Server) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		out = append(out, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out
}

// newPeerConnection builds a fresh WebRTC session handle scoped to one
// admission, configured with the ICE servers fetched for that admission.
func newPeerConnection(servers []ice.Server) (*webrtc.PeerConnection, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine))
	cfg := webrtc.Configuration{ICEServers: toPionICEServers(servers)}
	return api.NewPeerConnection(cfg)
}
