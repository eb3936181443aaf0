package ice

import "context"

// StaticProvider returns a fixed, process-lifetime list of ICE servers. It is
// the default provider when no traversal-service credentials are configured,
// mirroring original_source/server.py's hard-coded ICE_SERVERS list.
type StaticProvider struct {
	servers []Server
}

// NewStaticProvider builds a StaticProvider from plain STUN/TURN URLs (no
// per-server credentials), the shape config.WebRTCConfig.ICEUrls carries.
func NewStaticProvider(urls []string) *StaticProvider {
	servers := make([]Server, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		servers = append(servers, Server{URLs: []string{u}})
	}
	if len(servers) == 0 {
		servers = []Server{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	return &StaticProvider{servers: servers}
}

// Fetch implements Provider.
func (p *StaticProvider) Fetch(_ context.Context) ([]Server, error) {
	out := make([]Server, len(p.servers))
	copy(out, p.servers)
	return out, nil
}
