package room

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/aura-conference/sfu-server/internal/conference/ice"
)

// Registry maps room identifiers to Rooms. It lazily creates rooms on first
// join and never removes them while the process is alive (Design Notes:
// acceptable for the stated single-process scope).
type Registry struct {
	iceProvider ice.Provider
	log         *zap.Logger

	mu    sync.Mutex
	rooms map[string]*Room

	nextPeerID atomic.Int64
}

// NewRegistry builds a Room Registry bound to one ICE Credential Provider.
func NewRegistry(iceProvider ice.Provider, log *zap.Logger) *Registry {
	return &Registry{
		iceProvider: iceProvider,
		log:         log,
		rooms:       make(map[string]*Room),
	}
}

// GetOrCreate returns the Room for id, creating it on first access.
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[id]; ok {
		return r
	}
	r := newRoom(id, reg.iceProvider, reg.log)
	reg.rooms[id] = r
	return r
}

// NextPeerID hands out the next process-unique peer identifier.
func (reg *Registry) NextPeerID() PeerID {
	return PeerID(reg.nextPeerID.Add(1))
}
