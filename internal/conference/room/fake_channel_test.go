package room

import (
	"encoding/json"
	"sync"

	"github.com/aura-conference/sfu-server/internal/conference/signaling"
)

// fakeChannel is an in-memory signaling.Channel for tests: Send appends to
// an observable slice instead of writing to a socket, Recv drains a queue a
// test can push onto directly.
type fakeChannel struct {
	mu       sync.Mutex
	sent     []sentMessage
	inbound  chan signaling.Inbound
	done     chan struct{}
	closeErr error
}

type sentMessage struct {
	typ  string
	data []byte
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		inbound: make(chan signaling.Inbound, 32),
		done:    make(chan struct{}),
	}
}

func (c *fakeChannel) Send(v interface{}) {
	data, _ := json.Marshal(v)
	var env signaling.Envelope
	_ = json.Unmarshal(data, &env)
	c.mu.Lock()
	c.sent = append(c.sent, sentMessage{typ: env.Type, data: data})
	c.mu.Unlock()
}

func (c *fakeChannel) Recv() (signaling.Inbound, error) {
	select {
	case m, ok := <-c.inbound:
		if !ok {
			return signaling.Inbound{}, signaling.ErrClosed
		}
		return m, nil
	case <-c.done:
		return signaling.Inbound{}, signaling.ErrClosed
	}
}

func (c *fakeChannel) Done() <-chan struct{} { return c.done }

func (c *fakeChannel) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return c.closeErr
}

func (c *fakeChannel) push(typ string, raw []byte) {
	c.inbound <- signaling.Inbound{Type: typ, Raw: raw}
}

func (c *fakeChannel) sentTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.typ
	}
	return out
}

func (c *fakeChannel) countType(typ string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.sent {
		if m.typ == typ {
			n++
		}
	}
	return n
}
