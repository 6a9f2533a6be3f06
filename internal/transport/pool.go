package transport

import (
	"net/http"
	"time"
)

// poolCapacity bounds how many idle *http.Client handles are kept ready
// per peer address, mirroring the bounded connection pool (capacity 16)
// the reference RPC layer keeps per peer.
const poolCapacity = 16

// pool is a bounded FIFO of ready-to-use HTTP clients for one peer
// address. Connections are created lazily on first use; once the pool is
// full, a returned client is simply dropped rather than blocking the
// caller, since outbound sends are fire-and-forget and protocol-level
// retransmission (Tick) compensates for anything lost this way.
type pool struct {
	addr  string
	ready chan *http.Client
}

func newPool(addr string) *pool {
	return &pool{addr: addr, ready: make(chan *http.Client, poolCapacity)}
}

func (p *pool) get() *http.Client {
	select {
	case c := <-p.ready:
		return c
	default:
		return &http.Client{Timeout: 2 * time.Second}
	}
}

func (p *pool) put(c *http.Client) {
	select {
	case p.ready <- c:
	default:
		// Pool full: drop it on the floor.
	}
}
