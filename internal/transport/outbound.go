package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/ermiashabtegabr/omni-chiselstore/internal/ble"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/logging"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/paxos"
)

// TraceHeader carries a per-send correlation id, so a message's path
// across peers can be followed through logs even though each hop is an
// independent, fire-and-forget HTTP call.
const TraceHeader = "X-Trace-Id"

// NodeSender implements internal/server.Sender over HTTP. Every send is
// fire-and-forget: it runs in its own goroutine and its result, success
// or failure, is never reported back to the caller. This matches the
// reference RPC layer's connection pool, which does the same and relies
// on the protocol's own retransmission (internal/paxos.Core.Tick,
// internal/ble.Core.Tick) to recover from a dropped send.
type NodeSender struct {
	logger *logging.Logger

	mu    sync.Mutex
	addrs map[uint64]string
	pools map[uint64]*pool
}

// NewNodeSender builds a NodeSender addressing peers by addrs (node id ->
// "host:port", not including a scheme).
func NewNodeSender(logger *logging.Logger, addrs map[uint64]string) *NodeSender {
	return &NodeSender{
		logger: logger,
		addrs:  addrs,
		pools:  make(map[uint64]*pool),
	}
}

func (s *NodeSender) poolFor(to uint64) (*pool, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.addrs[to]
	if !ok {
		return nil, "", false
	}
	p, ok := s.pools[to]
	if !ok {
		p = newPool(addr)
		s.pools[to] = p
	}
	return p, addr, true
}

// SendPaxos implements server.Sender.
func (s *NodeSender) SendPaxos(to uint64, msg paxos.Message) {
	s.post(to, "/v1/paxos", msg)
}

// SendBLE implements server.Sender.
func (s *NodeSender) SendBLE(to uint64, msg ble.Message) {
	s.post(to, "/v1/ble", msg)
}

func (s *NodeSender) post(to uint64, path string, payload interface{}) {
	p, addr, ok := s.poolFor(to)
	if !ok {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Errorf("transport: marshal outbound message for node %d: %v", to, err)
		return
	}
	traceID := uuid.NewString()
	go func() {
		client := p.get()
		url := fmt.Sprintf("http://%s%s", addr, path)
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(TraceHeader, traceID)
		resp, err := client.Do(req)
		if err != nil {
			// Silently dropped: the peer may be down or unreachable; the
			// protocol's own tick-driven retransmission will try again.
			s.logger.WithFields(map[string]interface{}{"trace_id": traceID, "peer": to}).Debug("transport: outbound send failed, dropping")
			return
		}
		resp.Body.Close()
		p.put(client)
	}()
}
