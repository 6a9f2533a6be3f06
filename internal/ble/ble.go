package ble

import "github.com/ermiashabtegabr/omni-chiselstore/internal/ballot"

// defaultMaxMissedRounds is how many consecutive heartbeat rounds a peer
// may go silent before this node considers it unreachable.
const defaultMaxMissedRounds = 3

// Config configures a Core instance.
type Config struct {
	// NodeID is this node's id.
	NodeID uint64
	// Peers is the full set of node ids in the cluster, including NodeID.
	Peers []uint64
	// Priority breaks ties between equally-fresh ballots in this node's
	// favor; higher wins. Zero is treated as 1.
	Priority uint64
	// MaxMissedRounds overrides defaultMaxMissedRounds when non-zero.
	MaxMissedRounds int
}

// Core is the Ballot Leader Election sub-protocol: nodes exchange
// heartbeats each round, and whichever node both (a) is reachable by a
// majority and (b) holds the highest ballot is elected leader under a
// freshly minted, strictly increasing ballot.
type Core struct {
	nodeID          uint64
	peers           []uint64
	majority        int
	priority        uint64
	maxMissedRounds int

	round     uint64
	candidate ballot.Ballot // this node's own ballot, bumped each time it (re)wins
	leader    ballot.Ballot // currently believed leader ballot; zero if disconnected
	connected bool

	known   map[uint64]ballot.Ballot // last ballot reported by each peer
	seen    map[uint64]bool          // peers heard from since the last Tick
	missed  map[uint64]int           // consecutive rounds each peer has gone silent

	outgoing []Message
}

// NewCore constructs a Core from Config. Peers must include NodeID.
func NewCore(cfg Config) *Core {
	peers := make([]uint64, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		if p != cfg.NodeID {
			peers = append(peers, p)
		}
	}
	priority := cfg.Priority
	if priority == 0 {
		priority = 1
	}
	maxMissed := cfg.MaxMissedRounds
	if maxMissed == 0 {
		maxMissed = defaultMaxMissedRounds
	}
	return &Core{
		nodeID:          cfg.NodeID,
		peers:           peers,
		majority:        len(cfg.Peers)/2 + 1,
		priority:        priority,
		maxMissedRounds: maxMissed,
		candidate:       ballot.Ballot{N: 0, Priority: priority, Pid: cfg.NodeID},
		known:           make(map[uint64]ballot.Ballot),
		seen:            make(map[uint64]bool),
		missed:          make(map[uint64]int),
	}
}

func (c *Core) send(msg Message) {
	c.outgoing = append(c.outgoing, msg)
}

// Handle feeds an inbound BLE message to the core.
func (c *Core) Handle(msg Message) {
	switch msg.Kind {
	case KindHeartbeatRequest:
		c.seen[msg.From] = true
		c.send(Message{
			From: c.nodeID, To: msg.From, Kind: KindHeartbeatReply,
			HeartbeatReply: &HeartbeatReply{Round: msg.HeartbeatRequest.Round, Ballot: c.candidate},
		})
	case KindHeartbeatReply:
		c.seen[msg.From] = true
		c.known[msg.From] = msg.HeartbeatReply.Ballot
	}
}

// Tick advances one heartbeat round: it updates liveness bookkeeping from
// replies received since the previous Tick, broadcasts a new
// HeartbeatRequest, and re-evaluates the elected leader.
func (c *Core) Tick() {
	for _, p := range c.peers {
		if c.seen[p] {
			c.missed[p] = 0
		} else {
			c.missed[p]++
		}
	}
	c.seen = make(map[uint64]bool)

	c.round++
	for _, p := range c.peers {
		c.send(Message{
			From: c.nodeID, To: p, Kind: KindHeartbeatRequest,
			HeartbeatRequest: &HeartbeatRequest{Round: c.round},
		})
	}

	alive := 1 // self
	for _, p := range c.peers {
		if c.missed[p] < c.maxMissedRounds {
			alive++
		}
	}
	c.connected = alive >= c.majority
	if !c.connected {
		c.leader = ballot.Zero
		return
	}

	wasLeader := c.leader.Pid == c.nodeID && !c.leader.IsZero()
	best := c.candidate
	for _, p := range c.peers {
		if c.missed[p] >= c.maxMissedRounds {
			continue
		}
		if b, ok := c.known[p]; ok && b.Greater(best) {
			best = b
		}
	}

	if best.Pid == c.nodeID {
		if !wasLeader {
			c.candidate = ballot.Ballot{N: c.candidate.N + 1, Priority: c.priority, Pid: c.nodeID}
		}
		c.leader = c.candidate
	} else {
		c.candidate = ballot.Ballot{N: best.N, Priority: c.priority, Pid: c.nodeID}
		c.leader = best
	}
}

// OutgoingMessages drains and returns every message queued since the last
// call.
func (c *Core) OutgoingMessages() []Message {
	if len(c.outgoing) == 0 {
		return nil
	}
	out := c.outgoing
	c.outgoing = nil
	return out
}

// Leader returns the currently believed leader ballot and whether this
// node is connected to a majority of the cluster. A zero ballot means no
// leader is known (disconnected, or election still in progress).
func (c *Core) Leader() (ballot.Ballot, bool) {
	return c.leader, c.connected
}

// IsLeader reports whether this node currently believes itself elected.
func (c *Core) IsLeader() bool {
	return c.connected && c.leader.Pid == c.nodeID
}
