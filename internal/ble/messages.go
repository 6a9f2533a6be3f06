// Package ble implements the Ballot Leader Election sub-protocol of spec
// §4.3: a heartbeat-based, increasing-priority leader election that
// produces ballots for the Consensus Core to adopt. It is message-in/
// message-out, mirroring internal/paxos's shape, and holds no network
// dependency of its own.
package ble

import "github.com/ermiashabtegabr/omni-chiselstore/internal/ballot"

// Kind discriminates the BLE message union.
type Kind int

const (
	KindHeartbeatRequest Kind = iota
	KindHeartbeatReply
)

func (k Kind) String() string {
	switch k {
	case KindHeartbeatRequest:
		return "HeartbeatRequest"
	case KindHeartbeatReply:
		return "HeartbeatReply"
	default:
		return "Unknown"
	}
}

// HeartbeatRequest is broadcast by every node once per election round,
// carrying the round number so replies can be matched to it.
type HeartbeatRequest struct {
	Round uint64 `json:"round"`
}

// HeartbeatReply answers a HeartbeatRequest with the replier's current
// ballot, so the requester can learn about (and adopt) higher ballots it
// has not observed yet.
type HeartbeatReply struct {
	Round  uint64        `json:"round"`
	Ballot ballot.Ballot `json:"ballot"`
}

// Message is the BLE Core's message-in/message-out unit.
type Message struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
	Kind Kind   `json:"kind"`

	HeartbeatRequest *HeartbeatRequest `json:"heartbeat_request,omitempty"`
	HeartbeatReply   *HeartbeatReply   `json:"heartbeat_reply,omitempty"`
}
