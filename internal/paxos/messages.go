package paxos

import (
	"github.com/ermiashabtegabr/omni-chiselstore/internal/ballot"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/storecommand"
)

// Kind discriminates the variants of the Consensus Core's message union.
// This mirrors omnipaxos_core's PaxosMsg enum one member at a time, per
// spec §4.2/§6.
type Kind int

const (
	KindPrepareReq Kind = iota
	KindPrepare
	KindPromise
	KindAcceptSync
	KindFirstAccept
	KindAcceptDecide
	KindAccepted
	KindDecide
	KindProposalForward
	KindCompaction
	KindForwardCompaction
	KindAcceptStopSign
	KindAcceptedStopSign
	KindDecideStopSign
)

func (k Kind) String() string {
	switch k {
	case KindPrepareReq:
		return "PrepareReq"
	case KindPrepare:
		return "Prepare"
	case KindPromise:
		return "Promise"
	case KindAcceptSync:
		return "AcceptSync"
	case KindFirstAccept:
		return "FirstAccept"
	case KindAcceptDecide:
		return "AcceptDecide"
	case KindAccepted:
		return "Accepted"
	case KindDecide:
		return "Decide"
	case KindProposalForward:
		return "ProposalForward"
	case KindCompaction:
		return "Compaction"
	case KindForwardCompaction:
		return "ForwardCompaction"
	case KindAcceptStopSign:
		return "AcceptStopSign"
	case KindAcceptedStopSign:
		return "AcceptedStopSign"
	case KindDecideStopSign:
		return "DecideStopSign"
	default:
		return "Unknown"
	}
}

// CompactionKind discriminates Compaction/ForwardCompaction payloads.
type CompactionKind int

const (
	CompactionTrim CompactionKind = iota
	CompactionSnapshot
)

// Compaction carries a log-trim index or a (trivial) snapshot marker.
type Compaction struct {
	Kind CompactionKind `json:"kind"`
	Trim uint64         `json:"trim,omitempty"`
}

// Prepare is sent by a leader-elect to probe followers' log state before
// the accepting phase begins.
type Prepare struct {
	N         ballot.Ballot `json:"n"`
	Ld        uint64        `json:"ld"`
	NAccepted ballot.Ballot `json:"n_accepted"`
	La        uint64        `json:"la"`
}

// Promise is a follower's reply to Prepare: its accepted ballot, how much
// of the log it needs to hand back (as a SyncItem) so the leader can bring
// it up to date, and its decided/accepted indices.
type Promise struct {
	N         ballot.Ballot           `json:"n"`
	NAccepted ballot.Ballot           `json:"n_accepted"`
	SyncItem  *storecommand.SyncItem  `json:"sync_item,omitempty"`
	Ld        uint64                  `json:"ld"`
	La        uint64                  `json:"la"`
	StopSign  *storecommand.StopSign  `json:"stopsign,omitempty"`
}

// AcceptSync brings a follower's log up to date with the leader's,
// starting at SyncIdx.
type AcceptSync struct {
	N          ballot.Ballot          `json:"n"`
	SyncItem   storecommand.SyncItem  `json:"sync_item"`
	SyncIdx    uint64                 `json:"sync_idx"`
	DecidedIdx uint64                 `json:"decided_idx"`
	StopSign   *storecommand.StopSign `json:"stopsign,omitempty"`
}

// FirstAccept is the first batch of entries a newly elected leader sends a
// synced follower under its ballot.
type FirstAccept struct {
	N       ballot.Ballot              `json:"n"`
	Entries []storecommand.StoreCommand `json:"entries"`
}

// AcceptDecide streams subsequent entries plus the leader's current decided
// index.
type AcceptDecide struct {
	N       ballot.Ballot              `json:"n"`
	Ld      uint64                     `json:"ld"`
	Entries []storecommand.StoreCommand `json:"entries"`
}

// Accepted is a follower's acknowledgement that its log now extends to La
// under ballot N.
type Accepted struct {
	N  ballot.Ballot `json:"n"`
	La uint64        `json:"la"`
}

// Decide tells followers the new decided index under ballot N.
type Decide struct {
	N  ballot.Ballot `json:"n"`
	Ld uint64        `json:"ld"`
}

// AcceptStopSign proposes a reconfiguration boundary.
type AcceptStopSign struct {
	N  ballot.Ballot         `json:"n"`
	Ss storecommand.StopSign `json:"stopsign"`
}

// AcceptedStopSign acknowledges a proposed stop-sign.
type AcceptedStopSign struct {
	N ballot.Ballot `json:"n"`
}

// DecideStopSign tells followers the stop-sign is decided.
type DecideStopSign struct {
	N ballot.Ballot `json:"n"`
}

// Message is the Consensus Core's message-in/message-out unit: a tagged
// union over every PaxosMsg variant, addressed From one node To another.
type Message struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
	Kind Kind   `json:"kind"`

	Prepare           *Prepare              `json:"prepare,omitempty"`
	Promise           *Promise              `json:"promise,omitempty"`
	AcceptSync        *AcceptSync           `json:"accept_sync,omitempty"`
	FirstAccept       *FirstAccept          `json:"first_accept,omitempty"`
	AcceptDecide      *AcceptDecide         `json:"accept_decide,omitempty"`
	Accepted          *Accepted             `json:"accepted,omitempty"`
	Decide            *Decide               `json:"decide,omitempty"`
	ProposalForward   []storecommand.StoreCommand `json:"proposal_forward,omitempty"`
	Compaction        *Compaction           `json:"compaction,omitempty"`
	ForwardCompaction *Compaction           `json:"forward_compaction,omitempty"`
	AcceptStopSign    *AcceptStopSign       `json:"accept_stop_sign,omitempty"`
	AcceptedStopSign  *AcceptedStopSign     `json:"accepted_stop_sign,omitempty"`
	DecideStopSign    *DecideStopSign       `json:"decide_stop_sign,omitempty"`
}
