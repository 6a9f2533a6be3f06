// Package paxos implements the Consensus Core contract of spec §4.2: a
// leader-based Multi-Paxos log ("Sequence Paxos" in the omnipaxos_core
// sense) with Prepare/Promise, Accept/Accepted, Decide, AcceptSync,
// FirstAccept, ProposalForward, Compaction, ForwardCompaction, and
// StopSign reconfiguration. It is message-in/message-out and holds no
// network or storage dependency of its own — callers drive it with Tick,
// Handle, and Append, and drain OutgoingMessages themselves.
//
// A Core is not safe for concurrent use; the Server Runtime (internal/server)
// serializes all access behind a single mutex, per spec §5.
package paxos

import (
	"errors"
	"sort"

	"github.com/ermiashabtegabr/omni-chiselstore/internal/ballot"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/storecommand"
)

// ErrReconfigured is returned by Append once a stop-sign has decided: no
// further normal entries may be accepted under the current configuration.
var ErrReconfigured = errors.New("paxos: log closed by decided stop-sign")

// ErrFull is returned by Append when the log has reached its configured
// capacity.
var ErrFull = errors.New("paxos: log is full")

// role tracks this node's local view of its own part in the protocol.
type role int

const (
	roleFollower role = iota
	rolePreparing
	roleAccepting
)

// peerProgress is the leader's per-follower bookkeeping: how far a
// follower's log is known to extend (la), whether it has completed the
// AcceptSync catch-up handshake for the current ballot, and (during a
// prepare round) whether it has promised.
type peerProgress struct {
	la        uint64
	synced    bool
	promised  bool
	promise   *Promise
	acceptedSS bool
}

// Config configures a Core instance.
type Config struct {
	// NodeID is this node's id.
	NodeID uint64
	// Peers is the full set of node ids in the cluster, including NodeID.
	Peers []uint64
	// MaxLogLen bounds the in-memory log length; Append returns ErrFull
	// once reached. Zero means use a generous default.
	MaxLogLen uint64
}

// Core is the Consensus Core: a single node's view of the replicated log.
type Core struct {
	nodeID    uint64
	peers     []uint64 // all peer ids except self
	majority  int
	maxLogLen uint64

	role role

	promisedBallot ballot.Ballot // n_leader / n
	acceptedBallot ballot.Ballot // n_accepted: ballot under which our tail was accepted
	leaderID       uint64        // best known leader pid (0 if none)

	log        []Entry
	decidedIdx uint64

	stopSign         *storecommand.StopSign // proposed-but-not-yet-decided
	stopSignDecided  bool

	progress map[uint64]*peerProgress // leader-side, reset each time we become leader
	prepareQuorum int               // count of promises received this prepare round (self included)

	proposalBuffer []storecommand.StoreCommand // commands waiting for a known leader

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
	maxLogLen := cfg.MaxLogLen
	if maxLogLen == 0 {
		maxLogLen = 1 << 20
	}
	c := &Core{
		nodeID:    cfg.NodeID,
		peers:     peers,
		majority:  len(cfg.Peers)/2 + 1,
		maxLogLen: maxLogLen,
		progress:  make(map[uint64]*peerProgress),
	}
	return c
}

func (c *Core) send(msg Message) {
	c.outgoing = append(c.outgoing, msg)
}

// Append enqueues a proposal. If this node is the current leader it is
// appended to the local log immediately and replicated on the next Tick;
// if a different leader is known, it is forwarded via ProposalForward; if
// no leader is known yet it is buffered until one is.
func (c *Core) Append(cmd storecommand.StoreCommand) error {
	if c.stopSignDecided {
		return ErrReconfigured
	}
	if uint64(len(c.log)) >= c.maxLogLen {
		return ErrFull
	}

	switch {
	case c.role == roleAccepting && c.promisedBallot.Pid == c.nodeID:
		c.log = append(c.log, commandEntry(cmd))
	case c.leaderID != 0 && c.leaderID != c.nodeID:
		c.send(Message{
			From:            c.nodeID,
			To:              c.leaderID,
			Kind:            KindProposalForward,
			ProposalForward: []storecommand.StoreCommand{cmd},
		})
	default:
		c.proposalBuffer = append(c.proposalBuffer, cmd)
	}
	return nil
}

// ProposeStopSign proposes a reconfiguration boundary. Only meaningful
// when this node believes itself to be the leader; otherwise it returns a
// "not leader" error and the proposal is neither kept nor forwarded.
func (c *Core) ProposeStopSign(ss storecommand.StopSign) error {
	if c.stopSignDecided {
		return ErrReconfigured
	}
	if !(c.role == roleAccepting && c.promisedBallot.Pid == c.nodeID) {
		return errors.New("paxos: not leader")
	}
	s := ss
	c.stopSign = &s
	for _, p := range c.peers {
		c.send(Message{
			From: c.nodeID, To: p, Kind: KindAcceptStopSign,
			AcceptStopSign: &AcceptStopSign{N: c.promisedBallot, Ss: s},
		})
	}
	prog := c.progressFor(c.nodeID)
	prog.acceptedSS = true
	return nil
}

// NewBallot is invoked by the Server Runtime whenever the BLE Core's
// observed leader ballot changes (spec §4.4: "Leadership changes are
// observed by the Server Runtime each tick and forwarded to the Consensus
// Core so it can promote/demote itself"). It is a no-op if b is not
// strictly newer than what this node has already promised.
func (c *Core) NewBallot(b ballot.Ballot) {
	if !b.Greater(c.promisedBallot) {
		return
	}
	c.promisedBallot = b
	c.leaderID = b.Pid
	c.prepareQuorum = 0
	c.progress = make(map[uint64]*peerProgress)

	if b.Pid == c.nodeID {
		c.role = rolePreparing
		for _, p := range c.peers {
			c.send(Message{
				From: c.nodeID, To: p, Kind: KindPrepare,
				Prepare: &Prepare{
					N:         b,
					Ld:        c.decidedIdx,
					NAccepted: c.acceptedBallot,
					La:        uint64(len(c.log)),
				},
			})
		}
		// Count our own implicit promise.
		c.prepareQuorum = 1
		if c.prepareQuorum >= c.majority {
			c.becomeLeader()
		}
		return
	}

	c.role = roleFollower
}

// Handle feeds an inbound protocol message to the core.
func (c *Core) Handle(msg Message) {
	switch msg.Kind {
	case KindPrepare:
		c.handlePrepare(msg)
	case KindPromise:
		c.handlePromise(msg)
	case KindAcceptSync:
		c.handleAcceptSync(msg)
	case KindFirstAccept:
		c.handleEntries(msg.From, msg.FirstAccept.N, msg.FirstAccept.Entries, nil)
	case KindAcceptDecide:
		ld := msg.AcceptDecide.Ld
		c.handleEntries(msg.From, msg.AcceptDecide.N, msg.AcceptDecide.Entries, &ld)
	case KindAccepted:
		c.handleAccepted(msg)
	case KindDecide:
		c.handleDecide(msg)
	case KindProposalForward:
		c.handleProposalForward(msg)
	case KindPrepareReq:
		c.handlePrepareReq(msg)
	case KindAcceptStopSign:
		c.handleAcceptStopSign(msg)
	case KindAcceptedStopSign:
		c.handleAcceptedStopSign(msg)
	case KindDecideStopSign:
		c.handleDecideStopSign(msg)
	case KindCompaction:
		c.handleCompaction(msg)
	case KindForwardCompaction:
		c.handleForwardCompaction(msg)
	}
}

func (c *Core) handlePrepareReq(msg Message) {
	// A follower lost track of the leader's progress and is asking us (if
	// we are leader) to re-send a Prepare so it can re-sync.
	if c.role == roleAccepting && c.promisedBallot.Pid == c.nodeID {
		c.send(Message{
			From: c.nodeID, To: msg.From, Kind: KindPrepare,
			Prepare: &Prepare{
				N:         c.promisedBallot,
				Ld:        c.decidedIdx,
				NAccepted: c.acceptedBallot,
				La:        uint64(len(c.log)),
			},
		})
	}
}

func (c *Core) handlePrepare(msg Message) {
	p := msg.Prepare
	if p.N.Less(c.promisedBallot) {
		return
	}
	c.promisedBallot = p.N
	c.leaderID = p.N.Pid
	c.role = roleFollower

	// Sync from the preparer's own la (p.La), not our decidedIdx: the
	// preparer may be behind on entries we have already decided, and a
	// Promise is the only chance to hand those back before it starts
	// overwriting followers from becomeLeader.
	syncFrom := p.La
	if syncFrom > uint64(len(c.log)) {
		syncFrom = uint64(len(c.log))
	}
	var syncItem *storecommand.SyncItem
	if uint64(len(c.log)) > syncFrom {
		item := storecommand.NewSyncItemEntries(entriesToCommands(c.log[syncFrom:]))
		syncItem = &item
	}
	var ss *storecommand.StopSign
	if c.stopSign != nil {
		s := *c.stopSign
		ss = &s
	}
	c.send(Message{
		From: c.nodeID, To: msg.From, Kind: KindPromise,
		Promise: &Promise{
			N:         p.N,
			NAccepted: c.acceptedBallot,
			SyncItem:  syncItem,
			Ld:        c.decidedIdx,
			La:        uint64(len(c.log)),
			StopSign:  ss,
		},
	})
}

func (c *Core) progressFor(peer uint64) *peerProgress {
	pr, ok := c.progress[peer]
	if !ok {
		pr = &peerProgress{}
		c.progress[peer] = pr
	}
	return pr
}

func (c *Core) handlePromise(msg Message) {
	if c.role != rolePreparing || msg.Promise.N.Less(c.promisedBallot) || msg.Promise.N.Greater(c.promisedBallot) {
		return
	}
	pr := c.progressFor(msg.From)
	if pr.promised {
		return
	}
	pr.promised = true
	pr.promise = msg.Promise
	pr.la = msg.Promise.La
	c.prepareQuorum++
	if c.prepareQuorum >= c.majority {
		c.becomeLeader()
	}
}

// adoptBestPromisedLog merges the suffix carried by the highest-n_accepted
// (longest, on a tie) Promise this node collected during the prepare round
// into its own log, before it starts dictating a log to followers via
// AcceptSync. BLE elects on ballot alone, not log length, so a node can win
// leadership with a shorter log than a majority already decided; without
// this merge becomeLeader would push that shorter log onto followers and
// silently discard an already-decided entry.
func (c *Core) adoptBestPromisedLog() {
	bestAccepted := c.acceptedBallot
	bestLa := uint64(len(c.log))
	var bestEntries []storecommand.StoreCommand
	var bestLd uint64
	var bestStopSign *storecommand.StopSign

	for _, p := range c.peers {
		pr := c.progress[p]
		if pr == nil || pr.promise == nil {
			continue
		}
		pm := pr.promise
		better := pm.NAccepted.Greater(bestAccepted) || (pm.NAccepted.Equal(bestAccepted) && pm.La > bestLa)
		if !better {
			continue
		}
		bestAccepted = pm.NAccepted
		bestLa = pm.La
		bestLd = pm.Ld
		bestStopSign = pm.StopSign
		if pm.SyncItem != nil {
			bestEntries = pm.SyncItem.Entries
		} else {
			bestEntries = nil
		}
	}

	if bestLa > uint64(len(c.log)) {
		c.log = append(c.log, commandsToEntries(bestEntries)...)
	}
	if bestLd > c.decidedIdx {
		d := bestLd
		if d > uint64(len(c.log)) {
			d = uint64(len(c.log))
		}
		c.decidedIdx = d
	}
	if bestStopSign != nil && c.stopSign == nil {
		s := *bestStopSign
		c.stopSign = &s
	}
}

// becomeLeader transitions this node into the accepting role and starts
// syncing every follower up to its own log via AcceptSync.
func (c *Core) becomeLeader() {
	c.adoptBestPromisedLog()
	c.role = roleAccepting
	c.acceptedBallot = c.promisedBallot
	for _, p := range c.peers {
		pr := c.progressFor(p)
		syncFrom := pr.la
		if syncFrom > uint64(len(c.log)) {
			syncFrom = uint64(len(c.log))
		}
		var ss *storecommand.StopSign
		if c.stopSign != nil {
			s := *c.stopSign
			ss = &s
		}
		c.send(Message{
			From: c.nodeID, To: p, Kind: KindAcceptSync,
			AcceptSync: &AcceptSync{
				N:          c.promisedBallot,
				SyncItem:   storecommand.NewSyncItemEntries(entriesToCommands(c.log[syncFrom:])),
				SyncIdx:    syncFrom,
				DecidedIdx: c.decidedIdx,
				StopSign:   ss,
			},
		})
	}
	// Flush anything buffered while we had no leader, or that we queued
	// locally before winning the election.
	if len(c.proposalBuffer) > 0 {
		for _, cmd := range c.proposalBuffer {
			c.log = append(c.log, commandEntry(cmd))
		}
		c.proposalBuffer = nil
	}
}

func (c *Core) handleAcceptSync(msg Message) {
	as := msg.AcceptSync
	if as.N.Less(c.promisedBallot) {
		return
	}
	c.promisedBallot = as.N
	c.acceptedBallot = as.N
	c.leaderID = as.N.Pid
	c.role = roleFollower

	if as.SyncIdx <= uint64(len(c.log)) {
		c.log = append(c.log[:as.SyncIdx:as.SyncIdx], commandsToEntries(as.SyncItem.Entries)...)
	}
	if as.DecidedIdx > c.decidedIdx {
		d := as.DecidedIdx
		if d > uint64(len(c.log)) {
			d = uint64(len(c.log))
		}
		c.decidedIdx = d
	}
	if as.StopSign != nil {
		s := *as.StopSign
		c.stopSign = &s
	}
	c.send(Message{
		From: c.nodeID, To: msg.From, Kind: KindAccepted,
		Accepted: &Accepted{N: as.N, La: uint64(len(c.log))},
	})
}

// handleEntries processes both FirstAccept and AcceptDecide: append new
// entries (if any) and adopt ld if provided.
func (c *Core) handleEntries(from uint64, n ballot.Ballot, entries []storecommand.StoreCommand, ld *uint64) {
	if n.Less(c.promisedBallot) {
		return
	}
	c.promisedBallot = n
	c.acceptedBallot = n
	c.leaderID = n.Pid
	c.role = roleFollower

	if len(entries) > 0 {
		c.log = append(c.log, commandsToEntries(entries)...)
	}
	if ld != nil && *ld > c.decidedIdx {
		d := *ld
		if d > uint64(len(c.log)) {
			d = uint64(len(c.log))
		}
		c.decidedIdx = d
	}
	c.send(Message{
		From: c.nodeID, To: from, Kind: KindAccepted,
		Accepted: &Accepted{N: n, La: uint64(len(c.log))},
	})
}

func (c *Core) handleAccepted(msg Message) {
	if c.role != roleAccepting || msg.Accepted.N.Less(c.promisedBallot) || msg.Accepted.N.Greater(c.promisedBallot) {
		return
	}
	pr := c.progressFor(msg.From)
	if msg.Accepted.La > pr.la {
		pr.la = msg.Accepted.La
	}
	pr.synced = true
	c.tryAdvanceDecided()
}

// tryAdvanceDecided recomputes the decided index as the majority-th
// largest known log length (including this leader's own) and, if it
// advanced, broadcasts Decide to every peer.
func (c *Core) tryAdvanceDecided() {
	las := make([]uint64, 0, len(c.peers)+1)
	las = append(las, uint64(len(c.log)))
	for _, p := range c.peers {
		las = append(las, c.progressFor(p).la)
	}
	sort.Slice(las, func(i, j int) bool { return las[i] > las[j] })
	newDecided := las[c.majority-1]
	if newDecided > c.decidedIdx {
		c.decidedIdx = newDecided
		for _, p := range c.peers {
			c.send(Message{
				From: c.nodeID, To: p, Kind: KindDecide,
				Decide: &Decide{N: c.promisedBallot, Ld: c.decidedIdx},
			})
		}
	}
}

func (c *Core) handleDecide(msg Message) {
	if msg.Decide.N.Less(c.promisedBallot) {
		return
	}
	if msg.Decide.Ld <= c.decidedIdx {
		return
	}
	d := msg.Decide.Ld
	if d > uint64(len(c.log)) {
		d = uint64(len(c.log))
	}
	c.decidedIdx = d
}

func (c *Core) handleProposalForward(msg Message) {
	if !(c.role == roleAccepting && c.promisedBallot.Pid == c.nodeID) {
		// Not the leader (anymore): hold the proposals. Tick forwards them
		// to whichever leader this node knows of, and becomeLeader appends
		// them if this node wins leadership itself.
		c.proposalBuffer = append(c.proposalBuffer, msg.ProposalForward...)
		return
	}
	for _, cmd := range msg.ProposalForward {
		_ = c.Append(cmd)
	}
}

func (c *Core) handleAcceptStopSign(msg Message) {
	if msg.AcceptStopSign.N.Less(c.promisedBallot) {
		return
	}
	c.promisedBallot = msg.AcceptStopSign.N
	c.acceptedBallot = msg.AcceptStopSign.N
	s := msg.AcceptStopSign.Ss
	c.stopSign = &s
	c.send(Message{
		From: c.nodeID, To: msg.From, Kind: KindAcceptedStopSign,
		AcceptedStopSign: &AcceptedStopSign{N: msg.AcceptStopSign.N},
	})
}

func (c *Core) handleAcceptedStopSign(msg Message) {
	if c.role != roleAccepting || msg.AcceptedStopSign.N.Less(c.promisedBallot) || msg.AcceptedStopSign.N.Greater(c.promisedBallot) {
		return
	}
	pr := c.progressFor(msg.From)
	pr.acceptedSS = true

	count := 0
	if c.progressFor(c.nodeID).acceptedSS || c.stopSignDecided || (c.role == roleAccepting && c.promisedBallot.Pid == c.nodeID) {
		count++
	}
	for _, p := range c.peers {
		if c.progressFor(p).acceptedSS {
			count++
		}
	}
	if count >= c.majority && !c.stopSignDecided {
		c.stopSignDecided = true
		for _, p := range c.peers {
			c.send(Message{
				From: c.nodeID, To: p, Kind: KindDecideStopSign,
				DecideStopSign: &DecideStopSign{N: c.promisedBallot},
			})
		}
	}
}

func (c *Core) handleDecideStopSign(msg Message) {
	if msg.DecideStopSign.N.Less(c.promisedBallot) {
		return
	}
	c.stopSignDecided = true
}

func (c *Core) handleCompaction(msg Message) {
	c.applyCompaction(msg.Compaction)
}

func (c *Core) handleForwardCompaction(msg Message) {
	if c.role == roleAccepting && c.promisedBallot.Pid == c.nodeID {
		for _, p := range c.peers {
			c.send(Message{From: c.nodeID, To: p, Kind: KindCompaction, Compaction: msg.ForwardCompaction})
		}
		c.applyCompaction(msg.ForwardCompaction)
	}
}

func (c *Core) applyCompaction(comp *Compaction) {
	if comp == nil || comp.Kind != CompactionTrim {
		return
	}
	trim := comp.Trim
	if trim > uint64(len(c.log)) {
		trim = uint64(len(c.log))
	}
	if trim == 0 {
		return
	}
	c.log = append([]Entry{}, c.log[trim:]...)
	// Indices below trim are no longer addressable; decidedIdx/trim
	// bookkeeping beyond this point is left to the (unused in this spec)
	// snapshot-reconstruction path.
}

// Tick advances internal timers: a leader periodically re-sends unsynced
// followers their missing suffix and the current decided index, which is
// how the protocol self-heals after dropped messages (spec §5, §8
// scenario 6) without the Server Runtime needing to know about retries.
// A node that is not the leader but knows of one forwards any buffered
// proposals to it.
func (c *Core) Tick() {
	if len(c.proposalBuffer) > 0 && c.leaderID != 0 && c.leaderID != c.nodeID {
		c.send(Message{
			From:            c.nodeID,
			To:              c.leaderID,
			Kind:            KindProposalForward,
			ProposalForward: c.proposalBuffer,
		})
		c.proposalBuffer = nil
	}
	if !(c.role == roleAccepting && c.promisedBallot.Pid == c.nodeID) {
		return
	}
	// Fold our own log length into the decided computation every tick, not
	// just when an Accepted arrives: with no peers (or while peers lag)
	// this is the only thing that ever advances decidedIdx, since a
	// majority of one is satisfied by the leader alone.
	c.tryAdvanceDecided()
	for _, p := range c.peers {
		pr := c.progressFor(p)
		if pr.la < uint64(len(c.log)) {
			c.send(Message{
				From: c.nodeID, To: p, Kind: KindAcceptDecide,
				AcceptDecide: &AcceptDecide{
					N:       c.promisedBallot,
					Ld:      c.decidedIdx,
					Entries: entriesToCommands(c.log[pr.la:]),
				},
			})
		} else {
			c.send(Message{
				From: c.nodeID, To: p, Kind: KindDecide,
				Decide: &Decide{N: c.promisedBallot, Ld: c.decidedIdx},
			})
		}
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

// ReadDecidedSuffix returns the suffix of newly decided entries starting
// at since.
func (c *Core) ReadDecidedSuffix(since uint64) []Entry {
	if since >= c.decidedIdx || since > uint64(len(c.log)) {
		return nil
	}
	end := c.decidedIdx
	if end > uint64(len(c.log)) {
		end = uint64(len(c.log))
	}
	out := make([]Entry, end-since)
	copy(out, c.log[since:end])
	return out
}

// GetDecidedIdx returns the highest index decided by this node.
func (c *Core) GetDecidedIdx() uint64 {
	return c.decidedIdx
}

// IsLeader reports whether this node currently believes itself to be the
// accepting leader.
func (c *Core) IsLeader() bool {
	return c.role == roleAccepting && c.promisedBallot.Pid == c.nodeID
}

// LeaderID returns the best-known leader id, or 0 if none is known.
func (c *Core) LeaderID() uint64 {
	return c.leaderID
}

func entriesToCommands(entries []Entry) []storecommand.StoreCommand {
	out := make([]storecommand.StoreCommand, 0, len(entries))
	for _, e := range entries {
		if e.Command != nil {
			out = append(out, *e.Command)
		}
	}
	return out
}

func commandsToEntries(cmds []storecommand.StoreCommand) []Entry {
	out := make([]Entry, len(cmds))
	for i, cmd := range cmds {
		out[i] = commandEntry(cmd)
	}
	return out
}
