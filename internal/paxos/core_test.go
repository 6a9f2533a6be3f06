package paxos

import (
	"testing"

	"github.com/ermiashabtegabr/omni-chiselstore/internal/ballot"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/storecommand"
)

// cluster drives a set of Core instances in-process, routing every
// OutgoingMessages() result to its destination's Handle. It is a test
// harness only, standing in for internal/transport + internal/server.
type cluster struct {
	nodes map[uint64]*Core
}

func newCluster(ids []uint64) *cluster {
	cl := &cluster{nodes: make(map[uint64]*Core)}
	for _, id := range ids {
		cl.nodes[id] = NewCore(Config{NodeID: id, Peers: ids})
	}
	return cl
}

// pump delivers every pending outgoing message to its destination, once.
// It returns the number of messages delivered.
func (cl *cluster) pump() int {
	delivered := 0
	for _, n := range cl.nodes {
		for _, msg := range n.OutgoingMessages() {
			dst, ok := cl.nodes[msg.To]
			if !ok {
				continue
			}
			dst.Handle(msg)
			delivered++
		}
	}
	return delivered
}

// settle pumps until no more messages move, or maxRounds is hit.
func (cl *cluster) settle(maxRounds int) {
	for i := 0; i < maxRounds; i++ {
		if cl.pump() == 0 {
			return
		}
	}
}

func (cl *cluster) tick() {
	for _, n := range cl.nodes {
		n.Tick()
	}
}

func electLeader(cl *cluster, leader uint64) {
	cl.nodes[leader].NewBallot(ballot.Ballot{N: 1, Priority: 1, Pid: leader})
	cl.settle(10)
}

func TestSingleNodeAppendDecides(t *testing.T) {
	cl := newCluster([]uint64{1})
	electLeader(cl, 1)

	if !cl.nodes[1].IsLeader() {
		t.Fatalf("node 1 should be leader in a 1-node cluster")
	}

	if err := cl.nodes[1].Append(storecommand.StoreCommand{Id: 1, Sql: "insert into t values (1)"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	cl.tick()
	cl.settle(10)

	if got := cl.nodes[1].GetDecidedIdx(); got != 1 {
		t.Fatalf("decided idx = %d, want 1", got)
	}
	suf := cl.nodes[1].ReadDecidedSuffix(0)
	if len(suf) != 1 || !suf[0].IsCommand() || suf[0].Command.Id != 1 {
		t.Fatalf("unexpected decided suffix: %+v", suf)
	}
}

func TestThreeNodeReplication(t *testing.T) {
	ids := []uint64{1, 2, 3}
	cl := newCluster(ids)
	electLeader(cl, 1)

	if !cl.nodes[1].IsLeader() {
		t.Fatalf("node 1 should be leader")
	}
	for _, id := range []uint64{2, 3} {
		if cl.nodes[id].IsLeader() {
			t.Fatalf("node %d should not be leader", id)
		}
	}

	if err := cl.nodes[1].Append(storecommand.StoreCommand{Id: 42, Sql: "insert into t values (42)"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	cl.tick()
	cl.settle(10)
	cl.tick()
	cl.settle(10)

	for _, id := range ids {
		if got := cl.nodes[id].GetDecidedIdx(); got != 1 {
			t.Fatalf("node %d decided idx = %d, want 1", id, got)
		}
	}
}

func TestFollowerForwardsToLeader(t *testing.T) {
	ids := []uint64{1, 2, 3}
	cl := newCluster(ids)
	electLeader(cl, 1)

	if err := cl.nodes[2].Append(storecommand.StoreCommand{Id: 7, Sql: "insert into t values (7)"}); err != nil {
		t.Fatalf("Append on follower: %v", err)
	}
	cl.settle(10) // delivers the ProposalForward to node 1
	cl.tick()
	cl.settle(10)
	cl.tick()
	cl.settle(10)

	for _, id := range ids {
		if got := cl.nodes[id].GetDecidedIdx(); got != 1 {
			t.Fatalf("node %d decided idx = %d, want 1", id, got)
		}
	}
}

func TestLeaderFailoverPreservesDecidedEntries(t *testing.T) {
	ids := []uint64{1, 2, 3}
	cl := newCluster(ids)
	electLeader(cl, 1)

	if err := cl.nodes[1].Append(storecommand.StoreCommand{Id: 1, Sql: "insert into t values (1)"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	cl.tick()
	cl.settle(10)
	cl.tick()
	cl.settle(10)

	// Node 2 wins a higher ballot and takes over leadership.
	cl.nodes[2].NewBallot(ballot.Ballot{N: 2, Priority: 1, Pid: 2})
	cl.settle(10)

	if !cl.nodes[2].IsLeader() {
		t.Fatalf("node 2 should be leader after higher ballot")
	}
	if err := cl.nodes[2].Append(storecommand.StoreCommand{Id: 2, Sql: "insert into t values (2)"}); err != nil {
		t.Fatalf("Append on new leader: %v", err)
	}
	cl.tick()
	cl.settle(10)
	cl.tick()
	cl.settle(10)

	for _, id := range ids {
		suf := cl.nodes[id].ReadDecidedSuffix(0)
		if len(suf) != 2 {
			t.Fatalf("node %d: decided suffix len = %d, want 2 (%+v)", id, len(suf), suf)
		}
		if suf[0].Command.Id != 1 || suf[1].Command.Id != 2 {
			t.Fatalf("node %d: unexpected decided order: %+v", id, suf)
		}
	}
}

func TestMessageDropToleranceViaTick(t *testing.T) {
	ids := []uint64{1, 2, 3}
	cl := newCluster(ids)
	electLeader(cl, 1)

	if err := cl.nodes[1].Append(storecommand.StoreCommand{Id: 1, Sql: "insert into t values (1)"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Drop the first round of replication messages (the leader's
	// AcceptDecide to each follower) entirely.
	cl.tick()
	for _, n := range cl.nodes {
		n.OutgoingMessages()
	}

	// Second tick retransmits and should fully converge.
	cl.tick()
	cl.settle(10)

	for _, id := range ids {
		if got := cl.nodes[id].GetDecidedIdx(); got != 1 {
			t.Fatalf("node %d decided idx = %d, want 1 after retransmit", id, got)
		}
	}
}

// pumpExcept is like cluster.pump but silently drops any message into or
// out of isolated, simulating that node being partitioned away.
func (cl *cluster) pumpExcept(isolated uint64) int {
	delivered := 0
	for id, n := range cl.nodes {
		if id == isolated {
			n.OutgoingMessages() // drop, as if never sent
			continue
		}
		for _, msg := range n.OutgoingMessages() {
			if msg.To == isolated {
				continue
			}
			dst, ok := cl.nodes[msg.To]
			if !ok {
				continue
			}
			dst.Handle(msg)
			delivered++
		}
	}
	return delivered
}

func (cl *cluster) settleExcept(isolated uint64, maxRounds int) {
	for i := 0; i < maxRounds; i++ {
		if cl.pumpExcept(isolated) == 0 {
			return
		}
	}
}

// TestLaggingNodeElectedLeaderAdoptsDecidedEntry covers the case where BLE
// elects a node on ballot alone while that node's own log is behind what a
// majority already decided: becomeLeader must absorb the missing entry from
// a Promise rather than pushing its own shorter log onto the rest of the
// cluster and losing it.
func TestLaggingNodeElectedLeaderAdoptsDecidedEntry(t *testing.T) {
	ids := []uint64{1, 2, 3}
	cl := newCluster(ids)
	electLeader(cl, 1)

	// Partition node 3 away, then decide an entry across the remaining
	// majority {1, 2}. Node 3 never observes any of this.
	if err := cl.nodes[1].Append(storecommand.StoreCommand{Id: 1, Sql: "insert into t values (1)"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	cl.tick()
	cl.settleExcept(3, 10)
	cl.tick()
	cl.settleExcept(3, 10)

	if got := cl.nodes[1].GetDecidedIdx(); got != 1 {
		t.Fatalf("node 1 decided idx = %d, want 1", got)
	}
	if got := cl.nodes[2].GetDecidedIdx(); got != 1 {
		t.Fatalf("node 2 decided idx = %d, want 1", got)
	}
	if got := cl.nodes[3].GetDecidedIdx(); got != 0 {
		t.Fatalf("node 3 decided idx = %d, want 0 (still isolated)", got)
	}

	// The partition heals and node 3 wins a higher ballot despite its
	// empty log.
	cl.nodes[3].NewBallot(ballot.Ballot{N: 5, Priority: 1, Pid: 3})
	cl.settle(10)

	if !cl.nodes[3].IsLeader() {
		t.Fatalf("node 3 should be leader after winning the higher ballot")
	}

	for _, id := range ids {
		suf := cl.nodes[id].ReadDecidedSuffix(0)
		if len(suf) != 1 || suf[0].Command == nil || suf[0].Command.Id != 1 {
			t.Fatalf("node %d: lost the pre-partition decided entry, suffix = %+v", id, suf)
		}
	}
}

func TestStopSignReconfiguration(t *testing.T) {
	ids := []uint64{1, 2, 3}
	cl := newCluster(ids)
	electLeader(cl, 1)

	if err := cl.nodes[1].ProposeStopSign(storecommand.StopSign{ConfigId: 2, Nodes: []uint64{1, 2, 3, 4}}); err != nil {
		t.Fatalf("ProposeStopSign: %v", err)
	}
	cl.settle(10)

	for _, id := range ids {
		if err := cl.nodes[id].Append(storecommand.StoreCommand{Id: 99, Sql: "insert into t values (99)"}); err != ErrReconfigured {
			t.Fatalf("node %d Append after decided stop-sign: got %v, want ErrReconfigured", id, err)
		}
	}
}
