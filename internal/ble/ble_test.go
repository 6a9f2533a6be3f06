package ble

import "testing"

// cluster drives a set of Core instances in-process, the same shape as
// internal/paxos's test harness.
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

func (cl *cluster) round() {
	for _, n := range cl.nodes {
		n.Tick()
	}
	for i := 0; i < 4; i++ {
		if cl.pump() == 0 {
			return
		}
	}
}

func TestElectsHighestPidOnFirstQuorum(t *testing.T) {
	ids := []uint64{1, 2, 3}
	cl := newCluster(ids)

	for i := 0; i < 4; i++ {
		cl.round()
	}

	for _, id := range ids {
		leader, connected := cl.nodes[id].Leader()
		if !connected {
			t.Fatalf("node %d: expected connected", id)
		}
		if leader.Pid != 3 {
			t.Fatalf("node %d: leader pid = %d, want 3 (highest id)", id, leader.Pid)
		}
	}
	if !cl.nodes[3].IsLeader() {
		t.Fatalf("node 3 should consider itself leader")
	}
}

func TestLosesQuorumWhenMajorityUnreachable(t *testing.T) {
	ids := []uint64{1, 2, 3, 4, 5}
	cl := newCluster(ids)
	for i := 0; i < 4; i++ {
		cl.round()
	}
	if _, connected := cl.nodes[1].Leader(); !connected {
		t.Fatalf("expected node 1 connected before partition")
	}

	// Simulate a partition: node 1 can no longer reach anyone.
	isolated := cl.nodes[1]
	for i := 0; i < defaultMaxMissedRounds+1; i++ {
		isolated.Tick()
		isolated.OutgoingMessages() // messages vanish into the partition
	}

	if _, connected := isolated.Leader(); connected {
		t.Fatalf("isolated node should have lost quorum")
	}
}

func TestReelectsAfterLeaderPartitioned(t *testing.T) {
	ids := []uint64{1, 2, 3}
	cl := newCluster(ids)
	for i := 0; i < 4; i++ {
		cl.round()
	}
	leader, _ := cl.nodes[1].Leader()
	if leader.Pid != 3 {
		t.Fatalf("expected node 3 to be the initial leader")
	}
	firstTerm := leader.N

	// Partition node 3 away from 1 and 2: stop delivering its messages and
	// stop ticking it, simulating a crash.
	remaining := map[uint64]*Core{1: cl.nodes[1], 2: cl.nodes[2]}
	for i := 0; i < defaultMaxMissedRounds+2; i++ {
		for _, n := range remaining {
			n.Tick()
		}
		for i := 0; i < 4; i++ {
			delivered := 0
			for _, n := range remaining {
				for _, msg := range n.OutgoingMessages() {
					if dst, ok := remaining[msg.To]; ok {
						dst.Handle(msg)
						delivered++
					}
				}
			}
			if delivered == 0 {
				break
			}
		}
	}

	newLeader, connected := cl.nodes[2].Leader()
	if !connected {
		t.Fatalf("nodes 1 and 2 alone still form a majority of the 3-node cluster")
	}
	if newLeader.Pid != 2 {
		t.Fatalf("expected node 2 (highest remaining id) to take over, got pid %d", newLeader.Pid)
	}
	if newLeader.N <= firstTerm {
		t.Fatalf("new leader ballot should have advanced past the first term: got N=%d, first term N=%d", newLeader.N, firstTerm)
	}
}
