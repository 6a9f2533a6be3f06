package server

import (
	"context"
	"testing"
	"time"

	"github.com/ermiashabtegabr/omni-chiselstore/internal/ble"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/config"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/logging"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/paxos"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/storecommand"
)

// wireSender delivers messages directly to the destination Server's
// Recv*Message methods, standing in for internal/transport in tests.
type wireSender struct {
	servers map[uint64]*Server
}

func (w *wireSender) SendPaxos(to uint64, msg paxos.Message) {
	if dst, ok := w.servers[to]; ok {
		go dst.RecvPaxosMessage(msg)
	}
}

func (w *wireSender) SendBLE(to uint64, msg ble.Message) {
	if dst, ok := w.servers[to]; ok {
		go dst.RecvBLEMessage(msg)
	}
}

func newTestCluster(t *testing.T, ids []uint64) (map[uint64]*Server, func()) {
	t.Helper()
	peers := make([]config.Peer, len(ids))
	for i, id := range ids {
		peers[i] = config.Peer{ID: id, Addr: "unused"}
	}
	sender := &wireSender{servers: make(map[uint64]*Server)}
	logger := logging.New("paxosdb-node-test", "test")

	for _, id := range ids {
		cfg := config.Config{
			NodeID:        id,
			Peers:         peers,
			ConsensusTick: 2 * time.Millisecond,
			ElectionTick:  5 * time.Millisecond,
			Priority:      1,
		}
		srv, err := New(cfg, logger, sender)
		if err != nil {
			t.Fatalf("New(node %d): %v", id, err)
		}
		sender.servers[id] = srv
	}
	for _, s := range sender.servers {
		s.Start()
	}
	return sender.servers, func() {
		for _, s := range sender.servers {
			s.Stop()
		}
	}
}

func TestSingleNodeStrongQueryRoundTrips(t *testing.T) {
	servers, stop := newTestCluster(t, []uint64{1})
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := servers[1].Query(ctx, "CREATE TABLE t (id INTEGER)", storecommand.Strong); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := servers[1].Query(ctx, "INSERT INTO t VALUES (1)", storecommand.Strong); err != nil {
		t.Fatalf("insert: %v", err)
	}
	res, err := servers[1].Query(ctx, "SELECT id FROM t", storecommand.Strong)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0].Values[0] != "1" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestThreeNodeClusterReplicatesWrites(t *testing.T) {
	servers, stop := newTestCluster(t, []uint64{1, 2, 3})
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Wait for a leader to be elected.
	deadline := time.Now().Add(2 * time.Second)
	var leaderID uint64
	for time.Now().Before(deadline) {
		for id, s := range servers {
			if s.IsLeader() {
				leaderID = id
			}
		}
		if leaderID != 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if leaderID == 0 {
		t.Fatalf("no leader elected within deadline")
	}

	if _, err := servers[leaderID].Query(ctx, "CREATE TABLE t (id INTEGER)", storecommand.Strong); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := servers[leaderID].Query(ctx, "INSERT INTO t VALUES (42)", storecommand.Strong); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Give replication a moment, then check every node via RelaxedReads.
	time.Sleep(200 * time.Millisecond)
	for id, s := range servers {
		res, err := s.Query(ctx, "SELECT id FROM t", storecommand.RelaxedReads)
		if err != nil {
			t.Fatalf("node %d relaxed read: %v", id, err)
		}
		if len(res.Rows) != 1 || res.Rows[0].Values[0] != "42" {
			t.Fatalf("node %d: unexpected result: %+v", id, res)
		}
	}
}
