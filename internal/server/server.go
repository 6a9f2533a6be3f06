// Package server implements the Server Runtime of spec §4.4: the node
// process that owns the Consensus Core and BLE Core behind a single
// mutex, drives them with independent tickers, pumps decided entries
// into the SQL Engine, and answers client queries at the requested
// consistency level.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ermiashabtegabr/omni-chiselstore/internal/ballot"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/ble"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/config"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/logging"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/notifier"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/paxos"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/sqlengine"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/storecommand"
)

// Sender delivers outbound protocol messages to peers. internal/transport
// implements this over HTTP; tests can fake it in-process.
type Sender interface {
	SendPaxos(to uint64, msg paxos.Message)
	SendBLE(to uint64, msg ble.Message)
}

// Server is the node's runtime: the single place that mutates the
// Consensus Core and BLE Core, and the only caller of internal/sqlengine.
type Server struct {
	nodeID uint64
	logger *logging.Logger
	sender Sender

	mu        sync.Mutex
	consensus *paxos.Core
	election  *ble.Core
	lastLeader ballot.Ballot

	engine     *sqlengine.Engine
	notify     *notifier.Notifier
	proposal   uint64 // per-node monotonic counter for minting command ids
	appliedIdx uint64 // highest decided index already applied to engine

	consensusTick time.Duration
	electionTick  time.Duration

	stop chan struct{}
	done chan struct{}
}

// New constructs a Server from cfg. It opens the local SQL engine but does
// not start the tick loops; call Start for that.
func New(cfg config.Config, logger *logging.Logger, sender Sender) (*Server, error) {
	engine, err := sqlengine.Open()
	if err != nil {
		return nil, fmt.Errorf("server: open sql engine: %w", err)
	}
	peers := cfg.PeerIDs()
	return &Server{
		nodeID:        cfg.NodeID,
		logger:        logger,
		sender:        sender,
		consensus:     paxos.NewCore(paxos.Config{NodeID: cfg.NodeID, Peers: peers}),
		election:      ble.NewCore(ble.Config{NodeID: cfg.NodeID, Peers: peers, Priority: cfg.Priority}),
		engine:        engine,
		notify:        notifier.New(),
		consensusTick: cfg.ConsensusTick,
		electionTick:  cfg.ElectionTick,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}, nil
}

// Start launches the consensus and election tick loops. It returns
// immediately; call Stop to shut them down.
func (s *Server) Start() {
	go s.run()
}

// Stop halts the tick loops and closes the local SQL engine.
func (s *Server) Stop() {
	close(s.stop)
	<-s.done
	s.engine.Close()
}

func (s *Server) run() {
	defer close(s.done)
	consensusTicker := time.NewTicker(s.consensusTick)
	electionTicker := time.NewTicker(s.electionTick)
	defer consensusTicker.Stop()
	defer electionTicker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-electionTicker.C:
			s.mu.Lock()
			s.election.Tick()
			s.adoptLeaderLocked()
			s.drainElectionLocked()
			s.mu.Unlock()
		case <-consensusTicker.C:
			s.mu.Lock()
			s.consensus.Tick()
			s.drainConsensusLocked()
			s.applyDecidedLocked()
			s.mu.Unlock()
		}
	}
}

// adoptLeaderLocked forwards a BLE leadership change into the Consensus
// Core, per spec §4.4. Must be called with s.mu held.
func (s *Server) adoptLeaderLocked() {
	leader, connected := s.election.Leader()
	if !connected || leader.IsZero() || leader.Equal(s.lastLeader) {
		return
	}
	s.lastLeader = leader
	s.consensus.NewBallot(leader)
}

func (s *Server) drainElectionLocked() {
	for _, msg := range s.election.OutgoingMessages() {
		s.sender.SendBLE(msg.To, msg)
	}
}

func (s *Server) drainConsensusLocked() {
	for _, msg := range s.consensus.OutgoingMessages() {
		s.sender.SendPaxos(msg.To, msg)
	}
}

// applyDecidedLocked replays newly decided log entries into the SQL
// engine and completes any client waiting on them. Must be called with
// s.mu held, but engine application itself does not need the lock held
// (sqlengine.Engine is independently synchronized); we keep it under
// s.mu here so ReadDecidedSuffix/GetDecidedIdx observe a consistent core.
func (s *Server) applyDecidedLocked() {
	suffix := s.consensus.ReadDecidedSuffix(s.appliedIdx)
	if len(suffix) == 0 {
		return
	}
	for _, entry := range suffix {
		s.appliedIdx++
		if entry.IsStopSign() {
			continue
		}
		cmd := *entry.Command
		res, err := s.engine.Apply(cmd)
		s.notify.Complete(cmd.Id, notifier.Result{Payload: res, Err: err})
	}
}

// RecvPaxosMessage feeds an inbound consensus message to the Consensus
// Core and drains/applies any resulting effects.
func (s *Server) RecvPaxosMessage(msg paxos.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consensus.Handle(msg)
	s.drainConsensusLocked()
	s.applyDecidedLocked()
}

// RecvBLEMessage feeds an inbound election message to the BLE Core.
func (s *Server) RecvBLEMessage(msg ble.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.election.Handle(msg)
	s.adoptLeaderLocked()
	s.drainElectionLocked()
}

// mintCommandID produces a cluster-wide unique command id: the high 32
// bits are this node's id, the low 32 bits are a per-node counter, so two
// nodes never mint the same id without needing a coordination round trip.
func (s *Server) mintCommandID() uint64 {
	s.proposal++
	return (s.nodeID << 32) | s.proposal
}

// Query executes sql at the given consistency level (spec §4.4/§6).
// Strong routes through the replicated log and blocks until the command
// decides and applies; RelaxedReads executes directly against the local
// engine and may return stale results.
func (s *Server) Query(ctx context.Context, sql string, consistency storecommand.Consistency) (storecommand.QueryResults, error) {
	if consistency == storecommand.RelaxedReads {
		return s.engine.QueryLocal(sql)
	}

	s.mu.Lock()
	id := s.mintCommandID()
	cmd := storecommand.StoreCommand{Id: id, Sql: sql}
	waitCh := s.notify.Register(id)
	err := s.consensus.Append(cmd)
	s.drainConsensusLocked()
	s.mu.Unlock()
	if err != nil {
		s.notify.Cancel(id)
		return storecommand.QueryResults{}, fmt.Errorf("server: append: %w", err)
	}

	select {
	case res := <-waitCh:
		if res.Err != nil {
			return storecommand.QueryResults{}, res.Err
		}
		qr, _ := res.Payload.(storecommand.QueryResults)
		return qr, nil
	case <-ctx.Done():
		s.notify.Cancel(id)
		return storecommand.QueryResults{}, ctx.Err()
	}
}

// IsLeader reports whether this node currently believes itself to be the
// consensus leader.
func (s *Server) IsLeader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consensus.IsLeader()
}
