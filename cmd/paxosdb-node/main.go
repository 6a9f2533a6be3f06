// Command paxosdb-node runs a single replica of the distributed SQL
// store: it loads this node's configuration, wires the Server Runtime to
// the transport layer, and serves both inbound peer traffic and the
// client-facing query endpoint until terminated.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ermiashabtegabr/omni-chiselstore/internal/config"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/logging"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/server"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/transport"
)

var (
	configPath     = flag.String("config", "", "path to config file (optional; env vars and defaults still apply)")
	serviceVersion = "0.1.0"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("paxosdb-node: load config: %v", err)
	}

	logger := logging.New("paxosdb-node", serviceVersion)
	defer logger.Sync()

	addrs := make(map[uint64]string, len(cfg.Peers))
	for _, p := range cfg.Peers {
		if p.ID != cfg.NodeID {
			addrs[p.ID] = p.Addr
		}
	}
	sender := transport.NewNodeSender(logger, addrs)

	srv, err := server.New(cfg, logger, sender)
	if err != nil {
		logger.Fatalf("paxosdb-node: init server: %v", err)
	}
	srv.Start()

	inbound := transport.NewServer(cfg.ListenAddr, logger, srv)
	go func() {
		logger.Infof("paxosdb-node: node %d listening on %s", cfg.NodeID, cfg.ListenAddr)
		if err := inbound.ListenAndServe(); err != nil {
			logger.Errorf("paxosdb-node: inbound server stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("paxosdb-node: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := inbound.Shutdown(ctx); err != nil {
		logger.Errorf("paxosdb-node: inbound shutdown: %v", err)
	}
	srv.Stop()
}
