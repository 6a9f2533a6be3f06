// Package config loads this node's runtime configuration: its own id,
// the cluster's peer address table, listen address, data directory, and
// the consensus/election tick periods. It is backed by spf13/viper so
// settings can come from a config file or environment variables
// interchangeably; no setting is bound to a command-line flag.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Peer is one entry of the cluster's node table.
type Peer struct {
	ID   uint64 `mapstructure:"id"`
	Addr string `mapstructure:"addr"`
}

// Config is a fully-resolved node configuration.
type Config struct {
	NodeID     uint64
	ListenAddr string
	DataDir    string
	Peers      []Peer

	ConsensusTick time.Duration
	ElectionTick  time.Duration

	// Priority breaks leader-election ties in this node's favor; see
	// internal/ble.Config.Priority.
	Priority uint64
}

// Load reads configuration from environment variables prefixed PAXOSDB_,
// configPath (if non-empty), and the defaults below, in decreasing order
// of precedence.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAXOSDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", "127.0.0.1:9000")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("consensus_tick_ms", 1)
	v.SetDefault("election_tick_ms", 20)
	v.SetDefault("priority", 1)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	nodeID := v.GetUint64("node_id")
	if nodeID == 0 {
		return Config{}, fmt.Errorf("config: node_id is required and must be non-zero")
	}

	var peers []Peer
	if err := v.UnmarshalKey("peers", &peers); err != nil {
		return Config{}, fmt.Errorf("config: peers: %w", err)
	}
	if len(peers) == 0 {
		return Config{}, fmt.Errorf("config: at least one peer (including this node) is required")
	}
	found := false
	for _, p := range peers {
		if p.ID == nodeID {
			found = true
			break
		}
	}
	if !found {
		return Config{}, fmt.Errorf("config: peers must include an entry for node_id %d", nodeID)
	}

	return Config{
		NodeID:        nodeID,
		ListenAddr:    v.GetString("listen_addr"),
		DataDir:       v.GetString("data_dir"),
		Peers:         peers,
		ConsensusTick: time.Duration(v.GetInt64("consensus_tick_ms")) * time.Millisecond,
		ElectionTick:  time.Duration(v.GetInt64("election_tick_ms")) * time.Millisecond,
		Priority:      v.GetUint64("priority"),
	}, nil
}

// PeerIDs returns every node id in the cluster, including this node's own.
func (c Config) PeerIDs() []uint64 {
	ids := make([]uint64, len(c.Peers))
	for i, p := range c.Peers {
		ids[i] = p.ID
	}
	return ids
}

// Addr returns the listen address for the given peer id, or "" if unknown.
func (c Config) Addr(id uint64) string {
	for _, p := range c.Peers {
		if p.ID == id {
			return p.Addr
		}
	}
	return ""
}
