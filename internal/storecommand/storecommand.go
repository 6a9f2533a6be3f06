// Package storecommand holds the data types that flow through the
// replicated log: the unit of replication (StoreCommand), the structural
// stop-sign marker, the sync payload used to catch followers up, and the
// client-facing query/result types.
package storecommand

import "encoding/json"

// StoreCommand is the unit replicated through the log: a single SQL
// statement plus its globally unique id. Identity is by Id; decided
// commands are applied exactly once per node in log order.
type StoreCommand struct {
	Id  uint64 `json:"id"`
	Sql string `json:"sql"`
}

// StopSign marks a reconfiguration boundary: a new configuration id, the
// new node set, and optional metadata. Once a stop-sign decides, no further
// normal entries may be accepted under the current configuration.
//
// On the wire, Metadata travels as a list of u32 (stopSignWire.Metadata);
// each element is widened from a byte on encode and masked back with
// &0xFF on decode, so a value outside 0..=255 received from a future or
// misbehaving peer is truncated rather than rejected.
type StopSign struct {
	ConfigId uint32
	Nodes    []uint64
	Metadata []byte
}

type stopSignWire struct {
	ConfigId uint32   `json:"config_id"`
	Nodes    []uint64 `json:"nodes"`
	Metadata []uint32 `json:"metadata,omitempty"`
}

// MarshalJSON widens each metadata byte to a u32, per the wire format.
func (s StopSign) MarshalJSON() ([]byte, error) {
	w := stopSignWire{ConfigId: s.ConfigId, Nodes: s.Nodes}
	if len(s.Metadata) > 0 {
		w.Metadata = make([]uint32, len(s.Metadata))
		for i, b := range s.Metadata {
			w.Metadata[i] = uint32(b)
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON narrows each metadata element to its low 8 bits, per the
// boundary behavior in spec §8: values outside 0..=255 are truncated, not
// rejected.
func (s *StopSign) UnmarshalJSON(data []byte) error {
	var w stopSignWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.ConfigId = w.ConfigId
	s.Nodes = w.Nodes
	if len(w.Metadata) > 0 {
		s.Metadata = make([]byte, len(w.Metadata))
		for i, v := range w.Metadata {
			s.Metadata[i] = byte(v & 0xFF)
		}
	} else {
		s.Metadata = nil
	}
	return nil
}

// SyncItemKind discriminates the SyncItem union.
type SyncItemKind int

const (
	SyncItemEntries SyncItemKind = iota
	SyncItemSnapshot
	SyncItemNone
)

// SyncItem is carried in Promise/AcceptSync messages: either a list of
// entries to replay, a (trivial, complete-state) snapshot marker, or
// nothing. Snapshots for this store are trivial: full state is
// reconstructed by re-executing entries, so Snapshot carries no payload.
type SyncItem struct {
	Kind    SyncItemKind   `json:"kind"`
	Entries []StoreCommand `json:"entries,omitempty"`
}

// NewSyncItemEntries builds a SyncItem carrying a list of entries.
func NewSyncItemEntries(entries []StoreCommand) SyncItem {
	return SyncItem{Kind: SyncItemEntries, Entries: entries}
}

// NewSyncItemSnapshot builds a SyncItem carrying the trivial, complete
// snapshot marker.
func NewSyncItemSnapshot() SyncItem {
	return SyncItem{Kind: SyncItemSnapshot}
}

// NewSyncItemNone builds an empty SyncItem.
func NewSyncItemNone() SyncItem {
	return SyncItem{Kind: SyncItemNone}
}

// Consistency selects how a client query is routed.
type Consistency int

const (
	// Strong routes every query (read or write) through the log.
	// Linearizable.
	Strong Consistency = 0
	// RelaxedReads executes the statement directly on the local engine,
	// accepting staleness bounded by this node's apply lag.
	RelaxedReads Consistency = 1
)

// ConsistencyFromWire maps an arbitrary wire integer to a Consistency,
// defaulting unknown values to Strong per spec.
func ConsistencyFromWire(v int) Consistency {
	if v == int(RelaxedReads) {
		return RelaxedReads
	}
	return Strong
}

// QueryRow is one row of a query result; each column is the engine's
// string rendering of the value (NULL included, as a sentinel).
type QueryRow struct {
	Values []string `json:"values"`
}

// QueryResults is a list of rows returned by a query.
type QueryResults struct {
	Rows []QueryRow `json:"rows"`
}
