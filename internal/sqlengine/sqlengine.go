// Package sqlengine wraps the node-local SQL engine backing the
// replicated log (spec §4.1). Every decided StoreCommand is applied to
// the same in-memory database every replica holds, so replaying the log
// in order reproduces identical state on every node.
package sqlengine

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/ermiashabtegabr/omni-chiselstore/internal/storecommand"
)

// Engine is a single node's local SQL database. It is safe for concurrent
// use: Apply and QueryLocal serialize through mu so decided commands are
// applied in order and relaxed reads never race a concurrent write.
type Engine struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates a fresh, private in-memory database for this node. Each
// node's Engine is independent; consistency across nodes comes entirely
// from replaying the same decided log, not from shared storage.
//
// The pool is pinned to a single connection: an unshared ":memory:" DSN
// is scoped to the connection that opened it, so a second connection
// (or a second Engine in the same process, as in tests with several
// nodes) would otherwise see an empty database of its own rather than
// this one.
func Open() (*Engine, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("sqlengine: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Engine{db: db}, nil
}

// Close releases the underlying database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Apply executes a decided StoreCommand's SQL against the local database
// and renders any result rows. It must be called with entries in decided
// log order; callers (internal/server) are responsible for that
// ordering, Apply itself has no notion of log position.
func (e *Engine) Apply(cmd storecommand.StoreCommand) (storecommand.QueryResults, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.execLocked(cmd.Sql)
}

// QueryLocal executes sql directly against the local database without
// going through the log, for storecommand.RelaxedReads consistency.
func (e *Engine) QueryLocal(sql string) (storecommand.QueryResults, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.execLocked(sql)
}

func (e *Engine) execLocked(query string) (storecommand.QueryResults, error) {
	rows, err := e.db.Query(query)
	if err != nil {
		if _, execErr := e.db.Exec(query); execErr != nil {
			return storecommand.QueryResults{}, fmt.Errorf("sqlengine: %w", execErr)
		}
		return storecommand.QueryResults{}, nil
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return storecommand.QueryResults{}, fmt.Errorf("sqlengine: columns: %w", err)
	}

	results := storecommand.QueryResults{}
	raw := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return storecommand.QueryResults{}, fmt.Errorf("sqlengine: scan: %w", err)
		}
		row := storecommand.QueryRow{Values: make([]string, len(cols))}
		for i, v := range raw {
			row.Values[i] = renderValue(v)
		}
		results.Rows = append(results.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return storecommand.QueryResults{}, fmt.Errorf("sqlengine: rows: %w", err)
	}
	return results, nil
}

// renderValue stringifies a column value, using "NULL" as the sentinel
// for SQL NULL so result rows are always plain strings on the wire.
func renderValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
