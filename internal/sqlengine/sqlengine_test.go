package sqlengine

import (
	"testing"

	"github.com/ermiashabtegabr/omni-chiselstore/internal/storecommand"
)

func TestApplyThenQueryLocal(t *testing.T) {
	eng, err := Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer eng.Close()

	if _, err := eng.Apply(storecommand.StoreCommand{Id: 1, Sql: "CREATE TABLE t (id INTEGER, name TEXT)"}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := eng.Apply(storecommand.StoreCommand{Id: 2, Sql: "INSERT INTO t VALUES (1, 'a')"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	res, err := eng.QueryLocal("SELECT id, name FROM t ORDER BY id")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(res.Rows))
	}
	if res.Rows[0].Values[0] != "1" || res.Rows[0].Values[1] != "a" {
		t.Fatalf("unexpected row: %+v", res.Rows[0])
	}
}

func TestQueryRendersNull(t *testing.T) {
	eng, err := Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer eng.Close()

	if _, err := eng.Apply(storecommand.StoreCommand{Id: 1, Sql: "CREATE TABLE t (id INTEGER, name TEXT)"}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := eng.Apply(storecommand.StoreCommand{Id: 2, Sql: "INSERT INTO t (id) VALUES (1)"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	res, err := eng.QueryLocal("SELECT name FROM t")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0].Values[0] != "NULL" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
