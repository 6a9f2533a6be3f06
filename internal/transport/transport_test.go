package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ermiashabtegabr/omni-chiselstore/internal/ballot"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/ble"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/paxos"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/storecommand"
)

// fakeReceiver records whatever it's handed, for assertions.
type fakeReceiver struct {
	mu        sync.Mutex
	gotPaxos  []paxos.Message
	gotBLE    []ble.Message
	queryFunc func(ctx context.Context, sql string, consistency storecommand.Consistency) (storecommand.QueryResults, error)
}

func (f *fakeReceiver) RecvPaxosMessage(msg paxos.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotPaxos = append(f.gotPaxos, msg)
}

func (f *fakeReceiver) RecvBLEMessage(msg ble.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotBLE = append(f.gotBLE, msg)
}

func (f *fakeReceiver) Query(ctx context.Context, sql string, consistency storecommand.Consistency) (storecommand.QueryResults, error) {
	return f.queryFunc(ctx, sql, consistency)
}

func TestHandlePaxosDecodesAndDispatches(t *testing.T) {
	recv := &fakeReceiver{}
	srv := NewServer("127.0.0.1:0", nil, recv)
	ts := httptest.NewServer(srv.httpSrv.Handler)
	defer ts.Close()

	msg := paxos.Message{
		From: 1, To: 2, Kind: paxos.KindPrepare,
		Prepare: &paxos.Prepare{N: ballot.Ballot{N: 1, Priority: 1, Pid: 1}, Ld: 0, La: 0},
	}
	body, _ := json.Marshal(msg)
	resp, err := http.Post(ts.URL+"/v1/paxos", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	recv.mu.Lock()
	defer recv.mu.Unlock()
	if len(recv.gotPaxos) != 1 || recv.gotPaxos[0].Kind != paxos.KindPrepare || recv.gotPaxos[0].Prepare.N.Pid != 1 {
		t.Fatalf("unexpected dispatch: %+v", recv.gotPaxos)
	}
}

func TestHandleExecuteRoundTrips(t *testing.T) {
	recv := &fakeReceiver{
		queryFunc: func(ctx context.Context, sql string, consistency storecommand.Consistency) (storecommand.QueryResults, error) {
			if consistency != storecommand.RelaxedReads {
				t.Fatalf("consistency = %v, want RelaxedReads", consistency)
			}
			return storecommand.QueryResults{Rows: []storecommand.QueryRow{{Values: []string{"1", "a"}}}}, nil
		},
	}
	srv := NewServer("127.0.0.1:0", nil, recv)
	ts := httptest.NewServer(srv.httpSrv.Handler)
	defer ts.Close()

	reqBody, _ := json.Marshal(ExecuteRequest{Sql: "SELECT * FROM t", Consistency: int(storecommand.RelaxedReads)})
	resp, err := http.Post(ts.URL+"/v1/execute", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out ExecuteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Results.Rows) != 1 || out.Results.Rows[0].Values[0] != "1" {
		t.Fatalf("unexpected results: %+v", out.Results)
	}
}
