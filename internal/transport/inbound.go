package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ermiashabtegabr/omni-chiselstore/internal/ble"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/logging"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/paxos"
	"github.com/ermiashabtegabr/omni-chiselstore/internal/storecommand"
)

// Receiver is the inbound side of the node's runtime: internal/server.Server
// satisfies this.
type Receiver interface {
	RecvPaxosMessage(msg paxos.Message)
	RecvBLEMessage(msg ble.Message)
	Query(ctx context.Context, sql string, consistency storecommand.Consistency) (storecommand.QueryResults, error)
}

// Server is the inbound HTTP listener: one route for every consensus
// message (/v1/paxos) and one for every election message (/v1/ble), each
// dispatched on the message's kind field, plus the client-facing
// /v1/execute endpoint. There is no separate route per message kind.
type Server struct {
	logger  *logging.Logger
	recv    Receiver
	httpSrv *http.Server
}

// NewServer builds an inbound transport Server bound to addr.
func NewServer(addr string, logger *logging.Logger, recv Receiver) *Server {
	r := mux.NewRouter()
	s := &Server{logger: logger, recv: recv}

	r.HandleFunc("/v1/paxos", s.handlePaxos).Methods(http.MethodPost)
	r.HandleFunc("/v1/ble", s.handleBLE).Methods(http.MethodPost)
	r.HandleFunc("/v1/execute", s.handleExecute).Methods(http.MethodPost)

	s.httpSrv = &http.Server{Addr: addr, Handler: r}
	return s
}

// ListenAndServe blocks serving inbound requests until Shutdown is
// called.
func (s *Server) ListenAndServe() error {
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handlePaxos(w http.ResponseWriter, r *http.Request) {
	var msg paxos.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.logger != nil {
		if traceID := r.Header.Get(TraceHeader); traceID != "" {
			s.logger.WithFields(map[string]interface{}{"trace_id": traceID}).Debugf("transport: received %s from node %d", msg.Kind, msg.From)
		}
	}
	s.recv.RecvPaxosMessage(msg)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBLE(w http.ResponseWriter, r *http.Request) {
	var msg ble.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.recv.RecvBLEMessage(msg)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	results, err := s.recv.Query(ctx, req.Sql, storecommand.ConsistencyFromWire(req.Consistency))
	if err != nil {
		s.logger.Warnf("transport: execute failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, ExecuteResponse{Results: results})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
