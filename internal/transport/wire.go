// Package transport carries Consensus Core and BLE Core messages between
// nodes over HTTP, and exposes the client-facing query endpoint. Wire
// encoding is plain JSON: spec §4.7/§6 place binary wire encoding and
// schema registration out of scope, so there is no protobuf codegen step
// to depend on here.
package transport

import "github.com/ermiashabtegabr/omni-chiselstore/internal/storecommand"

// ExecuteRequest is the body of a POST /v1/execute call.
type ExecuteRequest struct {
	Sql         string `json:"sql"`
	Consistency int    `json:"consistency"`
}

// ExecuteResponse is the body of a successful /v1/execute response.
type ExecuteResponse struct {
	Results storecommand.QueryResults `json:"results"`
}

// ErrorResponse is the body of a failed request of any kind.
type ErrorResponse struct {
	Error string `json:"error"`
}
