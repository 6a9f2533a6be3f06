// Package notifier implements the Client Notifier of spec §4.5: a
// registry mapping a proposed command's id to a one-shot completion
// signal, so the caller that proposed a command can block until it is
// decided and applied without the Server Runtime needing to know about
// HTTP requests, goroutines, or anything else client-facing.
package notifier

import "sync"

// Result is what a waiter receives once its command completes.
type Result struct {
	// Payload carries the command's result (internal/server stores a
	// storecommand.QueryResults here); it is untyped so this package
	// stays independent of the result types.
	Payload interface{}
	Err     error
}

// Notifier tracks in-flight commands by id and lets callers wait for
// completion. Completing an id more than once is a no-op: the first
// completion wins, matching the at-least-once delivery of the
// replicated log (a command may be observed decided more than once
// during leader changeover).
type Notifier struct {
	mu      sync.Mutex
	waiters map[uint64]chan Result
}

// New constructs an empty Notifier.
func New() *Notifier {
	return &Notifier{waiters: make(map[uint64]chan Result)}
}

// Register creates a completion slot for id and returns the channel the
// caller should receive on. It must be called before the corresponding
// command is proposed, to avoid missing a fast completion.
func (n *Notifier) Register(id uint64) <-chan Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, ok := n.waiters[id]
	if !ok {
		ch = make(chan Result, 1)
		n.waiters[id] = ch
	}
	return ch
}

// Complete delivers a result to id's waiter, if one is registered. It is
// idempotent: subsequent calls for the same id are ignored.
func (n *Notifier) Complete(id uint64, res Result) {
	n.mu.Lock()
	ch, ok := n.waiters[id]
	if ok {
		delete(n.waiters, id)
	}
	n.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- res:
	default:
	}
}

// Cancel removes a waiter without completing it, e.g. when a caller gives
// up (context deadline) before the command decides.
func (n *Notifier) Cancel(id uint64) {
	n.mu.Lock()
	delete(n.waiters, id)
	n.mu.Unlock()
}
