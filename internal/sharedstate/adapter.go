// Package sharedstate maintains one optimistic local cache per replicated
// resource (workspace folder trees, runbook documents) on top of an adapter
// capability supplied externally.
//
// The cache is the single piece of mutable state shared across call sites:
// all mutation goes through UpdateOptimistic and all reads go through
// GetDataOnce, never around them.
package sharedstate

import "context"

// Mutation is the delta pushed through an adapter after an optimistic local
// update: the full updated document plus the change ref correlating it to
// the operation-log entry that accompanies it.
type Mutation struct {
	ChangeRef int64
	Document  []byte
}

// Adapter is the collaborative-channel capability for one resource key.
// Implementations are supplied externally (the engine ships a websocket
// adapter); the manager never interprets the transport.
type Adapter interface {
	// Fetch returns the current raw document.
	Fetch(ctx context.Context) ([]byte, error)

	// Subscribe registers onChange for server-pushed document updates and
	// returns the teardown function. onChange may be invoked from any
	// goroutine.
	Subscribe(onChange func(doc []byte)) (func(), error)

	// Push delivers an optimistic mutation. Push failures do not roll the
	// local copy back; the server's own replicated state wins eventually.
	Push(ctx context.Context, m Mutation) error
}
