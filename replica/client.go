package replica

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// ClientMaterializer pairs the forward (optimistic) and inverse
// (rollback) apply functions for one event kind on the client.
// Rollback must be the algebraic inverse of Apply for the same
// payload - the library does not store pre-images to check this.
type ClientMaterializer struct {
	Apply    func(ctx context.Context, e CommitEvent) error
	Rollback func(ctx context.Context, c CommittedEvent) error
}

// ClientOptions configures a ClientReplica at construction time.
type ClientOptions struct {
	// Sequence is held but unused for correctness; reserved for
	// future gap detection.
	Sequence int64

	// Events declares the fixed set of event kinds this replica
	// accepts and the schema each payload must conform to.
	Events map[Name]Schema

	// Materializers supplies the apply/rollback pair for every name
	// in Events. A name missing either half is a ConfigError.
	Materializers map[Name]ClientMaterializer

	// OnCommit is invoked exactly once per dequeued event, after the
	// optimistic apply has succeeded and the event has been recorded
	// in the pending table. Optional.
	OnCommit func(ctx context.Context, e CommitEvent) error
}

// ClientStats is a read-only snapshot of a ClientReplica's counters.
type ClientStats struct {
	PendingCount int
	QueueDepth   int
	Dequeued     int64
	Applied      int64
	ApplyFailed  int64
}

// ClientReplica optimistically applies events on submission, tracks
// them in a pending table keyed by a clientId it mints itself, and
// reconciles server acknowledgements against that table on Receive.
type ClientReplica struct {
	events        map[Name]Schema
	materializers map[Name]ClientMaterializer
	onCommit      func(ctx context.Context, e CommitEvent) error

	queue *eventQueue

	mu       sync.Mutex
	sequence int64
	pending  map[string]CommitEvent

	dequeued    int64
	applied     int64
	applyFailed int64
}

// NewClientReplica validates opts and starts the replica's drain
// goroutine. Every name in opts.Events must have both an Apply and a
// Rollback materializer; otherwise a *ConfigError is returned
// enumerating every offending name.
func NewClientReplica(opts ClientOptions) (*ClientReplica, error) {
	var reasons []string
	for name := range opts.Events {
		m, ok := opts.Materializers[name]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("event %q has no materializer", name))
			continue
		}
		if m.Apply == nil {
			reasons = append(reasons, fmt.Sprintf("event %q is missing apply", name))
		}
		if m.Rollback == nil {
			reasons = append(reasons, fmt.Sprintf("event %q is missing rollback", name))
		}
	}
	if len(reasons) > 0 {
		return nil, &ConfigError{Reasons: reasons}
	}

	c := &ClientReplica{
		events:        opts.Events,
		materializers: opts.Materializers,
		onCommit:      opts.OnCommit,
		queue:         newEventQueue(),
		sequence:      opts.Sequence,
		pending:       make(map[string]CommitEvent),
	}
	go c.drain()
	return c, nil
}

// Commit validates e against its declared schema and, on success,
// enqueues it for optimistic application. It resolves as soon as the
// event is enqueued.
func (c *ClientReplica) Commit(ctx context.Context, e CommitEvent) error {
	schema, ok := c.events[e.Name]
	if !ok {
		return &ValidationError{Name: e.Name, Reason: "unregistered event name"}
	}
	if err := schema.Validate(e.Payload); err != nil {
		return &ValidationError{Name: e.Name, Reason: err.Error()}
	}
	c.queue.offer(e)
	return nil
}

// Stats returns a snapshot of the replica's counters.
func (c *ClientReplica) Stats() ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientStats{
		PendingCount: len(c.pending),
		QueueDepth:   c.queue.len(),
		Dequeued:     c.dequeued,
		Applied:      c.applied,
		ApplyFailed:  c.applyFailed,
	}
}

// drain repeats forever: take the next validated event, mint a
// clientId, optimistically apply it, record it as pending, then
// invoke onCommit. If apply fails the event is not recorded in
// pending and onCommit is not invoked - the server will never hear
// about it.
func (c *ClientReplica) drain() {
	ctx := context.Background()
	for {
		e := c.queue.take()
		c.mu.Lock()
		c.dequeued++
		c.mu.Unlock()
		c.runOne(ctx, e)
	}
}

func (c *ClientReplica) runOne(ctx context.Context, e CommitEvent) {
	e.ClientID = newClientID()
	materializer := c.materializers[e.Name]

	err := c.callApply(ctx, materializer.Apply, e)
	if err != nil {
		c.mu.Lock()
		c.applyFailed++
		c.mu.Unlock()
		log.Printf("[replica/client] apply failed for event %q: %v", e.Name, err)
		return
	}

	c.mu.Lock()
	c.applied++
	c.pending[e.ClientID] = e
	c.mu.Unlock()

	c.dispatchOnCommit(ctx, e)
}

func (c *ClientReplica) callApply(ctx context.Context, apply func(context.Context, CommitEvent) error, e CommitEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("apply panic: %v", r)
		}
	}()
	return apply(ctx, e)
}

func (c *ClientReplica) dispatchOnCommit(ctx context.Context, e CommitEvent) {
	if c.onCommit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[replica/client] onCommit panicked for event %q: %v", e.Name, r)
		}
	}()
	if err := c.onCommit(ctx, e); err != nil {
		log.Printf("[replica/client] onCommit returned error for event %q: %v", e.Name, err)
	}
}

// Receive reconciles an acknowledgement from the server against the
// pending table:
//
//   - matching clientId, success: the pending entry is retired; state
//     already reflects it from the optimistic apply.
//   - matching clientId, failure: rollback is run, then the pending
//     entry is retired regardless of whether rollback errors.
//   - no matching clientId, success: applied blindly (a foreign
//     client's successful event, or a server-originated broadcast).
//   - no matching clientId, failure: ignored - it isn't ours to undo.
func (c *ClientReplica) Receive(ctx context.Context, committed CommittedEvent) error {
	var found bool
	if committed.ClientID != "" {
		c.mu.Lock()
		_, found = c.pending[committed.ClientID]
		c.mu.Unlock()
	}

	switch {
	case found && committed.Error:
		c.runRollback(ctx, committed)
		c.removePending(committed.ClientID)
	case found && !committed.Error:
		c.removePending(committed.ClientID)
	case !found && committed.Error:
		// ignore: an error ack with no matching pending entry is not
		// ours to undo.
	case !found && !committed.Error:
		c.runForeignApply(ctx, committed)
	}
	return nil
}

func (c *ClientReplica) removePending(clientID string) {
	c.mu.Lock()
	delete(c.pending, clientID)
	c.mu.Unlock()
}

func (c *ClientReplica) runRollback(ctx context.Context, committed CommittedEvent) {
	materializer, ok := c.materializers[committed.Name]
	if !ok {
		log.Printf("[replica/client] rollback skipped: event %q has no materializer", committed.Name)
		return
	}
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("rollback panic: %v", r)
			}
		}()
		return materializer.Rollback(ctx, committed)
	}()
	if err != nil {
		log.Printf("[replica/client] rollback failed for event %q: %v", committed.Name, err)
	}
}

func (c *ClientReplica) runForeignApply(ctx context.Context, committed CommittedEvent) {
	materializer, ok := c.materializers[committed.Name]
	if !ok {
		log.Printf("[replica/client] foreign apply skipped: event %q has no materializer", committed.Name)
		return
	}
	e := CommitEvent{Name: committed.Name, Payload: committed.Payload, ClientID: committed.ClientID}
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("apply panic: %v", r)
			}
		}()
		return materializer.Apply(ctx, e)
	}()
	if err != nil {
		log.Printf("[replica/client] foreign apply failed for event %q: %v", committed.Name, err)
	}
}
