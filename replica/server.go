package replica

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// ServerMaterializer is the authoritative apply function for one
// event kind on the server. It may return synchronously or block;
// the drain loop calls it in-line and waits for it either way, so a
// slow materializer is treated the same as a fast one.
type ServerMaterializer func(ctx context.Context, e CommitEvent) error

// ServerOptions configures a ServerReplica at construction time.
type ServerOptions struct {
	// Sequence is the first slot assigned to a successful commit.
	Sequence int64

	// Events declares the fixed set of event kinds this replica
	// accepts and the schema each payload must conform to.
	Events map[Name]Schema

	// Materializers supplies the authoritative apply function for
	// every name in Events. A name present in Events but missing
	// here is a ConfigError.
	Materializers map[Name]ServerMaterializer

	// OnCommitted is invoked exactly once per dequeued event, after
	// its materializer has run (or failed). Optional.
	OnCommitted func(ctx context.Context, c CommittedEvent) error
}

// ServerStats is a read-only snapshot of a ServerReplica's counters,
// useful for diagnostics; it is not a durability mechanism and is not
// part of the wire contract.
type ServerStats struct {
	Sequence   int64
	QueueDepth int
	Dequeued   int64
	Successes  int64
	Failures   int64
}

// ServerReplica is the authoritative replica of a deterministic state
// machine. Validated events are applied strictly in submission order
// by a single drain goroutine, which assigns dense sequence numbers
// to successful commits and never advances sequence on failure.
type ServerReplica struct {
	events        map[Name]Schema
	materializers map[Name]ServerMaterializer
	onCommitted   func(ctx context.Context, c CommittedEvent) error

	queue *eventQueue

	mu       sync.Mutex
	sequence int64

	dequeued  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
}

// NewServerReplica validates opts and starts the replica's drain
// goroutine. Every name in opts.Events must have a materializer;
// otherwise a *ConfigError is returned.
func NewServerReplica(opts ServerOptions) (*ServerReplica, error) {
	var reasons []string
	for name := range opts.Events {
		if _, ok := opts.Materializers[name]; !ok {
			reasons = append(reasons, fmt.Sprintf("event %q has no materializer", name))
		}
	}
	if len(reasons) > 0 {
		return nil, &ConfigError{Reasons: reasons}
	}

	s := &ServerReplica{
		events:        opts.Events,
		materializers: opts.Materializers,
		onCommitted:   opts.OnCommitted,
		queue:         newEventQueue(),
		sequence:      opts.Sequence,
	}
	go s.drain()
	return s, nil
}

// Commit validates e against its declared schema and, on success,
// enqueues it for authoritative materialization. It resolves as soon
// as the event is enqueued - it does not wait for materialization or
// for OnCommitted.
func (s *ServerReplica) Commit(ctx context.Context, e CommitEvent) error {
	schema, ok := s.events[e.Name]
	if !ok {
		return &ValidationError{Name: e.Name, Reason: "unregistered event name"}
	}
	if err := schema.Validate(e.Payload); err != nil {
		return &ValidationError{Name: e.Name, Reason: err.Error()}
	}
	s.queue.offer(e)
	return nil
}

// Stats returns a snapshot of the replica's counters.
func (s *ServerReplica) Stats() ServerStats {
	s.mu.Lock()
	seq := s.sequence
	s.mu.Unlock()
	return ServerStats{
		Sequence:   seq,
		QueueDepth: s.queue.len(),
		Dequeued:   s.dequeued.Load(),
		Successes:  s.successes.Load(),
		Failures:   s.failures.Load(),
	}
}

// drain repeats forever: take the next validated event, run its
// materializer, then assign sequence and dispatch onCommitted. Any
// error escaping an iteration is logged and the loop continues with
// the next event - materializer and callback errors never stop the
// server.
func (s *ServerReplica) drain() {
	ctx := context.Background()
	for {
		e := s.queue.take()
		s.dequeued.Add(1)
		s.runOne(ctx, e)
	}
}

func (s *ServerReplica) runOne(ctx context.Context, e CommitEvent) {
	materializer := s.materializers[e.Name]

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("materializer panic: %v", r)
			}
		}()
		return materializer(ctx, e)
	}()

	if err != nil {
		s.failures.Add(1)
		log.Printf("[replica/server] materializer failed for event %q: %v", e.Name, err)
		s.dispatchCommitted(ctx, failedCommittedFrom(e))
		return
	}

	s.successes.Add(1)
	s.mu.Lock()
	seq := s.sequence
	s.mu.Unlock()

	s.dispatchCommitted(ctx, committedFrom(e, seq))

	s.mu.Lock()
	s.sequence = seq + 1
	s.mu.Unlock()
}

func (s *ServerReplica) dispatchCommitted(ctx context.Context, c CommittedEvent) {
	if s.onCommitted == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[replica/server] onCommitted panicked for event %q: %v", c.Name, r)
		}
	}()
	if err := s.onCommitted(ctx, c); err != nil {
		log.Printf("[replica/server] onCommitted returned error for event %q: %v", c.Name, err)
	}
}
