// Package replica implements optimistic event replication between a
// client replica and an authoritative server replica of the same
// deterministic state machine. Application code registers a fixed set
// of event kinds, each with a payload schema, and supplies the
// materializers that apply those events to its own state.
package replica

// Name identifies an event kind. It indexes both the schema and
// materializer tables of a replica and must be unique within that
// replica.
type Name string

// CommitEvent is an event submitted for processing, before it has
// been authoritatively acknowledged. ClientID is empty when an
// application first submits on either replica; the client populates
// it during its optimistic apply, before onCommit fires.
type CommitEvent struct {
	Name     Name
	Payload  any
	ClientID string
}

// CommittedEvent is a CommitEvent that has been acknowledged by the
// server. On success, Sequence is the monotonically assigned slot and
// Error is false. On failure, Sequence is -1 and Error is true; Name,
// Payload, and ClientID are preserved verbatim from the originating
// CommitEvent.
type CommittedEvent struct {
	Name     Name
	Payload  any
	ClientID string
	Sequence int64
	Error    bool
}

// FailureSequence is the sentinel sequence value carried by a failed
// CommittedEvent: error=true always implies sequence=FailureSequence.
const FailureSequence int64 = -1

// committedFrom builds the success CommittedEvent for e at sequence s.
func committedFrom(e CommitEvent, s int64) CommittedEvent {
	return CommittedEvent{
		Name:     e.Name,
		Payload:  e.Payload,
		ClientID: e.ClientID,
		Sequence: s,
	}
}

// failedCommittedFrom builds the failure CommittedEvent for e.
func failedCommittedFrom(e CommitEvent) CommittedEvent {
	return CommittedEvent{
		Name:     e.Name,
		Payload:  e.Payload,
		ClientID: e.ClientID,
		Sequence: FailureSequence,
		Error:    true,
	}
}
