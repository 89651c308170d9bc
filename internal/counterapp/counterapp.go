// Package counterapp is a sample application: a single integer
// counter, replicated optimistically. It exists to exercise
// replica.ServerReplica and replica.ClientReplica the way an
// application embedding the library would, and to reproduce a handful
// of worked end-to-end scenarios as tests.
package counterapp

import (
	"context"
	"fmt"
	"sync"

	"github.com/kvsync/eventreplica/replica"
)

const (
	// Increment adds Amount.Value to the counter.
	Increment replica.Name = "increment"
	// Decrement subtracts Amount.Value from the counter. The server
	// materializer rejects a decrement that would drive the counter
	// negative.
	Decrement replica.Name = "decrement"
)

// Amount is the payload shape for both Increment and Decrement.
type Amount struct {
	Value int `validate:"gte=0"`
}

// Events is the schema registry shared by both replica constructors.
func Events() map[replica.Name]replica.Schema {
	return map[replica.Name]replica.Schema{
		Increment: replica.NewStructSchema(Amount{}),
		Decrement: replica.NewStructSchema(Amount{}),
	}
}

// Counter is a plain mutex-guarded integer. Both the server and the
// client sides of the demo own their own independent instance - state
// mutated by materializers is never shared across replicas.
type Counter struct {
	mu    sync.Mutex
	value int
}

// Value returns the current counter value.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func amountOf(payload any) (Amount, error) {
	a, ok := payload.(Amount)
	if !ok {
		return Amount{}, fmt.Errorf("expected counterapp.Amount, got %T", payload)
	}
	return a, nil
}

// ServerMaterializers returns the authoritative materializer for
// Increment and Decrement over counter. Decrement fails (without
// mutating counter) when it would take the value negative.
func ServerMaterializers(counter *Counter) map[replica.Name]replica.ServerMaterializer {
	return map[replica.Name]replica.ServerMaterializer{
		Increment: func(_ context.Context, e replica.CommitEvent) error {
			a, err := amountOf(e.Payload)
			if err != nil {
				return err
			}
			counter.mu.Lock()
			counter.value += a.Value
			counter.mu.Unlock()
			return nil
		},
		Decrement: func(_ context.Context, e replica.CommitEvent) error {
			a, err := amountOf(e.Payload)
			if err != nil {
				return err
			}
			counter.mu.Lock()
			defer counter.mu.Unlock()
			if counter.value-a.Value < 0 {
				return fmt.Errorf("decrement by %d would drive counter negative (current %d)", a.Value, counter.value)
			}
			counter.value -= a.Value
			return nil
		},
	}
}

// ClientMaterializers returns the apply/rollback pair for Increment
// and Decrement over counter. Rollback is the algebraic inverse of
// apply for the same payload: rolling back an increment subtracts,
// rolling back a decrement adds back.
func ClientMaterializers(counter *Counter) map[replica.Name]replica.ClientMaterializer {
	return map[replica.Name]replica.ClientMaterializer{
		Increment: {
			Apply: func(_ context.Context, e replica.CommitEvent) error {
				a, err := amountOf(e.Payload)
				if err != nil {
					return err
				}
				counter.mu.Lock()
				counter.value += a.Value
				counter.mu.Unlock()
				return nil
			},
			Rollback: func(_ context.Context, c replica.CommittedEvent) error {
				a, err := amountOf(c.Payload)
				if err != nil {
					return err
				}
				counter.mu.Lock()
				counter.value -= a.Value
				counter.mu.Unlock()
				return nil
			},
		},
		Decrement: {
			Apply: func(_ context.Context, e replica.CommitEvent) error {
				a, err := amountOf(e.Payload)
				if err != nil {
					return err
				}
				counter.mu.Lock()
				counter.value -= a.Value
				counter.mu.Unlock()
				return nil
			},
			Rollback: func(_ context.Context, c replica.CommittedEvent) error {
				a, err := amountOf(c.Payload)
				if err != nil {
					return err
				}
				counter.mu.Lock()
				counter.value += a.Value
				counter.mu.Unlock()
				return nil
			},
		},
	}
}
