package counterapp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kvsync/eventreplica/replica"
)

func commit(t *testing.T, app *App, name replica.Name, value int) {
	t.Helper()
	require.NoError(t, app.Client.Commit(context.Background(), replica.CommitEvent{
		Name:    name,
		Payload: Amount{Value: value},
	}))
}

// TestHappyPathRoundTrip exercises a simple commit and its round
// trip to a successful acknowledgement.
func TestHappyPathRoundTrip(t *testing.T) {
	app, err := NewApp(0)
	require.NoError(t, err)

	commit(t, app, Increment, 5)

	require.Eventually(t, func() bool {
		return app.ClientCounter.Value() == 5 && app.ServerCounter.Value() == 5
	}, time.Second, time.Millisecond)

	require.EqualValues(t, 5, app.ClientCounter.Value())
	require.EqualValues(t, 5, app.ServerCounter.Value())
}

// TestOptimisticRejectionAndRollback exercises an optimistic apply
// that the server later rejects, forcing a client-side rollback.
func TestOptimisticRejectionAndRollback(t *testing.T) {
	app, err := NewApp(0)
	require.NoError(t, err)

	commit(t, app, Increment, 3)
	require.Eventually(t, func() bool {
		return app.ClientCounter.Value() == 3 && app.ServerCounter.Value() == 3
	}, time.Second, time.Millisecond)

	commit(t, app, Decrement, 5)

	// immediately after the optimistic apply, the client runs ahead
	require.Eventually(t, func() bool { return app.ClientCounter.Value() == -2 }, time.Second, time.Millisecond)

	// after the round trip the server rejects and the client rolls back
	require.Eventually(t, func() bool {
		return app.ClientCounter.Value() == 3 && app.ServerCounter.Value() == 3
	}, time.Second, time.Millisecond)
}

// TestMixedSuccessFailureBurst exercises a burst of commits where
// some succeed and one is rejected by the server.
func TestMixedSuccessFailureBurst(t *testing.T) {
	app, err := NewApp(0)
	require.NoError(t, err)

	commit(t, app, Increment, 5)
	commit(t, app, Increment, 3)
	commit(t, app, Decrement, 10)
	commit(t, app, Increment, 2)

	require.Eventually(t, func() bool {
		return app.ClientCounter.Value() == 10 && app.ServerCounter.Value() == 10
	}, time.Second, time.Millisecond)
}

// TestForeignEvent exercises a successful acknowledgement for an
// event this client never submitted.
func TestForeignEvent(t *testing.T) {
	app, err := NewApp(0)
	require.NoError(t, err)

	require.NoError(t, app.Client.Receive(context.Background(), replica.CommittedEvent{
		Name: Increment, Payload: Amount{Value: 7}, Sequence: 0,
	}))

	require.Eventually(t, func() bool { return app.ClientCounter.Value() == 7 }, time.Second, time.Millisecond)
}

// TestForeignErrorEvent exercises a failure acknowledgement for an
// event this client never submitted; it must be ignored.
func TestForeignErrorEvent(t *testing.T) {
	app, err := NewApp(0)
	require.NoError(t, err)

	require.NoError(t, app.Client.Receive(context.Background(), replica.CommittedEvent{
		Name: Increment, Payload: Amount{Value: 7}, Error: true, Sequence: replica.FailureSequence,
	}))

	time.Sleep(30 * time.Millisecond)
	require.Zero(t, app.ClientCounter.Value())
}

// TestOutOfOrderAcks exercises acknowledgements arriving in a
// different order than the events were committed.
func TestOutOfOrderAcks(t *testing.T) {
	counter := &Counter{}
	var mu sync.Mutex
	var sent []replica.CommitEvent

	client, err := replica.NewClientReplica(replica.ClientOptions{
		Events:        Events(),
		Materializers: ClientMaterializers(counter),
		OnCommit: func(_ context.Context, e replica.CommitEvent) error {
			mu.Lock()
			sent = append(sent, e)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, client.Commit(context.Background(), replica.CommitEvent{
			Name:    Increment,
			Payload: Amount{Value: 2},
		}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sent) == 3
	}, time.Second, time.Millisecond)

	// acknowledge in a scrambled order: third, first, second
	mu.Lock()
	acks := []replica.CommitEvent{sent[2], sent[0], sent[1]}
	mu.Unlock()
	for seq, e := range acks {
		require.NoError(t, client.Receive(context.Background(), replica.CommittedEvent{
			Name: e.Name, Payload: e.Payload, ClientID: e.ClientID, Sequence: int64(seq),
		}))
	}

	require.Zero(t, client.Stats().PendingCount)
	require.Equal(t, 6, counter.Value())
}
