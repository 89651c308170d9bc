package replica

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventQueue_FIFOOrder(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < 5; i++ {
		q.offer(CommitEvent{Name: Name("e"), Payload: i})
	}
	require.Equal(t, 5, q.len())

	for i := 0; i < 5; i++ {
		e := q.take()
		require.Equal(t, i, e.Payload)
	}
	require.Equal(t, 0, q.len())
}

func TestEventQueue_TakeBlocksUntilOffer(t *testing.T) {
	q := newEventQueue()

	var wg sync.WaitGroup
	wg.Add(1)
	var got CommitEvent
	go func() {
		defer wg.Done()
		got = q.take()
	}()

	time.Sleep(20 * time.Millisecond)
	q.offer(CommitEvent{Name: "e", Payload: 42})
	wg.Wait()

	require.Equal(t, 42, got.Payload)
}
