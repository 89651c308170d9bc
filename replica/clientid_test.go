package replica

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClientID_ShapeAndAlphabet(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newClientID()
		require.Len(t, id, clientIDLength)
		for _, c := range id {
			require.True(t, strings.ContainsRune(clientIDAlphabet, c), "unexpected char %q in id %q", c, id)
		}
		seen[id] = true
	}
	// 1000 draws from 36^5 possibilities should collide rarely enough
	// that near-1000 distinct values is a reasonable smoke check.
	require.Greater(t, len(seen), 900)
}
