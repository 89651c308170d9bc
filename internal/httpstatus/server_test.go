package httpstatus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvsync/eventreplica/replica"
)

type tickPayload struct {
	N int `validate:"gte=0"`
}

func newTestPair(t *testing.T) (*replica.ServerReplica, *replica.ClientReplica) {
	t.Helper()
	events := map[replica.Name]replica.Schema{
		"tick": replica.NewStructSchema(tickPayload{}),
	}

	server, err := replica.NewServerReplica(replica.ServerOptions{
		Events: events,
		Materializers: map[replica.Name]replica.ServerMaterializer{
			"tick": func(context.Context, replica.CommitEvent) error { return nil },
		},
	})
	require.NoError(t, err)

	client, err := replica.NewClientReplica(replica.ClientOptions{
		Events: events,
		Materializers: map[replica.Name]replica.ClientMaterializer{
			"tick": {
				Apply:    func(context.Context, replica.CommitEvent) error { return nil },
				Rollback: func(context.Context, replica.CommittedEvent) error { return nil },
			},
		},
	})
	require.NoError(t, err)

	return server, client
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, client := newTestPair(t)
	s := NewServer("test", server, client)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StatsEndpoints(t *testing.T) {
	server, client := newTestPair(t)
	s := NewServer("test", server, client)

	req := httptest.NewRequest(http.MethodGet, "/stats/server", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var serverStats ServerStatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&serverStats))
	require.Zero(t, serverStats.Sequence)

	req = httptest.NewRequest(http.MethodGet, "/stats/client", nil)
	resp, err = s.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var clientStats ClientStatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&clientStats))
	require.Zero(t, clientStats.PendingCount)
}
