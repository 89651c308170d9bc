package counterapp

import (
	"context"

	"github.com/kvsync/eventreplica/replica"
)

// App wires a ClientReplica and a ServerReplica together in one
// process: OnCommit forwards straight into the server's Commit, and
// OnCommitted forwards straight back into the client's Receive. This
// is the trivial in-process stand-in for an external collaborator - a
// real deployment would instead transport CommitEvent/CommittedEvent
// across a network, which is out of scope for this library.
type App struct {
	Server        *replica.ServerReplica
	Client        *replica.ClientReplica
	ServerCounter *Counter
	ClientCounter *Counter
}

// NewApp builds a fully wired client/server counter pair starting
// both sequences at initialSeq.
func NewApp(initialSeq int64) (*App, error) {
	serverCounter := &Counter{}
	clientCounter := &Counter{}

	app := &App{ServerCounter: serverCounter, ClientCounter: clientCounter}

	server, err := replica.NewServerReplica(replica.ServerOptions{
		Sequence:      initialSeq,
		Events:        Events(),
		Materializers: ServerMaterializers(serverCounter),
		OnCommitted: func(ctx context.Context, c replica.CommittedEvent) error {
			return app.Client.Receive(ctx, c)
		},
	})
	if err != nil {
		return nil, err
	}
	app.Server = server

	client, err := replica.NewClientReplica(replica.ClientOptions{
		Sequence:      initialSeq,
		Events:        Events(),
		Materializers: ClientMaterializers(clientCounter),
		OnCommit: func(ctx context.Context, e replica.CommitEvent) error {
			return app.Server.Commit(ctx, e)
		},
	})
	if err != nil {
		return nil, err
	}
	app.Client = client

	return app, nil
}
