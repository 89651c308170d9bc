// Command replay-demo wires a counter application's client and
// server replicas together in one process and exposes a read-only
// HTTP introspection surface over them. It exists to demonstrate the
// library's external collaborator contract (onCommit/onCommitted),
// not as a production transport.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kvsync/eventreplica/internal/config"
	"github.com/kvsync/eventreplica/internal/counterapp"
	"github.com/kvsync/eventreplica/internal/httpstatus"
	"github.com/kvsync/eventreplica/replica"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting %s %s (commit: %s)", cfg.AppName, cfg.Version, cfg.GitCommit)

	app, err := counterapp.NewApp(int64(cfg.InitialSeq))
	if err != nil {
		log.Fatalf("Failed to wire counter app: %v", err)
	}

	if err := seedDemoEvents(context.Background(), app); err != nil {
		log.Printf("Failed to seed demo events: %v", err)
	}

	statusServer := httpstatus.NewServer(cfg.AppName, app.Server, app.Client)

	go handleShutdown(statusServer)

	log.Printf("HTTP status server starting on port %s", cfg.Port)
	if err := statusServer.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start HTTP status server: %v", err)
	}
}

func handleShutdown(statusServer *httpstatus.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")

	if err := statusServer.Shutdown(); err != nil {
		log.Printf("HTTP status server shutdown error: %v", err)
	}
}

// seedDemoEvents submits one increment so a freshly started demo
// process has non-zero stats to inspect over HTTP immediately.
func seedDemoEvents(ctx context.Context, app *counterapp.App) error {
	return app.Client.Commit(ctx, replica.CommitEvent{
		Name:    counterapp.Increment,
		Payload: counterapp.Amount{Value: 5},
	})
}
