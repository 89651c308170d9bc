// Package httpstatus exposes a read-only introspection surface over a
// running replica.ServerReplica/replica.ClientReplica pair. It is not
// the event transport - commit/ack still cross the in-process
// callback contract the library defines - it only lets an operator
// poke at queue depth, sequence, and pending count the way the
// teacher's own /health and /cluster endpoints expose node status.
package httpstatus

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/kvsync/eventreplica/replica"
)

// ErrorResponse is the JSON shape returned for any handler error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServerStatsResponse mirrors replica.ServerStats for JSON transport.
type ServerStatsResponse struct {
	Sequence   int64 `json:"sequence"`
	QueueDepth int   `json:"queue_depth"`
	Dequeued   int64 `json:"dequeued"`
	Successes  int64 `json:"successes"`
	Failures   int64 `json:"failures"`
}

// ClientStatsResponse mirrors replica.ClientStats for JSON transport.
type ClientStatsResponse struct {
	PendingCount int   `json:"pending_count"`
	QueueDepth   int   `json:"queue_depth"`
	Dequeued     int64 `json:"dequeued"`
	Applied      int64 `json:"applied"`
	ApplyFailed  int64 `json:"apply_failed"`
}

// Server is a small fiber app reporting on one client/server pair.
type Server struct {
	app    *fiber.App
	server *replica.ServerReplica
	client *replica.ClientReplica
}

// NewServer builds and routes the introspection app.
func NewServer(appName string, server *replica.ServerReplica, client *replica.ClientReplica) *Server {
	app := fiber.New(fiber.Config{
		AppName:      appName,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(correlationID())
	app.Use(logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:request_id} | ${error}\n",
	}))

	s := &Server{app: app, server: server, client: client}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/stats/server", s.handleServerStats)
	s.app.Get("/stats/client", s.handleClientStats)
}

// Listen starts the HTTP server on addr, blocking until it stops.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
}

func (s *Server) handleServerStats(c *fiber.Ctx) error {
	stats := s.server.Stats()
	return c.Status(fiber.StatusOK).JSON(ServerStatsResponse{
		Sequence:   stats.Sequence,
		QueueDepth: stats.QueueDepth,
		Dequeued:   stats.Dequeued,
		Successes:  stats.Successes,
		Failures:   stats.Failures,
	})
}

func (s *Server) handleClientStats(c *fiber.Ctx) error {
	stats := s.client.Stats()
	return c.Status(fiber.StatusOK).JSON(ClientStatsResponse{
		PendingCount: stats.PendingCount,
		QueueDepth:   stats.QueueDepth,
		Dequeued:     stats.Dequeued,
		Applied:      stats.Applied,
		ApplyFailed:  stats.ApplyFailed,
	})
}

// correlationID tags every request with a UUID, logged alongside
// fiber's own access-log line, so operators can correlate a single
// request across the log stream.
func correlationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("request_id", uuid.NewString())
		return c.Next()
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}
