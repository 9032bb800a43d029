// Package adminapi exposes a small Echo-based HTTP surface for operational
// visibility into one run: queue status, dead-letter inspection, Prometheus
// metrics, and a WebSocket status-stream for live dashboards. Grounded on
// the teacher's statemanager/handlers.go route-registration style and
// tracing/metrics_handler.go's promhttp wiring; the status-stream endpoint
// adapts the gorilla/websocket + JSON-message framing of the teacher's own
// coordinator/coordinator.go (the teacher's Coordinator only ever dials out
// as a WebSocket client, so this is the server half of the same pattern,
// applied to the one message this pipeline needs to push: a queue status
// snapshot).
package adminapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"corpusforge.dev/internal/runqueue"
)

// statusStreamInterval is how often /v1/status/stream pushes a fresh
// snapshot to connected clients.
const statusStreamInterval = 5 * time.Second

// StatusSource is the narrow slice of *runqueue.Queue the admin surface
// needs to report a run's current status.
type StatusSource interface {
	GetQueueStatus(ctx context.Context, runID string) (runqueue.QueueStatusCounts, error)
}

// DLQSource is the narrow slice of *runqueue.DeadLetterQueue the admin
// surface needs to list dead-letter items.
type DLQSource interface {
	List(ctx context.Context, runID string) ([]runqueue.DeadLetterItem, error)
}

// Server is the admin HTTP surface for one run.
type Server struct {
	echo     *echo.Echo
	queue    StatusSource
	dlq      DLQSource
	runID    string
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

// New builds a Server bound to one run. registry, if non-nil, is served at
// /metrics via promhttp; pass nil to expose the other endpoints without a
// metrics route.
func New(queue StatusSource, dlq DLQSource, runID string, registry *prometheus.Registry, log *logrus.Entry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:  e,
		queue: queue,
		dlq:   dlq,
		runID: runID,
		log:   log.WithField("component", "adminapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The admin surface is meant for trusted dashboards on the
			// same network as the pipeline, not a public API; it does not
			// gate on Origin the way a browser-facing service would.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	e.GET("/v1/status", s.handleStatus)
	e.GET("/v1/dlq", s.handleDLQ)
	e.GET("/v1/status/stream", s.handleStatusStream)
	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return s
}

// Start runs the admin HTTP server until it errors or Shutdown is called,
// matching the teacher's e.Start(addr) usage in docker/example-service.
func (s *Server) Start(addr string) error {
	s.log.WithField("addr", addr).Info("starting admin API")
	err := s.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the admin HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleStatus(c echo.Context) error {
	status, err := s.queue.GetQueueStatus(c.Request().Context(), s.runID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleDLQ(c echo.Context) error {
	items, err := s.dlq.List(c.Request().Context(), s.runID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if items == nil {
		items = []runqueue.DeadLetterItem{}
	}
	return c.JSON(http.StatusOK, items)
}

// statusMessage is the JSON frame pushed over /v1/status/stream.
type statusMessage struct {
	Type   string                     `json:"type"`
	RunID  string                     `json:"run_id"`
	Status runqueue.QueueStatusCounts `json:"status"`
}

// handleStatusStream upgrades the connection to a WebSocket and pushes a
// status snapshot every statusStreamInterval until the client disconnects
// or the request context is cancelled.
func (s *Server) handleStatusStream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := c.Request().Context()
	ticker := time.NewTicker(statusStreamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			status, err := s.queue.GetQueueStatus(ctx, s.runID)
			if err != nil {
				s.log.WithError(err).Warn("status stream: query failed")
				continue
			}
			if err := conn.WriteJSON(statusMessage{Type: "status", RunID: s.runID, Status: status}); err != nil {
				return nil
			}
		}
	}
}
