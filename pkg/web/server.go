// Package web provides the read-only rover dashboard: JSON state, map and
// masks over HTTP, and live status over a websocket.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/geometry"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/rover"
	"github.com/teslashibe/go-rover/pkg/vision"
	"github.com/teslashibe/go-rover/pkg/worldmap"
)

// SnapshotLister lists persisted map snapshots. Implemented by store.Store.
type SnapshotLister interface {
	ListMapSnapshots(missionID string, limit int) ([]worldmap.SnapshotRecord, error)
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	worldMap  *worldmap.Map
	truth     geometry.Mask
	snapshots SnapshotLister
	missionID string

	// Latest published tick
	status rover.Status
	masks  *vision.Classification
	mu     sync.RWMutex

	// Hub for websocket broadcast
	statusHub *hub.Hub
}

// Option configures a Server.
type Option func(*Server)

// WithGroundTruth enables map scoring against a ground-truth mask.
func WithGroundTruth(truth geometry.Mask) Option {
	return func(s *Server) {
		s.truth = truth
	}
}

// WithSnapshots exposes persisted snapshots for missionID.
func WithSnapshots(l SnapshotLister, missionID string) Option {
	return func(s *Server) {
		s.snapshots = l
		s.missionID = missionID
	}
}

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a dashboard for worldMap listening on addr.
func NewServer(addr string, worldMap *worldmap.Map, opts ...Option) *Server {
	s := &Server{
		addr:      addr,
		worldMap:  worldMap,
		statusHub: hub.New("status"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.With("component", "web")
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-rover dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/map", s.handleMap)
	api.Get("/map/stats", s.handleMapStats)
	api.Get("/masks", s.handleMasks)
	api.Get("/snapshots", s.handleSnapshots)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Publish records the latest tick and broadcasts its status to clients.
// masks must not be modified afterwards.
func (s *Server) Publish(status rover.Status, masks *vision.Classification) {
	s.mu.Lock()
	s.status = status
	s.masks = masks
	s.mu.Unlock()

	if err := s.statusHub.BroadcastJSON(status); err != nil {
		s.logger.Warn("status broadcast failed", "error", err)
	}
}

// Run serves the dashboard until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.addr)
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case <-ctx.Done():
		return s.app.Shutdown()
	case err := <-errCh:
		return fmt.Errorf("dashboard listen: %w", err)
	}
}
