package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/worldmap"
)

// MapResponse is the world grid as three row-major layers, index y*size+x.
// Byte slices encode as base64.
type MapResponse struct {
	Size      int    `json:"size"`
	Navigable []byte `json:"navigable"`
	Obstacle  []byte `json:"obstacle"`
	Sample    []byte `json:"sample"`
}

// handleStatus returns the latest rover status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(s.status)
}

// handleMap returns the full world grid
func (s *Server) handleMap(c *fiber.Ctx) error {
	if s.worldMap == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no map"})
	}
	cells := s.worldMap.Snapshot()
	resp := MapResponse{
		Size:      s.worldMap.Size(),
		Navigable: make([]byte, len(cells)),
		Obstacle:  make([]byte, len(cells)),
		Sample:    make([]byte, len(cells)),
	}
	for i, cell := range cells {
		resp.Navigable[i] = cell.Navigable
		resp.Obstacle[i] = cell.Obstacle
		resp.Sample[i] = cell.Sample
	}
	return c.JSON(resp)
}

// handleMapStats returns coverage and fidelity, plus how many status
// broadcasts the hub has shed
func (s *Server) handleMapStats(c *fiber.Ctx) error {
	if s.worldMap == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no map"})
	}
	return c.JSON(fiber.Map{
		"stats":              s.worldMap.Stats(s.truth),
		"ground_truth":       s.truth != nil,
		"broadcasts_dropped": s.statusHub.Dropped(),
	})
}

// handleMasks returns the last frame's classification
func (s *Server) handleMasks(c *fiber.Ctx) error {
	s.mu.RLock()
	masks := s.masks
	s.mu.RUnlock()

	if masks == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no frame perceived yet"})
	}
	return c.JSON(masks)
}

// handleSnapshots lists persisted map snapshots, newest first
func (s *Server) handleSnapshots(c *fiber.Ctx) error {
	if s.snapshots == nil {
		return c.JSON(fiber.Map{"snapshots": []worldmap.SnapshotRecord{}})
	}
	limit := c.QueryInt("limit", 20)
	recs, err := s.snapshots.ListMapSnapshots(s.missionID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"mission_id": s.missionID,
		"snapshots":  recs,
	})
}

// handleStatusWS streams status updates
func (s *Server) handleStatusWS(c *websocket.Conn) {
	// Send current status
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()
	if err := c.WriteJSON(status); err != nil {
		return
	}

	client := hub.NewClient(s.statusHub, c)
	if client == nil {
		return
	}
	client.Run()
}
