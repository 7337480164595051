package worldmap

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Encode compresses cells using gob encoding and gzip compression.
func Encode(cells []Cell) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(cells); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decompresses and decodes cells from a gob+gzip blob.
func Decode(blob []byte) ([]Cell, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty map blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var cells []Cell
	dec := gob.NewDecoder(gz)
	if err := dec.Decode(&cells); err != nil {
		return nil, fmt.Errorf("failed to decode map cells: %w", err)
	}
	return cells, nil
}

// SnapshotRecord is one persisted map with its metadata.
type SnapshotRecord struct {
	ID        string    `json:"id"`
	MissionID string    `json:"mission_id"`
	TakenAt   time.Time `json:"taken_at"`
	Size      int       `json:"size"`
	Reason    string    `json:"reason"`
	Mapped    int       `json:"mapped_cells"`
	Blob      []byte    `json:"-"`
}

// SnapshotStore persists map snapshots. Implemented by store.Store.
type SnapshotStore interface {
	InsertMapSnapshot(s *SnapshotRecord) error
	LatestMapSnapshot(missionID string) (*SnapshotRecord, error)
}

// Persist serializes the map and writes a snapshot via the provided store.
func (m *Map) Persist(store SnapshotStore, missionID, reason string) (*SnapshotRecord, error) {
	if store == nil {
		return nil, nil
	}
	cells := m.Snapshot()

	blob, err := Encode(cells)
	if err != nil {
		return nil, err
	}

	mapped := 0
	for _, c := range cells {
		if c.Navigable != 0 || c.Obstacle != 0 || c.Sample != 0 {
			mapped++
		}
	}

	rec := &SnapshotRecord{
		ID:        uuid.NewString(),
		MissionID: missionID,
		TakenAt:   time.Now().UTC(),
		Size:      m.size,
		Reason:    reason,
		Mapped:    mapped,
		Blob:      blob,
	}
	if err := store.InsertMapSnapshot(rec); err != nil {
		return nil, fmt.Errorf("insert map snapshot: %w", err)
	}
	return rec, nil
}

// RestoreLatest loads the newest snapshot for missionID, if any. It reports
// whether a snapshot was applied.
func (m *Map) RestoreLatest(store SnapshotStore, missionID string) (bool, error) {
	if store == nil {
		return false, nil
	}
	rec, err := store.LatestMapSnapshot(missionID)
	if err != nil {
		return false, fmt.Errorf("latest map snapshot: %w", err)
	}
	if rec == nil {
		return false, nil
	}
	if rec.Size != m.size {
		return false, fmt.Errorf("worldmap: snapshot %s is %dx%d, map is %dx%d", rec.ID, rec.Size, rec.Size, m.size, m.size)
	}
	cells, err := Decode(rec.Blob)
	if err != nil {
		return false, err
	}
	if err := m.Restore(cells); err != nil {
		return false, err
	}
	return true, nil
}
