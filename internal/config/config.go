// Package config loads the rover mission configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/teslashibe/go-rover/pkg/navigation"
	"github.com/teslashibe/go-rover/pkg/perception"
	"github.com/teslashibe/go-rover/pkg/vision"
	"github.com/teslashibe/go-rover/pkg/worldmap"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Default addresses and paths.
const (
	DefaultBridgeAddr    = ":4567"
	DefaultDashboardAddr = ":8080"
	DefaultDBPath        = "rover.db"
)

// Mission is the full configuration of one rover run.
type Mission struct {
	// MissionID resumes an existing mission's map. Empty starts a new one.
	MissionID string `yaml:"mission_id"`
	LogLevel  string `yaml:"log_level"`

	Vision     vision.Config     `yaml:"vision"`
	Perception perception.Config `yaml:"perception"`
	Weights    worldmap.Weights  `yaml:"weights"`
	Navigation navigation.Config `yaml:"navigation"`

	BridgeAddr      string `yaml:"bridge_addr"`
	TelemetryBuffer int    `yaml:"telemetry_buffer"`
	// DashboardAddr is empty to run without the dashboard.
	DashboardAddr string `yaml:"dashboard_addr"`

	// DBPath is the sqlite file for map snapshots. Empty disables
	// persistence.
	DBPath           string        `yaml:"db_path"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// DefaultMission returns the tuned simulator configuration.
func DefaultMission() Mission {
	m := Mission{
		LogLevel:         "info",
		Vision:           vision.DefaultConfig(),
		Perception:       perception.DefaultConfig(),
		Weights:          worldmap.DefaultWeights(),
		Navigation:       navigation.DefaultConfig(),
		BridgeAddr:       DefaultBridgeAddr,
		TelemetryBuffer:  1,
		DashboardAddr:    DefaultDashboardAddr,
		DBPath:           DefaultDBPath,
		SnapshotInterval: 30 * time.Second,
	}
	m.deriveScale()
	return m
}

// deriveScale sets the projection scale from the camera calibration.
func (m *Mission) deriveScale() {
	m.Perception.Scale = m.Vision.Calibration.Scale()
}

// Load reads a YAML file over the defaults and applies environment
// overrides. An empty path uses the defaults.
func Load(path string) (Mission, error) {
	cfg := DefaultMission()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.deriveScale()
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// applyEnv overrides settings from ROVER_* environment variables.
func (m *Mission) applyEnv() {
	m.LogLevel = envOr("ROVER_LOG_LEVEL", m.LogLevel)
	m.BridgeAddr = envOr("ROVER_BRIDGE_ADDR", m.BridgeAddr)
	m.DashboardAddr = envOr("ROVER_DASHBOARD_ADDR", m.DashboardAddr)
	m.DBPath = envOr("ROVER_DB_PATH", m.DBPath)
	m.MissionID = envOr("ROVER_MISSION_ID", m.MissionID)
}

// envOr returns the value of key, or def if it is unset or empty.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Validate reports every configuration problem at once.
func (m *Mission) Validate() error {
	var err error
	err = multierr.Append(err, m.Vision.Validate())
	err = multierr.Append(err, m.Perception.Validate())
	err = multierr.Append(err, m.Weights.Validate())
	err = multierr.Append(err, m.Navigation.Validate())
	if want := m.Vision.Calibration.Scale(); m.Perception.Scale != want {
		err = multierr.Append(err, fmt.Errorf("config: perception scale %v does not match calibration scale %v", m.Perception.Scale, want))
	}
	if m.BridgeAddr == "" {
		err = multierr.Append(err, errors.New("config: bridge_addr is required"))
	}
	if m.TelemetryBuffer < 1 {
		err = multierr.Append(err, fmt.Errorf("config: telemetry_buffer must be at least 1, got %d", m.TelemetryBuffer))
	}
	if m.SnapshotInterval < 0 {
		err = multierr.Append(err, fmt.Errorf("config: snapshot_interval must not be negative, got %s", m.SnapshotInterval))
	}
	switch m.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("config: unknown log_level %q", m.LogLevel))
	}
	return err
}
