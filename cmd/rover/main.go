// Rover - autonomous sample-return rover for the simulator
// Perceives each camera frame, maps the terrain and drives toward open ground
// and rock samples.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/bridge"
	"github.com/teslashibe/go-rover/pkg/mission"
	"github.com/teslashibe/go-rover/pkg/navigation"
	"github.com/teslashibe/go-rover/pkg/perception"
	"github.com/teslashibe/go-rover/pkg/store"
	"github.com/teslashibe/go-rover/pkg/vision/opencv"
	"github.com/teslashibe/go-rover/pkg/web"
	"github.com/teslashibe/go-rover/pkg/worldmap"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type flags struct {
	configPath  string
	debug       bool
	groundTruth string
	missionID   string
}

func main() {
	f := parseFlags()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	if f.debug {
		cfg.LogLevel = "debug"
	}
	if f.missionID != "" {
		cfg.MissionID = f.missionID
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, f.groundTruth); err != nil {
		log.Error("rover stopped with error", "error", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags.
func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config (defaults are used if empty)")
	flag.BoolVar(&f.debug, "debug", false, "Enable verbose debug logging")
	flag.StringVar(&f.groundTruth, "ground-truth", "", "Ground-truth map image for fidelity scoring")
	flag.StringVar(&f.missionID, "mission", "", "Mission ID to resume (overrides ROVER_MISSION_ID)")
	flag.Parse()
	return f
}

func run(ctx context.Context, cfg config.Mission, groundTruth string) (err error) {
	missionID := cfg.MissionID
	if missionID == "" {
		missionID = uuid.NewString()
	}

	worldMap, err := worldmap.New(cfg.Perception.WorldSize, cfg.Weights)
	if err != nil {
		return err
	}

	missionOpts := []mission.Option{mission.WithFrameSize(cfg.Vision.Width, cfg.Vision.Height)}
	var webOpts []web.Option

	if cfg.DBPath != "" {
		st, openErr := store.Open(cfg.DBPath)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, st.Close()) }()

		raw, yamlErr := yaml.Marshal(cfg)
		if yamlErr != nil {
			return fmt.Errorf("encode config: %w", yamlErr)
		}
		if _, err := st.CreateMission(missionID, string(raw)); err != nil {
			return err
		}
		missionOpts = append(missionOpts, mission.WithStore(st, cfg.SnapshotInterval))
		webOpts = append(webOpts, web.WithSnapshots(st, missionID))
	}

	if groundTruth != "" {
		truth, err := opencv.LoadGroundTruth(groundTruth)
		if err != nil {
			return fmt.Errorf("ground truth: %w", err)
		}
		webOpts = append(webOpts, web.WithGroundTruth(truth))
	}

	rect := opencv.NewRectifier(cfg.Vision.Calibration)
	defer rect.Close()

	pipeline, err := perception.NewPipeline(cfg.Perception, cfg.Vision.Ranges, rect)
	if err != nil {
		return err
	}
	controller, err := navigation.NewController(cfg.Navigation)
	if err != nil {
		return err
	}

	sim := bridge.New(cfg.TelemetryBuffer, nil)

	// Any service stopping stops the others.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 2)
	services := 1
	go func() { errCh <- sim.Serve(runCtx, cfg.BridgeAddr) }()

	if cfg.DashboardAddr != "" {
		dash := web.NewServer(cfg.DashboardAddr, worldMap, webOpts...)
		missionOpts = append(missionOpts, mission.WithPublisher(dash))
		services++
		go func() { errCh <- dash.Run(runCtx) }()
	}

	m := mission.New(missionID, sim, pipeline, controller, opencv.DecodeJPEG, worldMap, missionOpts...)
	log.Info("🚀 Rover ready",
		"mission", missionID,
		"bridge", cfg.BridgeAddr,
		"dashboard", cfg.DashboardAddr,
		"world", cfg.Perception.WorldSize,
	)

	missionErr := make(chan error, 1)
	go func() { missionErr <- m.Run(runCtx) }()

	var errs error
	select {
	case e := <-missionErr:
		errs = multierr.Append(errs, e)
		stop()
	case e := <-errCh:
		services--
		errs = multierr.Append(errs, e)
		stop()
		errs = multierr.Append(errs, <-missionErr)
	}
	for ; services > 0; services-- {
		errs = multierr.Append(errs, <-errCh)
	}
	return errs
}
