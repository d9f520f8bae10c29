// Cell Core - Manufacturing Cell Control Plane
//
// This is the main entry point for the Cell Core application. Cell Core
// coordinates one manufacturing cell: a multi-axis gantry, a screwdriver
// actuator with a solenoid tool lock, and a set of shared USB cameras,
// exposed over a REST/WebSocket API with durable job storage.
//
// The cell degrades rather than refuses: missing hardware (no GPIO, no
// cameras, unreachable gantry) switches the affected subsystem to a
// simulated or disconnected mode and the rest keeps working.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fabworks/cell-core/internal/api"
	"github.com/fabworks/cell-core/internal/audit"
	"github.com/fabworks/cell-core/internal/camera"
	"github.com/fabworks/cell-core/internal/factory"
	"github.com/fabworks/cell-core/internal/infrastructure/config"
	"github.com/fabworks/cell-core/internal/infrastructure/database"
	"github.com/fabworks/cell-core/internal/infrastructure/logging"
	"github.com/fabworks/cell-core/internal/infrastructure/mqtt"
	"github.com/fabworks/cell-core/internal/job"
	"github.com/fabworks/cell-core/internal/machine/actuator"
	"github.com/fabworks/cell-core/internal/machine/gantry"
	"github.com/fabworks/cell-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// startupConnectTimeout bounds the initial best-effort machine connects.
const startupConnectTimeout = 10 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Cell Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "cell", cfg.Cell.ID)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database for the audit trail
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	auditStore := audit.NewStore(db)
	if err := auditStore.Init(ctx); err != nil {
		return fmt.Errorf("initialising audit trail: %w", err)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
			"client_id", cfg.MQTT.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Telemetry fan-out (MQTT + InfluxDB, both optional)
	publisher := telemetry.New(cfg.Cell.ID, mqttClient, cfg.InfluxDB, log)
	defer publisher.Close()
	if cfg.InfluxDB.Enabled {
		log.Info("InfluxDB telemetry enabled",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Camera manager over the real or simulated backend
	cameras := camera.NewManager(cameraBackend(cfg, log), camera.Config{
		ProbeRange: cfg.Cameras.ProbeRange,
		Options: camera.Options{
			Width:       cfg.Cameras.Width,
			Height:      cfg.Cameras.Height,
			ReadTimeout: time.Duration(cfg.Cameras.ReadTimeout) * time.Second,
		},
		StopTimeout:  time.Duration(cfg.Cameras.StopTimeout) * time.Millisecond,
		ReopenGrace:  time.Duration(cfg.Cameras.ReopenGrace) * time.Millisecond,
		RetryBackoff: time.Duration(cfg.Cameras.RetryBackoff) * time.Millisecond,
	})
	cameras.SetLogger(log)
	defer func() {
		log.Info("closing camera sessions")
		cameras.CloseAll()
	}()

	// Motion controller
	sender := gantry.NewHTTPSender(cfg.Gantry.BaseURL, time.Duration(cfg.Gantry.RequestTimeout)*time.Second)
	gantryCtrl := gantry.New(sender)
	gantryCtrl.SetLogger(log)

	// Actuator controller
	actuatorCtrl := actuator.New(actuatorOutputs(cfg, log))
	actuatorCtrl.SetLogger(log)
	defer func() {
		if cleanupErr := actuatorCtrl.Cleanup(); cleanupErr != nil {
			log.Error("actuator cleanup failed", "error", cleanupErr)
		}
	}()

	// Job store
	jobs := job.NewStore(job.DefaultTemplates())
	jobs.SetLogger(log)

	// Composition root
	fact, err := factory.New(factory.Deps{
		Gantry:    gantryCtrl,
		Actuator:  actuatorCtrl,
		Cameras:   cameras,
		Jobs:      jobs,
		Audit:     auditStore,
		Telemetry: publisher,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating factory: %w", err)
	}
	fact.SetRunnerLogger(log)
	fact.Load(ctx, cfg.Factory.StateFile, cfg.Factory.JobsFile, cfg.Factory.PartsFile)

	// WebSocket hub, created here so machine callbacks can broadcast
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Background moves report completion to telemetry and WebSocket clients
	gantryCtrl.SetOnMoveDone(func(pose gantry.Pose, moveErr error) {
		publisher.Operation(gantryCtrl.Name(), "goto", moveErr == nil)
		publisher.PoseSample(gantryCtrl.Name(), pose.X, pose.Y, pose.Z, pose.A)
		hub.Broadcast(api.ChannelMachineState, map[string]any{
			"machine":   gantryCtrl.Name(),
			"connected": gantryCtrl.Connected(),
			"moving":    false,
			"toolend":   pose,
		})
	})

	// Best-effort machine connects; unreachable hardware is degraded, not fatal
	if err := connectMachines(ctx, log, fact); err != nil {
		return err
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Cameras:     cfg.Cameras,
		Logger:      log,
		Factory:     fact,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify infrastructure is healthy
	if err := db.Health(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Actuator outputs
	// 3. Camera sessions
	// 4. Telemetry, MQTT
	// 5. Database

	log.Info("Cell Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CELLCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CELLCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// cameraBackend selects the capture backend: V4L2 on hosts with video
// devices, simulated otherwise or when forced by config.
func cameraBackend(cfg *config.Config, log *logging.Logger) camera.Backend {
	if cfg.Cameras.Simulated {
		log.Info("camera backend: simulated (forced by config)")
		return camera.NewSimBackend(0, 1)
	}
	if _, err := os.Stat("/dev/video0"); err != nil {
		log.Warn("camera backend: simulated (no /dev/video0)")
		return camera.NewSimBackend(0, 1)
	}
	log.Info("camera backend: v4l2")
	return camera.V4L2Backend{}
}

// actuatorOutputs selects the output lines: GPIO where the host exposes
// the configured pins, simulated otherwise or when forced by config.
func actuatorOutputs(cfg *config.Config, log *logging.Logger) actuator.Outputs {
	if cfg.Actuator.Simulated {
		log.Info("actuator outputs: simulated (forced by config)")
		return actuator.NewSimOutputs()
	}
	if !actuator.GPIOAvailable(cfg.Actuator.DirPin) {
		log.Warn("actuator outputs: simulated (no GPIO capability)", "dir_pin", cfg.Actuator.DirPin)
		return actuator.NewSimOutputs()
	}
	log.Info("actuator outputs: gpio",
		"dir_pin", cfg.Actuator.DirPin,
		"pwm_pin", cfg.Actuator.PWMPin,
		"lock_pin", cfg.Actuator.LockPin,
	)
	return actuator.NewPeriphOutputs(actuator.PeriphConfig{
		DirPin:  cfg.Actuator.DirPin,
		PWMPin:  cfg.Actuator.PWMPin,
		LockPin: cfg.Actuator.LockPin,
		PWMFreq: cfg.Actuator.PWMFreq,
	})
}

// connectMachines attempts the initial connects in parallel. Connection
// failures leave the machine disconnected (clients can retry over the
// API); only context cancellation aborts startup.
func connectMachines(ctx context.Context, log *logging.Logger, fact *factory.Factory) error {
	connectCtx, cancel := context.WithTimeout(ctx, startupConnectTimeout)
	defer cancel()

	grp, grpCtx := errgroup.WithContext(connectCtx)
	for _, name := range fact.MachineNames() {
		ctrl, ok := fact.Machine(name)
		if !ok {
			continue
		}
		grp.Go(func() error {
			if err := ctrl.Connect(grpCtx); err != nil {
				log.Warn("machine connect failed, starting disconnected", "machine", ctrl.Name(), "error", err)
			} else {
				log.Info("machine connected", "machine", ctrl.Name())
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return fmt.Errorf("connecting machines: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("startup cancelled: %w", err)
	}
	return nil
}
