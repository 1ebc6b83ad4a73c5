// VeganLens Core - camera coordination service
//
// This is the main entry point for the VeganLens camera core. It owns the
// camera resource arbitration and mode-switching state machine behind the
// product scanner, and exposes it over HTTP, WebSocket, and MQTT:
//   - Exclusive camera ownership with lease arbitration
//   - Declarative per-mode hardware configuration
//   - Two-tier focus recovery after photo workflows
//   - Transition journal and telemetry for field diagnostics
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/veganlens/veganlens-core/internal/api"
	"github.com/veganlens/veganlens-core/internal/bridge"
	"github.com/veganlens/veganlens-core/internal/camera"
	"github.com/veganlens/veganlens-core/internal/eventbus"
	"github.com/veganlens/veganlens-core/internal/infrastructure/config"
	"github.com/veganlens/veganlens-core/internal/infrastructure/database"
	"github.com/veganlens/veganlens-core/internal/infrastructure/influxdb"
	"github.com/veganlens/veganlens-core/internal/infrastructure/logging"
	"github.com/veganlens/veganlens-core/internal/infrastructure/mqtt"
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

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting VeganLens Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the journal database (optional). The camera core is fully
	// transient without it; only the field diagnostics endpoints go dark.
	var db *database.DB
	var journal *camera.Journal
	if cfg.Database.Enabled {
		db, err = database.Open(database.Config{
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

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		journal = camera.NewJournal(db, log)
	} else {
		log.Info("transition journal disabled")
	}

	// Event bus: every camera state change fans out through here.
	bus := eventbus.New(eventbus.Config{
		TTL:    cfg.Camera.ListenerTTL(),
		Logger: log,
	})

	// Capture surface: MQTT bridge to the device camera when a broker is
	// configured, in-process loopback otherwise (development, CI).
	var (
		surface camera.CaptureSurface
		mqttCli *mqtt.Client
		mirror  *bridge.EventMirror
		mqttSrf *bridge.Surface
	)
	if cfg.MQTT.Enabled {
		mqttCli, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttCli.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttCli.SetLogger(log)
		mqttCli.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttCli.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttSrf, err = bridge.NewSurface(bridge.Options{
			Client: mqttCli,
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("creating capture surface: %w", err)
		}
		if startErr := mqttSrf.Start(); startErr != nil {
			return fmt.Errorf("starting capture surface: %w", startErr)
		}
		surface = mqttSrf
	} else {
		log.Info("MQTT disabled, using loopback capture surface")
		surface = bridge.NewLoopback(log)
	}

	// Connect to InfluxDB telemetry (optional)
	var influxClient *influxdb.Client
	var telemetry camera.TelemetrySink
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Camera coordinator: the heart of the service.
	coordinator, err := camera.New(camera.Deps{
		Config:    cfg.Camera,
		Surface:   surface,
		Bus:       bus,
		Logger:    log.With("component", "camera"),
		Telemetry: telemetry,
		Journal:   journal,
	})
	if err != nil {
		return fmt.Errorf("creating camera coordinator: %w", err)
	}
	defer func() {
		log.Info("closing camera coordinator")
		if closeErr := coordinator.Close(); closeErr != nil {
			log.Error("error closing camera coordinator", "error", closeErr)
		}
	}()

	// Barcode detections flow from the device back into the scan-rate
	// heuristic; the mirror pushes state out for the diagnostics panel.
	if mqttSrf != nil {
		mqttSrf.SetDetectionSink(coordinator)

		mirror = bridge.NewEventMirror(bus, mqttCli, log)
		mirror.Start()
		defer func() {
			log.Info("stopping event mirror")
			mirror.Stop()
		}()
	}

	// HTTP API and WebSocket server.
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.With("component", "api"),
		Camera:   coordinator,
		Bus:      bus,
		Journal:  journal,
		DB:       db,
		MQTT:     mqttCli,
		Influx:   influxClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttCli, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Event mirror (if MQTT enabled)
	// 3. Camera coordinator
	// 4. InfluxDB (if enabled)
	// 5. MQTT (if enabled)
	// 6. Database (if enabled)

	log.Info("VeganLens Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VEGANLENS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VEGANLENS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the configured infrastructure connections are healthy.
// Components left disabled in config are nil here and skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
