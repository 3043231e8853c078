// Lattice Device Core - device-side command & state engine
//
// This is the main entry point for the Lattice device agent. It loads the
// device's command and state definitions, connects to the cloud controller
// over MQTT, and exposes a local HTTP/WebSocket API for on-device tooling.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lattice-home/lattice-agent/migrations"

	"github.com/lattice-home/lattice-agent/internal/api"
	"github.com/lattice-home/lattice-agent/internal/command"
	"github.com/lattice-home/lattice-agent/internal/infrastructure/config"
	"github.com/lattice-home/lattice-agent/internal/infrastructure/database"
	"github.com/lattice-home/lattice-agent/internal/infrastructure/influxdb"
	"github.com/lattice-home/lattice-agent/internal/infrastructure/logging"
	"github.com/lattice-home/lattice-agent/internal/infrastructure/mqtt"
	"github.com/lattice-home/lattice-agent/internal/notifier"
	"github.com/lattice-home/lattice-agent/internal/state"
	"github.com/lattice-home/lattice-agent/internal/transport"
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
	log.Info("starting Lattice device agent",
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
	log.Info("configuration loaded", "path", configPath, "device_id", cfg.Device.ID)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Command engine: dictionary + live instances, audited to SQLite
	commands := command.NewManager()
	commands.SetLogger(log)
	history := command.NewSQLiteHistoryRepository(db.DB)
	commands.SetHistory(history)
	if err := commands.Startup(cfg.Definitions.CommandsDir, cfg.Definitions.TestCommands); err != nil {
		return fmt.Errorf("loading command definitions: %w", err)
	}

	// State engine: schema-validated store with a bounded change queue
	states := state.NewManager(state.NewQueue(cfg.State.QueueCapacity))
	states.SetLogger(log)
	if cfg.State.SnapshotEnabled {
		states.SetSnapshots(state.NewSQLiteSnapshotRepository(db.DB))
	}
	if err := states.Startup(cfg.Definitions.StatesDir); err != nil {
		return fmt.Errorf("loading state definitions: %w", err)
	}
	log.Info("engines initialised",
		"commands", commands.Dictionary().Size(),
		"properties", len(states.PropertyNames()),
	)

	// Connect to MQTT broker (optional: the device can run local-only)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Device.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled, running local-only")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		// Command throughput lands next to the notifier's state samples.
		commands.SetMetrics(influxClient, cfg.Device.ID)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Cloud adapter and state notifier need the broker connection
	var stateNotifier *notifier.Notifier
	if mqttClient != nil {
		qos := byte(cfg.MQTT.QoS)

		adapter := transport.NewCloudAdapter(commands, mqttClient, mqttClient.Topics(), qos)
		adapter.SetLogger(log)
		if err := adapter.Start(); err != nil {
			return fmt.Errorf("starting cloud adapter: %w", err)
		}
		log.Info("cloud adapter started")

		stateNotifier = notifier.New(states, mqttClient, mqttClient.Topics(),
			qos, cfg.Device.ID, cfg.GetDrainInterval())
		stateNotifier.SetLogger(log)
		if influxClient != nil {
			stateNotifier.SetMetrics(influxClient)
		}
		if err := stateNotifier.Start(ctx); err != nil {
			return fmt.Errorf("starting state notifier: %w", err)
		}
		defer stateNotifier.Stop()

		// After a reconnect, flush buffered deltas and republish the full
		// retained state so the controller resynchronises.
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
			stateNotifier.Kick()
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	}

	// Local HTTP API + WebSocket stream
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Commands: commands,
		States:   states,
		History:  history,
		MQTT:     mqttClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. State notifier (final flush)
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("Lattice device agent stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LATTICE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LATTICE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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
