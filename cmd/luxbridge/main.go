// luxbridge closes the loop between a light sensor and a motorised shade.
//
// It subscribes to a device's temperature, humidity and light topics on an
// MQTT broker and answers every light reading with a command on the control
// topic: "down" at or below the threshold (200 lux by default), "up" above
// it. Temperature and humidity are reported only.
//
// Optional components, each off by default:
//   - SQLite decision log (database.enabled)
//   - InfluxDB telemetry (influxdb.enabled)
//   - HTTP status API and WebSocket event stream (api.enabled)
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/luxbridge/internal/api"
	"github.com/nerrad567/luxbridge/internal/controller"
	"github.com/nerrad567/luxbridge/internal/decision"
	"github.com/nerrad567/luxbridge/internal/infrastructure/config"
	"github.com/nerrad567/luxbridge/internal/infrastructure/database"
	"github.com/nerrad567/luxbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/luxbridge/internal/infrastructure/logging"
	"github.com/nerrad567/luxbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/luxbridge/internal/telemetry"
	"github.com/nerrad567/luxbridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnvVar      = "LUXBRIDGE_CONFIG"

	// shutdownTimeout bounds draining the dispatch queue on exit.
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts the bridge and blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - flagPath: Value of --config, empty when not given
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, flagPath string) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting luxbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig(flagPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	mqtt.RouteLibraryLogs(log.With("component", "paho").Logger)
	if configPath == "" {
		log.Info("no config file found, running on defaults", "path", defaultConfigPath)
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	topics := mqtt.ResolveTopics(cfg.Topics)
	ctrl, err := controller.New(controller.Config{
		Topics: controller.Topics{
			Temperature: topics.Temperature,
			Humidity:    topics.Humidity,
			Light:       topics.Light,
			Control:     topics.Control,
		},
		Threshold: cfg.Controller.Threshold,
		QoS:       byte(cfg.MQTT.QoS), //nolint:gosec // validated 0..2 by config
	})
	if err != nil {
		return fmt.Errorf("building controller: %w", err)
	}

	var observers []controller.Observer

	// Decision log (optional)
	var db *database.DB
	var decisions decision.Repository
	if cfg.Database.Enabled {
		db, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx, migrations.FS, migrations.Dir); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}

		repo := decision.NewSQLiteRepository(db.DB)
		decisions = repo
		observers = append(observers, decision.NewObserver(repo, cfg.Controller.Threshold))
		log.Info("decision log enabled", "path", cfg.Database.Path)
	}

	// InfluxDB telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		observers = append(observers, telemetry.NewObserver(influxClient, cfg.Topics.Device, ctrl.Config()))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// WebSocket hub, fed by the service when the API is on
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		go hub.Run(ctx)
		observers = append(observers, api.NewEventObserver(hub, cfg.Controller.Threshold))
	}

	// MQTT broker
	mqttClient := mqtt.New(cfg.MQTT, topics.Status)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)

	svc, err := controller.NewService(controller.ServiceOptions{
		Controller: ctrl,
		Transport:  &mqttTransport{Client: mqttClient},
		Workers:    cfg.Controller.Workers,
		QueueSize:  cfg.Controller.QueueSize,
		Logger:     log.With("component", "controller"),
		Observers:  observers,
	})
	if err != nil {
		return fmt.Errorf("building controller service: %w", err)
	}

	bindConnectResults(mqttClient, svc)
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Status API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Logger:    log.With("component", "api"),
			Status:    svc,
			Decisions: decisions,
			Hub:       hub,
			Version:   version,
		}
		if db != nil {
			deps.DB = db
		}
		srv, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("building API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting controller service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := svc.Stop(stopCtx); stopErr != nil {
			log.Error("error draining controller queue", "error", stopErr)
		}
	}()

	// A refused or failed connect is reported through HandleConnect and
	// retried in the background; it never stops the bridge.
	//nolint:errcheck // reported through SetOnConnect
	mqttClient.Start(ctx)
	log.Info("MQTT client started",
		"broker", mqtt.BrokerURL(cfg.MQTT),
		"client_id", cfg.MQTT.Broker.ClientID,
		"device", cfg.Topics.Device,
	)

	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		log.Warn("MQTT not connected yet, retrying in background",
			"error", err,
			"retry_interval", cfg.MQTT.GetRetryInterval(),
		)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"threshold", cfg.Controller.Threshold,
		"light_topic", topics.Light,
		"control_topic", topics.Control,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Controller queue drain
	// 2. API server
	// 3. MQTT (offline status, stops connect retries)
	// 4. InfluxDB
	// 5. Database

	return nil
}

// resolveConfigPath picks the config file: --config, then LUXBRIDGE_CONFIG,
// then the default. explicit is false only for the default.
func resolveConfigPath(flagPath string) (path string, explicit bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// loadConfig loads the resolved config file. A missing default file falls
// back to defaults plus environment; the returned path is then empty.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path, explicit := resolveConfigPath(flagPath)

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, "", err
	}

	cfg, err = config.LoadDefaults()
	if err != nil {
		return nil, "", err
	}
	return cfg, "", nil
}

// healthCheck verifies the storage connections that are enabled. MQTT is
// checked separately because an unavailable broker is not fatal.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// bindConnectResults forwards every connect result, refusals included,
// to the service.
func bindConnectResults(client *mqtt.Client, svc *controller.Service) {
	client.SetOnConnect(func(result mqtt.ConnectResult) {
		//nolint:errcheck // HandleConnect logs its own failures
		svc.HandleConnect(controller.ConnectResult{
			Code:   result.Code,
			Reason: result.String(),
			Err:    result.Err,
		})
	})
}

// mqttTransport adapts the infrastructure MQTT client to controller.Transport.
// The only difference is the Subscribe handler signature:
//   - Infrastructure mqtt: func(topic string, payload []byte) error
//   - Controller expects: func(topic string, payload []byte)
type mqttTransport struct {
	*mqtt.Client
}

// Subscribe implements controller.Transport.
func (t *mqttTransport) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return t.Client.Subscribe(topic, qos, func(tp string, p []byte) error {
		handler(tp, p)
		return nil
	})
}
