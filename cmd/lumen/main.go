// Lumen Core - Lighting Fleet Sync Engine
//
// This is the main entry point for the Lumen Core service. Lumen Core
// keeps a fleet of networked lighting nodes, their backing REST
// service, and every connected client converged on one view of node
// state:
//   - Periodic full snapshots from the fleet service
//   - Live telemetry over per-node MQTT subscriptions
//   - Command dispatch (service write, MQTT fast path, optimistic state)
//   - Schedule reconciliation with manual-override precedence
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumenfleet/lumen-core/internal/api"
	"github.com/lumenfleet/lumen-core/internal/command"
	"github.com/lumenfleet/lumen-core/internal/fleetapi"
	"github.com/lumenfleet/lumen-core/internal/infrastructure/config"
	"github.com/lumenfleet/lumen-core/internal/infrastructure/influxdb"
	"github.com/lumenfleet/lumen-core/internal/infrastructure/logging"
	"github.com/lumenfleet/lumen-core/internal/infrastructure/mqtt"
	"github.com/lumenfleet/lumen-core/internal/node"
	"github.com/lumenfleet/lumen-core/internal/schedule"
	"github.com/lumenfleet/lumen-core/internal/snapshot"
	"github.com/lumenfleet/lumen-core/internal/telemetry"
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
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
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
	log.Info("starting Lumen Core",
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

	// Canonical state store. Everything else hangs off this.
	store := node.NewStore()
	store.SetLogger(log)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	topics := mqttClient.Topics()

	// Connect to InfluxDB (optional telemetry offload)
	var influxClient *influxdb.Client
	var sink telemetry.Sink
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
		sink = telemetry.NewInfluxSink(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Fleet service client: the authoritative write path and snapshot source
	fleetClient := fleetapi.NewClient(cfg)
	fleetClient.SetLogger(log)
	log.Info("fleet service client ready", "base_url", cfg.Fleet.BaseURL)

	// Command dispatcher
	qos := byte(cfg.MQTT.QoS) //nolint:gosec // QoS validated to 0-2 by config
	dispatcher := command.NewDispatcher(fleetClient, mqttClient, store, topics.NodeCommand, qos)
	dispatcher.SetLogger(log)
	dispatcher.SetTimeout(cfg.GetDispatchTimeout())

	// Republish canonical state on the broker so any consumer can read
	// the engine's view without touching the REST API. Retained, one
	// topic per node; a removed node's topic is cleared.
	store.Subscribe(func(ev node.Event) {
		topic := topics.CoreNodeState(ev.State.NodeID)
		switch ev.Type {
		case node.EventUpdated:
			payload, err := json.Marshal(ev.State)
			if err != nil {
				return
			}
			if err := mqttClient.PublishRetained(topic, payload); err != nil {
				log.Debug("canonical state publish failed", "node_id", ev.State.NodeID, "error", err)
			}
		case node.EventRemoved:
			if err := mqttClient.PublishRetained(topic, nil); err != nil {
				log.Debug("canonical state clear failed", "node_id", ev.State.NodeID, "error", err)
			}
		}
	})

	// Telemetry subscriber follows the store's node set
	subscriber := telemetry.NewSubscriber(mqttClient, store, topics, qos, sink)
	subscriber.SetLogger(log)
	subscriber.Start()
	defer subscriber.Stop()

	// Snapshot fetcher seeds the store synchronously, then polls
	fetcher := snapshot.NewFetcher(fleetClient, store, cfg.GetSnapshotInterval())
	fetcher.SetLogger(log)
	fetcher.Start(ctx)
	defer fetcher.Stop()

	// Schedule reconciler
	reconciler := schedule.NewReconciler(fleetClient, dispatcher, store, cfg.GetReconcileTick())
	reconciler.SetLogger(log)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	// REST + WebSocket surface
	apiServer, err := api.New(api.Deps{
		Config:         cfg.API,
		WS:             cfg.WebSocket,
		Logger:         log,
		Store:          store,
		Dispatcher:     dispatcher,
		Schedules:      reconciler,
		Backend:        fleetClient,
		DefaultDim:     cfg.Engine.DefaultDim,
		SnapshotStatus: fetcher.LastSync,
		Version:        version,
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

	// Verify all connections are healthy
	if err := healthCheck(ctx, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"nodes", store.Count(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Reconciler, fetcher, telemetry subscriber
	// 3. InfluxDB (if enabled)
	// 4. MQTT

	log.Info("Lumen Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LUMEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
