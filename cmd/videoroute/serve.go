package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/video-route/internal/api"
	"github.com/nerrad567/video-route/internal/controller"
	"github.com/nerrad567/video-route/internal/dispatch"
	"github.com/nerrad567/video-route/internal/infrastructure/config"
	"github.com/nerrad567/video-route/internal/infrastructure/database"
	"github.com/nerrad567/video-route/internal/infrastructure/influxdb"
	"github.com/nerrad567/video-route/internal/infrastructure/logging"
	"github.com/nerrad567/video-route/internal/infrastructure/mqtt"
	"github.com/nerrad567/video-route/internal/routing"
)

// serve runs the service until ctx is cancelled.
//
// Startup order: routing document, history database, metrics, websocket
// hub, MQTT, HTTP API. Endpoint setup runs in the background. Only the
// database and the API listener are fatal; MQTT and InfluxDB degrade to
// warnings.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - cfg: Validated configuration
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting video-route",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	loader := routing.NewLoader(cfg.Routing.Document)
	loader.SetLogger(log.Component("routing"))
	doc, err := loader.Load()
	if err != nil {
		// Not fatal: the page shows an empty tree until the file is fixed.
		log.Warn("routing document not loaded", "path", cfg.Routing.Document, "error", err)
	} else {
		log.Info("routing document loaded",
			"path", cfg.Routing.Document,
			"endpoints", len(doc.Endpoints),
		)
	}

	drivers := controller.NewRegistry(controller.Builtin(log.Component("driver")))
	drivers.SetLogger(log.Component("controller"))
	// Slow or unreachable devices must not hold up the listener.
	go prepareEndpoints(ctx, drivers, doc, cfg.Routing.SkipInit, log)

	checks := make(map[string]api.HealthChecker)
	deps := dispatch.Deps{
		Loader: loader,
		Sender: drivers,
		Logger: log.Component("dispatch"),
	}

	// History database (optional)
	if cfg.Database.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)

		deps.Repo = dispatch.NewSQLiteRepository(db.DB)
		checks["database"] = db
	}

	// Connect to InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Debug("InfluxDB disabled")
	case err != nil:
		log.Warn("InfluxDB unavailable, dispatch metrics disabled", "error", err)
	default:
		defer func() {
			log.Info("closing InfluxDB")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(writeErr error) {
			log.Warn("InfluxDB write failed", "error", writeErr)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		deps.Metrics = influxClient
		checks["influxdb"] = influxClient
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)
	deps.Hub = hub

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, bus selections disabled", "error", err)
			mqttClient = nil
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			mqttClient.SetLogger(log.Component("mqtt"))
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
			deps.Events = dispatch.NewBusEvents(mqttClient, mqttClient.Topics().DispatchEvent())
			checks["mqtt"] = mqttClient
		}
	}

	dispatcher := dispatch.New(deps)

	if mqttClient != nil {
		topic := mqttClient.Topics().Select()
		// #nosec G115 -- qos is validated to 0..2
		if subErr := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), dispatcher.SelectionHandler(ctx)); subErr != nil {
			log.Warn("subscribing to selections failed", "topic", topic, "error", subErr)
		} else {
			log.Info("listening for selections", "topic", topic)
		}
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log.Component("api"),
		Dispatcher: dispatcher,
		History:    deps.Repo,
		Checks:     checks,
		Hub:        hub,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("video-route started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"tls", cfg.API.TLS.Enabled,
	)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// prepareEndpoints sets up the driver of every kind doc uses, then sends
// the endpoints' startup commands unless skipInit is set. Failures are
// logged; a kind that cannot be set up fails each dispatch that needs it.
func prepareEndpoints(ctx context.Context, reg *controller.Registry, doc *routing.Document, skipInit bool, log *logging.Logger) {
	for _, kind := range doc.Kinds() {
		if err := reg.EnsureInitialised(kind); err != nil {
			log.Warn("protocol kind unavailable", "kind", kind, "error", err)
		}
	}
	if err := reg.Initialise(ctx, doc.InitEndpoints(), skipInit); err != nil {
		log.Warn("endpoint initialisation incomplete", "error", err)
	}
}
