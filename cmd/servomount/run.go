package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/servomount/internal/api"
	"github.com/nerrad567/servomount/internal/bus"
	"github.com/nerrad567/servomount/internal/discovery"
	"github.com/nerrad567/servomount/internal/infrastructure/config"
	"github.com/nerrad567/servomount/internal/infrastructure/database"
	"github.com/nerrad567/servomount/internal/infrastructure/influxdb"
	"github.com/nerrad567/servomount/internal/infrastructure/logging"
	"github.com/nerrad567/servomount/internal/infrastructure/mqtt"
	"github.com/nerrad567/servomount/internal/relay"
	"github.com/nerrad567/servomount/internal/servo"
	"github.com/nerrad567/servomount/internal/telemetry"
	"github.com/nerrad567/servomount/internal/thing"
)

// run is the serve logic, separated from main for testability.
//
// The bus is opened and initialised before anything else; any failure
// there is fatal. Optional subsystems are started afterwards and stopped
// in reverse order when ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting servomount",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	defer func() { _ = log.Close() }()
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open and initialise the PWM controller
	handle, err := bus.Open(cfg.Bus)
	if err != nil {
		return fmt.Errorf("opening bus: %w", err)
	}
	handle.SetLogger(log)
	defer func() {
		log.Info("closing bus")
		if closeErr := handle.Close(); closeErr != nil {
			log.Error("error closing bus", "error", closeErr)
		}
	}()

	if initErr := bus.Initialise(ctx, handle, servoRegisters(cfg.Servos), cfg.Bus.SettleDelay); initErr != nil {
		return fmt.Errorf("initialising controller: %w", initErr)
	}
	log.Info("controller initialised",
		"driver", cfg.Bus.Driver,
		"device", cfg.Bus.Device,
		"address", fmt.Sprintf("0x%02x", handle.Address()),
	)

	components := make(map[string]api.HealthChecker)

	// Connect to InfluxDB (optional)
	var recorder *telemetry.Recorder
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
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
		recorder = telemetry.New(cfg.Thing.ID, influxClient)
		components["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	mount, err := buildThing(cfg, handle, recorder, log)
	if err != nil {
		return fmt.Errorf("building thing: %w", err)
	}
	if recorder != nil {
		mount.Observe(recorder.Observe)
	}

	// Open the history database (optional)
	var history thing.HistoryRepository
	if cfg.Database.Enabled {
		db, openErr := database.Open(cfg.Database)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
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

		repo := thing.NewSQLiteHistoryRepository(db.DB)
		writer := thing.NewHistoryWriter(repo, cfg.Database.HistoryRetention, log)
		writer.Start(ctx)
		defer func() {
			writer.Stop()
			if n := writer.Dropped(); n > 0 {
				log.Warn("property history entries dropped", "count", n)
			}
		}()
		mount.Observe(writer.Observe)

		history = repo
		components["database"] = db
		log.Info("property history enabled", "path", cfg.Database.Path)
	}

	// Connect to MQTT and relay the thing (optional)
	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		r, relayErr := relay.New(relay.Options{
			Client:         mqttClient,
			Thing:          mount,
			Bus:            handle,
			QoS:            byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0-2
			HealthInterval: time.Duration(cfg.MQTT.HealthInterval) * time.Second,
			Version:        version,
			Logger:         log,
		})
		if relayErr != nil {
			return fmt.Errorf("creating MQTT relay: %w", relayErr)
		}
		if startErr := r.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT relay: %w", startErr)
		}
		defer func() {
			r.Stop()
			if n := r.Dropped(); n > 0 {
				log.Warn("mqtt publishes dropped", "count", n)
			}
		}()

		components["mqtt"] = mqttClient
		log.Info("MQTT relay started",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Thing:      mount,
		Bus:        handle,
		History:    history,
		Components: components,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating thing server: %w", err)
	}
	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting thing server: %w", startErr)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing thing server", "error", closeErr)
		}
	}()

	// Advertise over mDNS (optional). Failure here is not fatal.
	if cfg.Discovery.Enabled {
		advertiser, advErr := newAdvertiser(cfg, log)
		if advErr != nil {
			return fmt.Errorf("creating mDNS advertiser: %w", advErr)
		}
		if startErr := advertiser.Start(); startErr != nil {
			log.Warn("mDNS advertisement failed, continuing without discovery", "error", startErr)
		} else {
			defer advertiser.Stop()
			log.Info("advertising over mDNS",
				"service", discovery.ServiceType,
				"instance", advertiser.Instance(),
				"txt", advertiser.TXT(),
			)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"thing", cfg.Thing.ID,
		"properties", len(mount.Properties()),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	// Deferred calls run in reverse: mDNS, server, relay, MQTT, history, database, InfluxDB, bus.
	return nil
}

// servoRegisters returns the OFF register of every configured servo.
func servoRegisters(servos []config.ServoConfig) []uint8 {
	regs := make([]uint8, 0, len(servos))
	for _, s := range servos {
		regs = append(regs, s.Register)
	}
	return regs
}

// buildThing creates the thing with one numeric property per servo, each
// forwarding to its channel on the shared handle. Clamped servos advertise
// their logical range. recorder may be nil.
func buildThing(cfg *config.Config, handle *bus.Handle, recorder *telemetry.Recorder, log *logging.Logger) (*thing.Thing, error) {
	mount := thing.New(cfg.Thing.ID, cfg.Thing.Title, cfg.Thing.Type, cfg.Thing.Description)

	for _, s := range cfg.Servos {
		opts := servo.Options{
			Name:     s.Name,
			Register: s.Register,
			Bus:      handle,
			Clamp:    s.Clamp,
			Logger:   log,
		}
		// A nil *Recorder must not become a non-nil interface.
		if recorder != nil {
			opts.Recorder = recorder
		}

		fwd, err := servo.NewForwarder(opts)
		if err != nil {
			return nil, fmt.Errorf("servo %s: %w", s.Name, err)
		}

		meta := thing.Metadata{
			"type":        "number",
			"description": s.Description,
		}
		if s.Clamp {
			meta["minimum"] = servo.MinLogical
			meta["maximum"] = servo.MaxLogical
		}
		if err := mount.AddProperty(thing.NewProperty(s.Name, s.Initial, meta, fwd)); err != nil {
			return nil, err
		}
	}

	return mount, nil
}

// newAdvertiser builds the mDNS advertiser. The instance name defaults to
// the thing title.
func newAdvertiser(cfg *config.Config, log *logging.Logger) (*discovery.Advertiser, error) {
	instance := cfg.Discovery.Instance
	if instance == "" {
		instance = cfg.Thing.Title
	}
	return discovery.New(discovery.Options{
		Instance:  instance,
		Port:      cfg.API.Port,
		TLS:       cfg.API.TLS.Enabled,
		Interface: cfg.Discovery.Interface,
		TTL:       cfg.Discovery.TTL,
		Logger:    log,
	})
}
