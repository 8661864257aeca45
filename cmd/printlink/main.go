// PrintLink Core - cloud link for a single 3D printer.
//
// PrintLink holds the printer's cloud MQTT session open, keeps a merged
// snapshot of its state, materialises typed capabilities into SQLite and
// exposes status, control and print-state triggers over a local HTTP and
// WebSocket API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/printlink-core/migrations"

	"github.com/nerrad567/printlink-core/internal/api"
	"github.com/nerrad567/printlink-core/internal/audit"
	"github.com/nerrad567/printlink-core/internal/automation"
	"github.com/nerrad567/printlink-core/internal/cloud"
	"github.com/nerrad567/printlink-core/internal/device"
	"github.com/nerrad567/printlink-core/internal/infrastructure/config"
	"github.com/nerrad567/printlink-core/internal/infrastructure/database"
	"github.com/nerrad567/printlink-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/printlink-core/internal/infrastructure/logging"
	"github.com/nerrad567/printlink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/printlink-core/internal/printer"
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

	// amsSampleInterval is how often AMS humidity and temperature are
	// written to InfluxDB.
	amsSampleInterval = time.Minute

	// historyRetention bounds the state history table.
	historyRetention = 30 * 24 * time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) == 3 && os.Args[1] == "migrate" && os.Args[2] == "down" {
		err = rollback(ctx)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting PrintLink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "device_id", cfg.Printer.DeviceID)

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
	if migrateErr := migrateDatabase(ctx, db, log); migrateErr != nil {
		return migrateErr
	}

	cloudClient, err := cloud.NewStatic(cfg.Cloud.APIURL, cfg.Account.AccessToken,
		cfg.GetRequestTimeout(), log.Component("cloud"))
	if err != nil {
		return fmt.Errorf("creating cloud client: %w", err)
	}
	if exp, ok := cloud.TokenExpiry(cfg.Account.AccessToken); ok {
		log.Info("access token loaded", "expires_at", exp.UTC().Format(time.RFC3339))
	}

	userID, err := resolveAccount(ctx, cloudClient, cfg, log)
	if err != nil {
		return err
	}

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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))

	capStore, err := device.NewCapabilityStore(ctx, db.DB, cfg.Printer.DeviceID)
	if err != nil {
		return fmt.Errorf("loading capabilities: %w", err)
	}
	observers := []device.ValueObserver{hub}
	if influxClient != nil {
		observers = append(observers, influxClient)
	}
	capabilities := device.NewObservedStore(cfg.Printer.DeviceID, capStore, observers...)

	events := device.NewSQLiteEventRepository(db.DB)
	history := device.NewSQLiteStateHistoryRepository(db.DB)
	if pruned, pruneErr := history.PruneHistory(ctx, historyRetention); pruneErr != nil {
		log.Warn("pruning state history failed", "error", pruneErr)
	} else if pruned > 0 {
		log.Info("state history pruned", "rows", pruned)
	}

	dispatcher := automation.NewDispatcher(automation.DispatcherOptions{
		Logger: log.Component("automation"),
	})
	dispatcher.Register("event_log", automation.EventLogSink(events))
	dispatcher.Register("history", automation.HistorySink(history))
	dispatcher.Register("websocket", automation.BroadcastSink(hub))
	if influxClient != nil {
		dispatcher.Register("telemetry", automation.TelemetrySink(influxClient))
	}
	defer dispatcher.Close()

	dev, err := printer.NewDevice(printer.DeviceOptions{
		DeviceID:       cfg.Printer.DeviceID,
		Transport:      mqtt.NewTransport(cfg.Cloud.MQTT, log.Component("mqtt")),
		Credentials:    cloud.NewCredentialSource(userID, cloud.StaticTokens(cfg.Account.AccessToken)),
		Capabilities:   capabilities,
		Tasks:          cloudClient,
		TaskLimit:      cfg.Cloud.TaskLimit,
		Triggers:       dispatcher,
		Availability:   hub,
		ReconnectDelay: cfg.GetReconnectDelay(),
		Logger:         log.Component("printer"),
	})
	if err != nil {
		return fmt.Errorf("creating printer device: %w", err)
	}
	// Closing the device stops new triggers before the dispatcher drains.
	defer func() {
		log.Info("closing printer link")
		if closeErr := dev.Close(); closeErr != nil {
			log.Error("error closing printer link", "error", closeErr)
		}
	}()

	if startErr := dev.Start(ctx); startErr != nil {
		if errors.Is(startErr, printer.ErrClosed) {
			return startErr
		}
		log.Warn("printer not reachable yet, will retry",
			"error", startErr,
			"retry_in", cfg.GetReconnectDelay().String(),
		)
	} else {
		log.Info("printer link established", "device_id", dev.ID())
	}

	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Logger:       log.Component("api"),
		Printer:      dev,
		Capabilities: capStore,
		Events:       events,
		History:      history,
		Audit:        audit.NewSQLiteRepository(db.DB),
		DB:           db.DB,
		Hub:          hub,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if influxClient != nil {
		g.Go(func() error {
			sampleAMS(gctx, dev, influxClient, amsSampleInterval)
			return nil
		})
	}

	if startErr := server.Start(gctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if waitErr := g.Wait(); waitErr != nil {
		log.Error("background task failed", "error", waitErr)
	}

	log.Info("PrintLink Core stopped")
	return nil
}

// migrateDatabase applies pending schema migrations, logging what it applies.
func migrateDatabase(ctx context.Context, db *database.DB, log *logging.Logger) error {
	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	for _, m := range pending {
		log.Info("applying migration", "version", m.Version, "name", m.Name)
	}
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path(), "migrations", len(applied)+len(pending))
	return nil
}

// rollback reverts the most recent schema migration ("printlink migrate down").
func rollback(ctx context.Context) error {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Best effort on exit

	return rollbackLatest(ctx, db, log)
}

func rollbackLatest(ctx context.Context, db *database.DB, log *logging.Logger) error {
	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	if len(applied) == 0 {
		log.Info("no migrations to roll back", "path", db.Path())
		return nil
	}
	if err := db.MigrateDown(ctx); err != nil {
		return fmt.Errorf("rolling back migration %s: %w", applied[len(applied)-1].Version, err)
	}
	log.Info("migration rolled back", "version", applied[len(applied)-1].Version, "path", db.Path())
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PRINTLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PRINTLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// accountAPI is the slice of the cloud client used at startup.
type accountAPI interface {
	GetProfile(ctx context.Context) (cloud.Profile, error)
	GetDevices(ctx context.Context) ([]cloud.BoundDevice, error)
}

// resolveAccount fetches the profile and bound devices concurrently.
//
// The configured user id wins; otherwise the profile's uid is used and a
// profile failure is fatal. The device list is informational: a printer
// missing from it is logged, not rejected.
//
// Returns:
//   - string: The account user id for MQTT credentials
//   - error: If no user id can be determined
func resolveAccount(ctx context.Context, client accountAPI, cfg *config.Config, log *logging.Logger) (string, error) {
	var (
		profile    cloud.Profile
		profileErr error
		devices    []cloud.BoundDevice
		devicesErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		profile, profileErr = client.GetProfile(ctx)
		return nil
	})
	g.Go(func() error {
		devices, devicesErr = client.GetDevices(ctx)
		return nil
	})
	_ = g.Wait()

	userID := cfg.Account.UserID
	switch {
	case userID != "":
		if profileErr != nil {
			log.Warn("fetching account profile failed, using configured user id", "error", profileErr)
		}
	case profileErr != nil:
		return "", fmt.Errorf("resolving account user id: %w", profileErr)
	case profile.UID == "":
		return "", errors.New("resolving account user id: profile has no uid")
	default:
		userID = string(profile.UID)
	}

	if devicesErr != nil {
		log.Warn("listing bound printers failed", "error", devicesErr)
		return userID, nil
	}
	for _, d := range devices {
		if d.DevID == cfg.Printer.DeviceID {
			log.Info("printer bound to account",
				"device_id", d.DevID,
				"name", d.Name,
				"model", d.ProductName,
				"online", d.Online,
			)
			return userID, nil
		}
	}
	log.Warn("printer not found among the account's bound devices", "device_id", cfg.Printer.DeviceID)
	return userID, nil
}

// amsSink receives AMS climate samples.
type amsSink interface {
	WriteAMSMetric(deviceID, unitID string, humidity, temperature *float64)
}

// amsSource exposes the AMS units of the live snapshot.
type amsSource interface {
	ID() string
	AMSUnits() []printer.AMSStatus
}

// sampleAMS writes AMS humidity and temperature every interval until ctx
// is cancelled.
func sampleAMS(ctx context.Context, src amsSource, sink amsSink, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, unit := range src.AMSUnits() {
				sink.WriteAMSMetric(src.ID(), unit.ID, unit.Humidity, unit.Temperature)
			}
		}
	}
}
