package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/brewsignal/brewsignal/db"
	"github.com/brewsignal/brewsignal/internal/actuator"
	"github.com/brewsignal/brewsignal/internal/adapters"
	"github.com/brewsignal/brewsignal/internal/blescanner"
	"github.com/brewsignal/brewsignal/internal/broadcast"
	"github.com/brewsignal/brewsignal/internal/config"
	"github.com/brewsignal/brewsignal/internal/configstore"
	"github.com/brewsignal/brewsignal/internal/datadog"
	"github.com/brewsignal/brewsignal/internal/env"
	"github.com/brewsignal/brewsignal/internal/httpapi"
	"github.com/brewsignal/brewsignal/internal/ingest"
	"github.com/brewsignal/brewsignal/internal/logging"
	"github.com/brewsignal/brewsignal/internal/mpc"
	"github.com/brewsignal/brewsignal/internal/notifications"
	"github.com/brewsignal/brewsignal/internal/pipeline"
	"github.com/brewsignal/brewsignal/internal/switchclient"
	"github.com/brewsignal/brewsignal/internal/tempcontroller"
	"github.com/brewsignal/brewsignal/system/shutdown"
)

const checkpointPath = "data/controller_checkpoint.json"

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)
	env.Cfg = &cfg

	log.Info().Str("db_path", cfg.DBPath).Str("scanner_mode", cfg.ScannerMode).Msg("starting brewsignal")

	if cfg.EnableDatadog {
		datadog.InitMetrics()
	}
	notifications.Init()

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer conn.Close()
	if err := db.InitializeSchema(conn); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}
	if err := db.ApplyMigrations(conn); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	configStore, err := configstore.Load(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config store")
	}

	hub := broadcast.NewHub()
	manager := ingest.NewManager(conn, pipeline.New(), hub, configStore)
	registry := adapters.NewRegistry()

	switchClient := switchclient.New(cfg.SwitchServiceURL, cfg.SwitchServiceToken)
	actuatorFactory := func(entityID string) *actuator.Actuator { return actuator.New(switchClient, entityID) }
	checkpoint := tempcontroller.NewCheckpointer(checkpointPath)
	controller := tempcontroller.New(conn, actuatorFactory, mpc.NoopDecider{}, checkpoint)

	server := httpapi.NewServer(conn, manager, hub, configStore, controller)

	scanner := blescanner.New(selectBackend(&cfg))

	ctx, cancel := context.WithCancel(context.Background())
	shutdown.Listen(cancel)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		controller.Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		scanner.Start(groupCtx, func(p adapters.Payload) {
			reading, adapterErr, matched := registry.Route(p)
			if !matched {
				log.Debug().Str("source", p.SourceProtocol).Msg("no adapter matched scanned payload")
				return
			}
			if adapterErr != nil {
				log.Debug().Err(adapterErr).Msg("adapter failed to parse scanned payload")
				return
			}
			manager.Ingest(reading)
		})
		<-groupCtx.Done()
		scanner.Stop()
		return nil
	})

	group.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- server.Start(cfg.HTTPAddr) }()
		select {
		case <-groupCtx.Done():
			return nil
		case err := <-errCh:
			return err
		}
	})

	group.Go(func() error {
		return runCleanupLoop(groupCtx, conn, configStore)
	})

	if err := group.Wait(); err != nil {
		log.Error().Err(err).Msg("brewsignal exited with error")
	}
	log.Info().Msg("brewsignal shut down")
}

func selectBackend(cfg *config.Config) blescanner.Backend {
	switch blescanner.Mode(cfg.ScannerMode) {
	case blescanner.ModeFile:
		return blescanner.NewFileBackend(cfg.ScannerFilesPath, 2*time.Second)
	case blescanner.ModeRelay:
		return blescanner.NewRelayBackend(cfg.ScannerRelayHost, 2*time.Second)
	case blescanner.ModeMock:
		return blescanner.NewMockBackend(5 * time.Second)
	default:
		return blescanner.NewBLEBackend()
	}
}

// runCleanupLoop periodically evicts readings past the retention window, a
// maintenance trigger modeled on the teacher's idle-cycle housekeeping.
func runCleanupLoop(ctx context.Context, conn *sql.DB, configStore *configstore.Store) error {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snapshot := configStore.Get()
			cutoff := time.Now().AddDate(0, 0, -snapshot.CleanupRetentionDays)
			deleted, err := db.DeleteReadingsOlderThan(conn, cutoff)
			if err != nil {
				log.Warn().Err(err).Msg("reading retention cleanup failed")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("pruned expired readings")
			}
		}
	}
}
