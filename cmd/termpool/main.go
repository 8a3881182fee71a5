package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go/jetstream"

	"TermPool/internal/config"
	"TermPool/internal/ingestion"
	"TermPool/internal/ledger"
	"TermPool/internal/observability"
	"TermPool/internal/persistence"
	"TermPool/internal/pool"
	"TermPool/internal/query"
	"TermPool/internal/server"
	"TermPool/internal/vault"
)

func main() {
	log := observability.NewLogger("termpool")

	configPath := os.Getenv("TERMPOOL_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("pool config")
	}
	vaultPrice, err := cfg.VaultSharePrice()
	if err != nil {
		log.Fatal().Err(err).Msg("vault config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("postgres connected")

	migrator := persistence.NewMigrator(db, cfg.Database.MigrationsDir, log)
	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Engine ---
	tradeChan := make(chan pool.Trade, cfg.Persistence.TradeChannelBuffer)

	vlt := vault.NewAccruing(vaultPrice)
	ldg := ledger.NewMemory()

	engine, err := pool.NewEngine(poolCfg, vlt, ldg, observability.NewLogger("pool"), metrics, tradeChan)
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	// --- Warm restart from the latest snapshot ---
	snapMgr := persistence.NewSnapshotManager(db)
	snap, err := snapMgr.LoadLatest(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("load snapshot")
	}
	if snap != nil {
		snap.Restore(engine)
		log.Info().Time("created_at", snap.CreatedAt).Msg("restored pool from snapshot")
	} else {
		log.Info().Msg("no snapshot found, cold start")
	}

	// --- NATS ---
	nc, err := ingestion.ConnectNATS(cfg.NATS.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		log.Fatal().Err(err).Msg("jetstream init")
	}

	if err := ingestion.EnsureCommandStream(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure command stream")
	}
	if err := ingestion.EnsureTradeStream(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure trade stream")
	}
	log.Info().Str("url", cfg.NATS.URL).Msg("nats connected")

	// --- Trade fan-out: persistence gets every trade (blocking), the
	// publisher gets a copy and may lag behind briefly. ---
	persistChan := make(chan pool.Trade, cfg.Persistence.TradeChannelBuffer)
	publishChan := make(chan pool.Trade, cfg.Persistence.TradeChannelBuffer)

	errChan := make(chan error, 8)

	go func() {
		defer close(persistChan)
		defer close(publishChan)
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-tradeChan:
				if !ok {
					return
				}
				select {
				case persistChan <- t:
				default:
					if metrics != nil {
						metrics.PersistBackpressure.Inc()
					}
					persistChan <- t
				}
				// Publishing is best effort; the trade log in
				// Postgres is the source of truth.
				select {
				case publishChan <- t:
				default:
					if metrics != nil {
						metrics.PublishErrors.Inc()
					}
				}
			}
		}
	}()

	// --- Persistence worker ---
	persistWorker := persistence.NewWorker(db, persistChan,
		cfg.Persistence.BatchSize, cfg.FlushTimeout(),
		observability.NewLogger("persistence"), metrics)
	go func() {
		errChan <- persistWorker.Run(ctx)
	}()

	// --- Outbound trade publisher ---
	publisher := ingestion.NewPublisher(js, publishChan, observability.NewLogger("publisher"), metrics)
	go func() {
		errChan <- publisher.Run(ctx)
	}()

	// --- Command pipeline: NATS consumer feeds the dispatcher ---
	rawChan := make(chan ingestion.RawCommand, 4096)
	consumer := ingestion.NewConsumer(js, rawChan, observability.NewLogger("consumer"))
	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start command consumer")
	}

	dispatcher := ingestion.NewDispatcher(engine, rawChan, observability.NewLogger("dispatcher"))
	go func() {
		errChan <- dispatcher.Run(ctx)
	}()

	// --- HTTP read API + health + metrics ---
	queryService := query.NewQueryService(db)
	httpServer := server.NewHTTPServer(cfg.HTTP.Addr, engine, queryService,
		healthChecker, metrics, observability.NewLogger("http"))
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	// --- Checkpoint projection ticker ---
	go func() {
		ticker := time.NewTicker(cfg.CheckpointProjectionInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := persistWorker.ProjectCheckpoints(ctx, engine); err != nil {
					log.Warn().Err(err).Msg("checkpoint projection")
				}
			}
		}
	}()

	// --- Periodic snapshots ---
	go func() {
		ticker := time.NewTicker(cfg.SnapshotInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := snapMgr.Save(ctx, engine, time.Now()); err != nil {
					log.Warn().Err(err).Msg("periodic snapshot")
				}
			}
		}
	}()

	healthChecker.SetReady(true)
	log.Info().
		Str("http", cfg.HTTP.Addr).
		Str("nats", cfg.NATS.URL).
		Msg("termpool ready")

	// --- Wait for shutdown ---
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("goroutine failed, shutting down")
		}
	}

	healthChecker.SetReady(false)
	consumer.Stop()
	cancel()

	// Final snapshot so restart picks up where we left off.
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutCancel()

	if err := persistWorker.ProjectCheckpoints(shutCtx, engine); err != nil {
		log.Error().Err(err).Msg("final checkpoint projection")
	}
	if err := snapMgr.Save(shutCtx, engine, time.Now()); err != nil {
		log.Error().Err(err).Msg("final snapshot")
	} else {
		log.Info().Msg("final snapshot saved")
	}

	log.Info().Msg("termpool shutdown complete")
}
