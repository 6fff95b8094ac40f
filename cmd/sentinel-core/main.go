// Command sentinel-core runs the full MCP detection pipeline in one
// process: the stream ingest supervisor (C3), the rule engine (C2), the
// LLM judge worker (C4), the registry matcher (C5), and the correlator/
// scorer (C6), wired to NATS JetStream, Postgres, and Redis.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mcpsentinel/sentinel-core/internal/config"
	"github.com/mcpsentinel/sentinel-core/pkg/broker/natsbroker"
	"github.com/mcpsentinel/sentinel-core/pkg/correlator"
	"github.com/mcpsentinel/sentinel-core/pkg/correlator/pgstore"
	"github.com/mcpsentinel/sentinel-core/pkg/ingest"
	"github.com/mcpsentinel/sentinel-core/pkg/judge"
	"github.com/mcpsentinel/sentinel-core/pkg/judge/provider"
	"github.com/mcpsentinel/sentinel-core/pkg/metrics"
	"github.com/mcpsentinel/sentinel-core/pkg/registry"
	"github.com/mcpsentinel/sentinel-core/pkg/registry/pgregistry"
	"github.com/mcpsentinel/sentinel-core/pkg/rules"
	"github.com/mcpsentinel/sentinel-core/pkg/shared/logging"
)

// shutdownBudget is the total time allowed between receiving a shutdown
// signal and forcing process exit.
const shutdownBudget = 30 * time.Second

// judgeDrainGrace is how long in-flight judge calls are given to finish
// during shutdown before the process stops waiting on them.
const judgeDrainGrace = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal_config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logging.Component(logger, "sentinel-core")

	if err := run(cfg, logger, log); err != nil {
		log.WithError(err).Error("sentinel-core exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logrus.Logger, log *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := rules.NewEngine()
	if err := engine.Load(cfg.RulesFile); err != nil {
		return fmt.Errorf("initial rule corpus load: %w", err)
	}
	go rules.WatchReload(ctx, engine, cfg.RulesFile, logging.Component(logger, "rules"))

	b, err := natsbroker.Connect(ctx, cfg.BrokerURL, logging.Component(logger, "broker"))
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer b.Close()

	var db *sql.DB
	if cfg.RegistryURL != "" {
		db, err = sql.Open("pgx", cfg.RegistryURL)
		if err != nil {
			return fmt.Errorf("open registry database: %w", err)
		}
		defer db.Close()
	}

	var reg registry.Lookup
	var store correlator.Store
	if db != nil {
		reg = pgregistry.New(db)
		store = pgstore.New(db)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.CacheURL})
	defer redisClient.Close()
	cache := judge.NewRedisCache(redisClient)

	var prov provider.Provider = provider.NewAnthropicProvider(cfg.JudgeAPIKey, cfg.JudgeModel)
	judgeWorker := judge.NewWorker(prov, cache, cfg.JudgeCacheTTL, cfg.JudgeDeadlineMS)

	policy, err := correlator.NewPolicyEvaluator(ctx)
	if err != nil {
		return fmt.Errorf("compile verdict policy: %w", err)
	}

	corr := correlator.New(b, judgeWorker, reg, policy, store, nil, correlator.Config{
		Quiescence:  cfg.QuiescenceMS,
		HardCeiling: cfg.HardCeilingMS,
		MaxParallel: cfg.WorkerParallelism,
	}, logging.Component(logger, "correlator"))
	if err := corr.Start(ctx); err != nil {
		return fmt.Errorf("start correlator: %w", err)
	}

	supervisor := ingest.New(b, engine, ingest.Config{
		Prefetch:            cfg.WorkerParallelism,
		PoisonRateThreshold: cfg.PoisonRateThreshold,
		PoisonRateWindow:    cfg.PoisonRateWindow,
		QuarantineCooldown:  cfg.QuarantineCooldown,
	}, logging.Component(logger, "ingest"))
	if err := supervisor.Start(ctx); err != nil {
		return fmt.Errorf("start ingest supervisor: %w", err)
	}

	admin := metrics.NewServer(adminPort(cfg.AdminAddr), logger)
	admin.StartAsync()

	log.Info("sentinel-core started")
	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownBudget)
	defer cancel()

	drainCtx, drainCancel := context.WithTimeout(shutdownCtx, judgeDrainGrace)
	corr.Flush(drainCtx)
	drainCancel()

	if err := admin.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("admin server shutdown error")
	}

	return nil
}

func adminPort(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i+1:]
		}
	}
	return addr
}
