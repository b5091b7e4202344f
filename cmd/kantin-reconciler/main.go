package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"kantin-reconciler/internal/config"
	"kantin-reconciler/internal/logging"
	"kantin-reconciler/internal/reconcile"
	"kantin-reconciler/internal/report"
	"kantin-reconciler/internal/store"
)

// Exit codes mirror the run outcome so the scheduler can alert on them.
const (
	exitSuccess = 0
	exitPartial = 1
	exitFailure = 2
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "kantin-reconciler")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(exitFailure)
	}
	defer logger.Sync()

	docs, ids, err := buildStores(cfg, logger)
	if err != nil {
		logger.Error("failed to build stores", zap.Error(err))
		os.Exit(exitFailure)
	}

	engineCfg := reconcile.DefaultConfig()
	engineCfg.Collections = reconcile.Collections{
		Users:           cfg.Collections.Users,
		Tenants:         cfg.Collections.Tenants,
		Products:        cfg.Collections.Products,
		Orders:          cfg.Collections.Orders,
		InvitationCodes: cfg.Collections.InvitationCodes,
	}
	engineCfg.GraceDays = cfg.Cleanup.GraceDays
	engineCfg.ProductLimit = cfg.Cleanup.ProductLimit
	engineCfg.StaffLimit = cfg.Cleanup.StaffLimit
	engineCfg.TenantUserLimit = cfg.Cleanup.TenantUserLimit
	engineCfg.FreeTierTenantCap = cfg.Cleanup.FreeTierTenantCap
	engineCfg.InvitationTTL = time.Duration(cfg.Cleanup.InvitationTTLHours) * time.Hour
	engineCfg.QueryLimit = cfg.Cleanup.QueryLimit

	engine := reconcile.New(docs, ids, engineCfg, logger)

	// One run per invocation; the external scheduler owns the cadence.
	// A termination signal cancels the context and aborts the run.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, runErr := engine.Run(ctx)
	if runErr != nil {
		logger.Error("run aborted", zap.Error(runErr))
	}

	reportSummary(cfg, logger, sum)

	switch sum.Outcome {
	case reconcile.OutcomeSuccess:
		os.Exit(exitSuccess)
	case reconcile.OutcomePartial:
		os.Exit(exitPartial)
	default:
		os.Exit(exitFailure)
	}
}

// buildStores wires the configured backend. The memory backend keeps the
// job runnable without external services, matching how the other services
// fall back when their database is unavailable.
func buildStores(cfg *config.Config, logger *zap.Logger) (store.DocumentStore, store.IdentityStore, error) {
	switch cfg.StoreBackend {
	case config.BackendAppwrite:
		client := store.NewAppwriteClient(
			cfg.Appwrite.Endpoint,
			cfg.Appwrite.ProjectID,
			cfg.Appwrite.APIKey,
			cfg.Appwrite.DatabaseID,
			logger,
		)
		return client, client, nil

	case config.BackendPostgres:
		db, err := store.OpenPostgres(cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		docs := store.NewPostgresDocumentStore(db)
		if err := docs.EnsureSchema(context.Background()); err != nil {
			return nil, nil, err
		}
		// Principals still live in the identity service even when documents
		// are in Postgres.
		ids := store.NewAppwriteClient(
			cfg.Appwrite.Endpoint,
			cfg.Appwrite.ProjectID,
			cfg.Appwrite.APIKey,
			cfg.Appwrite.DatabaseID,
			logger,
		)
		return docs, ids, nil

	case config.BackendMemory:
		logger.Warn("using in-memory stores, mutations will not persist")
		return store.NewMemoryDocumentStore(), store.NewMemoryIdentityStore(), nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// reportSummary emits the run report: always to stdout as JSON, optionally
// to a Redis stream and an xlsx file.
func reportSummary(cfg *config.Config, logger *zap.Logger, sum *reconcile.Summary) {
	payload, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		logger.Error("failed to encode summary", zap.Error(err))
	} else {
		fmt.Println(string(payload))
	}

	if cfg.Report.StreamEnabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		publisher := report.NewPublisher(client, cfg.Report.Stream, logger)
		// Publish with a fresh timeout: the run context may already be
		// cancelled when the run was aborted.
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := publisher.Publish(pubCtx, sum); err != nil {
			logger.Error("failed to publish summary", zap.Error(err))
		}
	}

	if cfg.Report.ExcelPath != "" {
		data, err := report.GenerateRunReport(sum)
		if err != nil {
			logger.Error("failed to generate xlsx report", zap.Error(err))
			return
		}
		if err := os.WriteFile(cfg.Report.ExcelPath, data, 0o644); err != nil {
			logger.Error("failed to write xlsx report", zap.Error(err))
			return
		}
		logger.Info("xlsx report written", zap.String("path", cfg.Report.ExcelPath))
	}
}
