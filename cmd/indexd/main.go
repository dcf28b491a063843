// Command indexd runs the knowledge index and retrieval service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/heimgewebe/indexd/internal/blobstore"
	"github.com/heimgewebe/indexd/internal/config"
	"github.com/heimgewebe/indexd/internal/egress"
	"github.com/heimgewebe/indexd/internal/forget"
	"github.com/heimgewebe/indexd/internal/ingest"
	"github.com/heimgewebe/indexd/internal/ledger"
	"github.com/heimgewebe/indexd/internal/retention"
	"github.com/heimgewebe/indexd/internal/retrieval"
	"github.com/heimgewebe/indexd/internal/server"
	"github.com/heimgewebe/indexd/internal/store"
	"github.com/heimgewebe/indexd/internal/syssignals"
	"github.com/heimgewebe/indexd/internal/telemetry"
)

func main() {
	os.Exit(run0())
}

func run0() int {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("fatal", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logger.With("service", cfg.ServiceName)

	providers, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown error", "error", err)
		}
	}()

	idxStore := store.New()
	idxLedger := ledger.New()
	sweeper := retention.New(idxStore, logger)
	if cfg.SweepInterval > 0 {
		sweeper.SetInterval(cfg.SweepInterval)
	}
	sweeper.Start(ctx)
	defer sweeper.Close()

	pipeline := ingest.New(idxStore)
	engine := retrieval.New(idxStore, idxLedger, sweeper, cfg.SearchBudgetMS)
	forgetEngine := forget.New(idxStore)

	// Lifetime-managed; HandleObservatoryPublished is invoked by the (out-of-scope) events intake once wired.
	blobStore, err := blobstore.Open(blobstore.Config{
		Path:            cfg.BlobStorePath,
		JanitorInterval: time.Duration(cfg.BlobStoreJanitorSecs) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	blobStore.StartJanitor(ctx)
	defer blobStore.Close()

	// Lifetime-managed; Get is read by the (out-of-scope) chat-upstream proxy once wired.
	sysMonitor := syssignals.New(cfg.SystemSignalsSource)
	defer sysMonitor.Close()

	var egressGuard *egress.WatchedGuard
	if cfg.EgressPolicyPath != "" {
		// Lifetime-managed; gates outbound calls from the (out-of-scope) cloud-sync collaborator once wired.
		egressGuard, err = egress.WatchPolicyFile(cfg.EgressPolicyPath, logger)
		if err != nil {
			return fmt.Errorf("load egress policy: %w", err)
		}
		defer egressGuard.Close()
	}

	srv := server.New(server.Config{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, server.Deps{
		Store:     idxStore,
		Pipeline:  pipeline,
		Engine:    engine,
		Ledger:    idxLedger,
		Forget:    forgetEngine,
		Retention: sweeper,
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
