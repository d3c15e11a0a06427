// Command server starts the backtesting HTTP API: it wires the
// market-data provider, sandboxed executor, orchestrator, scheduler, job
// store, maintenance cron, and chi router together and serves until
// interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/archival"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/config"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/executor"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/httpapi"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/jobstore"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/maintenance"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/marketdata"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/orchestrator"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/scheduler"
	"github.com/Husky-Quantitative-Group/hqg-backtester/pkg/logger"
)

// jobRecordTTL is how long a terminal job record survives before the daily
// sweep evicts it; clients are expected to have polled a result well before
// a week elapses.
const jobRecordTTL = 7 * 24 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: isTTY()})
	logger.SetGlobalLogger(log)

	cache, err := marketdata.NewCache(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("init market data cache: %w", err)
	}
	upstream := marketdata.NewYahooUpstream(log)
	provider := marketdata.NewProvider(cache, upstream, log)

	sandboxBinary, err := sandboxBinaryPath()
	if err != nil {
		return fmt.Errorf("locate sandboxrunner binary: %w", err)
	}
	exec := executor.New(sandboxBinary, cfg.MaxExecutionTime, log)

	orch := orchestrator.New(provider, exec, cfg.OrchestratorConcurrency, log)

	jobs, err := jobstore.Open(cfg.JobStorePath)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer func() {
		if err := jobs.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close job store")
		}
	}()

	sched := scheduler.New(orch, jobs, provider, log)

	srv := httpapi.New(httpapi.Config{
		Log:            log,
		Host:           cfg.APIHost,
		Port:           cfg.APIPort,
		MaxRequestTime: cfg.MaxRequestTime,
		Scheduler:      sched,
		Orchestrator:   orch,
		JWKSURL:        cfg.JWKSURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	maint := maintenance.New(log)
	if err := maint.AddJob("0 0 3 * * *", maintenance.NewJobRecordSweepJob(jobs, jobRecordTTL)); err != nil {
		return fmt.Errorf("register job-record sweep: %w", err)
	}
	if cfg.JWKSURL != "" {
		if err := maint.AddJob("0 0 * * * *", maintenance.NewJWKSRefreshJob(ctx, srv)); err != nil {
			return fmt.Errorf("register jwks refresh: %w", err)
		}
	}
	if cfg.ArchiveBucket != "" {
		uploader, err := archival.New(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix, log)
		if err != nil {
			log.Warn().Err(err).Msg("archival disabled: failed to load AWS configuration")
		} else if err := maint.AddJob("0 30 2 * * *", maintenance.NewCacheSnapshotJob(ctx, uploader, cfg.CacheDir)); err != nil {
			return fmt.Errorf("register cache snapshot: %w", err)
		}
	}
	maint.Start()
	defer maint.Stop()

	go sched.Run(ctx)

	log.Info().Int("port", cfg.APIPort).Msg("backtesting service ready")
	return srv.Start(ctx)
}

// sandboxBinaryPath resolves cmd/sandboxrunner's built binary, expected
// alongside the running server binary (the deployment packages both from
// the same build).
func sandboxBinaryPath() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(self), "sandboxrunner"), nil
}

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
