package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"equipix/config"
	"equipix/credentials"
	"equipix/failures"
	"equipix/job"
	"equipix/logger"
	"equipix/routes"
	"equipix/success"
	taskqueue "equipix/taskQueue"
)

// NewServeCmd creates the serve command
func NewServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the job processor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			defer logger.Close()
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	logger.Info("Starting equipix server initialization")

	if err := os.MkdirAll(config.GetDataDir(), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := os.MkdirAll(config.GetJobsDir(), 0o755); err != nil {
		return fmt.Errorf("create jobs directory: %w", err)
	}

	if err := credentials.OpenDB(config.GetCredentialsDBPath()); err != nil {
		return fmt.Errorf("failed to initialize credentials store: %w", err)
	}
	defer credentials.CloseDB()

	if err := failures.Init(config.GetFailuresDBPath()); err != nil {
		return fmt.Errorf("failed to initialize failure store: %w", err)
	}
	defer failures.Close()

	if err := success.Init(config.GetSuccessDBPath()); err != nil {
		return fmt.Errorf("failed to initialize success store: %w", err)
	}
	defer success.Close()

	if err := taskqueue.OpenPendingQueueDB(""); err != nil {
		return fmt.Errorf("failed to open pending queue: %w", err)
	}
	defer taskqueue.ClosePendingQueueDB()
	logger.Info("Stores initialized")

	compressor, err := newCompressor(cfg)
	if err != nil {
		return err
	}
	job.Init(compressor, cfg.Batch, cfg.Server.CallbackTimeout)
	routes.Init(compressor, cfg.Batch, cfg.Server.MaxUploadMB<<20)

	if err := job.ScanForPendingJobs(); err != nil {
		// keep serving, new uploads still work
		logger.Errorf("Failed to scan for pending jobs: %v", err)
	} else {
		logger.Infof("Restored %d pending job(s)", len(job.GetPendingJobs()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cleanupRoutine(ctx, cfg.Retention)
	go job.ProcessPendingJobs(ctx, cfg.Server.PollInterval)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           routes.NewMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("equipix server listening on %s", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Graceful shutdown failed: %v", err)
		}
	}
	return nil
}

// cleanupRoutine periodically removes old success and failure records
func cleanupRoutine(ctx context.Context, cfg config.RetentionConfig) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup routine stopped")
			return
		case <-ticker.C:
			logger.Debugf("Cleaning up records older than %v", cfg.MaxAge)
			if err := success.CleanupOldRecords(cfg.MaxAge); err != nil {
				logger.Errorf("Failed to cleanup old success records: %v", err)
			}
			if err := failures.CleanupOldRecords(cfg.MaxAge); err != nil {
				logger.Errorf("Failed to cleanup old failure records: %v", err)
			}
		}
	}
}
