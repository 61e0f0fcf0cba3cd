package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fahadwaseem8/whois-tracker/config"
	"github.com/fahadwaseem8/whois-tracker/internal/httpserver"
	"github.com/fahadwaseem8/whois-tracker/internal/notify"
	"github.com/fahadwaseem8/whois-tracker/internal/repository"
	"github.com/fahadwaseem8/whois-tracker/internal/sweep"
	"github.com/fahadwaseem8/whois-tracker/internal/whois"
	"github.com/fahadwaseem8/whois-tracker/pkg/db"
	"github.com/fahadwaseem8/whois-tracker/pkg/logger"
	"github.com/fahadwaseem8/whois-tracker/pkg/mq"
	redisclient "github.com/fahadwaseem8/whois-tracker/pkg/redis"
	"github.com/fahadwaseem8/whois-tracker/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting whois-tracker sweeper...",
		zap.String("db_host", cfg.DB.Host),
		zap.Duration("sweep_interval", cfg.Sweep.Interval),
		zap.Ints("threshold_days", cfg.Whois.ThresholdDays),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := repository.EnsureSchema(schemaCtx, dbConn); err != nil {
		schemaCancel()
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}
	schemaCancel()

	// Redis sweep lock
	rdb := redisclient.NewClient(cfg.Redis)
	defer rdb.Close()
	lock := util.NewSweepLock(rdb, cfg.Sweep.LockTTL, log)

	// MQ publisher is optional; without it the sweeper only sends email.
	var publisher sweep.EventPublisher
	if cfg.MQ.URL != "" {
		p, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p
	} else {
		log.Info("MQ URL not configured, domain events disabled")
	}

	// Collaborators
	repo := repository.NewDomainRepository(dbConn)
	provider := whois.NewProvider(cfg.Whois.FetchTimeout, log)
	mailer := notify.NewMailer(
		notify.NewResendClient(cfg.Email.ResendAPIKey, cfg.Email.FromAddress, cfg.Email.SendTimeout),
		log,
	)

	sweeper := sweep.NewSweeper(repo, provider, mailer, sweep.SystemClock{}, publisher, lock, sweep.Options{
		ThresholdDays:  cfg.Whois.ThresholdDays,
		CooldownWindow: cfg.Whois.CooldownWindow,
	}, log)

	// Sweep loop
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go func() {
		ticker := time.NewTicker(cfg.Sweep.Interval)
		defer ticker.Stop()

		runSweep(sweepCtx, sweeper, log)

		for {
			select {
			case <-sweepCtx.Done():
				log.Info("Sweep loop stopped")
				return
			case <-ticker.C:
				runSweep(sweepCtx, sweeper, log)
			}
		}
	}()

	// Ops HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: httpserver.NewRouter(dbConn),
	}
	go func() {
		log.Info("Ops HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("whois-tracker sweeper is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down sweeper gracefully...")
	sweepCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("Sweeper shutdown complete")
}

func runSweep(ctx context.Context, sweeper *sweep.Sweeper, log *zap.Logger) {
	report, err := sweeper.RunSweep(ctx)
	if errors.Is(err, sweep.ErrSweepInProgress) {
		log.Info("Previous sweep still running, skipping this tick")
		return
	}
	if err != nil {
		log.Error("Sweep failed", zap.Error(err))
		return
	}
	log.Info("Sweep report",
		zap.Int("success", report.Success),
		zap.Int("failed", report.Failed),
		zap.Int("notifications_sent", report.NotificationsSent),
		zap.Int("notifications_failed", report.NotificationsFailed),
		zap.Strings("errors", report.Errors),
	)
}
