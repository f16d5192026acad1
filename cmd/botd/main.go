// Package main provides the entry point for the cycle bet daemon.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/cyclebet/internal/config"
	"github.com/yourusername/cyclebet/internal/database"
	"github.com/yourusername/cyclebet/internal/engine"
	"github.com/yourusername/cyclebet/internal/health"
	"github.com/yourusername/cyclebet/internal/logger"
	"github.com/yourusername/cyclebet/internal/metrics"
	"github.com/yourusername/cyclebet/internal/repository"
	"github.com/yourusername/cyclebet/internal/scheduler"
	"github.com/yourusername/cyclebet/internal/wallet"
)

const version = "1.0.0"

func main() {
	configPath := os.Getenv("CYCLEBET_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load AWS secrets if enabled
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			log.Fatalf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			log.Fatalf("Failed to load secrets: %v", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLog := logger.NewLogger(cfg.App.LogLevel)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
		"version":     version,
	}).Info("Cycle bet daemon starting")

	metrics.InitRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Initialize(ctx, &cfg.Database)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	appLog.Info("Database connection established")

	repos := repository.Repositories{
		Bots:        repository.NewPostgresBotRepository(db),
		Wagers:      repository.NewPostgresWagerRepository(db),
		Cycles:      repository.NewPostgresCompletedCycleRepository(db),
		Commissions: repository.NewPostgresCommissionEventRepository(db),
	}

	platformWallet := wallet.NewHTTPWallet(&cfg.Wallet, appLog)
	appLog.WithField("wallet_url", cfg.Wallet.BaseURL).Info("Wallet client initialized")

	eng := engine.New(&repos, platformWallet, cfg, appLog)

	sched := scheduler.NewScheduler(eng, &cfg.Engine, appLog)
	if err := sched.ScheduleTick(); err != nil {
		appLog.WithError(err).Fatal("Failed to schedule maintenance tick")
	}
	if err := sched.ScheduleSweep(); err != nil {
		appLog.WithError(err).Fatal("Failed to schedule timeout sweep")
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     version,
		Port:        cfg.Metrics.Port,
		MetricsPath: metricsPath,
		Logger:      appLog,
		DB:          db,
		Jobs:        sched,
	})
	healthServer.Start(ctx)

	if err := sched.Start(); err != nil {
		appLog.WithError(err).Fatal("Failed to start scheduler")
	}
	healthServer.SetReady(true)

	appLog.WithFields(logrus.Fields{
		"tick_interval_seconds":  cfg.Engine.TickIntervalSeconds,
		"sweep_interval_seconds": cfg.Engine.SweepIntervalSeconds,
		"commission_rate":        cfg.Commission.Rate,
	}).Info("Cycle bet daemon running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	appLog.WithField("signal", sig).Info("Shutdown signal received")

	healthServer.SetReady(false)
	cancel()
	sched.Stop()

	// Give in-flight jobs time to release their leases
	time.Sleep(2 * time.Second)

	appLog.Info("Cycle bet daemon shut down")
}
