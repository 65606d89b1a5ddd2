package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"financify/internal/amqp"
	"financify/internal/cache"
	"financify/internal/cli"
	"financify/internal/config"
	"financify/internal/worker"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.Level())
	logger.Info("Starting financify-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the activity worker")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	activity := worker.NewActivityWorker(10000, time.Hour)

	caches := cache.NewManager()
	caches.Register("activity_dedupe", activity.Seen())
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reports := cron.New()
	if _, err := reports.AddFunc(cfg.WorkerReportSchedule, func() { activity.LogReport(ctx) }); err != nil {
		logger.Error("Invalid report schedule", "error", err, "schedule", cfg.WorkerReportSchedule)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeActivity(gctx, activity.HandleActivity)
	})
	g.Go(func() error {
		reports.Start()
		<-gctx.Done()
		<-reports.Stop().Done()
		return nil
	})

	logger.Info("Worker running", "queue", cfg.AMQPQueue, "report_schedule", cfg.WorkerReportSchedule)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Activity consumption failed", "error", err)
		os.Exit(1)
	}

	activity.LogReport(context.Background())
	logger.Info("Worker shutdown complete")
}
