package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"example.com/fossiltrack/config"
	"example.com/fossiltrack/internal/cache"
	"example.com/fossiltrack/internal/database"
	"example.com/fossiltrack/internal/messaging"
	"example.com/fossiltrack/internal/metrics"
	"example.com/fossiltrack/internal/pipeline"
	"example.com/fossiltrack/internal/search"
	"example.com/fossiltrack/internal/services"
	"example.com/fossiltrack/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// providerCooldown is how long the worker waits before retrying the
// pipeline after an upstream reports its call budget spent.
const providerCooldown = 4 * time.Hour

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that runs the voyage pipeline and publishes the cost counter on a schedule`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connections
	dbConn, err := database.Connect(cfg.DB)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	defer dbConn.Close()

	db, err := dbConn.DB()
	if err != nil {
		return err
	}
	readOnlyDB, err := dbConn.ReadDB()
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache, _ = cache.NewRedisCache(config.RedisConfig{Enabled: false})
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
	}

	// Initialize the operations notifier
	notifier, err := messaging.NewNotifier(cfg.Azure, "worker")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Service Bus notifier, continuing without alerts")
		notifier = messaging.NewNopNotifier()
	}
	defer notifier.Close()

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize services
	trackerService, err := services.NewTrackerService(
		db, readOnlyDB, cfg, redisCache, elasticClient, tracer, notifier, metricsCollector)
	if err != nil {
		return err
	}
	counterService := services.NewCounterService(
		db, readOnlyDB, cfg, redisCache, tracer, notifier, metricsCollector)

	// Create a scheduler
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	// The pipeline job holds off for a cooldown period when an upstream
	// provider reports its call budget spent, instead of hammering it
	// again on the next tick.
	var (
		holdMu    sync.Mutex
		holdUntil time.Time
	)
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Pipeline.Interval),
		gocron.NewTask(func() {
			holdMu.Lock()
			waiting := time.Now().Before(holdUntil)
			holdMu.Unlock()
			if waiting {
				log.Info().Time("until", holdUntil).Msg("Skipping pipeline run while provider budget recovers")
				return
			}

			if err := trackerService.RunPipeline(ctx); err != nil {
				if pipeline.ShouldBackOff(err) {
					holdMu.Lock()
					holdUntil = time.Now().Add(providerCooldown)
					holdMu.Unlock()
					log.Warn().Err(err).Dur("cooldown", providerCooldown).Msg("Provider budget spent, backing off")
					return
				}
				log.Error().Err(err).Msg("Pipeline run failed")
			}
		}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule pipeline job")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Counter.Interval),
		gocron.NewTask(func() {
			if err := counterService.RunCounter(ctx); err != nil {
				log.Error().Err(err).Msg("Counter run failed")
			}
		}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule counter job")
	}

	log.Info().
		Dur("pipeline_interval", cfg.Pipeline.Interval).
		Dur("counter_interval", cfg.Counter.Interval).
		Msg("Starting worker scheduler")
	scheduler.Start()

	// Wait for context cancellation
	<-ctx.Done()

	// Shutdown the scheduler
	if err := scheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Scheduler shutdown error")
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
