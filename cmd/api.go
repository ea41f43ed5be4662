package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/fossiltrack/config"
	"example.com/fossiltrack/internal/api"
	"example.com/fossiltrack/internal/database"
	"example.com/fossiltrack/internal/metrics"
	"example.com/fossiltrack/internal/services"
	"example.com/fossiltrack/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server that exposes aggregation queries over the computed trade dataset`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
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

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize services
	aggregationService := services.NewAggregationService(db, readOnlyDB, tracer)

	// Initialize and start the server
	server := api.NewServer(cfg, aggregationService, metricsCollector, tracer)

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
