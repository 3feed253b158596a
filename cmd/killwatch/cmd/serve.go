package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/solatis/killwatch/internal/core/api"
	"github.com/solatis/killwatch/internal/core/config"
	"github.com/solatis/killwatch/internal/core/db"
	"github.com/solatis/killwatch/internal/core/server"
	"github.com/solatis/killwatch/internal/core/store"
	"github.com/solatis/killwatch/internal/engine"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the killmail matching service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "HTTP server host")
	serveCmd.Flags().Int("port", 0, "HTTP server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DBURL = dbURL
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	database, err := db.Open(cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.MigrateUp(database); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	st, err := store.New(database)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	registry := prometheus.NewRegistry()
	eng, err := engine.New(engine.Config{
		FallbackCap:         cfg.Engine.FallbackCap,
		SequentialThreshold: cfg.Engine.SequentialThreshold,
		Workers:             cfg.Engine.Workers,
		ProfileTimeout:      cfg.Engine.ProfileTimeout,
		MatchTimeout:        cfg.Engine.MatchTimeout,
		CacheTTL:            cfg.Engine.CacheTTL,
		CacheDisabled:       cfg.Engine.CacheDisabled,
		FlushInterval:       cfg.Engine.FlushInterval,
		FrequencyDecay:      cfg.Engine.FrequencyDecay,
		RecorderBuffer:      cfg.Engine.RecorderBuffer,
	}, st, st, nil, logger, registry)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	service, err := api.NewService(eng, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	httpServer, err := server.NewHTTPServer(&cfg.Server, service, registry, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Engine background work (recorder flushes, cache janitor) stops when
	// this context is cancelled; eng.Shutdown then waits out the final
	// recorder flush before the process exits.
	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()
	eng.Start(engineCtx)

	logger.Info("starting killwatch", "version", Version,
		"host", cfg.Server.Host, "port", cfg.Server.Port)

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start(engineCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		shutdownErr := httpServer.Shutdown(context.Background())

		stopEngine()
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := eng.Shutdown(drainCtx); err != nil {
			logger.Warn("engine drain incomplete, buffered matches may be lost", "error", err)
		}
		return shutdownErr
	}
}
