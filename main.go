package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/voteverse/server/cliparse"
	"github.com/voteverse/server/db"
	"github.com/voteverse/server/events"
	"github.com/voteverse/server/live"
	"github.com/voteverse/server/metrics"
	"github.com/voteverse/server/middleware"
	"github.com/voteverse/server/router"
	"github.com/voteverse/server/voting"
)

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect and verify
	dbConn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	m := metrics.New()
	hub := live.NewHub(m)

	// With Redis every instance publishes through the relay and receives
	// from it; otherwise updates go straight into the local hub.
	var sinks []live.Sink
	if cfg.RedisURL != "" {
		relay, err := live.NewRedisRelay(ctx, cfg.RedisURL, hub)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer relay.Close()

		go func() {
			if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("redis relay stopped", "error", err)
			}
		}()
		sinks = append(sinks, live.Sink{Name: "redis", Publisher: relay})
	} else {
		sinks = append(sinks, live.Sink{Name: "hub", Publisher: hub})
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaPublisher.Close()
		sinks = append(sinks, live.Sink{Name: "kafka", Publisher: kafkaPublisher})
	}

	fanout := live.NewFanout(m, sinks...)
	slog.Info("Live update sinks ready", "sinks", fanout.Sinks())

	svc := voting.NewService(voting.NewStore(dbConn), fanout, m)

	// Create router
	mux := router.NewRouter(router.Deps{
		DB:      dbConn,
		Config:  cfg,
		Service: svc,
		Hub:     hub,
		Metrics: m,
	})

	// Create server
	server := http.Server{
		Handler: middleware.CORS(cfg.AllowedOrigin)(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// Wait for Ctrl-C signal
		<-ctrlc

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()

		// Live subscribers hold hijacked connections Shutdown does not wait for
		hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		<-shutdownDone
		slog.Info("Server closed", "error", err)
	}

	// Let in-flight tally updates reach their sinks before closing them
	svc.Wait()
	cancel()
}
