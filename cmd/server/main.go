package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mongo "infinitiflow/internal/clients/mongo" // mongo client singleton
	"infinitiflow/internal/config"
	"infinitiflow/internal/logger"

	"github.com/grafana/pyroscope-go"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Create bootstrap logger for early errors
	bootstrapLog := log.New(os.Stderr, "bootstrap: ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		bootstrapLog.Printf("config load failed: %v", err)
		os.Exit(1)
	}

	logg, err := logger.Init(cfg)
	if err != nil {
		bootstrapLog.Printf("logger init failed: %v", err)
		os.Exit(1)
	}

	if cfg.PyroscopeServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "infinitiflow",
			ServerAddress:   cfg.PyroscopeServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseSpace,
				pyroscope.ProfileGoroutines,
			},
		})
		if err != nil {
			logg.Warn("pyroscope start failed", "err", err)
		} else {
			defer func() { _ = profiler.Stop() }()
			logg.Info("continuous profiling enabled", "server", cfg.PyroscopeServerAddress)
		}
	}

	_, db, err := mongo.Init(ctx, cfg, logg)
	if err != nil {
		logg.Error("mongo init", "err", err)
		os.Exit(1)
	}
	logg.Info("connected to mongo", "db", db.Name())

	svc, err := newServices(ctx, cfg, db, logg)
	if err != nil {
		logg.Error("services init", "err", err)
		os.Exit(1)
	}

	sweeper, err := startSweeper(ctx, cfg.SubscriptionSweepSpec, svc.subscriptions, logg)
	if err != nil {
		logg.Error("sweeper init", "err", err)
		os.Exit(1)
	}

	logg.Info("starting InfinitiFlow", "port", cfg.AppPort, "env", cfg.NodeEnv)

	// Setup router and start server
	app, err := setupRouter(cfg, svc)
	if err != nil {
		logg.Error("router init", "err", err)
		os.Exit(1)
	}
	portStr := fmt.Sprintf(":%d", cfg.AppPort)

	g.Go(func() error {
		err := app.Listen(portStr)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if sweeper != nil {
			<-sweeper.Stop().Done()
		}
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		return mongo.Shutdown(shutdownCtx)
	})

	// Wait and exit
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error("fatal", "err", err)
		os.Exit(1)
	}
	logg.Info("graceful shutdown complete")
}
