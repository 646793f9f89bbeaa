package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"market-pulse/src/analysis"
	"market-pulse/src/config"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/metrics"
)

const shutdownTimeout = 10 * time.Second

// -----------------------------------------------------------------------------

func run(c *cli.Context) error {
	// 1. Load config
	conf, err := config.NewConfig(c.String(flagConfig))
	if err != nil {
		return err
	}

	// 2. Setup Logger
	appLogger := logger.NewLogger(conf, conf.Name)
	defer appLogger.Sync()

	// 3. Setup Components
	collector := metrics.NewCollector()
	fallback := analysis.NewFallbackGenerator()

	networkManager := setupNetwork(conf.MConfig)
	upstream := setupUpstream(conf.MConfig, networkManager, appLogger)
	feedCache := setupCache(conf.MConfig, upstream, fallback, collector)
	srv := setupServer(conf.MConfig, feedCache, fallback, collector)
	appLogger.Info("Upstream gate: at most one call per %s; sessions push every %s",
		feedCache.MinInterval(), conf.Feed.FetchInterval.Duration())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 4. Bootstrap (warm the cache so the first subscriber gets real data)
	warmCache(ctx, feedCache, appLogger)

	// 5. Start Servers
	grpcServer, err := startServers(ctx, srv, feedCache, conf, appLogger)
	if err != nil {
		appLogger.Critical("Failed to start server: %v", err)
	}

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown: %v", err)
	}

	appLogger.Info("Shutdown complete.")
	return nil
}

// -----------------------------------------------------------------------------

// warmCache performs the first gated fetch before any subscriber connects.
func warmCache(ctx context.Context, provider interfaces.ISnapshotProvider, appLogger *logger.Logger) {
	appLogger.Info("Fetching initial data...")
	snapshot := provider.GetSnapshot(ctx)
	if snapshot.Fallback {
		appLogger.Warning("Initial fetch failed, serving placeholder data until the upstream answers")
		return
	}
	appLogger.Info("Initial snapshot ready: %d assets (generation %d)", len(snapshot.Assets), snapshot.Generation)
}

// -----------------------------------------------------------------------------

func configCmd(c *cli.Context) error {
	conf, err := config.NewConfig(c.String(flagConfig))
	if err != nil {
		return err
	}

	if out := c.String(flagOutput); out != "" {
		return conf.Save(out)
	}

	data, err := conf.Marshal()
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
