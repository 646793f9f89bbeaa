package main

import (
	"market-pulse/src/analysis"
	"market-pulse/src/cache"
	"market-pulse/src/data_source/coingecko"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/metrics"
	"market-pulse/src/models"
	"market-pulse/src/network"
	"market-pulse/src/server"
)

// -----------------------------------------------------------------------------

// setupNetwork initializes the network manager
func setupNetwork(config *models.MConfig) interfaces.INetworkManager {
	networkLogger := logger.NewLogger(config, "NetworkManager")
	return network.NewAsyncNetworkManager(config, networkLogger)
}

// -----------------------------------------------------------------------------

// setupUpstream initializes the market data source
func setupUpstream(config *models.MConfig, networkManager interfaces.INetworkManager, appLogger *logger.Logger) interfaces.IUpstream {
	source := coingecko.NewCoinGeckoSource(config, networkManager)
	appLogger.Info("Upstream: %s (%s, top %d by market cap)", source.Name(), config.Upstream.BaseURL, config.Upstream.AssetCount)
	return source
}

// -----------------------------------------------------------------------------

// setupCache wires the shared cache in front of the upstream
func setupCache(
	config *models.MConfig,
	upstream interfaces.IUpstream,
	gen *analysis.FallbackGenerator,
	collector *metrics.Collector,
) *cache.RateLimitedCache {
	cacheLogger := logger.NewLogger(config, "RateLimitedCache")
	return cache.NewRateLimitedCache(config, upstream, gen, collector, cacheLogger)
}

// -----------------------------------------------------------------------------

// setupServer initializes the analysis facade and the websocket server
func setupServer(
	config *models.MConfig,
	provider interfaces.ISnapshotProvider,
	gen *analysis.FallbackGenerator,
	collector *metrics.Collector,
) *server.FastAPIServer {
	analysisLogger := logger.NewLogger(config, "Analysis")
	facade := analysis.NewAnalysisFacade(config, gen, analysisLogger)

	serverLogger := logger.NewLogger(config, "FastAPIServer")
	return server.NewFastAPIServer(config, provider, facade, collector, serverLogger)
}
