package main

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"market-pulse/src/config"
	"market-pulse/src/grpc_control"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
)

// -----------------------------------------------------------------------------

// startServers starts the websocket server, and the gRPC health server when a
// port is configured. Failing to bind the main listener is fatal; the health
// server is optional.
func startServers(
	ctx context.Context,
	srv interfaces.IDataExchanger,
	provider interfaces.ISnapshotProvider,
	conf *config.Config,
	appLogger *logger.Logger,
) (*grpc.Server, error) {

	// 1. FastAPIServer
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}

	// 2. gRPC health server
	if conf.GrpcPort == 0 {
		return nil, nil
	}

	addr := fmt.Sprintf("%s:%d", conf.GrpcHost, conf.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		appLogger.Error("failed to listen for gRPC on %s: %v", addr, err)
		return nil, nil
	}

	grpcServer := grpc.NewServer()
	grpcLogger := logger.NewLogger(conf, "ControlService")
	staleAfter := 5 * conf.Feed.MinAPIInterval.Duration()
	controlService := grpc_control.NewControlService(provider, staleAfter, grpcLogger)
	controlService.Register(grpcServer)

	go controlService.Run(ctx, conf.Feed.MinAPIInterval.Duration())
	go func() {
		appLogger.Info("Starting gRPC health server on %s", addr)
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Error("gRPC server stopped: %v", err)
		}
	}()
	return grpcServer, nil
}
