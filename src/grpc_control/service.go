package grpc_control

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
)

// FeedServiceName is the health service name reporting upstream freshness.
// The empty service name reports process liveness.
const FeedServiceName = "marketpulse.Feed"

// ControlService exposes the standard gRPC health protocol. The feed service
// is SERVING while the cache has fetched successfully within staleAfter.
type ControlService struct {
	Health     *health.Server
	Cache      interfaces.ISnapshotProvider
	Logger     *logger.Logger
	staleAfter time.Duration
	now        func() time.Time
	serving    bool
}

// NewControlService creates a new instance of ControlService
func NewControlService(cache interfaces.ISnapshotProvider, staleAfter time.Duration, log *logger.Logger) *ControlService {
	if log == nil {
		log = logger.NewLogger(nil, "ControlService")
	}

	s := &ControlService{
		Health:     health.NewServer(),
		Cache:      cache,
		Logger:     log,
		staleAfter: staleAfter,
		now:        time.Now,
	}
	s.Health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.Health.SetServingStatus(FeedServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// -----------------------------------------------------------------------------

func (s *ControlService) Register(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, s.Health)
}

// -----------------------------------------------------------------------------

// UpdateStatus recomputes the feed status from the cache.
func (s *ControlService) UpdateStatus() healthpb.HealthCheckResponse_ServingStatus {
	status := s.Cache.Status()

	fresh := status.LastFetchSuccessAt != nil && s.now().Sub(*status.LastFetchSuccessAt) <= s.staleAfter
	next := healthpb.HealthCheckResponse_NOT_SERVING
	if fresh {
		next = healthpb.HealthCheckResponse_SERVING
	}

	if fresh != s.serving {
		s.Logger.Info("Feed health changed to %s", next)
		s.serving = fresh
	}
	s.Health.SetServingStatus(FeedServiceName, next)
	return next
}

// -----------------------------------------------------------------------------

// Run refreshes the status every interval until ctx is done, then marks every
// service NOT_SERVING.
func (s *ControlService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.UpdateStatus()
	for {
		select {
		case <-ctx.Done():
			s.Health.Shutdown()
			return
		case <-ticker.C:
			s.UpdateStatus()
		}
	}
}
