package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"market-pulse/src/analysis"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/metrics"
	"market-pulse/src/models"
)

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

type FastAPIServer struct {
	Config   *models.MConfig
	Logger   *logger.Logger
	Cache    interfaces.ISnapshotProvider
	Analysis *analysis.AnalysisFacade
	Metrics  *metrics.Collector

	engine     *gin.Engine
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener

	// Sessions, owned by the hub loop
	sessions   map[*Session]struct{}
	register   chan *Session
	unregister chan *Session
	hubDone    chan struct{}
	active     atomic.Int64

	cancelWorkers context.CancelFunc
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(
	cfg *models.MConfig,
	cache interfaces.ISnapshotProvider,
	facade *analysis.AnalysisFacade,
	collector *metrics.Collector,
	log *logger.Logger,
) *FastAPIServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.NewLogger(cfg, "FastAPIServer")
	}
	if facade == nil {
		facade = analysis.NewAnalysisFacade(cfg, nil, log)
	}

	s := &FastAPIServer{
		Config:     cfg,
		Logger:     log,
		Cache:      cache,
		Analysis:   facade,
		Metrics:    collector,
		engine:     gin.Default(),
		sessions:   make(map[*Session]struct{}),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		hubDone:    make(chan struct{}),
	}
	s.upgrader = s.newUpgrader()

	s.engine.Use(corsMiddleware(cfg.AllowedOrigins))
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	s.engine.GET("/api/metrics", s.getMetrics)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------

// Handler exposes the router, mainly for tests.
func (s *FastAPIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start binds the listener synchronously so bind errors reach the caller, then
// serves in the background.
func (s *FastAPIServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.startWorkers(ctx)

	s.Logger.Info("Starting server on %s", ln.Addr())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("HTTP server stopped: %v", err)
		}
	}()
	return nil
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) startWorkers(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelWorkers = cancel

	s.wg.Add(2)
	go s.runHub(workerCtx)
	go s.runRefresher(workerCtx)
}

// -----------------------------------------------------------------------------

// Addr returns the bound address once started.
func (s *FastAPIServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// -----------------------------------------------------------------------------

// Stop closes all sessions, then shuts the HTTP server down.
func (s *FastAPIServer) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if s.cancelWorkers != nil {
			s.cancelWorkers()
		}
		s.wg.Wait()

		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
		s.Logger.Info("Server stopped")
	})
	return err
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) ActiveSessions() int {
	return int(s.active.Load())
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) sessionOptions() SessionOptions {
	return SessionOptions{
		Interval:    s.Config.Feed.FetchInterval.Duration(),
		MinInterval: s.Config.Feed.MinClientInterval.Duration(),
		MaxInterval: s.Config.Feed.MaxClientInterval.Duration(),
		BufferSize:  s.Config.Feed.SendBufferSize,
	}
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Cache.Status())
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getConfig(c *gin.Context) {
	opts := s.sessionOptions().withDefaults()
	c.JSON(http.StatusOK, gin.H{
		"fetchIntervalMs":     opts.Interval.Milliseconds(),
		"minApiIntervalMs":    s.Config.Feed.MinAPIInterval.Milliseconds(),
		"maxChartPoints":      s.Config.Feed.MaxChartPoints,
		"assetCount":          s.Config.Upstream.AssetCount,
		"minClientIntervalMs": opts.MinInterval.Milliseconds(),
		"maxClientIntervalMs": opts.MaxInterval.Milliseconds(),
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	status := s.Cache.Status()

	var latest int64
	if status.LastFetchSuccessAt != nil {
		latest = status.LastFetchSuccessAt.UnixMilli()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   s.ActiveSessions(),
		"latest_update": latest,
		"generation":    status.Generation,
		"has_snapshot":  status.HasSnapshot,
	})
}
