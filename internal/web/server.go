package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuujiKamura/tonsuu-checker/internal/camera"
	"github.com/YuujiKamura/tonsuu-checker/internal/config"
	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
	"github.com/YuujiKamura/tonsuu-checker/internal/pipeline"
	"github.com/YuujiKamura/tonsuu-checker/internal/service"
	"github.com/YuujiKamura/tonsuu-checker/internal/store"
)

// Server exposes the estimation flow over HTTP: submit photos, read the
// estimate history, browse graded reference samples.
type Server struct {
	*service.ServiceBase
	config     *config.WebConfig
	logger     *logger.Logger
	httpServer *http.Server
	router     *gin.Engine
	analyzer   *pipeline.Analyzer
	store      *store.Store
	feed       *camera.FeedMonitor // nil when no camera is configured
	version    string
	startTime  time.Time
}

// NewServer creates a new web server service
func NewServer(cfg *config.WebConfig, log *logger.Logger) *Server {
	// Debug mode can be enabled via GIN_MODE environment variable
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	return &Server{
		ServiceBase: service.NewServiceBase("web-server", log),
		config:      cfg,
		logger:      log,
		router:      router,
		version:     "dev",
		startTime:   time.Now(),
	}
}

// SetVersion sets the application version
func (s *Server) SetVersion(version string) {
	s.version = version
}

// SetDependencies wires the analyzer, store and optional feed monitor.
func (s *Server) SetDependencies(analyzer *pipeline.Analyzer, st *store.Store, feed *camera.FeedMonitor) {
	s.analyzer = analyzer
	s.store = st
	s.feed = feed
}

// Start starts the web server
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.LogInfo("Web server is disabled")
		return nil
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// An estimate request holds the connection for the whole
		// ensemble run, which can take minutes on a slow provider.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.LogInfo("Starting web server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.LogError("Web server error", err, "address", addr)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		s.LogInfo("Web server started", "address", addr)
		return nil
	}
}

// Stop stops the web server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.LogInfo("Stopping web server")
	return s.httpServer.Shutdown(ctx)
}

// Name returns the service name
func (s *Server) Name() string {
	return "web-server"
}

// setupRoutes sets up all API routes
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)

		estimates := api.Group("/estimates")
		{
			estimates.POST("", s.handleCreateEstimate)
			estimates.GET("/:id", s.handleGetEstimate)
			estimates.GET("/:id/snapshot", s.handleGetSnapshot)
		}

		api.GET("/subjects/:id/estimates", s.handleListSubjectEstimates)
		api.GET("/references", s.handleListReferences)
	}
}

// ginLogger creates a Gin middleware for logging
func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware creates a CORS middleware for local network access
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
