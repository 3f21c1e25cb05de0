package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"brokle/internal/config"
	obsHandlers "brokle/internal/transport/http/handlers/observability"
	"brokle/pkg/response"
)

// Server represents the HTTP server for OTLP telemetry ingestion.
type Server struct {
	config      *config.Config
	logger      *slog.Logger
	server      *http.Server
	engine      *gin.Engine
	otlpHandler *obsHandlers.OTLPHandler
}

// NewServer creates a new HTTP server instance.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	otlpHandler *obsHandlers.OTLPHandler,
) *Server {
	return &Server{
		config:      cfg,
		logger:      logger,
		otlpHandler: otlpHandler,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	if s.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestLogger())

	if s.config.Server.EnableCORS {
		corsConfig := cors.DefaultConfig()
		if len(s.config.Server.CORSAllowedOrigins) == 1 && s.config.Server.CORSAllowedOrigins[0] == "*" {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = s.config.Server.CORSAllowedOrigins
		}
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-Tenant-ID")
		s.engine.Use(cors.New(corsConfig))
	}

	if len(s.config.Server.TrustedProxies) > 0 {
		if err := s.engine.SetTrustedProxies(s.config.Server.TrustedProxies); err != nil {
			return err
		}
	}

	s.engine.GET("/health", func(c *gin.Context) {
		response.Success(c, map[string]interface{}{"status": "ok"})
	})

	v1 := s.engine.Group("/v1")
	v1.POST("/traces", s.otlpHandler.HandleTraces)

	s.server = &http.Server{
		Addr:         s.config.GetServerAddress(),
		Handler:      s.engine,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.Info("http server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
