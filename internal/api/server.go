package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/eolink-project/eolink/internal/config"
	"github.com/eolink-project/eolink/internal/events"
	"github.com/eolink-project/eolink/internal/inspect"
	"github.com/eolink-project/eolink/internal/util"
)

// Server is the inspector REST API.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus
	bench    *inspect.Workbench

	// HTTP server
	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, eventBus *events.EventBus, bench *inspect.Workbench) *Server {
	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:      cfg,
		eventBus: eventBus,
		bench:    bench,
	}
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	app := s.cfg.GetApplicationData()
	s.router = s.buildRouter()

	addr := net.JoinHostPort(app.API.Host, strconv.Itoa(app.API.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sec := app.Security
	if sec.TLSEnabled {
		if err := util.EnsureCertificate(sec.TLSCertFile, sec.TLSKeyFile, []string{app.API.Host, "localhost"}); err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		cert, err := tls.LoadX509KeyPair(sec.TLSCertFile, sec.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
			CipherSuites: []uint16{
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			},
		}
	}

	// SO_REUSEADDR for immediate rebinding after restart
	lc := reuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Bool("tls", sec.TLSEnabled).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if sec.TLSEnabled {
		err = s.httpServer.Serve(tls.NewListener(ln, s.httpServer.TLSConfig))
	} else {
		err = s.httpServer.Serve(ln)
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// Router returns the configured handler, building it on first use.
func (s *Server) Router() http.Handler {
	if s.router == nil {
		s.router = s.buildRouter()
	}
	return s.router
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	sec := s.cfg.GetApplicationData().Security
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := sec.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := NewRateLimiter(sec.RateLimitRPS)
	router.Use(rateLimiter.Middleware())

	// ---- Public endpoints (no token required) ----
	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/info", s.handleInfo)
	}

	protected := router.Group("/api")
	protected.Use(RequireToken(sec.APIToken))

	codec := protected.Group("/codec")
	{
		codec.POST("/number/encode", s.handleNumberEncode)
		codec.POST("/number/decode", s.handleNumberDecode)
		codec.POST("/string/encode", s.handleStringEncode)
		codec.POST("/string/decode", s.handleStringDecode)
		codec.POST("/packet/encrypt", s.handlePacketEncrypt)
		codec.POST("/packet/decrypt", s.handlePacketDecrypt)
		codec.POST("/sequence", s.handleSequence)
		codec.POST("/hash", s.handleHash)
	}

	captures := protected.Group("/captures")
	{
		captures.GET("", s.handleListCaptures)
		captures.POST("", s.handleCreateCapture)
		captures.GET("/:id", s.handleGetCapture)
		captures.DELETE("/:id", s.handleDeleteCapture)
		captures.GET("/:id/packets", s.handleListPackets)
		captures.POST("/:id/packets", s.handleImportPackets)
	}

	monitor := protected.Group("/monitor")
	{
		monitor.GET("/stats", s.handleStats)
		monitor.GET("/logs", s.handleGetLogEntries)
	}

	configure := protected.Group("/config")
	{
		configure.GET("", s.handleGetConfig)
		configure.POST("/codec", s.handleSetCodec)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "eolink inspector API is running"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
