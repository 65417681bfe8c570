// Package api is the thin HTTP adapter over the core: market overview,
// screening, historical data, and paper-trading account control (spec.md
// §6). Grounded on the teacher's internal/api/server.go gin+cors wiring
// and its successResponse/errorResponse helpers, trimmed to a
// single-operator surface with no auth/billing/license middleware (see
// DESIGN.md).
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/logging"
	"binance-trading-bot/internal/marketcache"
	"binance-trading-bot/internal/notifygate"
	"binance-trading-bot/internal/paper"
	"binance-trading-bot/internal/screener"
	"binance-trading-bot/internal/store"
	"binance-trading-bot/internal/tsdb"
)

// Config configures the HTTP server's listen address.
type Config struct {
	Host           string
	Port           int
	ProductionMode bool
}

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        Config

	public   *exchange.PublicClient
	candles  *tsdb.Store
	repo     *store.Repository
	screener *screener.Screener
	engine   *paper.Engine
	gate     *notifygate.Gate
	cache    *marketcache.Cache
	logger   *logging.Logger
}

// NewServer builds a Server and registers every route.
func NewServer(
	cfg Config,
	public *exchange.PublicClient,
	candles *tsdb.Store,
	repo *store.Repository,
	scr *screener.Screener,
	engine *paper.Engine,
	gate *notifygate.Gate,
	cache *marketcache.Cache,
	logger *logging.Logger,
) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router: router, cfg: cfg,
		public: public, candles: candles, repo: repo, screener: scr, engine: engine, gate: gate, cache: cache, logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/market-overview", s.handleMarketOverview)
	s.router.GET("/symbols", s.handleSymbols)
	s.router.POST("/screen", s.handleScreen)
	s.router.GET("/top-opportunities", s.handleTopOpportunities)
	s.router.GET("/historical", s.handleHistorical)
	s.router.GET("/indicators", s.handleIndicators)

	history := s.router.Group("/history")
	{
		history.GET("/rankings", s.handleHistoryRankings)
		history.GET("/symbol", s.handleHistorySymbol)
		history.GET("/recent", s.handleHistoryRecent)
	}

	sim := s.router.Group("/sim-trading")
	{
		sim.POST("/accounts", s.handleCreateAccount)
		sim.GET("/accounts", s.handleListAccounts)
		sim.GET("/accounts/:id", s.handleGetAccount)
		sim.DELETE("/accounts/:id", s.handleDeleteAccount)
		sim.GET("/accounts/:id/positions", s.handleAccountPositions)
		sim.GET("/accounts/:id/trades", s.handleAccountTrades)
		sim.POST("/accounts/:id/auto-trade", s.handleSetAutoTrade)
		sim.POST("/accounts/:id/check-exits", s.handleCheckExits)
		sim.GET("/accounts/:id/logs", s.handleAccountLogs)
		sim.DELETE("/positions/:id", s.handleClosePosition)
	}

	notif := s.router.Group("/notification-settings")
	{
		notif.GET("", s.handleGetNotificationSettings)
		notif.PATCH("", s.handleUpdateNotificationSettings)
	}
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.WithFields(map[string]interface{}{"addr": addr}).Info("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// successResponse writes the spec.md §6 `{success, ...}` shape.
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// errorResponse writes the spec.md §6 `{detail}` error shape.
func errorResponse(c *gin.Context, status int, detail string) {
	c.JSON(status, gin.H{"detail": detail})
}
