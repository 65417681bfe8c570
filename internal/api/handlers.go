package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"binance-trading-bot/internal/apperr"
	"binance-trading-bot/internal/indicators"
	"binance-trading-bot/internal/store"
)

func (s *Server) handleMarketOverview(c *gin.Context) {
	ctx := c.Request.Context()

	if overview, ok := s.cache.GetOverview(); ok {
		successResponse(c, overview)
		return
	}

	overview, err := s.public.FetchOverview(ctx)
	if err != nil {
		writeError(c, err, "fetching market overview")
		return
	}
	s.cache.SetOverview(ctx, overview)
	successResponse(c, overview)
}

func (s *Server) handleSymbols(c *gin.Context) {
	ctx := c.Request.Context()

	if symbols, ok := s.cache.GetSymbols(); ok {
		successResponse(c, symbols)
		return
	}

	symbols, err := s.public.FetchAltcoins(ctx)
	if err != nil {
		writeError(c, err, "fetching symbol universe")
		return
	}
	s.cache.SetSymbols(ctx, symbols)
	successResponse(c, symbols)
}

type screenRequest struct {
	Timeframe        string  `json:"timeframe"`
	MinVolume        float64 `json:"min_volume"`
	MinPriceChange   float64 `json:"min_price_change"`
	SendNotification bool    `json:"send_notification"`
}

func (s *Server) handleScreen(c *gin.Context) {
	var req screenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = "15m"
	}

	ctx := c.Request.Context()
	candidates, err := s.screener.Run(ctx, req.Timeframe)
	if err != nil {
		writeError(c, err, "running screening pass")
		return
	}

	snapshots := make([]*store.ScreeningSnapshot, len(candidates))
	for i, cand := range candidates {
		snapshots[i] = cand.ToSnapshot(req.Timeframe)
	}
	if err := s.repo.ReplaceSnapshots(ctx, req.Timeframe, snapshots); err != nil {
		s.logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("persisting screening snapshot")
	}

	if req.SendNotification {
		now := time.Now()
		for range candidates {
			decision, err := s.gate.Evaluate(ctx, now)
			if err != nil || !decision.Allowed {
				break
			}
			_ = s.gate.Record(ctx, now)
		}
	}

	successResponse(c, gin.H{"candidates": candidates, "count": len(candidates)})
}

func (s *Server) handleTopOpportunities(c *gin.Context) {
	timeframe := c.DefaultQuery("timeframe", "15m")
	minScore := queryFloat(c, "min_score", 0)
	limit := queryInt(c, "limit", 50)

	snapshots, err := s.repo.GetLatestSnapshots(c.Request.Context(), timeframe, limit)
	if err != nil {
		writeError(c, err, "fetching top opportunities")
		return
	}

	var kept []*store.ScreeningSnapshot
	for _, snap := range snapshots {
		if snap.TotalScore >= minScore {
			kept = append(kept, snap)
		}
	}
	successResponse(c, kept)
}

func (s *Server) handleHistorical(c *gin.Context) {
	symbol := c.Query("symbol")
	timeframe := c.DefaultQuery("timeframe", "15m")
	limit := queryInt(c, "limit", 100)

	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}

	candles, err := s.candles.GetCandles(c.Request.Context(), symbol, timeframe, limit)
	if err != nil {
		writeError(c, err, "fetching candle history")
		return
	}
	successResponse(c, candles)
}

func (s *Server) handleIndicators(c *gin.Context) {
	symbol := c.Query("symbol")
	timeframe := c.DefaultQuery("timeframe", "15m")
	limit := queryInt(c, "limit", 100)

	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}

	candles, err := s.candles.GetCandles(c.Request.Context(), symbol, timeframe, limit)
	if err != nil {
		writeError(c, err, "fetching candles for indicators")
		return
	}
	if len(candles) < 2 {
		errorResponse(c, http.StatusNotFound, "not enough candle history")
		return
	}

	snap := indicators.Compute(candles)
	successResponse(c, snap)
}

func (s *Server) handleHistoryRankings(c *gin.Context) {
	timeframe := c.DefaultQuery("timeframe", "15m")
	limit := queryInt(c, "limit", 50)

	snapshots, err := s.repo.GetLatestSnapshots(c.Request.Context(), timeframe, limit)
	if err != nil {
		writeError(c, err, "fetching ranking history")
		return
	}
	successResponse(c, snapshots)
}

func (s *Server) handleHistorySymbol(c *gin.Context) {
	s.handleHistorical(c)
}

func (s *Server) handleHistoryRecent(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	logs, err := s.repo.ListRecentAutoTradeLogs(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err, "fetching recent activity")
		return
	}
	successResponse(c, logs)
}

type createAccountRequest struct {
	Name               string    `json:"name"`
	Balance            float64   `json:"balance"`
	MaxPositions       int       `json:"max_positions"`
	PositionSizePct    float64   `json:"position_size_pct"`
	StopLossPct        float64   `json:"stop_loss_pct"`
	TakeProfitPcts     []float64 `json:"take_profit_pcts"`
	EntryScoreMin      float64   `json:"entry_score_min"`
	EntryTechMin       float64   `json:"entry_tech_min"`
	CommissionRate     float64   `json:"commission_rate"`
	AutoTradingEnabled bool      `json:"auto_trading_enabled"`
	AutoEntryPolicy    string    `json:"auto_entry_policy"`
}

func (s *Server) handleCreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Balance <= 0 {
		errorResponse(c, http.StatusBadRequest, "name and a positive balance are required")
		return
	}

	account := &store.Account{
		Name: req.Name, Balance: req.Balance, Equity: req.Balance,
		MaxPositions: req.MaxPositions, PositionSizePct: req.PositionSizePct, StopLossPct: req.StopLossPct,
		TakeProfitPcts: req.TakeProfitPcts, EntryScoreMin: req.EntryScoreMin, EntryTechMin: req.EntryTechMin,
		CommissionRate: req.CommissionRate, AutoTradingEnabled: req.AutoTradingEnabled, AutoEntryPolicy: req.AutoEntryPolicy,
	}
	if err := s.repo.CreateAccount(c.Request.Context(), account); err != nil {
		writeError(c, err, "creating account")
		return
	}
	successResponse(c, account)
}

func (s *Server) handleListAccounts(c *gin.Context) {
	accounts, err := s.repo.ListAccounts(c.Request.Context())
	if err != nil {
		writeError(c, err, "listing accounts")
		return
	}
	successResponse(c, accounts)
}

func (s *Server) handleGetAccount(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	account, err := s.repo.GetAccount(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "fetching account")
		return
	}
	successResponse(c, account)
}

func (s *Server) handleDeleteAccount(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.repo.DeleteAccount(c.Request.Context(), id); err != nil {
		writeError(c, err, "deleting account")
		return
	}
	successResponse(c, gin.H{"deleted": id})
}

func (s *Server) handleAccountPositions(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	positions, err := s.repo.GetOpenPositions(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "fetching positions")
		return
	}
	successResponse(c, positions)
}

func (s *Server) handleAccountTrades(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	trades, err := s.repo.GetTradeHistory(c.Request.Context(), id, limit, offset)
	if err != nil {
		writeError(c, err, "fetching trade history")
		return
	}
	successResponse(c, trades)
}

type setAutoTradeRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetAutoTrade(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req setAutoTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.repo.SetAutoTrading(c.Request.Context(), id, req.Enabled); err != nil {
		writeError(c, err, "updating auto-trading flag")
		return
	}
	successResponse(c, gin.H{"account_id": id, "auto_trading_enabled": req.Enabled})
}

// handleCheckExits evaluates every open position in an account against the
// exchange's current price, applying any stop-loss/take-profit leg that
// fires — an on-demand version of the monitor loop's exit enforcement.
func (s *Server) handleCheckExits(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	positions, err := s.repo.GetOpenPositions(ctx, id)
	if err != nil {
		writeError(c, err, "fetching open positions")
		return
	}

	tickers, ok2 := s.cache.GetTickers()
	if !ok2 {
		var err error
		tickers, err = s.public.FetchTickers(ctx)
		if err != nil {
			writeError(c, err, "fetching tickers")
			return
		}
	}

	var results []interface{}
	for _, position := range positions {
		ticker, ok := tickers[position.Symbol]
		if !ok {
			continue
		}
		result, err := s.engine.EvaluateExits(ctx, position, ticker.LastPrice)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{"symbol": position.Symbol, "error": err.Error()}).Error("evaluating exit")
			continue
		}
		if result != nil {
			results = append(results, result)
		}
	}
	successResponse(c, gin.H{"exits_applied": results})
}

func (s *Server) handleAccountLogs(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 50)
	logs, err := s.repo.GetRecentAutoTradeLogs(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err, "fetching auto-trading logs")
		return
	}
	successResponse(c, logs)
}

func (s *Server) handleClosePosition(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	position, err := s.repo.GetPosition(ctx, id)
	if err != nil {
		errorResponse(c, http.StatusNotFound, "position not found")
		return
	}
	if position.IsClosed {
		errorResponse(c, http.StatusBadRequest, "position already closed")
		return
	}

	price, err := s.currentPrice(ctx, position.Symbol)
	if err != nil {
		writeError(c, err, "fetching current price")
		return
	}

	result, err := s.engine.ClosePosition(ctx, position, price)
	if err != nil {
		writeError(c, err, "closing position")
		return
	}
	successResponse(c, result)
}

func (s *Server) currentPrice(ctx context.Context, symbol string) (float64, error) {
	if tickers, ok := s.cache.GetTickers(); ok {
		if t, ok := tickers[symbol]; ok {
			return t.LastPrice, nil
		}
	}
	tickers, err := s.public.FetchTickers(ctx)
	if err != nil {
		return 0, err
	}
	t, ok := tickers[symbol]
	if !ok {
		return 0, apperr.New(apperr.KindNoMarketData, "no ticker for %s", symbol)
	}
	return t.LastPrice, nil
}

func (s *Server) handleGetNotificationSettings(c *gin.Context) {
	settings, err := s.repo.GetNotificationSettings(c.Request.Context())
	if err != nil {
		writeError(c, err, "fetching notification settings")
		return
	}
	successResponse(c, settings)
}

type updateNotificationSettingsRequest struct {
	MinIntervalMinutes int     `json:"min_interval_minutes"`
	DailyLimit         int     `json:"daily_limit"`
	MinScoreThreshold  float64 `json:"min_score_threshold"`
	NotifyTopN         int     `json:"notify_top_n"`
	QuietHourStart     int     `json:"quiet_hour_start"`
	QuietHourEnd       int     `json:"quiet_hour_end"`
	Timezone           string  `json:"timezone"`
}

func (s *Server) handleUpdateNotificationSettings(c *gin.Context) {
	var req updateNotificationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	settings := &store.NotificationSettings{
		MinIntervalMinutes: req.MinIntervalMinutes, DailyLimit: req.DailyLimit,
		MinScoreThreshold: req.MinScoreThreshold, NotifyTopN: req.NotifyTopN,
		QuietHourStart: req.QuietHourStart, QuietHourEnd: req.QuietHourEnd, Timezone: req.Timezone,
	}
	if err := s.repo.UpdateNotificationSettings(c.Request.Context(), settings); err != nil {
		writeError(c, err, "updating notification settings")
		return
	}
	successResponse(c, settings)
}

// writeError maps a typed apperr.Kind to the spec.md §6 status code table
// (400 validation and capacity, 404 missing or stale market data, 500
// everything else).
func writeError(c *gin.Context, err error, context string) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		errorResponse(c, http.StatusInternalServerError, context+": "+err.Error())
		return
	}
	switch kind {
	case apperr.KindValidation:
		errorResponse(c, http.StatusBadRequest, err.Error())
	case apperr.KindCapacity:
		errorResponse(c, http.StatusBadRequest, err.Error())
	case apperr.KindNoMarketData, apperr.KindStaleData:
		errorResponse(c, http.StatusNotFound, err.Error())
	default:
		errorResponse(c, http.StatusInternalServerError, err.Error())
	}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(c *gin.Context, key string, def float64) float64 {
	v := c.Query(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
