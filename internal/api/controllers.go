package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"autotrader/internal/state"
	"autotrader/internal/strategy"
	"autotrader/pkg/crypto"
	"autotrader/pkg/db"
)

// SettingBrokerCredentials is the settings key holding the sealed API pair.
const SettingBrokerCredentials = "broker.credentials"

type strategyRequest struct {
	Name                 string         `json:"name" binding:"required,min=1,max=120"`
	Symbol               string         `json:"symbol" binding:"required,min=1"`
	Family               string         `json:"family" binding:"required,min=1"`
	Timeframe            string         `json:"timeframe" binding:"required,min=1"`
	Params               map[string]any `json:"params"`
	Qty                  float64        `json:"qty"`
	Notional             float64        `json:"notional"`
	DryRun               bool           `json:"dry_run"`
	Enabled              *bool          `json:"enabled"`
	MaxTradesPerDay      int            `json:"max_trades_per_day"`
	MaxLossPerDay        float64        `json:"max_loss_per_day"`
	MaxConsecutiveLosses int            `json:"max_consecutive_losses"`
}

// toConfig maps the request onto the same config type the YAML bootstrap
// uses, so API-created strategies pass identical validation.
func (r strategyRequest) toConfig() strategy.Config {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return strategy.Config{
		Name:                 r.Name,
		Symbol:               strings.ToUpper(strings.TrimSpace(r.Symbol)),
		Family:               r.Family,
		Timeframe:            r.Timeframe,
		Params:               r.Params,
		Qty:                  r.Qty,
		Notional:             r.Notional,
		DryRun:               r.DryRun,
		Enabled:              enabled,
		MaxTradesPerDay:      r.MaxTradesPerDay,
		MaxLossPerDay:        r.MaxLossPerDay,
		MaxConsecutiveLosses: r.MaxConsecutiveLosses,
	}
}

type credentialsRequest struct {
	APIKey    string `json:"api_key" binding:"required,min=1"`
	APISecret string `json:"api_secret" binding:"required,min=1"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// limitQuery parses ?limit= with a default and a cap.
func limitQuery(c *gin.Context, def, max int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// strategyView renders a strategy row plus its execution state, if any.
func (s *Server) strategyView(c *gin.Context, row db.Strategy) gin.H {
	var params map[string]any
	_ = json.Unmarshal([]byte(row.Params), &params)

	view := gin.H{
		"id":                     row.ID,
		"name":                   row.Name,
		"symbol":                 row.Symbol,
		"family":                 row.Family,
		"timeframe":              row.Timeframe,
		"params":                 params,
		"qty":                    row.Qty,
		"notional":               row.Notional,
		"dry_run":                row.DryRun,
		"enabled":                row.Enabled,
		"max_trades_per_day":     row.MaxTradesPerDay,
		"max_loss_per_day":       row.MaxLossPerDay,
		"max_consecutive_losses": row.MaxConsecutiveLosses,
		"created_at":             row.CreatedAt,
		"updated_at":             row.UpdatedAt,
	}
	if st, err := s.Engine.StrategyStatus(c.Request.Context(), row.ID); err == nil {
		view["state"] = st.State
	}
	return view
}

// createStrategy registers a new strategy definition. The execution is
// created lazily on first start.
func (s *Server) createStrategy(c *gin.Context) {
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}

	row, err := req.toConfig().ToStrategy()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_STRATEGY", err.Error())
		return
	}

	ctx := c.Request.Context()
	existing, err := s.DB.GetStrategyByName(ctx, row.Name)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	if existing != nil {
		respondError(c, http.StatusConflict, "NAME_TAKEN", "a strategy with that name already exists")
		return
	}

	row.ID = uuid.NewString()
	if err := s.DB.CreateStrategy(ctx, row); err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	created, err := s.DB.GetStrategy(ctx, row.ID)
	if err != nil || created == nil {
		c.JSON(http.StatusCreated, s.strategyView(c, row))
		return
	}
	c.JSON(http.StatusCreated, s.strategyView(c, *created))
}

// listStrategies returns every strategy definition with its execution state.
func (s *Server) listStrategies(c *gin.Context) {
	rows, err := s.DB.ListStrategies(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	views := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		views = append(views, s.strategyView(c, row))
	}
	c.JSON(http.StatusOK, views)
}

// getStrategy returns one strategy definition.
func (s *Server) getStrategy(c *gin.Context) {
	row, err := s.DB.GetStrategy(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	if row == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "strategy not found")
		return
	}
	c.JSON(http.StatusOK, s.strategyView(c, *row))
}

// updateStrategy replaces a strategy definition. Symbol, family, timeframe
// and params take effect on the next evaluation cycle; risk limits are
// copied into the execution on the next start.
func (s *Server) updateStrategy(c *gin.Context) {
	ctx := c.Request.Context()
	existing, err := s.DB.GetStrategy(ctx, c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	if existing == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "strategy not found")
		return
	}

	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}

	row, err := req.toConfig().ToStrategy()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_STRATEGY", err.Error())
		return
	}
	if other, err := s.DB.GetStrategyByName(ctx, row.Name); err == nil && other != nil && other.ID != existing.ID {
		respondError(c, http.StatusConflict, "NAME_TAKEN", "a strategy with that name already exists")
		return
	}

	row.ID = existing.ID
	if err := s.DB.UpdateStrategy(ctx, row); err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	updated, err := s.DB.GetStrategy(ctx, row.ID)
	if err != nil || updated == nil {
		c.JSON(http.StatusOK, s.strategyView(c, row))
		return
	}
	c.JSON(http.StatusOK, s.strategyView(c, *updated))
}

// deleteStrategy removes a stopped strategy and its execution.
func (s *Server) deleteStrategy(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	row, err := s.DB.GetStrategy(ctx, id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	if row == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "strategy not found")
		return
	}

	if err := s.Engine.DeleteStrategy(ctx, id); err != nil {
		respondError(c, http.StatusConflict, "INVALID_STATE", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// --- Lifecycle actions ---

func (s *Server) startStrategy(c *gin.Context)  { s.lifecycle(c, s.Engine.StartStrategy) }
func (s *Server) pauseStrategy(c *gin.Context)  { s.lifecycle(c, s.Engine.PauseStrategy) }
func (s *Server) resumeStrategy(c *gin.Context) { s.lifecycle(c, s.Engine.ResumeStrategy) }
func (s *Server) stopStrategy(c *gin.Context)   { s.lifecycle(c, s.Engine.StopStrategy) }
func (s *Server) resetStrategy(c *gin.Context)  { s.lifecycle(c, s.Engine.ResetStrategy) }

func (s *Server) lifecycle(c *gin.Context, action func(ctx context.Context, id string) error) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if err := action(ctx, id); err != nil {
		if isNotFound(err) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusConflict, "INVALID_STATE", err.Error())
		return
	}

	resp := gin.H{"strategy_id": id}
	if st, err := s.Engine.StrategyStatus(ctx, id); err == nil {
		resp["state"] = st.State
	}
	c.JSON(http.StatusOK, resp)
}

func isNotFound(err error) bool {
	return errors.Is(err, state.ErrNotFound) || strings.Contains(err.Error(), "not found")
}

// executeStrategy runs one on-demand evaluation cycle.
func (s *Server) executeStrategy(c *gin.Context) {
	res, err := s.Engine.ExecuteOnce(c.Request.Context(), c.Param("id"))
	if err != nil {
		if isNotFound(err) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusConflict, "INVALID_STATE", err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}

// getStrategyStatus returns the execution view for one strategy.
func (s *Server) getStrategyStatus(c *gin.Context) {
	st, err := s.Engine.StrategyStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "no execution for strategy")
		return
	}
	c.JSON(http.StatusOK, st)
}

// getStrategySignals returns recent signal history, newest first.
func (s *Server) getStrategySignals(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	limit := limitQuery(c, 50, 200)

	if row, err := s.DB.GetStrategy(ctx, id); err != nil || row == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "strategy not found")
		return
	}

	signals, err := s.DB.ListSignalsByStrategy(ctx, id, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	views := make([]gin.H, 0, len(signals))
	for _, sig := range signals {
		var snapshot map[string]float64
		_ = json.Unmarshal([]byte(sig.IndicatorSnapshot), &snapshot)
		views = append(views, gin.H{
			"id":                 sig.ID,
			"signal_type":        sig.SignalType,
			"symbol":             sig.Symbol,
			"strength":           sig.Strength,
			"price_at_signal":    sig.PriceAtSignal,
			"indicator_snapshot": snapshot,
			"reasoning":          sig.Reasoning,
			"was_executed":       sig.WasExecuted,
			"rejection_reason":   sig.RejectionReason,
			"execution_error":    sig.ExecutionError,
			"created_at":         sig.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, views)
}

// getStrategyTrades returns recent fills, newest first.
func (s *Server) getStrategyTrades(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	limit := limitQuery(c, 50, 200)

	if row, err := s.DB.GetStrategy(ctx, id); err != nil || row == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "strategy not found")
		return
	}

	trades, err := s.DB.ListTradesByStrategy(ctx, id, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	views := make([]gin.H, 0, len(trades))
	for _, tr := range trades {
		views = append(views, gin.H{
			"id":          tr.ID,
			"order_id":    tr.OrderID,
			"symbol":      tr.Symbol,
			"side":        tr.Side,
			"qty":         tr.Qty,
			"price":       tr.Price,
			"notional":    tr.Notional,
			"pnl":         tr.PnL,
			"executed_at": tr.ExecutedAt,
		})
	}
	c.JSON(http.StatusOK, views)
}

// putBrokerCredentials stores an encrypted broker API key pair in settings.
// A restart is required for the broker client to pick the new pair up.
func (s *Server) putBrokerCredentials(c *gin.Context) {
	if s.Keys == nil {
		respondError(c, http.StatusServiceUnavailable, "ENCRYPTION_UNAVAILABLE", "master key not configured")
		return
	}

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "api_key and api_secret are required")
		return
	}

	sealed, err := s.Keys.SealCredentials(crypto.Credentials{
		APIKey:    req.APIKey,
		APISecret: req.APISecret,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ENCRYPTION_FAILED", err.Error())
		return
	}

	if err := s.DB.PutSetting(c.Request.Context(), SettingBrokerCredentials, sealed); err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	log.Printf("🔐 broker credentials updated by user %s, sealed with key v%d", CurrentUserID(c), s.Keys.CurrentVersion())

	c.JSON(http.StatusOK, gin.H{
		"stored":      true,
		"key_version": s.Keys.CurrentVersion(),
	})
}

// getSystemStatus returns the whole-engine runtime view.
func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.SystemStatus(c.Request.Context()))
}
