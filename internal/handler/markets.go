package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fliq/internal/repository"
	"fliq/internal/service"
)

// MarketHandler serves the open-market feed. The feed read doubles as a
// liveness tick for the engines: expired markets are resolved and supply
// is topped up before listing, so the deck stays fresh even when cron is
// disabled. Engine failures are logged and the list is served anyway.
type MarketHandler struct {
	Repo       repository.Repository
	Resolution *service.ResolutionService
	Supply     *service.SupplyService
	Logger     *zap.Logger
}

func (h *MarketHandler) Register(r *gin.Engine) {
	r.GET("/api/markets", h.list)
}

func (h *MarketHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ctx := c.Request.Context()

	if h.Resolution != nil {
		if _, err := h.Resolution.ResolveExpired(ctx); err != nil && h.Logger != nil {
			h.Logger.Warn("resolution on market read failed", zap.Error(err))
		}
	}
	if h.Supply != nil {
		if _, err := h.Supply.EnsureSupply(ctx); err != nil && h.Logger != nil {
			h.Logger.Warn("supply on market read failed", zap.Error(err))
		}
	}

	now := time.Now().UTC()
	markets, err := h.Repo.ListOpenMarkets(ctx, now, 0)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].EndTime.Before(markets[j].EndTime)
	})

	views := make([]marketView, 0, len(markets))
	for _, m := range markets {
		views = append(views, newMarketView(m, now))
	}
	Ok(c, views, map[string]any{"total": len(views)})
}
