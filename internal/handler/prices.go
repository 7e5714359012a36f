package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fliq/internal/assets"
	"fliq/internal/service"
)

// PriceHandler is a thin passthrough quote for the frontend ticker. It
// rides the oracle client's cache, so hammering it does not hammer
// CoinGecko.
type PriceHandler struct {
	Oracle service.PriceOracle
}

func (h *PriceHandler) Register(r *gin.Engine) {
	r.GET("/api/prices/:symbol", h.get)
}

func (h *PriceHandler) get(c *gin.Context) {
	if h.Oracle == nil {
		Error(c, http.StatusServiceUnavailable, "oracle unavailable", nil)
		return
	}
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		Error(c, http.StatusBadRequest, "invalid symbol", nil)
		return
	}

	price, err := h.Oracle.GetPrice(c.Request.Context(), assets.CoinGeckoID(symbol))
	if err != nil {
		Error(c, http.StatusBadGateway, "failed to fetch price", nil)
		return
	}
	Ok(c, gin.H{
		"symbol":    symbol,
		"price":     price,
		"timestamp": time.Now().UTC().UnixMilli(),
	}, nil)
}
