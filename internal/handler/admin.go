package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fliq/internal/service"
)

// AdminHandler exposes the manual triggers. Both routes are plain
// re-entries into the idempotent engines, so firing them while cron is
// mid-sweep is harmless.
type AdminHandler struct {
	Resolution *service.ResolutionService
	Supply     *service.SupplyService
	Logger     *zap.Logger
}

func (h *AdminHandler) Register(r *gin.Engine) {
	r.POST("/api/resolution/run", h.runResolution)
	r.POST("/api/admin/resolve-all", h.resolveAll)
	// GET kept for manual poking from a browser.
	r.GET("/api/admin/resolve-all", h.resolveAll)
	r.POST("/api/admin/rotate", h.rotate)
}

func (h *AdminHandler) runResolution(c *gin.Context) {
	if h.Resolution == nil {
		Error(c, http.StatusServiceUnavailable, "resolution unavailable", nil)
		return
	}
	n, err := h.Resolution.ResolveExpired(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"resolvedCount": n}, nil)
}

func (h *AdminHandler) resolveAll(c *gin.Context) {
	if h.Resolution == nil {
		Error(c, http.StatusServiceUnavailable, "resolution unavailable", nil)
		return
	}
	report, err := h.Resolution.ResolveAll(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, report, nil)
}

// rotate runs one resolution pass followed by a supply top-up, the same
// sequence the rotation cron performs.
func (h *AdminHandler) rotate(c *gin.Context) {
	if h.Resolution == nil || h.Supply == nil {
		Error(c, http.StatusServiceUnavailable, "rotation unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	resolved, err := h.Resolution.ResolveExpired(ctx)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	created, err := h.Supply.EnsureSupply(ctx)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"resolvedCount": resolved, "createdCount": created}, nil)
}
