package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Fliq Wager Service

Pari-mutuel wagers on short-horizon crypto price questions, paid out in
virtual $FLIQ tokens.

## Auth

All /api/* routes require a Bearer token (validated by the gateway).
The gateway forwards the caller's wallet in the X-Fliq-User header.
Health endpoints are public.

## Routes

- GET /healthz
- GET /readyz
- GET /api/markets
- POST /api/wagers
- GET /api/users/:id/history
- GET /api/leaderboard
- GET /api/prices/:symbol
- POST /api/resolution/run
- POST /api/admin/resolve-all
- POST /api/admin/rotate

## Odds

Each side pays 2 minus its share of the market's wager pool, frozen at
placement time. End price above start resolves YES, below resolves NO,
exactly equal is a PUSH (stake refunded).
`)
	})
}
