package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fliq/internal/repository"
	"fliq/internal/service"
)

type placeWagerRequest struct {
	MarketID string          `json:"marketId" binding:"required"`
	Side     string          `json:"side" binding:"required"`
	Stake    decimal.Decimal `json:"stake"`
}

type placeWagerResponse struct {
	Wager      wagerView       `json:"wager"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

type WagerHandler struct {
	Users  *service.UserService
	Wagers *service.WagerService
	Logger *zap.Logger
}

func (h *WagerHandler) Register(r *gin.Engine) {
	r.POST("/api/wagers", h.place)
}

func (h *WagerHandler) place(c *gin.Context) {
	if h.Users == nil || h.Wagers == nil {
		Error(c, http.StatusServiceUnavailable, "wager service unavailable", nil)
		return
	}

	wallet := callerWallet(c)
	if wallet == "" {
		Error(c, http.StatusUnauthorized, "missing caller identity", nil)
		return
	}

	var req placeWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.MarketID) == "" {
		Error(c, http.StatusBadRequest, "marketId required", nil)
		return
	}

	ctx := c.Request.Context()
	user, err := h.Users.EnsureUser(ctx, wallet)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	placed, err := h.Wagers.PlaceWager(ctx, user.ID, req.MarketID, req.Side, req.Stake)
	if err != nil {
		status, msg := wagerErrorStatus(err)
		Error(c, status, msg, nil)
		return
	}

	Ok(c, placeWagerResponse{
		Wager:      newWagerView(*placed.Wager),
		NewBalance: placed.NewBalance,
	}, nil)
}

func wagerErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidSide):
		return http.StatusBadRequest, "side must be YES or NO"
	case errors.Is(err, service.ErrInvalidStake):
		return http.StatusBadRequest, "stake out of range"
	case errors.Is(err, repository.ErrInsufficientBalance):
		return http.StatusBadRequest, "insufficient balance"
	case errors.Is(err, repository.ErrMarketUnavailable):
		return http.StatusBadRequest, "market not available"
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	default:
		return http.StatusBadGateway, err.Error()
	}
}
