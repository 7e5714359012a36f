package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fliq/internal/repository"
	"fliq/internal/service"
)

type UserHandler struct {
	Repo       repository.Repository
	Users      *service.UserService
	Settlement *service.SettlementService
	Logger     *zap.Logger
}

func (h *UserHandler) Register(r *gin.Engine) {
	r.GET("/api/users/:id/history", h.history)
	r.GET("/api/leaderboard", h.leaderboard)
}

type historyResponse struct {
	User    userView           `json:"user"`
	History []historyWagerView `json:"history"`
}

// history settles the user's wagers on already-resolved markets first,
// so the returned balance never lags a decided market, then lists the
// recent wagers with their market summaries.
func (h *UserHandler) history(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	ctx := c.Request.Context()

	if h.Settlement != nil {
		if _, err := h.Settlement.SettleUserPending(ctx, id); err != nil && h.Logger != nil {
			h.Logger.Warn("pending settlement on history read failed",
				zap.String("user_id", id),
				zap.Error(err),
			)
		}
	}

	user, err := h.Repo.GetUserByID(ctx, id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if user == nil {
		Error(c, http.StatusNotFound, "user not found", nil)
		return
	}

	limit := intQuery(c, "limit", 50)
	wagers, err := h.Repo.ListWagersByUser(ctx, id, limit)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	marketIDs := make([]string, 0, len(wagers))
	seen := map[string]struct{}{}
	for _, w := range wagers {
		if _, ok := seen[w.MarketID]; ok {
			continue
		}
		seen[w.MarketID] = struct{}{}
		marketIDs = append(marketIDs, w.MarketID)
	}
	markets, err := h.Repo.ListMarketsByIDs(ctx, marketIDs)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	summaries := make(map[string]*marketSummary, len(markets))
	for _, m := range markets {
		summaries[m.ID] = &marketSummary{
			Title:    m.Title,
			Symbol:   m.Symbol,
			Resolved: m.Resolved,
			Outcome:  m.Outcome,
		}
	}

	history := make([]historyWagerView, 0, len(wagers))
	for _, w := range wagers {
		history = append(history, historyWagerView{
			wagerView: newWagerView(w),
			Market:    summaries[w.MarketID],
		})
	}

	Ok(c, historyResponse{User: newUserView(user), History: history}, nil)
}

type leaderboardEntry struct {
	Rank int `json:"rank"`
	userView
}

func (h *UserHandler) leaderboard(c *gin.Context) {
	if h.Users == nil {
		Error(c, http.StatusServiceUnavailable, "user service unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	users, err := h.Users.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	entries := make([]leaderboardEntry, 0, len(users))
	for i := range users {
		entries = append(entries, leaderboardEntry{
			Rank:     i + 1,
			userView: newUserView(&users[i]),
		})
	}
	Ok(c, entries, map[string]any{"total": len(entries)})
}
