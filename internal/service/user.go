package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fliq/internal/config"
	"fliq/internal/models"
	"fliq/internal/repository"
)

// UserService provisions accounts for gateway-authenticated wallets and
// serves the leaderboard. Auth itself happens upstream; by the time a
// wallet reaches this service it is already verified.
type UserService struct {
	Repo   repository.Repository
	Config config.WagerConfig
	Logger *zap.Logger
}

// EnsureUser returns the user for a wallet, creating it with the
// starting balance on first sight.
func (s *UserService) EnsureUser(ctx context.Context, wallet string) (*models.User, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, repository.ErrUserNotFound
	}

	user, err := s.Repo.GetUserByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &models.User{
		ID:      uuid.NewString(),
		Wallet:  wallet,
		Balance: decimal.NewFromFloat(s.Config.StartingBalance),
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		// Lost a create race: the row exists now, read it back.
		if existing, lookupErr := s.Repo.GetUserByWallet(ctx, wallet); lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user provisioned",
			zap.String("user_id", user.ID),
			zap.String("balance", user.Balance.String()),
		)
	}
	return user, nil
}

// Leaderboard returns the top users by balance.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.Repo.ListTopUsers(ctx, limit)
}
