package usecase

import (
	"context"

	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/repository"
	"telegram-secret-relay/internal/infra/logging"

	"github.com/rs/zerolog"
)

type Stats struct {
	TotalUsers     int                       `json:"total_users"`
	PremiumUsers   int                       `json:"premium_users"`
	BannedUsers    int                       `json:"banned_users"`
	SharesByStatus map[model.ShareStatus]int `json:"shares_by_status"`
}

type StatsUseCase interface {
	GetStats(ctx context.Context) (*Stats, error)
}

var _ StatsUseCase = (*statsUC)(nil)

type statsUC struct {
	users  repository.UserRepository
	shares repository.ShareRepository
	log    *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, shares repository.ShareRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, shares: shares, log: logger}
}

func (s *statsUC) GetStats(ctx context.Context) (*Stats, error) {
	defer logging.TraceDuration(s.log, "StatsUC.GetStats")()

	total, err := s.users.CountUsers(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	premium, err := s.users.CountPremium(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	banned, err := s.users.CountBanned(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.shares.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalUsers:     total,
		PremiumUsers:   premium,
		BannedUsers:    banned,
		SharesByStatus: byStatus,
	}, nil
}
