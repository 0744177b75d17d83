package repository

import (
	"context"

	"telegram-secret-relay/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, qx Tx, u *model.User) error
	FindByTelegramID(ctx context.Context, qx Tx, tgID int64) (*model.User, error)
	// FindByUsername matches case-insensitively; only users who have
	// started the bot are resolvable.
	FindByUsername(ctx context.Context, qx Tx, username string) (*model.User, error)
	// List returns users ordered by first_seen. Banned users are included
	// only when includeBanned is set.
	List(ctx context.Context, qx Tx, includeBanned bool) ([]*model.User, error)
	CountUsers(ctx context.Context, qx Tx) (int, error)
	CountPremium(ctx context.Context, qx Tx) (int, error)
	CountBanned(ctx context.Context, qx Tx) (int, error)
}
