package repository

import (
	"context"
	"time"

	"telegram-secret-relay/internal/domain/model"
)

type ShareRepository interface {
	Save(ctx context.Context, qx Tx, s *model.Share) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Share, error)
	FindByAccessToken(ctx context.Context, qx Tx, token string) (*model.Share, error)

	// ClaimView atomically records one view against an active share,
	// flipping it to viewed (or destructed when the cap is hit). Returns
	// domain.ErrShareNotViewable when no claimable row matches.
	ClaimView(ctx context.Context, qx Tx, id string, viewerID int64, now time.Time) (*model.Share, error)
	ClaimViewByToken(ctx context.Context, qx Tx, token string, viewerID int64, now time.Time) (*model.Share, error)

	// ListBySender pages through a sender's listable shares (active and
	// viewed) newest first, returning the page and the total count.
	ListBySender(ctx context.Context, qx Tx, senderID int64, offset, limit int) ([]*model.Share, int, error)
	CountActiveBySender(ctx context.Context, qx Tx, senderID int64) (int, error)

	// ExpireDue flips active shares past their expiry and returns them.
	ExpireDue(ctx context.Context, qx Tx, now time.Time) ([]*model.Share, error)
	// ListDestructDue returns delivered shares whose self-destruct timer
	// elapsed and that still have a delivered copy to remove.
	ListDestructDue(ctx context.Context, qx Tx, now time.Time) ([]*model.Share, error)

	CountByStatus(ctx context.Context, qx Tx) (map[model.ShareStatus]int, error)
}
