package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/repository"
)

var _ repository.ShareRepository = (*PostgresShareRepo)(nil)

type PostgresShareRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresShareRepo(pool *pgxpool.Pool) *PostgresShareRepo {
	return &PostgresShareRepo{pool: pool}
}

const shareColumns = `
  id, access_token, sender_id, recipient_id, scope, kind,
  origin_chat_id, origin_msg_id, payload, protected, show_forward_tag,
  status, created_at, expires_at, destruct_mins, view_count, max_views,
  viewed_at, viewed_by, delivered_chat_id, delivered_msg_id, destruct_at`

func (r *PostgresShareRepo) Save(ctx context.Context, qx repository.Tx, s *model.Share) error {
	const q = `
INSERT INTO shares (
  id, access_token, sender_id, recipient_id, scope, kind,
  origin_chat_id, origin_msg_id, payload, protected, show_forward_tag,
  status, created_at, expires_at, destruct_mins, view_count, max_views,
  viewed_at, viewed_by, delivered_chat_id, delivered_msg_id, destruct_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
) ON CONFLICT (id) DO UPDATE SET
  access_token=$2, recipient_id=$4, status=$12, expires_at=$14,
  destruct_mins=$15, view_count=$16, max_views=$17, viewed_at=$18,
  viewed_by=$19, delivered_chat_id=$20, delivered_msg_id=$21, destruct_at=$22;
`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q,
		s.ID, nullStr(s.AccessToken), s.SenderID, s.RecipientID, s.Scope, s.Kind,
		s.OriginChatID, s.OriginMsgID, s.Payload, s.Protected, s.ShowForwardTag,
		s.Status, s.CreatedAt, s.ExpiresAt, s.DestructMins, s.ViewCount, s.MaxViews,
		s.ViewedAt, s.ViewedBy, s.DeliveredChatID, s.DeliveredMsgID, s.DestructAt)
	return err
}

func (r *PostgresShareRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Share, error) {
	q := `SELECT` + shareColumns + ` FROM shares WHERE id=$1;`
	return scanShare(pickRow(r.pool, qx, q, id))
}

func (r *PostgresShareRepo) FindByAccessToken(ctx context.Context, qx repository.Tx, token string) (*model.Share, error) {
	q := `SELECT` + shareColumns + ` FROM shares WHERE access_token=$1;`
	return scanShare(pickRow(r.pool, qx, q, token))
}

// claimSet is the single-statement view claim. The WHERE guard and the
// CASE on status make concurrent claims safe without SELECT FOR UPDATE:
// a claim past the max-views cap simply matches no row. Direct shares
// only match when the claimant is the intended recipient.
const claimSet = `
UPDATE shares SET
  view_count = view_count + 1,
  viewed_at = $2,
  viewed_by = $3,
  destruct_at = CASE WHEN destruct_mins > 0
                     THEN $2::timestamptz + make_interval(mins => destruct_mins)
                     ELSE destruct_at END,
  status = CASE
    WHEN max_views > 0 AND view_count + 1 >= max_views THEN 'destructed'
    WHEN scope = 'user' THEN 'viewed'
    ELSE status END
WHERE %s = $1
  AND status = 'active'
  AND (scope <> 'user' OR recipient_id = $3)
  AND (max_views <= 0 OR view_count < max_views)
  AND (expires_at IS NULL OR expires_at > $2)
RETURNING` + shareColumns + `;`

func (r *PostgresShareRepo) ClaimView(ctx context.Context, qx repository.Tx, id string, viewerID int64, now time.Time) (*model.Share, error) {
	return r.claim(ctx, qx, fmt.Sprintf(claimSet, "id"), id, viewerID, now)
}

func (r *PostgresShareRepo) ClaimViewByToken(ctx context.Context, qx repository.Tx, token string, viewerID int64, now time.Time) (*model.Share, error) {
	return r.claim(ctx, qx, fmt.Sprintf(claimSet, "access_token"), token, viewerID, now)
}

func (r *PostgresShareRepo) claim(ctx context.Context, qx repository.Tx, q, key string, viewerID int64, now time.Time) (*model.Share, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	s, err := scanShare(ex.QueryRow(ctx, q, key, now, viewerID))
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrShareNotViewable
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresShareRepo) ListBySender(ctx context.Context, qx repository.Tx, senderID int64, offset, limit int) ([]*model.Share, int, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := ex.QueryRow(ctx,
		`SELECT COUNT(*) FROM shares WHERE sender_id=$1 AND status IN ('active','viewed');`,
		senderID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sender shares: %w", err)
	}

	q := `SELECT` + shareColumns + `
  FROM shares
 WHERE sender_id=$1 AND status IN ('active','viewed')
 ORDER BY created_at DESC
 OFFSET $2 LIMIT $3;`
	rows, err := ex.Query(ctx, q, senderID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Share
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *PostgresShareRepo) CountActiveBySender(ctx context.Context, qx repository.Tx, senderID int64) (int, error) {
	row := pickRow(r.pool, qx, `SELECT COUNT(*) FROM shares WHERE sender_id=$1 AND status='active';`, senderID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count active shares: %w", err)
	}
	return n, nil
}

func (r *PostgresShareRepo) ExpireDue(ctx context.Context, qx repository.Tx, now time.Time) ([]*model.Share, error) {
	q := `
UPDATE shares SET status='expired'
 WHERE status='active' AND expires_at IS NOT NULL AND expires_at <= $1
RETURNING` + shareColumns + `;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Share
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresShareRepo) ListDestructDue(ctx context.Context, qx repository.Tx, now time.Time) ([]*model.Share, error) {
	q := `SELECT` + shareColumns + `
  FROM shares
 WHERE destruct_at IS NOT NULL AND destruct_at <= $1 AND delivered_msg_id <> 0;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Share
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresShareRepo) CountByStatus(ctx context.Context, qx repository.Tx) (map[model.ShareStatus]int, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT status, COUNT(*) FROM shares GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[model.ShareStatus]int{}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[model.ShareStatus(st)] = n
	}
	return out, rows.Err()
}

func scanShare(row pgx.Row) (*model.Share, error) {
	var s model.Share
	var token *string
	if err := row.Scan(
		&s.ID, &token, &s.SenderID, &s.RecipientID, &s.Scope, &s.Kind,
		&s.OriginChatID, &s.OriginMsgID, &s.Payload, &s.Protected, &s.ShowForwardTag,
		&s.Status, &s.CreatedAt, &s.ExpiresAt, &s.DestructMins, &s.ViewCount, &s.MaxViews,
		&s.ViewedAt, &s.ViewedBy, &s.DeliveredChatID, &s.DeliveredMsgID, &s.DestructAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if token != nil {
		s.AccessToken = *token
	}
	return &s, nil
}

// nullStr maps "" to NULL so the partial unique index on access_token
// only applies to link shares.
func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
