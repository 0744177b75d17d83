package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `
  id, telegram_id, username, role, is_premium, premium_until, is_sudo,
  banned, ban_reason, first_seen_at, last_active_at,
  notify_on_view, protect_content, show_forward_tag, shares_created`

func (r *PostgresUserRepo) Save(ctx context.Context, qx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (
  id, telegram_id, username, role, is_premium, premium_until, is_sudo,
  banned, ban_reason, first_seen_at, last_active_at,
  notify_on_view, protect_content, show_forward_tag, shares_created
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
) ON CONFLICT (telegram_id) DO UPDATE SET
  username=$3, role=$4, is_premium=$5, premium_until=$6, is_sudo=$7,
  banned=$8, ban_reason=$9, last_active_at=$11,
  notify_on_view=$12, protect_content=$13, show_forward_tag=$14, shares_created=$15;
`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q,
		u.ID, u.TelegramID, u.Username, u.Role, u.IsPremium, u.PremiumUntil, u.IsSudo,
		u.Banned, u.BanReason, u.FirstSeenAt, u.LastActiveAt,
		u.Settings.NotifyOnView, u.Settings.ProtectContent, u.Settings.ShowForwardTag, u.SharesCreated)
	return err
}

func (r *PostgresUserRepo) FindByTelegramID(ctx context.Context, qx repository.Tx, tgID int64) (*model.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE telegram_id=$1;`
	row := pickRow(r.pool, qx, q, tgID)
	return scanUser(row)
}

func (r *PostgresUserRepo) FindByUsername(ctx context.Context, qx repository.Tx, username string) (*model.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE username <> '' AND LOWER(username)=LOWER($1);`
	row := pickRow(r.pool, qx, q, username)
	return scanUser(row)
}

func (r *PostgresUserRepo) List(ctx context.Context, qx repository.Tx, includeBanned bool) ([]*model.User, error) {
	q := `SELECT` + userColumns + ` FROM users`
	if !includeBanned {
		q += ` WHERE NOT banned`
	}
	q += ` ORDER BY first_seen_at;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresUserRepo) CountUsers(ctx context.Context, qx repository.Tx) (int, error) {
	row := pickRow(r.pool, qx, `SELECT COUNT(*) FROM users;`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) CountPremium(ctx context.Context, qx repository.Tx) (int, error) {
	row := pickRow(r.pool, qx, `SELECT COUNT(*) FROM users WHERE is_premium;`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count premium: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) CountBanned(ctx context.Context, qx repository.Tx) (int, error) {
	row := pickRow(r.pool, qx, `SELECT COUNT(*) FROM users WHERE banned;`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count banned: %w", err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID, &u.TelegramID, &u.Username, &u.Role, &u.IsPremium, &u.PremiumUntil, &u.IsSudo,
		&u.Banned, &u.BanReason, &u.FirstSeenAt, &u.LastActiveAt,
		&u.Settings.NotifyOnView, &u.Settings.ProtectContent, &u.Settings.ShowForwardTag, &u.SharesCreated,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
