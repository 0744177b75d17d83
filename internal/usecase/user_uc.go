package usecase

import (
	"context"
	"strings"
	"time"

	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/repository"
	"telegram-secret-relay/internal/infra/logging"
	"telegram-secret-relay/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes user-related operations used by bot/admin flows.
type UserUseCase interface {
	RegisterOrFetch(ctx context.Context, tgID int64, username string) (*model.User, error)
	GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error)
	// FindByUsername resolves an "@username" (the prefix is optional) to a
	// registered user. Users who never started the bot cannot be resolved.
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// EnsureAllowed resolves the caller and checks the privilege gate.
	// Banned users fail with domain.ErrBanned regardless of level.
	EnsureAllowed(ctx context.Context, tgID int64, p model.Privilege) (*model.User, error)
	ToggleSetting(ctx context.Context, tgID int64, setting string) (*model.User, error)
	Count(ctx context.Context) (int, error)
}

// Setting keys accepted by ToggleSetting.
const (
	SettingNotifyOnView   = "notify_on_view"
	SettingProtectContent = "protect_content"
	SettingShowForwardTag = "show_forward_tag"
)

type userUC struct {
	users   repository.UserRepository
	tm      repository.TransactionManager
	ownerID int64
	sudoIDs map[int64]struct{}
	log     *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, tm repository.TransactionManager, ownerID int64, sudoIDs []int64, logger *zerolog.Logger) *userUC {
	sm := make(map[int64]struct{}, len(sudoIDs))
	for _, id := range sudoIDs {
		sm[id] = struct{}{}
	}
	return &userUC{
		users:   users,
		tm:      tm,
		ownerID: ownerID,
		sudoIDs: sm,
		log:     logger,
	}
}

func (u *userUC) RegisterOrFetch(ctx context.Context, tgID int64, username string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterOrFetch")()

	var user *model.User
	// The read and write must be a single atomic operation so two first
	// messages from the same user cannot race into duplicate inserts.
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		usr, err := u.users.FindByTelegramID(ctx, tx, tgID)
		if err != nil && err != domain.ErrNotFound {
			return err
		}

		if usr != nil {
			if username != "" && usr.Username != username {
				usr.Username = username
			}
			usr.ExpirePremium(time.Now())
			usr.Touch()
			if err = u.users.Save(ctx, tx, usr); err != nil {
				u.log.Error().Err(err).Msg("Failed to update user")
				return err
			}
			user = usr
			return nil
		}

		nu, err := model.NewUser("", tgID, username)
		if err != nil {
			return err
		}
		if tgID == u.ownerID {
			nu.Role = model.RoleOwner
			nu.IsSudo = true
		} else if _, ok := u.sudoIDs[tgID]; ok {
			nu.SetSudo(true)
		}
		if err := u.users.Save(ctx, tx, nu); err != nil {
			return err
		}
		metrics.IncUsersRegistered()
		user = nu
		return nil
	})

	return user, err
}

func (u *userUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.GetByTelegramID")()
	usr, err := u.users.FindByTelegramID(ctx, repository.NoTX, tgID)
	if err != nil {
		return nil, err
	}
	// Lazy premium expiry on read keeps the flag honest without a sweep.
	if usr.ExpirePremium(time.Now()) {
		if err := u.users.Save(ctx, repository.NoTX, usr); err != nil {
			u.log.Warn().Err(err).Int64("tg_id", tgID).Msg("failed to persist premium expiry")
		}
	}
	return usr, nil
}

func (u *userUC) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.FindByUsername")()
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.users.FindByUsername(ctx, repository.NoTX, username)
}

func (u *userUC) EnsureAllowed(ctx context.Context, tgID int64, p model.Privilege) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.EnsureAllowed")()
	usr, err := u.GetByTelegramID(ctx, tgID)
	if err != nil {
		return nil, err
	}
	if usr.Banned {
		return nil, domain.ErrBanned
	}
	// Config-listed sudo IDs clear the sudo gate even before the DB flag
	// catches up.
	if _, ok := u.sudoIDs[tgID]; ok && p <= model.PrivilegeSudo {
		return usr, nil
	}
	if !usr.Allowed(p, u.ownerID) {
		return nil, domain.ErrUnauthorized
	}
	return usr, nil
}

func (u *userUC) ToggleSetting(ctx context.Context, tgID int64, setting string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.ToggleSetting")()
	usr, err := u.users.FindByTelegramID(ctx, repository.NoTX, tgID)
	if err != nil {
		return nil, err
	}
	switch setting {
	case SettingNotifyOnView:
		usr.Settings.NotifyOnView = !usr.Settings.NotifyOnView
	case SettingProtectContent:
		usr.Settings.ProtectContent = !usr.Settings.ProtectContent
	case SettingShowForwardTag:
		usr.Settings.ShowForwardTag = !usr.Settings.ShowForwardTag
	default:
		return nil, domain.ErrInvalidArgument
	}
	if err := u.users.Save(ctx, repository.NoTX, usr); err != nil {
		return nil, err
	}
	return usr, nil
}

func (u *userUC) Count(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "UserUC.Count")()
	return u.users.CountUsers(ctx, repository.NoTX)
}
