package usecase

import (
	"context"
	"time"

	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/repository"
	"telegram-secret-relay/internal/infra/logging"
	"telegram-secret-relay/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// DefaultPremiumDays is the grant length when the admin does not give one.
const DefaultPremiumDays = 30

// AdminUseCase covers the sudo panel: premium grants, sudo promotion,
// bans. Every method checks the actor's privilege itself so HTTP and bot
// callers share the same gate.
type AdminUseCase interface {
	GrantPremium(ctx context.Context, actorID, targetID int64, days int) (*model.User, error)
	RevokePremium(ctx context.Context, actorID, targetID int64) (*model.User, error)
	SetSudo(ctx context.Context, actorID, targetID int64, on bool) (*model.User, error)
	Ban(ctx context.Context, actorID, targetID int64, reason string) (*model.User, error)
	Unban(ctx context.Context, actorID, targetID int64) (*model.User, error)
}

var _ AdminUseCase = (*adminUC)(nil)

type adminUC struct {
	users   repository.UserRepository
	userUC  UserUseCase
	ownerID int64
	log     *zerolog.Logger
}

func NewAdminUseCase(users repository.UserRepository, userUC UserUseCase, ownerID int64, logger *zerolog.Logger) *adminUC {
	return &adminUC{users: users, userUC: userUC, ownerID: ownerID, log: logger}
}

func (a *adminUC) target(ctx context.Context, actorID, targetID int64, need model.Privilege) (*model.User, error) {
	if _, err := a.userUC.EnsureAllowed(ctx, actorID, need); err != nil {
		return nil, err
	}
	return a.users.FindByTelegramID(ctx, repository.NoTX, targetID)
}

func (a *adminUC) GrantPremium(ctx context.Context, actorID, targetID int64, days int) (*model.User, error) {
	defer logging.TraceDuration(a.log, "AdminUC.GrantPremium")()
	t, err := a.target(ctx, actorID, targetID, model.PrivilegeSudo)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = DefaultPremiumDays
	}
	t.GrantPremium(time.Now().AddDate(0, 0, days))
	if err := a.users.Save(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	metrics.IncAdminAction("grant_premium")
	a.log.Info().Int64("actor", actorID).Int64("target", targetID).Int("days", days).Msg("premium granted")
	return t, nil
}

func (a *adminUC) RevokePremium(ctx context.Context, actorID, targetID int64) (*model.User, error) {
	defer logging.TraceDuration(a.log, "AdminUC.RevokePremium")()
	t, err := a.target(ctx, actorID, targetID, model.PrivilegeSudo)
	if err != nil {
		return nil, err
	}
	t.RevokePremium()
	if err := a.users.Save(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	metrics.IncAdminAction("revoke_premium")
	return t, nil
}

// SetSudo is owner-only; the owner itself cannot be demoted.
func (a *adminUC) SetSudo(ctx context.Context, actorID, targetID int64, on bool) (*model.User, error) {
	defer logging.TraceDuration(a.log, "AdminUC.SetSudo")()
	t, err := a.target(ctx, actorID, targetID, model.PrivilegeOwner)
	if err != nil {
		return nil, err
	}
	if t.TelegramID == a.ownerID {
		return nil, domain.ErrUnauthorized
	}
	t.SetSudo(on)
	if err := a.users.Save(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	metrics.IncAdminAction("set_sudo")
	a.log.Info().Int64("actor", actorID).Int64("target", targetID).Bool("sudo", on).Msg("sudo changed")
	return t, nil
}

func (a *adminUC) Ban(ctx context.Context, actorID, targetID int64, reason string) (*model.User, error) {
	defer logging.TraceDuration(a.log, "AdminUC.Ban")()
	t, err := a.target(ctx, actorID, targetID, model.PrivilegeSudo)
	if err != nil {
		return nil, err
	}
	// Owner and sudo accounts are not bannable through the panel.
	if t.TelegramID == a.ownerID || t.IsSudo {
		return nil, domain.ErrUnauthorized
	}
	t.Ban(reason)
	if err := a.users.Save(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	metrics.IncAdminAction("ban")
	return t, nil
}

func (a *adminUC) Unban(ctx context.Context, actorID, targetID int64) (*model.User, error) {
	defer logging.TraceDuration(a.log, "AdminUC.Unban")()
	t, err := a.target(ctx, actorID, targetID, model.PrivilegeSudo)
	if err != nil {
		return nil, err
	}
	t.Unban()
	if err := a.users.Save(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	metrics.IncAdminAction("unban")
	return t, nil
}
