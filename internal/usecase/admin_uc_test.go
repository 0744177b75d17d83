//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/repository"
)

type adminFixture struct {
	users *memUserRepo
	uc    AdminUseCase
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	users := newMemUserRepo()
	userUC := NewUserUseCase(users, newMockTxManager(), ownerID, nil, newTestLogger())
	return &adminFixture{
		users: users,
		uc:    NewAdminUseCase(users, userUC, ownerID, newTestLogger()),
	}
}

func (f *adminFixture) seed(t *testing.T, tgID int64, mutate func(*model.User)) {
	t.Helper()
	u, err := model.NewUser("", tgID, "u")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if mutate != nil {
		mutate(u)
	}
	if err := f.users.Save(context.Background(), repository.NoTX, u); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func asOwner(u *model.User) { u.Role = model.RoleOwner; u.IsSudo = true }
func asSudo(u *model.User)  { u.SetSudo(true) }

func TestAdminUC_GrantRevokePremium(t *testing.T) {
	ctx := context.Background()

	t.Run("should grant premium for the default period", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, ownerID, asOwner)
		f.seed(t, 42, nil)

		u, err := f.uc.GrantPremium(ctx, ownerID, 42, 0)
		if err != nil {
			t.Fatalf("GrantPremium failed: %v", err)
		}
		if !u.IsPremium || u.PremiumUntil == nil {
			t.Fatalf("premium not set: %+v", u)
		}
		want := time.Now().AddDate(0, 0, DefaultPremiumDays)
		if diff := u.PremiumUntil.Sub(want); diff > time.Minute || diff < -time.Minute {
			t.Errorf("PremiumUntil off by %v", diff)
		}
	})

	t.Run("should let sudo grant premium", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, 10, asSudo)
		f.seed(t, 42, nil)

		if _, err := f.uc.GrantPremium(ctx, 10, 42, 7); err != nil {
			t.Fatalf("GrantPremium failed: %v", err)
		}
	})

	t.Run("should refuse non-sudo actors", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, 10, nil)
		f.seed(t, 42, nil)

		if _, err := f.uc.GrantPremium(ctx, 10, 42, 7); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("should revoke premium", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, ownerID, asOwner)
		f.seed(t, 42, func(u *model.User) { u.GrantPremium(time.Now().Add(time.Hour)) })

		u, err := f.uc.RevokePremium(ctx, ownerID, 42)
		if err != nil {
			t.Fatalf("RevokePremium failed: %v", err)
		}
		if u.IsPremium {
			t.Error("expected premium to be gone")
		}
	})
}

func TestAdminUC_SetSudo(t *testing.T) {
	ctx := context.Background()

	t.Run("should be owner-only", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, 10, asSudo)
		f.seed(t, 42, nil)

		if _, err := f.uc.SetSudo(ctx, 10, 42, true); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized for sudo actor, got %v", err)
		}
	})

	t.Run("should promote and demote", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, ownerID, asOwner)
		f.seed(t, 42, nil)

		u, err := f.uc.SetSudo(ctx, ownerID, 42, true)
		if err != nil {
			t.Fatalf("SetSudo failed: %v", err)
		}
		if !u.IsSudo {
			t.Error("expected sudo flag")
		}
		u, err = f.uc.SetSudo(ctx, ownerID, 42, false)
		if err != nil {
			t.Fatalf("SetSudo failed: %v", err)
		}
		if u.IsSudo {
			t.Error("expected sudo flag cleared")
		}
	})

	t.Run("should never demote the owner", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, ownerID, asOwner)

		if _, err := f.uc.SetSudo(ctx, ownerID, ownerID, false); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestAdminUC_BanUnban(t *testing.T) {
	ctx := context.Background()

	t.Run("should ban with a reason", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, ownerID, asOwner)
		f.seed(t, 42, nil)

		u, err := f.uc.Ban(ctx, ownerID, 42, "spam")
		if err != nil {
			t.Fatalf("Ban failed: %v", err)
		}
		if !u.Banned || u.BanReason != "spam" {
			t.Errorf("ban not recorded: %+v", u)
		}
	})

	t.Run("should refuse to ban the owner or sudo users", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, ownerID, asOwner)
		f.seed(t, 10, asSudo)

		if _, err := f.uc.Ban(ctx, ownerID, ownerID, "x"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized for owner target, got %v", err)
		}
		if _, err := f.uc.Ban(ctx, ownerID, 10, "x"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized for sudo target, got %v", err)
		}
	})

	t.Run("should refuse banned actors", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, 10, func(u *model.User) { asSudo(u); u.Ban("gone rogue") })
		f.seed(t, 42, nil)

		if _, err := f.uc.Ban(ctx, 10, 42, "x"); !errors.Is(err, domain.ErrBanned) {
			t.Errorf("expected ErrBanned, got %v", err)
		}
	})

	t.Run("should unban", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, ownerID, asOwner)
		f.seed(t, 42, func(u *model.User) { u.Ban("spam") })

		u, err := f.uc.Unban(ctx, ownerID, 42)
		if err != nil {
			t.Fatalf("Unban failed: %v", err)
		}
		if u.Banned || u.BanReason != "" {
			t.Errorf("unban not recorded: %+v", u)
		}
	})

	t.Run("should surface unknown targets", func(t *testing.T) {
		f := newAdminFixture(t)
		f.seed(t, ownerID, asOwner)

		if _, err := f.uc.Ban(ctx, ownerID, 9999, "x"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
