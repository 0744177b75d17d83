//go:build !integration

package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/repository"
)

type shareFixture struct {
	users  *memUserRepo
	shares *memShareRepo
	bot    *fakeBot
	cache  *memPayloadCache
	uc     ShareUseCase
}

func newShareFixture(t *testing.T) *shareFixture {
	t.Helper()
	f := &shareFixture{
		users:  newMemUserRepo(),
		shares: newMemShareRepo(),
		bot:    newFakeBot(),
		cache:  newMemPayloadCache(),
	}
	f.uc = NewShareUseCase(f.shares, f.users, f.bot, f.cache, "secret_relay_bot", newTestLogger())
	return f
}

func (f *shareFixture) seedUser(t *testing.T, tgID int64, mutate func(*model.User)) *model.User {
	t.Helper()
	u, err := model.NewUser("", tgID, "u")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if mutate != nil {
		mutate(u)
	}
	if err := f.users.Save(context.Background(), repository.NoTX, u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return u
}

func TestShareUC_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a link share with an access token", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, err := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "psst"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if s.AccessToken == "" {
			t.Error("expected an access token for link scope")
		}
		if s.Status != model.ShareStatusActive {
			t.Errorf("expected active, got %s", s.Status)
		}
		link := f.uc.DeepLink(s)
		if !strings.Contains(link, "t.me/secret_relay_bot?start=viewsecret_"+s.AccessToken) {
			t.Errorf("unexpected deep link %q", link)
		}
	})

	t.Run("should bump the sender's creation counter", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		if _, err := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		u, _ := f.users.FindByTelegramID(ctx, repository.NoTX, 42)
		if u.SharesCreated != 1 {
			t.Errorf("expected 1 created share, got %d", u.SharesCreated)
		}
	})

	t.Run("should reject oversized text", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		long := strings.Repeat("x", model.MaxSecretTextLen+1)
		_, err := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: long})
		if !errors.Is(err, domain.ErrPayloadTooLarge) {
			t.Errorf("expected ErrPayloadTooLarge, got %v", err)
		}
	})

	t.Run("should reject options outside the tier", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil) // free tier

		_, err := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a", DestructMins: 2880})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for free-tier 48h timer, got %v", err)
		}
		_, err = f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a", MaxViews: 25})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for free-tier 25 views, got %v", err)
		}
	})

	t.Run("should allow premium-only options for premium senders", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, func(u *model.User) { u.GrantPremium(time.Now().Add(time.Hour)) })

		if _, err := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a", DestructMins: 2880, MaxViews: 25}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	})

	t.Run("should enforce the tier file-size ceiling", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil) // free tier

		over := model.TierFree.MaxFileSizeMB*1024*1024 + 1
		_, err := f.uc.Create(ctx, ShareDraft{
			SenderID: 42, Kind: model.ShareKindMessage, Scope: model.ShareScopeLink,
			OriginChatID: 42, OriginMsgID: 1, FileSizeBytes: over,
		})
		if !errors.Is(err, domain.ErrPayloadTooLarge) {
			t.Errorf("expected ErrPayloadTooLarge, got %v", err)
		}

		f2 := newShareFixture(t)
		f2.seedUser(t, 42, func(u *model.User) { u.GrantPremium(time.Now().Add(time.Hour)) })
		if _, err := f2.uc.Create(ctx, ShareDraft{
			SenderID: 42, Kind: model.ShareKindMessage, Scope: model.ShareScopeLink,
			OriginChatID: 42, OriginMsgID: 1, FileSizeBytes: over,
		}); err != nil {
			t.Fatalf("premium file within its ceiling failed: %v", err)
		}
	})

	t.Run("should require a recipient for user scope", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		_, err := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeUser, Payload: "a"})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should enforce the active share ceiling", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		for i := 0; i < model.TierFree.MaxActiveShares; i++ {
			s, _ := model.NewShare(42, model.ShareKindText, model.ShareScopeLink)
			_ = f.shares.Save(ctx, repository.NoTX, s)
		}
		_, err := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a"})
		if !errors.Is(err, domain.ErrShareLimitReached) {
			t.Errorf("expected ErrShareLimitReached, got %v", err)
		}
	})
}

func TestShareUC_View(t *testing.T) {
	ctx := context.Background()

	t.Run("should deliver a text share and record the copy", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, err := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "psst"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		res, err := f.uc.ViewByToken(ctx, s.AccessToken, 77)
		if err != nil {
			t.Fatalf("ViewByToken failed: %v", err)
		}
		if res.DeliveredMsgID == 0 {
			t.Error("expected a delivered message ID")
		}
		if got := f.bot.Sent[0]; got.ChatID != 77 || got.Text != "psst" {
			t.Errorf("unexpected delivery: %+v", got)
		}
		stored, _ := f.shares.FindByID(ctx, repository.NoTX, s.ID)
		if stored.ViewCount != 1 || stored.DeliveredChatID != 77 {
			t.Errorf("delivery not recorded: %+v", stored)
		}
	})

	t.Run("should flip to destructed when the view cap is hit", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _ := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "once", MaxViews: 1})
		res, err := f.uc.ViewByToken(ctx, s.AccessToken, 77)
		if err != nil {
			t.Fatalf("first view failed: %v", err)
		}
		if res.Share.Status != model.ShareStatusDestructed {
			t.Errorf("expected destructed, got %s", res.Share.Status)
		}
		if _, err := f.uc.ViewByToken(ctx, s.AccessToken, 78); !errors.Is(err, domain.ErrShareNotViewable) {
			t.Errorf("expected ErrShareNotViewable on the second view, got %v", err)
		}
	})

	t.Run("should flip a direct share to viewed", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _ := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeUser, RecipientID: 77, Payload: "hi", MaxViews: 3})
		res, err := f.uc.ViewByID(ctx, s.ID, 77)
		if err != nil {
			t.Fatalf("ViewByID failed: %v", err)
		}
		if res.Share.Status != model.ShareStatusViewed {
			t.Errorf("expected viewed, got %s", res.Share.Status)
		}
	})

	t.Run("should refuse a direct share to anyone but the recipient", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _ := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeUser, RecipientID: 222, Payload: "hi"})
		if _, err := f.uc.ViewByID(ctx, s.ID, 333); !errors.Is(err, domain.ErrShareNotViewable) {
			t.Fatalf("expected ErrShareNotViewable for a stranger, got %v", err)
		}
		stored, _ := f.shares.FindByID(ctx, repository.NoTX, s.ID)
		if stored.Status != model.ShareStatusActive || stored.ViewCount != 0 {
			t.Errorf("a stranger's attempt must not spend the share: %+v", stored)
		}
		if len(f.bot.Sent) != 0 {
			t.Errorf("nothing should be delivered, got %+v", f.bot.Sent)
		}

		if _, err := f.uc.ViewByID(ctx, s.ID, 222); err != nil {
			t.Errorf("recipient view failed: %v", err)
		}
	})

	t.Run("should copy origin messages without a forward header", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _ := f.uc.Create(ctx, ShareDraft{
			SenderID: 42, Kind: model.ShareKindMessage, Scope: model.ShareScopeLink,
			OriginChatID: 42, OriginMsgID: 900,
		})
		if _, err := f.uc.ViewByToken(ctx, s.AccessToken, 77); err != nil {
			t.Fatalf("ViewByToken failed: %v", err)
		}
		if len(f.bot.Copied) != 1 || f.bot.Copied[0].MessageID != 900 || f.bot.Copied[0].ToChatID != 77 {
			t.Errorf("unexpected copy: %+v", f.bot.Copied)
		}
	})

	t.Run("should notify the sender unless opted out", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _ := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a"})
		res, err := f.uc.ViewByToken(ctx, s.AccessToken, 77)
		if err != nil {
			t.Fatalf("ViewByToken failed: %v", err)
		}
		if !res.SenderNotified {
			t.Error("expected sender notification")
		}

		f2 := newShareFixture(t)
		f2.seedUser(t, 42, func(u *model.User) { u.Settings.NotifyOnView = false })
		s2, _ := f2.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a"})
		res2, err := f2.uc.ViewByToken(ctx, s2.AccessToken, 77)
		if err != nil {
			t.Fatalf("ViewByToken failed: %v", err)
		}
		if res2.SenderNotified {
			t.Error("expected no notification when opted out")
		}
	})

	t.Run("should honour the protect flag on delivery", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _ := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a", Protected: true})
		if _, err := f.uc.ViewByToken(ctx, s.AccessToken, 77); err != nil {
			t.Fatalf("ViewByToken failed: %v", err)
		}
		if !f.bot.Sent[0].Protected {
			t.Error("expected protected delivery")
		}
	})

	t.Run("should arm the destruct timer on view", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _ := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a", DestructMins: 5})
		res, err := f.uc.ViewByToken(ctx, s.AccessToken, 77)
		if err != nil {
			t.Fatalf("ViewByToken failed: %v", err)
		}
		if res.Share.DestructAt == nil {
			t.Fatal("expected DestructAt to be set")
		}
		want := time.Now().Add(5 * time.Minute)
		if diff := res.Share.DestructAt.Sub(want); diff > time.Minute || diff < -time.Minute {
			t.Errorf("DestructAt off by %v", diff)
		}
	})
}

func TestShareUC_Inline(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a one-view link share with a cached payload", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, link, err := f.uc.CreateInline(ctx, 42, "whispered")
		if err != nil {
			t.Fatalf("CreateInline failed: %v", err)
		}
		if s.Kind != model.ShareKindInline || s.MaxViews != 1 {
			t.Errorf("unexpected inline share: %+v", s)
		}
		if !strings.Contains(link, s.AccessToken) {
			t.Errorf("link %q does not carry the token", link)
		}
		if p, _ := f.cache.Get(ctx, s.ID); p != "whispered" {
			t.Errorf("payload not cached, got %q", p)
		}
	})

	t.Run("should deliver from the cache and drop it after the final view", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _, _ := f.uc.CreateInline(ctx, 42, "whispered")
		if _, err := f.uc.ViewByToken(ctx, s.AccessToken, 77); err != nil {
			t.Fatalf("ViewByToken failed: %v", err)
		}
		if f.bot.Sent[0].Text != "whispered" {
			t.Errorf("unexpected delivery text %q", f.bot.Sent[0].Text)
		}
		if _, err := f.cache.Get(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Error("expected the cached payload to be dropped")
		}
	})

	t.Run("should settle the share when the cached payload has aged out", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _, _ := f.uc.CreateInline(ctx, 42, "whispered")
		_ = f.cache.Delete(ctx, s.ID)

		if _, err := f.uc.ViewByToken(ctx, s.AccessToken, 77); !errors.Is(err, domain.ErrShareNotViewable) {
			t.Fatalf("expected ErrShareNotViewable, got %v", err)
		}
		if len(f.bot.Sent) != 0 {
			t.Errorf("nothing should be delivered, got %+v", f.bot.Sent)
		}
		stored, _ := f.shares.FindByID(ctx, repository.NoTX, s.ID)
		if stored.Status != model.ShareStatusExpired {
			t.Errorf("expected expired, got %s", stored.Status)
		}
	})
}

func TestShareUC_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("should revoke the sender's own active share", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _ := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a"})
		if err := f.uc.Revoke(ctx, 42, s.ID); err != nil {
			t.Fatalf("Revoke failed: %v", err)
		}
		stored, _ := f.shares.FindByID(ctx, repository.NoTX, s.ID)
		if stored.Status != model.ShareStatusRevoked {
			t.Errorf("expected revoked, got %s", stored.Status)
		}
		if _, err := f.uc.ViewByToken(ctx, s.AccessToken, 77); !errors.Is(err, domain.ErrShareNotViewable) {
			t.Errorf("expected revoked share to be unviewable, got %v", err)
		}
	})

	t.Run("should refuse to revoke someone else's share", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _ := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a"})
		if err := f.uc.Revoke(ctx, 43, s.ID); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("should refuse to revoke a settled share", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _ := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a", MaxViews: 1})
		if _, err := f.uc.ViewByToken(ctx, s.AccessToken, 77); err != nil {
			t.Fatalf("view failed: %v", err)
		}
		if err := f.uc.Revoke(ctx, 42, s.ID); !errors.Is(err, domain.ErrShareNotViewable) {
			t.Errorf("expected ErrShareNotViewable, got %v", err)
		}
	})
}

func TestShareUC_Sweeps(t *testing.T) {
	ctx := context.Background()

	t.Run("ExpireDue should settle shares past their expiry", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		past := time.Now().Add(-time.Minute)
		s, _ := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a", ExpiresAt: &past})

		n, err := f.uc.ExpireDue(ctx)
		if err != nil {
			t.Fatalf("ExpireDue failed: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 expired, got %d", n)
		}
		stored, _ := f.shares.FindByID(ctx, repository.NoTX, s.ID)
		if stored.Status != model.ShareStatusExpired {
			t.Errorf("expected expired, got %s", stored.Status)
		}
	})

	t.Run("DestructDue should delete the delivered copy and settle the share", func(t *testing.T) {
		f := newShareFixture(t)
		f.seedUser(t, 42, nil)

		s, _ := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a", DestructMins: 1})
		res, err := f.uc.ViewByToken(ctx, s.AccessToken, 77)
		if err != nil {
			t.Fatalf("view failed: %v", err)
		}

		// Force the timer into the past.
		past := time.Now().Add(-time.Second)
		res.Share.DestructAt = &past
		_ = f.shares.Save(ctx, repository.NoTX, res.Share)

		n, err := f.uc.DestructDue(ctx)
		if err != nil {
			t.Fatalf("DestructDue failed: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 destructed, got %d", n)
		}
		if len(f.bot.Deleted) != 1 || f.bot.Deleted[0] != res.DeliveredMsgID {
			t.Errorf("expected delivered copy %d to be deleted, got %v", res.DeliveredMsgID, f.bot.Deleted)
		}
		stored, _ := f.shares.FindByID(ctx, repository.NoTX, s.ID)
		if stored.Status != model.ShareStatusDestructed || stored.DeliveredMsgID != 0 {
			t.Errorf("share not settled: %+v", stored)
		}
	})
}

func TestShareUC_ListMine(t *testing.T) {
	ctx := context.Background()
	f := newShareFixture(t)
	f.seedUser(t, 42, nil)

	for i := 0; i < 7; i++ {
		if _, err := f.uc.Create(ctx, ShareDraft{SenderID: 42, Kind: model.ShareKindText, Scope: model.ShareScopeLink, Payload: "a"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	page0, total, err := f.uc.ListMine(ctx, 42, 0)
	if err != nil {
		t.Fatalf("ListMine failed: %v", err)
	}
	if total != 7 || len(page0) != MySharesPageLimit {
		t.Errorf("page 0: total=%d len=%d", total, len(page0))
	}
	page1, _, err := f.uc.ListMine(ctx, 42, 1)
	if err != nil {
		t.Fatalf("ListMine failed: %v", err)
	}
	if len(page1) != 2 {
		t.Errorf("page 1: len=%d", len(page1))
	}
}
