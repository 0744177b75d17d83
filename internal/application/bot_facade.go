package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/usecase"
)

// BotFacade composes usecases into high-level bot replies. Methods return
// plain text so the Telegram adapter just forwards them to the chat;
// menus and buttons stay in the adapter.
type BotFacade struct {
	UserUC      usecase.UserUseCase
	ShareUC     usecase.ShareUseCase
	AdminUC     usecase.AdminUseCase
	StatsUC     usecase.StatsUseCase
	BroadcastUC usecase.BroadcastUseCase
}

func NewBotFacade(
	userUC usecase.UserUseCase,
	shareUC usecase.ShareUseCase,
	adminUC usecase.AdminUseCase,
	statsUC usecase.StatsUseCase,
	broadcastUC usecase.BroadcastUseCase,
) *BotFacade {
	return &BotFacade{
		UserUC:      userUC,
		ShareUC:     shareUC,
		AdminUC:     adminUC,
		StatsUC:     statsUC,
		BroadcastUC: broadcastUC,
	}
}

// HandleStart registers or fetches the user and returns the welcome text.
func (b *BotFacade) HandleStart(ctx context.Context, tgID int64, username string) (string, error) {
	if b.UserUC == nil {
		return "", fmt.Errorf("user usecase not available")
	}
	u, err := b.UserUC.RegisterOrFetch(ctx, tgID, username)
	if err != nil {
		return "", fmt.Errorf("register/fetch user: %w", err)
	}
	tier := model.TierFor(u)
	return fmt.Sprintf("👋 Hello!\nShare secrets that self-destruct, anonymously.\nYour tier: %s.\nUse the menu below or /help.", tier.Name), nil
}

// HandleViewDeepLink resolves a viewsecret_<token> start payload and
// delivers the secret into the viewer's chat.
func (b *BotFacade) HandleViewDeepLink(ctx context.Context, tgID int64, payload string) (string, error) {
	token := strings.TrimPrefix(payload, "viewsecret_")
	if token == "" || token == payload {
		return "That link does not look valid.", nil
	}
	res, err := b.ShareUC.ViewByToken(ctx, token, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrShareNotViewable) || errors.Is(err, domain.ErrNotFound) {
			return "🚫 This secret is gone: revoked, expired, or already viewed the maximum number of times.", nil
		}
		return "", err
	}
	if res.Share.DestructMins > 0 {
		return fmt.Sprintf("⏱ This secret self-destructs in %d minute(s).", res.Share.DestructMins), nil
	}
	return "", nil
}

// HandleViewButton is the view-button path for direct shares.
func (b *BotFacade) HandleViewButton(ctx context.Context, tgID int64, shareID string) (string, error) {
	res, err := b.ShareUC.ViewByID(ctx, shareID, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrShareNotViewable) || errors.Is(err, domain.ErrNotFound) {
			return "🚫 This secret is gone: revoked, expired, or already viewed the maximum number of times.", nil
		}
		return "", err
	}
	if res.Share.DestructMins > 0 {
		return fmt.Sprintf("⏱ This secret self-destructs in %d minute(s).", res.Share.DestructMins), nil
	}
	return "", nil
}

// HandleRevoke revokes a share on behalf of its sender.
func (b *BotFacade) HandleRevoke(ctx context.Context, tgID int64, shareID string) (string, error) {
	if err := b.ShareUC.Revoke(ctx, tgID, shareID); err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			return "You can only revoke your own secrets.", nil
		case errors.Is(err, domain.ErrShareNotViewable):
			return "This secret is already in a final state.", nil
		case errors.Is(err, domain.ErrNotFound):
			return "Secret not found.", nil
		}
		return "", err
	}
	return "🗑 Secret revoked. The link no longer works.", nil
}

// ShareSummary renders a single line for the "my secrets" listing.
func (b *BotFacade) ShareSummary(s *model.Share) string {
	var icon string
	switch s.Status {
	case model.ShareStatusActive:
		icon = "🟢"
	case model.ShareStatusViewed:
		icon = "👁"
	default:
		icon = "⚪"
	}
	views := fmt.Sprintf("%d", s.ViewCount)
	if s.MaxViews > 0 {
		views += fmt.Sprintf("/%d", s.MaxViews)
	}
	return fmt.Sprintf("%s %s · %s · views %s · %s",
		icon, s.ID[len(s.ID)-6:], s.Kind, views, s.CreatedAt.Format("Jan 02 15:04"))
}

// ShareDetails renders the detail view shown when a sender opens one of
// their secrets.
func (b *BotFacade) ShareDetails(s *model.Share) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔐 Secret %s\n", s.ID))
	sb.WriteString(fmt.Sprintf("Status: %s\n", s.Status))
	sb.WriteString(fmt.Sprintf("Kind: %s, scope: %s\n", s.Kind, s.Scope))
	if s.MaxViews > 0 {
		sb.WriteString(fmt.Sprintf("Views: %d of %d\n", s.ViewCount, s.MaxViews))
	} else {
		sb.WriteString(fmt.Sprintf("Views: %d (unlimited)\n", s.ViewCount))
	}
	if s.DestructMins > 0 {
		sb.WriteString(fmt.Sprintf("Self-destruct: %d minute(s) after viewing\n", s.DestructMins))
	}
	if s.ExpiresAt != nil {
		sb.WriteString(fmt.Sprintf("Expires: %s\n", s.ExpiresAt.Format(time.RFC1123)))
	}
	if s.Scope == model.ShareScopeLink && s.Status == model.ShareStatusActive {
		sb.WriteString("\n" + b.ShareUC.DeepLink(s))
	}
	return sb.String()
}

// HandleStats builds the sudo-facing stats message.
func (b *BotFacade) HandleStats(ctx context.Context, tgID int64) (string, error) {
	if _, err := b.UserUC.EnsureAllowed(ctx, tgID, model.PrivilegeSudo); err != nil {
		return "", err
	}
	st, err := b.StatsUC.GetStats(ctx)
	if err != nil {
		return "", fmt.Errorf("get stats: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("📊 System Statistics:\n\n")
	sb.WriteString(fmt.Sprintf("👥 Users: %d\n", st.TotalUsers))
	sb.WriteString(fmt.Sprintf("⭐ Premium: %d\n", st.PremiumUsers))
	sb.WriteString(fmt.Sprintf("🚫 Banned: %d\n\n", st.BannedUsers))
	sb.WriteString("🔐 Shares by status:\n")
	for _, status := range []model.ShareStatus{
		model.ShareStatusActive, model.ShareStatusViewed, model.ShareStatusExpired,
		model.ShareStatusDestructed, model.ShareStatusRevoked,
	} {
		if n := st.SharesByStatus[status]; n > 0 {
			sb.WriteString(fmt.Sprintf("  - %s: %d\n", status, n))
		}
	}
	return sb.String(), nil
}

// HandleBroadcast queues a broadcast after the sudo gate.
func (b *BotFacade) HandleBroadcast(ctx context.Context, tgID int64, message string) (string, error) {
	if _, err := b.UserUC.EnsureAllowed(ctx, tgID, model.PrivilegeSudo); err != nil {
		return "", err
	}
	n, err := b.BroadcastUC.BroadcastMessage(ctx, tgID, message)
	if err != nil {
		if errors.Is(err, domain.ErrBroadcastInProgress) {
			return "Another broadcast is still running. Try again later.", nil
		}
		return "", err
	}
	return fmt.Sprintf("📣 Broadcast queued for %d users.", n), nil
}
