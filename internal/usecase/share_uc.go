package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/adapter"
	"telegram-secret-relay/internal/domain/ports/repository"
	"telegram-secret-relay/internal/infra/logging"
	"telegram-secret-relay/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Wizard steps stored in the conversation state.
const (
	StepAwaitingContent    = "awaiting_content"
	StepAwaitingRecipient  = "awaiting_recipient"
	StepAwaitingProtection = "awaiting_protection"
	StepAwaitingDestruct   = "awaiting_destruct"
	StepAwaitingMaxViews   = "awaiting_max_views"
	StepAwaitingConfirm    = "awaiting_confirm"
)

// MySharesPageLimit is the page size of the "my secrets" listing.
const MySharesPageLimit = 5

// InlinePayloadTTL bounds how long an unclaimed inline secret is kept.
const InlinePayloadTTL = 24 * time.Hour

// ShareDraft carries everything collected by the wizard before Create.
type ShareDraft struct {
	SenderID       int64
	Kind           model.ShareKind
	Scope          model.ShareScope
	RecipientID    int64
	Payload        string
	OriginChatID   int64
	OriginMsgID    int
	FileSizeBytes  int64 // largest attachment of the origin message, 0 for text
	Protected      bool
	ShowForwardTag bool
	DestructMins   int
	MaxViews       int
	ExpiresAt      *time.Time
}

// ViewResult is what a successful claim produced.
type ViewResult struct {
	Share          *model.Share
	DeliveredMsgID int
	SenderNotified bool
}

// PayloadCache holds inline payloads between composition and delivery.
type PayloadCache interface {
	Put(ctx context.Context, shareID, payload string) error
	Get(ctx context.Context, shareID string) (string, error)
	Delete(ctx context.Context, shareID string) error
}

type ShareUseCase interface {
	Create(ctx context.Context, draft ShareDraft) (*model.Share, error)
	CreateInline(ctx context.Context, senderID int64, text string) (*model.Share, string, error)
	DeepLink(s *model.Share) string
	Get(ctx context.Context, id string) (*model.Share, error)

	// ViewByToken claims and delivers a link share to the viewer's chat.
	ViewByToken(ctx context.Context, token string, viewerChatID int64) (*ViewResult, error)
	// ViewByID claims and delivers a direct share (view-button path).
	ViewByID(ctx context.Context, id string, viewerChatID int64) (*ViewResult, error)

	Revoke(ctx context.Context, senderID int64, shareID string) error
	ListMine(ctx context.Context, senderID int64, page int) ([]*model.Share, int, error)
	RecordDelivered(ctx context.Context, shareID string, chatID int64, msgID int) error

	// Sweeps, run by the sched workers.
	ExpireDue(ctx context.Context) (int, error)
	DestructDue(ctx context.Context) (int, error)
}

var _ ShareUseCase = (*shareUC)(nil)

type shareUC struct {
	shares      repository.ShareRepository
	users       repository.UserRepository
	bot         adapter.TelegramBotAdapter
	inline      PayloadCache
	botUsername string
	log         *zerolog.Logger
}

func NewShareUseCase(
	shares repository.ShareRepository,
	users repository.UserRepository,
	bot adapter.TelegramBotAdapter,
	inline PayloadCache,
	botUsername string,
	logger *zerolog.Logger,
) *shareUC {
	return &shareUC{
		shares:      shares,
		users:       users,
		bot:         bot,
		inline:      inline,
		botUsername: botUsername,
		log:         logger,
	}
}

func (uc *shareUC) Create(ctx context.Context, draft ShareDraft) (*model.Share, error) {
	defer logging.TraceDuration(uc.log, "ShareUC.Create")()

	sender, err := uc.users.FindByTelegramID(ctx, repository.NoTX, draft.SenderID)
	if err != nil {
		return nil, err
	}
	tier := model.TierFor(sender)

	if draft.Kind == model.ShareKindText && len(draft.Payload) > model.MaxSecretTextLen {
		return nil, domain.ErrPayloadTooLarge
	}
	if draft.FileSizeBytes > tier.MaxFileSizeMB*1024*1024 {
		return nil, domain.ErrPayloadTooLarge
	}
	if draft.DestructMins != 0 && !tier.AllowsDestructMins(draft.DestructMins) {
		return nil, domain.ErrInvalidArgument
	}
	if draft.MaxViews != 0 && !tier.AllowsMaxViews(draft.MaxViews) {
		return nil, domain.ErrInvalidArgument
	}
	if draft.Scope == model.ShareScopeUser && draft.RecipientID <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	active, err := uc.shares.CountActiveBySender(ctx, repository.NoTX, draft.SenderID)
	if err != nil {
		return nil, err
	}
	if active >= tier.MaxActiveShares {
		return nil, domain.ErrShareLimitReached
	}

	s, err := model.NewShare(draft.SenderID, draft.Kind, draft.Scope)
	if err != nil {
		return nil, err
	}
	s.RecipientID = draft.RecipientID
	s.Payload = draft.Payload
	s.OriginChatID = draft.OriginChatID
	s.OriginMsgID = draft.OriginMsgID
	s.Protected = draft.Protected
	s.ShowForwardTag = draft.ShowForwardTag
	s.DestructMins = draft.DestructMins
	s.MaxViews = draft.MaxViews
	s.ExpiresAt = draft.ExpiresAt

	if draft.Scope == model.ShareScopeLink {
		token, err := model.NewAccessToken()
		if err != nil {
			return nil, err
		}
		s.AccessToken = token
	}

	if err := uc.shares.Save(ctx, repository.NoTX, s); err != nil {
		return nil, err
	}

	sender.SharesCreated++
	if err := uc.users.Save(ctx, repository.NoTX, sender); err != nil {
		uc.log.Warn().Err(err).Int64("tg_id", sender.TelegramID).Msg("failed to bump shares counter")
	}

	metrics.IncShareCreated(string(s.Kind))
	uc.log.Info().Str("share_id", s.ID).Str("scope", string(s.Scope)).Msg("share created")
	return s, nil
}

// CreateInline builds a one-view link share from inline-query text and
// parks the payload in the cache until someone claims the link.
func (uc *shareUC) CreateInline(ctx context.Context, senderID int64, text string) (*model.Share, string, error) {
	defer logging.TraceDuration(uc.log, "ShareUC.CreateInline")()
	s, err := uc.Create(ctx, ShareDraft{
		SenderID: senderID,
		Kind:     model.ShareKindInline,
		Scope:    model.ShareScopeLink,
		MaxViews: 1,
	})
	if err != nil {
		return nil, "", err
	}
	if err := uc.inline.Put(ctx, s.ID, text); err != nil {
		return nil, "", err
	}
	return s, uc.DeepLink(s), nil
}

func (uc *shareUC) DeepLink(s *model.Share) string {
	return fmt.Sprintf("https://t.me/%s?start=viewsecret_%s", uc.botUsername, s.AccessToken)
}

func (uc *shareUC) Get(ctx context.Context, id string) (*model.Share, error) {
	return uc.shares.FindByID(ctx, repository.NoTX, id)
}

func (uc *shareUC) ViewByToken(ctx context.Context, token string, viewerChatID int64) (*ViewResult, error) {
	defer logging.TraceDuration(uc.log, "ShareUC.ViewByToken")()
	s, err := uc.shares.ClaimViewByToken(ctx, repository.NoTX, token, viewerChatID, time.Now())
	if err != nil {
		return nil, err
	}
	return uc.deliver(ctx, s, viewerChatID)
}

func (uc *shareUC) ViewByID(ctx context.Context, id string, viewerChatID int64) (*ViewResult, error) {
	defer logging.TraceDuration(uc.log, "ShareUC.ViewByID")()
	s, err := uc.shares.ClaimView(ctx, repository.NoTX, id, viewerChatID, time.Now())
	if err != nil {
		return nil, err
	}
	return uc.deliver(ctx, s, viewerChatID)
}

// deliver pushes the claimed payload to the viewer without anything that
// could identify the sender, then records where the copy landed.
func (uc *shareUC) deliver(ctx context.Context, s *model.Share, viewerChatID int64) (*ViewResult, error) {
	var msgID int
	var err error

	switch s.Kind {
	case model.ShareKindMessage:
		msgID, err = uc.bot.CopyMessage(ctx, adapter.CopyMessageParams{
			ToChatID:       viewerChatID,
			FromChatID:     s.OriginChatID,
			MessageID:      s.OriginMsgID,
			Protected:      s.Protected,
			ShowForwardTag: s.ShowForwardTag,
		})
	case model.ShareKindInline:
		var payload string
		payload, err = uc.inline.Get(ctx, s.ID)
		if errors.Is(err, domain.ErrNotFound) {
			// The cached payload aged out; settle the share as expired so
			// the claimed view is not spent on an empty delivery.
			s.Status = model.ShareStatusExpired
			s.DestructAt = nil
			if saveErr := uc.shares.Save(ctx, repository.NoTX, s); saveErr != nil {
				uc.log.Warn().Err(saveErr).Str("share_id", s.ID).Msg("failed to expire evicted inline share")
			}
			return nil, domain.ErrShareNotViewable
		}
		if err == nil {
			msgID, err = uc.bot.SendMessage(ctx, adapter.SendMessageParams{
				ChatID:    viewerChatID,
				Text:      payload,
				Protected: s.Protected,
			})
		}
		if s.Status == model.ShareStatusDestructed {
			_ = uc.inline.Delete(ctx, s.ID)
		}
	default:
		msgID, err = uc.bot.SendMessage(ctx, adapter.SendMessageParams{
			ChatID:    viewerChatID,
			Text:      s.Payload,
			Protected: s.Protected,
		})
	}
	if err != nil {
		uc.log.Error().Err(err).Str("share_id", s.ID).Msg("failed to deliver share")
		return nil, err
	}

	s.DeliveredChatID = viewerChatID
	s.DeliveredMsgID = msgID
	if err := uc.shares.Save(ctx, repository.NoTX, s); err != nil {
		uc.log.Warn().Err(err).Str("share_id", s.ID).Msg("failed to record delivery")
	}
	metrics.IncShareViewed(string(s.Status))

	notified := uc.notifySender(ctx, s)
	return &ViewResult{Share: s, DeliveredMsgID: msgID, SenderNotified: notified}, nil
}

func (uc *shareUC) notifySender(ctx context.Context, s *model.Share) bool {
	sender, err := uc.users.FindByTelegramID(ctx, repository.NoTX, s.SenderID)
	if err != nil || !sender.Settings.NotifyOnView {
		return false
	}
	text := fmt.Sprintf("👁 Your secret %s was viewed (%d view(s) so far).", s.ID, s.ViewCount)
	if s.Status == model.ShareStatusDestructed {
		text += " It has now self-destructed."
	}
	if _, err := uc.bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: s.SenderID, Text: text}); err != nil {
		uc.log.Warn().Err(err).Str("share_id", s.ID).Msg("failed to notify sender")
		return false
	}
	return true
}

func (uc *shareUC) Revoke(ctx context.Context, senderID int64, shareID string) error {
	defer logging.TraceDuration(uc.log, "ShareUC.Revoke")()
	s, err := uc.shares.FindByID(ctx, repository.NoTX, shareID)
	if err != nil {
		return err
	}
	if s.SenderID != senderID {
		return domain.ErrUnauthorized
	}
	if s.Status != model.ShareStatusActive && s.Status != model.ShareStatusViewed {
		return domain.ErrShareNotViewable
	}
	s.Status = model.ShareStatusRevoked
	s.DestructAt = nil
	if err := uc.shares.Save(ctx, repository.NoTX, s); err != nil {
		return err
	}
	if s.Kind == model.ShareKindInline {
		_ = uc.inline.Delete(ctx, s.ID)
	}
	metrics.IncShareRevoked()
	return nil
}

func (uc *shareUC) ListMine(ctx context.Context, senderID int64, page int) ([]*model.Share, int, error) {
	defer logging.TraceDuration(uc.log, "ShareUC.ListMine")()
	if page < 0 {
		page = 0
	}
	return uc.shares.ListBySender(ctx, repository.NoTX, senderID, page*MySharesPageLimit, MySharesPageLimit)
}

func (uc *shareUC) RecordDelivered(ctx context.Context, shareID string, chatID int64, msgID int) error {
	s, err := uc.shares.FindByID(ctx, repository.NoTX, shareID)
	if err != nil {
		return err
	}
	s.DeliveredChatID = chatID
	s.DeliveredMsgID = msgID
	return uc.shares.Save(ctx, repository.NoTX, s)
}

func (uc *shareUC) ExpireDue(ctx context.Context) (int, error) {
	defer logging.TraceDuration(uc.log, "ShareUC.ExpireDue")()
	expired, err := uc.shares.ExpireDue(ctx, repository.NoTX, time.Now())
	if err != nil {
		return 0, err
	}
	for _, s := range expired {
		if s.Kind == model.ShareKindInline {
			_ = uc.inline.Delete(ctx, s.ID)
		}
	}
	if n := len(expired); n > 0 {
		metrics.AddSharesExpired(n)
	}
	return len(expired), nil
}

// DestructDue deletes delivered copies whose timer elapsed and settles
// the share in the destructed state.
func (uc *shareUC) DestructDue(ctx context.Context) (int, error) {
	defer logging.TraceDuration(uc.log, "ShareUC.DestructDue")()
	due, err := uc.shares.ListDestructDue(ctx, repository.NoTX, time.Now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range due {
		if err := uc.bot.DeleteMessage(ctx, s.DeliveredChatID, s.DeliveredMsgID); err != nil {
			uc.log.Warn().Err(err).Str("share_id", s.ID).Msg("failed to delete delivered copy")
		}
		s.Status = model.ShareStatusDestructed
		s.DeliveredChatID = 0
		s.DeliveredMsgID = 0
		s.DestructAt = nil
		if err := uc.shares.Save(ctx, repository.NoTX, s); err != nil {
			uc.log.Error().Err(err).Str("share_id", s.ID).Msg("failed to settle destructed share")
			continue
		}
		n++
	}
	if n > 0 {
		metrics.AddSharesDestructed(n)
	}
	return n, nil
}
