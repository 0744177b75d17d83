package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
	"telegram-secret-relay/internal/domain/ports/adapter"
	"telegram-secret-relay/internal/domain/ports/repository"
	"telegram-secret-relay/internal/usecase"
)

// The share wizard walks content -> recipient -> protection -> destruct
// timer -> view cap -> confirm. Choices arrive as flow:* callbacks, free
// text answers arrive through feedFlow. State lives in Redis and times
// out on its own, so an abandoned wizard needs no cleanup.

func (r *RealTelegramBotAdapter) startShareFlow(ctx context.Context, chatID int64) error {
	state := &repository.ConversationState{
		Step: usecase.StepAwaitingContent,
		Data: map[string]string{},
	}
	if err := r.states.SetState(ctx, chatID, state); err != nil {
		r.log.Error().Err(err).Int64("tg_id", chatID).Msg("failed to start share wizard")
		return r.sendText(ctx, chatID, "Something went wrong. Try /share again.")
	}
	return r.sendText(ctx, chatID, "🔐 Send me the secret now. Text stays hidden until viewed; any other message (photo, file, voice) is relayed as an anonymous copy.\n\n/cancel to abort.")
}

// feedFlow consumes a non-command message as a wizard answer. Returns
// false when no wizard is running for this user.
func (r *RealTelegramBotAdapter) feedFlow(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	state, err := r.states.GetState(ctx, msg.From.ID)
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, nil
	}

	switch state.Step {
	case usecase.StepAwaitingContent:
		return true, r.flowContent(ctx, msg, state)
	case usecase.StepAwaitingRecipient:
		return true, r.flowRecipient(ctx, msg, state)
	default:
		// Mid-wizard free text while we expect a button tap.
		return true, r.sendText(ctx, msg.Chat.ID, "Please use the buttons above, or /cancel.")
	}
}

func (r *RealTelegramBotAdapter) flowContent(ctx context.Context, msg *tgbotapi.Message, state *repository.ConversationState) error {
	chatID := msg.Chat.ID

	user, userErr := r.facade.UserUC.GetByTelegramID(ctx, msg.From.ID)
	tier := model.TierFree
	if userErr == nil {
		tier = model.TierFor(user)
	}

	if msg.Text != "" {
		if len(msg.Text) > model.MaxSecretTextLen {
			return r.sendText(ctx, chatID, fmt.Sprintf("Text secrets are capped at %d characters. Send something shorter.", model.MaxSecretTextLen))
		}
		state.Data["kind"] = string(model.ShareKindText)
		state.Data["payload"] = msg.Text
	} else {
		size := mediaFileSize(msg)
		if size > tier.MaxFileSizeMB*1024*1024 {
			return r.sendText(ctx, chatID, fmt.Sprintf("Your tier relays files up to %d MB. Send something smaller.", tier.MaxFileSizeMB))
		}
		state.Data["kind"] = string(model.ShareKindMessage)
		state.Data["origin_chat"] = strconv.FormatInt(chatID, 10)
		state.Data["origin_msg"] = strconv.Itoa(msg.MessageID)
		state.Data["size"] = strconv.FormatInt(size, 10)
	}

	// Seed protection defaults from the sender's settings.
	if userErr == nil {
		state.Data["protected"] = strconv.FormatBool(user.Settings.ProtectContent)
		state.Data["tag"] = strconv.FormatBool(user.Settings.ShowForwardTag)
	}

	state.Step = usecase.StepAwaitingRecipient
	if err := r.states.SetState(ctx, msg.From.ID, state); err != nil {
		return err
	}

	rows := [][]adapter.Button{
		{{Text: "🔗 Anyone with the link", Data: "flow:scope:link"}},
		{{Text: "👤 A specific user", Data: "flow:scope:user"}},
		{{Text: "✖️ Cancel", Data: "cmd:cancel"}},
	}
	return r.sendButtons(ctx, chatID, "Who should be able to view it?", rows)
}

func (r *RealTelegramBotAdapter) flowRecipient(ctx context.Context, msg *tgbotapi.Message, state *repository.ConversationState) error {
	chatID := msg.Chat.ID
	if state.Data["scope"] != string(model.ShareScopeUser) {
		return r.sendText(ctx, chatID, "Please use the buttons above, or /cancel.")
	}

	var recipient int64
	text := strings.TrimSpace(msg.Text)
	switch {
	case msg.ForwardFrom != nil:
		recipient = msg.ForwardFrom.ID
	case strings.HasPrefix(text, "@"):
		u, err := r.facade.UserUC.FindByUsername(ctx, text)
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidArgument) {
			return r.sendText(ctx, chatID, "I don't know that username. The recipient has to start the bot once, or you can send their numeric ID instead.")
		}
		if err != nil {
			return err
		}
		recipient = u.TelegramID
	default:
		if id, err := strconv.ParseInt(text, 10, 64); err == nil && id > 0 {
			recipient = id
		}
	}
	if recipient == 0 {
		return r.sendText(ctx, chatID, "Send the recipient's numeric Telegram ID or @username, or forward one of their messages.")
	}

	state.Data["recipient"] = strconv.FormatInt(recipient, 10)
	if err := r.states.SetState(ctx, msg.From.ID, state); err != nil {
		return err
	}
	return r.askProtection(ctx, msg.From.ID, state)
}

// flowCallback dispatches flow:* button taps (the prefix is stripped).
func (r *RealTelegramBotAdapter) flowCallback(ctx context.Context, chatID int64, action string) error {
	state, err := r.states.GetState(ctx, chatID)
	if err != nil {
		return err
	}
	if state == nil {
		return r.sendText(ctx, chatID, "This wizard has expired. Start again with /share.")
	}

	switch {
	case action == "scope:link":
		state.Data["scope"] = string(model.ShareScopeLink)
		return r.askProtection(ctx, chatID, state)

	case action == "scope:user":
		state.Data["scope"] = string(model.ShareScopeUser)
		state.Step = usecase.StepAwaitingRecipient
		if err := r.states.SetState(ctx, chatID, state); err != nil {
			return err
		}
		return r.sendText(ctx, chatID, "Send the recipient's numeric Telegram ID or @username, or forward one of their messages.")

	case action == "prot:on", action == "prot:off":
		state.Data["protected"] = strconv.FormatBool(action == "prot:on")
		return r.askDestruct(ctx, chatID, state)

	case hasPrefixNum(action, "destruct:"):
		state.Data["destruct"] = action[len("destruct:"):]
		return r.askMaxViews(ctx, chatID, state)

	case hasPrefixNum(action, "views:"):
		state.Data["views"] = action[len("views:"):]
		return r.askConfirm(ctx, chatID, state)

	case action == "confirm":
		return r.finishFlow(ctx, chatID, state)

	default:
		r.log.Warn().Str("action", action).Msg("unknown wizard action")
		return r.sendText(ctx, chatID, "Please use the buttons above, or /cancel.")
	}
}

func hasPrefixNum(s, prefix string) bool {
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return false
	}
	_, err := strconv.Atoi(s[len(prefix):])
	return err == nil
}

func (r *RealTelegramBotAdapter) askProtection(ctx context.Context, chatID int64, state *repository.ConversationState) error {
	state.Step = usecase.StepAwaitingProtection
	if err := r.states.SetState(ctx, chatID, state); err != nil {
		return err
	}
	rows := [][]adapter.Button{
		{{Text: "🔒 Block forwarding and saving", Data: "flow:prot:on"}},
		{{Text: "🔓 Deliver normally", Data: "flow:prot:off"}},
		{{Text: "✖️ Cancel", Data: "cmd:cancel"}},
	}
	return r.sendButtons(ctx, chatID, "Protect the delivered content?", rows)
}

func (r *RealTelegramBotAdapter) askDestruct(ctx context.Context, chatID int64, state *repository.ConversationState) error {
	state.Step = usecase.StepAwaitingDestruct
	if err := r.states.SetState(ctx, chatID, state); err != nil {
		return err
	}

	tier := model.TierFree
	if user, err := r.facade.UserUC.GetByTelegramID(ctx, chatID); err == nil {
		tier = model.TierFor(user)
	}

	rows := [][]adapter.Button{{{Text: "♾ No timer", Data: "flow:destruct:0"}}}
	var row []adapter.Button
	for _, m := range tier.SelfDestructMins {
		row = append(row, adapter.Button{Text: destructLabel(m), Data: "flow:destruct:" + strconv.Itoa(m)})
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []adapter.Button{{Text: "✖️ Cancel", Data: "cmd:cancel"}})
	return r.sendButtons(ctx, chatID, "⏱ Self-destruct after viewing?", rows)
}

func destructLabel(mins int) string {
	if mins >= 60 && mins%60 == 0 {
		return strconv.Itoa(mins/60) + "h"
	}
	return strconv.Itoa(mins) + "m"
}

func (r *RealTelegramBotAdapter) askMaxViews(ctx context.Context, chatID int64, state *repository.ConversationState) error {
	state.Step = usecase.StepAwaitingMaxViews
	if err := r.states.SetState(ctx, chatID, state); err != nil {
		return err
	}

	tier := model.TierFree
	if user, err := r.facade.UserUC.GetByTelegramID(ctx, chatID); err == nil {
		tier = model.TierFor(user)
	}

	var rows [][]adapter.Button
	var row []adapter.Button
	for _, n := range tier.MaxViewsChoices {
		label := strconv.Itoa(n) + "×"
		if n == 0 {
			label = "♾ Unlimited"
		}
		row = append(row, adapter.Button{Text: label, Data: "flow:views:" + strconv.Itoa(n)})
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []adapter.Button{{Text: "✖️ Cancel", Data: "cmd:cancel"}})
	return r.sendButtons(ctx, chatID, "👁 How many times can it be viewed?", rows)
}

func (r *RealTelegramBotAdapter) askConfirm(ctx context.Context, chatID int64, state *repository.ConversationState) error {
	state.Step = usecase.StepAwaitingConfirm
	if err := r.states.SetState(ctx, chatID, state); err != nil {
		return err
	}

	var summary string
	if state.Data["scope"] == string(model.ShareScopeUser) {
		summary = "Recipient: user " + state.Data["recipient"] + "\n"
	} else {
		summary = "Recipient: anyone with the link\n"
	}
	if state.Data["protected"] == "true" {
		summary += "Protection: forwarding and saving blocked\n"
	} else {
		summary += "Protection: off\n"
	}
	if d, _ := strconv.Atoi(state.Data["destruct"]); d > 0 {
		summary += "Self-destruct: " + destructLabel(d) + " after viewing\n"
	} else {
		summary += "Self-destruct: none\n"
	}
	if v, _ := strconv.Atoi(state.Data["views"]); v > 0 {
		summary += "View limit: " + strconv.Itoa(v)
	} else {
		summary += "View limit: unlimited"
	}

	rows := [][]adapter.Button{
		{{Text: "✅ Share it", Data: "flow:confirm"}},
		{{Text: "✖️ Cancel", Data: "cmd:cancel"}},
	}
	return r.sendButtons(ctx, chatID, "Ready to share?\n\n"+summary, rows)
}

func (r *RealTelegramBotAdapter) finishFlow(ctx context.Context, chatID int64, state *repository.ConversationState) error {
	draft, err := draftFromState(chatID, state)
	if err != nil {
		r.log.Warn().Err(err).Int64("tg_id", chatID).Msg("corrupt wizard state")
		_ = r.states.ClearState(ctx, chatID)
		return r.sendText(ctx, chatID, "This wizard has expired. Start again with /share.")
	}

	s, err := r.facade.ShareUC.Create(ctx, draft)
	if err != nil {
		_ = r.states.ClearState(ctx, chatID)
		switch {
		case errors.Is(err, domain.ErrShareLimitReached):
			return r.sendText(ctx, chatID, "You have reached your active secret limit. Revoke some in /mysecrets or upgrade to premium.")
		case errors.Is(err, domain.ErrPayloadTooLarge):
			return r.sendText(ctx, chatID, "The secret is too large for your tier.")
		case errors.Is(err, domain.ErrInvalidArgument):
			return r.sendText(ctx, chatID, "Those options are not available on your tier.")
		}
		r.log.Error().Err(err).Int64("tg_id", chatID).Msg("share creation failed")
		return r.sendText(ctx, chatID, "Failed to create the secret. Try again later.")
	}

	if err := r.states.ClearState(ctx, chatID); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", chatID).Msg("failed to clear wizard state")
	}

	if s.Scope == model.ShareScopeLink {
		link := r.facade.ShareUC.DeepLink(s)
		return r.sendText(ctx, chatID, "✅ Secret created. Anyone with this link can view it:\n\n"+link)
	}

	// Direct share: drop a control message with a view button into the
	// recipient's chat. Delivery only works if they have started the bot.
	rows := [][]adapter.Button{{{Text: "🔓 View secret", Data: "view:" + s.ID}}}
	_, err = r.SendMessage(ctx, adapter.SendMessageParams{
		ChatID:      s.RecipientID,
		Text:        "🔐 Someone sent you an anonymous secret.",
		ReplyMarkup: &adapter.ReplyMarkup{Buttons: rows, IsInline: true},
	})
	if err != nil {
		r.log.Warn().Err(err).Str("share_id", s.ID).Msg("recipient unreachable")
		return r.sendText(ctx, chatID, "✅ Secret created, but the recipient could not be reached. They need to start the bot first; the secret stays in /mysecrets meanwhile.")
	}
	return r.sendText(ctx, chatID, "✅ Secret sent anonymously.")
}

func draftFromState(senderID int64, state *repository.ConversationState) (usecase.ShareDraft, error) {
	kind := model.ShareKind(state.Data["kind"])
	scope := model.ShareScope(state.Data["scope"])
	if kind == "" || scope == "" {
		return usecase.ShareDraft{}, domain.ErrFlowExpired
	}

	draft := usecase.ShareDraft{
		SenderID:  senderID,
		Kind:      kind,
		Scope:     scope,
		Payload:   state.Data["payload"],
		Protected: state.Data["protected"] == "true",
	}
	draft.ShowForwardTag = state.Data["tag"] == "true"
	if v := state.Data["recipient"]; v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return usecase.ShareDraft{}, err
		}
		draft.RecipientID = id
	}
	if v := state.Data["origin_chat"]; v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return usecase.ShareDraft{}, err
		}
		draft.OriginChatID = id
	}
	if v := state.Data["origin_msg"]; v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return usecase.ShareDraft{}, err
		}
		draft.OriginMsgID = id
	}
	if v := state.Data["destruct"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return usecase.ShareDraft{}, err
		}
		draft.DestructMins = n
	}
	if v := state.Data["views"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return usecase.ShareDraft{}, err
		}
		draft.MaxViews = n
	}
	if v := state.Data["size"]; v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return usecase.ShareDraft{}, err
		}
		draft.FileSizeBytes = n
	}
	return draft, nil
}

// mediaFileSize returns the size of the largest attachment of the
// message, or 0 for plain text.
func mediaFileSize(msg *tgbotapi.Message) int64 {
	var size int
	switch {
	case msg.Document != nil:
		size = msg.Document.FileSize
	case msg.Video != nil:
		size = msg.Video.FileSize
	case msg.Audio != nil:
		size = msg.Audio.FileSize
	case msg.Voice != nil:
		size = msg.Voice.FileSize
	case msg.VideoNote != nil:
		size = msg.VideoNote.FileSize
	case msg.Animation != nil:
		size = msg.Animation.FileSize
	case msg.Sticker != nil:
		size = msg.Sticker.FileSize
	case len(msg.Photo) > 0:
		for _, p := range msg.Photo {
			if p.FileSize > size {
				size = p.FileSize
			}
		}
	}
	return int64(size)
}
