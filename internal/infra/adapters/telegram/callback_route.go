package telegram

import (
	"context"
	"strconv"
	"strings"

	"telegram-secret-relay/internal/domain/ports/adapter"
)

// msgID is the message the tapped keyboard hangs off; 0 when telegram
// no longer reports it (old callbacks).
type cbHandler func(ctx context.Context, chatID int64, msgID int, data string) error
type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		"cmd:menu":      r.menuCBRoute,
		"cmd:share":     r.shareCBRoute,
		"cmd:mysecrets": r.mySecretsCBRoute,
		"cmd:settings":  r.settingsCBRoute,
		"cmd:cancel":    r.cancelCBRoute,
	}
}

func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: "view:", Fn: r.viewPrefixCBRoute},
		{Prefix: "detail:", Fn: r.detailPrefixCBRoute},
		{Prefix: "revoke:", Fn: r.revokePrefixCBRoute},
		{Prefix: "set:", Fn: r.settingTogglePrefixCBRoute},
		{Prefix: "page:", Fn: r.pagePrefixCBRoute},
		{Prefix: "flow:", Fn: r.flowPrefixCBRoute},
	}
}

func (r *RealTelegramBotAdapter) menuCBRoute(ctx context.Context, id int64, _ int, _ string) error {
	return r.sendMainMenu(ctx, id, "Choose an action:")
}

func (r *RealTelegramBotAdapter) shareCBRoute(ctx context.Context, id int64, _ int, _ string) error {
	return r.startShareFlow(ctx, id)
}

func (r *RealTelegramBotAdapter) mySecretsCBRoute(ctx context.Context, id int64, _ int, _ string) error {
	return r.sendMySecretsPage(ctx, id, 0)
}

func (r *RealTelegramBotAdapter) settingsCBRoute(ctx context.Context, id int64, _ int, _ string) error {
	return r.sendSettingsMenu(ctx, id)
}

func (r *RealTelegramBotAdapter) cancelCBRoute(ctx context.Context, id int64, _ int, _ string) error {
	if err := r.states.ClearState(ctx, id); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", id).Msg("failed to clear wizard state")
	}
	return r.sendMainMenu(ctx, id, "Cancelled. Nothing was shared.")
}

// viewPrefixCBRoute is the "🔓 View" button on a received direct secret.
func (r *RealTelegramBotAdapter) viewPrefixCBRoute(ctx context.Context, id int64, _ int, data string) error {
	shareID := strings.TrimPrefix(data, "view:")
	reply, err := r.facade.HandleViewButton(ctx, id, shareID)
	if err != nil {
		return r.sendText(ctx, id, "Failed to open this secret. Try again later.")
	}
	if reply != "" {
		return r.sendText(ctx, id, reply)
	}
	return nil
}

// detailPrefixCBRoute shows a sender their own share with controls.
func (r *RealTelegramBotAdapter) detailPrefixCBRoute(ctx context.Context, id int64, _ int, data string) error {
	shareID := strings.TrimPrefix(data, "detail:")
	s, err := r.facade.ShareUC.Get(ctx, shareID)
	if err != nil {
		return r.sendText(ctx, id, "Secret not found.")
	}
	if s.SenderID != id {
		return r.sendText(ctx, id, "This is not your secret.")
	}

	rows := [][]adapter.Button{
		{{Text: "🗑 Revoke", Data: "revoke:" + s.ID}},
		{{Text: "◀️ Back", Data: "cmd:mysecrets"}},
	}
	return r.sendButtons(ctx, id, r.facade.ShareDetails(s), rows)
}

func (r *RealTelegramBotAdapter) revokePrefixCBRoute(ctx context.Context, id int64, _ int, data string) error {
	shareID := strings.TrimPrefix(data, "revoke:")
	reply, err := r.facade.HandleRevoke(ctx, id, shareID)
	if err != nil {
		return r.sendText(ctx, id, "Failed to revoke this secret.")
	}
	if err := r.sendText(ctx, id, reply); err != nil {
		return err
	}
	return r.sendMySecretsPage(ctx, id, 0)
}

func (r *RealTelegramBotAdapter) settingTogglePrefixCBRoute(ctx context.Context, id int64, _ int, data string) error {
	setting := strings.TrimPrefix(data, "set:")
	if _, err := r.facade.UserUC.ToggleSetting(ctx, id, setting); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", id).Str("setting", setting).Msg("toggle failed")
		return r.sendText(ctx, id, "Failed to change this setting.")
	}
	return r.sendSettingsMenu(ctx, id)
}

func (r *RealTelegramBotAdapter) pagePrefixCBRoute(ctx context.Context, id int64, msgID int, data string) error {
	page, err := strconv.Atoi(strings.TrimPrefix(data, "page:"))
	if err != nil || page < 0 {
		page = 0
	}
	if msgID != 0 {
		return r.editMySecretsPage(ctx, id, msgID, page)
	}
	return r.sendMySecretsPage(ctx, id, page)
}

func (r *RealTelegramBotAdapter) flowPrefixCBRoute(ctx context.Context, id int64, _ int, data string) error {
	return r.flowCallback(ctx, id, strings.TrimPrefix(data, "flow:"))
}
