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
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":     r.handleStartCommand,
		"help":      r.handleHelpCommand,
		"share":     r.handleShareCommand,
		"mysecrets": r.handleMySecretsCommand,
		"settings":  r.handleSettingsCommand,
		"cancel":    r.handleCancelCommand,

		// Gated commands; the gate itself lives in the usecases, these
		// wrappers just give a friendly reply on refusal.
		"stats":         r.sudoOnly(r.handleStatsCommand),
		"broadcast":     r.sudoOnly(r.handleBroadcastCommand),
		"grantpremium":  r.sudoOnly(r.handleGrantPremiumCommand),
		"revokepremium": r.sudoOnly(r.handleRevokePremiumCommand),
		"ban":           r.sudoOnly(r.handleBanCommand),
		"unban":         r.sudoOnly(r.handleUnbanCommand),
		"sudo":          r.sudoOnly(r.handleSudoCommand),
		"unsudo":        r.sudoOnly(r.handleUnsudoCommand),
	}
}

// sudoOnly short-circuits commands that need at least sudo. The target
// usecase checks again (owner-only actions included), so this is purely
// a UX gate.
func (r *RealTelegramBotAdapter) sudoOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if _, err := r.facade.UserUC.EnsureAllowed(ctx, message.From.ID, model.PrivilegeSudo); err != nil {
			if errors.Is(err, domain.ErrBanned) {
				return r.sendText(ctx, message.Chat.ID, "You are banned from using this bot.")
			}
			return r.sendText(ctx, message.Chat.ID, "You are not allowed to use this command.")
		}
		return next(ctx, message)
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleStart(ctx, message.From.ID, message.From.UserName)
	if err != nil {
		if errors.Is(err, domain.ErrBanned) {
			return r.sendText(ctx, message.Chat.ID, "You are banned from using this bot.")
		}
		return r.sendText(ctx, message.Chat.ID, "Failed to initialize your profile.")
	}

	// Deep-link payload: /start viewsecret_<token> delivers a secret.
	if payload := strings.TrimSpace(message.CommandArguments()); strings.HasPrefix(payload, "viewsecret_") {
		reply, err := r.facade.HandleViewDeepLink(ctx, message.From.ID, payload)
		if err != nil {
			return r.sendText(ctx, message.Chat.ID, "Failed to open this secret. Try again later.")
		}
		if reply != "" {
			return r.sendText(ctx, message.Chat.ID, reply)
		}
		return nil
	}

	return r.sendMainMenu(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	help := "Commands:\n" +
		"/share - create a new secret\n" +
		"/mysecrets - list and manage your secrets\n" +
		"/settings - notification and delivery settings\n" +
		"/cancel - abort the current wizard\n\n" +
		"You can also type @" + r.cfg.Username + " <text> in any chat to send a one-time secret inline."
	return r.sendText(ctx, message.Chat.ID, help)
}

func (r *RealTelegramBotAdapter) handleShareCommand(ctx context.Context, message *tgbotapi.Message) error {
	if _, err := r.facade.UserUC.RegisterOrFetch(ctx, message.From.ID, message.From.UserName); err != nil {
		return r.sendText(ctx, message.Chat.ID, "Failed to initialize your profile.")
	}
	if _, err := r.facade.UserUC.EnsureAllowed(ctx, message.From.ID, model.PrivilegeNone); err != nil {
		if errors.Is(err, domain.ErrBanned) {
			return r.sendText(ctx, message.Chat.ID, "You are banned from using this bot.")
		}
		return err
	}
	return r.startShareFlow(ctx, message.Chat.ID)
}

func (r *RealTelegramBotAdapter) handleMySecretsCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendMySecretsPage(ctx, message.Chat.ID, 0)
}

func (r *RealTelegramBotAdapter) handleSettingsCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendSettingsMenu(ctx, message.Chat.ID)
}

func (r *RealTelegramBotAdapter) handleCancelCommand(ctx context.Context, message *tgbotapi.Message) error {
	if err := r.states.ClearState(ctx, message.From.ID); err != nil {
		r.log.Warn().Err(err).Int64("tg_id", message.From.ID).Msg("failed to clear wizard state")
	}
	return r.sendMainMenu(ctx, message.Chat.ID, "Cancelled. Nothing was shared.")
}

func (r *RealTelegramBotAdapter) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleStats(ctx, message.From.ID)
	if err != nil {
		return r.sendText(ctx, message.Chat.ID, "Failed to collect statistics.")
	}
	return r.sendText(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleBroadcastCommand(ctx context.Context, message *tgbotapi.Message) error {
	body := strings.TrimSpace(message.CommandArguments())
	if body == "" {
		return r.sendText(ctx, message.Chat.ID, "Usage: /broadcast <message>")
	}
	text, err := r.facade.HandleBroadcast(ctx, message.From.ID, body)
	if err != nil {
		return r.sendText(ctx, message.Chat.ID, "Failed to start the broadcast.")
	}
	return r.sendText(ctx, message.Chat.ID, text)
}

// targetArg parses "<tg_id> [rest...]" admin command arguments.
func targetArg(message *tgbotapi.Message) (int64, []string, error) {
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		return 0, nil, domain.ErrInvalidArgument
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, domain.ErrInvalidArgument
	}
	return id, args[1:], nil
}

func (r *RealTelegramBotAdapter) handleGrantPremiumCommand(ctx context.Context, message *tgbotapi.Message) error {
	target, rest, err := targetArg(message)
	if err != nil {
		return r.sendText(ctx, message.Chat.ID, "Usage: /grantpremium <tg_id> [days]")
	}
	days := 0
	if len(rest) > 0 {
		if days, err = strconv.Atoi(rest[0]); err != nil {
			return r.sendText(ctx, message.Chat.ID, "Usage: /grantpremium <tg_id> [days]")
		}
	}
	u, err := r.facade.AdminUC.GrantPremium(ctx, message.From.ID, target, days)
	if err != nil {
		return r.adminErrorReply(ctx, message.Chat.ID, err)
	}
	until := "unknown"
	if u.PremiumUntil != nil {
		until = u.PremiumUntil.Format("2006-01-02")
	}
	return r.sendText(ctx, message.Chat.ID, fmt.Sprintf("⭐ User %d is premium until %s.", target, until))
}

func (r *RealTelegramBotAdapter) handleRevokePremiumCommand(ctx context.Context, message *tgbotapi.Message) error {
	target, _, err := targetArg(message)
	if err != nil {
		return r.sendText(ctx, message.Chat.ID, "Usage: /revokepremium <tg_id>")
	}
	if _, err := r.facade.AdminUC.RevokePremium(ctx, message.From.ID, target); err != nil {
		return r.adminErrorReply(ctx, message.Chat.ID, err)
	}
	return r.sendText(ctx, message.Chat.ID, fmt.Sprintf("Premium revoked for user %d.", target))
}

func (r *RealTelegramBotAdapter) handleBanCommand(ctx context.Context, message *tgbotapi.Message) error {
	target, rest, err := targetArg(message)
	if err != nil {
		return r.sendText(ctx, message.Chat.ID, "Usage: /ban <tg_id> [reason]")
	}
	reason := strings.Join(rest, " ")
	if _, err := r.facade.AdminUC.Ban(ctx, message.From.ID, target, reason); err != nil {
		return r.adminErrorReply(ctx, message.Chat.ID, err)
	}
	return r.sendText(ctx, message.Chat.ID, fmt.Sprintf("🚫 User %d banned.", target))
}

func (r *RealTelegramBotAdapter) handleUnbanCommand(ctx context.Context, message *tgbotapi.Message) error {
	target, _, err := targetArg(message)
	if err != nil {
		return r.sendText(ctx, message.Chat.ID, "Usage: /unban <tg_id>")
	}
	if _, err := r.facade.AdminUC.Unban(ctx, message.From.ID, target); err != nil {
		return r.adminErrorReply(ctx, message.Chat.ID, err)
	}
	return r.sendText(ctx, message.Chat.ID, fmt.Sprintf("User %d unbanned.", target))
}

func (r *RealTelegramBotAdapter) handleSudoCommand(ctx context.Context, message *tgbotapi.Message) error {
	target, _, err := targetArg(message)
	if err != nil {
		return r.sendText(ctx, message.Chat.ID, "Usage: /sudo <tg_id>")
	}
	if _, err := r.facade.AdminUC.SetSudo(ctx, message.From.ID, target, true); err != nil {
		return r.adminErrorReply(ctx, message.Chat.ID, err)
	}
	return r.sendText(ctx, message.Chat.ID, fmt.Sprintf("User %d is now sudo.", target))
}

func (r *RealTelegramBotAdapter) handleUnsudoCommand(ctx context.Context, message *tgbotapi.Message) error {
	target, _, err := targetArg(message)
	if err != nil {
		return r.sendText(ctx, message.Chat.ID, "Usage: /unsudo <tg_id>")
	}
	if _, err := r.facade.AdminUC.SetSudo(ctx, message.From.ID, target, false); err != nil {
		return r.adminErrorReply(ctx, message.Chat.ID, err)
	}
	return r.sendText(ctx, message.Chat.ID, fmt.Sprintf("User %d is no longer sudo.", target))
}

func (r *RealTelegramBotAdapter) adminErrorReply(ctx context.Context, chatID int64, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return r.sendText(ctx, chatID, "No such user. They must /start the bot first.")
	case errors.Is(err, domain.ErrUnauthorized):
		return r.sendText(ctx, chatID, "You are not allowed to do that to this user.")
	default:
		r.log.Error().Err(err).Msg("admin command failed")
		return r.sendText(ctx, chatID, "The action failed. Check the logs.")
	}
}
