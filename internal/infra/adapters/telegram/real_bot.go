package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-secret-relay/internal/application"
	"telegram-secret-relay/internal/config"
	"telegram-secret-relay/internal/domain/ports/adapter"
	"telegram-secret-relay/internal/domain/ports/repository"
	"telegram-secret-relay/internal/infra/metrics"
	red "telegram-secret-relay/internal/infra/redis"
	"telegram-secret-relay/internal/usecase"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter uses tgbotapi to poll updates and delegates to
// the BotFacade. Outbound deliveries go through raw API requests so
// protect_content can ride along on every send.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.TelegramConfig
	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	states      repository.StateRepository
	log         *zerolog.Logger

	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(
	cfg *config.TelegramConfig,
	facade *application.BotFacade,
	rateLimiter *red.RateLimiter,
	states repository.StateRepository,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("telegram config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	if states == nil {
		return nil, errors.New("state repository is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		facade:        facade,
		rateLimiter:   rateLimiter,
		states:        states,
		log:           logger,
		updateWorkers: workers,
	}, nil
}

func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up := <-updateChan:
					if err := r.handleUpdate(ctx, up); err != nil {
						r.log.Warn().Err(err).Int("worker", id).Msg("update handling failed")
					}
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	if update.InlineQuery != nil {
		return r.handleInlineQuery(ctx, update.InlineQuery)
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}
	tgID := msg.From.ID

	command := "message"
	if msg.IsCommand() {
		command = "/" + msg.Command()
	}
	if r.rateLimiter != nil {
		allowed, err := r.rateLimiter.AllowCommand(ctx, tgID, command)
		if err != nil {
			r.log.Warn().Err(err).Msg("rate limit check failed")
		} else if !allowed {
			metrics.IncRateLimitTriggered()
			return r.sendText(ctx, msg.Chat.ID, "Rate limit exceeded. Please try again later.")
		}
	}

	if msg.IsCommand() {
		metrics.IncTelegramCommand(command)
		if fn, ok := r.commandRoutes()[msg.Command()]; ok {
			return fn(ctx, msg)
		}
		return r.sendText(ctx, msg.Chat.ID, "Unknown command. Try /help.")
	}

	// Any non-command message may be a wizard step answer.
	handled, err := r.feedFlow(ctx, msg)
	if err != nil {
		return err
	}
	if !handled {
		return r.sendMainMenu(ctx, msg.Chat.ID, "Use the buttons below, or /help for commands.")
	}
	return nil
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Stop the telegram spinner when we return.
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	if chatID == 0 {
		return nil
	}

	data := strings.TrimSpace(query.Data)
	msgID := 0
	if query.Message != nil {
		msgID = query.Message.MessageID
	}

	if r.rateLimiter != nil {
		if allowed, err := r.rateLimiter.AllowCallback(ctx, chatID); err == nil && !allowed {
			metrics.IncRateLimitTriggered()
			return r.sendText(ctx, chatID, "Rate limit exceeded. Please try again later.")
		}
	}

	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, chatID, msgID, data)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, chatID, msgID, data)
		}
	}
	r.log.Warn().Str("data", data).Msg("unknown callback data")
	return nil
}

// handleInlineQuery turns typed inline text into a one-view link share
// and answers with a single "send this secret" article.
func (r *RealTelegramBotAdapter) handleInlineQuery(ctx context.Context, q *tgbotapi.InlineQuery) error {
	if q == nil || q.From == nil {
		return nil
	}
	text := strings.TrimSpace(q.Query)
	if text == "" {
		return nil
	}

	if _, err := r.facade.UserUC.RegisterOrFetch(ctx, q.From.ID, q.From.UserName); err != nil {
		return err
	}
	s, link, err := r.facade.ShareUC.CreateInline(ctx, q.From.ID, text)
	if err != nil {
		r.log.Warn().Err(err).Int64("tg_id", q.From.ID).Msg("inline share creation failed")
		return nil
	}

	body := fmt.Sprintf("🔐 A secret was shared with you.\nIt can be viewed once:\n%s", link)
	article := tgbotapi.NewInlineQueryResultArticle(s.ID, "Send as a one-time secret", body)
	article.Description = "The text is hidden until the link is opened."

	_, err = r.bot.Request(tgbotapi.InlineConfig{
		InlineQueryID: q.ID,
		Results:       []interface{}{article},
		CacheTime:     0,
		IsPersonal:    true,
	})
	return err
}

// request performs a raw bot API call and extracts the resulting message ID.
func (r *RealTelegramBotAdapter) request(ctx context.Context, endpoint string, params tgbotapi.Params) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	resp, err := r.bot.MakeRequest(endpoint, params)
	if err != nil {
		return 0, err
	}
	var out struct {
		MessageID int `json:"message_id"`
	}
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &out); err != nil {
			return 0, err
		}
	}
	return out.MessageID, nil
}

// SendMessage implements the adapter port.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, p adapter.SendMessageParams) (int, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", p.ChatID)
	params.AddNonEmpty("text", p.Text)
	params.AddBool("protect_content", p.Protected)
	if p.ReplyMarkup != nil {
		if err := params.AddInterface("reply_markup", buildMarkup(p.ReplyMarkup)); err != nil {
			return 0, err
		}
	}
	return r.request(ctx, "sendMessage", params)
}

// CopyMessage implements the adapter port. A plain copy drops the forward
// header; only when the sender opted into the tag do we forward instead.
func (r *RealTelegramBotAdapter) CopyMessage(ctx context.Context, p adapter.CopyMessageParams) (int, error) {
	endpoint := "copyMessage"
	if p.ShowForwardTag {
		endpoint = "forwardMessage"
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", p.ToChatID)
	params.AddNonZero64("from_chat_id", p.FromChatID)
	params.AddNonZero("message_id", p.MessageID)
	params.AddBool("protect_content", p.Protected)
	return r.request(ctx, endpoint, params)
}

func (r *RealTelegramBotAdapter) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("message_id", messageID)
	_, err := r.request(ctx, "deleteMessage", params)
	return err
}

func (r *RealTelegramBotAdapter) EditMessageText(ctx context.Context, p adapter.EditMessageParams) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", p.ChatID)
	params.AddNonZero("message_id", p.MessageID)
	params.AddNonEmpty("text", p.Text)
	if p.ReplyMarkup != nil {
		if err := params.AddInterface("reply_markup", buildMarkup(p.ReplyMarkup)); err != nil {
			return err
		}
	}
	_, err := r.request(ctx, "editMessageText", params)
	return err
}

func buildMarkup(m *adapter.ReplyMarkup) interface{} {
	if m.IsInline {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.Buttons))
		for _, row := range m.Buttons {
			if len(row) == 0 {
				continue
			}
			btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				label := strings.TrimSpace(b.Text)
				if label == "" {
					label = "•"
				}
				switch {
				case b.URL != "":
					btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(label, b.URL))
				case b.Data != "":
					btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(label, b.Data))
				default:
					btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(label, label))
				}
			}
			rows = append(rows, btns)
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	rows := make([][]tgbotapi.KeyboardButton, 0, len(m.Buttons))
	for _, row := range m.Buttons {
		btns := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewKeyboardButton(b.Text))
		}
		rows = append(rows, btns)
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

// sendText is the plain-message convenience wrapper used by handlers.
func (r *RealTelegramBotAdapter) sendText(ctx context.Context, chatID int64, text string) error {
	_, err := r.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatID, Text: text})
	return err
}

func (r *RealTelegramBotAdapter) sendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.Button) error {
	_, err := r.SendMessage(ctx, adapter.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: &adapter.ReplyMarkup{Buttons: rows, IsInline: true},
	})
	return err
}

// sendMainMenu shows the main actions as inline buttons.
func (r *RealTelegramBotAdapter) sendMainMenu(ctx context.Context, chatID int64, intro string) error {
	rows := [][]adapter.Button{
		{{Text: "🔐 New Secret", Data: "cmd:share"}},
		{{Text: "🗂 My Secrets", Data: "cmd:mysecrets"}},
		{{Text: "⚙️ Settings", Data: "cmd:settings"}},
	}
	if strings.TrimSpace(intro) == "" {
		intro = "Choose an action:"
	}
	return r.sendButtons(ctx, chatID, intro, rows)
}

// sendSettingsMenu renders the current toggles; tapping one flips it.
func (r *RealTelegramBotAdapter) sendSettingsMenu(ctx context.Context, chatID int64) error {
	user, err := r.facade.UserUC.GetByTelegramID(ctx, chatID)
	if err != nil {
		return r.sendText(ctx, chatID, "No profile found. Try /start first.")
	}

	onOff := func(b bool) string {
		if b {
			return "✅"
		}
		return "❌"
	}
	rows := [][]adapter.Button{
		{{Text: onOff(user.Settings.NotifyOnView) + " Notify me on view", Data: "set:notify_on_view"}},
		{{Text: onOff(user.Settings.ProtectContent) + " Protect delivered content", Data: "set:protect_content"}},
		{{Text: onOff(user.Settings.ShowForwardTag) + " Keep forward tag on relays", Data: "set:show_forward_tag"}},
		{{Text: "◀️ Menu", Data: "cmd:menu"}},
	}
	return r.sendButtons(ctx, chatID, "⚙️ Your settings (tap to toggle):", rows)
}

// buildMySecretsPage renders one page of the caller's shares with controls.
func (r *RealTelegramBotAdapter) buildMySecretsPage(ctx context.Context, chatID int64, page int) (string, [][]adapter.Button, error) {
	shares, total, err := r.facade.ShareUC.ListMine(ctx, chatID, page)
	if err != nil {
		return "", nil, err
	}
	if total == 0 {
		rows := [][]adapter.Button{{{Text: "🔐 New Secret", Data: "cmd:share"}}, {{Text: "◀️ Menu", Data: "cmd:menu"}}}
		return "You have no secrets yet.", rows, nil
	}

	rows := make([][]adapter.Button, 0, len(shares)+2)
	for _, s := range shares {
		rows = append(rows, []adapter.Button{
			{Text: r.facade.ShareSummary(s), Data: "detail:" + s.ID},
		})
	}

	var nav []adapter.Button
	if page > 0 {
		nav = append(nav, adapter.Button{Text: "⬅️ Prev", Data: fmt.Sprintf("page:%d", page-1)})
	}
	if (page+1)*usecase.MySharesPageLimit < total {
		nav = append(nav, adapter.Button{Text: "Next ➡️", Data: fmt.Sprintf("page:%d", page+1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []adapter.Button{{Text: "◀️ Menu", Data: "cmd:menu"}})

	header := fmt.Sprintf("🗂 Your secrets (%d total, page %d):", total, page+1)
	return header, rows, nil
}

func (r *RealTelegramBotAdapter) sendMySecretsPage(ctx context.Context, chatID int64, page int) error {
	text, rows, err := r.buildMySecretsPage(ctx, chatID, page)
	if err != nil {
		return r.sendText(ctx, chatID, "Failed to load your secrets.")
	}
	return r.sendButtons(ctx, chatID, text, rows)
}

// editMySecretsPage flips the existing list message to another page so
// paging does not pile new messages onto the chat.
func (r *RealTelegramBotAdapter) editMySecretsPage(ctx context.Context, chatID int64, msgID, page int) error {
	text, rows, err := r.buildMySecretsPage(ctx, chatID, page)
	if err != nil {
		return r.sendText(ctx, chatID, "Failed to load your secrets.")
	}
	return r.EditMessageText(ctx, adapter.EditMessageParams{
		ChatID:      chatID,
		MessageID:   msgID,
		Text:        text,
		ReplyMarkup: &adapter.ReplyMarkup{Buttons: rows, IsInline: true},
	})
}
