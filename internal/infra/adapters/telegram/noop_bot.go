package telegram

import (
	"context"
	"log"
	"sync"

	"telegram-secret-relay/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements adapter.TelegramBotAdapter for local/dev
// runs. It logs instead of talking to Telegram and hands out sequential
// message IDs so delivery bookkeeping still works.
type NoopBotAdapter struct {
	mu     sync.Mutex
	nextID int
}

func NewNoopBotAdapter() *NoopBotAdapter {
	return &NoopBotAdapter{}
}

func (b *NoopBotAdapter) next() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return b.nextID
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, p adapter.SendMessageParams) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	log.Printf("[noop-telegram] To chat %d (protected=%t): %s", p.ChatID, p.Protected, p.Text)
	return b.next(), nil
}

func (b *NoopBotAdapter) CopyMessage(ctx context.Context, p adapter.CopyMessageParams) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	log.Printf("[noop-telegram] Copy msg %d from chat %d to chat %d", p.MessageID, p.FromChatID, p.ToChatID)
	return b.next(), nil
}

func (b *NoopBotAdapter) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	log.Printf("[noop-telegram] Delete msg %d in chat %d", messageID, chatID)
	return ctx.Err()
}

func (b *NoopBotAdapter) EditMessageText(ctx context.Context, p adapter.EditMessageParams) error {
	log.Printf("[noop-telegram] Edit msg %d in chat %d: %s", p.MessageID, p.ChatID, p.Text)
	return ctx.Err()
}
