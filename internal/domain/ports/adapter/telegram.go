package adapter

import "context"

type Button struct {
	Text string
	Data string
	URL  string
}

type ReplyMarkup struct {
	Buttons  [][]Button
	IsInline bool
}

type SendMessageParams struct {
	ChatID      int64
	Text        string
	Protected   bool
	ReplyMarkup *ReplyMarkup
}

// CopyMessageParams delivers an origin message to a recipient. A plain
// copy carries no forward header, which is what keeps the sender hidden.
type CopyMessageParams struct {
	ToChatID       int64
	FromChatID     int64
	MessageID      int
	Protected      bool
	ShowForwardTag bool
}

// EditMessageParams rewrites an already delivered message in place,
// replacing its text and inline keyboard.
type EditMessageParams struct {
	ChatID      int64
	MessageID   int
	Text        string
	ReplyMarkup *ReplyMarkup
}

type TelegramBotAdapter interface {
	// SendMessage returns the delivered message ID.
	SendMessage(ctx context.Context, p SendMessageParams) (int, error)
	// CopyMessage returns the delivered message ID.
	CopyMessage(ctx context.Context, p CopyMessageParams) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	EditMessageText(ctx context.Context, p EditMessageParams) error
}
