package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type telegramClient interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramSender пишет клиенту в Telegram, если у него указан chat id
type TelegramSender struct {
	client telegramClient
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSender{client: b}, nil
}

func (s *TelegramSender) Name() string {
	return "telegram"
}

func (s *TelegramSender) Send(ctx context.Context, recipient *model.User, msg *Message) error {
	if recipient.TelegramChatID == nil {
		return ErrNoRecipient
	}

	_, err := s.client.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    *recipient.TelegramChatID,
		Text:      msg.Telegram,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
