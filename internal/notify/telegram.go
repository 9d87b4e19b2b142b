package notify

import (
	"context"
	"fmt"
	"strconv"

	"housekeeper/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramAPI is the bot surface the sender needs, satisfied by
// *tgbotapi.BotAPI.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers team events as plain-text bot messages. The
// channel target is the chat ID.
type TelegramSender struct {
	bot TelegramAPI
}

func NewTelegramSender(bot TelegramAPI) *TelegramSender {
	return &TelegramSender{bot: bot}
}

func (s *TelegramSender) Type() string {
	return models.ChannelTelegram
}

func (s *TelegramSender) Send(ctx context.Context, target string, event models.TeamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", target, err)
	}
	msg := tgbotapi.NewMessage(chatID, FormatEvent(event))
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
