package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// StaffNotifier posts operational messages for the shop staff.
type StaffNotifier interface {
	NotifyStaff(ctx context.Context, text string) error
}

// TelegramNotifier posts into one staff chat.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier logs the bot in and checks the token.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	log.WithFields(log.Fields{
		"bot":     api.Self.UserName,
		"chat_id": chatID,
	}).Info("Staff Telegram notifier ready")
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

// NotifyStaff sends text as a plain message.
func (t *TelegramNotifier) NotifyStaff(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// LogStaffNotifier only logs.
type LogStaffNotifier struct{}

func (LogStaffNotifier) NotifyStaff(_ context.Context, text string) error {
	log.WithField("text", text).Info("Staff notification (Telegram not configured)")
	return nil
}
