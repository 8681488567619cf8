package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"leadflow/internal/logging"
	"leadflow/internal/models"
)

// TelegramSender is the part of *tgbotapi.BotAPI the notifier needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts pipeline notifications into a sales chat.
type TelegramNotifier struct {
	bot    TelegramSender
	chatID int64
	logger *slog.Logger
}

func NewTelegramNotifier(bot TelegramSender, chatID int64, logger *slog.Logger) *TelegramNotifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}
}

// NewTelegramBot logs in with token. It calls getMe, so it needs network access.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return bot, nil
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Notify(ctx context.Context, n models.Notification) error {
	if t.bot == nil || t.chatID == 0 {
		t.logger.Debug("telegram notification skipped", slog.Int64("lead_id", n.LeadID))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, renderTelegram(n))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	// срочные со звуком, остальные тихо
	msg.DisableNotification = n.Priority != models.PriorityUrgent

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	t.logger.Debug("telegram notification sent", slog.Int64("lead_id", n.LeadID), slog.Int64("chat_id", t.chatID))
	return nil
}

func renderTelegram(n models.Notification) string {
	icon := "🔔"
	if n.Priority == models.PriorityUrgent {
		icon = "🏆"
	}
	return fmt.Sprintf("%s <b>%s</b>\n%s", icon, html.EscapeString(n.Title), html.EscapeString(n.Message))
}
