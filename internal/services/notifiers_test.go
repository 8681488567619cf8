package services

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"leadflow/internal/models"
)

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, b.err
}

type fakeMailer struct {
	sent []*gomail.Message
	err  error
}

func (m *fakeMailer) DialAndSend(msgs ...*gomail.Message) error {
	m.sent = append(m.sent, msgs...)
	return m.err
}

func sample(p models.NotificationPriority) models.Notification {
	return models.Notification{
		LeadID:   9,
		Title:    "Lead #9: <Closed won>",
		Message:  "Contract → Closed won",
		Priority: p,
		SentAt:   time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
}

func TestTelegramNotifierSendsHTML(t *testing.T) {
	bot := &fakeBot{}
	n := NewTelegramNotifier(bot, -100500, nil)

	require.NoError(t, n.Notify(context.Background(), sample(models.PriorityUrgent)))
	require.Len(t, bot.sent, 1)

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.EqualValues(t, -100500, msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "&lt;Closed won&gt;")
	assert.False(t, msg.DisableNotification)
}

func TestTelegramNotifierSkipsWithoutChat(t *testing.T) {
	bot := &fakeBot{}
	require.NoError(t, NewTelegramNotifier(bot, 0, nil).Notify(context.Background(), sample(models.PriorityHigh)))
	assert.Empty(t, bot.sent)
}

func TestTelegramNotifierWrapsErrors(t *testing.T) {
	bot := &fakeBot{err: errors.New("Too Many Requests")}
	err := NewTelegramNotifier(bot, 1, nil).Notify(context.Background(), sample(models.PriorityHigh))
	assert.ErrorContains(t, err, "Too Many Requests")
}

func TestEmailNotifier(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewEmailNotifier(mailer, "crm@example.com", []string{"sales@example.com", "lead@example.com"})

	require.NoError(t, n.Notify(context.Background(), sample(models.PriorityHigh)))
	require.Len(t, mailer.sent, 1)
	m := mailer.sent[0]
	assert.Equal(t, []string{"crm@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"sales@example.com", "lead@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"[HIGH] Lead #9: <Closed won>"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"1"}, m.GetHeader("X-Priority"))

	empty := &fakeMailer{}
	require.NoError(t, NewEmailNotifier(empty, "crm@example.com", nil).Notify(context.Background(), sample(models.PriorityLow)))
	assert.Empty(t, empty.sent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Notify(ctx, sample(models.PriorityLow)), context.Canceled)
}
