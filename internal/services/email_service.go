package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"

	"leadflow/internal/models"
)

// MailSender is satisfied by *gomail.Dialer.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier mails pipeline notifications to a fixed list of recipients.
type EmailNotifier struct {
	sender MailSender
	from   string
	to     []string
}

func NewEmailNotifier(sender MailSender, from string, to []string) *EmailNotifier {
	return &EmailNotifier{sender: sender, from: from, to: to}
}

// NewSMTPDialer builds the gomail dialer from SMTP settings.
func NewSMTPDialer(host string, port int, user, password string) *gomail.Dialer {
	return gomail.NewDialer(host, port, user, password)
}

func (s *EmailNotifier) Name() string { return "email" }

func (s *EmailNotifier) Notify(ctx context.Context, n models.Notification) error {
	if len(s.to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to...)
	m.SetHeader("Subject", subjectFor(n))
	if n.Priority == models.PriorityUrgent || n.Priority == models.PriorityHigh {
		m.SetHeader("X-Priority", "1")
	}
	m.SetBody("text/plain", n.Title+"\n\n"+n.Message)
	m.AddAlternative("text/html", fmt.Sprintf(`
		<h3>%s</h3>
		<p>%s</p>
		<p style="color:#888">lead #%d · %s</p>
	`, html.EscapeString(n.Title), html.EscapeString(n.Message), n.LeadID, n.SentAt.Format("2006-01-02 15:04 MST")))

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	return nil
}

func subjectFor(n models.Notification) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(n.Priority)), n.Title)
}
