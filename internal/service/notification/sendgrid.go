package notification

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultSendGridHost — адрес API SendGrid.
const DefaultSendGridHost = "https://api.sendgrid.com"

// SendGridSender отправляет письма через SendGrid v3 Mail Send API.
type SendGridSender struct {
	apiKey   string
	host     string
	fromName string
	fromAddr string
	logger   *log.Entry
}

// NewSendGridSender создаёт отправителя. Пустой host означает DefaultSendGridHost.
func NewSendGridSender(apiKey, host, fromName, fromAddr string, logger *log.Entry) *SendGridSender {
	if host == "" {
		host = DefaultSendGridHost
	}
	if logger == nil {
		logger = log.New().WithField("component", "sendgrid")
	}
	return &SendGridSender{apiKey: apiKey, host: host, fromName: fromName, fromAddr: fromAddr, logger: logger}
}

// SendEmail отправляет письмо с текстовой и HTML-частью.
func (s *SendGridSender) SendEmail(ctx context.Context, to, subject, html, text string) error {
	if s.apiKey == "" {
		return fmt.Errorf("sendgrid: api key is not configured")
	}

	message := mail.NewV3MailInit(
		mail.NewEmail(s.fromName, s.fromAddr),
		subject,
		mail.NewEmail("", to),
		mail.NewContent("text/plain", text),
		mail.NewContent("text/html", html),
	)

	request := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", response.StatusCode, response.Body)
	}

	s.logger.WithFields(log.Fields{"to": to, "status": response.StatusCode}).Debug("email accepted")
	return nil
}

var _ domain.EmailSender = (*SendGridSender)(nil)
