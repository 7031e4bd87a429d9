package notification

import (
	"context"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// TwilioSender отправляет SMS через Twilio Messages API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
	logger *log.Entry
}

// NewTwilioSender создаёт отправителя. httpClient может быть nil.
func NewTwilioSender(accountSID, authToken, from string, httpClient *http.Client, logger *log.Entry) *TwilioSender {
	if logger == nil {
		logger = log.New().WithField("component", "twilio")
	}
	params := twilio.ClientParams{Username: accountSID, Password: authToken}
	if httpClient != nil {
		base := &client.Client{
			Credentials: client.NewCredentials(accountSID, authToken),
			HTTPClient:  httpClient,
		}
		base.SetAccountSid(accountSID)
		params.Client = base
	}
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(params),
		from:   from,
		logger: logger,
	}
}

// SendSMS отправляет сообщение. Клиент Twilio не принимает context,
// поэтому ожидание ограничивается ctx снаружи вызова.
func (s *TwilioSender) SendSMS(ctx context.Context, to, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(message)

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.client.Api.CreateMessage(params)
		if err != nil {
			done <- result{err: err}
			return
		}
		sid := ""
		if resp.Sid != nil {
			sid = *resp.Sid
		}
		done <- result{sid: sid}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("twilio: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("twilio: %w", r.err)
		}
		s.logger.WithField("sid", r.sid).Debug("sms queued")
		return nil
	}
}

var _ domain.SMSSender = (*TwilioSender)(nil)
