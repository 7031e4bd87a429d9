package app

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/notification"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
)

// newPaymentService выбирает платёжный адаптер. Stripe без ключа не падает:
// онлайн-оплата уходит в запасной сценарий «оплата в магазине».
func newPaymentService(cfg Config, logger *log.Entry) domain.PaymentService {
	if cfg.PaymentProvider == PaymentProviderMock {
		svc := payment.NewMockService()
		if cfg.StripeCheckoutURL != "" {
			svc.RedirectBase = cfg.StripeCheckoutURL
		}
		logger.Warn("using mock payment provider")
		return svc
	}
	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY is empty, online payments will fall back to in-store payment")
	}
	return payment.NewStripeService(payment.StripeConfig{
		SecretKey:   cfg.StripeSecretKey,
		CheckoutURL: cfg.StripeCheckoutURL,
	}, logger.WithField("component", "stripe"))
}

// newNotifier собирает диспетчер уведомлений. Канал без учётных данных отключается.
func newNotifier(cfg Config, recorder notification.Recorder, logger *log.Entry) *notification.Dispatcher {
	var email domain.EmailSender
	if cfg.SendGridAPIKey != "" && cfg.EmailFrom != "" {
		email = notification.NewSendGridSender(cfg.SendGridAPIKey, "", cfg.EmailFromName, cfg.EmailFrom, logger.WithField("component", "sendgrid"))
	} else {
		logger.Warn("email notifications disabled: SENDGRID_API_KEY or EMAIL_FROM is empty")
	}

	var sms domain.SMSSender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		sms = notification.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, nil, logger.WithField("component", "twilio"))
	} else {
		logger.Warn("sms notifications disabled: twilio credentials are incomplete")
	}

	return notification.NewDispatcher(email, sms, cfg.StaffEmail, cfg.StaffPhone,
		notification.WithEmailGap(cfg.NotifyEmailGap),
		notification.WithSendTimeout(cfg.CollaboratorTimeout),
		notification.WithRecorder(recorder),
		notification.WithLogger(logger.WithField("component", "notification")),
	)
}

// createOrchestrator создаёт оркестратор оформления. Outbox подключается
// только вместе с воркером публикации, иначе события копились бы без потребителя.
func createOrchestrator(
	deps *Dependencies,
	payments domain.PaymentService,
	notifier domain.Notifier,
	checkoutMetrics *metrics.CheckoutMetrics,
	withOutbox bool,
	cfg Config,
	loc *time.Location,
	logger *log.Entry,
) *checkout.Orchestrator {
	opts := []checkout.Option{
		checkout.WithTimeline(deps.Timeline),
		checkout.WithMetrics(checkoutMetrics),
		checkout.WithLogger(logger.WithField("component", "checkout")),
		checkout.WithClock(time.Now, loc),
		checkout.WithCollaboratorTimeout(cfg.CollaboratorTimeout),
		checkout.WithNotifyBudget(cfg.NotifyTimeout),
	}
	if withOutbox {
		opts = append(opts, checkout.WithOutbox(deps.Outbox))
	}
	return checkout.NewOrchestrator(deps.Orders, payments, notifier, opts...)
}
