// Package notification рассылает уведомления о новых заказах: письмо магазину,
// подтверждение покупателю и SMS магазину. Ни одна ошибка канала не выходит наружу.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// DefaultEmailGap — пауза между письмами, чтобы не упереться в rate limit провайдера.
	DefaultEmailGap = 500 * time.Millisecond
	// DefaultSendTimeout — таймаут одной попытки отправки.
	DefaultSendTimeout = 10 * time.Second

	channelEmail = "email"
	channelSMS   = "sms"

	recipientStaff    = "staff"
	recipientCustomer = "customer"
)

// Recorder получает результат каждой попытки отправки.
type Recorder interface {
	RecordNotification(channel, recipient string, err error)
}

// Dispatcher реализует domain.Notifier.
type Dispatcher struct {
	email      domain.EmailSender
	sms        domain.SMSSender
	staffEmail string
	staffPhone string
	shop       Shop

	gap     time.Duration
	timeout time.Duration
	sleep   func(context.Context, time.Duration)

	recorder Recorder
	logger   *log.Entry
}

// Option настраивает Dispatcher.
type Option func(*Dispatcher)

// WithEmailGap задаёт паузу между письмом магазину и письмом покупателю.
func WithEmailGap(gap time.Duration) Option {
	return func(d *Dispatcher) {
		if gap >= 0 {
			d.gap = gap
		}
	}
}

// WithSendTimeout задаёт таймаут одной отправки.
func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithShop переопределяет реквизиты магазина в шаблонах.
func WithShop(shop Shop) Option {
	return func(d *Dispatcher) {
		d.shop = shop
	}
}

// WithRecorder подключает метрики.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func withSleep(sleep func(context.Context, time.Duration)) Option {
	return func(d *Dispatcher) {
		d.sleep = sleep
	}
}

// NewDispatcher создаёт диспетчер. Пустой staffEmail или staffPhone отключает соответствующее уведомление.
func NewDispatcher(email domain.EmailSender, sms domain.SMSSender, staffEmail, staffPhone string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		email:      email,
		sms:        sms,
		staffEmail: staffEmail,
		staffPhone: staffPhone,
		shop:       DefaultShop,
		gap:        DefaultEmailGap,
		timeout:    DefaultSendTimeout,
		sleep:      sleepContext,
		logger:     log.New().WithField("component", "notification"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify отправляет письмо магазину, после паузы письмо покупателю и затем SMS магазину.
// Каждая попытка изолирована: её ошибка логируется и не мешает остальным.
func (d *Dispatcher) Notify(ctx context.Context, details domain.OrderDetails) {
	logger := d.logger.WithField("order_id", details.Order.ID)

	d.attempt(ctx, logger, channelEmail, recipientStaff, func(ctx context.Context) error {
		if d.staffEmail == "" {
			return errSkipped
		}
		msg, err := StaffEmail(d.shop, details)
		if err != nil {
			return fmt.Errorf("render staff email: %w", err)
		}
		return d.sendEmail(ctx, d.staffEmail, msg)
	})

	d.sleep(ctx, d.gap)

	d.attempt(ctx, logger, channelEmail, recipientCustomer, func(ctx context.Context) error {
		if details.Order.Customer.Email == "" {
			return errSkipped
		}
		msg, err := CustomerEmail(d.shop, details)
		if err != nil {
			return fmt.Errorf("render customer email: %w", err)
		}
		return d.sendEmail(ctx, details.Order.Customer.Email, msg)
	})

	d.attempt(ctx, logger, channelSMS, recipientStaff, func(ctx context.Context) error {
		if d.staffPhone == "" || d.sms == nil {
			return errSkipped
		}
		body, err := StaffSMS(d.shop, details)
		if err != nil {
			return fmt.Errorf("render staff sms: %w", err)
		}
		return d.sms.SendSMS(ctx, d.staffPhone, body)
	})
}

var errSkipped = errors.New("recipient not configured")

func (d *Dispatcher) sendEmail(ctx context.Context, to string, msg Message) error {
	if d.email == nil {
		return errSkipped
	}
	return d.email.SendEmail(ctx, to, msg.Subject, msg.HTML, msg.Text)
}

func (d *Dispatcher) attempt(ctx context.Context, logger *log.Entry, channel, recipient string, send func(context.Context) error) {
	entry := logger.WithFields(log.Fields{"channel": channel, "recipient": recipient})

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return send(sendCtx)
	}()

	if errors.Is(err, errSkipped) {
		entry.Debug("notification skipped")
		return
	}
	if d.recorder != nil {
		d.recorder.RecordNotification(channel, recipient, err)
	}
	if err != nil {
		entry.WithError(fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)).Warn("notification failed")
		return
	}
	entry.Info("notification sent")
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

var _ domain.Notifier = (*Dispatcher)(nil)
