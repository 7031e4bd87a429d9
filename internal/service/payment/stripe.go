// Package payment содержит адаптеры платёжного провайдера.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// StripeConfig описывает подключение к Stripe.
type StripeConfig struct {
	SecretKey string
	// CheckoutURL — страница витрины, где Stripe Elements подтверждает PaymentIntent.
	CheckoutURL string
	// APIURL переопределяет адрес Stripe API (для тестов).
	APIURL     string
	HTTPClient *http.Client
	// ShopName попадает в описание платежа.
	ShopName string
}

// StripeService создаёт PaymentIntent в евро и отдаёт адрес страницы оплаты.
type StripeService struct {
	api         *client.API
	checkoutURL string
	shopName    string
	logger      *log.Entry
}

// NewStripeService создаёт адаптер. Пустой SecretKey допустим: вызовы вернут ErrPaymentUnavailable.
func NewStripeService(cfg StripeConfig, logger *log.Entry) *StripeService {
	if logger == nil {
		logger = log.New().WithField("component", "stripe")
	}
	if cfg.ShopName == "" {
		cfg.ShopName = "L'Étoile du Nord"
	}

	svc := &StripeService{checkoutURL: cfg.CheckoutURL, shopName: cfg.ShopName, logger: logger}
	if cfg.SecretKey == "" {
		return svc
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        cfg.HTTPClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	svc.api = client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return svc
}

// CreatePaymentSession создаёт PaymentIntent на сумму заказа в центах.
func (s *StripeService) CreatePaymentSession(ctx context.Context, req domain.PaymentSessionRequest) (domain.PaymentSession, error) {
	if s.api == nil {
		return domain.PaymentSession{}, fmt.Errorf("%w: stripe secret key is not configured", domain.ErrPaymentUnavailable)
	}
	cents := req.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if cents <= 0 {
		return domain.PaymentSession{}, fmt.Errorf("%w: amount must be positive", domain.ErrPaymentUnavailable)
	}

	ref := strings.ToUpper(req.OrderID)
	if len(ref) > 8 {
		ref = ref[:8]
	}

	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(cents),
		Currency:     stripe.String(string(stripe.CurrencyEUR)),
		Description:  stripe.String(fmt.Sprintf("Commande %s - %s", ref, s.shopName)),
		ReceiptEmail: stripe.String(req.CustomerEmail),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("customer_email", req.CustomerEmail)
	params.AddMetadata("customer_name", req.CustomerName)
	params.SetIdempotencyKey("order-" + req.OrderID)

	intent, err := s.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			s.logger.WithFields(log.Fields{
				"order_id": req.OrderID,
				"code":     stripeErr.Code,
				"status":   stripeErr.HTTPStatusCode,
			}).Warn("stripe rejected payment intent")
		}
		return domain.PaymentSession{}, fmt.Errorf("%w: %v", domain.ErrPaymentUnavailable, err)
	}
	if intent.ClientSecret == "" {
		return domain.PaymentSession{}, fmt.Errorf("%w: empty client secret", domain.ErrPaymentUnavailable)
	}

	return domain.PaymentSession{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// RedirectToPayment возвращает адрес страницы оплаты с client secret в параметрах.
func (s *StripeService) RedirectToPayment(_ context.Context, session domain.PaymentSession) (string, error) {
	if s.checkoutURL == "" {
		return "", fmt.Errorf("%w: checkout url is not configured", domain.ErrPaymentRedirect)
	}
	if session.ClientSecret == "" {
		return "", fmt.Errorf("%w: missing client secret", domain.ErrPaymentRedirect)
	}
	u, err := url.Parse(s.checkoutURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: invalid checkout url %q", domain.ErrPaymentRedirect, s.checkoutURL)
	}
	q := u.Query()
	q.Set("payment_intent", session.ID)
	q.Set("payment_intent_client_secret", session.ClientSecret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var _ domain.PaymentService = (*StripeService)(nil)
