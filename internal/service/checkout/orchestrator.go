// Package checkout оформляет заказ из корзины: проверка черновика, запись заказа,
// переход к оплате и уведомления.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	// DefaultCollaboratorTimeout — таймаут одного вызова внешнего сервиса.
	DefaultCollaboratorTimeout = 10 * time.Second
	// DefaultNotifyBudget — общий срок на все уведомления одного заказа.
	DefaultNotifyBudget = 8 * time.Second
)

// Cart — часть корзины, нужная оформлению.
type Cart interface {
	Snapshot() domain.Cart
	ClearCart(ctx context.Context) error
}

// Request — данные формы оформления.
type Request struct {
	Customer      domain.Customer
	PickupDate    time.Time
	PickupTime    string
	PaymentMethod domain.PaymentMethod
	Notes         string
}

// Result описывает исход успешной попытки: заказ создан.
type Result struct {
	State   State
	Order   domain.Order
	Details domain.OrderDetails
	// RedirectURL заполнен только в состоянии StateRedirecting.
	RedirectURL string
	// Warning — сообщение покупателю, если оплата онлайн не состоялась.
	Warning string
	// Path — пройденные состояния.
	Path []State
}

// Orchestrator проводит одну попытку оформления по конечному автомату.
type Orchestrator struct {
	orders   domain.OrderRepository
	payments domain.PaymentService
	notifier domain.Notifier
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository

	metrics  *metrics.CheckoutMetrics
	logger   *log.Entry
	now      func() time.Time
	location *time.Location
	timeout  time.Duration
	newID    func() string

	// notifyBudget ограничивает ожидание уведомлений перед ответом покупателю.
	notifyBudget time.Duration
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithOutbox подключает outbox для событий оформления. Событие ставится в очередь
// после записи заказа, отдельно от неё: при ошибке очереди остаётся только запись в логе.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(o *Orchestrator) { o.outbox = outbox }
}

// WithTimeline подключает историю заказа.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(o *Orchestrator) { o.timeline = timeline }
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock задаёт источник времени и часовой пояс магазина.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
		if loc != nil {
			o.location = loc
		}
	}
}

// WithCollaboratorTimeout задаёт таймаут вызовов хранилища заказов и платёжного сервиса.
func WithCollaboratorTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithNotifyBudget задаёт общий срок на уведомления одного заказа.
// По его истечении оформление завершается, не дожидаясь отправки.
func WithNotifyBudget(budget time.Duration) Option {
	return func(o *Orchestrator) {
		if budget > 0 {
			o.notifyBudget = budget
		}
	}
}

// WithIDGenerator задаёт генератор идентификаторов заказа и позиций.
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) {
		if newID != nil {
			o.newID = newID
		}
	}
}

// NewOrchestrator создаёт оркестратор оформления.
func NewOrchestrator(orders domain.OrderRepository, payments domain.PaymentService, notifier domain.Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		orders:   orders,
		payments: payments,
		notifier: notifier,
		logger:   log.New().WithField("component", "checkout"),
		now:      time.Now,
		location: time.Local,
		timeout:  DefaultCollaboratorTimeout,
		newID:    uuid.NewString,

		notifyBudget: DefaultNotifyBudget,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit проводит оформление. Ошибка означает, что заказ не создан и корзина не тронута:
// ошибки проверки черновика, *domain.InsufficientStockError или domain.ErrOrderPersistence.
// После создания заказа ошибки оплаты и уведомлений не возвращаются.
func (o *Orchestrator) Submit(ctx context.Context, cart Cart, req Request) (Result, error) {
	started := o.now()
	run := &attempt{state: StateIdle, path: []State{StateIdle}}
	if o.metrics != nil {
		o.metrics.RecordCheckoutStarted()
	}
	outcome := metrics.OutcomeCompleted
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordCheckoutFinished(outcome, o.now().Sub(started))
		}
	}()

	run.to(StateValidating)
	snapshot := cart.Snapshot()
	draft := domain.OrderDraft{
		Customer:      req.Customer,
		PickupDate:    req.PickupDate,
		PickupTime:    req.PickupTime,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		Cart:          snapshot,
	}.Normalized()
	if err := draft.Validate(o.now().In(o.location)); err != nil {
		run.to(StateIdle)
		outcome = metrics.OutcomeValidationFailed
		o.logger.WithError(err).Info("checkout validation failed")
		return Result{State: run.state, Path: run.path}, err
	}

	run.to(StateCreatingOrder)
	order, err := o.buildOrder(draft)
	if err != nil {
		run.to(StateIdle)
		outcome = metrics.OutcomePersistenceFailed
		return Result{State: run.state, Path: run.path}, err
	}
	if err := o.createOrder(ctx, order); err != nil {
		run.to(StateIdle)
		if errors.Is(err, domain.ErrInsufficientStock) {
			outcome = metrics.OutcomeStockConflict
		} else {
			outcome = metrics.OutcomePersistenceFailed
		}
		return Result{State: run.state, Path: run.path}, err
	}

	run.to(StateOrderCreated)
	logger := o.logger.WithField("order_id", order.ID)
	logger.WithFields(log.Fields{
		"payment_method": order.PaymentMethod,
		"total":          order.TotalAmount.StringFixed(2),
	}).Info("order created")
	o.emitEvent(order, domain.EventOrderCreated, map[string]interface{}{
		"total_amount":   order.TotalAmount.StringFixed(2),
		"payment_method": string(order.PaymentMethod),
		"pickup_date":    order.PickupDate.Format(domain.PickupDateLayout),
		"pickup_time":    order.PickupTime,
	})

	result := Result{Order: order}
	if order.PaymentMethod == domain.PaymentMethodOnline {
		run.to(StateAwaitingPaymentRedirect)
		redirectURL, err := o.startPayment(ctx, order)
		if err == nil {
			run.to(StateRedirecting)
			outcome = metrics.OutcomeRedirected
			result.State = run.state
			result.Path = run.path
			result.RedirectURL = redirectURL
			result.Details = o.fallbackDetails(order, snapshot)
			return result, nil
		}

		reason := "session"
		if errors.Is(err, domain.ErrPaymentRedirect) {
			reason = "redirect"
		}
		logger.WithError(err).WithField("reason", reason).Warn("online payment unavailable, falling back to in-store confirmation")
		if o.metrics != nil {
			o.metrics.RecordPaymentFallback(reason)
		}
		o.emitEvent(order, domain.EventPaymentFallback, map[string]interface{}{"reason": reason})
		result.Warning = domain.UserMessage(err)
	}

	run.to(StateNotifying)
	// Заказ уже записан: уведомления и очистка корзины не должны прерываться отменой запроса.
	detached := context.WithoutCancel(ctx)
	result.Details = o.loadDetails(detached, order, snapshot)
	if o.notifier != nil {
		o.notify(detached, result.Details, logger)
	}

	if err := cart.ClearCart(detached); err != nil {
		logger.WithError(err).Warn("clear cart after checkout failed")
	}
	run.to(StateCompleted)
	o.emitEvent(order, domain.EventCheckoutCompleted, map[string]interface{}{
		"payment_method": string(order.PaymentMethod),
		"payment_status": string(order.PaymentStatus),
	})

	result.State = run.state
	result.Path = run.path
	return result, nil
}

// OrderDetails возвращает заказ вместе с названиями товаров.
func (o *Orchestrator) OrderDetails(ctx context.Context, orderID string) (domain.OrderDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	order, err := o.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderDetails{}, err
	}
	items, err := o.orders.ListLineDetails(ctx, orderID)
	if err != nil {
		return domain.OrderDetails{}, fmt.Errorf("list order lines: %w", err)
	}
	return domain.OrderDetails{Order: order, Items: items}, nil
}

func (o *Orchestrator) buildOrder(draft domain.OrderDraft) (domain.Order, error) {
	now := o.now().UTC()
	order := domain.Order{
		ID:            o.newID(),
		Customer:      draft.Customer,
		Status:        domain.OrderStatusPending,
		PickupDate:    draft.PickupDate,
		PickupTime:    draft.PickupTime,
		PaymentMethod: draft.PaymentMethod,
		PaymentStatus: domain.PaymentStatusPending,
		Notes:         draft.Notes,
		CreatedAt:     now,
	}

	total := decimal.Zero
	order.Lines = make([]domain.OrderLine, 0, len(draft.Cart.Lines))
	for _, line := range draft.Cart.Lines {
		subtotal := line.Subtotal()
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:        o.newID(),
			OrderID:   order.ID,
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			UnitPrice: line.Product.Price,
			Subtotal:  subtotal,
			CreatedAt: now,
		})
		total = total.Add(subtotal)
	}
	order.TotalAmount = total

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrOrderPersistence, errors.Join(errs...))
	}
	return order, nil
}

func (o *Orchestrator) createOrder(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	defer o.recordStep("create_order", o.now())

	err := o.orders.CreateOrder(ctx, order)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInsufficientStock):
		o.logger.WithError(err).Info("order rejected: stock changed since cart update")
		return err
	default:
		o.logger.WithError(err).Error("create order failed")
		return fmt.Errorf("%w: %v", domain.ErrOrderPersistence, err)
	}
}

func (o *Orchestrator) startPayment(ctx context.Context, order domain.Order) (string, error) {
	if o.payments == nil {
		return "", fmt.Errorf("%w: payment service is not configured", domain.ErrPaymentUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	defer o.recordStep("payment", o.now())

	session, err := o.payments.CreatePaymentSession(ctx, domain.PaymentSessionRequest{
		Amount:        order.TotalAmount,
		OrderID:       order.ID,
		CustomerEmail: order.Customer.Email,
		CustomerName:  order.Customer.FullName(),
	})
	if err != nil {
		if !errors.Is(err, domain.ErrPaymentUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrPaymentUnavailable, err)
		}
		return "", err
	}
	o.emitEvent(order, domain.EventPaymentSessionCreated, map[string]interface{}{"session_id": session.ID})

	redirectURL, err := o.payments.RedirectToPayment(ctx, session)
	if err == nil && redirectURL == "" {
		err = errors.New("empty redirect url")
	}
	if err != nil {
		if !errors.Is(err, domain.ErrPaymentRedirect) {
			err = fmt.Errorf("%w: %v", domain.ErrPaymentRedirect, err)
		}
		return "", err
	}
	return redirectURL, nil
}

// notify ждёт диспетчер не дольше notifyBudget. Отправитель, который не слушает
// ctx, продолжает работу в фоне, а покупатель получает подтверждение вовремя.
func (o *Orchestrator) notify(ctx context.Context, details domain.OrderDetails, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(ctx, o.notifyBudget)
	defer cancel()
	defer o.recordStep("notify", o.now())

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", r).Error("notifier panicked")
			}
		}()
		o.notifier.Notify(ctx, details)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.WithField("budget", o.notifyBudget.String()).Warn("notification budget exceeded, confirming order without waiting")
	}
}

// loadDetails читает позиции с названиями из хранилища; при ошибке собирает их из снимка корзины.
func (o *Orchestrator) loadDetails(ctx context.Context, order domain.Order, snapshot domain.Cart) domain.OrderDetails {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	items, err := o.orders.ListLineDetails(ctx, order.ID)
	if err != nil || len(items) == 0 {
		if err != nil {
			o.logger.WithError(err).WithField("order_id", order.ID).Warn("load order lines failed, using cart snapshot")
		}
		return o.fallbackDetails(order, snapshot)
	}
	return domain.OrderDetails{Order: order, Items: items}
}

func (o *Orchestrator) fallbackDetails(order domain.Order, snapshot domain.Cart) domain.OrderDetails {
	items := make([]domain.OrderLineDetail, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		items = append(items, domain.OrderLineDetail{
			ProductName: line.Product.Name,
			Unit:        line.Product.Unit,
			Quantity:    line.Quantity,
			UnitPrice:   line.Product.Price,
			Subtotal:    line.Subtotal(),
		})
	}
	return domain.OrderDetails{Order: order, Items: items}
}

func (o *Orchestrator) recordStep(step string, started time.Time) {
	if o.metrics != nil {
		o.metrics.RecordStepDuration(step, o.now().Sub(started))
	}
}

func (o *Orchestrator) emitEvent(order domain.Order, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	occurred := o.now().UTC()
	payload["order_id"] = order.ID
	payload["ts"] = occurred.Format(time.RFC3339Nano)

	entry := o.logger.WithFields(log.Fields{"order_id": order.ID, "event": eventType})

	if o.outbox != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			entry.WithError(err).Error("marshal event failed")
		} else if _, err := o.outbox.Enqueue(domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     eventType,
			Payload:       data,
		}); err != nil {
			entry.WithError(err).Error("enqueue event failed")
		} else if o.metrics != nil {
			o.metrics.RecordOutboxEvent()
		}
	}

	if o.timeline != nil {
		reason, _ := payload["reason"].(string)
		event := domain.TimelineEvent{OrderID: order.ID, Type: eventType, Reason: reason, Occurred: occurred}
		if err := o.timeline.Append(event); err != nil {
			entry.WithError(err).Warn("append timeline event failed")
		} else if o.metrics != nil {
			o.metrics.RecordTimelineEvent()
		}
	}
}

// attempt отслеживает переходы одной попытки оформления.
type attempt struct {
	state State
	path  []State
}

func (a *attempt) to(next State) {
	if !CanTransition(a.state, next) {
		panic(fmt.Sprintf("checkout: illegal transition %s -> %s", a.state, next))
	}
	a.state = next
	a.path = append(a.path, next)
}
