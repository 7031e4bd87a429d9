package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

type checkoutRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	PickupDate    string `json:"pickup_date"`
	PickupTime    string `json:"pickup_time"`
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
}

type orderResponse struct {
	Reference string                   `json:"reference"`
	Order     domain.Order             `json:"order"`
	Items     []domain.OrderLineDetail `json:"items"`
}

type checkoutResponse struct {
	OrderID     string        `json:"order_id"`
	State       string        `json:"state"`
	RedirectURL string        `json:"redirect_url,omitempty"`
	Warning     string        `json:"warning,omitempty"`
	Order       orderResponse `json:"order"`
}

type timelineEntry struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

func newOrderResponse(details domain.OrderDetails) orderResponse {
	items := details.Items
	if items == nil {
		items = []domain.OrderLineDetail{}
	}
	return orderResponse{
		Reference: details.Order.ShortRef(),
		Order:     details.Order,
		Items:     items,
	}
}

// toRequest переводит форму в запрос оформления. Неразборчивая дата
// считается незаполненной, чтобы покупатель увидел то же сообщение.
func (c checkoutRequest) toRequest(loc *time.Location) checkout.Request {
	req := checkout.Request{
		Customer: domain.Customer{
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Email:     c.Email,
		},
		PickupTime:    c.PickupTime,
		PaymentMethod: domain.PaymentMethod(strings.TrimSpace(c.PaymentMethod)),
		Notes:         c.Notes,
	}
	if date, err := domain.ParsePickupDate(strings.TrimSpace(c.PickupDate), loc); err == nil {
		req.PickupDate = date
	}
	return req
}

// submitCheckout оформляет заказ из корзины X-Cart-ID.
// С Idempotency-Key повторная отправка той же формы возвращает сохранённый ответ.
func (h *Handler) submitCheckout(w http.ResponseWriter, r *http.Request) {
	id, err := cartID(w, r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	logger := h.logger.WithField("cart_id", id)
	if key != "" && h.deps.Guard != nil {
		logger = logger.WithField("idempotency_key", key)
		decision, err := h.deps.Guard.Begin(key, append([]byte(id+"\n"), raw...))
		if err != nil {
			logger.WithError(err).Info("checkout rejected by idempotency guard")
			respondWithError(w, err)
			return
		}
		if decision.Replay {
			w.Header().Set(ReplayedHeader, "true")
			writeBody(w, decision.Status, decision.Body)
			return
		}
	} else {
		key = ""
	}

	status, body := h.runCheckout(r, id, raw, logger)
	if key != "" {
		h.deps.Guard.Complete(key, status, body)
	}
	writeBody(w, status, body)
}

func (h *Handler) runCheckout(r *http.Request, id string, raw []byte, logger *log.Entry) (int, []byte) {
	var form checkoutRequest
	if err := json.Unmarshal(raw, &form); err != nil {
		status, message := describeError(fmt.Errorf("%w: %v", errBadRequest, err))
		return status, encodeJSON(errorResponse{Error: message})
	}

	var result checkout.Result
	err := h.deps.Carts.With(r.Context(), id, func(store *cart.Store) error {
		var submitErr error
		result, submitErr = h.deps.Checkout.Submit(r.Context(), store, form.toRequest(h.deps.Location))
		return submitErr
	})
	if err != nil {
		logger.WithError(err).Info("checkout failed")
		status, message := describeError(err)
		return status, encodeJSON(errorResponse{Error: message})
	}

	status := http.StatusCreated
	if result.State == checkout.StateRedirecting {
		status = http.StatusOK
	}
	return status, encodeJSON(checkoutResponse{
		OrderID:     result.Order.ID,
		State:       string(result.State),
		RedirectURL: result.RedirectURL,
		Warning:     result.Warning,
		Order:       newOrderResponse(result.Details),
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	details, err := h.deps.Checkout.OrderDetails(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newOrderResponse(details))
}

func (h *Handler) getOrderTimeline(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]
	if _, err := h.deps.Checkout.OrderDetails(r.Context(), orderID); err != nil {
		respondWithError(w, err)
		return
	}
	events, err := h.deps.Timeline.List(orderID)
	if err != nil {
		h.logger.WithError(err).WithField("order_id", orderID).Error("list timeline failed")
		respondWithError(w, err)
		return
	}
	entries := make([]timelineEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, timelineEntry{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred})
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"order_id": orderID, "events": entries})
}
