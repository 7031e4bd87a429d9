// Package httpapi — JSON API витрины поверх gorilla/mux: каталог, корзина, оформление и заказы.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
)

const (
	// CartIDHeader — заголовок с идентификатором корзины покупателя.
	CartIDHeader = "X-Cart-ID"
	// IdempotencyKeyHeader защищает оформление от двойной отправки формы.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader выставляется, когда ответ взят из сохранённого результата.
	ReplayedHeader = "Idempotent-Replayed"

	maxBodyBytes = 64 << 10
)

// Dependencies — всё, что нужно обработчикам.
type Dependencies struct {
	Catalog  domain.CatalogRepository
	Carts    *cart.Manager
	Checkout *checkout.Orchestrator
	// Timeline и Guard необязательны.
	Timeline domain.TimelineRepository
	Guard    *idempotency.Guard
	Metrics  *metrics.HTTPMetrics
	Logger   *log.Entry
	Location *time.Location
	Now      func() time.Time
}

// Handler обслуживает /api.
type Handler struct {
	deps   Dependencies
	logger *log.Entry
}

// NewRouter собирает маршруты API.
func NewRouter(deps Dependencies) *mux.Router {
	if deps.Logger == nil {
		deps.Logger = log.New().WithField("component", "httpapi")
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &Handler{deps: deps, logger: deps.Logger}

	r := mux.NewRouter()
	r.Use(h.observe)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.getProduct).Methods(http.MethodGet)
	api.HandleFunc("/categories", h.listCategories).Methods(http.MethodGet)
	api.HandleFunc("/pickup-slots", h.pickupSlots).Methods(http.MethodGet)

	api.HandleFunc("/cart", h.getCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", h.clearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", h.addCartItem).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{productID}", h.updateCartItem).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{productID}", h.removeCartItem).Methods(http.MethodDelete)

	api.HandleFunc("/checkout", h.submitCheckout).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", h.getOrder).Methods(http.MethodGet)
	if deps.Timeline != nil {
		api.HandleFunc("/orders/{id}/timeline", h.getOrderTimeline).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondWithMessage(w, http.StatusNotFound, "Ressource introuvable.")
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// observe пишет access-лог и HTTP-метрики по шаблону маршрута.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(started)
		if h.deps.Metrics != nil {
			h.deps.Metrics.Observe(route, r.Method, strconv.Itoa(rec.status), elapsed)
		}

		entry := h.logger.WithFields(log.Fields{
			"method":      r.Method,
			"route":       route,
			"status":      rec.status,
			"duration_ms": elapsed.Milliseconds(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	})
}
