package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/service/notification"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

// hangingSenders не отвечают и не слушают ctx, пока тест не закроет release.
type hangingSenders struct {
	release chan struct{}
}

func (h *hangingSenders) SendEmail(context.Context, string, string, string, string) error {
	<-h.release
	return nil
}

func (h *hangingSenders) SendSMS(context.Context, string, string) error {
	<-h.release
	return nil
}

func TestCheckoutConfirmedBeforeWriteTimeoutWithHangingProviders(t *testing.T) {
	baseLogger := log.New()
	baseLogger.SetLevel(log.ErrorLevel)
	logger := baseLogger.WithField("component", "deadline-test")
	now := func() time.Time { return time.Date(2026, time.March, 10, 15, 45, 0, 0, time.UTC) }

	shop := memory.NewShopRepository()
	shop.SeedProducts(domain.Product{ID: "merguez", Name: "Merguez", Price: decimal.RequireFromString("14"), Unit: "kg", InStock: true})

	senders := &hangingSenders{release: make(chan struct{})}
	defer close(senders.release)

	dispatcher := notification.NewDispatcher(senders, senders, "boutique@example.com", "+33600000000",
		notification.WithEmailGap(100*time.Millisecond),
		notification.WithSendTimeout(400*time.Millisecond),
		notification.WithLogger(logger),
	)
	orch := checkout.NewOrchestrator(shop, payment.NewMockService(), dispatcher,
		checkout.WithLogger(logger),
		checkout.WithClock(now, time.UTC),
		checkout.WithNotifyBudget(300*time.Millisecond),
	)
	router := httpapi.NewRouter(httpapi.Dependencies{
		Catalog:  shop,
		Carts:    cart.NewManager(memory.NewKeyValueStore(), logger),
		Checkout: orch,
		Logger:   logger,
		Location: time.UTC,
		Now:      now,
	})

	srv := httptest.NewUnstartedServer(router)
	srv.Config.WriteTimeout = time.Second
	srv.Start()
	defer srv.Close()

	client := srv.Client()
	client.Timeout = 5 * time.Second
	post := func(path, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set(httpapi.CartIDHeader, "7d444840-9dc0-11d1-b245-5ffdce74fad2")
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		require.NoError(t, err)
		return resp
	}

	addResp := post("/api/cart/items", `{"product_id":"merguez","quantity":"1"}`)
	addResp.Body.Close()
	require.Equal(t, http.StatusOK, addResp.StatusCode)

	resp := post("/api/checkout", `{"first_name":"Jean","last_name":"Dupont","email":"jean@example.com",`+
		`"pickup_date":"2026-03-11","pickup_time":"10:30","payment_method":"in_store"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var payload struct {
		OrderID string `json:"order_id"`
		State   string `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, string(checkout.StateCompleted), payload.State)

	order, err := shop.GetOrder(context.Background(), payload.OrderID)
	require.NoError(t, err)
	require.Equal(t, payload.OrderID, order.ID)
}
