package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartLineResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type cartResponse struct {
	CartID      string             `json:"cart_id"`
	Lines       []cartLineResponse `json:"lines"`
	TotalItems  decimal.Decimal    `json:"total_items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
}

type cartItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

func newCartResponse(cartID string, c domain.Cart) cartResponse {
	lines := make([]cartLineResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, cartLineResponse{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Unit:      l.Product.Unit,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal(),
		})
	}
	return cartResponse{
		CartID:      cartID,
		Lines:       lines,
		TotalItems:  c.TotalItems(),
		TotalAmount: c.TotalAmount(),
	}
}

// cartID берёт идентификатор из заголовка или выдаёт новый.
// Новый идентификатор возвращается клиенту в том же заголовке.
func cartID(w http.ResponseWriter, r *http.Request) (string, error) {
	id := r.Header.Get(CartIDHeader)
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: cart id %q", errBadRequest, id)
	}
	w.Header().Set(CartIDHeader, id)
	return id, nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id, err := cartID(w, r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	snapshot, err := h.deps.Carts.Load(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("cart_id", id).Error("load cart failed")
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newCartResponse(id, snapshot))
}

// mutateCart выполняет изменение под блокировкой корзины и отвечает её новым состоянием.
func (h *Handler) mutateCart(w http.ResponseWriter, r *http.Request, fn func(*cart.Store) error) {
	id, err := cartID(w, r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	var snapshot domain.Cart
	err = h.deps.Carts.With(r.Context(), id, func(store *cart.Store) error {
		if err := fn(store); err != nil {
			return err
		}
		snapshot = store.Snapshot()
		return nil
	})
	if err != nil {
		h.logger.WithError(err).WithField("cart_id", id).Info("cart update rejected")
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newCartResponse(id, snapshot))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	if req.ProductID == "" {
		respondWithError(w, fmt.Errorf("%w: product_id is required", errBadRequest))
		return
	}
	product, err := h.deps.Catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	h.mutateCart(w, r, func(store *cart.Store) error {
		return store.AddToCart(r.Context(), product, req.Quantity)
	})
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	productID := mux.Vars(r)["productID"]
	h.mutateCart(w, r, func(store *cart.Store) error {
		return store.UpdateQuantity(r.Context(), productID, req.Quantity)
	})
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productID"]
	h.mutateCart(w, r, func(store *cart.Store) error {
		return store.RemoveFromCart(r.Context(), productID)
	})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, func(store *cart.Store) error {
		return store.ClearCart(r.Context())
	})
}
