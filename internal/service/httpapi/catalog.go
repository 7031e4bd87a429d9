package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.deps.Catalog.ListProducts(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("list products failed")
		respondWithError(w, err)
		return
	}

	query := r.URL.Query()
	category := query.Get("category")
	featuredOnly, _ := strconv.ParseBool(query.Get("featured"))

	filtered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if category != "" && p.CategoryID != category {
			continue
		}
		if featuredOnly && !p.Featured {
			continue
		}
		filtered = append(filtered, p)
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"products": filtered})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.deps.Catalog.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.deps.Catalog.ListCategories(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("list categories failed")
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (h *Handler) pickupSlots(w http.ResponseWriter, _ *http.Request) {
	minDate := domain.MinimumPickupDate(h.deps.Now().In(h.deps.Location))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"slots":    domain.PickupSlots(),
		"min_date": minDate.Format(domain.PickupDateLayout),
	})
}
