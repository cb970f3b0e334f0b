package handlers

import (
	"net/http"
	"strconv"

	"github.com/camden-git/foodlens/nutrition"
	"github.com/camden-git/foodlens/services"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	Service *services.IntakeService
}

func (ph *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := ph.Service.Products(r.Context())
	if err != nil {
		writeServiceError(w, err, "retrieve products")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProduct returns one finalized product with its restricted items, as a
// result view after a submit.
func (ph *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "product_id"), 10, 0)
	if err != nil || id == 0 {
		WriteAPIError(w, http.StatusBadRequest, "invalid_product_id", "Product id must be a positive integer")
		return
	}
	product, err := ph.Service.Product(r.Context(), uint(id))
	if err != nil {
		writeServiceError(w, err, "retrieve product")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (ph *ProductHandler) Summary(w http.ResponseWriter, r *http.Request) {
	rows, err := ph.Service.Summary(r.Context())
	if err != nil {
		writeServiceError(w, err, "summarize products")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (ph *ProductHandler) ListAllergens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nutrition.CommonAllergens)
}
