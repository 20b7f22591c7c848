package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront-stock/internal/catalog"
	"github.com/ariefcatur/go-storefront-stock/internal/reservation"
)

type Reserver interface {
	Reserve(ctx context.Context, productID string, quantity int, h reservation.Holder) (string, error)
	AvailableStock(ctx context.Context, productID string) (int, error)
}

type StockHandler struct {
	Reservations Reserver
	Catalog      catalog.Lookup
	Validate     *validator.Validate
	Log          zerolog.Logger
}

type ReserveReq struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

type ReserveResp struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservationId"`
}

type AvailabilityResp struct {
	ProductID string `json:"productId"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Available int    `json:"available"`
}

func (h *StockHandler) Register(r *chi.Mux) {
	r.Post("/cart", h.reserve)
	r.Post("/reservations", h.reserve)
	r.Get("/products/{id}/availability", h.availability)
}

func (h *StockHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		errs := fieldErrors(err)
		writeFailure(w, http.StatusBadRequest, errs[0].Message, errs...)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := h.Reservations.Reserve(ctx, req.ProductID, req.Quantity, reservation.NewHolder(req.UserID, req.SessionID))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ReserveResp{Success: true, ReservationID: id})
	case errors.Is(err, reservation.ErrInvalidQuantity),
		errors.Is(err, reservation.ErrHolderRequired),
		errors.Is(err, reservation.ErrProductNotFound),
		errors.Is(err, reservation.ErrInsufficientStock):
		writeFailure(w, http.StatusBadRequest, err.Error())
	default:
		h.Log.Error().Err(err).Str("product_id", req.ProductID).Msg("reserve failed")
		writeFailure(w, http.StatusInternalServerError, "Failed to add to cart")
	}
}

func (h *StockHandler) availability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.GetProduct(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeFailure(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("product_id", id).Msg("catalog lookup failed")
		writeFailure(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	avail, err := h.Reservations.AvailableStock(ctx, id)
	if err != nil {
		h.Log.Error().Err(err).Str("product_id", id).Msg("available stock failed")
		writeFailure(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResp{
		ProductID: p.ID,
		Slug:      p.Slug,
		Name:      p.Name,
		Price:     p.Price.StringFixed(2),
		Available: avail,
	})
}
