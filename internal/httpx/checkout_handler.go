package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront-stock/internal/checkout"
	"github.com/ariefcatur/go-storefront-stock/internal/orders"
	"github.com/ariefcatur/go-storefront-stock/internal/reservation"
)

type Checkouter interface {
	ProcessCheckout(ctx context.Context, req checkout.Request) (*checkout.Receipt, error)
}

type CheckoutHandler struct {
	Checkout Checkouter
	Validate *validator.Validate
	Log      zerolog.Logger
}

type CheckoutItemReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CustomerReq struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
	ZIP     string `json:"zip" validate:"required"`
	City    string `json:"city" validate:"required"`
	Country string `json:"country" validate:"required"`
}

type PaymentReq struct {
	Method       string `json:"method" validate:"required,oneof=emoney cash"`
	EMoneyNumber string `json:"emoneyNumber,omitempty"`
	EMoneyPIN    string `json:"emoneyPin,omitempty"`
}

// CheckoutReq carries cart lines unvalidated; the checkout service owns cart rules.
type CheckoutReq struct {
	Items     []CheckoutItemReq `json:"items"`
	Customer  CustomerReq       `json:"customer"`
	Payment   PaymentReq        `json:"payment"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
}

type CheckoutResp struct {
	Success bool `json:"success"`
	*checkout.Receipt
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.checkout)
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Validation failed", fieldErrors(err)...)
		return
	}

	rec, err := h.Checkout.ProcessCheckout(r.Context(), req.toRequest())
	if err != nil {
		var ce *checkout.Error
		if !errors.As(err, &ce) {
			// the service logs its own failures; only foreign errors are logged here
			h.Log.Error().Err(err).Msg("checkout failed")
			ce = &checkout.Error{Kind: checkout.UnexpectedError, Message: "An unexpected error occurred", Err: err}
		}
		code := http.StatusBadRequest
		if ce.Kind == checkout.UnexpectedError {
			code = http.StatusInternalServerError
		}
		errs := make([]fieldError, 0, len(ce.Errors))
		for _, fe := range ce.Errors {
			errs = append(errs, fieldError{Field: fe.Field, Message: fe.Message})
		}
		writeFailure(w, code, ce.Message, errs...)
		return
	}
	writeJSON(w, http.StatusOK, CheckoutResp{Success: true, Receipt: rec})
}

func (req CheckoutReq) toRequest() checkout.Request {
	items := make([]checkout.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, checkout.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return checkout.Request{
		Items: items,
		Customer: orders.Customer{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			Phone:   req.Customer.Phone,
			Address: req.Customer.Address,
			ZIP:     req.Customer.ZIP,
			City:    req.Customer.City,
			Country: req.Customer.Country,
		},
		Payment: orders.Payment{
			Method:       orders.PaymentMethod(req.Payment.Method),
			EMoneyNumber: req.Payment.EMoneyNumber,
			EMoneyPIN:    req.Payment.EMoneyPIN,
		},
		Holder: reservation.NewHolder(req.UserID, req.SessionID),
	}
}
