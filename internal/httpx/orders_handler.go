package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront-stock/internal/kafka"
	"github.com/ariefcatur/go-storefront-stock/internal/orders"
	"github.com/ariefcatur/go-storefront-stock/internal/redisx"
)

type OrderStore interface {
	List(ctx context.Context, f orders.Filters) ([]orders.Order, orders.Pagination, error)
	Get(ctx context.Context, id string) (*orders.Order, error)
	GetOrderStatus(ctx context.Context, id string) (orders.Status, error)
	UpdateStatus(ctx context.Context, id string, to orders.Status) (orders.Status, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Repo     OrderStore
	Redis    *redis.Client
	Producer Publisher
	Service  string
	Log      zerolog.Logger
}

type ListResp struct {
	Orders     []orders.Order    `json:"orders"`
	Pagination orders.Pagination `json:"pagination"`
}

type StatusReq struct {
	Status string `json:"status"`
}

type StatusResp struct {
	OrderID string        `json:"orderId"`
	Status  orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Patch("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, errs := parseFilters(r)
	if len(errs) > 0 {
		writeFailure(w, http.StatusBadRequest, "Invalid query", errs...)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, page, err := h.Repo.List(ctx, f)
	if errors.Is(err, orders.ErrInvalidStatus) {
		writeFailure(w, http.StatusBadRequest, "Invalid status",
			fieldError{Field: "status", Message: "Status must be one of pending, processing, shipped, delivered, cancelled"})
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("list orders")
		writeFailure(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, ListResp{Orders: list, Pagination: page})
}

// parseFilters reads status, dateFrom, dateTo, search, limit and offset.
// Dates take RFC 3339 or a bare YYYY-MM-DD; a bare dateTo covers that whole day.
func parseFilters(r *http.Request) (orders.Filters, []fieldError) {
	q := r.URL.Query()
	f := orders.Filters{Status: orders.Status(q.Get("status")), Search: q.Get("search")}
	var errs []fieldError

	date := func(name string, endOfDay bool) time.Time {
		v := q.Get(name)
		if v == "" {
			return time.Time{}
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			errs = append(errs, fieldError{Field: name, Message: "Date must be YYYY-MM-DD or RFC 3339"})
			return time.Time{}
		}
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return t
	}
	f.DateFrom = date("dateFrom", false)
	f.DateTo = date("dateTo", true)

	num := func(name string) int {
		v := q.Get(name)
		if v == "" {
			return 0
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, fieldError{Field: name, Message: "Must be a non-negative integer"})
			return 0
		}
		return n
	}
	f.Limit = num("limit")
	f.Offset = num("offset")
	return f, errs
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Repo.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, orders.ErrNotFound) {
		writeFailure(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("get order")
		writeFailure(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus is served from the Redis status cache when possible.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	status, err := h.Repo.GetOrderStatus(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeFailure(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("get order status")
		writeFailure(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	body := StatusResp{OrderID: orderID, Status: status}
	h.cacheStatus(ctx, body)
	writeJSON(w, http.StatusOK, body)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req StatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	to := orders.Status(req.Status)
	from, err := h.Repo.UpdateStatus(ctx, orderID, to)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "Order not found")
		return
	case errors.Is(err, orders.ErrInvalidStatus):
		writeFailure(w, http.StatusBadRequest, "Invalid status",
			fieldError{Field: "status", Message: "Status must be one of pending, processing, shipped, delivered, cancelled"})
		return
	case errors.Is(err, orders.ErrInvalidTransition):
		writeFailure(w, http.StatusConflict, fmt.Sprintf("Cannot change status from %s to %s", from, to))
		return
	case err != nil:
		h.Log.Error().Err(err).Str("order_id", orderID).Msg("update order status")
		writeFailure(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	body := StatusResp{OrderID: orderID, Status: to}
	h.cacheStatus(ctx, body)
	h.publishStatusChanged(r, orderID, from, to)
	h.Log.Info().Str("order_id", orderID).Str("from", string(from)).Str("to", string(to)).Msg("order status changed")
	writeJSON(w, http.StatusOK, body)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, body StatusResp) {
	if h.Redis == nil {
		return
	}
	b, _ := json.Marshal(body)
	key := fmt.Sprintf(redisx.KeyOrderStatus, body.OrderID)
	if err := h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Warn().Err(err).Str("order_id", body.OrderID).Msg("cache order status")
	}
}

func (h *OrdersHandler) publishStatusChanged(r *http.Request, orderID string, from, to orders.Status) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(orders.OrderStatusChangedPayload{OrderID: orderID, From: from, To: to}),
	}
	h.Producer.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
