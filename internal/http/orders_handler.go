package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	cart "github.com/kimspro130/promode/internal/cart/domain"
	"github.com/kimspro130/promode/internal/order/domain"
	"github.com/kimspro130/promode/internal/order/repository"
	"github.com/kimspro130/promode/internal/order/service"
	"github.com/kimspro130/promode/pkg/metrics"
)

// OrderOperations is the service surface the handler needs. Satisfied
// by *service.OrderService.
type OrderOperations interface {
	SubmitOrder(ctx context.Context, userID string, req service.SubmitOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	CancelOrder(ctx context.Context, userID string, id uuid.UUID) error
}

type OrdersHandler struct {
	orders  OrderOperations
	metrics *metrics.ServerMetrics
	timeout time.Duration
}

func NewOrdersHandler(orders OrderOperations, m *metrics.ServerMetrics, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		metrics: m,
		timeout: timeout,
	}
}

type CreateOrderRequestDTO struct {
	Items           []cart.CartItem `json:"items"`
	TotalAmount     float64         `json:"total_amount"`
	ShippingAddress domain.Address  `json:"shipping_address"`
	BillingAddress  *domain.Address `json:"billing_address,omitempty"`
	PaymentMethod   string          `json:"payment_method"`
	CustomerNotes   string          `json:"customer_notes,omitempty"`
}

type CreateOrderResponseDTO struct {
	Success     bool      `json:"success"`
	ID          string    `json:"id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.SubmitOrder(ctx, userID, service.SubmitOrderRequest{
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
		CustomerNotes:   req.CustomerNotes,
		ExpectedTotal:   req.TotalAmount,
	})
	if err != nil {
		h.handleOrderError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.OrdersCreated.WithLabelValues(string(order.PaymentMethod)).Inc()
	}

	respondJSON(w, http.StatusOK, CreateOrderResponseDTO{
		Success:     true,
		ID:          order.ID.String(),
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
	})
}

func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrders(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list orders")
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a valid uuid")
		return
	}

	order, err := h.orders.GetOrder(ctx, userID, id)
	if err != nil {
		h.handleOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a valid uuid")
		return
	}

	if err := h.orders.CancelOrder(ctx, userID, id); err != nil {
		h.handleOrderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  string(domain.OrderStatusCancelled),
	})
}

// handleOrderError translates service errors into the error taxonomy:
// validation is client-fixable (400), persistence is retryable (500),
// raw driver text never leaves the process.
func (h *OrdersHandler) handleOrderError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
	case errors.As(err, &vErr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   vErr.Message,
			Code:    "validation_error",
			Details: vErr.Field,
		})
	case errors.Is(err, service.ErrTotalMismatch):
		respondError(w, http.StatusBadRequest, "total_mismatch", "total_amount does not match the server-computed total")
	case errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, repository.ErrNotCancellable):
		respondError(w, http.StatusConflict, "not_cancellable", "order can no longer be cancelled")
	case errors.Is(err, repository.ErrDuplicateOrder):
		respondError(w, http.StatusConflict, "duplicate_order", "order already exists")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to process order")
	}
}
