package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	cart "github.com/kimspro130/promode/internal/cart/domain"
	"github.com/kimspro130/promode/internal/order/domain"
	r "github.com/kimspro130/promode/internal/order/repository"
)

// CartClearer empties the submitting user's server-side cart once the
// order has committed. Clearing is best-effort: a failure is logged,
// never surfaced, because the order already exists.
type CartClearer interface {
	Clear(ctx context.Context, ownerKey string) error
}

type SubmitOrderRequest struct {
	Items           []cart.CartItem
	ShippingAddress domain.Address
	BillingAddress  *domain.Address
	PaymentMethod   domain.PaymentMethod
	CustomerNotes   string
	// ExpectedTotal is the client's idea of the total. Zero means the
	// client did not send one. Non-zero values are cross-checked
	// against the server recomputation; the server is authoritative.
	ExpectedTotal float64
}

type OrderService struct {
	repo     r.OrderRepository
	pricing  domain.Pricing
	currency string
	carts    CartClearer
}

func NewOrderService(repo r.OrderRepository, pricing domain.Pricing, currency string, carts CartClearer) *OrderService {
	return &OrderService{
		repo:     repo,
		pricing:  pricing,
		currency: currency,
		carts:    carts,
	}
}

// SubmitOrder validates the cart and addresses, recomputes totals
// server-side, and persists the order atomically. Preconditions are
// checked in order; the first failure wins and nothing is written.
func (s *OrderService) SubmitOrder(ctx context.Context, userID string, req SubmitOrderRequest) (*domain.Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	if err := domain.ValidateCartItems(req.Items); err != nil {
		return nil, err
	}
	if err := domain.ValidateAddress("shipping_address", req.ShippingAddress); err != nil {
		return nil, err
	}
	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		if err := domain.ValidateAddress("billing_address", *req.BillingAddress); err != nil {
			return nil, err
		}
		billing = *req.BillingAddress
	}
	if !req.PaymentMethod.Valid() {
		return nil, &domain.ValidationError{Field: "payment_method", Message: "payment method is not supported"}
	}
	if err := domain.ValidateCustomerNotes(req.CustomerNotes); err != nil {
		return nil, err
	}

	totals := s.pricing.Compute(req.Items, 0)
	if req.ExpectedTotal != 0 && !totals.Matches(req.ExpectedTotal) {
		return nil, fmt.Errorf("%w: client sent %.2f, server computed %.2f",
			ErrTotalMismatch, req.ExpectedTotal, totals.TotalAmount)
	}

	status := domain.OrderStatusPending
	if req.PaymentMethod == domain.PaymentMethodCashOnDelivery {
		status = domain.OrderStatusConfirmed
	}

	orderID := uuid.New()
	order := &domain.Order{
		ID:              orderID,
		UserID:          userID,
		OrderNumber:     domain.NewOrderNumber(),
		Subtotal:        totals.Subtotal,
		TaxAmount:       totals.TaxAmount,
		ShippingAmount:  totals.ShippingAmount,
		DiscountAmount:  totals.DiscountAmount,
		TotalAmount:     totals.TotalAmount,
		Currency:        s.currency,
		Status:          status,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		CustomerNotes:   req.CustomerNotes,
		Items:           make([]domain.OrderItem, 0, len(req.Items)),
	}

	for _, item := range req.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:           uuid.New(),
			OrderID:      orderID,
			ProductID:    item.ProductID,
			ProductName:  item.Name,
			ProductImage: item.ImageURL,
			Quantity:     item.Quantity,
			Size:         item.Size,
			UnitPrice:    item.UnitPrice,
			TotalPrice:   item.UnitPrice * float64(item.Quantity),
		})
	}

	if err := s.repo.CreateOrderWithItems(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	if s.carts != nil {
		if err := s.carts.Clear(ctx, userID); err != nil {
			log.Printf("failed to clear cart after order %s: %v", order.ID, err)
		}
	}

	return order, nil
}

// GetOrder fetches a single order, scoped to the owner. A mismatched
// owner is indistinguishable from a missing order.
func (s *OrderService) GetOrder(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, r.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersByUserID(ctx, userID)
}

// CancelOrder is the customer-initiated side exit; it succeeds only
// while the order is still pending.
func (s *OrderService) CancelOrder(ctx context.Context, userID string, id uuid.UUID) error {
	return s.repo.CancelOrder(ctx, id, userID)
}

// AdvanceStatus is the administrative path along the fulfilment state
// machine. Transition legality is checked before touching the row.
func (s *OrderService) AdvanceStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return r.ErrIllegalTransition
	}
	return s.repo.UpdateStatus(ctx, id, from, to)
}
