package payment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/kimspro130/promode/internal/order/domain"
	"github.com/kimspro130/promode/internal/order/repository"
	"github.com/kimspro130/promode/internal/payment/pesapal"
)

var (
	ErrMissingTrackingID  = errors.New("missing order tracking id")
	ErrBadMerchantRef     = errors.New("merchant reference is not a valid order id")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// StatusFetcher queries the gateway for the authoritative state of a
// transaction. Satisfied by *pesapal.Client.
type StatusFetcher interface {
	GetTransactionStatus(ctx context.Context, orderTrackingID string) (*pesapal.TransactionStatus, error)
}

// PaymentApplier is the slice of the order repository the callback
// handler needs.
type PaymentApplier interface {
	ApplyPaymentResult(ctx context.Context, id uuid.UUID, upd repository.PaymentUpdate) (bool, error)
}

// Outcome tells the HTTP layer where to send the shopper after a
// redirect callback.
type Outcome struct {
	OrderID uuid.UUID
	Result  Result
	// Applied is false when the update was a stale duplicate and the
	// stored state already reflects a newer gateway decision.
	Applied bool
}

// CallbackService resolves gateway callbacks. Both the browser redirect
// and the server-to-server IPN land here; neither carries a trusted
// status, so the gateway is always re-queried before anything is
// written.
type CallbackService struct {
	gateway StatusFetcher
	repo    PaymentApplier
}

func NewCallbackService(gateway StatusFetcher, repo PaymentApplier) *CallbackService {
	return &CallbackService{gateway: gateway, repo: repo}
}

// Handle queries the gateway for trackingID, maps the status and applies
// it to the order named by merchantRef. Repeated deliveries of the same
// notification converge on the same stored state.
//
// Returns repository.ErrOrderNotFound when merchantRef matches no order;
// callers decide whether that is a client error (redirect) or an
// acknowledged no-op (IPN retry for a purged order).
func (s *CallbackService) Handle(ctx context.Context, trackingID, merchantRef string) (*Outcome, error) {
	if trackingID == "" {
		return nil, ErrMissingTrackingID
	}
	orderID, err := uuid.Parse(merchantRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadMerchantRef, merchantRef)
	}

	status, err := s.gateway.GetTransactionStatus(ctx, trackingID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	result := MapGatewayStatus(status.PaymentStatusDescription)
	// Every callback comes through this gateway, so the order is stamped
	// pesapal regardless of the instrument (card, mobile money) the
	// gateway reports in status.PaymentMethod.
	applied, err := s.repo.ApplyPaymentResult(ctx, orderID, repository.PaymentUpdate{
		PaymentStatus: result.PaymentStatus,
		OrderStatus:   result.OrderStatus,
		PaymentMethod: domain.PaymentMethodPesapal,
		Version:       result.Rank,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		log.Printf("payment callback for order %s ignored: stored state is newer than %q", orderID, status.PaymentStatusDescription)
	}

	return &Outcome{OrderID: orderID, Result: result, Applied: applied}, nil
}
