package payment

import (
	"strings"

	"github.com/kimspro130/promode/internal/order/domain"
)

// Result is the local projection of a gateway status string. Rank is a
// monotonic version: terminal outcomes outrank pending ones, and paid
// outranks failed so a successful retry can overwrite an earlier
// decline but never the reverse.
type Result struct {
	GatewayStatus string
	PaymentStatus domain.PaymentStatus
	// OrderStatus is the fulfilment advance that rides along with the
	// payment outcome; empty leaves the order where it is.
	OrderStatus domain.OrderStatus
	Rank        int
}

const (
	rankPending = 0
	rankFailed  = 1
	rankPaid    = 2
)

// MapGatewayStatus is a pure function from the gateway vocabulary onto
// the local pair. Anything unrecognized stays pending. Applying the
// same mapping twice yields the same result.
func MapGatewayStatus(gatewayStatus string) Result {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case "completed":
		return Result{
			GatewayStatus: gatewayStatus,
			PaymentStatus: domain.PaymentStatusPaid,
			OrderStatus:   domain.OrderStatusConfirmed,
			Rank:          rankPaid,
		}
	case "failed", "invalid":
		return Result{
			GatewayStatus: gatewayStatus,
			PaymentStatus: domain.PaymentStatusFailed,
			Rank:          rankFailed,
		}
	default:
		return Result{
			GatewayStatus: gatewayStatus,
			PaymentStatus: domain.PaymentStatusPending,
			Rank:          rankPending,
		}
	}
}
