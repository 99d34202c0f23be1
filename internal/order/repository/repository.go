package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kimspro130/promode/internal/order/domain"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrNotCancellable     = errors.New("order can no longer be cancelled")
	ErrDuplicateOrder     = errors.New("order with this number already exists")
	ErrIllegalTransition  = errors.New("illegal order status transition")
	ErrStalePaymentUpdate = errors.New("payment update is older than the stored one")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// PaymentUpdate carries the mapped gateway result. Version is the
// monotonic rank of the gateway status; updates with a lower rank than
// the stored one are ignored so late IPN retries cannot regress a paid
// order back to pending.
type PaymentUpdate struct {
	PaymentStatus domain.PaymentStatus
	OrderStatus   domain.OrderStatus // empty leaves fulfilment status untouched
	PaymentMethod domain.PaymentMethod
	Version       int
}

// OutboxEvent rows are written in the same transaction as the order
// state change they describe and drained by the outbox poller.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

type OrderRepository interface {
	// CreateOrderWithItems persists the order, its items and an
	// order.created outbox event atomically.
	CreateOrderWithItems(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	// CancelOrder flips a pending order owned by userID to cancelled.
	CancelOrder(ctx context.Context, id uuid.UUID, userID string) error
	// UpdateStatus advances the fulfilment status, guarded by the
	// expected current status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
	// ApplyPaymentResult applies a mapped gateway status. Returns
	// (false, nil) when the stored version is newer (stale duplicate)
	// and ErrOrderNotFound when the id matches nothing.
	ApplyPaymentResult(ctx context.Context, id uuid.UUID, upd PaymentUpdate) (bool, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error

	RunMigrations(cred *Credentials) error
	Close() error
}
