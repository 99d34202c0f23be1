package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kimspro130/promode/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func testOrder(userID string) *domain.Order {
	orderID := uuid.New()
	return &domain.Order{
		ID:             orderID,
		UserID:         userID,
		OrderNumber:    domain.NewOrderNumber(),
		Subtotal:       190000,
		TaxAmount:      19000,
		ShippingAmount: 0,
		TotalAmount:    209000,
		Currency:       "UGX",
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentStatusPending,
		PaymentMethod:  domain.PaymentMethodPesapal,
		ShippingAddress: domain.Address{
			FullName:     "Amina Nakato",
			AddressLine1: "Plot 12 Luwum Street",
			City:         "Kampala",
			State:        "Central",
			PostalCode:   "00256",
			Country:      "UG",
		},
		BillingAddress: domain.Address{
			FullName:     "Amina Nakato",
			AddressLine1: "Plot 12 Luwum Street",
			City:         "Kampala",
			State:        "Central",
			PostalCode:   "00256",
			Country:      "UG",
		},
		Items: []domain.OrderItem{
			{
				ID:           uuid.New(),
				OrderID:      orderID,
				ProductID:    "7",
				ProductName:  "Vintage Denim Jacket",
				ProductImage: "https://cdn.example.com/denim.jpg",
				Quantity:     2,
				Size:         "M",
				UnitPrice:    95000,
				TotalPrice:   190000,
			},
		},
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	order := testOrder("user-1")
	require.NoError(t, repo.CreateOrderWithItems(ctx, order))

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.InDelta(t, 209000, got.TotalAmount, 0.001)
	assert.Equal(t, "Kampala", got.ShippingAddress.City)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Vintage Denim Jacket", got.Items[0].ProductName)
	assert.InDelta(t, 190000, got.Items[0].TotalPrice, 0.001)

	// order.created event lands in the same transaction
	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "order.created", events[0].EventType)
	assert.Equal(t, order.ID.String(), events[0].AggregateID)
}

func TestGetOrderByID_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetOrderByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListOrdersByUserID_ScopedAndOrdered(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first := testOrder("user-1")
	require.NoError(t, repo.CreateOrderWithItems(ctx, first))
	second := testOrder("user-1")
	require.NoError(t, repo.CreateOrderWithItems(ctx, second))
	other := testOrder("user-2")
	require.NoError(t, repo.CreateOrderWithItems(ctx, other))

	orders, err := repo.ListOrdersByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, "user-1", o.UserID)
		assert.Len(t, o.Items, 1)
	}
}

func TestCancelOrder_OnlyPending(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	order := testOrder("user-1")
	require.NoError(t, repo.CreateOrderWithItems(ctx, order))

	require.NoError(t, repo.CancelOrder(ctx, order.ID, "user-1"))

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)

	// cancelling again: no longer pending
	assert.ErrorIs(t, repo.CancelOrder(ctx, order.ID, "user-1"), ErrNotCancellable)
	// unknown order
	assert.ErrorIs(t, repo.CancelOrder(ctx, uuid.New(), "user-1"), ErrOrderNotFound)
	// wrong owner looks like a missing order
	fresh := testOrder("user-3")
	require.NoError(t, repo.CreateOrderWithItems(ctx, fresh))
	assert.ErrorIs(t, repo.CancelOrder(ctx, fresh.ID, "someone-else"), ErrOrderNotFound)
}

func TestUpdateStatus_GuardedByCurrentStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	order := testOrder("user-1")
	require.NoError(t, repo.CreateOrderWithItems(ctx, order))

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusConfirmed))
	assert.ErrorIs(t,
		repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusConfirmed),
		ErrIllegalTransition)
	assert.ErrorIs(t,
		repo.UpdateStatus(ctx, uuid.New(), domain.OrderStatusPending, domain.OrderStatusConfirmed),
		ErrOrderNotFound)
}

func TestUpdateStatus_SetsShippedTimestamp(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	order := testOrder("user-1")
	require.NoError(t, repo.CreateOrderWithItems(ctx, order))
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusConfirmed))
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed, domain.OrderStatusProcessing))
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, domain.OrderStatusProcessing, domain.OrderStatusShipped))

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ShippedAt)
	assert.Nil(t, got.DeliveredAt)
}

func TestApplyPaymentResult_IdempotentAndMonotonic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	order := testOrder("user-1")
	require.NoError(t, repo.CreateOrderWithItems(ctx, order))

	paid := PaymentUpdate{
		PaymentStatus: domain.PaymentStatusPaid,
		OrderStatus:   domain.OrderStatusConfirmed,
		PaymentMethod: domain.PaymentMethodPesapal,
		Version:       2,
	}

	applied, err := repo.ApplyPaymentResult(ctx, order.ID, paid)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)

	// same notification delivered twice: same final state
	applied, err = repo.ApplyPaymentResult(ctx, order.ID, paid)
	require.NoError(t, err)
	assert.True(t, applied)
	again, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, again.PaymentStatus)

	// out-of-order stale pending must not regress a paid order
	stale := PaymentUpdate{PaymentStatus: domain.PaymentStatusPending, Version: 0}
	applied, err = repo.ApplyPaymentResult(ctx, order.ID, stale)
	require.NoError(t, err)
	assert.False(t, applied)
	final, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, final.PaymentStatus)
}

func TestApplyPaymentResult_ReplayAfterAdvanceKeepsFulfilment(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	order := testOrder("user-1")
	require.NoError(t, repo.CreateOrderWithItems(ctx, order))

	paid := PaymentUpdate{
		PaymentStatus: domain.PaymentStatusPaid,
		OrderStatus:   domain.OrderStatusConfirmed,
		PaymentMethod: domain.PaymentMethodPesapal,
		Version:       2,
	}
	applied, err := repo.ApplyPaymentResult(ctx, order.ID, paid)
	require.NoError(t, err)
	require.True(t, applied)

	// fulfilment moves on while the gateway may still retry
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed, domain.OrderStatusProcessing))
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, domain.OrderStatusProcessing, domain.OrderStatusShipped))

	// late duplicate of the same notification: acknowledged, but the
	// shipped order must not rewind to confirmed
	applied, err = repo.ApplyPaymentResult(ctx, order.ID, paid)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, got.Status)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	assert.NotNil(t, got.ShippedAt)
}

func TestApplyPaymentResult_UnknownOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.ApplyPaymentResult(context.Background(), uuid.New(), PaymentUpdate{
		PaymentStatus: domain.PaymentStatusPaid,
		Version:       2,
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOutbox_MarkProcessed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	order := testOrder("user-1")
	require.NoError(t, repo.CreateOrderWithItems(ctx, order))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
