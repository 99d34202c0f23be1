package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/kimspro130/promode/internal/order/domain"
	"github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// CreateOrderWithItems writes the order header, every item row and the
// order.created outbox event in one transaction. There is no
// compensating delete path: either everything lands or nothing does.
func (r *Repository) CreateOrderWithItems(ctx context.Context, order *domain.Order) error {
	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, order_number,
			subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
			currency, status, payment_status, payment_method, payment_version,
			shipping_address, billing_address, customer_notes,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW(),NOW())`,
		order.ID,
		order.UserID,
		order.OrderNumber,
		order.Subtotal,
		order.TaxAmount,
		order.ShippingAmount,
		order.DiscountAmount,
		order.TotalAmount,
		order.Currency,
		order.Status,
		order.PaymentStatus,
		order.PaymentMethod,
		order.PaymentVersion,
		shippingJSON,
		billingJSON,
		order.CustomerNotes,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, product_name, product_image,
				quantity, size, unit_price, total_price
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.ProductImage,
			item.Quantity,
			item.Size,
			item.UnitPrice,
			item.TotalPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	payload := map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"total_amount": order.TotalAmount,
		"currency":     order.Currency,
		"status":       order.Status,
	}
	if err := insertOutboxEvent(ctx, tx, order.ID.String(), "order.created", payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, order_number,
	subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
	currency, status, payment_status, payment_method, payment_version,
	shipping_address, billing_address, customer_notes, tracking_number,
	shipped_at, delivered_at, created_at, updated_at`

func scanOrder(scanner interface{ Scan(...interface{}) error }) (*domain.Order, error) {
	var order domain.Order
	var shippingJSON, billingJSON []byte

	err := scanner.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Subtotal,
		&order.TaxAmount,
		&order.ShippingAmount,
		&order.DiscountAmount,
		&order.TotalAmount,
		&order.Currency,
		&order.Status,
		&order.PaymentStatus,
		&order.PaymentMethod,
		&order.PaymentVersion,
		&shippingJSON,
		&billingJSON,
		&order.CustomerNotes,
		&order.TrackingNumber,
		&order.ShippedAt,
		&order.DeliveredAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(shippingJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(billingJSON, &order.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}

	return &order, nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	items, err := r.loadItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	return order, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	var ids []uuid.UUID
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	itemsByOrder, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		order.Items = itemsByOrder[order.ID]
		if order.Items == nil {
			order.Items = []domain.OrderItem{}
		}
	}

	return orders, nil
}

func (r *Repository) loadItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.OrderItem, error) {
	idStrings := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		idStrings = append(idStrings, id.String())
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, product_image,
		       quantity, size, unit_price, total_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`,
		pq.Array(idStrings))
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]domain.OrderItem)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductImage,
			&item.Quantity,
			&item.Size,
			&item.UnitPrice,
			&item.TotalPrice,
		); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("item row iteration error: %w", err)
	}

	return result, nil
}

func (r *Repository) CancelOrder(ctx context.Context, id uuid.UUID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = $4`,
		id, userID, domain.OrderStatusCancelled, domain.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel order rows affected: %w", err)
	}
	if affected == 0 {
		var status domain.OrderStatus
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE id = $1 AND user_id = $2`, id, userID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("check order status: %w", err)
		}
		return ErrNotCancellable
	}

	payload := map[string]interface{}{"order_id": id, "user_id": userID}
	if err := insertOutboxEvent(ctx, tx, id.String(), "order.cancelled", payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3,
			shipped_at = CASE WHEN $3 = 'shipped' THEN NOW() ELSE shipped_at END,
			delivered_at = CASE WHEN $3 = 'delivered' THEN NOW() ELSE delivered_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrIllegalTransition
	}
	return nil
}

// ApplyPaymentResult applies a mapped gateway status under the version
// guard. Re-delivering the same result is a no-op write of the same
// values; an older result than the stored one is skipped entirely.
// Fulfilment status only ever moves off pending here: once the order has
// advanced (processing, shipped, ...) a replayed notification keeps the
// stored status, because confirmed is the only transition payment owns.
func (r *Repository) ApplyPaymentResult(ctx context.Context, id uuid.UUID, upd PaymentUpdate) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET
			payment_status = $2,
			status = CASE WHEN status = 'pending' AND $3 <> '' THEN $3 ELSE status END,
			payment_method = COALESCE(NULLIF($4, ''), payment_method),
			payment_version = $5,
			updated_at = NOW()
		WHERE id = $1 AND payment_version <= $5`,
		id, upd.PaymentStatus, string(upd.OrderStatus), string(upd.PaymentMethod), upd.Version)
	if err != nil {
		return false, fmt.Errorf("apply payment result: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment result rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return false, fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return false, ErrOrderNotFound
		}
		// Stored version is newer: stale duplicate, deliberately ignored.
		return false, nil
	}

	eventType := ""
	switch upd.PaymentStatus {
	case domain.PaymentStatusPaid:
		eventType = "order.paid"
	case domain.PaymentStatusFailed:
		eventType = "order.payment_failed"
	}
	if eventType != "" {
		payload := map[string]interface{}{
			"order_id":       id,
			"payment_status": upd.PaymentStatus,
		}
		if err := insertOutboxEvent(ctx, tx, id.String(), eventType, payload); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit payment result: %w", err)
	}
	return true, nil
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_outbox (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		aggregateID, eventType, data)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at, processed_at
		FROM order_outbox WHERE processed_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE order_outbox SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
