package domain

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus is tracked independently of the fulfilment status.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodPaypal         PaymentMethod = "paypal"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodPesapal        PaymentMethod = "pesapal"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodPaypal, PaymentMethodCashOnDelivery, PaymentMethodPesapal:
		return true
	}
	return false
}

// transitions holds the forward path of the fulfilment state machine.
// Refund is an administrative side-exit from any state and is handled
// in CanTransitionTo directly.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == OrderStatusRefunded {
		return s != OrderStatusRefunded
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether the customer may still cancel. Only
// orders that have not advanced past pending qualify.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending
}

func (s OrderStatus) String() string {
	return string(s)
}

// Address is the value shape shared by shipping and billing. Billing
// defaults to shipping when omitted at submission.
type Address struct {
	FullName     string `json:"full_name"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

type Order struct {
	ID              uuid.UUID     `json:"id"`
	UserID          string        `json:"user_id"`
	OrderNumber     string        `json:"order_number"`
	Subtotal        float64       `json:"subtotal"`
	TaxAmount       float64       `json:"tax_amount"`
	ShippingAmount  float64       `json:"shipping_amount"`
	DiscountAmount  float64       `json:"discount_amount"`
	TotalAmount     float64       `json:"total_amount"`
	Currency        string        `json:"currency"`
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	PaymentVersion  int           `json:"-"`
	ShippingAddress Address       `json:"shipping_address"`
	BillingAddress  Address       `json:"billing_address"`
	CustomerNotes   string        `json:"customer_notes,omitempty"`
	TrackingNumber  string        `json:"tracking_number,omitempty"`
	Items           []OrderItem   `json:"order_items"`
	ShippedAt       *time.Time    `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time    `json:"delivered_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// OrderItem snapshots the product at purchase time. Orders must not
// change retroactively when the catalog does, so name, image and price
// are denormalized here. Immutable after creation.
type OrderItem struct {
	ID           uuid.UUID `json:"id"`
	OrderID      uuid.UUID `json:"order_id"`
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name"`
	ProductImage string    `json:"product_image"`
	Quantity     int       `json:"quantity"`
	Size         string    `json:"size"`
	UnitPrice    float64   `json:"unit_price"`
	TotalPrice   float64   `json:"total_price"`
}

const totalTolerance = 0.01

// TotalsConsistent checks total == subtotal + tax + shipping - discount
// within the floating-point tolerance.
func (o *Order) TotalsConsistent() bool {
	expected := o.Subtotal + o.TaxAmount + o.ShippingAmount - o.DiscountAmount
	return math.Abs(o.TotalAmount-expected) <= totalTolerance
}

const orderNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderNumber generates a human-quotable reference like
// PROMODE-1756465200000-4F7K2M9QX, middle segment being the creation
// time in unix milliseconds.
func NewOrderNumber() string {
	var b strings.Builder
	b.WriteString("PROMODE-")
	b.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	b.WriteByte('-')
	for i := 0; i < 9; i++ {
		b.WriteByte(orderNumberAlphabet[rand.Intn(len(orderNumberAlphabet))])
	}
	return b.String()
}
