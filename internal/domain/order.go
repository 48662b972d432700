package domain

import (
	"fmt"
	"math/rand"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// PaymentMethod is the only payment arrangement the shop offers: an invoice follows by email.
const PaymentMethod = "Invoice by email (pay before shipping)"

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

type OrderItem struct {
	ProductID string  `json:"product_id" bson:"product_id"`
	Name      string  `json:"name" bson:"name"`
	Price     float64 `json:"price" bson:"price"`
	Quantity  int     `json:"quantity" bson:"quantity"`
}

type OrderRecord struct {
	OrderID         string      `json:"order_id" bson:"order_id"`
	Name            string      `json:"name" bson:"name"`
	Email           string      `json:"email" bson:"email"`
	Phone           string      `json:"phone" bson:"phone"`
	Items           []OrderItem `json:"items" bson:"items"`
	Subtotal        float64     `json:"subtotal" bson:"subtotal"`
	Total           float64     `json:"total" bson:"total"`
	Status          OrderStatus `json:"status" bson:"status"`
	ShippingAddress string      `json:"shipping_address" bson:"shipping_address"`
	PaymentMethod   string      `json:"payment_method" bson:"payment_method"`
	Notes           string      `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" bson:"updated_at"`
}

// SnapshotItems copies cart lines into order items; later cart changes do not leak into the order.
func SnapshotItems(lines []CartLine) []OrderItem {
	items := make([]OrderItem, len(lines))
	for i, l := range lines {
		items[i] = OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.UnitPrice,
			Quantity:  l.Quantity,
		}
	}
	return items
}

// NewOrderID returns a readable id such as "ORD-1760550000-0427".
func NewOrderID(now time.Time, rnd *rand.Rand) string {
	var n int
	if rnd != nil {
		n = rnd.Intn(10000)
	} else {
		n = rand.Intn(10000)
	}
	return fmt.Sprintf("ORD-%d-%04d", now.Unix(), n)
}
