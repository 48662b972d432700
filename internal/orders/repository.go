package orders

import (
	"context"
	"errors"

	"github.com/fjod/slime-shop/internal/domain"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order already exists")
	ErrInvalidStatus  = errors.New("invalid order status")
	ErrInvalidOrder   = errors.New("invalid order")
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Sink receives a finished order. The checkout flow treats it as best effort.
type Sink interface {
	SaveOrder(ctx context.Context, order domain.OrderRecord) error
}

type ListFilter struct {
	Status domain.OrderStatus
	Email  string
	Limit  int
}

func (f ListFilter) limit() int64 {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return int64(f.Limit)
	}
}

type Repository interface {
	Sink
	GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error)
	// ListOrders returns newest first.
	ListOrders(ctx context.Context, filter ListFilter) ([]domain.OrderRecord, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.OrderRecord, error)
}
