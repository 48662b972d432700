package http

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fjod/slime-shop/internal/cart"
	"github.com/fjod/slime-shop/internal/catalog"
	"github.com/fjod/slime-shop/internal/domain"
	"github.com/fjod/slime-shop/internal/notify"
	"github.com/fjod/slime-shop/internal/orders"
	"github.com/fjod/slime-shop/internal/storage"
)

type CatalogMock struct {
	products map[string]*catalog.Product
	err      error
}

func (c CatalogMock) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (c CatalogMock) ListProducts(_ context.Context, category string) ([]*catalog.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([]*catalog.Product, 0)
	for _, p := range c.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type MailerMock struct {
	mu    sync.Mutex
	sent  []notify.Template
	fail  map[notify.Template]error
	delay time.Duration
}

func (m *MailerMock) Send(ctx context.Context, template notify.Template, _ notify.Params) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, template)
	return m.fail[template]
}

type OrdersMock struct {
	mu     sync.Mutex
	orders map[string]domain.OrderRecord
}

func newOrdersMock() *OrdersMock {
	return &OrdersMock{orders: make(map[string]domain.OrderRecord)}
}

func (o *OrdersMock) SaveOrder(_ context.Context, order domain.OrderRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.orders[order.OrderID]; ok {
		return orders.ErrDuplicateOrder
	}
	o.orders[order.OrderID] = order
	return nil
}

func (o *OrdersMock) GetOrder(_ context.Context, id string) (*domain.OrderRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return &order, nil
}

func (o *OrdersMock) ListOrders(_ context.Context, filter orders.ListFilter) ([]domain.OrderRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.OrderRecord, 0)
	for _, order := range o.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.Email != "" && order.Email != filter.Email {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (o *OrdersMock) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.OrderRecord, error) {
	if !status.Valid() {
		return nil, orders.ErrInvalidStatus
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	order.Status = status
	o.orders[id] = order
	return &order, nil
}

// flakyStorage fails the next failGets reads.
type flakyStorage struct {
	*storage.MemoryStorage
	mu       sync.Mutex
	failGets int
}

func (f *flakyStorage) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	fail := f.failGets > 0
	if fail {
		f.failGets--
	}
	f.mu.Unlock()
	if fail {
		return "", errors.New("redis: i/o timeout")
	}
	return f.MemoryStorage.Get(ctx, key)
}

// frozenScheduler never fires, so add feedback stays in the animating phase.
type frozenScheduler struct{}

func (frozenScheduler) AfterFunc(time.Duration, func()) cart.Timer { return frozenTimer{} }

type frozenTimer struct{}

func (frozenTimer) Stop() bool { return true }
