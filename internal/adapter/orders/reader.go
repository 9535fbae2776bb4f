// Package orders reads the receivables advances are drawn against.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"agri-advance/internal/domain/advance"

	"github.com/go-resty/resty/v2"
)

type HTTPReader struct {
	client *resty.Client
}

var _ advance.OrderReader = (*HTTPReader)(nil)

func NewHTTPReader(baseURL string, timeout time.Duration) *HTTPReader {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPReader{client: c}
}

func (r *HTTPReader) GetOrder(ctx context.Context, orderID string) (*advance.Order, error) {
	var out advance.Order
	resp, err := r.client.R().
		SetContext(ctx).
		SetPathParam("order_id", orderID).
		SetResult(&out).
		Get("/v1/orders/{order_id}")
	if err != nil {
		return nil, fmt.Errorf("order request: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, advance.ErrOrderNotFound
	case resp.IsError():
		return nil, fmt.Errorf("order request: status %d", resp.StatusCode())
	}
	return &out, nil
}

// Memory serves orders from a map. For local runs and tests.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]advance.Order
}

var _ advance.OrderReader = (*Memory)(nil)

func NewMemory(orders ...advance.Order) *Memory {
	m := &Memory{orders: make(map[string]advance.Order, len(orders))}
	for _, o := range orders {
		m.orders[o.OrderID] = o
	}
	return m
}

// LoadFile reads a JSON array of orders.
func LoadFile(path string) (*Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []advance.Order
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewMemory(list...), nil
}

func (m *Memory) Put(o advance.Order) {
	m.mu.Lock()
	m.orders[o.OrderID] = o
	m.mu.Unlock()
}

func (m *Memory) GetOrder(_ context.Context, orderID string) (*advance.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, advance.ErrOrderNotFound
	}
	return &o, nil
}
