package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/telecare/billingcore/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil)

// Snapshotter is a store whose state can be restored on rollback
type Snapshotter interface {
	Snapshot() func()
}

type txKey struct{}

// MockPostgresClient runs transactions against the in-memory stores. Outer
// transactions are serialized and a failed one restores every registered store.
type MockPostgresClient struct {
	mu        sync.Mutex
	stores    []Snapshotter
	committed atomic.Int64
	rolled    atomic.Int64
}

// NewMockPostgresClient creates a client that rolls back the given stores
func NewMockPostgresClient(stores ...Snapshotter) *MockPostgresClient {
	return &MockPostgresClient{stores: stores}
}

// WithTx executes fn, reusing the transaction already on ctx
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	restores := make([]func(), 0, len(c.stores))
	for _, store := range c.stores {
		restores = append(restores, store.Snapshot())
	}

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		for _, restore := range restores {
			restore()
		}
		c.rolled.Add(1)
		return err
	}
	c.committed.Add(1)
	return nil
}

// Committed returns how many outer transactions committed
func (c *MockPostgresClient) Committed() int64 {
	return c.committed.Load()
}

// RolledBack returns how many outer transactions rolled back
func (c *MockPostgresClient) RolledBack() int64 {
	return c.rolled.Load()
}
