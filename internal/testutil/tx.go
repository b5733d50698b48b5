// Package testutil holds in-memory stand-ins for the database layer used by
// feature tests.
package testutil

import (
	"context"
	"sync"
)

// Snapshotter is a fake store that can save its state and later restore it.
type Snapshotter interface {
	Snapshot() (restore func())
}

type txKey struct{}

// Tx is a postgres.Transactor for fakes. Transactions run one at a time and
// every registered store is rolled back when fn fails. Nested calls behave like
// savepoints: they restore only what they changed.
type Tx struct {
	mu     sync.Mutex
	stores []Snapshotter

	Begun      int
	RolledBack int
}

// NewTx creates a transactor that rolls back the given stores.
func NewTx(stores ...Snapshotter) *Tx {
	return &Tx{stores: stores}
}

// WithinTx runs fn as one unit.
func (t *Tx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return t.run(ctx, fn)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.Begun++

	if err := t.run(context.WithValue(ctx, txKey{}, true), fn); err != nil {
		t.RolledBack++
		return err
	}
	return nil
}

func (t *Tx) run(ctx context.Context, fn func(ctx context.Context) error) error {
	restores := make([]func(), 0, len(t.stores))
	for _, s := range t.stores {
		restores = append(restores, s.Snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

// Failures injects errors into named fake store calls.
type Failures struct {
	mu   sync.Mutex
	errs map[string]error
}

// Set makes every later call to op fail with err. A nil err clears it.
func (f *Failures) Set(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = map[string]error{}
	}
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Err returns the injected error for op, if any.
func (f *Failures) Err(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}
