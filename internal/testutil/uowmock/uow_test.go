package uowmock

import (
	"context"
	"errors"
	"testing"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/pool"
	"agri-advance/internal/domain/uow"
)

func TestUoW_Unimplemented(t *testing.T) {
	m := &UoW{}
	ctx := context.Background()
	if err := m.WithinTx(ctx, func(uow.Repos) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinTx: want errUnimplemented, got %v", err)
	}
	if err := m.WithinAdvanceTx(ctx, "a", func(uow.Repos, *advance.Advance) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinAdvanceTx: want errUnimplemented, got %v", err)
	}
	if err := m.WithinPoolTx(ctx, "p", func(uow.Repos, *pool.LiquidityPool) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinPoolTx: want errUnimplemented, got %v", err)
	}
}

func TestWrap_ForwardsToInner(t *testing.T) {
	inner := &UoW{
		WithinPoolTxFn: func(_ context.Context, poolID string, fn func(uow.Repos, *pool.LiquidityPool) error) error {
			return fn(uow.Repos{}, &pool.LiquidityPool{PoolID: poolID})
		},
	}
	var got string
	err := Wrap(inner).WithinPoolTx(context.Background(), "p1", func(_ uow.Repos, p *pool.LiquidityPool) error {
		got = p.PoolID
		return nil
	})
	if err != nil || got != "p1" {
		t.Fatalf("got %q, err %v", got, err)
	}
}

func TestFailPoolTx(t *testing.T) {
	sentinel := errors.New("boom")
	delegated := 0
	fn := FailPoolTx(2, sentinel, func(context.Context, string, func(uow.Repos, *pool.LiquidityPool) error) error {
		delegated++
		return nil
	})
	body := func(uow.Repos, *pool.LiquidityPool) error { return nil }

	for i := 0; i < 2; i++ {
		if err := fn(context.Background(), "p", body); !errors.Is(err, sentinel) {
			t.Fatalf("call %d: want sentinel, got %v", i, err)
		}
	}
	if err := fn(context.Background(), "p", body); err != nil {
		t.Fatalf("third call: %v", err)
	}
	if delegated != 1 {
		t.Fatalf("delegated = %d, want 1", delegated)
	}
}
