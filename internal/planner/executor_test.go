package planner

import (
	"context"
	"math/big"
	"testing"

	"daglayer/internal/ledger"
	"daglayer/internal/txn"
)

func TestExecuteBlockAppliesIndependentBatchConcurrently(t *testing.T) {
	A, B, C, D := addr(1), addr(2), addr(3), addr(4)
	l := ledger.New(nil)
	l.Credit(A, big.NewInt(1000))
	l.Credit(C, big.NewInt(1000))

	t1 := txn.New(A, B, big.NewInt(100), big.NewInt(0), 0, nil, 0)
	t2 := txn.New(C, D, big.NewInt(200), big.NewInt(0), 0, nil, 0)

	exec := NewExecutor(l, 4, nil)
	outcomes, err := exec.ExecuteBlock(context.Background(), []*txn.Transaction{t1, t2}, ledger.BlockContext{})
	if err != nil {
		t.Fatalf("ExecuteBlock: %v", err)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("unexpected per-tx error: %v", o.Err)
		}
	}
	if l.Balance(B).Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance(B) = %s, want 100", l.Balance(B))
	}
	if l.Balance(D).Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("balance(D) = %s, want 200", l.Balance(D))
	}
}

func TestExecuteBlockPreservesSenderNonceOrderAcrossBatches(t *testing.T) {
	A, B := addr(1), addr(2)
	l := ledger.New(nil)
	l.Credit(A, big.NewInt(1000))

	t1 := txn.New(A, B, big.NewInt(10), big.NewInt(0), 0, nil, 0)
	t2 := txn.New(B, A, big.NewInt(5), big.NewInt(0), 0, nil, 0) // conflicts with t1 on B
	t3 := txn.New(A, B, big.NewInt(10), big.NewInt(0), 1, nil, 0)

	exec := NewExecutor(l, 4, nil)
	outcomes, err := exec.ExecuteBlock(context.Background(), []*txn.Transaction{t1, t2, t3}, ledger.BlockContext{})
	if err != nil {
		t.Fatalf("ExecuteBlock: %v", err)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("unexpected per-tx error: %v", o.Err)
		}
	}
	if l.Nonce(A) != 2 {
		t.Fatalf("nonce(A) = %d, want 2", l.Nonce(A))
	}
}

func TestExecuteBlockPerTransactionFailureDoesNotBlockOthers(t *testing.T) {
	A, B, C := addr(1), addr(2), addr(3)
	l := ledger.New(nil)
	l.Credit(A, big.NewInt(1000))
	// C has no funds.

	ok := txn.New(A, B, big.NewInt(10), big.NewInt(0), 0, nil, 0)
	bad := txn.New(C, B, big.NewInt(10), big.NewInt(0), 0, nil, 0)

	exec := NewExecutor(l, 4, nil)
	outcomes, err := exec.ExecuteBlock(context.Background(), []*txn.Transaction{ok, bad}, ledger.BlockContext{})
	if err == nil {
		t.Fatalf("expected aggregate error reporting bad tx failure")
	}
	if outcomes[0].Err != nil {
		t.Fatalf("expected first tx to succeed, got %v", outcomes[0].Err)
	}
	if outcomes[1].Err == nil {
		t.Fatalf("expected second tx to fail")
	}
	if l.Balance(B).Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected successful tx to still commit, balance(B)=%s", l.Balance(B))
	}
}

func TestUnionDeduplicates(t *testing.T) {
	A, B := addr(1), addr(2)
	t1 := txn.New(A, B, big.NewInt(1), big.NewInt(0), 0, nil, 0)
	t2 := txn.New(A, B, big.NewInt(1), big.NewInt(0), 1, nil, 0)
	got := union([]*txn.Transaction{t1, t2}, []int{0, 1})
	if len(got) != 2 {
		t.Fatalf("expected deduplicated union of size 2, got %v", got)
	}
}
