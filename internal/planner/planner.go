// Package planner partitions a block's transactions into dependency-
// respecting batches and executes each batch's transactions concurrently
// over snapshotted ledger state that is merged back after the batch
// completes.
package planner

import (
	"context"
	"sort"

	"daglayer/internal/hashid"
	"daglayer/internal/txn"
)

// Plan partitions txs (in block order) into batches of indices into txs.
// Within a batch, no two transactions share any touched address; batches
// execute in the returned order and the concatenation of batches is a
// permutation of [0, len(txs)) preserving each address's relative order.
//
// Two transactions conflict iff their address sets intersect. An edge i->j
// (i<j) exists iff they conflict; batch k contains exactly the
// transactions with no unsatisfied predecessor after batch k-1 is removed
// (Kahn's algorithm), ties broken by original index.
func Plan(txs []*txn.Transaction) [][]int {
	n := len(txs)
	if n == 0 {
		return nil
	}

	addrSets := make([][]hashid.Address, n)
	for i, tx := range txs {
		addrSets[i] = tx.AddressSet()
	}

	inDegree := make([]int, n)
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if conflicts(addrSets[i], addrSets[j]) {
				adj[i] = append(adj[i], j)
				inDegree[j]++
			}
		}
	}

	processed := make([]bool, n)
	remaining := n
	var batches [][]int
	for remaining > 0 {
		var batch []int
		for i := 0; i < n; i++ {
			if !processed[i] && inDegree[i] == 0 {
				batch = append(batch, i)
			}
		}
		if len(batch) == 0 {
			// Unreachable: edges only run from lower to higher index, so
			// the dependency graph is acyclic by construction.
			panic("planner: dependency cycle detected")
		}
		sort.Ints(batch)
		for _, i := range batch {
			processed[i] = true
			remaining--
			for _, j := range adj[i] {
				inDegree[j]--
			}
		}
		batches = append(batches, batch)
	}
	return batches
}

func conflicts(a, b []hashid.Address) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// union returns the deduplicated union of every address touched by the
// transactions at the given indices.
func union(txs []*txn.Transaction, idxs []int) []hashid.Address {
	seen := make(map[hashid.Address]struct{})
	var out []hashid.Address
	for _, i := range idxs {
		for _, a := range txs[i].AddressSet() {
			if _, ok := seen[a]; !ok {
				seen[a] = struct{}{}
				out = append(out, a)
			}
		}
	}
	return out
}

// Outcome is the per-transaction result of a planned execution.
type Outcome struct {
	Index int
	Hash  hashid.Hash
	Err   error
}

// contextKeyType avoids collisions with other packages' context keys.
type contextKeyType struct{}

var contextKey contextKeyType

// WithBatchIndex tags ctx with the batch index currently executing, purely
// for log correlation by callers that want it.
func WithBatchIndex(ctx context.Context, idx int) context.Context {
	return context.WithValue(ctx, contextKey, idx)
}

// BatchIndexFromContext retrieves a batch index set by WithBatchIndex.
func BatchIndexFromContext(ctx context.Context) (int, bool) {
	idx, ok := ctx.Value(contextKey).(int)
	return idx, ok
}
