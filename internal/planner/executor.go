package planner

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"daglayer/internal/hashid"
	"daglayer/internal/ledger"
	"daglayer/internal/txn"
)

// Executor runs a planned batch sequence against a Ledger using a bounded
// worker pool. Workers hold no shared locks: each executes a transaction
// against an exclusively-owned branch snapshot cloned from a per-batch
// base snapshot, and the planner commits the merged result as one ledger
// write after every branch in the batch completes.
type Executor struct {
	ledger *ledger.Ledger
	sem    *semaphore.Weighted
	log    *zap.SugaredLogger
}

// NewExecutor constructs an Executor bound to ledger with a worker pool of
// the given size. log may be nil, in which case a no-op logger is used.
func NewExecutor(l *ledger.Ledger, poolSize int, log *zap.SugaredLogger) *Executor {
	if poolSize <= 0 {
		poolSize = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Executor{
		ledger: l,
		sem:    semaphore.NewWeighted(int64(poolSize)),
		log:    log.Named("planner"),
	}
}

// ErrSnapshotMergeConflict indicates a planner bug: two branches in the
// same batch wrote overlapping keys. The batch was computed to be
// conflict-free, so this should never trigger in practice.
var ErrSnapshotMergeConflict = ledgerMergeConflictError{}

type ledgerMergeConflictError struct{}

func (ledgerMergeConflictError) Error() string {
	return "planner: snapshot merge conflict (planner bug)"
}

// ExecuteBlock plans and applies txs against the executor's ledger. It
// returns one Outcome per transaction, in original block order, and a
// multierr aggregate of every transaction's own failure (nil if all
// succeeded). The ledger advances only for succeeded transactions; a
// failed branch's effects are simply dropped, consistent with the
// planner's no-retry contract. If a batch cannot complete (a snapshot
// merge conflict or a cancelled context), ExecuteBlock returns nil
// outcomes and that error; batches committed before it stay committed.
func (e *Executor) ExecuteBlock(ctx context.Context, txs []*txn.Transaction, blockCtx ledger.BlockContext) ([]Outcome, error) {
	outcomes := make([]Outcome, len(txs))
	batches := Plan(txs)

	var aggErr error
	for batchIdx, batch := range batches {
		batchCtx := WithBatchIndex(ctx, batchIdx)
		merged, err := e.runBatch(batchCtx, txs, batch, blockCtx)
		if err != nil {
			return nil, err // planner bug or cancelled context; fail fast.
		}
		e.ledger.Commit(merged.writes)
		for _, o := range merged.outcomes {
			outcomes[o.Index] = o
			if o.Err != nil {
				aggErr = multierr.Append(aggErr, o.Err)
			}
		}
	}
	return outcomes, aggErr
}

type batchResult struct {
	writes   map[hashid.Address]ledger.Account
	outcomes []Outcome
}

// runBatch captures a base snapshot, executes every transaction in the
// batch against its own cloned branch concurrently (bounded by the worker
// pool), then merges successful branches' writes into one map. Because the
// batch is conflict-free by construction, the merge is a disjoint union;
// a detected overlap is reported as ErrSnapshotMergeConflict.
func (e *Executor) runBatch(ctx context.Context, txs []*txn.Transaction, batch []int, blockCtx ledger.BlockContext) (batchResult, error) {
	addrs := union(txs, batch)
	base := e.ledger.SnapshotFor(addrs)

	type branchResult struct {
		idx    int
		hash   hashid.Hash
		writes map[hashid.Address]ledger.Account
		err    error
	}
	results := make([]branchResult, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for slot, txIdx := range batch {
		slot, txIdx := slot, txIdx
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return batchResult{}, err
		}
		g.Go(func() error {
			defer e.sem.Release(1)
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			tx := txs[txIdx]
			branch := cloneSnapshot(base)
			err := ledger.ApplyToAccounts(branch, tx, blockCtx)
			results[slot] = branchResult{idx: txIdx, hash: tx.Hash(), writes: diff(base, branch), err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return batchResult{}, err
	}

	merged := make(map[hashid.Address]ledger.Account, len(addrs))
	outcomes := make([]Outcome, 0, len(batch))
	for _, r := range results {
		outcomes = append(outcomes, Outcome{Index: r.idx, Hash: r.hash, Err: r.err})
		if r.err != nil {
			e.log.Debugw("branch failed", "tx", r.hash.String(), "err", r.err)
			continue
		}
		for addr, acc := range r.writes {
			if _, exists := merged[addr]; exists {
				return batchResult{}, ErrSnapshotMergeConflict
			}
			merged[addr] = acc
		}
	}
	return batchResult{writes: merged, outcomes: outcomes}, nil
}

func cloneSnapshot(base map[hashid.Address]ledger.Account) map[hashid.Address]ledger.Account {
	out := make(map[hashid.Address]ledger.Account, len(base))
	for addr, acc := range base {
		out[addr] = acc.Clone()
	}
	return out
}

// diff returns the entries of after that changed relative to before
// (balance or nonce), used to compute a branch's write set.
func diff(before, after map[hashid.Address]ledger.Account) map[hashid.Address]ledger.Account {
	out := make(map[hashid.Address]ledger.Account)
	for addr, a := range after {
		b, ok := before[addr]
		if !ok || b.Nonce != a.Nonce || b.Balance.Cmp(a.Balance) != 0 {
			out[addr] = a
		}
	}
	return out
}
