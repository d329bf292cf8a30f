package mining

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"daglayer/internal/block"
	"daglayer/internal/blockdag"
	"daglayer/internal/ledger"
	"daglayer/internal/mempool"
	"daglayer/internal/planner"
	"daglayer/internal/txn"
)

// Stats aggregates a single stream's runtime counters.
type Stats struct {
	Attempts uint64
	Sealed   uint64
	Rejected uint64
}

// streamMiner runs one of the three independent mining cadences: on each
// tick it drains candidate transactions from the shared mempool, builds a
// block against the DAG's current tips, searches for a nonce satisfying
// its own difficulty target, and admits the result to the DAG.
type streamMiner struct {
	stream Stream
	dag    *blockdag.DAG
	pool   *mempool.Pool
	exec   *planner.Executor
	diff   *difficultyTracker
	batch  int
	log    *logrus.Entry
	mu     sync.RWMutex
	stats  Stats
}

func newStreamMiner(stream Stream, dag *blockdag.DAG, pool *mempool.Pool, exec *planner.Executor, batch int, log *logrus.Entry) *streamMiner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	d := streamDefaults[stream]
	return &streamMiner{
		stream: stream,
		dag:    dag,
		pool:   pool,
		exec:   exec,
		diff:   newDifficultyTracker(d.Interval, d.RetargetEvery),
		batch:  batch,
		log:    log.WithField("stream", stream.String()),
	}
}

func (s *streamMiner) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	interval := streamDefaults[s.stream].Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *streamMiner) tick(ctx context.Context) {
	txs := s.pool.Drain(s.batch, time.Now())
	tips := s.dag.Tips()

	var height uint64
	for _, tip := range tips {
		if score, ok := s.dag.BlueScore(tip); ok && score+1 > height {
			height = score + 1
		}
	}

	header := block.Header{
		ParentHashes: tips,
		Height:       height,
		Stream:       s.stream,
		Difficulty:   s.diff.compact(),
		Timestamp:    uint64(time.Now().Unix()),
	}
	target := s.diff.current()

	s.mu.Lock()
	s.stats.Attempts++
	s.mu.Unlock()

	nonce, ok := s.seal(&header, target)
	if !ok {
		s.mu.Lock()
		s.stats.Rejected++
		s.mu.Unlock()
		s.resubmit(txs)
		return
	}
	header.Nonce = nonce

	blk := block.New(header, txs)
	if err := s.dag.Admit(blk); err != nil {
		s.log.WithError(err).Warn("sealed block rejected by DAG")
		s.mu.Lock()
		s.stats.Rejected++
		s.mu.Unlock()
		s.resubmit(txs)
		return
	}

	s.applyAndRetire(ctx, txs, header)

	s.mu.Lock()
	s.stats.Sealed++
	s.mu.Unlock()
	s.diff.recordAndRetarget(time.Now())
	s.log.WithField("height", header.Height).Debug("sealed block")
}

// applyAndRetire runs the sealed block's transactions through the planner
// against the ledger. Drain has already removed txs from the mempool, so
// this only ever needs to act on failures: a transaction that did not
// apply is resubmitted so it remains eligible for a future block, leaving
// only the transactions that actually applied retired for good. A nil
// outcomes slice means the planner aborted a batch on an internal bug or
// context cancellation: that batch and every later one were not applied,
// though batches before it may already be committed. Every transaction is
// resubmitted in that case; those already applied are turned away by
// Admit's stale-nonce check when the pool has a nonce source. The block
// stays admitted to the DAG regardless, since DAG admission and ledger
// application are independent concerns.
func (s *streamMiner) applyAndRetire(ctx context.Context, txs []*txn.Transaction, header block.Header) {
	blockCtx := ledger.BlockContext{Height: header.Height, Timestamp: header.Timestamp}
	outcomes, err := s.exec.ExecuteBlock(ctx, txs, blockCtx)
	if outcomes == nil {
		if err != nil {
			s.log.WithError(err).Error("block execution aborted; resubmitting every drained transaction")
		}
		s.resubmit(txs)
		return
	}
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		s.log.WithField("tx", o.Hash.String()).WithError(o.Err).Debug("transaction not applied; resubmitting")
		s.resubmit([]*txn.Transaction{txs[o.Index]})
	}
}

// resubmit re-admits transactions that Drain already removed from the
// pool but that did not end up applied. A resubmit failure (e.g. the pool
// is now full, or the transaction raced a newer one from the same sender)
// is logged and the transaction is dropped rather than retried further.
func (s *streamMiner) resubmit(txs []*txn.Transaction) {
	for _, tx := range txs {
		if err := s.pool.Admit(tx); err != nil {
			s.log.WithField("tx", tx.Hash().String()).WithError(err).Debug("could not resubmit unapplied transaction")
		}
	}
}

// seal performs a bounded nonce search against target, returning false if
// no satisfying nonce was found within the search budget. A bounded budget
// keeps a slow stream from starving faster ones when run under a shared
// scheduler in tests or constrained deployments.
func (s *streamMiner) seal(h *block.Header, target *big.Int) (uint64, bool) {
	const maxAttempts = 1 << 16
	base := *h
	for nonce := uint64(0); nonce < maxAttempts; nonce++ {
		base.Nonce = nonce
		sum := sealHash(s.stream, base.Hash().Bytes())
		if new(big.Int).SetBytes(sum.Bytes()).Cmp(target) <= 0 {
			return nonce, true
		}
	}
	return 0, false
}

func (s *streamMiner) snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Coordinator drives the three independent mining streams against a
// shared DAG and mempool, each with its own cadence and difficulty.
type Coordinator struct {
	dag     *blockdag.DAG
	pool    *mempool.Pool
	exec    *planner.Executor
	streams map[Stream]*streamMiner
	log     *logrus.Entry
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewCoordinator wires a Coordinator over the given DAG, mempool and
// planner Executor. batchSize bounds how many transactions each stream
// tick drains per candidate block. Drained transactions leave pool at
// once; every sealed, DAG-admitted block's transactions are then run
// through exec against the ledger, and any that did not apply (or whose
// block was not sealed or admitted) are re-admitted to pool.
func NewCoordinator(dag *blockdag.DAG, pool *mempool.Pool, exec *planner.Executor, batchSize int, log *logrus.Entry) *Coordinator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "mining")
	c := &Coordinator{
		dag:     dag,
		pool:    pool,
		exec:    exec,
		streams: make(map[Stream]*streamMiner),
		log:     log,
	}
	for _, st := range []Stream{StreamA, StreamB, StreamC} {
		c.streams[st] = newStreamMiner(st, dag, pool, exec, batchSize, log)
	}
	return c
}

// Start launches all three stream loops. It is a no-op if already running.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	for _, sm := range c.streams {
		c.wg.Add(1)
		go sm.run(c.ctx, &c.wg)
	}
	c.log.Info("mining coordinator started")
}

// Stop halts all stream loops and blocks until they have exited.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	c.log.Info("mining coordinator stopped")
}

// StatsFor returns a snapshot of a single stream's counters.
func (c *Coordinator) StatsFor(stream Stream) Stats {
	sm, ok := c.streams[stream]
	if !ok {
		return Stats{}
	}
	return sm.snapshot()
}
