package shard

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"daglayer/internal/block"
	"daglayer/internal/blockdag"
	"daglayer/internal/hashid"
	"daglayer/internal/ledger"
	"daglayer/internal/mempool"
	"daglayer/internal/planner"
	"daglayer/internal/txn"
)

// Config configures a Manager at construction; it is immutable thereafter.
type Config struct {
	NumShards        uint32
	Strategy         Strategy
	EnableCrossShard bool
	ReversalHorizon  uint64 // target-shard blocks

	// MempoolCapacity and MempoolPolicy configure every partition's
	// mempool. Zero values fall back to mempool.New's own defaults
	// (unbounded capacity, FIFO ordering).
	MempoolCapacity int
	MempoolPolicy   mempool.Policy

	// PlannerWorkerPoolSize sizes every partition's execution planner
	// worker pool; zero falls back to a single worker.
	PlannerWorkerPoolSize int
}

// Partition is one shard's independent state: its own address-keyed
// Ledger, its own BlockDAG, its own mempool, and the Executor that applies
// admitted blocks to the Ledger. Per §3, "each shard maintains its own DAG
// in the manager" — Manager owns one Partition per shard ID rather than
// the node wiring layer holding a single global Ledger/DAG/Mempool.
type Partition struct {
	ID       uint32
	Ledger   *ledger.Ledger
	DAG      *blockdag.DAG
	Mempool  *mempool.Pool
	Executor *planner.Executor
}

// Manager combines address routing and cross-shard lifecycle tracking
// with per-shard state ownership: every shard's Ledger, DAG, mempool and
// Executor live in a Partition owned here, keyed by shard ID.
type Manager struct {
	cfg        Config
	router     *Router
	tracker    *Tracker
	partitions map[uint32]*Partition
	log        *logrus.Entry
}

// NewManager constructs a Manager from cfg, building one Partition per
// shard ID in [0, N) where N is the router's effective shard count (at
// least 1).
func NewManager(cfg Config, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "shard.manager")
	router := NewRouter(cfg.Strategy, cfg.NumShards)

	partitions := make(map[uint32]*Partition, router.NumShards())
	for id := uint32(0); id < router.NumShards(); id++ {
		plog := log.WithField("shard", id)
		led := ledger.New(plog)
		partitions[id] = &Partition{
			ID:       id,
			Ledger:   led,
			DAG:      blockdag.New(plog),
			Mempool:  mempool.New(cfg.MempoolCapacity, cfg.MempoolPolicy, led, plog),
			Executor: planner.NewExecutor(led, cfg.PlannerWorkerPoolSize, nil),
		}
	}

	return &Manager{
		cfg:        cfg,
		router:     router,
		tracker:    NewTracker(cfg.ReversalHorizon, log),
		partitions: partitions,
		log:        log,
	}
}

// Router exposes the underlying address router for read-only queries.
func (m *Manager) Router() *Router { return m.router }

// Tracker exposes the underlying cross-shard tracker.
func (m *Manager) Tracker() *Tracker { return m.tracker }

// Partition returns the partition for shard id and whether it exists.
func (m *Manager) Partition(id uint32) (*Partition, bool) {
	p, ok := m.partitions[id]
	return p, ok
}

// MustPartition returns the partition for shard id, panicking if id is out
// of range. Shard IDs produced by ShardOf/Route are always in range by
// construction, so callers routing through those are safe to use this.
func (m *Manager) MustPartition(id uint32) *Partition {
	p, ok := m.partitions[id]
	if !ok {
		panic(fmt.Sprintf("shard: no partition for shard %d", id))
	}
	return p
}

// PartitionFor returns the partition owning addr's shard.
func (m *Manager) PartitionFor(addr hashid.Address) *Partition {
	return m.MustPartition(m.router.ShardOf(addr))
}

// Partitions returns every partition, keyed by shard ID.
func (m *Manager) Partitions() map[uint32]*Partition {
	return m.partitions
}

// RestoreEntry is one (claimed hash, encoded block) pair from a persisted
// restore bundle, replayed in DAG-admission order on boot.
type RestoreEntry struct {
	Hash hashid.Hash
	Data []byte
}

// Restore replays entries against the partition's DAG in order, decoding
// each block and admitting it via DAG.AdmitFromStorage so a corrupted or
// tampered bundle entry surfaces as blockdag.ErrHashMismatch instead of
// silently rebuilding derived state under the wrong block identity. The
// underlying storage medium is an external collaborator per §6; this is
// only the in-core replay step that rebuilds the DAG. It does not apply
// the blocks' transactions to the partition's ledger.
func (p *Partition) Restore(entries []RestoreEntry) error {
	for _, e := range entries {
		blk, err := block.Decode(e.Data)
		if err != nil {
			return err
		}
		if err := p.DAG.AdmitFromStorage(e.Hash, blk); err != nil {
			return err
		}
	}
	return nil
}

// Admission is the outcome of routing a transaction: which shard it was
// admitted to, whether it crosses shards, and (if so) the created
// tracking record.
type Admission struct {
	SourceShard  uint32
	TargetShard  uint32
	IsCrossShard bool
	Record       *Record
}

// Admit routes tx and, if cross-shard tracking is enabled and the
// transaction's source and target shards differ, creates a Pending
// cross-shard record. currentTargetHeight is the target shard's DAG
// height at admission time, used to seed the reversal horizon.
func (m *Manager) Admit(tx *txn.Transaction, currentTargetHeight uint64) Admission {
	source, target := m.router.Route(tx.From, tx.To)

	if !m.cfg.EnableCrossShard {
		return Admission{SourceShard: source, TargetShard: source, IsCrossShard: false}
	}

	if source == target {
		return Admission{SourceShard: source, TargetShard: target, IsCrossShard: false}
	}

	rec := m.tracker.CreatePending(tx.Hash(), source, target, currentTargetHeight)
	return Admission{SourceShard: source, TargetShard: target, IsCrossShard: true, Record: rec}
}

// ShardOf exposes the router's address assignment directly.
func (m *Manager) ShardOf(addr hashid.Address) uint32 { return m.router.ShardOf(addr) }

// CrossShardStatus reports the lifecycle status of a previously admitted
// cross-shard transaction.
func (m *Manager) CrossShardStatus(txHash hashid.Hash) (Status, bool) {
	return m.tracker.StatusOf(txHash)
}
