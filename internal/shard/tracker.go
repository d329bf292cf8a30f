package shard

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"daglayer/internal/hashid"
)

// ErrOrphanCredit is returned when a target shard observes a credit for a
// transaction hash with no matching pending or already-processed record.
var ErrOrphanCredit = errors.New("shard: orphan credit, no matching cross-shard record")

// Status is a cross-shard transaction's lifecycle state.
type Status int

const (
	Pending Status = iota
	Committed
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record tracks one cross-shard transaction's source-to-target lifecycle.
type Record struct {
	CorrelationID string
	TxHash        hashid.Hash
	SourceShard   uint32
	TargetShard   uint32
	Status        Status
	CreatedAtTargetHeight uint64
	Reversed      bool
}

// Tracker records pending cross-shard transfers and enforces the
// Pending -> Committed | Failed lifecycle with an idempotent
// processed-credit guard per target shard.
type Tracker struct {
	mu        sync.RWMutex
	records   map[hashid.Hash]*Record
	processed map[uint32]map[hashid.Hash]struct{} // target shard -> committed tx hashes
	horizon   uint64                              // target-shard blocks before a pending record expires
	log       *logrus.Entry
}

// NewTracker constructs a Tracker with the given reversal horizon measured
// in target-shard blocks.
func NewTracker(horizon uint64, log *logrus.Entry) *Tracker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Tracker{
		records:   make(map[hashid.Hash]*Record),
		processed: make(map[uint32]map[hashid.Hash]struct{}),
		horizon:   horizon,
		log:       log.WithField("component", "shard.tracker"),
	}
}

// CreatePending records a new cross-shard transaction at source-shard
// admission time. createdAtTargetHeight is the target shard's DAG height
// observed at creation, used to evaluate the reversal horizon.
func (t *Tracker) CreatePending(txHash hashid.Hash, source, target uint32, createdAtTargetHeight uint64) *Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := &Record{
		CorrelationID:         uuid.New().String(),
		TxHash:                txHash,
		SourceShard:           source,
		TargetShard:           target,
		Status:                Pending,
		CreatedAtTargetHeight: createdAtTargetHeight,
	}
	t.records[txHash] = r
	t.log.WithFields(logrus.Fields{"tx": txHash.String(), "source": source, "target": target}).Debug("cross-shard pending")
	return r
}

// Commit marks txHash Committed once the target shard has credited the
// recipient. It is idempotent: committing an already-committed hash on the
// same target shard is a no-op. A credit with no matching or a
// shard-mismatched record fails with ErrOrphanCredit.
func (t *Tracker) Commit(txHash hashid.Hash, targetShard uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if shard, ok := t.processed[targetShard]; ok {
		if _, done := shard[txHash]; done {
			return nil
		}
	}

	r, ok := t.records[txHash]
	if !ok || r.TargetShard != targetShard {
		return ErrOrphanCredit
	}
	r.Status = Committed
	if t.processed[targetShard] == nil {
		t.processed[targetShard] = make(map[hashid.Hash]struct{})
	}
	t.processed[targetShard][txHash] = struct{}{}
	return nil
}

// Expired returns Pending records targeting targetShard whose horizon has
// elapsed as of currentTargetHeight, marking each Failed and reversed so a
// later call never returns the same record twice (double-reversal guard).
// The caller is responsible for applying the synthetic reversal debit on
// the source shard's ledger.
func (t *Tracker) Expired(targetShard uint32, currentTargetHeight uint64) []*Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*Record
	for _, r := range t.records {
		if r.TargetShard != targetShard || r.Status != Pending || r.Reversed {
			continue
		}
		if currentTargetHeight-r.CreatedAtTargetHeight >= t.horizon {
			r.Status = Failed
			r.Reversed = true
			out = append(out, r)
		}
	}
	return out
}

// StatusOf returns the current status of txHash and whether it is known.
func (t *Tracker) StatusOf(txHash hashid.Hash) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.records[txHash]
	if !ok {
		return Pending, false
	}
	return r.Status, true
}

// ShardStats summarizes cross-shard record counts for one shard pairing,
// keyed by source shard.
type ShardStats struct {
	Pending   int
	Committed int
	Failed    int
}

// StatsForSource aggregates record counts whose source shard is id.
func (t *Tracker) StatsForSource(id uint32) ShardStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var s ShardStats
	for _, r := range t.records {
		if r.SourceShard != id {
			continue
		}
		switch r.Status {
		case Pending:
			s.Pending++
		case Committed:
			s.Committed++
		case Failed:
			s.Failed++
		}
	}
	return s
}
