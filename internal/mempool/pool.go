// Package mempool implements the per-shard pending-transaction pool:
// duplicate/stale-nonce/capacity admission rules and a selectable ordering
// policy used when draining transactions into a candidate block.
package mempool

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"daglayer/internal/hashid"
	"daglayer/internal/txn"
)

// Resource error taxonomy (§7 "Resource" kind).
var (
	ErrDuplicate   = errors.New("mempool: duplicate transaction")
	ErrStaleNonce  = errors.New("mempool: nonce below current ledger nonce")
	ErrMempoolFull = errors.New("mempool: at capacity; resubmit with a higher fee")
)

// NonceSource reports an address's current ledger nonce, used to reject
// transactions that are already stale at admission time.
type NonceSource interface {
	Nonce(addr hashid.Address) uint64
}

type entry struct {
	tx        *txn.Transaction
	arrivedAt time.Time
}

// Pool is a capacity-bounded, fee-aware pending-transaction set indexed by
// hash with a secondary (from, nonce) index.
type Pool struct {
	mu       sync.RWMutex
	capacity int
	policy   Policy
	nonces   NonceSource
	byHash   map[hashid.Hash]*entry
	bySender map[hashid.Address]map[uint64]hashid.Hash
	log      *logrus.Entry
}

// New constructs a Pool with the given capacity and ordering policy.
// nonceSource is consulted on admission to reject already-stale
// transactions; it may be nil, in which case the nonce check is skipped
// (useful for standalone unit tests).
func New(capacity int, policy Policy, nonceSource NonceSource, log *logrus.Entry) *Pool {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pool{
		capacity: capacity,
		policy:   policy,
		nonces:   nonceSource,
		byHash:   make(map[hashid.Hash]*entry),
		bySender: make(map[hashid.Address]map[uint64]hashid.Hash),
		log:      log.WithField("component", "mempool"),
	}
}

// Len returns the number of resident transactions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}

// Has reports whether hash is resident.
func (p *Pool) Has(hash hashid.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byHash[hash]
	return ok
}

// Admit inserts tx, applying the duplicate/stale-nonce/capacity rules. On
// a capacity conflict, tx is admitted only if its fee strictly exceeds the
// pool's lowest resident fee, evicting that resident.
func (p *Pool) Admit(tx *txn.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := tx.Hash()
	if _, exists := p.byHash[h]; exists {
		return ErrDuplicate
	}
	if p.nonces != nil && tx.Nonce < p.nonces.Nonce(tx.From) {
		return ErrStaleNonce
	}

	if p.capacity > 0 && len(p.byHash) >= p.capacity {
		lowest := p.lowestFeeLocked()
		if lowest == nil || tx.Fee.Cmp(lowest.tx.Fee) <= 0 {
			return ErrMempoolFull
		}
		p.removeLocked(lowest.tx.Hash())
	}

	p.insertLocked(tx)
	return nil
}

func (p *Pool) insertLocked(tx *txn.Transaction) {
	e := &entry{tx: tx, arrivedAt: time.Now()}
	p.byHash[tx.Hash()] = e
	if p.bySender[tx.From] == nil {
		p.bySender[tx.From] = make(map[uint64]hashid.Hash)
	}
	p.bySender[tx.From][tx.Nonce] = tx.Hash()
}

func (p *Pool) removeLocked(hash hashid.Hash) {
	e, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	if m := p.bySender[e.tx.From]; m != nil {
		delete(m, e.tx.Nonce)
		if len(m) == 0 {
			delete(p.bySender, e.tx.From)
		}
	}
}

func (p *Pool) lowestFeeLocked() *entry {
	var lowest *entry
	for _, e := range p.byHash {
		if lowest == nil || e.tx.Fee.Cmp(lowest.tx.Fee) < 0 {
			lowest = e
		}
	}
	return lowest
}

// Remove evicts hash from the pool, e.g. once its transaction has been
// included in an applied block.
func (p *Pool) Remove(hash hashid.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

// maxFeeLocked returns the highest resident fee, or nil if the pool is empty.
func (p *Pool) maxFeeLocked() *big.Int {
	var max *big.Int
	for _, e := range p.byHash {
		if max == nil || e.tx.Fee.Cmp(max) > 0 {
			max = e.tx.Fee
		}
	}
	return max
}
