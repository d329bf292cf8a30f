package mempool

import (
	"math/big"
	"math/rand"
	"sort"
	"time"

	"daglayer/internal/hashid"
	"daglayer/internal/txn"
)

// Policy selects the order in which resident transactions are drained to
// form a candidate block. Within a drain, transactions of the same sender
// are always emitted in strict ascending nonce order regardless of policy,
// ported from the original ordering module's exact constants.
type Policy int

const (
	FIFO Policy = iota
	FeeBased
	Random
	Hybrid
	TimeWeighted
)

func (p Policy) String() string {
	switch p {
	case FIFO:
		return "fifo"
	case FeeBased:
		return "fee_based"
	case Random:
		return "random"
	case Hybrid:
		return "hybrid"
	case TimeWeighted:
		return "time_weighted"
	default:
		return "unknown"
	}
}

// ParsePolicy resolves a Config-file policy name to its Policy value.
// Unknown names fall back to FIFO.
func ParsePolicy(name string) Policy {
	switch name {
	case "fee_based":
		return FeeBased
	case "random":
		return Random
	case "hybrid":
		return Hybrid
	case "time_weighted":
		return TimeWeighted
	default:
		return FIFO
	}
}

// hybridFeeWeight and hybridAgeWeight are the Hybrid policy's scoring
// weights, pinned by the original ordering module.
const (
	hybridFeeWeight = 0.7
	hybridAgeWeight = 0.3
	hybridAgeCapSec = 60.0
	timeWeightedTieWindowSec = 5.0
)

// Drain removes up to limit transactions from the pool, ordered by the
// pool's policy, and returns them. Transactions sharing a sender always
// appear in ascending nonce order: the drain repeatedly compares only the
// lowest-unreleased-nonce transaction of each sender ("head of queue"),
// so a sender's later transactions can never be chosen ahead of an
// earlier one.
func (p *Pool) Drain(limit int, now time.Time) []*txn.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	queues := p.senderQueuesLocked()
	if len(queues) == 0 {
		return nil
	}

	maxFee := p.maxFeeLocked()
	if maxFee == nil || maxFee.Sign() == 0 {
		maxFee = big.NewInt(1)
	}

	senders := make([]hashid.Address, 0, len(queues))
	for s := range queues {
		senders = append(senders, s)
	}
	sort.Slice(senders, func(i, j int) bool { return senders[i].String() < senders[j].String() })

	var out []*txn.Transaction

	if p.policy == Random {
		// Uniform shuffle over senders, cycling through in shuffled order
		// and taking each sender's next (lowest-nonce) transaction per
		// round; this realizes "uniform shuffle" while still honoring
		// per-sender ascending nonce order.
		rand.Shuffle(len(senders), func(i, j int) { senders[i], senders[j] = senders[j], senders[i] })
		for (limit <= 0 || len(out) < limit) && anyNonEmpty(queues, senders) {
			progressed := false
			for _, s := range senders {
				if limit > 0 && len(out) >= limit {
					break
				}
				if len(queues[s]) == 0 {
					continue
				}
				head := queues[s][0]
				queues[s] = queues[s][1:]
				out = append(out, head.tx)
				p.removeLocked(head.tx.Hash())
				progressed = true
			}
			if !progressed {
				break
			}
		}
		return out
	}

	for (limit <= 0 || len(out) < limit) && anyNonEmpty(queues, senders) {
		best := -1
		for i, s := range senders {
			if len(queues[s]) == 0 {
				continue
			}
			if best == -1 || p.better(queues[s][0], queues[senders[best]][0], now, maxFee) {
				best = i
			}
		}
		if best == -1 {
			break
		}
		s := senders[best]
		head := queues[s][0]
		queues[s] = queues[s][1:]
		out = append(out, head.tx)
		p.removeLocked(head.tx.Hash())
	}
	return out
}

func anyNonEmpty(queues map[hashid.Address][]*entry, senders []hashid.Address) bool {
	for _, s := range senders {
		if len(queues[s]) > 0 {
			return true
		}
	}
	return false
}

func (p *Pool) senderQueuesLocked() map[hashid.Address][]*entry {
	bySender := make(map[hashid.Address][]*entry)
	for _, e := range p.byHash {
		bySender[e.tx.From] = append(bySender[e.tx.From], e)
	}
	for s, list := range bySender {
		sort.Slice(list, func(i, j int) bool { return list[i].tx.Nonce < list[j].tx.Nonce })
		bySender[s] = list
	}
	return bySender
}

// better reports whether a should be drained before b under the pool's
// policy. Random is handled separately by round-robin in Drain.
func (p *Pool) better(a, b *entry, now time.Time, maxFee *big.Int) bool {
	switch p.policy {
	case FeeBased:
		if a.tx.Fee.Cmp(b.tx.Fee) != 0 {
			return a.tx.Fee.Cmp(b.tx.Fee) > 0
		}
		return a.tx.Value.Cmp(b.tx.Value) > 0
	case Hybrid:
		return hybridScore(a, now, maxFee) > hybridScore(b, now, maxFee)
	case TimeWeighted:
		ageA, ageB := ageSeconds(a, now), ageSeconds(b, now)
		if absDiff(ageA, ageB) <= timeWeightedTieWindowSec {
			return a.tx.Fee.Cmp(b.tx.Fee) > 0
		}
		return ageA > ageB
	case FIFO:
		fallthrough
	default:
		return a.arrivedAt.Before(b.arrivedAt)
	}
}

func ageSeconds(e *entry, now time.Time) float64 {
	age := now.Sub(e.arrivedAt).Seconds()
	if age < 0 {
		return 0
	}
	return age
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func hybridScore(e *entry, now time.Time, maxFee *big.Int) float64 {
	feeRatio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(e.tx.Fee),
		new(big.Float).SetInt(maxFee),
	).Float64()
	age := ageSeconds(e, now)
	if age > hybridAgeCapSec {
		age = hybridAgeCapSec
	}
	return hybridFeeWeight*feeRatio + hybridAgeWeight*(age/hybridAgeCapSec)
}
