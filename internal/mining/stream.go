// Package mining implements the three-stream mining coordinator: three
// independently-cadenced block producers feeding a shared BlockDAG, each
// with its own sliding-window difficulty retarget and hash algorithm.
package mining

import (
	"math/big"
	"time"

	"daglayer/internal/block"
)

// Stream identifies one of the three independent mining cadences.
type Stream = block.Stream

const (
	StreamA = block.StreamA
	StreamB = block.StreamB
	StreamC = block.StreamC
)

// streamDefaults pins the cadence and retarget window for each stream, per
// the original mining module's stream table.
var streamDefaults = map[Stream]struct {
	Interval      time.Duration
	RetargetEvery int
}{
	StreamA: {Interval: 10 * time.Second, RetargetEvery: 10},
	StreamB: {Interval: 1 * time.Second, RetargetEvery: 50},
	StreamC: {Interval: 100 * time.Millisecond, RetargetEvery: 200},
}

// initialDifficulty is the starting proof target shared by all three
// streams (8 leading zero bits, so a fresh stream's first tick finds a
// nonce well within seal's search budget); streams diverge from here as
// their own block-time history accumulates.
var initialDifficulty = func() *big.Int {
	d, _ := new(big.Int).SetString("00ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", 16)
	return d
}()

// difficultyTracker retargets a stream's proof difficulty to hold its
// average block interval close to target. After each sealed block it
// scales the current target by the ratio of the observed span over the
// last `window` seal times to the expected span for that many intervals;
// it keeps no exponential moving average of intervals.
type difficultyTracker struct {
	target    time.Duration
	window    int
	cur       *big.Int
	blockTime []int64 // unix milli
}

func newDifficultyTracker(target time.Duration, window int) *difficultyTracker {
	return &difficultyTracker{
		target: target,
		window: window,
		cur:    new(big.Int).Set(initialDifficulty),
	}
}

func (d *difficultyTracker) current() *big.Int {
	return new(big.Int).Set(d.cur)
}

// compact reduces the tracker's 256-bit target to the u64 difficulty
// figure carried in a block header: the number of leading zero bits the
// target demands. Larger means harder, and is monotonic in the target's
// magnitude, which is all downstream consumers (stats, retarget display)
// need from it — the header is not re-derived into a verification target
// elsewhere in this node.
func (d *difficultyTracker) compact() uint64 {
	if d.cur.Sign() <= 0 {
		return 256
	}
	bits := d.cur.BitLen()
	if bits >= 256 {
		return 0
	}
	return uint64(256 - bits)
}

func (d *difficultyTracker) recordAndRetarget(sealedAt time.Time) {
	d.blockTime = append(d.blockTime, sealedAt.UnixMilli())
	if len(d.blockTime) > d.window {
		d.blockTime = d.blockTime[1:]
	}
	n := len(d.blockTime)
	if n < 2 {
		return
	}
	span := time.Duration(d.blockTime[n-1]-d.blockTime[0]) * time.Millisecond
	expected := d.target * time.Duration(n-1)
	if span <= 0 || expected <= 0 {
		return
	}
	ratio := new(big.Float).Quo(
		new(big.Float).SetFloat64(span.Seconds()),
		new(big.Float).SetFloat64(expected.Seconds()),
	)
	next := new(big.Int)
	new(big.Float).Mul(new(big.Float).SetInt(d.cur), ratio).Int(next)
	if next.Sign() <= 0 {
		return
	}
	d.cur = next
}
