// Package shard implements address-to-shard assignment and the
// cross-shard transaction lifecycle tracker.
package shard

import (
	"encoding/binary"
	"sync/atomic"

	"daglayer/internal/hashid"
)

// Strategy is the address-to-shard assignment rule, fixed at construction.
type Strategy int

const (
	// ConsistentHashing derives the shard from the leading 8 bytes of the
	// address's keccak-256 digest.
	ConsistentHashing Strategy = iota
	// AddressBased uses the address's first byte directly; fast but
	// uneven across shards.
	AddressBased
	// RoundRobin assigns shards from a stateful counter. Not
	// address-stable; intended only for test load-generation.
	RoundRobin
)

func (s Strategy) String() string {
	switch s {
	case ConsistentHashing:
		return "consistent_hashing"
	case AddressBased:
		return "address_based"
	case RoundRobin:
		return "round_robin"
	default:
		return "unknown"
	}
}

// ParseStrategy resolves a Config-file strategy name to its Strategy
// value. Unknown names fall back to ConsistentHashing.
func ParseStrategy(name string) Strategy {
	switch name {
	case "address_based":
		return AddressBased
	case "round_robin":
		return RoundRobin
	default:
		return ConsistentHashing
	}
}

// Router assigns addresses to shard IDs in [0, N) under a fixed strategy.
type Router struct {
	strategy  Strategy
	numShards uint32
	rrCounter uint32 // atomic, used only by RoundRobin
}

// NewRouter constructs a Router. A numShards of zero is treated as one.
func NewRouter(strategy Strategy, numShards uint32) *Router {
	if numShards == 0 {
		numShards = 1
	}
	return &Router{strategy: strategy, numShards: numShards}
}

// NumShards returns the configured shard count.
func (r *Router) NumShards() uint32 { return r.numShards }

// Strategy returns the configured assignment strategy.
func (r *Router) Strategy() Strategy { return r.strategy }

// ShardOf returns the shard ID addr is assigned to under the router's
// strategy. For ConsistentHashing and AddressBased, the same address
// always yields the same shard.
func (r *Router) ShardOf(addr hashid.Address) uint32 {
	switch r.strategy {
	case AddressBased:
		return uint32(addr[0]) % r.numShards
	case RoundRobin:
		n := atomic.AddUint32(&r.rrCounter, 1) - 1
		return n % r.numShards
	case ConsistentHashing:
		fallthrough
	default:
		h := hashid.Keccak256(addr.Bytes())
		v := binary.BigEndian.Uint64(h[:8])
		return uint32(v % uint64(r.numShards))
	}
}

// Route returns the source and target shard for a transaction's from/to
// addresses. A zero `to` address routes to the source shard.
func (r *Router) Route(from, to hashid.Address) (source, target uint32) {
	source = r.ShardOf(from)
	if to.IsZero() {
		return source, source
	}
	return source, r.ShardOf(to)
}
