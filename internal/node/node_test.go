package node

import (
	"errors"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"daglayer/internal/config"
	"daglayer/internal/hashid"
	"daglayer/internal/ledger"
	"daglayer/internal/mempool"
	"daglayer/internal/txn"
)

func TestNewWiresAllComponents(t *testing.T) {
	cfg := config.Default()
	n := New(cfg, ":0", prometheus.NewRegistry(), nil)

	if n.Shards == nil || len(n.Mining) == 0 || n.Recurring == nil ||
		n.Metrics == nil || n.Gateway == nil {
		t.Fatalf("expected all components wired, got %+v", n)
	}
	if uint32(len(n.Mining)) != cfg.Shard.Count {
		t.Fatalf("expected one mining coordinator per shard, got %d for %d shards", len(n.Mining), cfg.Shard.Count)
	}
	for id := range n.Mining {
		if _, ok := n.Shards.Partition(id); !ok {
			t.Fatalf("mining coordinator for shard %d has no matching partition", id)
		}
	}
}

func TestNodePartitionMempoolConsultsItsOwnLedgerNonce(t *testing.T) {
	cfg := config.Default()
	n := New(cfg, ":0", prometheus.NewRegistry(), nil)

	var addr hashid.Address
	addr[0] = 9
	part := n.Shards.PartitionFor(addr)
	part.Ledger.Credit(addr, big.NewInt(1000))
	if part.Ledger.Nonce(addr) != 0 {
		t.Fatalf("expected fresh account nonce 0")
	}

	var to hashid.Address
	to[0] = 10
	tx := txn.New(addr, to, big.NewInt(1), big.NewInt(0), 0, nil, 0)
	if err := part.Ledger.Apply(tx, ledger.BlockContext{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := part.Mempool.Admit(tx); !errors.Is(err, mempool.ErrStaleNonce) {
		t.Fatalf("expected partition mempool to reject a nonce its own ledger has passed, got %v", err)
	}
}

func TestStartStopIsCleanOnFreshNode(t *testing.T) {
	cfg := config.Default()
	n := New(cfg, "127.0.0.1:0", prometheus.NewRegistry(), nil)
	n.Start()
	if err := n.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
