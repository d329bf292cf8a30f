package shard

import (
	"errors"
	"math/big"
	"testing"

	"daglayer/internal/block"
	"daglayer/internal/blockdag"
	"daglayer/internal/hashid"
	"daglayer/internal/txn"
)

func addr(b byte) hashid.Address {
	var a hashid.Address
	a[0] = b
	return a
}

func TestConsistentHashingStable(t *testing.T) {
	r := NewRouter(ConsistentHashing, 16)
	a := addr(7)
	s1 := r.ShardOf(a)
	s2 := r.ShardOf(a)
	if s1 != s2 {
		t.Fatalf("same address must yield same shard: %d vs %d", s1, s2)
	}
	if s1 >= 16 {
		t.Fatalf("shard out of range: %d", s1)
	}
}

func TestAddressBasedDeterministic(t *testing.T) {
	r := NewRouter(AddressBased, 4)
	var a hashid.Address
	a[0] = 9
	if got, want := r.ShardOf(a), uint32(9%4); got != want {
		t.Fatalf("shard = %d, want %d", got, want)
	}
}

func TestRouteCrossShard(t *testing.T) {
	// Find addresses that land on shard 1 and shard 3 under
	// ConsistentHashing with N=4, mirroring the literal scenario in the
	// base specification.
	r := NewRouter(ConsistentHashing, 4)
	var from, to hashid.Address
	found1, found3 := false, false
	for i := 0; i < 256 && !(found1 && found3); i++ {
		var cand hashid.Address
		cand[0] = byte(i)
		switch r.ShardOf(cand) {
		case 1:
			if !found1 {
				from = cand
				found1 = true
			}
		case 3:
			if !found3 {
				to = cand
				found3 = true
			}
		}
	}
	if !found1 || !found3 {
		t.Skip("could not find addresses landing on shards 1 and 3 in sample space")
	}
	source, target := r.Route(from, to)
	if source != 1 || target != 3 {
		t.Fatalf("route = (%d,%d), want (1,3)", source, target)
	}
}

func TestZeroRecipientRoutesToSource(t *testing.T) {
	r := NewRouter(ConsistentHashing, 8)
	from := addr(5)
	source, target := r.Route(from, hashid.ZeroAddress)
	if source != target {
		t.Fatalf("zero recipient must route to source shard")
	}
}

func TestManagerCrossShardLifecycle(t *testing.T) {
	m := NewManager(Config{NumShards: 4, Strategy: ConsistentHashing, EnableCrossShard: true, ReversalHorizon: 10}, nil)

	var from, to hashid.Address
	for i := 0; i < 256; i++ {
		from[0] = byte(i)
		if m.ShardOf(from) == 1 {
			break
		}
	}
	for i := 0; i < 256; i++ {
		to[0] = byte(i)
		if m.ShardOf(to) == 3 {
			break
		}
	}
	if m.ShardOf(from) != 1 || m.ShardOf(to) != 3 {
		t.Skip("could not construct addresses on distinct shards")
	}

	tx := txn.New(from, to, big.NewInt(1), big.NewInt(0), 0, nil, 0)
	adm := m.Admit(tx, 0)
	if !adm.IsCrossShard {
		t.Fatalf("expected cross-shard admission")
	}
	status, ok := m.CrossShardStatus(tx.Hash())
	if !ok || status != Pending {
		t.Fatalf("expected Pending, got %v ok=%v", status, ok)
	}

	if err := m.Tracker().Commit(tx.Hash(), adm.TargetShard); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	status, _ = m.CrossShardStatus(tx.Hash())
	if status != Committed {
		t.Fatalf("expected Committed, got %v", status)
	}

	// Idempotent: a second commit on the same shard is a no-op, not an error.
	if err := m.Tracker().Commit(tx.Hash(), adm.TargetShard); err != nil {
		t.Fatalf("expected idempotent commit to succeed, got %v", err)
	}
}

func TestOrphanCredit(t *testing.T) {
	tr := NewTracker(10, nil)
	err := tr.Commit(hashid.Hash{0x01}, 2)
	if err != ErrOrphanCredit {
		t.Fatalf("expected ErrOrphanCredit, got %v", err)
	}
}

func TestExpiredTriggersReversalOnce(t *testing.T) {
	tr := NewTracker(5, nil)
	h := hashid.Hash{0x02}
	tr.CreatePending(h, 1, 2, 0)

	if out := tr.Expired(2, 3); len(out) != 0 {
		t.Fatalf("expected no expiry before horizon, got %v", out)
	}
	out := tr.Expired(2, 5)
	if len(out) != 1 {
		t.Fatalf("expected one expired record, got %d", len(out))
	}
	// Double-reversal guard: calling again must not return it a second time.
	out2 := tr.Expired(2, 10)
	if len(out2) != 0 {
		t.Fatalf("expected no repeat reversal, got %v", out2)
	}
}

func TestManagerBuildsOnePartitionPerShard(t *testing.T) {
	m := NewManager(Config{NumShards: 3, Strategy: ConsistentHashing}, nil)
	if len(m.Partitions()) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(m.Partitions()))
	}
	for id, part := range m.Partitions() {
		if part.ID != id || part.Ledger == nil || part.DAG == nil || part.Mempool == nil || part.Executor == nil {
			t.Fatalf("partition %d incompletely wired: %+v", id, part)
		}
	}
}

func TestPartitionRestoreReplaysBlocksInOrder(t *testing.T) {
	m := NewManager(Config{NumShards: 1, Strategy: ConsistentHashing}, nil)
	part, ok := m.Partition(0)
	if !ok {
		t.Fatalf("expected shard 0 to exist")
	}

	genesis := block.New(block.Header{Timestamp: 0}, nil)
	child := block.New(block.Header{ParentHashes: []hashid.Hash{genesis.Hash()}, Height: 1, Timestamp: 1}, nil)
	genesisData, err := genesis.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	childData, err := child.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	entries := []RestoreEntry{
		{Hash: genesis.Hash(), Data: genesisData},
		{Hash: child.Hash(), Data: childData},
	}
	if err := part.Restore(entries); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(part.DAG.OrderedBlocks()) != 2 {
		t.Fatalf("expected both blocks replayed onto the DAG")
	}
}

func TestPartitionRestoreStopsOnHashMismatch(t *testing.T) {
	m := NewManager(Config{NumShards: 1, Strategy: ConsistentHashing}, nil)
	part, _ := m.Partition(0)

	genesis := block.New(block.Header{Timestamp: 0}, nil)
	data, err := genesis.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	corrupted := genesis.Hash()
	corrupted[0] ^= 0xff

	err = part.Restore([]RestoreEntry{{Hash: corrupted, Data: data}})
	if !errors.Is(err, blockdag.ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
	if len(part.DAG.OrderedBlocks()) != 0 {
		t.Fatalf("expected no blocks admitted after mismatch")
	}
}

func TestCrossShardDisabledCollapsesToSource(t *testing.T) {
	m := NewManager(Config{NumShards: 4, Strategy: ConsistentHashing, EnableCrossShard: false}, nil)
	var from, to hashid.Address
	from[0], to[0] = 1, 200
	tx := txn.New(from, to, big.NewInt(1), big.NewInt(0), 0, nil, 0)
	adm := m.Admit(tx, 0)
	if adm.IsCrossShard {
		t.Fatalf("expected cross-shard disabled to collapse to same-shard admission")
	}
	if adm.SourceShard != adm.TargetShard {
		t.Fatalf("expected source==target when cross-shard disabled")
	}
}
