package config

import (
	"testing"

	"daglayer/internal/mempool"
	"daglayer/internal/shard"
)

func TestDefaultMapsToKnownEnumValues(t *testing.T) {
	c := Default()
	if shard.ParseStrategy(c.Shard.Strategy) != shard.ConsistentHashing {
		t.Fatalf("expected default shard strategy to parse as ConsistentHashing")
	}
	if mempool.ParsePolicy(c.Mempool.Policy) != mempool.Hybrid {
		t.Fatalf("expected default mempool policy to parse as Hybrid")
	}
}

func TestDefaultStreamCadencesMatchSpecTable(t *testing.T) {
	c := Default()
	if c.Mining.StreamA.CadenceMS != 10000 {
		t.Fatalf("stream A cadence = %dms, want 10000", c.Mining.StreamA.CadenceMS)
	}
	if c.Mining.StreamB.CadenceMS != 1000 {
		t.Fatalf("stream B cadence = %dms, want 1000", c.Mining.StreamB.CadenceMS)
	}
	if c.Mining.StreamC.CadenceMS != 100 {
		t.Fatalf("stream C cadence = %dms, want 100", c.Mining.StreamC.CadenceMS)
	}
}
