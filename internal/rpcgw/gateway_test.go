package rpcgw

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"daglayer/internal/block"
	"daglayer/internal/hashid"
	"daglayer/internal/shard"
)

func newTestServer() *Server {
	shards := shard.NewManager(shard.Config{NumShards: 4, Strategy: shard.ConsistentHashing}, nil)
	return NewServer(":0", shards, nil)
}

func addrWithByte(b byte) hashid.Address {
	var a hashid.Address
	a[0] = b
	return a
}

// sameShardPair returns two distinct addresses that route to the same
// shard under s's router, so a submitted transaction between them is
// guaranteed not to be cross-shard.
func sameShardPair(t *testing.T, s *Server) (hashid.Address, hashid.Address) {
	t.Helper()
	byShard := make(map[uint32][]hashid.Address)
	for i := 0; i < 256; i++ {
		a := addrWithByte(byte(i))
		sh := s.shards.ShardOf(a)
		byShard[sh] = append(byShard[sh], a)
		if len(byShard[sh]) == 2 {
			return byShard[sh][0], byShard[sh][1]
		}
	}
	t.Fatal("could not find two addresses on the same shard")
	return hashid.Address{}, hashid.Address{}
}

func TestSubmitTransactionAdmitsToMempool(t *testing.T) {
	s := newTestServer()
	from, to := sameShardPair(t, s)
	body, _ := json.Marshal(map[string]interface{}{
		"from":  from.String(),
		"to":    to.String(),
		"value": "100",
		"fee":   "1",
		"nonce": 0,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/tx", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	part := s.shards.PartitionFor(from)
	if part.Mempool.Len() != 1 {
		t.Fatalf("expected transaction admitted to source shard's mempool")
	}
}

func TestSubmitTransactionRejectsBadValue(t *testing.T) {
	s := newTestServer()
	from, to := sameShardPair(t, s)
	body, _ := json.Marshal(map[string]interface{}{
		"from":  from.String(),
		"to":    to.String(),
		"value": "not-a-number",
		"fee":   "1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/tx", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAccountReturnsBalanceAndNonce(t *testing.T) {
	s := newTestServer()
	var addr hashid.Address
	addr[0] = 7
	part := s.shards.PartitionFor(addr)
	part.Ledger.Credit(addr, big.NewInt(500))

	req := httptest.NewRequest(http.MethodGet, "/api/account/"+addr.String(), nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var got map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["balance"] != "500" {
		t.Fatalf("balance = %v, want 500", got["balance"])
	}
}

func TestOrderedBlocksReturnsAdmittedBlocks(t *testing.T) {
	s := newTestServer()
	genesis := block.New(block.Header{Stream: block.StreamA, Timestamp: 1}, nil)
	part, ok := s.shards.Partition(0)
	if !ok {
		t.Fatalf("expected shard 0 to exist")
	}
	if err := part.DAG.Admit(genesis); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/shards/0/blocks", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	var got []string
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0] != genesis.Hash().String() {
		t.Fatalf("ordered blocks = %v", got)
	}
}

func TestBlockByHashNotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/shards/0/blocks/"+hashid.ZeroHash.String(), nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestBlockByHashUnknownShard(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/shards/99/blocks/"+hashid.ZeroHash.String(), nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestShardOfReturnsAssignment(t *testing.T) {
	s := newTestServer()
	var addr hashid.Address
	addr[0] = 3
	req := httptest.NewRequest(http.MethodGet, "/api/shard/"+addr.String(), nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}
