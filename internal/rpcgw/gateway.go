// Package rpcgw exposes the node's external interface (§6) over HTTP,
// mirroring the teacher's explorer façade: a gorilla/mux router, a
// writeJSON helper, and one handler per operation. Every handler resolves
// the shard partition it needs (by address or an explicit path segment)
// through shard.Manager rather than holding singleton DAG/Ledger/Mempool
// state, since the node's state is partitioned per shard.
package rpcgw

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"daglayer/internal/hashid"
	"daglayer/internal/shard"
	"daglayer/internal/txn"
)

// Server exposes submit_transaction, block_by_hash, balance/nonce,
// blue_score/classification, ordered_blocks, shard_of, and
// cross_shard_status over a small HTTP API, scoped to shard partitions.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	shards     *shard.Manager
	log        *logrus.Entry
}

// NewServer constructs the router and HTTP server bound to addr.
func NewServer(addr string, shards *shard.Manager, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		router: mux.NewRouter(),
		shards: shards,
		log:    log.WithField("component", "rpcgw"),
	}
	s.routes()
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s
}

func (s *Server) Start() error { return s.httpServer.ListenAndServe() }
func (s *Server) Close() error { return s.httpServer.Close() }

func (s *Server) routes() {
	s.router.Use(s.loggingMiddleware)
	s.router.HandleFunc("/api/tx", s.handleSubmitTransaction).Methods("POST")
	s.router.HandleFunc("/api/shards/{shard}/blocks", s.handleOrderedBlocks).Methods("GET")
	s.router.HandleFunc("/api/shards/{shard}/blocks/{hash}", s.handleBlockByHash).Methods("GET")
	s.router.HandleFunc("/api/shards/{shard}/blocks/{hash}/classification", s.handleClassification).Methods("GET")
	s.router.HandleFunc("/api/account/{address}", s.handleAccount).Methods("GET")
	s.router.HandleFunc("/api/shard/{address}", s.handleShardOf).Methods("GET")
	s.router.HandleFunc("/api/cross-shard/{hash}", s.handleCrossShardStatus).Methods("GET")
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.WithField("path", r.URL.Path).Debug("request")
		next.ServeHTTP(w, r)
	})
}

type submitTxRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Fee      string `json:"fee"`
	Nonce    uint64 `json:"nonce"`
	Data     []byte `json:"data,omitempty"`
	GasLimit uint64 `json:"gas_limit,omitempty"`
}

// handleSubmitTransaction routes the transaction to its source shard's
// mempool via the shard manager, registering cross-shard tracking when the
// recipient lives on a different shard.
func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req submitTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		http.Error(w, "bad from address", http.StatusBadRequest)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		http.Error(w, "bad to address", http.StatusBadRequest)
		return
	}
	value, ok := new(big.Int).SetString(req.Value, 10)
	if !ok {
		http.Error(w, "bad value", http.StatusBadRequest)
		return
	}
	fee, ok := new(big.Int).SetString(req.Fee, 10)
	if !ok {
		http.Error(w, "bad fee", http.StatusBadRequest)
		return
	}

	tx := txn.New(from, to, value, fee, req.Nonce, req.Data, req.GasLimit)

	source := s.shards.ShardOf(from)
	sourcePart, ok := s.shards.Partition(source)
	if !ok {
		http.Error(w, "source shard not found", http.StatusInternalServerError)
		return
	}
	if err := sourcePart.Mempool.Admit(tx); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	var targetHeight uint64
	if target, ok := s.shards.Partition(s.shards.ShardOf(to)); ok {
		targetHeight = tipHeight(target)
	}
	adm := s.shards.Admit(tx, targetHeight)

	writeJSON(w, map[string]interface{}{
		"hash":           tx.Hash().String(),
		"source_shard":   adm.SourceShard,
		"target_shard":   adm.TargetShard,
		"is_cross_shard": adm.IsCrossShard,
	})
}

func (s *Server) handleOrderedBlocks(w http.ResponseWriter, r *http.Request) {
	part, ok := s.partitionFromVars(w, r)
	if !ok {
		return
	}
	hashes := part.DAG.OrderedBlocks()
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.String()
	}
	writeJSON(w, out)
}

func (s *Server) handleBlockByHash(w http.ResponseWriter, r *http.Request) {
	part, ok := s.partitionFromVars(w, r)
	if !ok {
		return
	}
	h, err := parseHash(mux.Vars(r)["hash"])
	if err != nil {
		http.Error(w, "bad block hash", http.StatusBadRequest)
		return
	}
	blk, ok := part.DAG.Block(h)
	if !ok {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}
	writeJSON(w, blk)
}

func (s *Server) handleClassification(w http.ResponseWriter, r *http.Request) {
	part, ok := s.partitionFromVars(w, r)
	if !ok {
		return
	}
	h, err := parseHash(mux.Vars(r)["hash"])
	if err != nil {
		http.Error(w, "bad block hash", http.StatusBadRequest)
		return
	}
	class, ok := part.DAG.Classify(h)
	if !ok {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}
	score, _ := part.DAG.BlueScore(h)
	writeJSON(w, map[string]interface{}{
		"classification": class.String(),
		"blue_score":     score,
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		http.Error(w, "bad address", http.StatusBadRequest)
		return
	}
	part := s.shards.PartitionFor(addr)
	writeJSON(w, map[string]interface{}{
		"shard":   part.ID,
		"balance": part.Ledger.Balance(addr).String(),
		"nonce":   part.Ledger.Nonce(addr),
	})
}

func (s *Server) handleShardOf(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		http.Error(w, "bad address", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"shard": s.shards.ShardOf(addr)})
}

func (s *Server) handleCrossShardStatus(w http.ResponseWriter, r *http.Request) {
	h, err := parseHash(mux.Vars(r)["hash"])
	if err != nil {
		http.Error(w, "bad tx hash", http.StatusBadRequest)
		return
	}
	status, ok := s.shards.CrossShardStatus(h)
	if !ok {
		http.Error(w, "not a tracked cross-shard transaction", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": status.String()})
}

// partitionFromVars resolves the {shard} path variable to its partition,
// writing a 400/404 response and returning ok=false on failure.
func (s *Server) partitionFromVars(w http.ResponseWriter, r *http.Request) (*shard.Partition, bool) {
	raw := mux.Vars(r)["shard"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		http.Error(w, "bad shard id", http.StatusBadRequest)
		return nil, false
	}
	part, ok := s.shards.Partition(uint32(id))
	if !ok {
		http.Error(w, "shard not found", http.StatusNotFound)
		return nil, false
	}
	return part, true
}

// tipHeight returns the height a block built on part's current tips would
// occupy, used to seed a cross-shard record's reversal horizon.
func tipHeight(part *shard.Partition) uint64 {
	var height uint64
	for _, tip := range part.DAG.Tips() {
		if score, ok := part.DAG.BlueScore(tip); ok && score+1 > height {
			height = score + 1
		}
	}
	return height
}

func parseAddress(s string) (hashid.Address, error) {
	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return hashid.Address{}, err
	}
	return hashid.AddressFromBytes(b)
}

func parseHash(s string) (hashid.Hash, error) {
	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return hashid.Hash{}, err
	}
	return hashid.HashFromBytes(b)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}
