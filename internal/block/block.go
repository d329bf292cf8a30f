// Package block defines the multi-parent block header and body admitted by
// the DAG consensus engine.
package block

import (
	"github.com/ethereum/go-ethereum/rlp"

	"daglayer/internal/hashid"
	"daglayer/internal/txn"
)

// Stream identifies which of the three mining pipelines produced a block.
type Stream uint8

const (
	StreamA Stream = iota
	StreamB
	StreamC
)

func (s Stream) String() string {
	switch s {
	case StreamA:
		return "A"
	case StreamB:
		return "B"
	case StreamC:
		return "C"
	default:
		return "unknown"
	}
}

// Header carries everything needed to identify and order a block. Parents
// are listed by hash; an empty ParentHashes slice denotes a genesis block.
type Header struct {
	ParentHashes []hashid.Hash
	Height       uint64
	Stream       Stream
	Difficulty   uint64
	Timestamp    uint64
	Nonce        uint64
}

type rlpHeader struct {
	ParentHashes [][]byte
	Height       uint64
	Stream       uint8
	Difficulty   uint64
	Timestamp    uint64
	Nonce        uint64
}

func (h *Header) toRLP() *rlpHeader {
	parents := make([][]byte, len(h.ParentHashes))
	for i, p := range h.ParentHashes {
		parents[i] = p.Bytes()
	}
	return &rlpHeader{
		ParentHashes: parents,
		Height:       h.Height,
		Stream:       uint8(h.Stream),
		Difficulty:   h.Difficulty,
		Timestamp:    h.Timestamp,
		Nonce:        h.Nonce,
	}
}

// Hash computes the header's canonical keccak-256 hash.
func (h *Header) Hash() hashid.Hash {
	enc, err := rlp.EncodeToBytes(h.toRLP())
	if err != nil {
		panic("block: rlp encode of header failed: " + err.Error())
	}
	return hashid.Keccak256(enc)
}

// IsGenesis reports whether h has no parents.
func (h *Header) IsGenesis() bool { return len(h.ParentHashes) == 0 }

// Block is a header plus its transactions. Hash is computed at
// construction from the header and is never mutated afterward; two blocks
// with equal headers are the same block regardless of transaction slice
// identity, since MerkleParents must equal ParentHashes as multisets and
// transactions participate in the header only through the caller's own
// bookkeeping (the contract here treats the header as authoritative for
// identity, matching admission's hash-mismatch check in blockdag).
type Block struct {
	Header       Header
	Transactions []*txn.Transaction
	hash         hashid.Hash
}

// New constructs a Block, computing and fixing its hash.
func New(header Header, transactions []*txn.Transaction) *Block {
	b := &Block{Header: header, Transactions: transactions}
	b.hash = b.Header.Hash()
	return b
}

// Hash returns the block's fixed identity hash.
func (b *Block) Hash() hashid.Hash { return b.hash }

// MerkleParents echoes the header's declared parents; present to satisfy
// the invariant that the two must agree as multisets when a block arrives
// from the wire with a separately-declared merkle parent list.
func (b *Block) MerkleParents() []hashid.Hash { return b.Header.ParentHashes }

type rlpBlock struct {
	Header rlpHeader
	Txs    [][]byte
}

// Encode serializes the block (header + transactions) canonically.
func (b *Block) Encode() ([]byte, error) {
	txs := make([][]byte, len(b.Transactions))
	for i, t := range b.Transactions {
		enc, err := t.Encode()
		if err != nil {
			return nil, err
		}
		txs[i] = enc
	}
	return rlp.EncodeToBytes(&rlpBlock{Header: *b.Header.toRLP(), Txs: txs})
}

// Decode reconstructs a Block from bytes produced by Encode, recomputing
// its hash from the decoded header.
func Decode(data []byte) (*Block, error) {
	var wire rlpBlock
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, err
	}
	parents := make([]hashid.Hash, len(wire.Header.ParentHashes))
	for i, p := range wire.Header.ParentHashes {
		h, err := hashid.HashFromBytes(p)
		if err != nil {
			return nil, err
		}
		parents[i] = h
	}
	header := Header{
		ParentHashes: parents,
		Height:       wire.Header.Height,
		Stream:       Stream(wire.Header.Stream),
		Difficulty:   wire.Header.Difficulty,
		Timestamp:    wire.Header.Timestamp,
		Nonce:        wire.Header.Nonce,
	}
	txs := make([]*txn.Transaction, len(wire.Txs))
	for i, raw := range wire.Txs {
		t, err := txn.Decode(raw)
		if err != nil {
			return nil, err
		}
		txs[i] = t
	}
	return New(header, txs), nil
}
