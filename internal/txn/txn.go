// Package txn defines the immutable transaction record and its canonical
// hash computation.
package txn

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"daglayer/internal/hashid"
)

// Transaction is an immutable record of value transfer once its hash has
// been computed. Optional fields (Sponsor, ExecuteAtBlock,
// ExecuteAtTimestamp) are modeled as explicit presence flags rather than
// pointers so the record has one canonical RLP encoding.
type Transaction struct {
	From     hashid.Address
	To       hashid.Address
	Value    *big.Int
	Fee      *big.Int
	Nonce    uint64
	Data     []byte
	GasLimit uint64

	HasSponsor bool
	Sponsor    hashid.Address

	HasExecuteAtBlock bool
	ExecuteAtBlock    uint64

	HasExecuteAtTimestamp bool
	ExecuteAtTimestamp    uint64

	// Signature is opaque to the core; it is never part of the canonical
	// hash preimage.
	Signature []byte

	hash hashid.Hash
}

// rlpPayload is the canonical, order-sensitive encoding used to derive a
// transaction's hash. It never changes once a Transaction is constructed.
type rlpPayload struct {
	From                   []byte
	To                     []byte
	Value                  *big.Int
	Fee                    *big.Int
	Nonce                  uint64
	Data                   []byte
	GasLimit               uint64
	HasSponsor             bool
	Sponsor                []byte
	HasExecuteAtBlock      bool
	ExecuteAtBlock         uint64
	HasExecuteAtTimestamp  bool
	ExecuteAtTimestamp     uint64
}

// New builds a Transaction and computes its canonical hash. The hash is
// fixed at construction and is never recomputed afterward.
func New(from, to hashid.Address, value, fee *big.Int, nonce uint64, data []byte, gasLimit uint64) *Transaction {
	tx := &Transaction{
		From:     from,
		To:       to,
		Value:    nonNilBig(value),
		Fee:      nonNilBig(fee),
		Nonce:    nonce,
		Data:     data,
		GasLimit: gasLimit,
	}
	tx.hash = tx.computeHash()
	return tx
}

// WithSponsor returns a copy of tx with sponsor set, and a recomputed hash.
// Intended for use only while constructing a transaction, before it is
// admitted anywhere.
func (tx *Transaction) WithSponsor(sponsor hashid.Address) *Transaction {
	cp := *tx
	cp.HasSponsor = true
	cp.Sponsor = sponsor
	cp.hash = cp.computeHash()
	return &cp
}

// WithTimeLock returns a copy of tx gated on the given block height and/or
// unix timestamp, with a recomputed hash. A zero block/timestamp argument
// with its paired ok=false leaves that gate unset.
func (tx *Transaction) WithTimeLock(block uint64, hasBlock bool, timestamp uint64, hasTimestamp bool) *Transaction {
	cp := *tx
	cp.HasExecuteAtBlock = hasBlock
	cp.ExecuteAtBlock = block
	cp.HasExecuteAtTimestamp = hasTimestamp
	cp.ExecuteAtTimestamp = timestamp
	cp.hash = cp.computeHash()
	return &cp
}

// WithSignature attaches an opaque signature. Signature bytes are never
// part of the canonical hash.
func (tx *Transaction) WithSignature(sig []byte) *Transaction {
	cp := *tx
	cp.Signature = sig
	return &cp
}

func nonNilBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func (tx *Transaction) computeHash() hashid.Hash {
	payload := rlpPayload{
		From:                  tx.From.Bytes(),
		To:                    tx.To.Bytes(),
		Value:                 nonNilBig(tx.Value),
		Fee:                   nonNilBig(tx.Fee),
		Nonce:                 tx.Nonce,
		Data:                  tx.Data,
		GasLimit:              tx.GasLimit,
		HasSponsor:            tx.HasSponsor,
		Sponsor:               tx.Sponsor.Bytes(),
		HasExecuteAtBlock:     tx.HasExecuteAtBlock,
		ExecuteAtBlock:        tx.ExecuteAtBlock,
		HasExecuteAtTimestamp: tx.HasExecuteAtTimestamp,
		ExecuteAtTimestamp:    tx.ExecuteAtTimestamp,
	}
	enc, err := rlp.EncodeToBytes(&payload)
	if err != nil {
		// The payload contains only RLP-encodable primitive fields; a
		// failure here means the type definition above is broken.
		panic("txn: rlp encode of canonical payload failed: " + err.Error())
	}
	return hashid.Keccak256(enc)
}

// Hash returns the transaction's canonical hash.
func (tx *Transaction) Hash() hashid.Hash { return tx.hash }

// FeePayer returns the sponsor if set, otherwise From.
func (tx *Transaction) FeePayer() hashid.Address {
	if tx.HasSponsor {
		return tx.Sponsor
	}
	return tx.From
}

// AddressSet returns the set of addresses this transaction touches: from,
// to (if non-zero) and sponsor (if set and distinct from from).
func (tx *Transaction) AddressSet() []hashid.Address {
	set := []hashid.Address{tx.From}
	if !tx.To.IsZero() && tx.To != tx.From {
		set = append(set, tx.To)
	}
	if tx.HasSponsor && tx.Sponsor != tx.From && tx.Sponsor != tx.To {
		set = append(set, tx.Sponsor)
	}
	return set
}

// Encode returns the RLP encoding of the full transaction including its
// signature, suitable for wire transmission or persistence.
func (tx *Transaction) Encode() ([]byte, error) {
	wire := struct {
		Payload   rlpPayload
		Signature []byte
	}{
		Payload: rlpPayload{
			From:                  tx.From.Bytes(),
			To:                    tx.To.Bytes(),
			Value:                 nonNilBig(tx.Value),
			Fee:                   nonNilBig(tx.Fee),
			Nonce:                 tx.Nonce,
			Data:                  tx.Data,
			GasLimit:              tx.GasLimit,
			HasSponsor:            tx.HasSponsor,
			Sponsor:               tx.Sponsor.Bytes(),
			HasExecuteAtBlock:     tx.HasExecuteAtBlock,
			ExecuteAtBlock:        tx.ExecuteAtBlock,
			HasExecuteAtTimestamp: tx.HasExecuteAtTimestamp,
			ExecuteAtTimestamp:    tx.ExecuteAtTimestamp,
		},
		Signature: tx.Signature,
	}
	return rlp.EncodeToBytes(&wire)
}

// Decode reconstructs a Transaction from bytes produced by Encode. The hash
// is recomputed from the decoded canonical fields, never trusted from the
// wire.
func Decode(data []byte) (*Transaction, error) {
	var wire struct {
		Payload   rlpPayload
		Signature []byte
	}
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, err
	}
	from, err := hashid.AddressFromBytes(wire.Payload.From)
	if err != nil {
		return nil, err
	}
	to, err := hashid.AddressFromBytes(wire.Payload.To)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		From:                  from,
		To:                    to,
		Value:                 wire.Payload.Value,
		Fee:                   wire.Payload.Fee,
		Nonce:                 wire.Payload.Nonce,
		Data:                  wire.Payload.Data,
		GasLimit:              wire.Payload.GasLimit,
		HasSponsor:            wire.Payload.HasSponsor,
		HasExecuteAtBlock:     wire.Payload.HasExecuteAtBlock,
		ExecuteAtBlock:        wire.Payload.ExecuteAtBlock,
		HasExecuteAtTimestamp: wire.Payload.HasExecuteAtTimestamp,
		ExecuteAtTimestamp:    wire.Payload.ExecuteAtTimestamp,
		Signature:             wire.Signature,
	}
	if wire.Payload.HasSponsor {
		sponsor, err := hashid.AddressFromBytes(wire.Payload.Sponsor)
		if err != nil {
			return nil, err
		}
		tx.Sponsor = sponsor
	}
	tx.hash = tx.computeHash()
	return tx, nil
}
