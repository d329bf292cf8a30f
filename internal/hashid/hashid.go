// Package hashid defines the node's identity primitives: 32-byte block and
// transaction hashes, and 20-byte addresses derived the way go-ethereum
// derives them, via keccak-256.
package hashid

import (
	"encoding/hex"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
)

// HashSize is the length in bytes of a Hash.
const HashSize = 32

// AddressSize is the length in bytes of an Address.
const AddressSize = 20

// Hash is a 32-byte content identifier used for blocks, transactions and
// DAG node identity.
type Hash [HashSize]byte

// ZeroHash is the all-zero hash, used as a sentinel "no value".
var ZeroHash Hash

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == ZeroHash }

// String returns the 0x-prefixed hex encoding of h.
func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

// Bytes returns a copy of h's underlying bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// Less orders hashes lexicographically, used as the tertiary DAG ordering
// key.
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// HashFromBytes copies b (which must be exactly HashSize bytes) into a Hash.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, errors.New("hashid: invalid hash length")
	}
	copy(h[:], b)
	return h, nil
}

// Keccak256 hashes the concatenation of data and returns a Hash.
func Keccak256(data ...[]byte) Hash {
	sum := crypto.Keccak256(data...)
	var h Hash
	copy(h[:], sum)
	return h
}

// Address is a 20-byte account identifier. AddressFromPublicKey derives
// one as the low-order 20 bytes of a keccak-256 digest over the bare
// 64-byte public key; no prefix is hashed in.
type Address [AddressSize]byte

// ZeroAddress is the all-zero address; it denotes the contract-deployment
// target slot or "no recipient".
var ZeroAddress Address

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == ZeroAddress }

// String returns the 0x-prefixed hex encoding of a.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// Bytes returns a copy of a's underlying bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// AddressFromBytes copies b (which must be exactly AddressSize bytes) into
// an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, errors.New("hashid: invalid address length")
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromPublicKey derives an address from an uncompressed secp256k1
// public key the way go-ethereum does: the low-order 20 bytes of the
// keccak-256 hash of the 64-byte X||Y encoding.
func AddressFromPublicKey(pubKeyXY []byte) Address {
	sum := crypto.Keccak256(pubKeyXY)
	var a Address
	copy(a[:], sum[len(sum)-AddressSize:])
	return a
}
