// Package txsign implements secp256k1 transaction signing and
// verification, the opaque signature scheme behind Transaction.Signature.
// The core never interprets a signature's bytes (txn's canonical hash
// preimage excludes it); this package is the concrete scheme the genesis
// tool and its tests use to produce and check one.
package txsign

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"daglayer/internal/hashid"
)

// ErrInvalidSignature is returned by Verify when sig does not verify
// against hash under pubKey.
var ErrInvalidSignature = errors.New("txsign: signature does not verify")

// Keypair is a secp256k1 signing identity.
type Keypair struct {
	priv *btcec.PrivateKey
}

// GenerateKeypair creates a fresh random secp256k1 keypair using
// crypto/rand as its entropy source.
func GenerateKeypair() (*Keypair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromSeed deterministically derives a keypair from a 32-byte
// seed, giving the same identity on every run. The genesis command does
// not use it; it generates a fresh keypair with GenerateKeypair.
func KeypairFromSeed(seed [32]byte) *Keypair {
	priv, _ := btcec.PrivKeyFromBytes(seed[:])
	return &Keypair{priv: priv}
}

// PublicKeyBytes returns the compressed SEC1 encoding of the public key,
// the form a Verify caller supplies. Address derives from the
// uncompressed encoding instead.
func (k *Keypair) PublicKeyBytes() []byte {
	return k.priv.PubKey().SerializeCompressed()
}

// Address derives the hashid.Address this keypair signs on behalf of, via
// the uncompressed X||Y encoding go-ethereum-style derivation expects.
func (k *Keypair) Address() hashid.Address {
	pub := k.priv.PubKey()
	uncompressed := pub.SerializeUncompressed()
	// Drop the leading 0x04 prefix byte to get the bare 64-byte X||Y.
	return hashid.AddressFromPublicKey(uncompressed[1:])
}

// Sign produces a DER-encoded ECDSA signature over hash.
func (k *Keypair) Sign(hash hashid.Hash) []byte {
	sig := ecdsa.Sign(k.priv, hash.Bytes())
	return sig.Serialize()
}

// Verify checks a DER-encoded signature over hash against a compressed
// secp256k1 public key.
func Verify(pubKeyBytes []byte, hash hashid.Hash, sig []byte) error {
	pub, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return err
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return err
	}
	if !parsed.Verify(hash.Bytes(), pub) {
		return ErrInvalidSignature
	}
	return nil
}
