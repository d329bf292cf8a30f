package mining

import (
	"lukechampine.com/blake3"

	"daglayer/internal/hashid"
)

// sealHash computes the proof-of-work hash a stream's nonce search targets.
// Stream A is assigned blake3 (cheaper to verify at the 10s cadence, where
// throughput matters less than diversity of hash function across streams);
// streams B and C share the keccak-256 used throughout the rest of the
// node, since their sub-second cadence benefits from the already-warm
// go-ethereum crypto path.
func sealHash(stream Stream, data []byte) hashid.Hash {
	if stream == StreamA {
		sum := blake3.Sum256(data)
		return hashid.Hash(sum)
	}
	return hashid.Keccak256(data)
}
