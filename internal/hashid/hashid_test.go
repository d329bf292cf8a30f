package hashid

import "testing"

func TestHashZeroAndString(t *testing.T) {
	if !ZeroHash.IsZero() {
		t.Fatalf("ZeroHash.IsZero() = false")
	}
	h := Keccak256([]byte("abc"))
	if h.IsZero() {
		t.Fatalf("Keccak256 result unexpectedly zero")
	}
	if len(h.String()) != 2+HashSize*2 {
		t.Fatalf("unexpected string length: %s", h.String())
	}
}

func TestHashLess(t *testing.T) {
	a := Hash{0x01}
	b := Hash{0x02}
	if !a.Less(b) {
		t.Fatalf("expected a < b")
	}
	if b.Less(a) {
		t.Fatalf("expected b !< a")
	}
	if a.Less(a) {
		t.Fatalf("expected a !< a")
	}
}

func TestHashFromBytesRoundTrip(t *testing.T) {
	h := Keccak256([]byte("round-trip"))
	h2, err := HashFromBytes(h.Bytes())
	if err != nil {
		t.Fatalf("HashFromBytes: %v", err)
	}
	if h2 != h {
		t.Fatalf("round-trip mismatch")
	}
	if _, err := HashFromBytes([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short input")
	}
}

func TestAddressFromBytesRoundTrip(t *testing.T) {
	var a Address
	a[0] = 0xAB
	a2, err := AddressFromBytes(a.Bytes())
	if err != nil {
		t.Fatalf("AddressFromBytes: %v", err)
	}
	if a2 != a {
		t.Fatalf("round-trip mismatch")
	}
	if _, err := AddressFromBytes(make([]byte, 19)); err == nil {
		t.Fatalf("expected error for short input")
	}
}

func TestAddressFromPublicKey(t *testing.T) {
	pub := make([]byte, 64)
	for i := range pub {
		pub[i] = byte(i)
	}
	addr := AddressFromPublicKey(pub)
	if addr.IsZero() {
		t.Fatalf("derived address unexpectedly zero")
	}
}
