package types

import "testing"

func TestAddress_Base58Roundtrip(t *testing.T) {
	var a Address
	a[0] = 0x02
	for i := 1; i < AddressSize; i++ {
		a[i] = byte(i)
	}

	s := a.String()
	got, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q) error: %v", s, err)
	}
	if got != a {
		t.Errorf("roundtrip: got %x, want %x", got, a)
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	if _, err := ParseAddress("0OIl"); err == nil {
		t.Error("ParseAddress with invalid base58 characters should fail")
	}
	// Valid base58, wrong length.
	if _, err := ParseAddress("abc"); err == nil {
		t.Error("ParseAddress with short payload should fail")
	}
}

func TestAddressFromBytes(t *testing.T) {
	if _, err := AddressFromBytes(make([]byte, 32)); err == nil {
		t.Error("AddressFromBytes(32 bytes) should fail")
	}
	a, err := AddressFromBytes(make([]byte, AddressSize))
	if err != nil {
		t.Fatalf("AddressFromBytes() error: %v", err)
	}
	if !a.IsZero() {
		t.Error("zero bytes should give the zero address")
	}
}

func TestEUID_Shard(t *testing.T) {
	var e EUID
	e[7] = 0x05
	if got := e.Shard(); got != 5 {
		t.Errorf("Shard() = %d, want 5", got)
	}

	// High bit set gives a negative shard.
	e[0] = 0x80
	if got := e.Shard(); got >= 0 {
		t.Errorf("Shard() = %d, want negative", got)
	}

	// Bytes after the first eight do not affect the shard.
	a := EUID{0x01}
	b := EUID{0x01}
	b[15] = 0xff
	if a.Shard() != b.Shard() {
		t.Error("Shard() depends on trailing bytes")
	}
}

func TestEUID_Less(t *testing.T) {
	a := EUID{0x01}
	b := EUID{0x02}
	if !a.Less(b) || b.Less(a) {
		t.Error("Less() ordering wrong")
	}
	if a.Less(a) {
		t.Error("Less() should be irreflexive")
	}
}
