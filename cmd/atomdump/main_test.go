package main

import (
	"testing"

	"github.com/radixdlt/mtps/pkg/atom"
	"github.com/radixdlt/mtps/pkg/crypto"
	"github.com/radixdlt/mtps/pkg/types"
)

func testAddress(t *testing.T, seed string) types.Address {
	t.Helper()
	priv := crypto.Hash([]byte(seed))
	pub, err := crypto.NewKeyHandler().PublicKey(priv[:])
	if err != nil {
		t.Fatal(err)
	}
	addr, err := types.AddressFromBytes(pub)
	if err != nil {
		t.Fatal(err)
	}
	return addr
}

func TestShardsMatch(t *testing.T) {
	alice, bob := testAddress(t, "alice"), testAddress(t, "bob")
	particles := []atom.SpunRecord{
		{Spin: atom.SpinDown, Record: atom.NewTransferRecord(10, alice, 1, "/native/XRD", 0)},
		{Spin: atom.SpinUp, Record: atom.NewTransferRecord(6, bob, 2, "/native/XRD", 0)},
		{Spin: atom.SpinUp, Record: atom.NewTransferRecord(4, alice, 3, "/native/XRD", 0)},
	}
	rec := &atom.Record{Particles: particles, Shards: atom.ShardsOf(particles)}
	if !shardsMatch(rec) {
		t.Fatal("shardsMatch() = false for the shards of the record owners")
	}

	tests := []struct {
		name   string
		shards []int64
	}{
		{"missing", rec.Shards[:1]},
		{"extra", append(append([]int64{}, rec.Shards...), 42)},
		{"duplicated", append(append([]int64{}, rec.Shards...), rec.Shards[0])},
		{"none", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := &atom.Record{Particles: particles, Shards: tt.shards}
			if shardsMatch(bad) {
				t.Errorf("shardsMatch(%v) = true", tt.shards)
			}
		})
	}
}
