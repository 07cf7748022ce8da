// Package atom defines the transfer records emitted by the pipeline and
// their binary stream format.
package atom

import (
	"encoding/binary"
	"sort"

	"github.com/holiman/uint256"
	"github.com/radixdlt/mtps/pkg/crypto"
	"github.com/radixdlt/mtps/pkg/types"
)

const (
	// SubunitsPerSatoshi converts source-chain satoshis into token subunits
	// (one coin is 10^18 subunits, one coin is 10^8 satoshis).
	SubunitsPerSatoshi = 10_000_000_000

	// MillisPerPlanck is the length of one planck period.
	MillisPerPlanck = 60_000
	// PlanckOffset is added to the period number of the block time.
	PlanckOffset = 60_000
)

// Spin is the state transition of a record within a transaction.
type Spin uint8

const (
	// SpinDown marks a consumed record.
	SpinDown Spin = 0
	// SpinUp marks a produced record.
	SpinUp Spin = 1
)

// String returns "up" or "down".
func (s Spin) String() string {
	if s == SpinUp {
		return "up"
	}
	return "down"
}

// Permission names who may perform a token transition.
type Permission string

// PermissionAll allows anyone.
const PermissionAll Permission = "all"

// Permissions holds the transition permissions of a record.
type Permissions struct {
	Mint Permission
	Burn Permission
}

// DefaultPermissions is attached to every derived record.
var DefaultPermissions = Permissions{Mint: PermissionAll, Burn: PermissionAll}

// TransferRecord is the target-ledger record derived from one source output.
// Granularity, token reference and permissions are constant per run and
// are not written to the stream.
type TransferRecord struct {
	Amount      uint256.Int
	Granularity uint256.Int
	Address     types.Address
	Nonce       int64
	TokenRef    string
	Planck      int64
	Permissions Permissions
}

// NewTransferRecord derives the record of an output worth satoshis, owned
// by addr, created in a block with the given timestamp.
func NewTransferRecord(satoshis uint64, addr types.Address, nonce int64, tokenRef string, blockTimeMillis int64) TransferRecord {
	var amount uint256.Int
	amount.Mul(uint256.NewInt(satoshis), uint256.NewInt(SubunitsPerSatoshi))
	return TransferRecord{
		Amount:      amount,
		Granularity: *uint256.NewInt(1),
		Address:     addr,
		Nonce:       nonce,
		TokenRef:    tokenRef,
		Planck:      PlanckFromMillis(blockTimeMillis),
		Permissions: DefaultPermissions,
	}
}

// PlanckFromMillis returns the maturity marker of a timestamp.
func PlanckFromMillis(ms int64) int64 {
	return ms/MillisPerPlanck + PlanckOffset
}

// NonceFor derives the record nonce from the output identifier, so the same
// output always yields the same record.
func NonceFor(id types.OutputID) int64 {
	h := crypto.Hash(id[:])
	return int64(binary.BigEndian.Uint64(h[:8]))
}

// EUID returns the entity identifier of the record owner.
func (r *TransferRecord) EUID() types.EUID {
	return crypto.EUIDFromPubKey(r.Address[:])
}

// SpunRecord is a record together with its transition.
type SpunRecord struct {
	Spin   Spin
	Record TransferRecord
}

// SignatureEntry is one signature keyed by the signer's entity identifier.
type SignatureEntry struct {
	Signer    types.EUID
	Signature crypto.Signature
}

// Record is one entry of the atom stream: the records of a source
// transaction, the shards they touch and one signature per signer.
type Record struct {
	// TxID is the source transaction hash in display order.
	TxID            types.Hash
	BlockTimeMillis int64
	Shards          []int64
	Particles       []SpunRecord
	Signatures      []SignatureEntry
}

// ShardsOf returns the sorted distinct shards of the record owners.
func ShardsOf(particles []SpunRecord) []int64 {
	seen := make(map[int64]struct{}, len(particles))
	shards := make([]int64, 0, len(particles))
	for i := range particles {
		s := particles[i].Record.EUID().Shard()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		shards = append(shards, s)
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i] < shards[j] })
	return shards
}

// SortSignatures orders entries by signer identifier.
func SortSignatures(sigs []SignatureEntry) {
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Signer.Less(sigs[j].Signer) })
}

// Verify checks every signature against the content hash using the owner
// key found among the particles. It returns the number of valid signatures.
func (r *Record) Verify(kh crypto.KeyHandler) (valid int, total int) {
	owners := make(map[types.EUID]types.Address, len(r.Particles))
	for i := range r.Particles {
		addr := r.Particles[i].Record.Address
		owners[crypto.EUIDFromPubKey(addr[:])] = addr
	}
	hash := ContentHash(r.TxID, r.BlockTimeMillis, r.Particles)
	for _, e := range r.Signatures {
		addr, ok := owners[e.Signer]
		if ok && kh.Verify(hash[:], e.Signature, addr[:]) {
			valid++
		}
	}
	return valid, len(r.Signatures)
}
