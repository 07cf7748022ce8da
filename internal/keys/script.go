package keys

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptClass is the locking-script family of an output as far as key
// derivation is concerned.
type ScriptClass int

// Script classes.
const (
	// ClassOther has no address; its owner gets a generated key.
	ClassOther ScriptClass = iota
	ClassP2PKH
	ClassP2PK
	// ClassBadPubKey is a pay-to-pubkey script whose key does not parse.
	ClassBadPubKey
	ClassP2SH
	ClassP2WPKH
	ClassP2WSH
	ClassP2TR
)

var classNames = map[ScriptClass]string{
	ClassOther:     "other",
	ClassP2PKH:     "p2pkh",
	ClassP2PK:      "p2pk",
	ClassBadPubKey: "bad-pubkey",
	ClassP2SH:      "p2sh",
	ClassP2WPKH:    "p2wpkh",
	ClassP2WSH:     "p2wsh",
	ClassP2TR:      "p2tr",
}

// String returns the class name.
func (c ScriptClass) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return "unknown"
}

// Classify returns the class of pkScript and, when it has one, the address
// hash the owning key is derived from. Pay-to-pubkey scripts use the
// hash160 of the key, so they map to the same owner as the matching P2PKH.
func Classify(pkScript []byte, params *chaincfg.Params) (ScriptClass, []byte) {
	class, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, params)
	if err != nil {
		return ClassOther, nil
	}
	switch class {
	case txscript.PubKeyHashTy:
		if len(addrs) == 1 {
			return ClassP2PKH, addrs[0].ScriptAddress()
		}
	case txscript.PubKeyTy:
		if len(addrs) == 1 {
			if pk, ok := addrs[0].(*btcutil.AddressPubKey); ok {
				return ClassP2PK, pk.AddressPubKeyHash().ScriptAddress()
			}
		}
		return ClassBadPubKey, nil
	case txscript.ScriptHashTy:
		if len(addrs) == 1 {
			return ClassP2SH, addrs[0].ScriptAddress()
		}
	case txscript.WitnessV0PubKeyHashTy:
		if len(addrs) == 1 {
			return ClassP2WPKH, addrs[0].ScriptAddress()
		}
	case txscript.WitnessV0ScriptHashTy:
		if len(addrs) == 1 {
			return ClassP2WSH, addrs[0].ScriptAddress()
		}
	case txscript.WitnessV1TaprootTy:
		if len(addrs) == 1 {
			return ClassP2TR, addrs[0].ScriptAddress()
		}
	}
	return ClassOther, nil
}
