package chain

// Loader cursors.
const (
	CursorLastSegment  = "last-complete-segment"
	CursorStoredBlocks = "stored-blocks"
	CursorTotalTx      = "total-transactions"
)

// Walker cursors.
const (
	CursorLastWalked   = "last-walked-hash"
	CursorBlocks       = "blocks"
	CursorValidTx      = "valid-tx"
	CursorBannedTx     = "banned-tx"
	CursorInputs       = "inputs"
	CursorOutputs      = "outputs"
	CursorGeneratedKey = "generated-keys"
	CursorIgnored      = "ignored-outputs"
	CursorUnsignedTx   = "unsigned-tx"
	CursorOutputOffset = "output-offset"
	CursorAddresses    = "unique-addresses"
)

// Anomaly counters, one per column of the banned stats file.
const (
	CursorBannedBadInput  = "banned-bad-input"
	CursorBannedZeroValue = "banned-zero-value"
	CursorBadPubKey       = "bad-pubkey"
	CursorScriptP2SH      = "script-p2sh"
	CursorScriptP2WSH     = "script-p2wsh"
	CursorScriptP2WPKH    = "script-p2wpkh"
	CursorScriptOther     = "script-other"
	CursorDuplicates      = "duplicate-outputs"
)
