package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/radixdlt/mtps/internal/resolver"
)

var prometheusPipelineCounters = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "mtps",
		Subsystem: "pipeline",
		Name:      "counter",
		Help:      "Persisted walker counters as of the last committed block",
	},
	[]string{"name"},
)

func updateGauges(c resolver.Counters) {
	for name, v := range map[string]uint64{
		"blocks":            c.Blocks,
		"valid_tx":          c.ValidTx,
		"banned_tx":         c.BannedTx,
		"inputs":            c.Inputs,
		"outputs":           c.Outputs,
		"unspent":           c.Unspent(),
		"unique_addresses":  c.UniqueAddresses,
		"generated_keys":    c.GeneratedKeys,
		"ignored":           c.Ignored,
		"unsigned_tx":       c.UnsignedTx,
		"banned_bad_input":  c.BannedBadInput,
		"banned_zero_value": c.BannedZeroValue,
		"bad_pubkey":        c.BadPubKey,
		"script_p2sh":       c.ScriptP2SH,
		"script_p2wsh":      c.ScriptP2WSH,
		"script_p2wpkh":     c.ScriptP2WPKH,
		"script_other":      c.ScriptOther,
		"duplicate_outputs": c.Duplicates,
	} {
		prometheusPipelineCounters.WithLabelValues(name).Set(float64(v))
	}
}
