package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerOperationCounter(t *testing.T) {
	Init()
	Init()

	IncrementLedgerOperation("deposit", "success")
	IncrementLedgerOperation("deposit", "success")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var got float64
	for _, mf := range families {
		if mf.GetName() != "ledger_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["operation"] == "deposit" && labels["outcome"] == "success" {
				got = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), got)
}
