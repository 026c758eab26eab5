package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionID_Format(t *testing.T) {
	id := New().NewTransactionID()

	require.True(t, strings.HasPrefix(id, Prefix))
	assert.Len(t, id, len(Prefix)+26)
	assert.Equal(t, strings.ToUpper(id), id)
	assert.LessOrEqual(t, len(id), 50)
}

func TestNewTransactionID_Unique(t *testing.T) {
	gen := New()
	seen := make(map[string]struct{}, 10_000)
	for i := 0; i < 10_000; i++ {
		id := gen.NewTransactionID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestFunc(t *testing.T) {
	var g Generator = Func(func() string { return "TXNFIXED" })
	assert.Equal(t, "TXNFIXED", g.NewTransactionID())
}
