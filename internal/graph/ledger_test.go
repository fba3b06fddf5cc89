package graph

import (
	"testing"

	"github.com/nidhogg/findit/internal/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Returned ")
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, st)

	_, err = ParseStatus("lost-forever")
	assert.Error(t, err)
}

func TestResultRowsSkipsIncompletePairs(t *testing.T) {
	rows := resultRows([]match.Result{
		{LostID: "l1", FoundID: "f1", PairKey: "f1_l1", Score: 81.5, Preset: match.PresetFreeTextOnly},
		{LostID: "l2", PairKey: "l2"},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "f1_l1", rows[0]["pair_key"])
	assert.Equal(t, 81.5, rows[0]["score"])
}
