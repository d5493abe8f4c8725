package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umkm/internal/core"
	"umkm/internal/income"
)

func sampleInputs() Inputs {
	ov := income.Aggregate([]core.Income{
		{ID: "1", Amount: core.NewAmount(1000000), Source: "Pasar", Date: "2024-01-05"},
		{ID: "2", Amount: core.NewAmount(1500000), Source: "Pasar", Date: "2024-02-05"},
	})
	return Inputs{ProductCount: 3, Overview: ov}
}

func TestBuildDefaultCards(t *testing.T) {
	cards, err := Build(sampleInputs())
	require.NoError(t, err)
	require.Len(t, cards, 4)

	assert.Equal(t, TotalProducts, cards[0].Kind)
	assert.Equal(t, "3", cards[0].Value)
	assert.Equal(t, IconPackage, cards[0].Icon)

	assert.Equal(t, MonthlyRevenue, cards[1].Kind)
	assert.Equal(t, "Rp 1.500.000,00", cards[1].Value)
	require.NotNil(t, cards[1].Change)
	assert.InDelta(t, 50.0, *cards[1].Change, 1e-9)

	assert.Equal(t, "Rp 1.250.000,00", cards[2].Value)

	assert.Equal(t, HighestMonth, cards[3].Kind)
	assert.Equal(t, "Feb 2024", cards[3].Note)
	assert.Nil(t, cards[3].Change)
}

func TestBuildSelectedKinds(t *testing.T) {
	cards, err := Build(sampleInputs(), HighestMonth, TotalProducts)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, HighestMonth, cards[0].Kind)
	assert.Equal(t, TotalProducts, cards[1].Kind)
}

func TestBuildUnknownKind(t *testing.T) {
	_, err := Build(sampleInputs(), Kind("visitors"))
	assert.Error(t, err)
}

func TestBuildEmptyOverview(t *testing.T) {
	cards, err := Build(Inputs{Overview: income.Aggregate(nil)})
	require.NoError(t, err)
	assert.Equal(t, "0", cards[0].Value)
	assert.Equal(t, "Rp 0,00", cards[1].Value)
	assert.Equal(t, "", cards[3].Note)
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultKinds, kinds)

	kinds, err = ParseKinds([]string{"averageIncome"})
	require.NoError(t, err)
	assert.Equal(t, []Kind{AverageIncome}, kinds)

	_, err = ParseKinds([]string{"averageIncome", "bogus"})
	assert.Error(t, err)
}
