package analyzer

import (
	"math/rand"
	"testing"

	"token-risk/internal/server/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transfer(to string, amount int64) model.TransferRecord {
	return model.TransferRecord{ToAddress: to, Amount: decimal.NewFromInt(amount)}
}

func TestAnalyze_Scenario(t *testing.T) {
	transfers := []model.TransferRecord{
		transfer("A", 100),
		transfer("A", 50),
		transfer("B", 50),
	}
	r, err := Analyze(transfers, decimal.NewFromInt(1000))
	require.NoError(t, err)

	assert.True(t, r.TotalAcquired.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "20", r.SupplyPercentage.String())
	assert.Equal(t, 20.0, r.Percentage())
	assert.Len(t, r.PerRecipientTotals, 2)
	assert.True(t, r.PerRecipientTotals["A"].Equal(decimal.NewFromInt(150)))
	assert.True(t, r.PerRecipientTotals["B"].Equal(decimal.NewFromInt(50)))
	assert.Equal(t, []string{"A"}, r.RepeatRecipients)
	assert.Equal(t, 3, r.SampleSize)
}

func TestAnalyze_EmptyIsInsufficientData(t *testing.T) {
	r, err := Analyze(nil, decimal.NewFromInt(1000))
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Nil(t, r)
}

func TestAnalyze_ZeroSupplyYieldsZeroPercent(t *testing.T) {
	r, err := Analyze([]model.TransferRecord{transfer("A", 500)}, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, r.SupplyPercentage.IsZero())
	assert.Empty(t, r.RepeatRecipients)
}

func TestAnalyze_ZeroAmountsAreAReportNotInsufficientData(t *testing.T) {
	r, err := Analyze([]model.TransferRecord{transfer("A", 0)}, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, r.SupplyPercentage.IsZero())
}

func TestAnalyze_NegativeAmountsClamped(t *testing.T) {
	r, err := Analyze([]model.TransferRecord{transfer("A", -40), transfer("B", 10)}, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "10", r.SupplyPercentage.String())
}

func TestAnalyze_PercentageMatchesRatio(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		n := 1 + rng.Intn(40)
		var sum int64
		transfers := make([]model.TransferRecord, 0, n)
		for j := 0; j < n; j++ {
			amt := rng.Int63n(1_000_000_000_000)
			sum += amt
			transfers = append(transfers, transfer(string(rune('A'+rng.Intn(5))), amt))
		}
		supply := 1 + rng.Int63n(1_000_000_000_000_000)

		r, err := Analyze(transfers, decimal.NewFromInt(supply))
		require.NoError(t, err)

		want := 100 * float64(sum) / float64(supply)
		assert.InDelta(t, want, r.Percentage(), 0.01, "sum=%d supply=%d", sum, supply)
	}
}

func TestSupplyPercentage_RoundsHalfUp(t *testing.T) {
	got := SupplyPercentage(decimal.NewFromInt(1), decimal.NewFromInt(8))
	assert.Equal(t, "12.5", got.String())
	got = SupplyPercentage(decimal.NewFromInt(1), decimal.NewFromInt(3))
	assert.Equal(t, "33.33", got.String())
	got = SupplyPercentage(decimal.NewFromInt(2), decimal.NewFromInt(3))
	assert.Equal(t, "66.67", got.String())
}

func TestReport_ToModel(t *testing.T) {
	r, err := Analyze([]model.TransferRecord{transfer("A", 1), transfer("A", 2)}, decimal.NewFromInt(10))
	require.NoError(t, err)
	c := r.ToModel()
	require.NotNil(t, c.SupplyPercentage)
	assert.Equal(t, 30.0, *c.SupplyPercentage)
	assert.Equal(t, "3", c.TotalAcquired)
	assert.Equal(t, map[string]string{"A": "3"}, c.PerRecipientTotals)
	assert.False(t, c.InsufficientData)
}
