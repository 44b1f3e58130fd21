package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/loop_scanner/internal/domain"
	"github.com/vitos/loop_scanner/internal/usecase"
	"go.uber.org/zap"
)

func testFallbacks() domain.Fallbacks {
	return domain.Fallbacks{
		Underlying: map[string]float64{"ONyc": 13.35, "syrupUSDC": 5.86},
		LTV:        map[string]float64{"ONyc": 50, "USDC": 80, "EURC": 0},
		SupplyOnly: []string{"ONyc", "syrupUSDC"},
	}
}

func TestNormalizer_DropsMalformed(t *testing.T) {
	n := usecase.NewNormalizer(testFallbacks(), zap.NewNop())

	rates := []domain.RateEntry{
		{Platform: "", Market: "Main", Token: "A"},
		{Platform: "kamino", Market: "Main", Token: ""},
		{Platform: "kamino", Market: "Main", Token: "B", LTV: -1},
		{Platform: "kamino", Market: "Main", Token: "C", LTV: 100},
		{Platform: "kamino", Market: "Main", Token: "D", BorrowAPY: domain.Float(-2)},
		{Platform: "kamino", Market: "Main", Token: "E", LTV: 75},
	}

	out := n.Normalize(rates)
	require.Len(t, out, 1)
	assert.Equal(t, "E", out[0].Token)
}

func TestNormalizer_ChecksBackfilledLTV(t *testing.T) {
	fb := testFallbacks()
	fb.LTV["BAD"] = 100

	n := usecase.NewNormalizer(fb, zap.NewNop())
	out := n.Normalize([]domain.RateEntry{
		{Platform: "kamino", Market: "Main", Token: "BAD", CanCollateral: true},
		{Platform: "kamino", Market: "Main", Token: "USDC"},
	})

	require.Len(t, out, 1)
	assert.Equal(t, "USDC", out[0].Token)
	assert.InDelta(t, 80.0, out[0].LTV, epsilon)
}

func TestNormalizer_DeduplicatesLastWins(t *testing.T) {
	n := usecase.NewNormalizer(domain.Fallbacks{}, zap.NewNop())

	out := n.Normalize([]domain.RateEntry{
		{Platform: "kamino", Market: "Main", Token: "USDC", SupplyAPY: domain.Float(4)},
		{Platform: "kamino", Market: "JLP", Token: "USDC", SupplyAPY: domain.Float(5)},
		{Platform: "kamino", Market: "Main", Token: "USDC", SupplyAPY: domain.Float(6)},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "Main", out[0].Market)
	assert.InDelta(t, 6.0, *out[0].SupplyAPY, epsilon)
	assert.Equal(t, "JLP", out[1].Market)
}

func TestNormalizer_Backfill(t *testing.T) {
	n := usecase.NewNormalizer(testFallbacks(), zap.NewNop())

	out := n.Normalize([]domain.RateEntry{
		{Platform: "kamino", Market: "OnRe", Token: "ONyc", SupplyAPY: domain.Float(0.1), CanCollateral: true, CanBorrow: true, BorrowAPY: domain.Float(1)},
		{Platform: "kamino", Market: "Main", Token: "USDC", LTV: 75, UnderlyingAPY: domain.Float(0.5)},
		{Platform: "kamino", Market: "Main", Token: "EURC"},
	})
	require.Len(t, out, 3)

	onyc := out[0]
	require.NotNil(t, onyc.UnderlyingAPY)
	assert.InDelta(t, 13.35, *onyc.UnderlyingAPY, epsilon)
	assert.InDelta(t, 50.0, onyc.LTV, epsilon)
	assert.False(t, onyc.CanBorrow)
	assert.Nil(t, onyc.BorrowAPY)

	usdc := out[1]
	assert.InDelta(t, 75.0, usdc.LTV, epsilon, "feed LTV wins over fallback")
	assert.InDelta(t, 0.5, *usdc.UnderlyingAPY, epsilon, "feed underlying wins over fallback")

	assert.Equal(t, 0.0, out[2].LTV)
}

func TestNormalizer_DoesNotMutateInput(t *testing.T) {
	n := usecase.NewNormalizer(testFallbacks(), zap.NewNop())

	in := []domain.RateEntry{{Platform: "kamino", Market: "OnRe", Token: "ONyc", CanBorrow: true}}
	n.Normalize(in)

	assert.True(t, in[0].CanBorrow)
	assert.Nil(t, in[0].UnderlyingAPY)
	assert.Equal(t, 0.0, in[0].LTV)
}
