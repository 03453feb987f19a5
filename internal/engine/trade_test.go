package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolstats/internal/domain"
)

func tradeEvent(t *testing.T, ts int64, logIdx uint32) *domain.Event {
	t.Helper()
	return evt(t, domain.KindTokensTraded, ts, logIdx, domain.TokensTraded{
		SourceToken:     linkAddr,
		TargetToken:     daiAddr,
		Trader:          traderAddr,
		SourceAmount:    big.NewInt(100),
		TargetAmount:    big.NewInt(95),
		TargetFeeAmount: big.NewInt(5),
	})
}

func TestTokensTraded(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, bnLinkAddr, linkAddr)
	f.seedPool(t, bnDaiAddr, daiAddr)
	f.setNetworkFee(t, 200_000) // 20% of trading fees to the protocol

	ts := int64(1_700_000_000)
	f.process(t, tradeEvent(t, ts, 3))

	swap, ok, err := f.ents.Swaps.Find(context.Background(), domain.SwapID("0xtx", 3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bnLinkAddr, swap.Pool)
	assert.Equal(t, traderAddr, swap.From)
	assert.Equal(t, float64(100), swap.AmountInUSD)
	assert.Equal(t, float64(95), swap.AmountOutUSD)
	assert.Equal(t, float64(5), swap.TradingFeeUSD)

	pool := f.pool(t, bnLinkAddr)
	assert.Equal(t, float64(100), pool.CumulativeVolumeUSD)
	assert.Equal(t, float64(5), pool.CumulativeTradingFeeUSD)

	prot := f.protocol(t)
	assert.Equal(t, float64(100), prot.CumulativeVolumeUSD)
	assert.Equal(t, float64(5), prot.CumulativeTotalRevenueUSD)
	assert.Equal(t, float64(1), prot.CumulativeProtocolSideRevenueUSD)
	assert.Equal(t, float64(4), prot.CumulativeSupplySideRevenueUSD)

	require.Len(t, f.sink.swaps, 1)
	assert.Equal(t, swap.ID, f.sink.swaps[0].ID)
}

func TestTokensTradedAggregatesSnapshots(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, bnLinkAddr, linkAddr)
	f.seedPool(t, bnDaiAddr, daiAddr)
	f.setNetworkFee(t, 200_000)

	ts := int64(1_700_000_000)
	f.process(t, tradeEvent(t, ts, 3))
	f.process(t, tradeEvent(t, ts+60, 4))

	dayID := domain.BucketID(domain.DayIndex(ts))
	usage, ok, err := f.ents.UsageDaily.Find(context.Background(), dayID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), usage.TransactionCount)
	assert.Equal(t, int64(2), usage.SwapCount)
	assert.Equal(t, int64(1), usage.ActiveUsers)

	ps, ok, err := f.ents.PoolDaily.Find(context.Background(), domain.SubjectBucketID(bnLinkAddr, domain.DayIndex(ts)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(200), ps.PeriodVolumeTokenAmount)
	assert.Equal(t, float64(200), ps.PeriodVolumeUSD)
	assert.Equal(t, float64(200), ps.CumulativeVolumeUSD)

	fin, ok, err := f.ents.Financials.Find(context.Background(), dayID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(200), fin.DailyVolumeUSD)
	assert.Equal(t, float64(200), fin.CumulativeVolumeUSD)
	assert.Equal(t, float64(10), fin.DailyTotalRevenueUSD)
	assert.Equal(t, float64(2), fin.DailyProtocolSideRevenueUSD)
	assert.Equal(t, float64(8), fin.DailySupplySideRevenueUSD)
}

func TestTokensTradedUnknownSourceSkipsCleanly(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, bnDaiAddr, daiAddr)

	f.process(t, evt(t, domain.KindTokensTraded, 1_700_000_000, 3, domain.TokensTraded{
		SourceToken:     "0xunknown",
		TargetToken:     daiAddr,
		Trader:          traderAddr,
		SourceAmount:    big.NewInt(100),
		TargetAmount:    big.NewInt(95),
		TargetFeeAmount: big.NewInt(5),
	}))

	_, ok, err := f.ents.Swaps.Find(context.Background(), domain.SwapID("0xtx", 3))
	require.NoError(t, err)
	assert.False(t, ok, "a skipped trade must leave no record")
	assert.Equal(t, float64(0), f.protocol(t).CumulativeVolumeUSD)
	assert.Empty(t, f.sink.swaps)
}

func TestTokensTradedValuationFailureFallsBackToZero(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, bnLinkAddr, linkAddr)
	f.seedPool(t, bnDaiAddr, daiAddr)
	f.rates.fail = true

	f.process(t, evt(t, domain.KindTokensTraded, 1_700_000_000, 3, domain.TokensTraded{
		SourceToken:     linkAddr,
		TargetToken:     linkAddr, // avoid the reference-token shortcut on both legs
		Trader:          traderAddr,
		SourceAmount:    big.NewInt(100),
		TargetAmount:    big.NewInt(95),
		TargetFeeAmount: big.NewInt(5),
	}))

	swap, ok, err := f.ents.Swaps.Find(context.Background(), domain.SwapID("0xtx", 3))
	require.NoError(t, err)
	require.True(t, ok, "a failed valuation degrades the value, not the event")
	assert.Equal(t, float64(0), swap.AmountInUSD)
	assert.Equal(t, float64(0), swap.TradingFeeUSD)
	assert.Equal(t, big.NewInt(100), swap.AmountIn, "native amounts keep full precision")
}
