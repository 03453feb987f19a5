package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolstats/internal/domain"
)

// The financial snapshot recomputes cumulative volume from the pool list as
// an audit; with exact event replay it must agree with the incrementally
// maintained protocol total.
func TestFinancialsAuditMatchesIncrementalVolume(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, bnLinkAddr, linkAddr)
	f.seedPool(t, bnDaiAddr, daiAddr)
	f.setNetworkFee(t, 200_000)

	ts := int64(1_700_000_000)
	f.process(t, tradeEvent(t, ts, 1))
	f.process(t, tradeEvent(t, ts+60, 2))
	f.process(t, tradeEvent(t, ts+120, 3))

	fin, ok, err := f.ents.Financials.Find(context.Background(), domain.BucketID(domain.DayIndex(ts)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.protocol(t).CumulativeVolumeUSD, fin.CumulativeVolumeUSD)
}

func TestPoolSnapshotPullsThroughPoolState(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, bnLinkAddr, linkAddr)
	f.seedPool(t, bnDaiAddr, daiAddr)

	ts := int64(1_700_000_000)
	f.process(t, evt(t, domain.KindTotalLiquidityUpdated, ts, 1, domain.TotalLiquidityUpdated{
		Pool:            linkAddr,
		StakedBalance:   big.NewInt(100),
		PoolTokenSupply: big.NewInt(100),
	}))
	f.process(t, tradeEvent(t, ts+60, 2))

	ps, ok, err := f.ents.PoolHourly.Find(context.Background(), domain.SubjectBucketID(bnLinkAddr, domain.HourIndex(ts+60)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(100), ps.TotalValueLockedUSD)
	assert.Equal(t, big.NewInt(100), ps.InputTokenBalance)
	assert.Equal(t, float64(100), ps.PeriodVolumeUSD)
}

func TestFinancialsProtocolControlledValue(t *testing.T) {
	f := newFixture(t)
	f.seedPool(t, bnLinkAddr, linkAddr)
	f.seedPool(t, bnBNTAddr, bntAddr)
	f.rates.shareRates[bntAddr] = big.NewRat(1, 1)

	ts := int64(1_700_000_000)
	f.process(t, evt(t, domain.KindGovTotalLiquidityUpdated, ts, 1, domain.TotalLiquidityUpdated{
		StakedBalance:   big.NewInt(500),
		PoolTokenSupply: big.NewInt(500),
	}))

	// any transactional event refreshes the day's financials
	f.process(t, depositEvent(t, ts+60, 2, traderAddr))

	fin, ok, err := f.ents.Financials.Find(context.Background(), domain.BucketID(domain.DayIndex(ts)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(500), fin.ProtocolControlledValueUSD)
	assert.Equal(t, f.protocol(t).TotalValueLockedUSD, fin.TotalValueLockedUSD)
}
