package engine

import (
	"context"
	"math/big"

	"poolstats/internal/domain"
	"poolstats/internal/store"
)

// snapshotPool refreshes the pool's daily and hourly snapshots with the
// pool's current state.
func (e *Engine) snapshotPool(ctx context.Context, ev *domain.Event, poolID string) error {
	pool, ok, err := e.ents.Pools.Find(ctx, poolID)
	if err != nil {
		return err
	}
	if !ok {
		return e.skip(ev, "missing_pool", "pool %s not found for snapshot", poolID)
	}

	if err := e.refreshPoolSnapshot(ctx, e.ents.PoolDaily, domain.DayIndex(ev.BlockTimestamp), ev, pool); err != nil {
		return err
	}
	return e.refreshPoolSnapshot(ctx, e.ents.PoolHourly, domain.HourIndex(ev.BlockTimestamp), ev, pool)
}

func (e *Engine) refreshPoolSnapshot(ctx context.Context, snaps *store.Collection[domain.PoolSnapshot], idx int64, ev *domain.Event, pool *domain.LiquidityPool) error {
	snap, err := e.getOrCreatePoolSnapshot(ctx, snaps, idx, ev, pool)
	if err != nil {
		return err
	}

	snap.TotalValueLockedUSD = pool.TotalValueLockedUSD
	snap.CumulativeVolumeUSD = pool.CumulativeVolumeUSD
	snap.InputTokenBalance = pool.InputTokenBalance
	snap.OutputTokenSupply = pool.OutputTokenSupply
	snap.OutputTokenPriceUSD = pool.OutputTokenPriceUSD
	snap.StakedOutputTokenAmount = pool.StakedOutputTokenAmount
	snap.RewardEmissionsPerDay = pool.RewardEmissionsPerDay
	snap.RewardEmissionsPerDayUSD = pool.RewardEmissionsPerDayUSD
	snap.BlockNumber = ev.BlockNumber
	snap.Timestamp = ev.BlockTimestamp
	return snaps.Save(ctx, snap.ID, snap)
}

func (e *Engine) getOrCreatePoolSnapshot(ctx context.Context, snaps *store.Collection[domain.PoolSnapshot], idx int64, ev *domain.Event, pool *domain.LiquidityPool) (*domain.PoolSnapshot, error) {
	id := domain.SubjectBucketID(pool.ID, idx)
	snap, ok, err := snaps.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		return snap, nil
	}

	snap = &domain.PoolSnapshot{
		ID:       id,
		Protocol: pool.Protocol,
		Pool:     pool.ID,

		BlockNumber: ev.BlockNumber,
		Timestamp:   ev.BlockTimestamp,

		PeriodVolumeTokenAmount: new(big.Int),
	}
	if err := snaps.Save(ctx, id, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// updatePoolVolume accrues one swap's input amount onto the pool's current
// daily and hourly period volumes.
func (e *Engine) updatePoolVolume(ctx context.Context, ev *domain.Event, poolID string, amount *big.Int, amountUSD float64) error {
	pool, ok, err := e.ents.Pools.Find(ctx, poolID)
	if err != nil {
		return err
	}
	if !ok {
		return e.skip(ev, "missing_pool", "pool %s not found for volume update", poolID)
	}

	if err := e.bumpPoolVolume(ctx, e.ents.PoolDaily, domain.DayIndex(ev.BlockTimestamp), ev, pool, amount, amountUSD); err != nil {
		return err
	}
	return e.bumpPoolVolume(ctx, e.ents.PoolHourly, domain.HourIndex(ev.BlockTimestamp), ev, pool, amount, amountUSD)
}

func (e *Engine) bumpPoolVolume(ctx context.Context, snaps *store.Collection[domain.PoolSnapshot], idx int64, ev *domain.Event, pool *domain.LiquidityPool, amount *big.Int, amountUSD float64) error {
	snap, err := e.getOrCreatePoolSnapshot(ctx, snaps, idx, ev, pool)
	if err != nil {
		return err
	}

	if amount != nil {
		if snap.PeriodVolumeTokenAmount == nil {
			snap.PeriodVolumeTokenAmount = new(big.Int)
		}
		snap.PeriodVolumeTokenAmount = new(big.Int).Add(snap.PeriodVolumeTokenAmount, amount)
	}
	snap.PeriodVolumeUSD += amountUSD
	return snaps.Save(ctx, snap.ID, snap)
}

// snapshotFinancials refreshes the protocol's daily financial snapshot. TVL
// and revenue carry over from the incrementally maintained protocol totals;
// volume is recomputed from the pool list as an audit of the running sums.
func (e *Engine) snapshotFinancials(ctx context.Context, ev *domain.Event) error {
	prot, ok, err := e.ents.Protocols.Find(ctx, e.addrs.Protocol)
	if err != nil {
		return err
	}
	if !ok {
		e.log.Errorf("protocol %s not found while snapshotting financials, this should never happen", e.addrs.Protocol)
		return nil
	}

	dayIdx := domain.DayIndex(ev.BlockTimestamp)
	snap, err := e.getOrCreateFinancials(ctx, dayIdx, prot)
	if err != nil {
		return err
	}

	snap.TotalValueLockedUSD = prot.TotalValueLockedUSD
	snap.CumulativeTotalRevenueUSD = prot.CumulativeTotalRevenueUSD
	snap.CumulativeSupplySideRevenueUSD = prot.CumulativeSupplySideRevenueUSD
	snap.CumulativeProtocolSideRevenueUSD = prot.CumulativeProtocolSideRevenueUSD

	var cumulativeVolume, dailyVolume float64
	for _, poolID := range prot.PoolIDs {
		pool, ok, err := e.ents.Pools.Find(ctx, poolID)
		if err != nil {
			return err
		}
		if !ok {
			return e.skip(ev, "missing_pool", "pool %s from protocol pool list not found", poolID)
		}
		cumulativeVolume += pool.CumulativeVolumeUSD

		ps, ok, err := e.ents.PoolDaily.Find(ctx, domain.SubjectBucketID(poolID, dayIdx))
		if err != nil {
			return err
		}
		if ok {
			dailyVolume += ps.PeriodVolumeUSD
		}
	}
	snap.CumulativeVolumeUSD = cumulativeVolume
	snap.DailyVolumeUSD = dailyVolume

	snap.ProtocolControlledValueUSD = e.protocolControlledValue(ctx, ev)
	snap.BlockNumber = ev.BlockNumber
	snap.Timestamp = ev.BlockTimestamp
	return e.ents.Financials.Save(ctx, snap.ID, snap)
}

// protocolControlledValue prices the governance pool's outstanding share
// supply in the reference currency.
func (e *Engine) protocolControlledValue(ctx context.Context, ev *domain.Event) float64 {
	govPool, ok, err := e.ents.Pools.Find(ctx, e.addrs.GovPoolToken)
	if err != nil || !ok {
		return 0
	}
	if govPool.OutputTokenSupply == nil || govPool.OutputTokenSupply.Sign() == 0 {
		return 0
	}

	underlying := e.underlyingOrZero(ctx, e.addrs.GovToken, govPool.OutputTokenSupply, ev.BlockNumber)
	return e.refAmountOrZero(ctx, e.addrs.GovToken, underlying, ev.BlockNumber)
}

// updateFinancialsRevenue accrues one realized fee onto the day's revenue
// figures, split the same way as the protocol cumulative totals.
func (e *Engine) updateFinancialsRevenue(ctx context.Context, ev *domain.Event, class EventClass, feeUSD float64) error {
	prot, ok, err := e.ents.Protocols.Find(ctx, e.addrs.Protocol)
	if err != nil {
		return err
	}
	if !ok {
		e.log.Errorf("protocol %s not found while accruing revenue, this should never happen", e.addrs.Protocol)
		return nil
	}

	snap, err := e.getOrCreateFinancials(ctx, domain.DayIndex(ev.BlockTimestamp), prot)
	if err != nil {
		return err
	}

	protocolSide, supplySide := attributeRevenue(class, prot.NetworkFeeRate, feeUSD)
	snap.DailyTotalRevenueUSD += feeUSD
	snap.DailyProtocolSideRevenueUSD += protocolSide
	snap.DailySupplySideRevenueUSD += supplySide
	snap.BlockNumber = ev.BlockNumber
	snap.Timestamp = ev.BlockTimestamp
	return e.ents.Financials.Save(ctx, snap.ID, snap)
}

func (e *Engine) getOrCreateFinancials(ctx context.Context, dayIdx int64, prot *domain.Protocol) (*domain.FinancialsSnapshot, error) {
	id := domain.BucketID(dayIdx)
	snap, ok, err := e.ents.Financials.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		return snap, nil
	}

	snap = &domain.FinancialsSnapshot{ID: id, Protocol: prot.ID}
	if err := e.ents.Financials.Save(ctx, id, snap); err != nil {
		return nil, err
	}
	return snap, nil
}
