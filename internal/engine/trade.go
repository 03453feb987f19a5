package engine

import (
	"context"

	"poolstats/internal/domain"
)

// handleTokensTraded records a swap and rolls its volume and fee into every
// aggregate. All referenced entities are resolved before the first write, so
// a skipped event leaves no partial state behind.
func (e *Engine) handleTokensTraded(ctx context.Context, ev *domain.Event, p *domain.TokensTraded) error {
	source, ok, err := e.registry.Find(ctx, p.SourceToken)
	if err != nil {
		return err
	}
	if !ok {
		return e.skip(ev, "missing_token", "source token %s not found", p.SourceToken)
	}
	target, ok, err := e.registry.Find(ctx, p.TargetToken)
	if err != nil {
		return err
	}
	if !ok {
		return e.skip(ev, "missing_token", "target token %s not found", p.TargetToken)
	}

	// the swap is attributed to the source side's pool
	poolID, ok := source.PoolTokenID()
	if !ok {
		return e.skip(ev, "missing_pool", "source token %s has no pool token", source.ID)
	}
	pool, ok, err := e.ents.Pools.Find(ctx, poolID)
	if err != nil {
		return err
	}
	if !ok {
		return e.skip(ev, "missing_pool", "pool %s not found", poolID)
	}

	prot, err := e.getOrCreateProtocol(ctx)
	if err != nil {
		return err
	}

	amountInUSD := e.refAmountOrZero(ctx, source.ID, p.SourceAmount, ev.BlockNumber)
	amountOutUSD := e.refAmountOrZero(ctx, target.ID, p.TargetAmount, ev.BlockNumber)
	feeUSD := e.refAmountOrZero(ctx, target.ID, p.TargetFeeAmount, ev.BlockNumber)

	swap := &domain.Swap{
		ID:          domain.SwapID(ev.TxHash, ev.LogIndex),
		Hash:        ev.TxHash,
		LogIndex:    ev.LogIndex,
		Protocol:    prot.ID,
		BlockNumber: ev.BlockNumber,
		Timestamp:   ev.BlockTimestamp,
		From:        p.Trader,
		To:          p.Trader,
		Pool:        pool.ID,

		TokenIn:      source.ID,
		AmountIn:     p.SourceAmount,
		AmountInUSD:  amountInUSD,
		TokenOut:     target.ID,
		AmountOut:    p.TargetAmount,
		AmountOutUSD: amountOutUSD,

		TradingFeeAmount: p.TargetFeeAmount,
		TradingFeeUSD:    feeUSD,
	}
	if err := e.ents.Swaps.Save(ctx, swap.ID, swap); err != nil {
		return err
	}

	pool.CumulativeVolumeUSD += amountInUSD
	pool.CumulativeTradingFeeUSD += feeUSD
	if err := e.ents.Pools.Save(ctx, pool.ID, pool); err != nil {
		return err
	}

	if err := e.addProtocolVolume(ctx, amountInUSD); err != nil {
		return err
	}
	if err := e.applyRevenue(ctx, ClassSwap, feeUSD); err != nil {
		return err
	}

	if err := e.snapshotUsage(ctx, ev, p.Trader, ClassSwap); err != nil {
		return err
	}
	if err := e.snapshotPool(ctx, ev, pool.ID); err != nil {
		return err
	}
	if err := e.updatePoolVolume(ctx, ev, pool.ID, p.SourceAmount, amountInUSD); err != nil {
		return err
	}
	if err := e.snapshotFinancials(ctx, ev); err != nil {
		return err
	}
	if err := e.updateFinancialsRevenue(ctx, ev, ClassSwap, feeUSD); err != nil {
		return err
	}

	if e.sink != nil {
		e.sink.RecordSwap(swap)
	}
	return nil
}
