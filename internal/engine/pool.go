package engine

import (
	"context"
	"math/big"

	"poolstats/internal/domain"
	"poolstats/internal/metrics"
)

// handlePoolTokenCreated registers a new pool: pool token, reserve token and
// the pool entity itself. Re-announcements of a known pool token are ignored.
func (e *Engine) handlePoolTokenCreated(ctx context.Context, ev *domain.Event, p *domain.PoolTokenCreated) error {
	if _, ok, err := e.ents.Tokens.Find(ctx, p.PoolToken); err != nil {
		return err
	} else if ok {
		e.log.Infof("pool token %s already registered, ignoring", p.PoolToken)
		return nil
	}

	poolToken, err := e.registry.CreatePoolToken(ctx, p.PoolToken)
	if err != nil {
		return err
	}
	if _, err := e.registry.CreateReserveToken(ctx, p.ReserveToken, p.PoolToken); err != nil {
		return err
	}

	return e.createLiquidityPool(ctx, ev, poolToken, p.ReserveToken)
}

func (e *Engine) createLiquidityPool(ctx context.Context, ev *domain.Event, poolToken *domain.Token, reserveToken string) error {
	prot, err := e.getOrCreateProtocol(ctx)
	if err != nil {
		return err
	}

	pool := &domain.LiquidityPool{
		ID:       poolToken.ID,
		Protocol: prot.ID,
		Name:     poolToken.Name,
		Symbol:   poolToken.Symbol,

		InputToken:   reserveToken,
		OutputToken:  poolToken.ID,
		RewardTokens: []string{},

		CreatedTimestamp: ev.BlockTimestamp,
		CreatedBlock:     ev.BlockNumber,

		InputTokenBalance:       new(big.Int),
		OutputTokenSupply:       new(big.Int),
		StakedOutputTokenAmount: new(big.Int),
		RewardEmissionsPerDay:   new(big.Int),
	}
	if err := e.ents.Pools.Save(ctx, pool.ID, pool); err != nil {
		return err
	}

	prot.PoolIDs = append(prot.PoolIDs, pool.ID)
	if err := e.ents.Protocols.Save(ctx, prot.ID, prot); err != nil {
		return err
	}

	metrics.PoolsCreated.Inc()
	e.log.Infof("pool %s (%s) created at block %d", pool.ID, pool.Symbol, ev.BlockNumber)
	return nil
}

// handlePoolCollectionAdded only acknowledges the new collection; pools are
// materialized per pool token, not per collection.
func (e *Engine) handlePoolCollectionAdded(_ context.Context, ev *domain.Event, p *domain.PoolCollectionAdded) error {
	e.log.Infof("pool collection %s added at block %d", p.PoolCollection, ev.BlockNumber)
	return nil
}

func (e *Engine) handleTotalLiquidityUpdated(ctx context.Context, ev *domain.Event, p *domain.TotalLiquidityUpdated) error {
	reserve, ok, err := e.registry.Find(ctx, p.Pool)
	if err != nil {
		return err
	}
	if !ok {
		return e.skip(ev, "missing_token", "reserve token %s not found", p.Pool)
	}

	poolID, ok := reserve.PoolTokenID()
	if !ok {
		return e.skip(ev, "missing_pool", "reserve token %s has no pool token", reserve.ID)
	}
	return e.applyLiquidity(ctx, ev, poolID, reserve.ID, p)
}

// handleGovTotalLiquidityUpdated covers the governance pool, whose events
// carry no pool address: both sides come from the deployment descriptor.
func (e *Engine) handleGovTotalLiquidityUpdated(ctx context.Context, ev *domain.Event, p *domain.TotalLiquidityUpdated) error {
	return e.applyLiquidity(ctx, ev, e.addrs.GovPoolToken, e.addrs.GovToken, p)
}

// applyLiquidity rebases the pool's balances on an authoritative staked
// balance and forwards the TVL delta to the protocol total, keeping the
// protocol figure an exact sum of its pools.
func (e *Engine) applyLiquidity(ctx context.Context, ev *domain.Event, poolID, reserveToken string, p *domain.TotalLiquidityUpdated) error {
	pool, ok, err := e.ents.Pools.Find(ctx, poolID)
	if err != nil {
		return err
	}
	if !ok {
		return e.skip(ev, "missing_pool", "pool %s not found", poolID)
	}
	poolToken, ok, err := e.ents.Tokens.Find(ctx, poolID)
	if err != nil {
		return err
	}
	if !ok {
		return e.skip(ev, "missing_token", "pool token %s not found", poolID)
	}

	prevTVL := pool.TotalValueLockedUSD
	tvl := e.refAmountOrZero(ctx, reserveToken, p.StakedBalance, ev.BlockNumber)

	pool.InputTokenBalance = p.StakedBalance
	pool.OutputTokenSupply = p.PoolTokenSupply
	pool.TotalValueLockedUSD = tvl

	underlying := e.underlyingOrZero(ctx, reserveToken, oneShare(poolToken.Decimals), ev.BlockNumber)
	pool.OutputTokenPriceUSD = e.refAmountOrZero(ctx, reserveToken, underlying, ev.BlockNumber)

	if err := e.ents.Pools.Save(ctx, pool.ID, pool); err != nil {
		return err
	}

	prot, ok, err := e.ents.Protocols.Find(ctx, e.addrs.Protocol)
	if err != nil {
		return err
	}
	if !ok {
		// pools are always created through the protocol singleton
		e.log.Errorf("protocol %s not found while updating liquidity of pool %s", e.addrs.Protocol, pool.ID)
		return nil
	}
	prot.TotalValueLockedUSD += tvl - prevTVL
	return e.ents.Protocols.Save(ctx, prot.ID, prot)
}

// handleProgramCreated records a pool's reward program as a per-day emission
// rate derived from the program's total budget and duration.
func (e *Engine) handleProgramCreated(ctx context.Context, ev *domain.Event, p *domain.ProgramCreated) error {
	reserve, ok, err := e.registry.Find(ctx, p.Pool)
	if err != nil {
		return err
	}
	if !ok {
		return e.skip(ev, "missing_token", "reserve token %s not found", p.Pool)
	}
	poolID, ok := reserve.PoolTokenID()
	if !ok {
		return e.skip(ev, "missing_pool", "reserve token %s has no pool token", reserve.ID)
	}
	pool, ok, err := e.ents.Pools.Find(ctx, poolID)
	if err != nil {
		return err
	}
	if !ok {
		return e.skip(ev, "missing_pool", "pool %s not found", poolID)
	}

	duration := p.EndTime - p.StartTime
	if duration <= 0 || p.TotalRewards == nil {
		return e.skip(ev, "bad_program", "program for pool %s has no positive duration", poolID)
	}

	perDay := new(big.Int).Mul(p.TotalRewards, big.NewInt(domain.SecondsPerDay))
	perDay.Quo(perDay, big.NewInt(duration))

	pool.RewardTokens = []string{p.RewardsToken}
	pool.RewardEmissionsPerDay = perDay
	pool.RewardEmissionsPerDayUSD = e.refAmountOrZero(ctx, p.RewardsToken, perDay, ev.BlockNumber)
	return e.ents.Pools.Save(ctx, pool.ID, pool)
}
