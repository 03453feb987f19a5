package engine

import (
	"context"
	"math/big"

	"poolstats/internal/domain"
)

func (e *Engine) handleTokensDeposited(ctx context.Context, ev *domain.Event, p *domain.TokensDeposited) error {
	reserve, poolToken, err := e.resolvePair(ctx, ev, p.Token)
	if err != nil {
		return err
	}
	return e.deposit(ctx, ev, p.Provider, reserve, p.TokenAmount, poolToken, p.PoolTokenAmount)
}

// handleGovTokensDeposited handles the governance pool, whose events omit the
// token address; both sides are resolved from the deployment descriptor.
func (e *Engine) handleGovTokensDeposited(ctx context.Context, ev *domain.Event, p *domain.TokensDeposited) error {
	reserve, poolToken, err := e.resolveGovPair(ctx, ev)
	if err != nil {
		return err
	}
	return e.deposit(ctx, ev, p.Provider, reserve, p.TokenAmount, poolToken, p.PoolTokenAmount)
}

func (e *Engine) handleTokensWithdrawn(ctx context.Context, ev *domain.Event, p *domain.TokensWithdrawn) error {
	reserve, poolToken, err := e.resolvePair(ctx, ev, p.Token)
	if err != nil {
		return err
	}
	return e.withdraw(ctx, ev, p.Provider, reserve, p.TokenAmount, poolToken, p.PoolTokenAmount, p.WithdrawalFeeAmount)
}

func (e *Engine) handleGovTokensWithdrawn(ctx context.Context, ev *domain.Event, p *domain.TokensWithdrawn) error {
	reserve, poolToken, err := e.resolveGovPair(ctx, ev)
	if err != nil {
		return err
	}
	return e.withdraw(ctx, ev, p.Provider, reserve, p.TokenAmount, poolToken, p.PoolTokenAmount, p.WithdrawalFeeAmount)
}

// resolvePair loads a reserve token and its linked pool token, skipping the
// event if either is unknown.
func (e *Engine) resolvePair(ctx context.Context, ev *domain.Event, reserveID string) (reserve, poolToken *domain.Token, err error) {
	reserve, ok, err := e.registry.Find(ctx, reserveID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, e.skip(ev, "missing_token", "token %s not found", reserveID)
	}

	poolTokenID, ok := reserve.PoolTokenID()
	if !ok {
		return nil, nil, e.skip(ev, "missing_pool", "token %s has no pool token", reserve.ID)
	}
	poolToken, ok, err = e.registry.Find(ctx, poolTokenID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, e.skip(ev, "missing_token", "pool token %s not found", poolTokenID)
	}
	return reserve, poolToken, nil
}

func (e *Engine) resolveGovPair(ctx context.Context, ev *domain.Event) (reserve, poolToken *domain.Token, err error) {
	reserve, ok, err := e.registry.Find(ctx, e.addrs.GovToken)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, e.skip(ev, "missing_token", "governance token %s not found", e.addrs.GovToken)
	}
	poolToken, ok, err = e.registry.Find(ctx, e.addrs.GovPoolToken)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, e.skip(ev, "missing_token", "governance pool token %s not found", e.addrs.GovPoolToken)
	}
	return reserve, poolToken, nil
}

func (e *Engine) deposit(ctx context.Context, ev *domain.Event, provider string, reserve *domain.Token, amount *big.Int, poolToken *domain.Token, poolTokenAmount *big.Int) error {
	prot, err := e.getOrCreateProtocol(ctx)
	if err != nil {
		return err
	}

	rec := &domain.Deposit{
		ID:          domain.DepositID(ev.TxHash, ev.LogIndex),
		Hash:        ev.TxHash,
		LogIndex:    ev.LogIndex,
		Protocol:    prot.ID,
		BlockNumber: ev.BlockNumber,
		Timestamp:   ev.BlockTimestamp,
		From:        provider,
		To:          provider,
		Pool:        poolToken.ID,

		InputToken:        reserve.ID,
		InputTokenAmount:  amount,
		OutputToken:       poolToken.ID,
		OutputTokenAmount: poolTokenAmount,
		AmountUSD:         e.refAmountOrZero(ctx, reserve.ID, amount, ev.BlockNumber),
	}
	if err := e.ents.Deposits.Save(ctx, rec.ID, rec); err != nil {
		return err
	}

	if err := e.snapshotUsage(ctx, ev, provider, ClassDeposit); err != nil {
		return err
	}
	if err := e.snapshotPool(ctx, ev, poolToken.ID); err != nil {
		return err
	}
	if err := e.snapshotFinancials(ctx, ev); err != nil {
		return err
	}

	if e.sink != nil {
		e.sink.RecordDeposit(rec)
	}
	return nil
}

func (e *Engine) withdraw(ctx context.Context, ev *domain.Event, provider string, reserve *domain.Token, amount *big.Int, poolToken *domain.Token, poolTokenAmount, feeAmount *big.Int) error {
	// pool is a hard precondition: resolve it before the first write
	pool, ok, err := e.ents.Pools.Find(ctx, poolToken.ID)
	if err != nil {
		return err
	}
	if !ok {
		return e.skip(ev, "missing_pool", "pool %s not found", poolToken.ID)
	}

	prot, err := e.getOrCreateProtocol(ctx)
	if err != nil {
		return err
	}

	feeUSD := e.refAmountOrZero(ctx, reserve.ID, feeAmount, ev.BlockNumber)
	rec := &domain.Withdraw{
		ID:          domain.WithdrawID(ev.TxHash, ev.LogIndex),
		Hash:        ev.TxHash,
		LogIndex:    ev.LogIndex,
		Protocol:    prot.ID,
		BlockNumber: ev.BlockNumber,
		Timestamp:   ev.BlockTimestamp,
		From:        provider,
		To:          provider,
		Pool:        pool.ID,

		InputToken:        poolToken.ID,
		InputTokenAmount:  poolTokenAmount,
		OutputToken:       reserve.ID,
		OutputTokenAmount: amount,
		AmountUSD:         e.refAmountOrZero(ctx, reserve.ID, amount, ev.BlockNumber),

		WithdrawalFeeAmount: feeAmount,
		WithdrawalFeeUSD:    feeUSD,
	}
	if err := e.ents.Withdraws.Save(ctx, rec.ID, rec); err != nil {
		return err
	}

	pool.CumulativeWithdrawalFeeUSD += feeUSD
	if err := e.ents.Pools.Save(ctx, pool.ID, pool); err != nil {
		return err
	}

	if err := e.applyRevenue(ctx, ClassWithdraw, feeUSD); err != nil {
		return err
	}
	if err := e.snapshotUsage(ctx, ev, provider, ClassWithdraw); err != nil {
		return err
	}
	if err := e.snapshotPool(ctx, ev, pool.ID); err != nil {
		return err
	}
	if err := e.snapshotFinancials(ctx, ev); err != nil {
		return err
	}
	if err := e.updateFinancialsRevenue(ctx, ev, ClassWithdraw, feeUSD); err != nil {
		return err
	}

	if e.sink != nil {
		e.sink.RecordWithdraw(rec)
	}
	return nil
}
